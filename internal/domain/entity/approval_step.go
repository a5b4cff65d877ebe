package entity

import "time"

// ApprovalStep is one ordered ledger record tied to a workflow subject.
// Steps are append-only: created when the previous step resolves, mutated
// exactly once by the approving or rejecting actor, and never deleted except
// on an explicit workflow reset.
type ApprovalStep struct {
	ID           int64      `json:"id"`
	SubjectID    int64      `json:"subject_id"`
	ApprovalType string     `json:"approval_type"`
	ApproverID   string     `json:"approver_id"`
	ApproverName string     `json:"approver_name"`
	StepOrder    int        `json:"step_order"`
	Status       string     `json:"status"`
	Comments     string     `json:"comments,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Resolved reports whether the step already carries a terminal outcome.
func (s *ApprovalStep) Resolved() bool {
	return s.Status == StepStatusApproved || s.Status == StepStatusRejected
}

// IsDirectorStep reports whether the step belongs to the director tier,
// where rejection redirects to rediscussion instead of terminating.
func (s *ApprovalStep) IsDirectorStep() bool {
	return s.ApprovalType == ApprovalTypeDirectorSupervisor || s.ApprovalType == ApprovalTypeSelectedDirector
}
