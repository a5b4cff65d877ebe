package entity

import "time"

// AgreementOverview is the second workflow subject, produced once a document
// request's discussion closes. It runs a fixed five-step approval chain
// ending with two director signatures.
type AgreementOverview struct {
	ID            int64      `json:"id"`
	RequestID     int64      `json:"request_id,omitempty"` // source document request, 0 when standalone
	Title         string     `json:"title"`
	RequesterID   string     `json:"requester_id"`
	RequesterName string     `json:"requester_name"`
	Division      string     `json:"division"`
	Status        string     `json:"status"`
	IsDraft       bool       `json:"is_draft"`
	RejectReason  string     `json:"reject_reason,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Pending reports whether the agreement sits in one of the five chain states.
func (a *AgreementOverview) Pending() bool {
	switch a.Status {
	case AgreementStatusPendingHead, AgreementStatusPendingFinance, AgreementStatusPendingLegal,
		AgreementStatusPendingDirector1, AgreementStatusPendingDirector2:
		return true
	}
	return false
}

// Finalized reports whether the agreement reached a terminal outcome.
func (a *AgreementOverview) Finalized() bool {
	return a.Status == AgreementStatusApproved || a.Status == AgreementStatusRejected
}
