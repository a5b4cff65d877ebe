package entity

import "time"

// DocumentRequest is the first workflow subject: an employee's request for a
// legal document, routed through supervisor/manager approval, legal admin
// approval and a moderated discussion phase.
type DocumentRequest struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	RequesterID   string     `json:"requester_id"`
	RequesterName string     `json:"requester_name"`
	Division      string     `json:"division"`
	Status        string     `json:"status"`
	IsDraft       bool       `json:"is_draft"`
	// DiscussionRound numbers the forum rounds, starting at 1. A
	// director-tier send-back opens a new round, so each round's closing
	// marker and finance participation are counted separately.
	DiscussionRound int        `json:"discussion_round"`
	RejectReason    string     `json:"reject_reason,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Pending reports whether the request sits in a state that expects an
// approval decision from the ledger's current step.
func (r *DocumentRequest) Pending() bool {
	switch r.Status {
	case RequestStatusPendingSupervisor, RequestStatusPendingGM, RequestStatusPendingLegalAdmin:
		return true
	}
	return false
}
