package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestSubmitted   Type = "request.submitted"
	TypeRequestApproved    Type = "request.approved"
	TypeRequestRejected    Type = "request.rejected"
	TypeRequestCompleted   Type = "request.completed"
	TypeDiscussionOpened   Type = "discussion.opened"
	TypeDiscussionComment  Type = "discussion.comment"
	TypeDiscussionClosed   Type = "discussion.closed"
	TypeAgreementCreated   Type = "agreement.created"
	TypeAgreementApproved  Type = "agreement.approved"
	TypeAgreementRejected  Type = "agreement.rejected"
	TypeAgreementRediscuss Type = "agreement.rediscuss"
	TypeStepAssigned       Type = "step.assigned"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestSubmitted,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestCompleted,
		TypeDiscussionOpened,
		TypeDiscussionComment,
		TypeDiscussionClosed,
		TypeAgreementCreated,
		TypeAgreementApproved,
		TypeAgreementRejected,
		TypeAgreementRediscuss,
		TypeStepAssigned:
		return true
	default:
		return false
	}
}
