package flow

// State represents a workflow status in an approval lifecycle. The concrete
// value sets are chart-specific; a chart only knows the states it was
// configured with.
type State string

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Trigger represents an event that can cause a state transition.
type Trigger string

// Triggers shared by both approval charts.
const (
	TriggerSubmit          Trigger = "SUBMIT"
	TriggerApprove         Trigger = "APPROVE"
	TriggerReject          Trigger = "REJECT"
	TriggerCloseDiscussion Trigger = "CLOSE_DISCUSSION"
	TriggerComplete        Trigger = "COMPLETE"
	TriggerRediscuss       Trigger = "REDISCUSS"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
