package flow

import "context"

// StateMachine tracks a current state and validates transitions against the
// chart it was built from.
type StateMachine interface {
	// State returns the current state.
	State() State

	// CanFire returns true if the trigger has at least one configured
	// transition in the current state. Guards are not evaluated here.
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state
	// if a configured transition's guard passes.
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state.
	PermittedTriggers() []Trigger

	// IsTerminal reports whether the current state has no outgoing transitions.
	IsTerminal() bool
}
