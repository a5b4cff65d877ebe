package flow

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not permitted in
	// the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when every candidate transition for a
	// trigger is blocked by its guard condition.
	ErrGuardFailed = errors.New("guard condition failed")
)
