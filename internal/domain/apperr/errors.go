// Package apperr defines the error taxonomy shared by all workflow
// transitions. Call sites wrap a sentinel with the specific precondition
// that failed, e.g. fmt.Errorf("%w: no supervisor configured for %s", ...),
// so approvers always learn why they could not act.
package apperr

import "errors"

var (
	// ErrConfiguration signals a missing mandatory approver or other
	// directory misconfiguration. Fatal for the transition.
	ErrConfiguration = errors.New("configuration error")

	// ErrPermission signals that the actor lacks authority for the current
	// pending step. Recovered locally as a denial, never a crash.
	ErrPermission = errors.New("permission denied")

	// ErrConflict signals a lost race or stale state: a step already
	// resolved, or a second pending step would be created. The caller
	// retries with fresh state.
	ErrConflict = errors.New("conflict")

	// ErrValidation signals bad input caught before any ledger mutation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound signals that the referenced subject does not exist.
	ErrNotFound = errors.New("not found")
)
