// Package ledger maintains the append-only approval-step trail per workflow
// subject and enforces its two core invariants: at most one pending step at
// a time, and idempotent-by-step resolution.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/legalworks/docflow/internal/application/port"
	"github.com/legalworks/docflow/internal/domain/apperr"
	"github.com/legalworks/docflow/internal/domain/entity"
)

// Outcome is a terminal step decision.
type Outcome string

const (
	OutcomeApprove Outcome = "APPROVE"
	OutcomeReject  Outcome = "REJECT"
)

// Ledger wraps one subject kind's step repository. Two instances exist at
// runtime: one over the document-request table, one over the agreement table.
type Ledger struct {
	steps port.StepRepository
}

// New creates a ledger over a step repository.
func New(steps port.StepRepository) *Ledger {
	return &Ledger{steps: steps}
}

// AppendStep inserts a new pending step at the next order position. It fails
// with a conflict when a pending step already exists for the subject.
func (l *Ledger) AppendStep(ctx context.Context, subjectID int64, approvalType string, approver *entity.Person) (*entity.ApprovalStep, error) {
	if approver == nil {
		return nil, fmt.Errorf("%w: approver is required", apperr.ErrValidation)
	}

	pending, err := l.steps.CurrentPending(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: subject %d already has a pending step at order %d",
			apperr.ErrConflict, subjectID, pending.StepOrder)
	}

	maxOrder, err := l.steps.MaxOrder(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	step := &entity.ApprovalStep{
		SubjectID:    subjectID,
		ApprovalType: approvalType,
		ApproverID:   approver.EmployeeID,
		ApproverName: approver.Name,
		StepOrder:    maxOrder + 1,
		Status:       entity.StepStatusPending,
	}
	if err := l.steps.Create(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

// AppendQueued inserts a step in queued state at the next order position.
// Used by the agreement workflow, which materializes its entire chain up
// front; queued steps become pending one at a time via ActivateNext.
func (l *Ledger) AppendQueued(ctx context.Context, subjectID int64, approvalType string, approver *entity.Person) (*entity.ApprovalStep, error) {
	if approver == nil {
		return nil, fmt.Errorf("%w: approver is required", apperr.ErrValidation)
	}

	maxOrder, err := l.steps.MaxOrder(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	step := &entity.ApprovalStep{
		SubjectID:    subjectID,
		ApprovalType: approvalType,
		ApproverID:   approver.EmployeeID,
		ApproverName: approver.Name,
		StepOrder:    maxOrder + 1,
		Status:       entity.StepStatusQueued,
	}
	if err := l.steps.Create(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

// ResolveStep applies a terminal outcome to a pending step. Resolution is
// idempotent-by-step: a second attempt observes a conflict and the step's
// terminal fields stay untouched. Rejection requires a reason.
func (l *Ledger) ResolveStep(ctx context.Context, step *entity.ApprovalStep, outcome Outcome, comments string) error {
	if step == nil {
		return fmt.Errorf("%w: step is required", apperr.ErrValidation)
	}
	if outcome == OutcomeReject && comments == "" {
		return fmt.Errorf("%w: rejection requires a reason", apperr.ErrValidation)
	}
	if step.Resolved() {
		return fmt.Errorf("%w: step %d already resolved as %s", apperr.ErrConflict, step.ID, step.Status)
	}

	status := entity.StepStatusApproved
	if outcome == OutcomeReject {
		status = entity.StepStatusRejected
	}

	now := time.Now()
	updated, err := l.steps.Resolve(ctx, step.ID, status, now, comments)
	if err != nil {
		return err
	}
	if !updated {
		// Lost the race: another actor resolved the step first.
		return fmt.Errorf("%w: step %d was resolved concurrently", apperr.ErrConflict, step.ID)
	}

	step.Status = status
	step.Comments = comments
	if outcome == OutcomeApprove {
		step.ApprovedAt = &now
	} else {
		step.RejectedAt = &now
	}
	return nil
}

// CurrentPendingStep returns the subject's single pending step, or nil.
func (l *Ledger) CurrentPendingStep(ctx context.Context, subjectID int64) (*entity.ApprovalStep, error) {
	return l.steps.CurrentPending(ctx, subjectID)
}

// Steps returns the subject's full ledger ordered by step order.
func (l *Ledger) Steps(ctx context.Context, subjectID int64) ([]*entity.ApprovalStep, error) {
	return l.steps.GetBySubjectID(ctx, subjectID)
}

// MaxOrder returns the highest order position used so far.
func (l *Ledger) MaxOrder(ctx context.Context, subjectID int64) (int, error) {
	return l.steps.MaxOrder(ctx, subjectID)
}

// ActivateNext flips the lowest-order queued step to pending and returns it.
// Returns nil when no queued step remains. Fails with a conflict when a
// pending step still exists.
func (l *Ledger) ActivateNext(ctx context.Context, subjectID int64) (*entity.ApprovalStep, error) {
	pending, err := l.steps.CurrentPending(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: subject %d still has a pending step", apperr.ErrConflict, subjectID)
	}

	steps, err := l.steps.GetBySubjectID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		if step.Status != entity.StepStatusQueued {
			continue
		}
		activated, err := l.steps.Activate(ctx, step.ID)
		if err != nil {
			return nil, err
		}
		if !activated {
			return nil, fmt.Errorf("%w: step %d is no longer queued", apperr.ErrConflict, step.ID)
		}
		step.Status = entity.StepStatusPending
		return step, nil
	}
	return nil, nil
}

// Reset discards the subject's entire ledger. Only the explicit
// workflow-recreation path uses this.
func (l *Ledger) Reset(ctx context.Context, subjectID int64) error {
	return l.steps.DeleteBySubjectID(ctx, subjectID)
}
