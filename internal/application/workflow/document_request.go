package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/dispatcher"
	"github.com/legalworks/docflow/internal/application/hierarchy"
	"github.com/legalworks/docflow/internal/application/ledger"
	"github.com/legalworks/docflow/internal/application/port"
	"github.com/legalworks/docflow/internal/domain/apperr"
	"github.com/legalworks/docflow/internal/domain/entity"
	"github.com/legalworks/docflow/internal/domain/event"
	"github.com/legalworks/docflow/internal/domain/flow"
)

// DocumentRequestWorkflow drives a document request from draft through
// supervisor/manager approval and legal-admin approval into the discussion
// phase. Steps are created lazily, one at a time, as each step resolves.
type DocumentRequestWorkflow struct {
	requests   port.DocumentRequestRepository
	steps      *ledger.Ledger
	comments   port.CommentRepository
	hierarchy  *hierarchy.Resolver
	tx         port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
}

// NewDocumentRequestWorkflow creates the document-request engine.
func NewDocumentRequestWorkflow(
	requests port.DocumentRequestRepository,
	steps *ledger.Ledger,
	comments port.CommentRepository,
	resolver *hierarchy.Resolver,
	tx port.TransactionManager,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
) *DocumentRequestWorkflow {
	return &DocumentRequestWorkflow{
		requests:   requests,
		steps:      steps,
		comments:   comments,
		hierarchy:  resolver,
		tx:         tx,
		dispatcher: d,
		logger:     logger,
	}
}

// CreateDraft registers a new draft request with the requester's org
// attributes snapshotted from the directory.
func (w *DocumentRequestWorkflow) CreateDraft(ctx context.Context, title, description, requesterID string) (*entity.DocumentRequest, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperr.ErrValidation)
	}
	requester, err := w.hierarchy.Lookup(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, fmt.Errorf("%w: requester %s not found in directory", apperr.ErrValidation, requesterID)
	}

	req := &entity.DocumentRequest{
		Title:           title,
		Description:     description,
		RequesterID:     requester.EmployeeID,
		RequesterName:   requester.Name,
		Division:        requester.Division,
		Status:          entity.RequestStatusDraft,
		IsDraft:         true,
		DiscussionRound: 1,
	}
	if err := w.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	w.logger.Info("document request drafted",
		zap.Int64("request_id", req.ID),
		zap.String("requester_id", req.RequesterID))
	return req, nil
}

// Submit moves a draft into the approval chain. The requester's supervisor
// is resolved before the atomic unit of work; a missing supervisor is a
// fatal configuration error.
func (w *DocumentRequestWorkflow) Submit(ctx context.Context, requestID int64, actorID string) error {
	req, err := w.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if actorID != req.RequesterID {
		return fmt.Errorf("%w: only the requester may submit request %d", apperr.ErrPermission, requestID)
	}

	machine := BuildDocumentRequestMachine(req.Status)
	if err := machine.Fire(ctx, flow.TriggerSubmit); err != nil {
		return fmt.Errorf("submit request %d: %w", requestID, err)
	}

	supervisor, err := w.hierarchy.SupervisorOf(ctx, req.RequesterID)
	if err != nil {
		return err
	}
	if supervisor == nil {
		return fmt.Errorf("%w: no active supervisor configured for requester %s", apperr.ErrConfiguration, req.RequesterID)
	}

	now := time.Now()
	err = w.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := w.steps.AppendStep(txCtx, req.ID, entity.ApprovalTypeSupervisor, supervisor); err != nil {
			return err
		}
		if err := w.requests.UpdateStatus(txCtx, req.ID, machine.State().String(), false); err != nil {
			return err
		}
		return w.requests.SetSubmittedAt(txCtx, req.ID, now)
	})
	if err != nil {
		return err
	}

	w.emit(ctx, event.TypeRequestSubmitted, req.ID, supervisor.EmployeeID, map[string]interface{}{
		"request_id": req.ID,
		"requester":  req.RequesterID,
		"title":      req.Title,
	})
	return nil
}

// Approve resolves the current pending step and routes to the next tier.
// A senior-manager-level supervisor skips the general-manager tier; legal
// admin approval opens the discussion phase.
func (w *DocumentRequestWorkflow) Approve(ctx context.Context, requestID int64, actorID, comments string) error {
	req, err := w.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	pending, err := w.steps.CurrentPendingStep(ctx, req.ID)
	if err != nil {
		return err
	}
	if pending == nil {
		return fmt.Errorf("%w: request %d has no pending approval step", apperr.ErrConflict, requestID)
	}
	actor, err := w.requireActor(ctx, actorID)
	if err != nil {
		return err
	}
	if err := w.checkApprovalAuthority(req, pending, actor); err != nil {
		return err
	}

	// Resolve directory facts before entering the atomic unit of work.
	senior := false
	nextType := ""
	switch pending.ApprovalType {
	case entity.ApprovalTypeSupervisor:
		senior = w.hierarchy.IsSeniorManagerLevel(actor)
		if senior {
			nextType = entity.ApprovalTypeAdminLegal
		} else {
			nextType = entity.ApprovalTypeGeneralManager
		}
	case entity.ApprovalTypeGeneralManager:
		nextType = entity.ApprovalTypeAdminLegal
	case entity.ApprovalTypeAdminLegal:
		// Discussion phase opens; no further ledger steps.
	default:
		return fmt.Errorf("%w: unexpected approval type %s on request %d", apperr.ErrConfiguration, pending.ApprovalType, requestID)
	}

	var nextApprover *entity.Person
	if nextType != "" {
		if nextApprover, err = w.hierarchy.FindApprover(ctx, nextType, req.Division); err != nil {
			return err
		}
	}

	machine := BuildDocumentRequestMachine(req.Status)
	if err := machine.Fire(WithSeniorApprover(ctx, senior), flow.TriggerApprove); err != nil {
		return fmt.Errorf("approve request %d: %w", requestID, err)
	}
	newStatus := machine.State().String()

	err = w.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := w.steps.ResolveStep(txCtx, pending, ledger.OutcomeApprove, comments); err != nil {
			return err
		}
		if nextApprover != nil {
			if _, err := w.steps.AppendStep(txCtx, req.ID, nextType, nextApprover); err != nil {
				return err
			}
		} else {
			opening := &entity.DiscussionComment{
				RequestID:  req.ID,
				Round:      req.DiscussionRound,
				AuthorID:   actor.EmployeeID,
				AuthorName: actor.Name,
				AuthorRole: actor.Role,
				Body:       fmt.Sprintf("Discussion opened for %q. Legal, finance and management participants may now comment.", req.Title),
				System:     true,
			}
			if err := w.comments.Create(txCtx, opening); err != nil {
				return err
			}
		}
		return w.requests.UpdateStatus(txCtx, req.ID, newStatus, false)
	})
	if err != nil {
		return err
	}

	w.emit(ctx, event.TypeRequestApproved, req.ID, req.RequesterID, map[string]interface{}{
		"request_id":  req.ID,
		"approved_by": actor.EmployeeID,
		"status":      newStatus,
	})
	if nextApprover != nil {
		w.emit(ctx, event.TypeStepAssigned, req.ID, nextApprover.EmployeeID, map[string]interface{}{
			"request_id":    req.ID,
			"approval_type": nextType,
		})
	} else {
		w.emit(ctx, event.TypeDiscussionOpened, req.ID, req.RequesterID, map[string]interface{}{
			"request_id": req.ID,
		})
	}
	return nil
}

// Reject terminates the request at the current pending step. A reason is
// mandatory and is validated before any ledger mutation.
func (w *DocumentRequestWorkflow) Reject(ctx context.Context, requestID int64, actorID, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: rejection requires a reason", apperr.ErrValidation)
	}
	req, err := w.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	pending, err := w.steps.CurrentPendingStep(ctx, req.ID)
	if err != nil {
		return err
	}
	if pending == nil {
		return fmt.Errorf("%w: request %d has no pending approval step", apperr.ErrConflict, requestID)
	}
	actor, err := w.requireActor(ctx, actorID)
	if err != nil {
		return err
	}
	if err := w.checkApprovalAuthority(req, pending, actor); err != nil {
		return err
	}

	machine := BuildDocumentRequestMachine(req.Status)
	if err := machine.Fire(ctx, flow.TriggerReject); err != nil {
		return fmt.Errorf("reject request %d: %w", requestID, err)
	}

	err = w.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := w.steps.ResolveStep(txCtx, pending, ledger.OutcomeReject, reason); err != nil {
			return err
		}
		if err := w.requests.SetRejectReason(txCtx, req.ID, reason); err != nil {
			return err
		}
		return w.requests.UpdateStatus(txCtx, req.ID, machine.State().String(), false)
	})
	if err != nil {
		return err
	}

	w.emit(ctx, event.TypeRequestRejected, req.ID, req.RequesterID, map[string]interface{}{
		"request_id":  req.ID,
		"rejected_by": actor.EmployeeID,
		"reason":      reason,
	})
	return nil
}

// CanApprove reports whether the actor may act on the request's current
// pending step, without acting.
func (w *DocumentRequestWorkflow) CanApprove(ctx context.Context, requestID int64, actorID string) (bool, error) {
	req, err := w.getRequest(ctx, requestID)
	if err != nil {
		return false, err
	}
	pending, err := w.steps.CurrentPendingStep(ctx, req.ID)
	if err != nil {
		return false, err
	}
	if pending == nil {
		return false, nil
	}
	actor, err := w.hierarchy.Lookup(ctx, actorID)
	if err != nil {
		return false, err
	}
	if actor == nil {
		return false, nil
	}
	if err := w.checkApprovalAuthority(req, pending, actor); err != nil {
		if errors.Is(err, apperr.ErrPermission) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// checkApprovalAuthority enforces the permission predicate: the actor must
// not be the requester, and must either hold the pending step or
// independently satisfy the role/division rule for the current status.
func (w *DocumentRequestWorkflow) checkApprovalAuthority(req *entity.DocumentRequest, step *entity.ApprovalStep, actor *entity.Person) error {
	if actor.EmployeeID == req.RequesterID {
		return fmt.Errorf("%w: requester cannot approve their own request", apperr.ErrPermission)
	}
	if step.ApproverID == actor.EmployeeID {
		return nil
	}

	switch req.Status {
	case entity.RequestStatusPendingSupervisor:
		if actor.Division == req.Division &&
			(actor.Role == entity.RoleSupervisor || w.hierarchy.IsSeniorManagerLevel(actor)) {
			return nil
		}
	case entity.RequestStatusPendingGM:
		if w.hierarchy.IsSeniorManagerLevel(actor) {
			return nil
		}
	case entity.RequestStatusPendingLegalAdmin:
		if w.hierarchy.HasCapability(actor, hierarchy.CapabilityLegal) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is neither the assigned approver nor authorized for status %s",
		apperr.ErrPermission, actor.EmployeeID, req.Status)
}

func (w *DocumentRequestWorkflow) getRequest(ctx context.Context, id int64) (*entity.DocumentRequest, error) {
	req, err := w.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: document request %d", apperr.ErrNotFound, id)
	}
	return req, nil
}

func (w *DocumentRequestWorkflow) requireActor(ctx context.Context, actorID string) (*entity.Person, error) {
	actor, err := w.hierarchy.Lookup(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, fmt.Errorf("%w: actor %s not found in directory", apperr.ErrPermission, actorID)
	}
	return actor, nil
}

func (w *DocumentRequestWorkflow) emit(ctx context.Context, t event.Type, requestID int64, recipient string, payload map[string]interface{}) {
	if w.dispatcher == nil {
		return
	}
	w.dispatcher.DispatchAsync(ctx, event.NewEvent(t, entity.KindDocumentRequest, requestID, recipient, payload))
}
