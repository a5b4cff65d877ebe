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

// AgreementWorkflow drives an agreement overview through its fixed
// five-step chain: supervisor, finance, legal, then two director
// signatures. Unlike the document-request engine it materializes the whole
// ledger up front, with approvers resolved eagerly.
type AgreementWorkflow struct {
	agreements  port.AgreementRepository
	requests    port.DocumentRequestRepository
	comments    port.CommentRepository
	steps       *ledger.Ledger
	hierarchy   *hierarchy.Resolver
	attachments port.AttachmentStore
	tx          port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      *zap.Logger
}

// NewAgreementWorkflow creates the agreement engine.
func NewAgreementWorkflow(
	agreements port.AgreementRepository,
	requests port.DocumentRequestRepository,
	comments port.CommentRepository,
	steps *ledger.Ledger,
	resolver *hierarchy.Resolver,
	attachments port.AttachmentStore,
	tx port.TransactionManager,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
) *AgreementWorkflow {
	return &AgreementWorkflow{
		agreements:  agreements,
		requests:    requests,
		comments:    comments,
		steps:       steps,
		hierarchy:   resolver,
		attachments: attachments,
		tx:          tx,
		dispatcher:  d,
		logger:      logger,
	}
}

// CreateFromRequest creates a draft agreement overview from a document
// request whose discussion has closed, carrying discussion attachments
// forward into the agreement's ownership.
func (w *AgreementWorkflow) CreateFromRequest(ctx context.Context, requestID int64, title string) (*entity.AgreementOverview, error) {
	req, err := w.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: document request %d", apperr.ErrNotFound, requestID)
	}
	if req.Status != entity.RequestStatusAgreementCreation {
		return nil, fmt.Errorf("%w: request %d is %s, not ready for agreement creation",
			apperr.ErrConflict, requestID, req.Status)
	}
	existing, err := w.agreements.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: request %d already has agreement %d", apperr.ErrConflict, requestID, existing.ID)
	}

	if title == "" {
		title = req.Title
	}
	agr := &entity.AgreementOverview{
		RequestID:     req.ID,
		Title:         title,
		RequesterID:   req.RequesterID,
		RequesterName: req.RequesterName,
		Division:      req.Division,
		Status:        entity.AgreementStatusDraft,
		IsDraft:       true,
	}
	if err := w.agreements.Create(ctx, agr); err != nil {
		return nil, err
	}

	w.carryAttachmentsForward(ctx, req.ID, agr.ID)

	w.emit(ctx, event.TypeAgreementCreated, agr.ID, req.RequesterID, map[string]interface{}{
		"agreement_id": agr.ID,
		"request_id":   req.ID,
		"title":        agr.Title,
	})
	return agr, nil
}

// CreateApprovalWorkflow (re)creates the five-step ledger. Any pre-existing
// steps are discarded first, so a rerun produces an identical fresh chain.
// Approvers are resolved eagerly; only a missing supervisor blocks, the
// rest fall back to the sentinel identity.
func (w *AgreementWorkflow) CreateApprovalWorkflow(ctx context.Context, agreementID int64) error {
	agr, err := w.getAgreement(ctx, agreementID)
	if err != nil {
		return err
	}

	machine := BuildAgreementMachine(agr.Status)
	if err := machine.Fire(ctx, flow.TriggerSubmit); err != nil {
		return fmt.Errorf("start agreement %d workflow: %w", agreementID, err)
	}

	supervisor, err := w.hierarchy.SupervisorOf(ctx, agr.RequesterID)
	if err != nil {
		return err
	}
	if supervisor == nil {
		return fmt.Errorf("%w: no active supervisor configured for requester %s", apperr.ErrConfiguration, agr.RequesterID)
	}
	finance, err := w.hierarchy.FindApprover(ctx, entity.ApprovalTypeHeadFinance, agr.Division)
	if err != nil {
		return err
	}
	legal, err := w.hierarchy.FindApprover(ctx, entity.ApprovalTypeHeadLegal, agr.Division)
	if err != nil {
		return err
	}
	director1, err := w.hierarchy.FindApprover(ctx, entity.ApprovalTypeDirectorSupervisor, agr.Division)
	if err != nil {
		return err
	}
	director2, err := w.hierarchy.FindSecondDirector(ctx, director1.EmployeeID, agr.Division)
	if err != nil {
		return err
	}

	now := time.Now()
	err = w.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := w.steps.Reset(txCtx, agr.ID); err != nil {
			return err
		}
		if _, err := w.steps.AppendStep(txCtx, agr.ID, entity.ApprovalTypeSupervisor, supervisor); err != nil {
			return err
		}
		chain := []struct {
			approvalType string
			approver     *entity.Person
		}{
			{entity.ApprovalTypeHeadFinance, finance},
			{entity.ApprovalTypeHeadLegal, legal},
			{entity.ApprovalTypeDirectorSupervisor, director1},
			{entity.ApprovalTypeSelectedDirector, director2},
		}
		for _, link := range chain {
			if _, err := w.steps.AppendQueued(txCtx, agr.ID, link.approvalType, link.approver); err != nil {
				return err
			}
		}
		if err := w.agreements.UpdateStatus(txCtx, agr.ID, machine.State().String(), false); err != nil {
			return err
		}
		return w.agreements.SetSubmittedAt(txCtx, agr.ID, now)
	})
	if err != nil {
		return err
	}

	w.emit(ctx, event.TypeStepAssigned, agr.ID, supervisor.EmployeeID, map[string]interface{}{
		"agreement_id":  agr.ID,
		"approval_type": entity.ApprovalTypeSupervisor,
	})
	return nil
}

// Approve resolves the current pending step and activates the next one, or
// finalizes the agreement after the last director signature. When both
// director steps resolve to the same person, approving the first director
// step auto-approves the second in the same transaction; the second record
// stays in the ledger for audit purposes.
func (w *AgreementWorkflow) Approve(ctx context.Context, agreementID int64, actorID, comments string) error {
	agr, err := w.getAgreement(ctx, agreementID)
	if err != nil {
		return err
	}
	pending, err := w.steps.CurrentPendingStep(ctx, agr.ID)
	if err != nil {
		return err
	}
	if pending == nil {
		return fmt.Errorf("%w: agreement %d has no pending approval step", apperr.ErrConflict, agreementID)
	}
	actor, err := w.requireActor(ctx, actorID)
	if err != nil {
		return err
	}
	if err := w.checkApprovalAuthority(ctx, agr, pending, actor); err != nil {
		return err
	}

	machine := BuildAgreementMachine(agr.Status)
	if err := machine.Fire(ctx, flow.TriggerApprove); err != nil {
		return fmt.Errorf("approve agreement %d: %w", agreementID, err)
	}

	now := time.Now()
	var nextStep *entity.ApprovalStep
	var completedReq *entity.DocumentRequest
	finalized := false

	err = w.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := w.steps.ResolveStep(txCtx, pending, ledger.OutcomeApprove, comments); err != nil {
			return err
		}
		next, err := w.steps.ActivateNext(txCtx, agr.ID)
		if err != nil {
			return err
		}

		// Same-person director rule: the second signature is satisfied by
		// the identity that just signed the first director step.
		if next != nil &&
			pending.ApprovalType == entity.ApprovalTypeDirectorSupervisor &&
			next.ApprovalType == entity.ApprovalTypeSelectedDirector &&
			next.ApproverID == actor.EmployeeID {
			if err := w.steps.ResolveStep(txCtx, next, ledger.OutcomeApprove,
				"auto-approved: same approver as preceding director step"); err != nil {
				return err
			}
			if err := machine.Fire(txCtx, flow.TriggerApprove); err != nil {
				return err
			}
			next = nil
		}

		if next == nil {
			if machine.State().String() == entity.AgreementStatusApproved {
				finalized = true
				if err := w.agreements.SetCompletedAt(txCtx, agr.ID, now); err != nil {
					return err
				}
				req, err := w.finalizeSourceRequest(txCtx, agr.RequestID, now)
				if err != nil {
					return err
				}
				completedReq = req
			}
		}
		nextStep = next
		return w.agreements.UpdateStatus(txCtx, agr.ID, machine.State().String(), false)
	})
	if err != nil {
		return err
	}

	w.emit(ctx, event.TypeAgreementApproved, agr.ID, agr.RequesterID, map[string]interface{}{
		"agreement_id": agr.ID,
		"approved_by":  actor.EmployeeID,
		"status":       machine.State().String(),
		"final":        finalized,
	})
	if nextStep != nil {
		w.emit(ctx, event.TypeStepAssigned, agr.ID, nextStep.ApproverID, map[string]interface{}{
			"agreement_id":  agr.ID,
			"approval_type": nextStep.ApprovalType,
		})
	}
	if completedReq != nil && w.dispatcher != nil {
		w.dispatcher.DispatchAsync(ctx, event.NewEvent(
			event.TypeRequestCompleted, entity.KindDocumentRequest, completedReq.ID,
			completedReq.RequesterID, map[string]interface{}{
				"request_id":   completedReq.ID,
				"agreement_id": agr.ID,
			}))
	}
	return nil
}

// Reject resolves the current pending step as rejected. Director-tier
// rejection redirects the agreement to REDISCUSS and reopens the source
// request's discussion; earlier tiers terminate the agreement.
func (w *AgreementWorkflow) Reject(ctx context.Context, agreementID int64, actorID, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: rejection requires a reason", apperr.ErrValidation)
	}
	agr, err := w.getAgreement(ctx, agreementID)
	if err != nil {
		return err
	}
	pending, err := w.steps.CurrentPendingStep(ctx, agr.ID)
	if err != nil {
		return err
	}
	if pending == nil {
		return fmt.Errorf("%w: agreement %d has no pending approval step", apperr.ErrConflict, agreementID)
	}
	actor, err := w.requireActor(ctx, actorID)
	if err != nil {
		return err
	}
	if err := w.checkApprovalAuthority(ctx, agr, pending, actor); err != nil {
		return err
	}

	machine := BuildAgreementMachine(agr.Status)
	if err := machine.Fire(ctx, flow.TriggerReject); err != nil {
		return fmt.Errorf("reject agreement %d: %w", agreementID, err)
	}
	newStatus := machine.State().String()

	err = w.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := w.steps.ResolveStep(txCtx, pending, ledger.OutcomeReject, reason); err != nil {
			return err
		}
		if err := w.agreements.SetRejectReason(txCtx, agr.ID, reason); err != nil {
			return err
		}
		if newStatus == entity.AgreementStatusRediscuss {
			if err := w.reopenSourceRequest(txCtx, agr.RequestID, actor, reason); err != nil {
				return err
			}
		}
		return w.agreements.UpdateStatus(txCtx, agr.ID, newStatus, false)
	})
	if err != nil {
		return err
	}

	eventType := event.TypeAgreementRejected
	if newStatus == entity.AgreementStatusRediscuss {
		eventType = event.TypeAgreementRediscuss
	}
	w.emit(ctx, eventType, agr.ID, agr.RequesterID, map[string]interface{}{
		"agreement_id": agr.ID,
		"rejected_by":  actor.EmployeeID,
		"reason":       reason,
		"status":       newStatus,
	})
	return nil
}

// CanApprove reports whether the actor may act on the agreement's current
// pending step, without acting. It applies the same same-person director
// rule as Approve.
func (w *AgreementWorkflow) CanApprove(ctx context.Context, agreementID int64, actorID string) (bool, error) {
	agr, err := w.getAgreement(ctx, agreementID)
	if err != nil {
		return false, err
	}
	pending, err := w.steps.CurrentPendingStep(ctx, agr.ID)
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
	if err := w.checkApprovalAuthority(ctx, agr, pending, actor); err != nil {
		if errors.Is(err, apperr.ErrPermission) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ProgressPercent maps an agreement status to a display percentage. Pure
// function, no side effects.
func ProgressPercent(status string) int {
	switch status {
	case entity.AgreementStatusDraft:
		return 0
	case entity.AgreementStatusPendingHead:
		return 15
	case entity.AgreementStatusPendingFinance:
		return 30
	case entity.AgreementStatusPendingLegal:
		return 50
	case entity.AgreementStatusPendingDirector1:
		return 70
	case entity.AgreementStatusPendingDirector2:
		return 85
	case entity.AgreementStatusRediscuss:
		return 40
	case entity.AgreementStatusApproved, entity.AgreementStatusRejected:
		return 100
	default:
		return 0
	}
}

func (w *AgreementWorkflow) checkApprovalAuthority(ctx context.Context, agr *entity.AgreementOverview, step *entity.ApprovalStep, actor *entity.Person) error {
	if actor.EmployeeID == agr.RequesterID {
		return fmt.Errorf("%w: requester cannot approve their own agreement", apperr.ErrPermission)
	}
	if step.ApproverID == actor.EmployeeID {
		return nil
	}

	switch agr.Status {
	case entity.AgreementStatusPendingHead:
		if actor.Division == agr.Division &&
			(actor.Role == entity.RoleSupervisor || w.hierarchy.IsSeniorManagerLevel(actor)) {
			return nil
		}
	case entity.AgreementStatusPendingFinance:
		if w.hierarchy.HasCapability(actor, hierarchy.CapabilityFinance) {
			return nil
		}
	case entity.AgreementStatusPendingLegal:
		if w.hierarchy.HasCapability(actor, hierarchy.CapabilityLegal) {
			return nil
		}
	case entity.AgreementStatusPendingDirector1:
		if actor.Role == entity.RoleDirector {
			return nil
		}
	case entity.AgreementStatusPendingDirector2:
		if actor.Role == entity.RoleDirector {
			return nil
		}
		// The identity that signed the first director step also satisfies
		// the second, mirroring the auto-approval rule.
		if ok, err := w.approvedFirstDirectorStep(ctx, agr.ID, actor.EmployeeID); err != nil {
			return err
		} else if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is neither the assigned approver nor authorized for status %s",
		apperr.ErrPermission, actor.EmployeeID, agr.Status)
}

func (w *AgreementWorkflow) approvedFirstDirectorStep(ctx context.Context, agreementID int64, actorID string) (bool, error) {
	steps, err := w.steps.Steps(ctx, agreementID)
	if err != nil {
		return false, err
	}
	for _, s := range steps {
		if s.ApprovalType == entity.ApprovalTypeDirectorSupervisor &&
			s.Status == entity.StepStatusApproved &&
			s.ApproverID == actorID {
			return true, nil
		}
	}
	return false, nil
}

// finalizeSourceRequest completes the linked document request once the
// agreement is fully approved. Returns the completed request, or nil when
// there was nothing to complete.
func (w *AgreementWorkflow) finalizeSourceRequest(txCtx context.Context, requestID int64, now time.Time) (*entity.DocumentRequest, error) {
	if requestID == 0 {
		return nil, nil
	}
	req, err := w.requests.GetByID(txCtx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, nil
	}
	machine := BuildDocumentRequestMachine(req.Status)
	if err := machine.Fire(txCtx, flow.TriggerComplete); err != nil {
		// Already completed or in an unexpected state; the agreement's own
		// finalization still stands.
		w.logger.Warn("source request not completable",
			zap.Int64("request_id", requestID),
			zap.String("status", req.Status),
			zap.Error(err))
		return nil, nil
	}
	if err := w.requests.SetCompletedAt(txCtx, requestID, now); err != nil {
		return nil, err
	}
	if err := w.requests.UpdateStatus(txCtx, requestID, machine.State().String(), false); err != nil {
		return nil, err
	}
	return req, nil
}

// reopenSourceRequest sends the linked document request back into
// discussion after a director-tier rejection. The send-back opens a new
// forum round: the previous round's closing marker and finance comments
// stay in the trail but no longer count, so the discussion can be closed
// again once finance has weighed in on the rework.
func (w *AgreementWorkflow) reopenSourceRequest(txCtx context.Context, requestID int64, actor *entity.Person, reason string) error {
	if requestID == 0 {
		return nil
	}
	req, err := w.requests.GetByID(txCtx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}
	machine := BuildDocumentRequestMachine(req.Status)
	if err := machine.Fire(txCtx, flow.TriggerRediscuss); err != nil {
		w.logger.Warn("source request not reopenable",
			zap.Int64("request_id", requestID),
			zap.String("status", req.Status),
			zap.Error(err))
		return nil
	}
	if err := w.requests.IncrementDiscussionRound(txCtx, req.ID); err != nil {
		return err
	}
	reopening := &entity.DiscussionComment{
		RequestID:  req.ID,
		Round:      req.DiscussionRound + 1,
		AuthorID:   actor.EmployeeID,
		AuthorName: actor.Name,
		AuthorRole: actor.Role,
		Body:       fmt.Sprintf("Agreement sent back to discussion by director decision: %s", reason),
		System:     true,
	}
	if err := w.comments.Create(txCtx, reopening); err != nil {
		return err
	}
	return w.requests.UpdateStatus(txCtx, req.ID, machine.State().String(), false)
}

// carryAttachmentsForward copies discussion attachments into the new
// agreement's ownership. Best effort: a failed copy is logged, never fatal.
func (w *AgreementWorkflow) carryAttachmentsForward(ctx context.Context, requestID, agreementID int64) {
	if w.attachments == nil {
		return
	}
	comments, err := w.comments.GetByRequestID(ctx, requestID)
	if err != nil {
		w.logger.Error("listing discussion attachments failed",
			zap.Int64("request_id", requestID), zap.Error(err))
		return
	}
	owner := fmt.Sprintf("agreements/%d", agreementID)
	for _, c := range comments {
		if c.AttachmentRef == "" {
			continue
		}
		if _, err := w.attachments.Copy(ctx, port.FileRef{Path: c.AttachmentRef}, owner); err != nil {
			w.logger.Error("carrying attachment forward failed",
				zap.Int64("request_id", requestID),
				zap.String("ref", c.AttachmentRef),
				zap.Error(err))
		}
	}
}

func (w *AgreementWorkflow) getAgreement(ctx context.Context, id int64) (*entity.AgreementOverview, error) {
	agr, err := w.agreements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if agr == nil {
		return nil, fmt.Errorf("%w: agreement %d", apperr.ErrNotFound, id)
	}
	return agr, nil
}

func (w *AgreementWorkflow) requireActor(ctx context.Context, actorID string) (*entity.Person, error) {
	actor, err := w.hierarchy.Lookup(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, fmt.Errorf("%w: actor %s not found in directory", apperr.ErrPermission, actorID)
	}
	return actor, nil
}

func (w *AgreementWorkflow) emit(ctx context.Context, t event.Type, agreementID int64, recipient string, payload map[string]interface{}) {
	if w.dispatcher == nil {
		return
	}
	w.dispatcher.DispatchAsync(ctx, event.NewEvent(t, entity.KindAgreementOverview, agreementID, recipient, payload))
}
