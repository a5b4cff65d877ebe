// Package discussion implements the forum phase between legal-admin
// acceptance and agreement creation. The gate controls who may speak,
// and closes the forum only after finance has weighed in.
package discussion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/dispatcher"
	"github.com/legalworks/docflow/internal/application/hierarchy"
	"github.com/legalworks/docflow/internal/application/port"
	"github.com/legalworks/docflow/internal/application/workflow"
	"github.com/legalworks/docflow/internal/domain/apperr"
	"github.com/legalworks/docflow/internal/domain/entity"
	"github.com/legalworks/docflow/internal/domain/event"
	"github.com/legalworks/docflow/internal/domain/flow"
)

// Gate mediates discussion-phase access on a document request.
type Gate struct {
	requests   port.DocumentRequestRepository
	comments   port.CommentRepository
	hierarchy  *hierarchy.Resolver
	tx         port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
}

// NewGate creates a discussion gate.
func NewGate(
	requests port.DocumentRequestRepository,
	comments port.CommentRepository,
	resolver *hierarchy.Resolver,
	tx port.TransactionManager,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
) *Gate {
	return &Gate{
		requests:   requests,
		comments:   comments,
		hierarchy:  resolver,
		tx:         tx,
		dispatcher: d,
		logger:     logger,
	}
}

// CanParticipate reports whether a person may comment in any discussion.
// Participation is a capability of the person, not of a particular request.
func (g *Gate) CanParticipate(person *entity.Person) bool {
	if person == nil {
		return false
	}
	return g.hierarchy.HasCapability(person, hierarchy.CapabilityDiscussion)
}

// AddComment posts a comment to a request's open discussion forum. The
// requester may always speak in their own discussion; everyone else needs
// the discussion capability.
func (g *Gate) AddComment(ctx context.Context, requestID int64, actorID, body, attachmentRef string) (*entity.DiscussionComment, error) {
	if body == "" {
		return nil, fmt.Errorf("%w: comment body is required", apperr.ErrValidation)
	}
	req, err := g.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != entity.RequestStatusInDiscussion {
		return nil, fmt.Errorf("%w: request %d is %s, discussion is not open",
			apperr.ErrConflict, requestID, req.Status)
	}
	actor, err := g.hierarchy.Lookup(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, fmt.Errorf("%w: actor %s not found in directory", apperr.ErrPermission, actorID)
	}
	if actor.EmployeeID != req.RequesterID && !g.CanParticipate(actor) {
		return nil, fmt.Errorf("%w: %s may not participate in discussions", apperr.ErrPermission, actorID)
	}

	comment := &entity.DiscussionComment{
		RequestID:     req.ID,
		Round:         req.DiscussionRound,
		AuthorID:      actor.EmployeeID,
		AuthorName:    actor.Name,
		AuthorRole:    actor.Role,
		Body:          body,
		AttachmentRef: attachmentRef,
	}
	if err := g.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	g.emit(ctx, event.TypeDiscussionComment, req.ID, req.RequesterID, map[string]interface{}{
		"request_id": req.ID,
		"author_id":  actor.EmployeeID,
	})
	return comment, nil
}

// CanClose reports whether the forum is closable: finance must have
// commented in the current round, and the round must not be closed yet.
// A director send-back opens a fresh round, so earlier rounds' markers
// and finance comments do not carry over.
func (g *Gate) CanClose(ctx context.Context, requestID int64) (bool, error) {
	req, err := g.getRequest(ctx, requestID)
	if err != nil {
		return false, err
	}
	closed, err := g.comments.HasClosingComment(ctx, requestID, req.DiscussionRound)
	if err != nil {
		return false, err
	}
	if closed {
		return false, nil
	}
	return g.comments.HasFinanceComment(ctx, requestID, req.DiscussionRound)
}

// Close ends the current discussion round and moves the request to
// agreement creation. Only the head of legal may close, and only after
// finance participated in this round. Closing is recorded as a terminal
// comment for the round; a second close of the same round conflicts.
func (g *Gate) Close(ctx context.Context, requestID int64, actorID, summary string) error {
	req, err := g.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	actor, err := g.hierarchy.Lookup(ctx, actorID)
	if err != nil {
		return err
	}
	if actor == nil {
		return fmt.Errorf("%w: actor %s not found in directory", apperr.ErrPermission, actorID)
	}
	if actor.Role != entity.RoleHeadLegal {
		return fmt.Errorf("%w: only the head of legal may close a discussion", apperr.ErrPermission)
	}

	closed, err := g.comments.HasClosingComment(ctx, requestID, req.DiscussionRound)
	if err != nil {
		return err
	}
	if closed {
		return fmt.Errorf("%w: discussion for request %d is already closed", apperr.ErrConflict, requestID)
	}
	hasFinance, err := g.comments.HasFinanceComment(ctx, requestID, req.DiscussionRound)
	if err != nil {
		return err
	}
	if !hasFinance {
		return fmt.Errorf("%w: finance has not commented in this round yet", apperr.ErrValidation)
	}

	machine := workflow.BuildDocumentRequestMachine(req.Status)
	if err := machine.Fire(ctx, flow.TriggerCloseDiscussion); err != nil {
		return fmt.Errorf("close discussion for request %d: %w", requestID, err)
	}

	if summary == "" {
		summary = "Discussion closed."
	}
	err = g.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		closing := &entity.DiscussionComment{
			RequestID:   req.ID,
			Round:       req.DiscussionRound,
			AuthorID:    actor.EmployeeID,
			AuthorName:  actor.Name,
			AuthorRole:  actor.Role,
			Body:        summary,
			ForumClosed: true,
		}
		if err := g.comments.Create(txCtx, closing); err != nil {
			return err
		}
		return g.requests.UpdateStatus(txCtx, req.ID, machine.State().String(), false)
	})
	if err != nil {
		return err
	}

	g.emit(ctx, event.TypeDiscussionClosed, req.ID, req.RequesterID, map[string]interface{}{
		"request_id": req.ID,
		"closed_by":  actor.EmployeeID,
	})
	return nil
}

// Comments lists a request's discussion trail in creation order.
func (g *Gate) Comments(ctx context.Context, requestID int64) ([]*entity.DiscussionComment, error) {
	if _, err := g.getRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return g.comments.GetByRequestID(ctx, requestID)
}

func (g *Gate) getRequest(ctx context.Context, id int64) (*entity.DocumentRequest, error) {
	req, err := g.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: document request %d", apperr.ErrNotFound, id)
	}
	return req, nil
}

func (g *Gate) emit(ctx context.Context, t event.Type, requestID int64, recipient string, payload map[string]interface{}) {
	if g.dispatcher == nil {
		return
	}
	g.dispatcher.DispatchAsync(ctx, event.NewEvent(t, entity.KindDocumentRequest, requestID, recipient, payload))
}
