package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/discussion"
	"github.com/legalworks/docflow/internal/application/ledger"
	"github.com/legalworks/docflow/internal/application/port"
	"github.com/legalworks/docflow/internal/application/workflow"
	"github.com/legalworks/docflow/internal/domain/apperr"
	"github.com/legalworks/docflow/internal/domain/flow"
)

// actorHeader carries the authenticated employee identity. Authentication
// itself happens upstream; this adapter trusts the header.
const actorHeader = "X-Actor-ID"

// RegisterExporter writes the agreement register to a spreadsheet and
// returns its path.
type RegisterExporter interface {
	Export(ctx context.Context, status string) (string, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	requests   port.DocumentRequestRepository
	agreements port.AgreementRepository
	reqLedger  *ledger.Ledger
	agrLedger  *ledger.Ledger
	requestWF  *workflow.DocumentRequestWorkflow
	agreeWF    *workflow.AgreementWorkflow
	gate       *discussion.Gate
	exporter   RegisterExporter
	logger     *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	requests port.DocumentRequestRepository,
	agreements port.AgreementRepository,
	reqLedger *ledger.Ledger,
	agrLedger *ledger.Ledger,
	requestWF *workflow.DocumentRequestWorkflow,
	agreeWF *workflow.AgreementWorkflow,
	gate *discussion.Gate,
	exporter RegisterExporter,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		requests:   requests,
		agreements: agreements,
		reqLedger:  reqLedger,
		agrLedger:  agrLedger,
		requestWF:  requestWF,
		agreeWF:    agreeWF,
		gate:       gate,
		exporter:   exporter,
		logger:     logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// respondError maps the domain error taxonomy onto HTTP status codes.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrConfiguration):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, flow.ErrInvalidTransition), errors.Is(err, flow.ErrGuardFailed):
		// A stale-state action: the subject moved on since the caller last
		// read it. The wrapped message names the refused transition so the
		// caller can refresh and retry.
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(status, Response{Success: false, Error: "internal error"})
		return
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func (h *Handlers) actor(c *gin.Context) (string, bool) {
	actorID := c.GetHeader(actorHeader)
	if actorID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "missing " + actorHeader + " header"})
		return "", false
	}
	return actorID, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// CreateRequestBody is the payload for POST /api/requests
type CreateRequestBody struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// CreateRequest handles POST /api/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	req, err := h.requestWF.CreateDraft(c.Request.Context(), body.Title, body.Description, actorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: req})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	limit, offset := pagination(c)
	requests, err := h.requests.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: requests})
}

// GetRequest handles GET /api/requests/:id, returning the request together
// with its approval-step ledger.
func (h *Handlers) GetRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	req, err := h.requests.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if req == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "document request not found"})
		return
	}
	steps, err := h.reqLedger.Steps(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"request": req,
		"steps":   steps,
	}})
}

// SubmitRequest handles POST /api/requests/:id/submit
func (h *Handlers) SubmitRequest(c *gin.Context) {
	h.requestAction(c, func(ctx context.Context, id int64, actorID string, _ string) error {
		return h.requestWF.Submit(ctx, id, actorID)
	})
}

// ApproveRequest handles POST /api/requests/:id/approve
func (h *Handlers) ApproveRequest(c *gin.Context) {
	h.requestAction(c, func(ctx context.Context, id int64, actorID, comments string) error {
		return h.requestWF.Approve(ctx, id, actorID, comments)
	})
}

// RejectRequest handles POST /api/requests/:id/reject
func (h *Handlers) RejectRequest(c *gin.Context) {
	h.requestAction(c, func(ctx context.Context, id int64, actorID, reason string) error {
		return h.requestWF.Reject(ctx, id, actorID, reason)
	})
}

// DecisionBody carries the optional comment or mandatory rejection reason
type DecisionBody struct {
	Comments string `json:"comments"`
}

// requestAction factors the shared id/actor/body plumbing of the decision
// endpoints.
func (h *Handlers) requestAction(c *gin.Context, fn func(ctx context.Context, id int64, actorID, comments string) error) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	var body DecisionBody
	_ = c.ShouldBindJSON(&body)

	if err := fn(c.Request.Context(), id, actorID, body.Comments); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// CanApproveRequest handles GET /api/requests/:id/can-approve
func (h *Handlers) CanApproveRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	allowed, err := h.requestWF.CanApprove(c.Request.Context(), id, actorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"can_approve": allowed}})
}

// CommentBody is the payload for POST /api/requests/:id/comments
type CommentBody struct {
	Body          string `json:"body" binding:"required"`
	AttachmentRef string `json:"attachment_ref"`
}

// AddComment handles POST /api/requests/:id/comments
func (h *Handlers) AddComment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	var body CommentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	comment, err := h.gate.AddComment(c.Request.Context(), id, actorID, body.Body, body.AttachmentRef)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: comment})
}

// ListComments handles GET /api/requests/:id/comments
func (h *Handlers) ListComments(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	comments, err := h.gate.Comments(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: comments})
}

// CloseDiscussionBody is the payload for POST /api/requests/:id/discussion/close
type CloseDiscussionBody struct {
	Summary string `json:"summary"`
}

// CloseDiscussion handles POST /api/requests/:id/discussion/close
func (h *Handlers) CloseDiscussion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	var body CloseDiscussionBody
	_ = c.ShouldBindJSON(&body)

	if err := h.gate.Close(c.Request.Context(), id, actorID, body.Summary); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// CreateAgreementBody is the payload for POST /api/agreements
type CreateAgreementBody struct {
	RequestID int64  `json:"request_id" binding:"required"`
	Title     string `json:"title"`
}

// CreateAgreement handles POST /api/agreements
func (h *Handlers) CreateAgreement(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	var body CreateAgreementBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	agr, err := h.agreeWF.CreateFromRequest(c.Request.Context(), body.RequestID, body.Title)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: agr})
}

// ListAgreements handles GET /api/agreements
func (h *Handlers) ListAgreements(c *gin.Context) {
	limit, offset := pagination(c)
	agreements, err := h.agreements.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: agreements})
}

// GetAgreement handles GET /api/agreements/:id, returning the agreement
// with its ledger and chain progress.
func (h *Handlers) GetAgreement(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	agr, err := h.agreements.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if agr == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "agreement not found"})
		return
	}
	steps, err := h.agrLedger.Steps(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"agreement": agr,
		"steps":     steps,
		"progress":  workflow.ProgressPercent(agr.Status),
	}})
}

// CreateAgreementWorkflow handles POST /api/agreements/:id/workflow
func (h *Handlers) CreateAgreementWorkflow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := h.actor(c); !ok {
		return
	}
	if err := h.agreeWF.CreateApprovalWorkflow(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ApproveAgreement handles POST /api/agreements/:id/approve
func (h *Handlers) ApproveAgreement(c *gin.Context) {
	h.requestAction(c, func(ctx context.Context, id int64, actorID, comments string) error {
		return h.agreeWF.Approve(ctx, id, actorID, comments)
	})
}

// RejectAgreement handles POST /api/agreements/:id/reject
func (h *Handlers) RejectAgreement(c *gin.Context) {
	h.requestAction(c, func(ctx context.Context, id int64, actorID, reason string) error {
		return h.agreeWF.Reject(ctx, id, actorID, reason)
	})
}

// CanApproveAgreement handles GET /api/agreements/:id/can-approve
func (h *Handlers) CanApproveAgreement(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	allowed, err := h.agreeWF.CanApprove(c.Request.Context(), id, actorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"can_approve": allowed}})
}

// ExportRegisterBody is the payload for POST /api/agreements/export
type ExportRegisterBody struct {
	Status string `json:"status"`
}

// ExportRegister handles POST /api/agreements/export
func (h *Handlers) ExportRegister(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	var body ExportRegisterBody
	_ = c.ShouldBindJSON(&body)

	path, err := h.exporter.Export(c.Request.Context(), body.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"file": path}})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
