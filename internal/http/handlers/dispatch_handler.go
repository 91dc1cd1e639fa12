// Dispatch HTTP handlers.
//
// This file exposes REST endpoints for outbound message dispatch:
//   - POST /messages/send   (synchronous batch send, idempotent via header)
//   - POST /batches         (asynchronous batch send, pollable)
//   - GET  /batches/{id}    (poll a batch)
//   - GET  /compliance      (current sending-window decision)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. The send endpoint keeps the
// success/error envelope the point-of-sale client integrates against; the
// rest use the standard ErrorResponse envelope.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/akounas/go-sms-backend/internal/compliance"
	"github.com/akounas/go-sms-backend/internal/domain"
	"github.com/akounas/go-sms-backend/internal/http/middleware"
	"github.com/akounas/go-sms-backend/internal/repo"
	"github.com/akounas/go-sms-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// DispatchService defines the dispatch operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type DispatchService interface {
	// Dispatch runs a batch synchronously and returns the aggregate result.
	Dispatch(ctx context.Context, sel services.Selector, template string) (*services.BatchResult, error)
	// StartBatch runs a batch on a background worker and returns the pollable row.
	StartBatch(ctx context.Context, sel services.Selector, template string) (*domain.DispatchBatch, error)
	// GetBatch returns a batch and its per-customer outcomes.
	GetBatch(ctx context.Context, id string) (*domain.DispatchBatch, []services.SendResult, error)
	// ReplayBatch reconstructs the aggregate result of a completed batch.
	ReplayBatch(ctx context.Context, id string) (*services.BatchResult, error)
	// CheckWindow reports the current sending-window decision.
	CheckWindow(ctx context.Context) (compliance.Decision, time.Time, time.Time, error)
}

// ImportService defines customer snapshot ingestion.
type ImportService interface {
	Import(ctx context.Context, records []services.ImportRecord) (*services.ImportSummary, error)
}

// OptService defines inbound consent keyword processing. It never fails from
// the caller's perspective.
type OptService interface {
	HandleInbound(ctx context.Context, from, body string)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for dispatch, imports, customers,
// messages, and the inbound webhook. It depends on abstract service
// interfaces to keep transport concerns separate from business logic; the DB
// handle is used only for read-side queries (listings, stats, idempotency).
type Handlers struct {
	dispatchSvc DispatchService
	importSvc   ImportService
	optSvc      OptService

	db       *gorm.DB
	idempTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(dispatchSvc DispatchService, importSvc ImportService, optSvc OptService, db *gorm.DB, idempTTL time.Duration) *Handlers {
	if idempTTL <= 0 {
		idempTTL = 24 * time.Hour
	}
	return &Handlers{
		dispatchSvc: dispatchSvc,
		importSvc:   importSvc,
		optSvc:      optSvc,
		db:          db,
		idempTTL:    idempTTL,
	}
}

//
// DTOs
//

// SendMessagesRequest selects a customer segment and the message template.
// Exactly one of CustomerIDs, Phones, or PointsThreshold must be provided.
type SendMessagesRequest struct {
	CustomerIDs     []string `json:"customerIds,omitempty"`
	Phones          []string `json:"phoneNumbers,omitempty"`
	PointsThreshold *int     `json:"pointsThreshold,omitempty"`
	// Message is the template; {name} and {points} are substituted per customer.
	Message string `json:"messageBody" binding:"required" example:"Hi {name}, you have {points} points!"`
}

func (r SendMessagesRequest) selector() services.Selector {
	return services.Selector{
		CustomerIDs:     r.CustomerIDs,
		Phones:          r.Phones,
		PointsThreshold: r.PointsThreshold,
	}
}

// SendMessagesResponse is the envelope of the synchronous send endpoint.
type SendMessagesResponse struct {
	Success        bool                  `json:"success"`
	TotalCustomers int                   `json:"totalCustomers,omitempty"`
	Results        []services.SendResult `json:"results,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// BatchResponse is the pollable view of an asynchronous dispatch.
type BatchResponse struct {
	ID          string                `json:"id"`
	Status      string                `json:"status"`
	Total       int                   `json:"total"`
	Sent        int                   `json:"sent"`
	Failed      int                   `json:"failed"`
	Reason      string                `json:"reason,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Results     []services.SendResult `json:"results,omitempty"`
}

func batchResponse(b *domain.DispatchBatch, results []services.SendResult) BatchResponse {
	resp := BatchResponse{
		ID:          b.ID,
		Status:      b.Status,
		Total:       b.Total,
		Sent:        b.Sent,
		Failed:      b.Failed,
		CreatedAt:   b.CreatedAt,
		StartedAt:   b.StartedAt,
		CompletedAt: b.CompletedAt,
		Results:     results,
	}
	if b.Reason != nil {
		resp.Reason = *b.Reason
	}
	return resp
}

// ComplianceResponse reports the current sending-window decision.
type ComplianceResponse struct {
	Allowed     bool      `json:"allowed"`
	Reason      string    `json:"reason,omitempty"`
	Now         time.Time `json:"now"`
	NextAllowed time.Time `json:"next_allowed"`
}

//
// Handlers
//

// SendMessages godoc
// @ID          sendMessages
// @Summary     Send a message to a customer segment
// @Description Runs a synchronous, sequential dispatch to the selected segment.
// @Description Exactly one of customerIds, phoneNumbers, or pointsThreshold selects the segment.
// @Description Supply an Idempotency-Key header to make retries safe: a repeated key
// @Description replays the recorded outcome instead of re-sending.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Client-chosen key for safe retries"
// @Param       body             body    handlers.SendMessagesRequest  true  "Segment and template"
//
// @Success     200  {object}  handlers.SendMessagesResponse
// @Failure     400  {object}  handlers.SendMessagesResponse  "Validation failure"
// @Failure     403  {object}  handlers.SendMessagesResponse  "Outside the sending window"
// @Failure     503  {object}  handlers.SendMessagesResponse  "Gateway not configured"
// @Router      /messages/send [post]
func (h *Handlers) SendMessages(c *gin.Context) {
	var req SendMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid JSON body: messageBody is required")
		return
	}
	ctx := c.Request.Context()

	// Idempotent replay: a known key short-circuits to the recorded outcome.
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if key != "" {
		if rec, err := repo.GetIdempotency(ctx, h.db, key, time.Now().UTC()); err == nil {
			if replay, err := h.dispatchSvc.ReplayBatch(ctx, rec.BatchID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, SendMessagesResponse{
					Success:        true,
					TotalCustomers: replay.TotalCustomers,
					Results:        replay.Results,
				})
				return
			}
		}
	}

	res, err := h.dispatchSvc.Dispatch(ctx, req.selector(), req.Message)
	if err != nil {
		status, msg := dispatchErrorStatus(err)
		sendError(c, status, msg)
		return
	}

	if key != "" {
		if _, err := repo.CreateIdempotency(ctx, h.db, key, res.BatchID, h.idempTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			// Best effort; the dispatch already happened.
			middleware.LoggerFrom(c).Warn().Err(err).Msg("record idempotency key")
		}
	}

	ok(c, http.StatusOK, SendMessagesResponse{
		Success:        true,
		TotalCustomers: res.TotalCustomers,
		Results:        res.Results,
	})
}

// CreateBatch godoc
// @ID          createBatch
// @Summary     Start an asynchronous dispatch
// @Description Validates the request, creates a pollable batch, and runs the
// @Description dispatch on a background worker. Compliance and credential
// @Description failures surface on the batch row rather than this response.
// @Tags        Batches
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SendMessagesRequest  true  "Segment and template"
//
// @Success     202  {object}  handlers.BatchResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /batches [post]
func (h *Handlers) CreateBatch(c *gin.Context) {
	var req SendMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: messageBody is required")
		return
	}

	batch, err := h.dispatchSvc.StartBatch(c.Request.Context(), req.selector(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoSelector),
			errors.Is(err, services.ErrAmbiguousSelector),
			errors.Is(err, services.ErrEmptyMessageBody):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeDispatchFailed, err.Error())
		}
		return
	}

	c.Header("Location", c.FullPath()+"/"+batch.ID)
	ok(c, http.StatusAccepted, batchResponse(batch, nil))
}

// GetBatch godoc
// @ID          getBatch
// @Summary     Poll a dispatch batch
// @Description Returns the batch state and, once attempts exist, the
// @Description per-customer outcomes.
// @Tags        Batches
// @Produce     json
//
// @Param       id  path  string  true  "Batch ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.BatchResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Batch not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /batches/{id} [get]
func (h *Handlers) GetBatch(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "batch id must be a UUID")
		return
	}

	batch, results, err := h.dispatchSvc.GetBatch(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrBatchNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "batch not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, batchResponse(batch, results))
}

// GetCompliance godoc
// @ID          getCompliance
// @Summary     Current sending-window decision
// @Description Reports whether a dispatch started now would be allowed, and
// @Description the next instant sending opens, in store-local time.
// @Tags        Compliance
// @Produce     json
//
// @Success     200  {object}  handlers.ComplianceResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /compliance [get]
func (h *Handlers) GetCompliance(c *gin.Context) {
	decision, next, now, err := h.dispatchSvc.CheckWindow(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ComplianceResponse{
		Allowed:     decision.Allowed,
		Reason:      decision.Reason,
		Now:         now,
		NextAllowed: next,
	})
}

//
// Helpers
//

// sendError writes the dispatch endpoint's failure envelope.
func sendError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, SendMessagesResponse{Success: false, Error: msg})
}

// dispatchErrorStatus maps dispatch precondition errors to HTTP statuses.
func dispatchErrorStatus(err error) (int, string) {
	var cerr *services.ComplianceError
	switch {
	case errors.As(err, &cerr):
		return http.StatusForbidden, cerr.Error()
	case errors.Is(err, services.ErrGatewayNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, services.ErrNoSelector),
		errors.Is(err, services.ErrAmbiguousSelector),
		errors.Is(err, services.ErrEmptyMessageBody):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
