// Package services – DispatchService
//
// This file implements the DispatchService, the engine behind outbound
// marketing sends. A dispatch gates on the legal sending window, resolves the
// target customer segment, then walks it strictly in order: personalize the
// template, call the SMS gateway, and append one immutable message record per
// attempt. A fixed inter-message interval throttles the loop; a single
// customer's failure is recorded and never aborts the remaining batch.
//
// Precondition failures (bad selector, blocked window, missing credentials)
// abort the whole batch before the first send with zero persisted records.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// batch identifiers and segment sizes.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/akounas/go-sms-backend/internal/compliance"
	"github.com/akounas/go-sms-backend/internal/compose"
	"github.com/akounas/go-sms-backend/internal/domain"
	"github.com/akounas/go-sms-backend/internal/phone"
	"github.com/akounas/go-sms-backend/internal/repo"
	"github.com/akounas/go-sms-backend/internal/twilio"
)

// Gateway is the outbound SMS collaborator: an opaque network call with
// exactly two outcome shapes, the assigned message id or an error.
type Gateway interface {
	Send(ctx context.Context, to, from, body string) (string, error)
}

// GatewayFactory builds a Gateway from the credentials read at dispatch time.
// Credentials are fetched fresh per batch and never cached across them.
type GatewayFactory func(accountSID, authToken string) Gateway

// Selector identifies the target segment of a dispatch. Exactly one field
// must be populated; anything else is a validation failure with no side
// effects.
type Selector struct {
	CustomerIDs     []string
	Phones          []string
	PointsThreshold *int
}

// Validate enforces the exactly-one rule.
func (s Selector) Validate() error {
	n := 0
	if len(s.CustomerIDs) > 0 {
		n++
	}
	if len(s.Phones) > 0 {
		n++
	}
	if s.PointsThreshold != nil {
		n++
	}
	switch n {
	case 0:
		return ErrNoSelector
	case 1:
		return nil
	default:
		return ErrAmbiguousSelector
	}
}

// SendResult is the per-customer outcome within a batch.
type SendResult struct {
	Phone  string `json:"phone"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BatchResult aggregates a finished (or replayed) dispatch.
type BatchResult struct {
	BatchID        string       `json:"batch_id"`
	TotalCustomers int          `json:"totalCustomers"`
	Results        []SendResult `json:"results"`
}

// DispatchService coordinates compliance gating, segment resolution, and the
// throttled send loop. One invocation is one sequential worker; independent
// batches may run concurrently with no shared in-process state.
type DispatchService struct {
	// DB is the GORM handle used for settings, segments, and message records.
	DB *gorm.DB

	// NewGateway builds the SMS gateway from per-batch credentials.
	// Defaults to the Twilio REST client when nil.
	NewGateway GatewayFactory

	// Location is the store's time zone; the compliance window is evaluated
	// in store-local civil time, not UTC.
	Location *time.Location

	// SendInterval is the fixed delay between consecutive sends in a batch.
	SendInterval time.Duration
	// SendTimeout bounds each individual gateway call.
	SendTimeout time.Duration

	// Now is a clock seam for tests; defaults to time.Now.
	Now func() time.Time

	// Background is the base context adopted by asynchronous batches so they
	// outlive the request that started them. Defaults to context.Background.
	Background context.Context
}

// dispatchPlan is the outcome of the precondition phase: the resolved
// segment and a ready gateway.
type dispatchPlan struct {
	customers []domain.Customer
	from      string
	gw        Gateway
}

// Dispatch runs a batch synchronously and returns the aggregate result.
// Precondition failures are returned as errors (sentinels or a
// *ComplianceError) and leave no persisted records.
func (s *DispatchService) Dispatch(ctx context.Context, sel Selector, template string) (*BatchResult, error) {
	tr := otel.Tracer("services/DispatchService")
	ctx, span := tr.Start(ctx, "Dispatch")
	defer span.End()

	plan, err := s.plan(ctx, sel, template)
	if err != nil {
		return nil, err
	}

	batch, err := repo.CreateBatch(ctx, s.DB, template)
	if err != nil {
		return nil, err
	}

	// Once the batch row exists every write uses a detached context: a client
	// disconnect mid-batch must not lose records for sends that went out.
	persist := context.WithoutCancel(ctx)
	if err := repo.MarkBatchRunning(persist, s.DB, batch.ID, len(plan.customers)); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("batch.id", batch.ID),
		attribute.Int("batch.total", len(plan.customers)),
	)

	results := s.run(ctx, persist, batch.ID, plan, template)
	s.finish(persist, batch.ID, results)

	return &BatchResult{
		BatchID:        batch.ID,
		TotalCustomers: len(plan.customers),
		Results:        results,
	}, nil
}

// StartBatch creates a pollable batch record and runs the dispatch on a
// background worker. Precondition failures surface on the batch row as
// "blocked" (compliance) or "failed" (anything else) rather than as an
// error, except for selector/body validation which fails fast.
func (s *DispatchService) StartBatch(ctx context.Context, sel Selector, template string) (*domain.DispatchBatch, error) {
	tr := otel.Tracer("services/DispatchService")
	ctx, span := tr.Start(ctx, "StartBatch")
	defer span.End()

	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(template) == "" {
		return nil, ErrEmptyMessageBody
	}

	batch, err := repo.CreateBatch(ctx, s.DB, template)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("batch.id", batch.ID))

	go s.runAsync(batch.ID, sel, template)
	return batch, nil
}

// runAsync executes one queued batch to its terminal state.
func (s *DispatchService) runAsync(batchID string, sel Selector, template string) {
	ctx := s.background()

	plan, err := s.plan(ctx, sel, template)
	if err != nil {
		status := domain.BatchStatusFailed
		var cerr *ComplianceError
		if errors.As(err, &cerr) {
			status = domain.BatchStatusBlocked
		}
		reason := err.Error()
		if ferr := repo.FinishBatch(ctx, s.DB, batchID, status, 0, 0, &reason); ferr != nil {
			log.Error().Err(ferr).Str("batch_id", batchID).Msg("finalize blocked batch")
		}
		dispatchBatches.WithLabelValues(status).Inc()
		return
	}

	if err := repo.MarkBatchRunning(ctx, s.DB, batchID, len(plan.customers)); err != nil {
		log.Error().Err(err).Str("batch_id", batchID).Msg("mark batch running")
	}
	results := s.run(ctx, context.WithoutCancel(ctx), batchID, plan, template)
	s.finish(context.WithoutCancel(ctx), batchID, results)
}

// GetBatch returns a batch with its per-customer outcomes for polling.
func (s *DispatchService) GetBatch(ctx context.Context, id string) (*domain.DispatchBatch, []SendResult, error) {
	batch, err := repo.GetBatch(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrBatchNotFound
		}
		return nil, nil, err
	}
	msgs, err := repo.ListMessagesByBatch(ctx, s.DB, id)
	if err != nil {
		return nil, nil, err
	}
	return batch, resultsFromMessages(msgs), nil
}

// ReplayBatch reconstructs the aggregate result of a previously completed
// batch, used to serve idempotent retries of the send endpoint.
func (s *DispatchService) ReplayBatch(ctx context.Context, id string) (*BatchResult, error) {
	batch, results, err := s.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BatchResult{
		BatchID:        batch.ID,
		TotalCustomers: batch.Total,
		Results:        results,
	}, nil
}

// CheckWindow reports the current compliance decision and the next allowed
// instant in store-local time.
func (s *DispatchService) CheckWindow(ctx context.Context) (compliance.Decision, time.Time, time.Time, error) {
	cfg, err := repo.GetComplianceConfig(ctx, s.DB)
	if err != nil {
		return compliance.Decision{}, time.Time{}, time.Time{}, err
	}
	now := s.now()
	return compliance.Check(now, cfg), compliance.NextAllowed(now, cfg), now, nil
}

// plan runs the precondition phase: selector and template validation, the
// compliance gate, credential checks, and segment resolution. No records are
// written here.
func (s *DispatchService) plan(ctx context.Context, sel Selector, template string) (*dispatchPlan, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(template) == "" {
		return nil, ErrEmptyMessageBody
	}

	cfg, err := repo.GetComplianceConfig(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if decision := compliance.Check(now, cfg); !decision.Allowed {
		return nil, &ComplianceError{
			Reason:      decision.Reason,
			NextAllowed: compliance.NextAllowed(now, cfg),
		}
	}

	creds, err := repo.GetTwilioCredentials(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if !creds.Complete() {
		return nil, ErrGatewayNotConfigured
	}

	customers, err := s.resolveSegment(ctx, sel)
	if err != nil {
		return nil, err
	}

	return &dispatchPlan{
		customers: customers,
		from:      creds.PhoneNumber,
		gw:        s.gateway(creds),
	}, nil
}

// resolveSegment queries the segment for the single populated selector.
// Opted-out customers are excluded by the repository layer.
func (s *DispatchService) resolveSegment(ctx context.Context, sel Selector) ([]domain.Customer, error) {
	switch {
	case len(sel.CustomerIDs) > 0:
		return repo.SelectCustomersByIDs(ctx, s.DB, sel.CustomerIDs)
	case len(sel.Phones) > 0:
		normalized := make([]string, len(sel.Phones))
		for i, p := range sel.Phones {
			normalized[i] = phone.Normalize(p)
		}
		return repo.SelectCustomersByPhones(ctx, s.DB, normalized)
	default:
		return repo.SelectCustomersByMinPoints(ctx, s.DB, *sel.PointsThreshold)
	}
}

// run walks the resolved segment strictly in order, one send at a time. The
// limiter suspends the worker between sends without busy-waiting; when ctx is
// cancelled mid-batch the remaining customers are recorded as skipped so
// every resolved customer still yields exactly one record. Only the limiter
// and gateway waits honor ctx; rows are written through persist, which must
// survive the cancellation.
func (s *DispatchService) run(ctx, persist context.Context, batchID string, plan *dispatchPlan, template string) []SendResult {
	limiter := rate.NewLimiter(rate.Every(s.interval()), 1)
	results := make([]SendResult, 0, len(plan.customers))

	cancelled := false
	for _, c := range plan.customers {
		if !cancelled {
			if err := limiter.Wait(ctx); err != nil {
				cancelled = true
			}
		}
		if cancelled {
			results = append(results, s.record(persist, batchID, &c, domain.MessageStatusSkipped, "", "dispatch interrupted", template))
			continue
		}

		body := compose.Render(template, compose.Values{Name: c.FirstName, Points: c.Points})

		sendCtx, cancel := context.WithTimeout(ctx, s.timeout())
		sid, err := plan.gw.Send(sendCtx, c.Phone, plan.from, body)
		cancel()

		if err != nil {
			results = append(results, s.recordBody(persist, batchID, &c, domain.MessageStatusFailed, "", err.Error(), body))
			continue
		}
		results = append(results, s.recordBody(persist, batchID, &c, domain.MessageStatusSent, sid, "", body))
	}
	return results
}

// record renders the body before persisting; used for skipped attempts where
// the send loop never composed one.
func (s *DispatchService) record(ctx context.Context, batchID string, c *domain.Customer, status, sid, errText, template string) SendResult {
	body := compose.Render(template, compose.Values{Name: c.FirstName, Points: c.Points})
	return s.recordBody(ctx, batchID, c, status, sid, errText, body)
}

// recordBody appends the immutable message row for one attempt and returns
// the per-customer result. A persistence failure is logged but does not
// disturb the batch: the attempt outcome stands.
func (s *DispatchService) recordBody(ctx context.Context, batchID string, c *domain.Customer, status, sid, errText, body string) SendResult {
	msg := &domain.Message{
		CustomerID: &c.ID,
		BatchID:    &batchID,
		Phone:      c.Phone,
		Body:       body,
		Status:     status,
	}
	if sid != "" {
		msg.TwilioSID = &sid
	}
	if errText != "" {
		msg.ErrorMessage = &errText
	}
	if status == domain.MessageStatusSent {
		now := time.Now().UTC()
		msg.SentAt = &now
	}
	if err := repo.CreateMessage(ctx, s.DB, msg); err != nil {
		log.Error().Err(err).
			Str("batch_id", batchID).
			Str("status", status).
			Msg("persist message record")
	}
	smsAttempts.WithLabelValues(status).Inc()

	return SendResult{Phone: c.Phone, Status: status, Error: errText}
}

// finish writes the batch's terminal state and tallies.
func (s *DispatchService) finish(ctx context.Context, batchID string, results []SendResult) {
	var sent, failed int
	for _, r := range results {
		switch r.Status {
		case domain.MessageStatusSent:
			sent++
		case domain.MessageStatusFailed:
			failed++
		}
	}
	if err := repo.FinishBatch(ctx, s.DB, batchID, domain.BatchStatusCompleted, sent, failed, nil); err != nil {
		log.Error().Err(err).Str("batch_id", batchID).Msg("finalize batch")
	}
	dispatchBatches.WithLabelValues(domain.BatchStatusCompleted).Inc()
}

// resultsFromMessages projects persisted message rows back into the
// per-customer outcome shape.
func resultsFromMessages(msgs []domain.Message) []SendResult {
	out := make([]SendResult, len(msgs))
	for i, m := range msgs {
		r := SendResult{Phone: m.Phone, Status: m.Status}
		if m.ErrorMessage != nil {
			r.Error = *m.ErrorMessage
		}
		out[i] = r
	}
	return out
}

// --- defaults ---

func (s *DispatchService) gateway(creds repo.TwilioCredentials) Gateway {
	if s.NewGateway != nil {
		return s.NewGateway(creds.AccountSID, creds.AuthToken)
	}
	return twilio.NewClient(creds.AccountSID, creds.AuthToken)
}

func (s *DispatchService) now() time.Time {
	t := time.Now()
	if s.Now != nil {
		t = s.Now()
	}
	if s.Location != nil {
		return t.In(s.Location)
	}
	return t
}

func (s *DispatchService) interval() time.Duration {
	if s.SendInterval > 0 {
		return s.SendInterval
	}
	return 100 * time.Millisecond
}

func (s *DispatchService) timeout() time.Duration {
	if s.SendTimeout > 0 {
		return s.SendTimeout
	}
	return 10 * time.Second
}

func (s *DispatchService) background() context.Context {
	if s.Background != nil {
		return s.Background
	}
	return context.Background()
}
