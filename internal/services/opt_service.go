// Package services – OptService
//
// This file implements inbound keyword processing for consent management.
// STOP-family keywords opt a customer out of marketing sends; START-family
// keywords opt them back in; anything else is ignored. The inbound webhook
// must always acknowledge the carrier, so every failure here is swallowed
// after logging: the caller only ever sees the fixed TwiML reply.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"

	"github.com/akounas/go-sms-backend/internal/phone"
	"github.com/akounas/go-sms-backend/internal/repo"
)

// TwiMLAck is the fixed empty TwiML response returned for every inbound
// message, regardless of outcome.
const TwiMLAck = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type optAction int

const (
	actionNone optAction = iota
	actionOptOut
	actionOptIn
)

// classify maps a raw inbound body to a consent action. Matching is
// case-insensitive on the trimmed body as a whole; embedded keywords do not
// count.
func classify(body string) optAction {
	switch strings.ToUpper(strings.TrimSpace(body)) {
	case "STOP", "UNSUBSCRIBE", "END", "QUIT":
		return actionOptOut
	case "START", "SUBSCRIBE", "YES":
		return actionOptIn
	default:
		return actionNone
	}
}

// OptService applies consent keywords from inbound messages to the ledger.
type OptService struct {
	DB *gorm.DB
}

// HandleInbound processes one inbound message. It never returns an error:
// unknown keywords and unknown senders are silent no-ops, and database
// failures are logged and dropped so the webhook can still acknowledge.
func (s *OptService) HandleInbound(ctx context.Context, from, body string) {
	tr := otel.Tracer("services/OptService")
	ctx, span := tr.Start(ctx, "HandleInbound")
	defer span.End()

	action := classify(body)
	if action == actionNone {
		optTransitions.WithLabelValues("ignored").Inc()
		return
	}

	normalized := phone.Normalize(from)
	optedOut := action == actionOptOut

	if err := repo.SetOptedOut(ctx, s.DB, normalized, optedOut); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			optTransitions.WithLabelValues("unknown_sender").Inc()
			log.Debug().Msg("opt keyword from unknown sender")
			return
		}
		optTransitions.WithLabelValues("error").Inc()
		log.Error().Err(err).Bool("opted_out", optedOut).Msg("apply opt status")
		return
	}

	label := "opt_in"
	if optedOut {
		label = "opt_out"
	}
	optTransitions.WithLabelValues(label).Inc()
	log.Info().Bool("opted_out", optedOut).Msg("opt status updated")
}
