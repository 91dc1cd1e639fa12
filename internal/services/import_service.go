// Package services – ImportService
//
// This file implements the customer ledger import. Each incoming record is
// reconciled against the existing row for the same phone: the current balance
// rolls into previousPoints, and a drop across the redemption threshold marks
// the customer as recently redeemed. Writes are atomic per phone; an import
// never spawns duplicate rows for the same number.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/akounas/go-sms-backend/internal/domain"
	"github.com/akounas/go-sms-backend/internal/phone"
	"github.com/akounas/go-sms-backend/internal/repo"
)

// RedemptionThreshold is the balance at or above which a subsequent drop
// below it counts as a redemption.
const RedemptionThreshold = 500

// ImportRecord is one row of an incoming customer snapshot.
type ImportRecord struct {
	FirstName string `json:"first_name"`
	Phone     string `json:"phone"`
	Points    int    `json:"points"`
}

// ImportSummary tallies one import run.
type ImportSummary struct {
	Imported      int      `json:"imported"`
	Failed        int      `json:"failed"`
	InvalidPhones []string `json:"invalidPhones,omitempty"`
}

// Reconciliation is the derived ledger state for one upsert.
type Reconciliation struct {
	PreviousPoints   int
	RecentlyRedeemed bool
}

// Reconcile derives the ledger transition for an incoming balance against
// the existing row, which may be nil for a first-seen phone.
func Reconcile(existing *domain.Customer, incomingPoints int) Reconciliation {
	prev := 0
	if existing != nil {
		prev = existing.Points
	}
	return Reconciliation{
		PreviousPoints:   prev,
		RecentlyRedeemed: prev >= RedemptionThreshold && incomingPoints < RedemptionThreshold,
	}
}

// ImportService ingests customer snapshots from the point-of-sale export.
type ImportService struct {
	DB *gorm.DB
}

// Import reconciles and upserts every record in order. Records with invalid
// phone numbers are tallied and skipped; a persistence failure on one record
// does not stop the rest.
func (s *ImportService) Import(ctx context.Context, records []ImportRecord) (*ImportSummary, error) {
	tr := otel.Tracer("services/ImportService")
	ctx, span := tr.Start(ctx, "Import")
	defer span.End()
	span.SetAttributes(attribute.Int("import.records", len(records)))

	title := cases.Title(language.English)
	summary := &ImportSummary{}

	for _, rec := range records {
		if !phone.IsValid(rec.Phone) {
			summary.Failed++
			summary.InvalidPhones = append(summary.InvalidPhones, rec.Phone)
			importRecords.WithLabelValues("invalid_phone").Inc()
			continue
		}
		normalized := phone.Normalize(rec.Phone)

		existing, err := repo.GetCustomerByPhone(ctx, s.DB, normalized)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			summary.Failed++
			importRecords.WithLabelValues("error").Inc()
			log.Error().Err(err).Msg("import: lookup customer")
			continue
		}

		rc := Reconcile(existing, rec.Points)
		c := &domain.Customer{
			ID:               uuid.NewString(),
			FirstName:        title.String(strings.ToLower(strings.TrimSpace(rec.FirstName))),
			Phone:            normalized,
			Points:           rec.Points,
			PreviousPoints:   rc.PreviousPoints,
			RecentlyRedeemed: rc.RecentlyRedeemed,
		}
		if existing != nil {
			c.ID = existing.ID
			c.OptedOut = existing.OptedOut
		}

		if err := repo.UpsertCustomer(ctx, s.DB, c); err != nil {
			summary.Failed++
			importRecords.WithLabelValues("error").Inc()
			log.Error().Err(err).Msg("import: upsert customer")
			continue
		}
		summary.Imported++
		importRecords.WithLabelValues("imported").Inc()
	}

	return summary, nil
}
