// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Customer
// model: lookups by normalized phone, atomic upserts keyed by phone, segment
// resolution for dispatches, and opt-status updates.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only CRUD persistence and query composition.
// Phone arguments must already be E.164-normalized by the caller.
//
// Error semantics:
//   - When a customer is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/akounas/go-sms-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetCustomerByPhone fetches a customer by their normalized phone number.
// Returns ErrNotFound if no row matches.
func GetCustomerByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).
		Where("phone = ?", phone).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCustomer inserts a customer row or, when a row with the same phone
// already exists, replaces its imported fields (last write wins, no merge).
// The conflict resolution happens inside the database, so concurrent imports
// of the same phone remain correct without application-level locks.
func UpsertCustomer(ctx context.Context, db *gorm.DB, c *domain.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "phone"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"first_name", "points", "previous_points", "recently_redeemed", "updated_at",
			}),
		}).
		Create(c).Error
}

// SetOptedOut updates a single customer's consent flag by normalized phone.
// Returns ErrNotFound when no customer has that phone.
func SetOptedOut(ctx context.Context, db *gorm.DB, phone string, optedOut bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("phone = ?", phone).
		Updates(map[string]any{
			"opted_out":  optedOut,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Segment resolution. Every variant excludes opted-out customers; the
// returned order (creation time ascending) is the order the dispatch engine
// attempts sends in.

// SelectCustomersByIDs resolves a segment from an explicit id set.
func SelectCustomersByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Customer, error) {
	var out []domain.Customer
	err := db.WithContext(ctx).
		Where("id IN ? AND opted_out = ?", ids, false).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// SelectCustomersByPhones resolves a segment from an explicit set of
// normalized phone numbers.
func SelectCustomersByPhones(ctx context.Context, db *gorm.DB, phones []string) ([]domain.Customer, error) {
	var out []domain.Customer
	err := db.WithContext(ctx).
		Where("phone IN ? AND opted_out = ?", phones, false).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// SelectCustomersByMinPoints resolves the segment of customers whose balance
// is at or above threshold.
func SelectCustomersByMinPoints(ctx context.Context, db *gorm.DB, threshold int) ([]domain.Customer, error) {
	var out []domain.Customer
	err := db.WithContext(ctx).
		Where("points >= ? AND opted_out = ?", threshold, false).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountCustomers returns the total number of customer rows.
func CountCustomers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Customer{}).Count(&total).Error
	return total, err
}

// ListCustomersPage returns a paginated slice of customers ordered by
// creation time descending (most recently imported first).
func ListCustomersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Customer, error) {
	var out []domain.Customer
	err := db.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
