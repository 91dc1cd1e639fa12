// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model. Messages are append-only: there is deliberately no update function.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/akounas/go-sms-backend/internal/domain"
)

// CreateMessage inserts a new message row recording a single send attempt.
// The row is immutable after this call.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(m).Error
}

// CountMessages returns the total number of message rows.
func CountMessages(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Message{}).Count(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice of messages ordered most recent
// first (CreatedAt DESC, ID ASC for a deterministic tiebreak).
func ListMessagesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListMessagesByBatch returns all messages recorded for a dispatch batch in
// attempt order.
func ListMessagesByBatch(ctx context.Context, db *gorm.DB, batchID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
