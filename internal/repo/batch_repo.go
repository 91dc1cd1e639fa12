// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for DispatchBatch
// rows, the pollable job records behind asynchronous dispatches.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/akounas/go-sms-backend/internal/domain"
)

// CreateBatch inserts a new dispatch batch in the queued state.
func CreateBatch(ctx context.Context, db *gorm.DB, template string) (*domain.DispatchBatch, error) {
	b := &domain.DispatchBatch{
		ID:        uuid.NewString(),
		Status:    domain.BatchStatusQueued,
		Template:  template,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// GetBatch fetches a dispatch batch by ID, or ErrNotFound.
func GetBatch(ctx context.Context, db *gorm.DB, id string) (*domain.DispatchBatch, error) {
	var b domain.DispatchBatch
	if err := db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// MarkBatchRunning transitions a batch to running and records its segment size.
func MarkBatchRunning(ctx context.Context, db *gorm.DB, id string, total int) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.DispatchBatch{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.BatchStatusRunning,
			"total":      total,
			"started_at": now,
		}).Error
}

// FinishBatch records a batch's terminal state and tallies. reason may be nil
// for completed batches.
func FinishBatch(ctx context.Context, db *gorm.DB, id, status string, sent, failed int, reason *string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.DispatchBatch{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"sent":         sent,
			"failed":       failed,
			"reason":       reason,
			"completed_at": now,
		}).Error
}
