// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate/statistics queries for the
// dashboard API and for conditional responses (ETag generation) in the HTTP
// layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/akounas/go-sms-backend/internal/domain"
)

// MessageStatusCounts returns the number of message rows per status plus the
// overall total. Statuses with no rows are present with a zero count.
func MessageStatusCounts(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	counts := map[string]int64{
		domain.MessageStatusPending: 0,
		domain.MessageStatusSent:    0,
		domain.MessageStatusFailed:  0,
		domain.MessageStatusSkipped: 0,
	}

	var rows []struct {
		Status string
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var total int64
	for _, r := range rows {
		if _, ok := counts[r.Status]; ok {
			counts[r.Status] = r.N
		}
		total += r.N
	}
	counts["total"] = total
	return counts, nil
}

// OptedOutCount returns the number of customers who have opted out.
func OptedOutCount(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("opted_out = ?", true).
		Count(&n).Error
	return n, err
}

// MessagesStats returns aggregate metadata for the message ledger: the total
// row count and the greatest CreatedAt among them (nil when empty). Used for
// ETag generation on the history endpoint.
func MessagesStats(ctx context.Context, db *gorm.DB) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
