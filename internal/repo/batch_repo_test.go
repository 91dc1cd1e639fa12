package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/akounas/go-sms-backend/internal/domain"
)

func newBatchRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("batch_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.DispatchBatch{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCreateBatch_StartsQueued(t *testing.T) {
	db := newBatchRepoDB(t)

	b, err := CreateBatch(context.Background(), db, "Hi {name}")
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if b.ID == "" || b.Status != domain.BatchStatusQueued || b.Template != "Hi {name}" {
		t.Fatalf("batch = %+v", b)
	}
	if b.StartedAt != nil || b.CompletedAt != nil {
		t.Fatalf("fresh batch carries progress timestamps: %+v", b)
	}
}

func TestBatchLifecycle_RunningThenCompleted(t *testing.T) {
	db := newBatchRepoDB(t)
	ctx := context.Background()

	b, err := CreateBatch(ctx, db, "Hi")
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	if err := MarkBatchRunning(ctx, db, b.ID, 3); err != nil {
		t.Fatalf("MarkBatchRunning: %v", err)
	}
	got, err := GetBatch(ctx, db, b.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if got.Status != domain.BatchStatusRunning || got.Total != 3 || got.StartedAt == nil {
		t.Fatalf("running batch = %+v", got)
	}

	if err := FinishBatch(ctx, db, b.ID, domain.BatchStatusCompleted, 2, 1, nil); err != nil {
		t.Fatalf("FinishBatch: %v", err)
	}
	got, err = GetBatch(ctx, db, b.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if got.Status != domain.BatchStatusCompleted || got.Sent != 2 || got.Failed != 1 {
		t.Fatalf("finished batch = %+v", got)
	}
	if got.CompletedAt == nil || got.Reason != nil {
		t.Fatalf("finished batch = %+v", got)
	}
}

func TestFinishBatch_BlockedRecordsReason(t *testing.T) {
	db := newBatchRepoDB(t)
	ctx := context.Background()

	b, err := CreateBatch(ctx, db, "Hi")
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	reason := "outside business hours"
	if err := FinishBatch(ctx, db, b.ID, domain.BatchStatusBlocked, 0, 0, &reason); err != nil {
		t.Fatalf("FinishBatch: %v", err)
	}

	got, err := GetBatch(ctx, db, b.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if got.Status != domain.BatchStatusBlocked || got.Reason == nil || *got.Reason != reason {
		t.Fatalf("blocked batch = %+v", got)
	}
}

func TestGetBatch_NotFound(t *testing.T) {
	db := newBatchRepoDB(t)

	_, err := GetBatch(context.Background(), db, "094b5621-9d50-44aa-8ab2-3aa33f38d0d5")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
