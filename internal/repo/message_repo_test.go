package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/akounas/go-sms-backend/internal/domain"
)

func newMessageRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("message_repo_test_%d.db", time.Now().UnixNano()))
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
	if err := db.AutoMigrate(&domain.Message{}, &domain.Customer{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func strPtr(s string) *string { return &s }

func seedMessages(t *testing.T, db *gorm.DB, batchID string, n int) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < n; i++ {
		m := &domain.Message{
			BatchID:   strPtr(batchID),
			Phone:     fmt.Sprintf("+1555123%04d", i),
			Body:      fmt.Sprintf("message %d", i),
			Status:    domain.MessageStatusSent,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := CreateMessage(ctx, db, m); err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
	}
}

func TestCreateMessage_SetsIDAndCreatedAt(t *testing.T) {
	db := newMessageRepoDB(t)

	m := &domain.Message{Phone: "+15551230001", Body: "Hi", Status: domain.MessageStatusFailed}
	if err := CreateMessage(context.Background(), db, m); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" || m.CreatedAt.IsZero() {
		t.Fatalf("fields not populated: %+v", m)
	}
}

func TestListMessagesPage_NewestFirst(t *testing.T) {
	db := newMessageRepoDB(t)
	seedMessages(t, db, "b1", 3)

	got, err := ListMessagesPage(context.Background(), db, 0, 2)
	if err != nil {
		t.Fatalf("ListMessagesPage: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("page len = %d", len(got))
	}
	if got[0].Body != "message 2" || got[1].Body != "message 1" {
		t.Fatalf("page order = [%q, %q]", got[0].Body, got[1].Body)
	}

	total, err := CountMessages(context.Background(), db)
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d", total)
	}
}

func TestListMessagesByBatch_AttemptOrder(t *testing.T) {
	db := newMessageRepoDB(t)
	seedMessages(t, db, "b1", 3)
	seedMessages(t, db, "b2", 1)

	got, err := ListMessagesByBatch(context.Background(), db, "b1")
	if err != nil {
		t.Fatalf("ListMessagesByBatch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("batch size = %d, want 3", len(got))
	}
	for i, m := range got {
		if m.Body != fmt.Sprintf("message %d", i) {
			t.Fatalf("attempt %d = %q", i, m.Body)
		}
	}
}

func TestMessageStatusCounts(t *testing.T) {
	db := newMessageRepoDB(t)
	ctx := context.Background()

	for _, status := range []string{
		domain.MessageStatusSent,
		domain.MessageStatusSent,
		domain.MessageStatusFailed,
		domain.MessageStatusSkipped,
	} {
		m := &domain.Message{Phone: "+15551230001", Body: "Hi", Status: status}
		if err := CreateMessage(ctx, db, m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	counts, err := MessageStatusCounts(ctx, db)
	if err != nil {
		t.Fatalf("MessageStatusCounts: %v", err)
	}
	want := map[string]int64{
		domain.MessageStatusPending: 0,
		domain.MessageStatusSent:    2,
		domain.MessageStatusFailed:  1,
		domain.MessageStatusSkipped: 1,
		"total":                     4,
	}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("counts[%q] = %d, want %d", k, counts[k], v)
		}
	}
}

func TestMessagesStats(t *testing.T) {
	db := newMessageRepoDB(t)
	ctx := context.Background()

	count, maxTS, err := MessagesStats(ctx, db)
	if err != nil {
		t.Fatalf("MessagesStats: %v", err)
	}
	if count != 0 || maxTS != nil {
		t.Fatalf("empty ledger: count=%d maxTS=%v", count, maxTS)
	}

	seedMessages(t, db, "b1", 2)
	count, maxTS, err = MessagesStats(ctx, db)
	if err != nil {
		t.Fatalf("MessagesStats: %v", err)
	}
	if count != 2 || maxTS == nil {
		t.Fatalf("count=%d maxTS=%v", count, maxTS)
	}
}
