package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/akounas/go-sms-backend/internal/domain"
	"github.com/akounas/go-sms-backend/internal/repo"
)

func listingRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	h := New(stubDispatchSvc{}, stubImportSvc{}, &stubOptSvc{}, db, time.Hour)
	r := gin.New()
	r.GET("/customers", h.ListCustomers)
	r.GET("/messages", h.ListMessages)
	r.GET("/stats", h.GetStats)
	return r
}

func get(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func seedCustomers(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		c := &domain.Customer{
			FirstName: fmt.Sprintf("Customer%02d", i),
			Phone:     fmt.Sprintf("+1555123%04d", i),
			Points:    100 * i,
		}
		if err := repo.UpsertCustomer(ctx, db, c); err != nil {
			t.Fatalf("seed customer %d: %v", i, err)
		}
	}
}

func TestListCustomers_Pagination(t *testing.T) {
	db := newHandlerDB(t)
	seedCustomers(t, db, 5)
	r := listingRouter(t, db)

	w := get(r, "/customers?page=1&page_size=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp ListCustomersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Customers) != 2 {
		t.Fatalf("page len = %d, want 2", len(resp.Customers))
	}
	p := resp.Pagination
	if p.Total != 5 || p.TotalPages != 3 || !p.HasNext || p.Page != 1 || p.PageSize != 2 {
		t.Fatalf("pagination = %+v", p)
	}

	// Last page has no next.
	w = get(r, "/customers?page=3&page_size=2", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Customers) != 1 || resp.Pagination.HasNext {
		t.Fatalf("last page = %d items, has_next = %v", len(resp.Customers), resp.Pagination.HasNext)
	}
}

func TestListCustomers_PhoneDisplay(t *testing.T) {
	db := newHandlerDB(t)
	if err := repo.UpsertCustomer(context.Background(), db, &domain.Customer{
		FirstName: "Ann", Phone: "+12125551234", Points: 50,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := listingRouter(t, db)

	var resp ListCustomersResponse
	w := get(r, "/customers", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Customers) != 1 {
		t.Fatalf("customers = %d", len(resp.Customers))
	}
	got := resp.Customers[0]
	if got.Phone != "+12125551234" || got.PhoneDisplay != "+1 (212) 555-1234" {
		t.Fatalf("phone = %q, display = %q", got.Phone, got.PhoneDisplay)
	}
}

func TestListCustomers_ClampsPageSize(t *testing.T) {
	db := newHandlerDB(t)
	seedCustomers(t, db, 3)
	r := listingRouter(t, db)

	var resp ListCustomersResponse
	w := get(r, "/customers?page=0&page_size=9999", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Pagination.Page != 1 || resp.Pagination.PageSize != 100 {
		t.Fatalf("pagination = %+v", resp.Pagination)
	}
}

func seedMessage(t *testing.T, db *gorm.DB, status string) {
	t.Helper()
	m := &domain.Message{
		Phone:  "+15551230001",
		Body:   "Hi Ann, you have 600 points",
		Status: status,
	}
	if err := repo.CreateMessage(context.Background(), db, m); err != nil {
		t.Fatalf("seed message: %v", err)
	}
}

func TestListMessages_ETag(t *testing.T) {
	db := newHandlerDB(t)
	seedMessage(t, db, domain.MessageStatusSent)
	seedMessage(t, db, domain.MessageStatusFailed)
	r := listingRouter(t, db)

	w := get(r, "/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag header")
	}

	var resp ListMessagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Messages) != 2 || resp.Pagination.Total != 2 {
		t.Fatalf("resp = %+v", resp)
	}

	// Unchanged ledger replays as 304.
	w = get(r, "/messages", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", w.Code)
	}

	// A new row invalidates the tag.
	seedMessage(t, db, domain.MessageStatusSent)
	w = get(r, "/messages", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 after append", w.Code)
	}
	if w.Header().Get("ETag") == etag {
		t.Fatalf("ETag did not change after append")
	}
}

func TestGetStats(t *testing.T) {
	db := newHandlerDB(t)
	ctx := context.Background()

	seedCustomers(t, db, 3)
	if err := repo.SetOptedOut(ctx, db, "+15551230000", true); err != nil {
		t.Fatalf("opt out: %v", err)
	}
	seedMessage(t, db, domain.MessageStatusSent)
	seedMessage(t, db, domain.MessageStatusSent)
	seedMessage(t, db, domain.MessageStatusFailed)

	r := listingRouter(t, db)
	w := get(r, "/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.TotalCustomers != 3 || resp.OptedOut != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Messages[domain.MessageStatusSent] != 2 || resp.Messages[domain.MessageStatusFailed] != 1 {
		t.Fatalf("message counts = %v", resp.Messages)
	}
}
