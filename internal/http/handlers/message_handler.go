// Message history and stats HTTP handlers.
//
// GET /messages returns the append-only message ledger, newest first, with
// pagination and weak ETag support. GET /stats aggregates message outcomes
// and opt-out totals for the dashboard.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akounas/go-sms-backend/internal/domain"
	"github.com/akounas/go-sms-backend/internal/repo"
)

// ListMessagesResponse wraps a page of message records and pagination info.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// StatsResponse aggregates ledger counters for the dashboard.
type StatsResponse struct {
	Messages       map[string]int64 `json:"messages"`
	TotalCustomers int64            `json:"total_customers"`
	OptedOut       int64            `json:"opted_out"`
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List message history (paginated)
// @Description Returns a page of message records, newest first. Supports weak
// @Description ETag via If-None-Match and may return 304.
// @Tags        Messages
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListMessagesResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort). The ledger is append-only, so count plus
	// newest timestamp fully identifies its state.
	if count, maxTS, err := repo.MessagesStats(ctx, h.db); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"messages:%d:%d"`, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	total, err := repo.CountMessages(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, err := repo.ListMessagesPage(ctx, h.db, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetStats godoc
// @ID          getStats
// @Summary     Ledger statistics
// @Description Returns message counts per status plus customer and opt-out totals.
// @Tags        Stats
// @Produce     json
//
// @Success     200  {object}  handlers.StatsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	msgCounts, err := repo.MessageStatusCounts(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	customers, err := repo.CountCustomers(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	optedOut, err := repo.OptedOutCount(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, StatsResponse{
		Messages:       msgCounts,
		TotalCustomers: customers,
		OptedOut:       optedOut,
	})
}
