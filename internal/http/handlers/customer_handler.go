// Customer HTTP handlers.
//
// GET /customers lists the ledger, most recently imported first, with
// pagination. Phone numbers are returned both raw (E.164) and in display
// form for the dashboard.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akounas/go-sms-backend/internal/domain"
	"github.com/akounas/go-sms-backend/internal/phone"
	"github.com/akounas/go-sms-backend/internal/repo"
	"github.com/akounas/go-sms-backend/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// CustomerView is the API projection of a ledger row.
type CustomerView struct {
	ID               string `json:"id"`
	FirstName        string `json:"first_name"`
	Phone            string `json:"phone"`
	PhoneDisplay     string `json:"phone_display"`
	Points           int    `json:"points"`
	PreviousPoints   int    `json:"previous_points"`
	RecentlyRedeemed bool   `json:"recently_redeemed"`
	OptedOut         bool   `json:"opted_out"`
}

// ListCustomersResponse wraps a page of customers and pagination info.
type ListCustomersResponse struct {
	Customers  []CustomerView `json:"customers"`
	Pagination Pagination     `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

func customerView(c domain.Customer) CustomerView {
	return CustomerView{
		ID:               c.ID,
		FirstName:        c.FirstName,
		Phone:            c.Phone,
		PhoneDisplay:     phone.Display(c.Phone),
		Points:           c.Points,
		PreviousPoints:   c.PreviousPoints,
		RecentlyRedeemed: c.RecentlyRedeemed,
		OptedOut:         c.OptedOut,
	}
}

// ListCustomers godoc
// @ID          listCustomers
// @Summary     List customers (paginated)
// @Description Returns a page of the customer ledger, most recently imported first.
// @Tags        Customers
// @Produce     json
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListCustomersResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /customers [get]
func (h *Handlers) ListCustomers(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	total, err := repo.CountCustomers(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, err := repo.ListCustomersPage(ctx, h.db, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	views := make([]CustomerView, len(items))
	for i, item := range items {
		views[i] = customerView(item)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListCustomersResponse{
		Customers: views,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
