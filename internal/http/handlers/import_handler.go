// Customer import HTTP handler.
//
// POST /customers/import ingests a point-of-sale snapshot. Records with
// invalid phone numbers are tallied rather than rejecting the whole payload.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akounas/go-sms-backend/internal/services"
)

// ImportCustomersRequest is the JSON payload for a snapshot import.
type ImportCustomersRequest struct {
	Customers []services.ImportRecord `json:"customers" binding:"required"`
}

// ImportCustomersResponse reports the outcome of an import run.
type ImportCustomersResponse struct {
	Success       bool     `json:"success"`
	Imported      int      `json:"imported"`
	Failed        int      `json:"failed"`
	InvalidPhones []string `json:"invalidPhones,omitempty"`
}

// ImportCustomers godoc
// @ID          importCustomers
// @Summary     Import a customer snapshot
// @Description Reconciles and upserts every record keyed by normalized phone.
// @Description The current balance rolls into previousPoints; a drop across the
// @Description redemption threshold marks the customer as recently redeemed.
// @Tags        Customers
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ImportCustomersRequest  true  "Customer records"
//
// @Success     200  {object}  handlers.ImportCustomersResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /customers/import [post]
func (h *Handlers) ImportCustomers(c *gin.Context) {
	var req ImportCustomersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: customers is required")
		return
	}
	if len(req.Customers) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "customers must not be empty")
		return
	}

	sum, err := h.importSvc.Import(c.Request.Context(), req.Customers)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeImportFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ImportCustomersResponse{
		Success:       true,
		Imported:      sum.Imported,
		Failed:        sum.Failed,
		InvalidPhones: sum.InvalidPhones,
	})
}
