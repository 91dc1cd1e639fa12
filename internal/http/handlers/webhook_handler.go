// Inbound SMS webhook handler.
//
// POST /webhooks/twilio receives carrier callbacks for inbound messages and
// applies consent keywords (STOP, START and friends). The carrier retries on
// non-2xx responses, so this endpoint always acknowledges with the fixed
// empty TwiML body regardless of processing outcome.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akounas/go-sms-backend/internal/services"
)

// InboundSMS godoc
// @ID          inboundSMS
// @Summary     Inbound SMS webhook
// @Description Processes consent keywords from an inbound message. Always
// @Description returns 200 with an empty TwiML response.
// @Tags        Webhooks
// @Accept      x-www-form-urlencoded
// @Produce     xml
//
// @Param       From  formData  string  false "Sender phone number"
// @Param       Body  formData  string  false "Message body"
//
// @Success     200  {string}  string  "Empty TwiML response"
// @Router      /webhooks/twilio [post]
func (h *Handlers) InboundSMS(c *gin.Context) {
	from := c.PostForm("From")
	body := c.PostForm("Body")

	if from != "" {
		h.optSvc.HandleInbound(c.Request.Context(), from, body)
	}

	c.Data(http.StatusOK, "text/xml", []byte(services.TwiMLAck))
}
