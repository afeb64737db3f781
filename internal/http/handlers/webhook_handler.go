// Webhook HTTP handlers.
//
// This file exposes the provider ingestion endpoint:
//   - POST /webhooks/whatsapp   (inbound message events from the gateway)
//
// The endpoint always acknowledges with HTTP 200 once the payload has been
// read: the gateway retries non-2xx responses, and a retry storm cannot fix a
// malformed event or a missing session. Failures are logged server-side and
// surfaced through metrics instead.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/imobchat/go-crm-chat/internal/waha"
)

// WebhookAck is the acknowledgement body returned for every webhook delivery.
type WebhookAck struct {
	Status string `json:"status" example:"ok"`
}

// ReceiveWhatsappWebhook godoc
// @ID          receiveWhatsappWebhook
// @Summary     Ingest a WhatsApp gateway event
// @Description Accepts a message event from the provider gateway, persists it, and fans it out to live subscribers.
// @Description Always returns 200 so the gateway does not retry events that cannot succeed.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       body  body  waha.WebhookEvent  true  "Gateway event payload"
//
// @Success     200  {object} handlers.WebhookAck
// @Router      /webhooks/whatsapp [post]
func (h *Handlers) ReceiveWhatsappWebhook(c *gin.Context) {
	var evt waha.WebhookEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		log.Warn().Err(err).Msg("webhook: undecodable payload, acknowledging anyway")
		ok(c, http.StatusOK, WebhookAck{Status: "ignored"})
		return
	}

	if err := h.webhookSvc.ReceiveMessage(c.Request.Context(), evt); err != nil {
		log.Error().Err(err).
			Str("session", evt.Session).
			Str("message_id", evt.Payload.ID).
			Msg("webhook: processing failed, acknowledging anyway")
		ok(c, http.StatusOK, WebhookAck{Status: "error"})
		return
	}

	ok(c, http.StatusOK, WebhookAck{Status: "ok"})
}
