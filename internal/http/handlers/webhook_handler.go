// Instagram webhook handlers.
//
// This file exposes the Meta webhook surface:
//   - GET  /webhook   (subscription verification handshake)
//   - POST /webhook   (event deliveries: direct messages)
//
// The POST handler always answers 200 once the payload parses, regardless of
// pipeline outcome: Meta treats non-200 responses as delivery failures and
// disables the subscription after enough of them. Pipeline errors are logged,
// never surfaced.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/tbourn/go-funnel-backend/internal/http/middleware"
	"github.com/tbourn/go-funnel-backend/internal/services"
)

// WebhookHandlers serves the Meta webhook endpoints.
type WebhookHandlers struct {
	// VerifyToken is the shared secret echoed during the GET handshake.
	VerifyToken string
	// Direct runs one inbound message through the reply pipeline.
	Direct *services.DirectService
}

// NewWebhookHandlers constructs WebhookHandlers.
func NewWebhookHandlers(verifyToken string, direct *services.DirectService) *WebhookHandlers {
	return &WebhookHandlers{VerifyToken: verifyToken, Direct: direct}
}

// Verify implements the GET handshake: when hub.mode is "subscribe" and
// hub.verify_token matches, the raw hub.challenge is echoed back as plain
// text. Anything else is a 403, including every attempt while no verify
// token is configured (an empty token must not act as a wildcard).
func (h *WebhookHandlers) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if h.VerifyToken != "" && mode == "subscribe" && token == h.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	fail(c, http.StatusForbidden, ErrCodeForbidden, "verification failed")
}

// Receive implements the POST delivery endpoint. It walks
// entry[].messaging[], extracts message events, and feeds each through the
// direct-message pipeline. Echo events (messages the account itself sent) are
// skipped.
func (h *WebhookHandlers) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	lg := middleware.LoggerFrom(c)
	ctx := c.Request.Context()

	for _, entry := range gjson.GetBytes(body, "entry").Array() {
		for _, ev := range entry.Get("messaging").Array() {
			if ev.Get("message.is_echo").Bool() {
				continue
			}
			msg := services.InboundMessage{
				SenderID:  ev.Get("sender.id").String(),
				MessageID: ev.Get("message.mid").String(),
				Text:      ev.Get("message.text").String(),
			}
			if err := h.Direct.HandleMessage(ctx, msg); err != nil {
				lg.Error().Err(err).
					Str("message_id", msg.MessageID).
					Msg("direct pipeline failed")
			}
		}
	}

	// Meta only needs the acknowledgment.
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}
