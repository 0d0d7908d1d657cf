// Landing and payments handlers.
//
// This file exposes the public purchase flow:
//   - POST /api/join              (mint code, create payment, return checkout URL)
//   - GET  /payment/success       (provider return redirect)
//   - GET  /payment/cancel
//   - POST /api/yookassa/webhook  (provider confirmation -> code goes paid)
//
// The webhook always answers 200 for parseable notifications, even ones for
// unknown events: YooKassa retries non-200 deliveries, and an event we do not
// act on should not be redelivered.
package handlers

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-funnel-backend/internal/http/middleware"
	"github.com/tbourn/go-funnel-backend/internal/payments"
	"github.com/tbourn/go-funnel-backend/internal/services"
)

// PaymentCreator is the slice of the YooKassa client the landing consumes.
type PaymentCreator interface {
	CreatePayment(ctx context.Context, amount float64, description, accessCode, tariffID, returnURL string) (*payments.Payment, error)
}

// LandingHandlers serves the purchase flow.
type LandingHandlers struct {
	Payments PaymentCreator
	Access   *services.PaidAccessService
	Bot      BotIdentity // nil when the bot is not running

	// Price and Description configure the product offer; SuccessURL and
	// FallbackURL are where the provider sends the buyer afterwards.
	Price       float64
	Description string
	SuccessURL  string
	FallbackURL string
}

// NewLandingHandlers constructs LandingHandlers.
func NewLandingHandlers(pc PaymentCreator, access *services.PaidAccessService, bot BotIdentity, price float64, description, successURL, fallbackURL string) *LandingHandlers {
	return &LandingHandlers{
		Payments:    pc,
		Access:      access,
		Bot:         bot,
		Price:       price,
		Description: description,
		SuccessURL:  successURL,
		FallbackURL: fallbackURL,
	}
}

// JoinRequest is the JSON payload for POST /api/join.
type JoinRequest struct {
	TariffID string `json:"tariff_id"`
}

// Join mints an access code, records it as pending, creates the provider
// payment, and returns the checkout URL for the frontend to redirect to.
func (h *LandingHandlers) Join(c *gin.Context) {
	var req JoinRequest
	// Body is optional; a bare POST buys the default tariff.
	_ = c.ShouldBindJSON(&req)
	if req.TariffID == "" {
		req.TariffID = "default"
	}

	code, err := payments.MintAccessCode()
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create access code")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.Access.CreatePending(ctx, code, h.Price, req.TariffID); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodePaymentFailed, "could not record payment")
		return
	}

	// The provider returns the buyer to the success page; carrying the code
	// lets that page hand the buyer a ready deep link.
	returnURL := h.SuccessURL + "?code=" + url.QueryEscape(code)
	p, err := h.Payments.CreatePayment(ctx, h.Price, h.Description, code, req.TariffID, returnURL)
	if err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("payment creation failed")
		fail(c, http.StatusBadGateway, ErrCodePaymentFailed, "payment provider unavailable")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"payment_id":       p.ID,
		"confirmation_url": p.ConfirmationURL,
	})
}

// PaymentSuccess is where the provider returns the buyer after checkout. The
// payment may still be settling, so this page only points at the bot; actual
// access is granted by the webhook. A code query parameter is threaded into
// the deep link so the buyer lands in the bot with their access code prefilled.
func (h *LandingHandlers) PaymentSuccess(c *gin.Context) {
	if h.Bot != nil {
		c.Redirect(http.StatusFound, h.Bot.StartURL(c.Query("code")))
		return
	}
	c.Redirect(http.StatusFound, h.FallbackURL)
}

// PaymentCancel returns the buyer to the landing after an abandoned checkout.
func (h *LandingHandlers) PaymentCancel(c *gin.Context) {
	c.Redirect(http.StatusFound, h.FallbackURL)
}

// Content serves the landing copy blocks the frontend renders. The copy is
// static; the offer price comes from configuration so the landing and the
// payment amount cannot drift apart.
func (h *LandingHandlers) Content(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"offer": gin.H{
			"description": h.Description,
			"price":       h.Price,
			"currency":    "RUB",
		},
		"sections": []gin.H{
			{"id": "gift", "title": "Free guide", "body": "Comment the code word under the post and get the guide in your DMs."},
			{"id": "included", "title": "What's included", "body": "Course materials, templates, and the private channel."},
			{"id": "for_whom", "title": "Who it's for", "body": "Creators who want their content to sell itself."},
		},
	})
}

// Webhook consumes provider notifications. Only payment.succeeded changes
// state: the access code in the payment metadata flips to paid.
func (h *LandingHandlers) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	n, isNotification := payments.ParseNotification(body)
	if !isNotification {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "not a notification")
		return
	}

	lg := middleware.LoggerFrom(c)
	if n.Event != payments.EventPaymentSucceeded {
		lg.Info().Str("event", n.Event).Msg("ignoring payment event")
		ok(c, http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if n.AccessCode == "" {
		lg.Warn().Str("payment_id", n.PaymentID).Msg("succeeded payment without access code")
		ok(c, http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.Access.MarkPaid(c.Request.Context(), n.AccessCode); err != nil {
		// Non-200 makes the provider retry the delivery later.
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not record payment")
		return
	}

	lg.Info().
		Str("payment_id", n.PaymentID).
		Str("tariff_id", n.TariffID).
		Msg("payment confirmed")
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}
