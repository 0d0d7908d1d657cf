package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-funnel-backend/internal/payments"
	"github.com/tbourn/go-funnel-backend/internal/services"
)

// stubPayments records the creation request and serves a canned payment.
type stubPayments struct {
	lastCode   string
	lastTariff string
	lastAmount float64
	err        error
}

func (s *stubPayments) CreatePayment(ctx context.Context, amount float64, description, accessCode, tariffID, returnURL string) (*payments.Payment, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastCode = accessCode
	s.lastTariff = tariffID
	s.lastAmount = amount
	return &payments.Payment{
		ID:              "pay-1",
		Status:          "pending",
		ConfirmationURL: "https://yookassa.ru/checkout/pay-1",
		AccessCode:      accessCode,
	}, nil
}

func newLanding(t *testing.T, pc PaymentCreator, bot BotIdentity) (*LandingHandlers, *services.PaidAccessService) {
	t.Helper()
	access := services.NewPaidAccessService(newHandlersDB(t))
	h := NewLandingHandlers(pc, access, bot, 4990, "Course access",
		"https://example.com/payment/success", "https://example.com/")
	return h, access
}

func landingRouter(h *LandingHandlers) *gin.Engine {
	r := gin.New()
	r.GET("/api/landing/content", h.Content)
	r.POST("/api/join", h.Join)
	r.GET("/payment/success", h.PaymentSuccess)
	r.GET("/payment/cancel", h.PaymentCancel)
	r.POST("/api/yookassa/webhook", h.Webhook)
	return r
}

func TestJoin_CreatesPendingPayment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pc := &stubPayments{}
	h, access := newLanding(t, pc, nil)
	r := landingRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/join",
		bytes.NewBufferString(`{"tariff_id":"vip"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("join -> %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		PaymentID       string `json:"payment_id"`
		ConfirmationURL string `json:"confirmation_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PaymentID != "pay-1" || resp.ConfirmationURL == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if pc.lastTariff != "vip" || pc.lastAmount != 4990 {
		t.Fatalf("provider got tariff=%q amount=%v", pc.lastTariff, pc.lastAmount)
	}

	// The minted code is already recorded, still unpaid.
	paid, err := access.IsPaid(context.Background(), pc.lastCode)
	if err != nil || paid {
		t.Fatalf("fresh code should be pending: %v %v", paid, err)
	}
}

func TestJoin_DefaultsTariffOnBarePost(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pc := &stubPayments{}
	h, _ := newLanding(t, pc, nil)
	r := landingRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/join", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("bare join -> %d %s", w.Code, w.Body.String())
	}
	if pc.lastTariff != "default" {
		t.Fatalf("expected default tariff, got %q", pc.lastTariff)
	}
}

func TestJoin_ProviderFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newLanding(t, &stubPayments{err: errors.New("provider down")}, nil)
	r := landingRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/join", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("provider failure -> %d", w.Code)
	}
}

func TestPaymentRedirects(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// With a running bot, success lands on the deep link carrying the code.
	{
		h, _ := newLanding(t, &stubPayments{}, stubBot{})
		r := landingRouter(h)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payment/success?code=codeabc", nil))
		if w.Code != http.StatusFound || w.Header().Get("Location") != "https://t.me/funnelbot?start=codeabc" {
			t.Fatalf("success redirect -> %d %q", w.Code, w.Header().Get("Location"))
		}
	}

	// Without a bot, both pages fall back to the landing.
	{
		h, _ := newLanding(t, &stubPayments{}, nil)
		r := landingRouter(h)
		for _, path := range []string{"/payment/success", "/payment/cancel"} {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusFound || w.Header().Get("Location") != "https://example.com/" {
				t.Fatalf("%s -> %d %q", path, w.Code, w.Header().Get("Location"))
			}
		}
	}
}

func TestContent_ReflectsOffer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newLanding(t, &stubPayments{}, nil)
	r := landingRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/landing/content", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("content -> %d", w.Code)
	}
	var resp struct {
		Offer struct {
			Description string  `json:"description"`
			Price       float64 `json:"price"`
		} `json:"offer"`
		Sections []struct {
			ID string `json:"id"`
		} `json:"sections"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Offer.Price != 4990 || resp.Offer.Description != "Course access" {
		t.Fatalf("offer should come from configuration: %+v", resp.Offer)
	}
	if len(resp.Sections) == 0 {
		t.Fatalf("sections missing")
	}
}

func TestWebhook_ConfirmsPayment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, access := newLanding(t, &stubPayments{}, nil)
	r := landingRouter(h)
	ctx := context.Background()

	if _, err := access.CreatePending(ctx, "codeabc", 4990, "basic"); err != nil {
		t.Fatalf("create: %v", err)
	}

	body := `{"type":"notification","event":"payment.succeeded",
		"object":{"id":"pay-1","metadata":{"access_code":"codeabc","tariff_id":"basic"}}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/yookassa/webhook",
		bytes.NewBufferString(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("webhook -> %d %s", w.Code, w.Body.String())
	}
	paid, err := access.IsPaid(ctx, "codeabc")
	if err != nil || !paid {
		t.Fatalf("code should be paid: %v %v", paid, err)
	}
}

func TestWebhook_IgnoresAndRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newLanding(t, &stubPayments{}, nil)
	r := landingRouter(h)

	// Non-notification bodies -> 400
	{
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/yookassa/webhook",
			bytes.NewBufferString(`{"type":"refund"}`)))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("non-notification -> %d", w.Code)
		}
	}

	// Other events and missing codes are acknowledged, not retried.
	for _, body := range []string{
		`{"type":"notification","event":"payment.canceled","object":{"id":"pay-1"}}`,
		`{"type":"notification","event":"payment.succeeded","object":{"id":"pay-1"}}`,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/yookassa/webhook",
			bytes.NewBufferString(body)))
		if w.Code != http.StatusOK {
			t.Fatalf("body %q -> %d", body, w.Code)
		}
	}
}
