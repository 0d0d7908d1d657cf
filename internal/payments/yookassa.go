// Package payments integrates the YooKassa hosted-checkout flow. A payment is
// created with a freshly minted access code in its metadata; the provider
// redirects the buyer to its payment page and later confirms success through a
// webhook, at which point the code flips to paid and becomes redeemable in the
// bot.
package payments

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const yookassaBaseURL = "https://api.yookassa.ru/v3"

// Access codes avoid visually ambiguous characters (0/o, 1/l/i) since buyers
// occasionally retype them.
const (
	accessCodeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"
	accessCodeLength   = 12
)

// MintAccessCode returns a fresh random access code.
func MintAccessCode() (string, error) {
	buf := make([]byte, accessCodeLength)
	max := big.NewInt(int64(len(accessCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("minting access code: %w", err)
		}
		buf[i] = accessCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Payment is the slice of a YooKassa payment object the funnel cares about.
type Payment struct {
	ID              string
	Status          string
	ConfirmationURL string
	AccessCode      string
}

// Client creates payments against the YooKassa API.
type Client struct {
	shopID    string
	secretKey string
	baseURL   string
	http      *retryablehttp.Client
}

// NewClient constructs a YooKassa client.
func NewClient(shopID, secretKey string) *Client {
	h := retryablehttp.NewClient()
	h.RetryMax = 2
	h.RetryWaitMin = time.Second
	h.RetryWaitMax = 5 * time.Second
	h.HTTPClient.Timeout = 15 * time.Second
	h.Logger = nil
	return &Client{
		shopID:    shopID,
		secretKey: secretKey,
		baseURL:   yookassaBaseURL,
		http:      h,
	}
}

// WithBaseURL overrides the API endpoint; used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// CreatePayment registers a hosted-checkout payment carrying accessCode in
// its metadata and returns the confirmation URL to redirect the buyer to.
// Amounts are rendered with two decimals as the API requires.
func (c *Client) CreatePayment(ctx context.Context, amount float64, description, accessCode, tariffID, returnURL string) (*Payment, error) {
	body := map[string]any{
		"amount": map[string]any{
			"value":    strconv.FormatFloat(amount, 'f', 2, 64),
			"currency": "RUB",
		},
		"capture":     true,
		"description": description,
		"confirmation": map[string]any{
			"type":       "redirect",
			"return_url": returnURL,
		},
		"metadata": map[string]any{
			"access_code": accessCode,
			"tariff_id":   tariffID,
		},
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", nil)
	if err != nil {
		return nil, err
	}
	if err := req.SetBody(body); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	// Idempotence-Key makes retried creates return the original payment
	// instead of charging twice.
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(c.shopID, c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("yookassa: %s (status %d)",
			gjson.GetBytes(raw, "description").String(), resp.StatusCode)
	}

	p := &Payment{
		ID:              gjson.GetBytes(raw, "id").String(),
		Status:          gjson.GetBytes(raw, "status").String(),
		ConfirmationURL: gjson.GetBytes(raw, "confirmation.confirmation_url").String(),
		AccessCode:      accessCode,
	}
	log.Info().
		Str("payment_id", p.ID).
		Str("status", p.Status).
		Msg("yookassa payment created")
	return p, nil
}

// Notification is a parsed YooKassa webhook delivery.
type Notification struct {
	Event      string
	PaymentID  string
	AccessCode string
	TariffID   string
}

// EventPaymentSucceeded is the only webhook event the funnel acts on.
const EventPaymentSucceeded = "payment.succeeded"

// ParseNotification extracts the fields the funnel needs from a webhook body.
// Returns ok=false for bodies that are not payment notifications.
func ParseNotification(body []byte) (Notification, bool) {
	if gjson.GetBytes(body, "type").String() != "notification" {
		return Notification{}, false
	}
	n := Notification{
		Event:      gjson.GetBytes(body, "event").String(),
		PaymentID:  gjson.GetBytes(body, "object.id").String(),
		AccessCode: gjson.GetBytes(body, "object.metadata.access_code").String(),
		TariffID:   gjson.GetBytes(body, "object.metadata.tariff_id").String(),
	}
	return n, true
}
