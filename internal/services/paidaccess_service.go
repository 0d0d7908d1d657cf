// Package services – PaidAccessService
//
// This file implements the paid-access ledger consumed by the Telegram
// resolver and fed by the payment webhook. An access code is minted at
// payment creation, confirmed by the provider webhook (pending -> paid,
// one-way), and exchanged exactly once via /start <code> for permanent access
// bound to a single chat.
package services

import (
	"context"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-funnel-backend/internal/domain"
	"github.com/tbourn/go-funnel-backend/internal/repo"
)

// PaidAccessService owns paid-access records and chat activation.
type PaidAccessService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewPaidAccessService constructs a PaidAccessService over db.
func NewPaidAccessService(db *gorm.DB) *PaidAccessService {
	return &PaidAccessService{DB: db}
}

// CreatePending records a new access code before redirecting to the provider.
func (s *PaidAccessService) CreatePending(ctx context.Context, accessCode string, amount float64, tariffID string) (*domain.PaidAccess, error) {
	return repo.CreatePendingPayment(ctx, s.DB, accessCode, amount, tariffID)
}

// MarkPaid transitions accessCode to paid; driven by the payment webhook.
func (s *PaidAccessService) MarkPaid(ctx context.Context, accessCode string) error {
	tr := otel.Tracer("services/PaidAccessService")
	ctx, span := tr.Start(ctx, "MarkPaid")
	defer span.End()
	return repo.MarkPaid(ctx, s.DB, accessCode)
}

// GetPayment returns the record for accessCode, or ErrCodeNotFound.
func (s *PaidAccessService) GetPayment(ctx context.Context, accessCode string) (*domain.PaidAccess, error) {
	rec, err := repo.GetPayment(ctx, s.DB, accessCode)
	if err == repo.ErrNotFound {
		return nil, ErrCodeNotFound
	}
	return rec, err
}

// IsPaid reports whether accessCode has been confirmed by the webhook.
func (s *PaidAccessService) IsPaid(ctx context.Context, accessCode string) (bool, error) {
	rec, err := repo.GetPayment(ctx, s.DB, accessCode)
	if err == repo.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Paid(), nil
}

// Activate claims accessCode for chatID.
//
// Outcomes:
//   - nil: the chat now holds the binding (fresh claim, or a repeat /start
//     from the chat that already owns it; both count as success).
//   - ErrCodeNotFound: the code does not exist.
//   - ErrCodeNotPaid: the code exists but payment is unconfirmed.
//   - ErrCodeClaimed: a different chat bound the code first. No state changes.
//
// The claim itself is a single conditional UPDATE, so concurrent attempts
// from two chats resolve to exactly one winner.
func (s *PaidAccessService) Activate(ctx context.Context, accessCode, chatID string) error {
	tr := otel.Tracer("services/PaidAccessService")
	ctx, span := tr.Start(ctx, "Activate",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	bound, err := repo.BindChat(ctx, s.DB, accessCode, chatID)
	if err != nil {
		return err
	}
	if bound {
		return nil
	}

	// The claim failed; look at the record to say why.
	rec, err := repo.GetPayment(ctx, s.DB, accessCode)
	if err == repo.ErrNotFound {
		return ErrCodeNotFound
	}
	if err != nil {
		return err
	}
	if !rec.Paid() {
		return ErrCodeNotPaid
	}
	return ErrCodeClaimed
}

// HasAccess reports whether chatID holds access through any activated code.
func (s *PaidAccessService) HasAccess(ctx context.Context, chatID string) (bool, error) {
	return repo.HasChatAccess(ctx, s.DB, chatID)
}
