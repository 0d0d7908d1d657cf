// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the PaidAccess
// model: pending-payment creation, the pending->paid transition driven by the
// payment webhook, and first-claim-wins chat binding.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-funnel-backend/internal/domain"
)

// CreatePendingPayment records a freshly minted access code before the user
// is redirected to the payment provider.
func CreatePendingPayment(ctx context.Context, db *gorm.DB, accessCode string, amount float64, tariffID string) (*domain.PaidAccess, error) {
	rec := &domain.PaidAccess{
		AccessCode: accessCode,
		Status:     domain.PaymentPending,
		Amount:     amount,
		TariffID:   tariffID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkPaid flips a record to paid, setting PaidAt. A record is created on the
// fly when the webhook arrives for an unknown code (provider retries can
// outlive a local restart). Marking an already-paid record is a no-op.
func MarkPaid(ctx context.Context, db *gorm.DB, accessCode string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "access_code"}},
			DoUpdates: clause.Assignments(map[string]any{"status": domain.PaymentPaid, "paid_at": now}),
		}).
		Create(&domain.PaidAccess{
			AccessCode: accessCode,
			Status:     domain.PaymentPaid,
			CreatedAt:  now,
			PaidAt:     &now,
		}).Error
}

// GetPayment fetches a record by access code, or ErrNotFound.
func GetPayment(ctx context.Context, db *gorm.DB, accessCode string) (*domain.PaidAccess, error) {
	var rec domain.PaidAccess
	if err := db.WithContext(ctx).Where("access_code = ?", accessCode).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// BindChat attempts to bind accessCode to chatID. The conditional UPDATE
// makes the claim atomic: it succeeds only when the record is paid and the
// chat slot is free or already holds this same chat, so under concurrent
// claims exactly one chat wins and the binding never changes afterwards.
//
// The returned bool is true when the caller now holds the binding.
func BindChat(ctx context.Context, db *gorm.DB, accessCode, chatID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.PaidAccess{}).
		Where("access_code = ? AND status = ? AND (chat_id IS NULL OR chat_id = ?)",
			accessCode, domain.PaymentPaid, chatID).
		Update("chat_id", chatID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// HasChatAccess reports whether any paid record is bound to chatID.
func HasChatAccess(ctx context.Context, db *gorm.DB, chatID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.PaidAccess{}).
		Where("status = ? AND chat_id = ?", domain.PaymentPaid, chatID).
		Count(&n).Error
	return n > 0, err
}
