// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// RepliedRecipient model, the durable half of the dedupe ledger.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-funnel-backend/internal/domain"
)

// IsRecipientReplied reports whether recipientID has ever received a
// direct-message reply.
func IsRecipientReplied(ctx context.Context, db *gorm.DB, recipientID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.RepliedRecipient{}).
		Where("recipient_id = ?", recipientID).
		Count(&n).Error
	return n > 0, err
}

// MarkRecipientReplied durably records that recipientID has been replied to.
// The operation is idempotent: re-marking an existing recipient is a no-op.
func MarkRecipientReplied(ctx context.Context, db *gorm.DB, recipientID string) error {
	rec := &domain.RepliedRecipient{RecipientID: recipientID}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}

// CountRepliedRecipients returns the ledger size (exposed for admin stats).
func CountRepliedRecipients(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.RepliedRecipient{}).Count(&n).Error
	return n, err
}
