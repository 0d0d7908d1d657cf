// Package services – Ledger
//
// This file implements the dedupe ledger, the combined record the pipeline
// consults to enforce at-most-once delivery per unit:
//
//   - processed events: (eventType, eventID) pairs held in memory only. Comment
//     ids reset on restart, which is intentional: an unprocessed comment is
//     simply retried by the next polling cycle, and a re-replied comment after
//     a restart is cheap.
//   - replied recipients: durable table; once a sender has received a
//     direct-message reply they are never replied to again, for any code word.
//
// Both guards are advisory. There is no lock spanning check and mark, so two
// concurrent deliveries of the same unit can both pass the check before either
// marks; with per-recipient traffic this low the race is accepted rather than
// serialized.
package services

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/tbourn/go-funnel-backend/internal/repo"
)

// Event namespaces. Keeping the type in the key prevents a comment id and a
// message id from colliding.
const (
	EventComment = "comment"
	EventDirect  = "direct"
)

// Ledger tracks processed events and replied recipients.
// It is safe for concurrent use.
type Ledger struct {
	// DB backs the durable replied-recipients set.
	DB *gorm.DB

	mu        sync.RWMutex
	processed map[string]struct{}
}

// NewLedger constructs a Ledger over db with an empty processed-event set.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{
		DB:        db,
		processed: make(map[string]struct{}),
	}
}

func eventKey(eventType, eventID string) string {
	return eventType + ":" + eventID
}

// IsEventProcessed reports whether (eventType, eventID) has been handled
// during this process lifetime.
func (l *Ledger) IsEventProcessed(eventType, eventID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.processed[eventKey(eventType, eventID)]
	return ok
}

// MarkEventProcessed records (eventType, eventID) as handled. Idempotent.
func (l *Ledger) MarkEventProcessed(eventType, eventID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed[eventKey(eventType, eventID)] = struct{}{}
}

// HasRecipientBeenRepliedTo reports whether recipientID has ever received a
// direct-message reply. The answer survives restarts.
func (l *Ledger) HasRecipientBeenRepliedTo(ctx context.Context, recipientID string) (bool, error) {
	return repo.IsRecipientReplied(ctx, l.DB, recipientID)
}

// MarkRecipientReplied durably records recipientID in the once-ever set.
// Monotonic and idempotent: once true, always true.
func (l *Ledger) MarkRecipientReplied(ctx context.Context, recipientID string) error {
	return repo.MarkRecipientReplied(ctx, l.DB, recipientID)
}
