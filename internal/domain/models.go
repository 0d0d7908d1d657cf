// Package domain defines the persistence models for code-word entries,
// replied recipients, and paid-access records. These types are mapped with
// GORM and form the core data layer of the funnel application.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Media types accepted for the Telegram reply of a code-word entry.
const (
	MediaPhoto    = "photo"
	MediaVideo    = "video"
	MediaDocument = "document"
)

// Button is a single inline URL button attached to a Telegram reply.
// Buttons render as stacked single-button rows, in order.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// ButtonList stores an ordered button sequence as a JSON TEXT column.
type ButtonList []Button

// Value implements driver.Valuer.
func (b ButtonList) Value() (driver.Value, error) {
	if len(b) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (b *ButtonList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*b = nil
		return nil
	case string:
		if v == "" {
			*b = nil
			return nil
		}
		return json.Unmarshal([]byte(v), b)
	case []byte:
		if len(v) == 0 {
			*b = nil
			return nil
		}
		return json.Unmarshal(v, b)
	default:
		return fmt.Errorf("buttons: unsupported source type %T", src)
	}
}

// CodeWordEntry is a configured code word and the replies it triggers.
//
// Scope: entries with a non-NULL PostID are post-scoped (at most one live
// entry per Instagram post, used for comment replies and post-specific direct
// copy). Entries with a NULL PostID are standalone, reachable only through
// the Telegram deep link; their folded code word is unique among standalone
// entries. Both uniqueness rules ignore soft-deleted rows and live in partial
// indexes created by repo.AutoMigrate, not in gorm tags.
//
// CodeWordFold holds the case-folded form of CodeWord and is what all
// matching operates on. Disabled entries are invisible to matching.
type CodeWordEntry struct {
	ID           string  `json:"id"             gorm:"type:char(36);primaryKey"`
	PostID       *string `json:"post_id"        gorm:"type:varchar(64);index"`
	CodeWord     string  `json:"code_word"      gorm:"type:varchar(128);not null"`
	CodeWordFold string  `json:"-"              gorm:"type:varchar(128);not null;index"`

	CommentReply string `json:"comment_reply"   gorm:"type:text"`
	DirectReply  string `json:"direct_reply"    gorm:"type:text"`

	TelegramMessage string     `json:"telegram_message" gorm:"type:text"`
	MediaType       string     `json:"media_type"       gorm:"type:varchar(16)"`
	MediaURL        string     `json:"media_url"        gorm:"type:text"`
	Buttons         ButtonList `json:"buttons"          gorm:"type:text"`

	// RedirectURL points at the bot deep link (https://t.me/<bot>?start=<word>);
	// auto-derived on save when absent.
	RedirectURL string `json:"redirect_url" gorm:"type:text"`

	Enabled   bool           `json:"enabled" gorm:"not null;default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for CodeWordEntry.
func (CodeWordEntry) TableName() string { return "code_word_entries" }

// Standalone reports whether the entry is not tied to any post.
func (e *CodeWordEntry) Standalone() bool { return e.PostID == nil }

// RepliedRecipient records a sender that has already received a direct-message
// reply. Membership is monotonic: once inserted, the recipient is never
// replied to again, regardless of code word.
type RepliedRecipient struct {
	RecipientID string    `gorm:"type:varchar(64);primaryKey"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for RepliedRecipient.
func (RepliedRecipient) TableName() string { return "replied_recipients" }

// Payment statuses. The transition is one-way: pending -> paid.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// PaidAccess is a payment record keyed by the opaque access code minted at
// payment creation. ChatID is bound at most once, on the first successful
// /start <accessCode> by a paid user (first-claim wins) and never changes
// afterwards.
type PaidAccess struct {
	AccessCode string     `gorm:"type:varchar(32);primaryKey"`
	Status     string     `gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','paid')"`
	Amount     float64    `gorm:"not null;default:0"`
	TariffID   string     `gorm:"type:varchar(64)"`
	ChatID     *string    `gorm:"type:varchar(64);index"`
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
	PaidAt     *time.Time `gorm:""`
}

// TableName returns the database table name for PaidAccess.
func (PaidAccess) TableName() string { return "paid_access" }

// Paid reports whether the payment webhook has confirmed this record.
func (p *PaidAccess) Paid() bool { return p.Status == PaymentPaid }
