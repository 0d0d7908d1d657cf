package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-funnel-backend/internal/domain"
	"github.com/tbourn/go-funnel-backend/internal/services"
)

// Reply copy. Kept as consts so tests can assert on them.
const (
	msgGreeting      = "Hi! Send me a code word, or use the link from the post that brought you here."
	msgWelcomeBack   = "Welcome back! Use /materials to open your content."
	msgAccessGranted = "Payment confirmed, access granted! Use /materials any time to open your content."
	msgCodeNotPaid   = "Your payment hasn't been confirmed yet. Give it a minute and press the link again."
	msgCodeClaimed   = "This access code is already in use on another account."
	msgMaterials     = "Here are your materials. Enjoy!"
	msgNotPurchased  = "You don't have access yet. Grab it on our site and come back with the link from the confirmation page."
	msgUnknownWord   = "I don't recognize that code word. Double-check the spelling from the post."
)

var tgStarts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "telegram_starts_total",
		Help: "Handled /start commands by outcome.",
	},
	[]string{"outcome"}, // entry|access_granted|access_denied|greeting|no_match
)

func init() {
	prometheus.MustRegister(tgStarts)
}

// MessageSender is the sending slice of the Bot API; faked in tests.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// CodeResolver turns /start payloads into content deliveries. A payload is
// tried as a paid-access code first and as a code word second; code words
// resolve by strict equality, unlike the substring matching used on the
// Instagram side, because a deep-link payload is machine-built, not typed.
type CodeResolver struct {
	Sender   MessageSender
	Registry *services.Registry
	Access   *services.PaidAccessService
}

// HandleUpdate routes one update. Non-message updates are ignored.
func (r *CodeResolver) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	m := upd.Message
	chatID := m.Chat.ID

	switch {
	case m.IsCommand() && m.Command() == "start":
		r.handleStart(ctx, chatID, m.CommandArguments())
	case m.IsCommand() && m.Command() == "materials":
		r.handleMaterials(ctx, chatID)
	case !m.IsCommand() && strings.TrimSpace(m.Text) != "":
		// Plain text is treated like a typed /start payload.
		r.handleStart(ctx, chatID, m.Text)
	}
}

func (r *CodeResolver) handleStart(ctx context.Context, chatID int64, payload string) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		r.handleEmptyStart(ctx, chatID)
		return
	}

	// Access code first: Activate distinguishes "no such code" from every
	// other outcome, so an unknown payload falls through to code words.
	err := r.Access.Activate(ctx, payload, chatKey(chatID))
	switch err {
	case nil:
		tgStarts.WithLabelValues("access_granted").Inc()
		r.sendText(chatID, msgAccessGranted)
		return
	case services.ErrCodeNotPaid:
		tgStarts.WithLabelValues("access_denied").Inc()
		r.sendText(chatID, msgCodeNotPaid)
		return
	case services.ErrCodeClaimed:
		tgStarts.WithLabelValues("access_denied").Inc()
		r.sendText(chatID, msgCodeClaimed)
		return
	case services.ErrCodeNotFound:
		// Not an access code; try the registry.
	default:
		log.Error().Err(err).Int64("chat_id", chatID).Msg("access activation failed")
		return
	}

	entry, err := r.Registry.ResolveExact(ctx, payload)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("code word lookup failed")
		return
	}
	if entry == nil {
		tgStarts.WithLabelValues("no_match").Inc()
		r.sendText(chatID, msgUnknownWord)
		return
	}

	tgStarts.WithLabelValues("entry").Inc()
	r.sendEntry(chatID, entry)
	log.Info().
		Int64("chat_id", chatID).
		Str("code_word", entry.CodeWord).
		Msg("delivered code word content")
}

func (r *CodeResolver) handleEmptyStart(ctx context.Context, chatID int64) {
	has, err := r.Access.HasAccess(ctx, chatKey(chatID))
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("access lookup failed")
		return
	}
	tgStarts.WithLabelValues("greeting").Inc()
	if has {
		r.sendText(chatID, msgWelcomeBack)
		return
	}
	r.sendText(chatID, msgGreeting)
}

func (r *CodeResolver) handleMaterials(ctx context.Context, chatID int64) {
	has, err := r.Access.HasAccess(ctx, chatKey(chatID))
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("access lookup failed")
		return
	}
	if has {
		r.sendText(chatID, msgMaterials)
		return
	}
	r.sendText(chatID, msgNotPurchased)
}

// sendEntry delivers an entry's Telegram message: captioned media when the
// entry carries any, plain text otherwise. A failed media send degrades to
// text so the subscriber still gets the content and the buttons.
func (r *CodeResolver) sendEntry(chatID int64, entry *domain.CodeWordEntry) {
	kb := buttonsMarkup(entry.Buttons)

	if entry.MediaURL != "" {
		if _, err := r.Sender.Send(mediaMessage(chatID, entry, kb)); err == nil {
			return
		} else {
			log.Warn().Err(err).
				Int64("chat_id", chatID).
				Str("media_type", entry.MediaType).
				Msg("media send failed, falling back to text")
		}
	}

	text := tgbotapi.NewMessage(chatID, entry.TelegramMessage)
	if kb != nil {
		text.ReplyMarkup = *kb
	}
	if _, err := r.Sender.Send(text); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("text send failed")
	}
}

func (r *CodeResolver) sendText(chatID int64, text string) {
	if _, err := r.Sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("text send failed")
	}
}

// mediaMessage builds the Chattable matching the entry's media type. The
// Telegram message doubles as the caption.
func mediaMessage(chatID int64, entry *domain.CodeWordEntry, kb *tgbotapi.InlineKeyboardMarkup) tgbotapi.Chattable {
	file := tgbotapi.FileURL(entry.MediaURL)
	switch entry.MediaType {
	case domain.MediaVideo:
		m := tgbotapi.NewVideo(chatID, file)
		m.Caption = entry.TelegramMessage
		if kb != nil {
			m.ReplyMarkup = *kb
		}
		return m
	case domain.MediaDocument:
		m := tgbotapi.NewDocument(chatID, file)
		m.Caption = entry.TelegramMessage
		if kb != nil {
			m.ReplyMarkup = *kb
		}
		return m
	default:
		m := tgbotapi.NewPhoto(chatID, file)
		m.Caption = entry.TelegramMessage
		if kb != nil {
			m.ReplyMarkup = *kb
		}
		return m
	}
}

// buttonsMarkup lays entry buttons out one per row.
func buttonsMarkup(buttons domain.ButtonList) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL),
		))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// chatKey renders a chat id as the string key used by the access ledger.
func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
