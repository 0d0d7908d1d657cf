// Package telegram runs the bot side of the funnel: a long-poll update loop,
// deep-link construction for the rest of the pipeline, and the /start
// resolver that exchanges code words and access codes for content.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// UpdateHandler consumes one Telegram update. Implemented by CodeResolver.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// Bot wraps the Telegram Bot API connection and the update loop.
type Bot struct {
	api *tgbotapi.BotAPI
}

// NewBot authenticates against the Bot API. Returns an error when the token
// is rejected; the caller decides whether that is fatal.
func NewBot(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("telegram bot authorized")
	return &Bot{api: api}, nil
}

// Username returns the bot's @-less username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// StartURL builds a t.me deep link that opens the bot with payload as the
// /start parameter.
func (b *Bot) StartURL(payload string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", b.api.Self.UserName, payload)
}

// API exposes the underlying client for message sending.
func (b *Bot) API() *tgbotapi.BotAPI {
	return b.api
}

// Run long-polls for updates and feeds them to h until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, h UpdateHandler) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	log.Info().Msg("telegram update loop started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Info().Msg("telegram update loop stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				log.Warn().Msg("telegram update channel closed")
				return
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}
