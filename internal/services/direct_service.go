// Package services – DirectService
//
// This file implements the direct-message pipeline invoked once per inbound
// Messaging API event (push model). The pipeline is a straight line of guards
// followed by one dispatch:
//
//	malformed? -> drop
//	event already processed? -> drop (platforms redeliver)
//	sender ever replied to? -> drop (once-ever policy beats code-word logic)
//	code word match? -> send text + single button, then mark both ledgers
//
// Marks happen only after a successful dispatch; a failed send leaves the
// event unmarked so an upstream redelivery can retry it.
package services

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	// dmHandled counts pipeline outcomes by reason so funnel health is visible
	// without log digging.
	dmHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "direct_messages_handled_total",
			Help: "Inbound direct-message events by pipeline outcome.",
		},
		[]string{"outcome"}, // replied|duplicate|already_replied|no_match|malformed|send_failed
	)
)

func init() {
	prometheus.MustRegister(dmHandled)
}

// InboundMessage is one direct-message event extracted from a webhook
// delivery.
type InboundMessage struct {
	SenderID  string
	MessageID string
	Text      string
}

// ReplyDispatcher sends the structured reply back over the messaging channel.
// Implemented by the Instagram Messaging API client; faked in tests.
type ReplyDispatcher interface {
	SendTextWithButton(ctx context.Context, recipientID, text, buttonLabel, buttonURL string) error
}

// DeepLinker derives a bot deep link for a code word. StartURL returns ""
// when the bot is unavailable, in which case the entry's static redirect URL
// is used instead.
type DeepLinker interface {
	StartURL(codeWord string) string
}

// DirectService wires the registry, the ledger, and the reply dispatcher into
// the webhook pipeline.
type DirectService struct {
	Registry   *Registry
	Ledger     *Ledger
	Dispatcher ReplyDispatcher
	DeepLink   DeepLinker // optional

	// ButtonLabel is the caption on the single reply button.
	ButtonLabel string
}

// HandleMessage runs one event through the pipeline. It never returns an
// error for business outcomes (no match, duplicate, malformed); only
// infrastructure failures (DB errors) surface, and the caller logs them.
func (s *DirectService) HandleMessage(ctx context.Context, msg InboundMessage) error {
	if msg.SenderID == "" || msg.MessageID == "" {
		dmHandled.WithLabelValues("malformed").Inc()
		return nil
	}

	if s.Ledger.IsEventProcessed(EventDirect, msg.MessageID) {
		dmHandled.WithLabelValues("duplicate").Inc()
		return nil
	}

	replied, err := s.Ledger.HasRecipientBeenRepliedTo(ctx, msg.SenderID)
	if err != nil {
		return err
	}
	if replied {
		dmHandled.WithLabelValues("already_replied").Inc()
		return nil
	}

	entry, err := s.Registry.FindAnywhere(ctx, msg.Text)
	if err != nil {
		return err
	}
	if entry == nil {
		// The event stays unmarked so a later message from this sender can
		// still match.
		dmHandled.WithLabelValues("no_match").Inc()
		return nil
	}

	buttonURL := entry.RedirectURL
	if s.DeepLink != nil {
		if u := s.DeepLink.StartURL(entry.CodeWord); u != "" {
			buttonURL = u
		}
	}

	if err := s.Dispatcher.SendTextWithButton(ctx, msg.SenderID, entry.DirectReply, s.ButtonLabel, buttonURL); err != nil {
		// Nothing is marked: the platform may redeliver, or the event is lost.
		dmHandled.WithLabelValues("send_failed").Inc()
		log.Warn().Err(err).
			Str("message_id", msg.MessageID).
			Str("sender_id", msg.SenderID).
			Msg("direct reply dispatch failed")
		return nil
	}

	s.Ledger.MarkEventProcessed(EventDirect, msg.MessageID)
	if err := s.Ledger.MarkRecipientReplied(ctx, msg.SenderID); err != nil {
		return err
	}

	dmHandled.WithLabelValues("replied").Inc()
	log.Info().
		Str("message_id", msg.MessageID).
		Str("sender_id", msg.SenderID).
		Str("code_word", entry.CodeWord).
		Msg("direct message handled")
	return nil
}
