// Package instagram – CommentPoller
//
// The Graph API offers no push channel for comments, so the poller runs a
// fixed-interval cycle: list recent posts, skip posts with no enabled
// code-word entry, scan each remaining post's comments against its entry, and
// reply publicly to fresh matches. A comment is marked processed only after
// its reply succeeds, so transient Graph failures are retried by the next
// cycle. Errors never stop the loop.
package instagram

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-funnel-backend/internal/domain"
	"github.com/tbourn/go-funnel-backend/internal/services"
)

var (
	pollCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comment_poll_cycles_total",
		Help: "Completed comment polling cycles.",
	})
	commentReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comment_replies_total",
			Help: "Comment reply attempts by outcome.",
		},
		[]string{"outcome"}, // replied|failed
	)
)

func init() {
	prometheus.MustRegister(pollCycles, commentReplies)
}

// CommentSource is the slice of the Graph API the poller consumes.
// Implemented by Client; faked in tests.
type CommentSource interface {
	GetRecentPosts(ctx context.Context, limit int) ([]Post, error)
	GetPostComments(ctx context.Context, mediaID string) ([]Comment, error)
	ReplyToComment(ctx context.Context, commentID, text string) error
}

// EntryMatcher is the slice of the registry the poller consumes.
type EntryMatcher interface {
	HasEnabledEntryForPost(ctx context.Context, postID string) (bool, error)
	FindForPost(ctx context.Context, postID, text string) (*domain.CodeWordEntry, error)
}

// CommentPoller scans recent posts for code-word comments and replies to them.
type CommentPoller struct {
	Source   CommentSource
	Registry EntryMatcher
	Ledger   *services.Ledger

	// Interval between cycles; PostLimit caps posts fetched per cycle.
	Interval  time.Duration
	PostLimit int
}

// Run polls until ctx is cancelled. The first cycle starts immediately; each
// wait starts after the previous cycle returns, so a cycle slower than the
// interval never triggers back-to-back cycles.
func (p *CommentPoller) Run(ctx context.Context) {
	log.Info().
		Dur("interval", p.Interval).
		Int("post_limit", p.PostLimit).
		Msg("comment poller started")

	for {
		p.Cycle(ctx)

		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("comment poller stopped")
			return
		case <-timer.C:
		}
	}
}

// Cycle runs one polling pass. Per-post failures are logged and skipped so one
// bad post cannot starve the rest.
func (p *CommentPoller) Cycle(ctx context.Context) {
	posts, err := p.Source.GetRecentPosts(ctx, p.PostLimit)
	if err != nil {
		log.Error().Err(err).Msg("comment poll: fetching posts failed")
		return
	}

	for _, post := range posts {
		configured, err := p.Registry.HasEnabledEntryForPost(ctx, post.ID)
		if err != nil {
			log.Error().Err(err).Str("post_id", post.ID).Msg("comment poll: entry lookup failed")
			continue
		}
		if !configured {
			continue
		}
		p.scanPost(ctx, post.ID)
	}
	pollCycles.Inc()
}

// scanPost checks every comment on one post against its code-word entry.
func (p *CommentPoller) scanPost(ctx context.Context, postID string) {
	comments, err := p.Source.GetPostComments(ctx, postID)
	if err != nil {
		log.Error().Err(err).Str("post_id", postID).Msg("comment poll: fetching comments failed")
		return
	}

	for _, c := range comments {
		if p.Ledger.IsEventProcessed(services.EventComment, c.ID) {
			continue
		}

		entry, err := p.Registry.FindForPost(ctx, postID, c.Text)
		if err != nil {
			log.Error().Err(err).Str("comment_id", c.ID).Msg("comment poll: match lookup failed")
			continue
		}
		if entry == nil {
			// Non-matching comments stay unmarked; an edited comment can
			// still match on a later cycle.
			continue
		}

		if err := p.Source.ReplyToComment(ctx, c.ID, entry.CommentReply); err != nil {
			// Left unmarked: the next cycle retries.
			commentReplies.WithLabelValues("failed").Inc()
			log.Warn().Err(err).
				Str("comment_id", c.ID).
				Str("post_id", postID).
				Msg("comment reply failed")
			continue
		}

		p.Ledger.MarkEventProcessed(services.EventComment, c.ID)
		commentReplies.WithLabelValues("replied").Inc()
		log.Info().
			Str("comment_id", c.ID).
			Str("post_id", postID).
			Str("username", c.Username).
			Str("code_word", entry.CodeWord).
			Msg("replied to comment")
	}
}
