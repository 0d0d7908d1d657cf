// Package services – Registry
//
// This file implements the code-word registry: read-only matching of inbound
// text against configured entries. Two deliberately different match rules
// coexist and must not be unified:
//
//   - Comments and direct messages carry free-form social text, so matching
//     is case-insensitive substring containment of the code word in the text.
//   - Telegram /start parameters are structured deep-link payloads, so
//     resolution is case-insensitive exact equality.
//
// Case-insensitivity uses Unicode case folding rather than ToLower because
// code words are routinely non-ASCII (Cyrillic).
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"

	"github.com/tbourn/go-funnel-backend/internal/domain"
	"github.com/tbourn/go-funnel-backend/internal/repo"
)

// foldCaser performs Unicode case folding for caseless comparison.
// cases.Caser is not safe for concurrent use, so fold() creates one per call.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Registry answers "which entry does this text trigger". It is read-only:
// entries are produced by the admin API and only consumed here.
type Registry struct {
	// DB is the GORM handle used for lookups.
	DB *gorm.DB
}

// NewRegistry constructs a Registry over db.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{DB: db}
}

// FindAnywhere scans all enabled entries (post-scoped and standalone) for one
// whose folded code word is contained in text. The first match in store order
// wins; when several enabled code words are substrings of the same text the
// winner is iteration-order-dependent, which is a known ambiguity of the
// matching rule. Returns (nil, nil) when nothing matches.
func (r *Registry) FindAnywhere(ctx context.Context, text string) (*domain.CodeWordEntry, error) {
	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, "FindAnywhere")
	defer span.End()

	needle := fold(text)
	if needle == "" {
		return nil, nil
	}

	entries, err := repo.ListEnabledEntries(ctx, r.DB)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		e := &entries[i]
		if e.CodeWordFold != "" && strings.Contains(needle, e.CodeWordFold) {
			span.SetAttributes(attribute.String("entry.id", e.ID))
			return e, nil
		}
	}
	return nil, nil
}

// FindForPost checks only the entry bound to postID, with the same substring
// containment rule as FindAnywhere. Returns (nil, nil) when the post has no
// enabled entry or the text does not contain its code word.
func (r *Registry) FindForPost(ctx context.Context, postID, text string) (*domain.CodeWordEntry, error) {
	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, "FindForPost",
		trace.WithAttributes(attribute.String("post.id", postID)),
	)
	defer span.End()

	needle := fold(text)
	if needle == "" {
		return nil, nil
	}

	e, err := repo.GetPostEntry(ctx, r.DB, postID)
	if err == repo.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !e.Enabled || e.CodeWordFold == "" {
		return nil, nil
	}
	if strings.Contains(needle, e.CodeWordFold) {
		return e, nil
	}
	return nil, nil
}

// ResolveExact looks up an enabled entry whose folded code word equals the
// folded word. Unlike the social channels this is strict equality: a deep
// link for "free" must not resolve "freebie". Returns (nil, nil) on miss.
func (r *Registry) ResolveExact(ctx context.Context, word string) (*domain.CodeWordEntry, error) {
	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, "ResolveExact")
	defer span.End()

	needle := fold(word)
	if needle == "" {
		return nil, nil
	}

	e, err := repo.FindEnabledByFold(ctx, r.DB, needle)
	if err == repo.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// HasEnabledEntryForPost reports whether postID carries an enabled entry.
// The poller uses it to skip posts before fetching their comments.
func (r *Registry) HasEnabledEntryForPost(ctx context.Context, postID string) (bool, error) {
	e, err := repo.GetPostEntry(ctx, r.DB, postID)
	if err == repo.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.Enabled, nil
}
