// Package services – EntryService
//
// This file implements the write side of the code-word registry, used by the
// admin API. It applies default reply copy, validates media, folds the code
// word for matching, and derives the bot deep link when no redirect URL is
// given. The core pipeline only ever reads entries; all mutation funnels
// through here.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-funnel-backend/internal/domain"
	"github.com/tbourn/go-funnel-backend/internal/repo"
)

// Default reply copy applied when the admin leaves fields blank.
const (
	DefaultCommentReply    = "Check your direct messages!"
	DefaultDirectReply     = "Thanks for your interest! Tap the button below to get the instructions."
	DefaultTelegramMessage = "Hi! Here are your instructions."
)

// EntryInput carries the admin-supplied fields of a code-word entry.
// Blank reply fields fall back to package defaults; a blank RedirectURL is
// derived from the bot deep link when one is available.
type EntryInput struct {
	CodeWord        string
	CommentReply    string
	DirectReply     string
	TelegramMessage string
	MediaType       string
	MediaURL        string
	Buttons         domain.ButtonList
	RedirectURL     string
	Enabled         bool
}

// EntryService persists code-word entries.
type EntryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// DeepLink derives redirect URLs from the bot username; optional.
	DeepLink DeepLinker
}

// NewEntryService constructs an EntryService over db.
func NewEntryService(db *gorm.DB, dl DeepLinker) *EntryService {
	return &EntryService{DB: db, DeepLink: dl}
}

// SavePostEntry creates or replaces the entry bound to postID.
func (s *EntryService) SavePostEntry(ctx context.Context, postID string, in EntryInput) (*domain.CodeWordEntry, error) {
	e, err := s.build(in)
	if err != nil {
		return nil, err
	}
	return repo.UpsertPostEntry(ctx, s.DB, postID, e)
}

// SaveStandaloneEntry creates or replaces a standalone entry keyed by the
// folded code word.
func (s *EntryService) SaveStandaloneEntry(ctx context.Context, in EntryInput) (*domain.CodeWordEntry, error) {
	e, err := s.build(in)
	if err != nil {
		return nil, err
	}
	return repo.UpsertStandaloneEntry(ctx, s.DB, e)
}

// DeletePostEntry removes the entry bound to postID.
// Returns ErrEntryNotFound when the post has no entry.
func (s *EntryService) DeletePostEntry(ctx context.Context, postID string) error {
	if err := repo.DeletePostEntry(ctx, s.DB, postID); err != nil {
		if err == repo.ErrNotFound {
			return ErrEntryNotFound
		}
		return err
	}
	return nil
}

// DeleteEntry removes an entry by id.
// Returns ErrEntryNotFound when no such entry exists.
func (s *EntryService) DeleteEntry(ctx context.Context, id string) error {
	if err := repo.DeleteEntryByID(ctx, s.DB, id); err != nil {
		if err == repo.ErrNotFound {
			return ErrEntryNotFound
		}
		return err
	}
	return nil
}

// List returns every live entry, newest first.
func (s *EntryService) List(ctx context.Context) ([]domain.CodeWordEntry, error) {
	return repo.ListEntries(ctx, s.DB)
}

// ListStandalone returns live standalone entries, newest first.
func (s *EntryService) ListStandalone(ctx context.Context) ([]domain.CodeWordEntry, error) {
	return repo.ListStandaloneEntries(ctx, s.DB)
}

// GetPostEntry returns the entry bound to postID, or ErrEntryNotFound.
func (s *EntryService) GetPostEntry(ctx context.Context, postID string) (*domain.CodeWordEntry, error) {
	e, err := repo.GetPostEntry(ctx, s.DB, postID)
	if err == repo.ErrNotFound {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// build validates and normalizes admin input into a persistable entry.
func (s *EntryService) build(in EntryInput) (*domain.CodeWordEntry, error) {
	word := strings.TrimSpace(in.CodeWord)
	if word == "" {
		return nil, ErrEmptyCodeWord
	}
	switch in.MediaType {
	case "", domain.MediaPhoto, domain.MediaVideo, domain.MediaDocument:
	default:
		return nil, ErrInvalidMedia
	}

	e := &domain.CodeWordEntry{
		CodeWord:        word,
		CodeWordFold:    fold(word),
		CommentReply:    orDefault(in.CommentReply, DefaultCommentReply),
		DirectReply:     orDefault(in.DirectReply, DefaultDirectReply),
		TelegramMessage: orDefault(in.TelegramMessage, DefaultTelegramMessage),
		MediaType:       in.MediaType,
		MediaURL:        strings.TrimSpace(in.MediaURL),
		Buttons:         in.Buttons,
		RedirectURL:     strings.TrimSpace(in.RedirectURL),
		Enabled:         in.Enabled,
	}
	if e.RedirectURL == "" && s.DeepLink != nil {
		e.RedirectURL = s.DeepLink.StartURL(word)
	}
	return e, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
