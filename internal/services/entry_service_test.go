package services

import (
	"context"
	"testing"

	"github.com/tbourn/go-funnel-backend/internal/domain"
)

type entryDeepLink struct{}

func (entryDeepLink) StartURL(codeWord string) string {
	return "https://t.me/funnelbot?start=" + codeWord
}

func newEntryService(t *testing.T, dl DeepLinker) *EntryService {
	t.Helper()
	return NewEntryService(newServicesDB(t, &domain.CodeWordEntry{}), dl)
}

func TestSaveStandaloneEntry_DefaultsAndDeepLink(t *testing.T) {
	svc := newEntryService(t, entryDeepLink{})

	e, err := svc.SaveStandaloneEntry(context.Background(), EntryInput{
		CodeWord: "  ГАЙД  ",
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if e.CodeWord != "ГАЙД" {
		t.Fatalf("word should be trimmed, got %q", e.CodeWord)
	}
	if e.CodeWordFold != fold("гайд") {
		t.Fatalf("fold not applied: %q", e.CodeWordFold)
	}
	if e.CommentReply != DefaultCommentReply ||
		e.DirectReply != DefaultDirectReply ||
		e.TelegramMessage != DefaultTelegramMessage {
		t.Fatalf("blank replies should take defaults: %+v", e)
	}
	if e.RedirectURL != "https://t.me/funnelbot?start=ГАЙД" {
		t.Fatalf("blank redirect should derive the deep link, got %q", e.RedirectURL)
	}
}

func TestSaveEntry_ExplicitFieldsKept(t *testing.T) {
	svc := newEntryService(t, entryDeepLink{})

	e, err := svc.SavePostEntry(context.Background(), "post-1", EntryInput{
		CodeWord:     "promo",
		CommentReply: "custom comment",
		DirectReply:  "custom dm",
		MediaType:    domain.MediaVideo,
		MediaURL:     "https://cdn.example.com/v.mp4",
		RedirectURL:  "https://example.com/x",
		Buttons:      domain.ButtonList{{Text: "Open", URL: "https://example.com"}},
		Enabled:      true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if e.CommentReply != "custom comment" || e.RedirectURL != "https://example.com/x" {
		t.Fatalf("explicit fields must not be overridden: %+v", e)
	}
	if e.PostID == nil || *e.PostID != "post-1" {
		t.Fatalf("post binding lost: %+v", e)
	}
	if len(e.Buttons) != 1 {
		t.Fatalf("buttons lost: %+v", e.Buttons)
	}
}

func TestSaveEntry_Validation(t *testing.T) {
	svc := newEntryService(t, nil)
	ctx := context.Background()

	if _, err := svc.SaveStandaloneEntry(ctx, EntryInput{CodeWord: "   "}); err != ErrEmptyCodeWord {
		t.Fatalf("expected ErrEmptyCodeWord, got %v", err)
	}
	if _, err := svc.SaveStandaloneEntry(ctx, EntryInput{CodeWord: "x", MediaType: "hologram"}); err != ErrInvalidMedia {
		t.Fatalf("expected ErrInvalidMedia, got %v", err)
	}
}

func TestDeleteEntry_NotFoundMapping(t *testing.T) {
	svc := newEntryService(t, nil)
	ctx := context.Background()

	if err := svc.DeletePostEntry(ctx, "ghost"); err != ErrEntryNotFound {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	if err := svc.DeleteEntry(ctx, "ghost"); err != ErrEntryNotFound {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	if _, err := svc.GetPostEntry(ctx, "ghost"); err != ErrEntryNotFound {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}
