package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-funnel-backend/internal/domain"
)

func entryFixture(word string) *domain.CodeWordEntry {
	return &domain.CodeWordEntry{
		CodeWord:        word,
		CodeWordFold:    word, // tests use pre-folded words
		CommentReply:    "check your DMs",
		DirectReply:     "here you go",
		TelegramMessage: "welcome",
		Enabled:         true,
	}
}

func TestUpsertPostEntry_CreateThenReplace(t *testing.T) {
	db := newFunnelDB(t, &domain.CodeWordEntry{})
	ctx := context.Background()

	created, err := UpsertPostEntry(ctx, db, "post-1", entryFixture("free"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.PostID == nil || *created.PostID != "post-1" {
		t.Fatalf("unexpected created entry: %+v", created)
	}

	// Replace keeps the ID and CreatedAt.
	time.Sleep(5 * time.Millisecond)
	replacement := entryFixture("promo")
	replaced, err := UpsertPostEntry(ctx, db, "post-1", replacement)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if replaced.ID != created.ID {
		t.Fatalf("replace minted a new ID: %q != %q", replaced.ID, created.ID)
	}
	if !replaced.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("replace changed CreatedAt")
	}

	got, err := GetPostEntry(ctx, db, "post-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CodeWord != "promo" {
		t.Fatalf("expected replaced word, got %q", got.CodeWord)
	}

	// Only one live row for the post.
	all, err := ListEntries(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(all))
	}
}

func TestUpsertPostEntry_RecreateAfterDelete(t *testing.T) {
	// Full migration: the live-rows-only unique index must be in place.
	db := newFunnelDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	ctx := context.Background()

	if _, err := UpsertPostEntry(ctx, db, "post-1", entryFixture("free")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := DeletePostEntry(ctx, db, "post-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The soft-deleted row must not block binding the post again.
	recreated, err := UpsertPostEntry(ctx, db, "post-1", entryFixture("promo"))
	if err != nil {
		t.Fatalf("recreate after delete: %v", err)
	}
	got, err := GetPostEntry(ctx, db, "post-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != recreated.ID || got.CodeWord != "promo" {
		t.Fatalf("unexpected recreated entry: %+v", got)
	}

	// Live uniqueness still holds: a second live row for the post is rejected.
	post := "post-1"
	dup := entryFixture("dup")
	dup.ID = "dup-id"
	dup.PostID = &post
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("second live row for the same post should violate the index")
	}
}

func TestUpsertStandaloneEntry_KeyedByFold(t *testing.T) {
	db := newFunnelDB(t, &domain.CodeWordEntry{})
	ctx := context.Background()

	first, err := UpsertStandaloneEntry(ctx, db, entryFixture("гайд"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	second := entryFixture("гайд")
	second.DirectReply = "updated"
	updated, err := UpsertStandaloneEntry(ctx, db, second)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != first.ID {
		t.Fatalf("same fold should reuse the row")
	}

	standalone, err := ListStandaloneEntries(ctx, db)
	if err != nil {
		t.Fatalf("list standalone: %v", err)
	}
	if len(standalone) != 1 || standalone[0].DirectReply != "updated" {
		t.Fatalf("unexpected standalone entries: %+v", standalone)
	}
}

func TestListEnabledEntries_OrderAndFiltering(t *testing.T) {
	db := newFunnelDB(t, &domain.CodeWordEntry{})
	ctx := context.Background()

	if _, err := UpsertStandaloneEntry(ctx, db, entryFixture("alpha")); err != nil {
		t.Fatalf("standalone: %v", err)
	}
	disabled := entryFixture("hidden")
	disabled.Enabled = false
	if _, err := UpsertStandaloneEntry(ctx, db, disabled); err != nil {
		t.Fatalf("disabled: %v", err)
	}
	if _, err := UpsertPostEntry(ctx, db, "p1", entryFixture("beta")); err != nil {
		t.Fatalf("post entry: %v", err)
	}

	enabled, err := ListEnabledEntries(ctx, db)
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled entries, got %d", len(enabled))
	}
	// Post-scoped entries sort before standalone ones.
	if enabled[0].PostID == nil || enabled[1].PostID != nil {
		t.Fatalf("expected post-scoped first: %+v", enabled)
	}
}

func TestFindEnabledByFold(t *testing.T) {
	db := newFunnelDB(t, &domain.CodeWordEntry{})
	ctx := context.Background()

	if _, err := UpsertStandaloneEntry(ctx, db, entryFixture("старт")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := FindEnabledByFold(ctx, db, "старт")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.CodeWord != "старт" {
		t.Fatalf("unexpected entry: %+v", got)
	}

	if _, err := FindEnabledByFold(ctx, db, "misses"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteEntries_NotFoundSemantics(t *testing.T) {
	db := newFunnelDB(t, &domain.CodeWordEntry{})
	ctx := context.Background()

	if err := DeletePostEntry(ctx, db, "ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing post entry, got %v", err)
	}
	if err := DeleteEntryByID(ctx, db, "ghost-id"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}

	created, err := UpsertPostEntry(ctx, db, "p1", entryFixture("word"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := DeletePostEntry(ctx, db, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Soft-deleted rows are invisible to reads.
	if _, err := GetPostEntry(ctx, db, "p1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := DeleteEntryByID(ctx, db, created.ID); err != ErrNotFound {
		t.Fatalf("double delete should be ErrNotFound, got %v", err)
	}
}
