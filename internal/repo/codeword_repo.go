// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// CodeWordEntry model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Code-word folding is performed by the
// service layer; repositories treat CodeWordFold as an opaque key.
//
// Error semantics:
//   - When an entry is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-funnel-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertPostEntry creates or replaces the single entry bound to postID.
// The entry keeps its original ID and CreatedAt when it already exists.
func UpsertPostEntry(ctx context.Context, db *gorm.DB, postID string, e *domain.CodeWordEntry) (*domain.CodeWordEntry, error) {
	e.PostID = &postID
	var existing domain.CodeWordEntry
	err := db.WithContext(ctx).Where("post_id = ?", postID).First(&existing).Error
	switch {
	case err == nil:
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
		e.UpdatedAt = time.Now().UTC()
		return e, db.WithContext(ctx).Save(e).Error
	case err == gorm.ErrRecordNotFound:
		e.ID = uuid.NewString()
		e.CreatedAt = time.Now().UTC()
		return e, db.WithContext(ctx).Create(e).Error
	default:
		return nil, err
	}
}

// UpsertStandaloneEntry creates or replaces a standalone entry keyed by its
// folded code word.
func UpsertStandaloneEntry(ctx context.Context, db *gorm.DB, e *domain.CodeWordEntry) (*domain.CodeWordEntry, error) {
	e.PostID = nil
	var existing domain.CodeWordEntry
	err := db.WithContext(ctx).
		Where("post_id IS NULL AND code_word_fold = ?", e.CodeWordFold).
		First(&existing).Error
	switch {
	case err == nil:
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
		e.UpdatedAt = time.Now().UTC()
		return e, db.WithContext(ctx).Save(e).Error
	case err == gorm.ErrRecordNotFound:
		e.ID = uuid.NewString()
		e.CreatedAt = time.Now().UTC()
		return e, db.WithContext(ctx).Create(e).Error
	default:
		return nil, err
	}
}

// GetPostEntry fetches the entry bound to postID, enabled or not.
// Returns ErrNotFound when the post has no entry.
func GetPostEntry(ctx context.Context, db *gorm.DB, postID string) (*domain.CodeWordEntry, error) {
	var e domain.CodeWordEntry
	if err := db.WithContext(ctx).Where("post_id = ?", postID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEnabledEntries returns all enabled entries ordered by creation time
// ascending, post-scoped before standalone. Matching iterates this order, so
// it is the tie-break when several code words are substrings of one text.
func ListEnabledEntries(ctx context.Context, db *gorm.DB) ([]domain.CodeWordEntry, error) {
	var out []domain.CodeWordEntry
	err := db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("post_id IS NULL, created_at asc").
		Find(&out).Error
	return out, err
}

// ListEntries returns every live entry (enabled and disabled), newest first.
func ListEntries(ctx context.Context, db *gorm.DB) ([]domain.CodeWordEntry, error) {
	var out []domain.CodeWordEntry
	err := db.WithContext(ctx).Order("created_at desc").Find(&out).Error
	return out, err
}

// ListStandaloneEntries returns live standalone entries, newest first.
func ListStandaloneEntries(ctx context.Context, db *gorm.DB) ([]domain.CodeWordEntry, error) {
	var out []domain.CodeWordEntry
	err := db.WithContext(ctx).
		Where("post_id IS NULL").
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// FindEnabledByFold fetches the first enabled entry whose folded code word
// equals fold, post-scoped entries first. Returns ErrNotFound on miss.
func FindEnabledByFold(ctx context.Context, db *gorm.DB, fold string) (*domain.CodeWordEntry, error) {
	var e domain.CodeWordEntry
	err := db.WithContext(ctx).
		Where("enabled = ? AND code_word_fold = ?", true, fold).
		Order("post_id IS NULL, created_at asc").
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// DeletePostEntry soft-deletes the entry bound to postID.
// Returns ErrNotFound when the post has no entry.
func DeletePostEntry(ctx context.Context, db *gorm.DB, postID string) error {
	res := db.WithContext(ctx).Where("post_id = ?", postID).Delete(&domain.CodeWordEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteEntryByID soft-deletes an entry by primary key.
// Returns ErrNotFound when no such entry exists.
func DeleteEntryByID(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.CodeWordEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
