// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-funnel-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Trace queries alongside HTTP spans; metrics come from Prometheus instead.
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	// Pool. SQLite is effectively single-writer; a small pool is enough.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain models and the
// partial unique indexes GORM tags cannot express. Both uniqueness rules
// apply to live rows only: a full index would keep counting soft-deleted
// entries and block re-creating settings for a post (or a standalone word)
// after a delete.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.CodeWordEntry{},
		&domain.RepliedRecipient{},
		&domain.PaidAccess{},
	); err != nil {
		return err
	}
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_entry_post
		 ON code_word_entries(post_id)
		 WHERE post_id IS NOT NULL AND deleted_at IS NULL`,
	).Error; err != nil {
		return err
	}
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_entry_standalone_word
		 ON code_word_entries(code_word_fold)
		 WHERE post_id IS NULL AND deleted_at IS NULL`,
	).Error
}
