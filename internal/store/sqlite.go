package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// GetMark returns the stored mark for an account/folder pair, or
// (nil, nil) when the pair has never been synchronized.
func (s *SQLiteStore) GetMark(
	ctx context.Context,
	account, folder string,
) (*SyncMark, error) {
	var mark SyncMark
	err := s.db.GetContext(ctx, &mark,
		"SELECT account, folder, uid_validity, last_uid FROM sync_marks WHERE account = ? AND folder = ?",
		account, folder,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting sync mark for %s/%s: %w", account, folder, err)
	}

	return &mark, nil
}

// SetMark inserts or replaces the mark for its account/folder pair.
func (s *SQLiteStore) SetMark(ctx context.Context, mark SyncMark) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_marks (
			account, folder, uid_validity, last_uid, updated_at
		) VALUES (?, ?, ?, ?, ?)`,
		mark.Account, mark.Folder, mark.UIDValidity, mark.LastUID,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting sync mark for %s/%s: %w", mark.Account, mark.Folder, err)
	}

	return nil
}
