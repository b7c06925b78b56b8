package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/physum/physbot/pkg/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store wraps the embedded SQLite database shared by every feature of the bot:
// role menus, the FAQ and the moderation logs.
// It uses modernc.org/sqlite for CGO-less builds.
type Store struct {
	dbPath string
	db     *sql.DB
}

var ErrNotInitialized = errors.New("store not initialized")

// NewStore creates a new Store pointing to dbPath. Call Init() before using it.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Init opens the SQLite database, configures pragmas, and ensures the schema
// exists. Calling it again on an open store is a no-op.
func (s *Store) Init() error {
	if s.db != nil {
		return nil
	}
	if s.dbPath == "" {
		return fmt.Errorf("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(s.dbPath))
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	log.DatabaseLogger().Info("SQLite store ready", "path", s.dbPath)
	return nil
}

// dsn sets pragmas through the connection string so that every pooled
// connection gets them, not only the first one.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	return s.db.PingContext(ctx)
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err comes from a UNIQUE or PRIMARY KEY
// constraint failure.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

// ensureSchema creates the tables when missing. Safe on every startup.
func ensureSchema(db *sql.DB) error {
	const createRolesView = `
CREATE TABLE IF NOT EXISTS roles_view (
  view_id    INTEGER PRIMARY KEY,
  guild_id   TEXT NOT NULL,
  channel_id TEXT NOT NULL,
  message_id TEXT NOT NULL UNIQUE,
  view_type  TEXT NOT NULL CHECK (view_type IN ('select', 'toggle')),
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_roles_view_guild ON roles_view(guild_id);`

	const createRolesComponent = `
CREATE TABLE IF NOT EXISTS roles_component (
  component_id TEXT NOT NULL UNIQUE,
  name         TEXT NOT NULL,
  view_id      INTEGER NOT NULL REFERENCES roles_view(view_id) ON DELETE CASCADE,
  UNIQUE (view_id, name)
);`

	const createRolesBinding = `
CREATE TABLE IF NOT EXISTS roles_binding (
  role_id TEXT NOT NULL,
  view_id INTEGER NOT NULL REFERENCES roles_view(view_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_roles_binding_view ON roles_binding(view_id);`

	const createFAQ = `
CREATE TABLE IF NOT EXISTS faq_entry (
  guild_id   TEXT NOT NULL,
  key        TEXT NOT NULL,
  content    TEXT NOT NULL,
  user_id    TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  UNIQUE (guild_id, key)
);`

	const createDeleteLog = `
CREATE TABLE IF NOT EXISTS moderation_deletelog (
  channel_id TEXT NOT NULL,
  guild_id   TEXT NOT NULL,
  message_id TEXT NOT NULL,
  deleted_at TIMESTAMP NOT NULL,
  content    TEXT,
  user_id    TEXT,
  jump_url   TEXT
);
CREATE INDEX IF NOT EXISTS idx_deletelog_channel ON moderation_deletelog(guild_id, channel_id, deleted_at);`

	const createEditLog = `
CREATE TABLE IF NOT EXISTS moderation_editlog (
  channel_id     TEXT NOT NULL,
  message_id     TEXT NOT NULL,
  edited_at      TIMESTAMP NOT NULL,
  guild_id       TEXT,
  content_before TEXT,
  content_after  TEXT,
  user_id        TEXT,
  jump_url       TEXT
);
CREATE INDEX IF NOT EXISTS idx_editlog_channel ON moderation_editlog(guild_id, channel_id, edited_at);`

	stmts := []string{
		createRolesView,
		createRolesComponent,
		createRolesBinding,
		createFAQ,
		createDeleteLog,
		createEditLog,
	}
	for _, sqlText := range stmts {
		if _, err := db.Exec(sqlText); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
