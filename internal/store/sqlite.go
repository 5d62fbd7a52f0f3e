// Package store provides storage backends for MedPipe.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/medpipe/medpipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store. The DSN is a file path to the
// database file; the containing directory is created if needed.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite store ready", "path", dsn)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSession(sess models.Session) error {
	contextJSON, historyJSON, err := marshalSession(sess)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO sessions (id, username, context, history, created_at, updated_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET username=excluded.username, context=excluded.context,
			history=excluded.history, updated_at=excluded.updated_at, last_activity=excluded.last_activity`,
		sess.ID, nilIfEmpty(sess.Username), contextJSON, nilIfEmpty(historyJSON),
		sess.CreatedAt, sess.UpdatedAt, sess.LastActivity)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "session", sess.ID)
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "session", sess.ID, "state", sess.Context.State)
	return nil
}

func (s *SQLiteStore) GetSession(id string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT id, username, context, history, created_at, updated_at, last_activity
		FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "session", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "session", id)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ListSessions() ([]models.Session, error) {
	rows, err := s.db.Query(`SELECT id, username, context, history, created_at, updated_at, last_activity
		FROM sessions ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return sessions, nil
}

func (s *SQLiteStore) AddSnippets(snippets []models.Snippet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snippet transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO snippets (text, metadata) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snippet insert: %w", err)
	}
	defer stmt.Close()

	for _, sn := range snippets {
		metadataJSON, err := marshalMetadata(sn)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(sn.Text, nilIfEmpty(metadataJSON)); err != nil {
			slog.Error("SQLiteStore AddSnippets insert failed", "error", err)
			return fmt.Errorf("failed to insert snippet: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snippets: %w", err)
	}
	slog.Debug("SQLiteStore AddSnippets succeeded", "count", len(snippets))
	return nil
}

func (s *SQLiteStore) ListSnippets() ([]models.Snippet, error) {
	rows, err := s.db.Query(`SELECT id, text, metadata FROM snippets ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore ListSnippets query failed", "error", err)
		return nil, fmt.Errorf("failed to query snippets: %w", err)
	}
	defer rows.Close()

	var snippets []models.Snippet
	for rows.Next() {
		sn, err := scanSnippet(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snippet row: %w", err)
		}
		snippets = append(snippets, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snippet rows: %w", err)
	}
	return snippets, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
