package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/medpipe/medpipe/internal/models"
	_ "github.com/lib/pq"
)

// Connection pool settings for the Postgres backend.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store from a connection string.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres store ready")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(sess models.Session) error {
	contextJSON, historyJSON, err := marshalSession(sess)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO sessions (id, username, context, history, created_at, updated_at, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET username=EXCLUDED.username, context=EXCLUDED.context,
			history=EXCLUDED.history, updated_at=EXCLUDED.updated_at, last_activity=EXCLUDED.last_activity`,
		sess.ID, nilIfEmpty(sess.Username), contextJSON, nilIfEmpty(historyJSON),
		sess.CreatedAt, sess.UpdatedAt, sess.LastActivity)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "session", sess.ID)
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "session", sess.ID, "state", sess.Context.State)
	return nil
}

func (s *PostgresStore) GetSession(id string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT id, username, context, history, created_at, updated_at, last_activity
		FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "session", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *PostgresStore) DeleteSession(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "session", id)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) ListSessions() ([]models.Session, error) {
	rows, err := s.db.Query(`SELECT id, username, context, history, created_at, updated_at, last_activity
		FROM sessions ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListSessions query failed", "error", err)
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

func (s *PostgresStore) AddSnippets(snippets []models.Snippet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snippet transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO snippets (text, metadata) VALUES ($1, $2)`)
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
			slog.Error("PostgresStore AddSnippets insert failed", "error", err)
			return fmt.Errorf("failed to insert snippet: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snippets: %w", err)
	}
	slog.Debug("PostgresStore AddSnippets succeeded", "count", len(snippets))
	return nil
}

func (s *PostgresStore) ListSnippets() ([]models.Snippet, error) {
	rows, err := s.db.Query(`SELECT id, text, metadata FROM snippets ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore ListSnippets query failed", "error", err)
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

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
