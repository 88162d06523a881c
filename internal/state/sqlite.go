package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/yourorg/release-tracker/internal/release"
)

// SQLiteStore keeps all projects in one database. Each write is a single
// statement, so Lock has nothing to serialize.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite creates a new database connection and runs migrations
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("db path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", release.ErrStateIO, filepath.Dir(dbPath), err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite prefers a single writer
	conn.SetMaxOpenConns(1)

	// Test connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	_, _ = conn.Exec("PRAGMA busy_timeout = 5000")
	_, _ = conn.Exec("PRAGMA journal_mode = WAL")

	s := &SQLiteStore{conn: conn}

	// Run migrations
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// migrate runs database migrations
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS latest_versions (
			project    TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			updated_at TEXT DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS delivered_versions (
			project    TEXT NOT NULL,
			identifier TEXT NOT NULL,
			created_at TEXT DEFAULT (datetime('now')),
			PRIMARY KEY (project, identifier)
		)`,
		`CREATE TABLE IF NOT EXISTS message_state (
			project     TEXT PRIMARY KEY,
			identifier  TEXT NOT NULL,
			message_ids TEXT NOT NULL,
			body_hash   TEXT NOT NULL,
			updated_at  TEXT DEFAULT (datetime('now'))
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.conn.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// Latest version operations

// ReadLatest returns the stored identifier for project
func (s *SQLiteStore) ReadLatest(ctx context.Context, project string) (string, bool, error) {
	query := `SELECT identifier FROM latest_versions WHERE project = ?`
	var id string
	err := s.conn.QueryRowContext(ctx, query, project).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, stateErr("read latest", err)
	}
	return id, true, nil
}

// WriteLatest replaces the stored identifier for project
func (s *SQLiteStore) WriteLatest(ctx context.Context, project, id string) error {
	query := `INSERT OR REPLACE INTO latest_versions (project, identifier, updated_at) VALUES (?, ?, datetime('now'))`
	if _, err := s.conn.ExecContext(ctx, query, project, id); err != nil {
		return stateErr("write latest", err)
	}
	return nil
}

// Delivered set operations

// Contains checks if a version has been delivered
func (s *SQLiteStore) Contains(ctx context.Context, project, id string) (bool, error) {
	query := `SELECT 1 FROM delivered_versions WHERE project = ? AND identifier = ?`
	var exists int
	err := s.conn.QueryRowContext(ctx, query, project, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, stateErr("read delivered", err)
	}
	return true, nil
}

// Add marks a version as delivered
func (s *SQLiteStore) Add(ctx context.Context, project, id string) error {
	query := `INSERT OR IGNORE INTO delivered_versions (project, identifier) VALUES (?, ?)`
	if _, err := s.conn.ExecContext(ctx, query, project, id); err != nil {
		return stateErr("add delivered", err)
	}
	return nil
}

// Message record operations

// ReadMessage returns the current message record for project
func (s *SQLiteStore) ReadMessage(ctx context.Context, project string) (MessageRecord, bool, error) {
	query := `SELECT identifier, message_ids, body_hash FROM message_state WHERE project = ?`
	var (
		rec MessageRecord
		ids string
	)
	err := s.conn.QueryRowContext(ctx, query, project).Scan(&rec.Identifier, &ids, &rec.BodyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return MessageRecord{}, false, nil
	}
	if err != nil {
		return MessageRecord{}, false, stateErr("read message", err)
	}
	if err := json.Unmarshal([]byte(ids), &rec.MessageIDs); err != nil {
		return MessageRecord{}, false, stateErr("decode message ids", err)
	}
	return rec, true, nil
}

// WriteMessage replaces the message record for project
func (s *SQLiteStore) WriteMessage(ctx context.Context, project string, rec MessageRecord) error {
	ids, err := json.Marshal(rec.MessageIDs)
	if err != nil {
		return stateErr("encode message ids", err)
	}
	query := `INSERT OR REPLACE INTO message_state (project, identifier, message_ids, body_hash, updated_at) VALUES (?, ?, ?, ?, datetime('now'))`
	if _, err := s.conn.ExecContext(ctx, query, project, rec.Identifier, string(ids), rec.BodyHash); err != nil {
		return stateErr("write message", err)
	}
	return nil
}

// ClearMessage deletes the message record for project
func (s *SQLiteStore) ClearMessage(ctx context.Context, project string) error {
	query := `DELETE FROM message_state WHERE project = ?`
	if _, err := s.conn.ExecContext(ctx, query, project); err != nil {
		return stateErr("clear message", err)
	}
	return nil
}

// Lock is a no-op
func (s *SQLiteStore) Lock(ctx context.Context, project string) (func(), error) {
	return func() {}, nil
}

func stateErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", release.ErrStateIO, op, err)
}
