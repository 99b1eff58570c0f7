package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store provides database operations for teams, members, sessions and
// responses. All mutations are single-row and atomic; state transitions are
// compare-and-set updates so no intermediate state is ever observable.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at dbPath and initializes the
// schema.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL mode allows concurrent readers while the orchestrator writes.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_pragma=foreign_keys(on)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers well.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS teams (
		team_id            INTEGER PRIMARY KEY AUTOINCREMENT,
		company_name       TEXT NOT NULL,
		team_name          TEXT NOT NULL,
		code               TEXT NOT NULL UNIQUE,
		strategy_statement TEXT,
		image_prompt       TEXT,
		bullet_prompt      TEXT,
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		member_id  INTEGER PRIMARY KEY AUTOINCREMENT,
		team_id    INTEGER NOT NULL,
		name       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (team_id) REFERENCES teams(team_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id                      INTEGER PRIMARY KEY AUTOINCREMENT,
		team_id                         INTEGER NOT NULL,
		month                           TEXT NOT NULL,
		state                           TEXT NOT NULL DEFAULT 'draft',
		synthesis_themes                TEXT,
		synthesis_statements            TEXT,
		synthesis_gap_type              TEXT,
		synthesis_gap_reasoning         TEXT,
		suggested_recalibrations        TEXT,
		facilitator_notes               TEXT,
		facilitator_notes_updated_at    TEXT,
		recalibration_action            TEXT,
		recalibration_action_updated_at TEXT,
		created_at                      TEXT NOT NULL,
		closed_at                       TEXT,
		revealed_at                     TEXT,
		UNIQUE (team_id, month),
		FOREIGN KEY (team_id) REFERENCES teams(team_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS responses (
		response_id  INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id   INTEGER NOT NULL,
		member_id    INTEGER NOT NULL,
		image_id     TEXT NOT NULL,
		bullets      TEXT NOT NULL,
		submitted_at TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		UNIQUE (session_id, member_id),
		FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
		FOREIGN KEY (member_id) REFERENCES members(member_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS events (
		event_id   INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		event_data TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_team ON members(team_id);
	CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_team ON sessions(team_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
	CREATE INDEX IF NOT EXISTS idx_responses_session ON responses(session_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
