// Package db opens the Ocean database and applies its schema.
//
// Ocean persists everything in a single SQLite database. Foreign-key
// enforcement is enabled per connection via the DSN pragma; cascade wiring
// in the schema depends on it.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// dsnPragmas are appended to every open. WAL allows concurrent readers
// while an advance holds a write; busy_timeout absorbs short lock races
// between instances sharing the file.
const dsnPragmas = "?_pragma=journal_mode(WAL)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=foreign_keys(ON)" +
	"&_pragma=busy_timeout(5000)"

// Open opens (creating if needed) the database at path.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path must be non-empty")
	}

	conn, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return conn, nil
}

// Schema is the full Ocean schema. Column names are part of the external
// contract. Events stand outside the cascade topology on purpose: the audit
// log survives entity deletes and is pruned only by TTL.
const Schema = `
CREATE TABLE IF NOT EXISTS ocean_sessions (
	session_id TEXT PRIMARY KEY,
	created_ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	clog_id         TEXT NOT NULL,
	status          TEXT NOT NULL,
	state           TEXT NOT NULL,
	locked_by       TEXT,
	lock_expires_at INTEGER,
	attempt         INTEGER NOT NULL DEFAULT 0,
	max_attempts    INTEGER NOT NULL DEFAULT 3,
	wake_at         INTEGER,
	pending_input   TEXT,
	last_error      TEXT,
	created_ts      INTEGER NOT NULL,
	updated_ts      INTEGER NOT NULL,

	FOREIGN KEY (session_id) REFERENCES ocean_sessions(session_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
CREATE INDEX IF NOT EXISTS idx_runs_eligibility ON runs(status, wake_at, lock_expires_at);

CREATE TABLE IF NOT EXISTS ocean_ticks (
	run_id     TEXT NOT NULL,
	tick_id    TEXT NOT NULL,
	created_ts INTEGER NOT NULL,

	PRIMARY KEY (run_id, tick_id),
	FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS ocean_storage_global (
	clog_id    TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ocean_storage_session (
	clog_id    TEXT NOT NULL,
	session_id TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_ts INTEGER NOT NULL,

	PRIMARY KEY (clog_id, session_id),
	FOREIGN KEY (session_id) REFERENCES ocean_sessions(session_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS ocean_storage_run (
	clog_id    TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_ts INTEGER NOT NULL,

	PRIMARY KEY (clog_id, run_id),
	FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS ocean_storage_tick (
	clog_id    TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	tick_id    TEXT NOT NULL,
	row_id     TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_ts INTEGER NOT NULL,

	PRIMARY KEY (clog_id, run_id, tick_id, row_id),
	FOREIGN KEY (run_id, tick_id) REFERENCES ocean_ticks(run_id, tick_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_storage_tick_history ON ocean_storage_tick(clog_id, run_id, tick_id);

CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	ts         INTEGER NOT NULL,
	scope_kind TEXT NOT NULL,
	session_id TEXT,
	run_id     TEXT,
	tick_id    TEXT,
	type       TEXT NOT NULL,
	payload    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_run_seq ON events(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_events_session_seq ON events(session_id, seq);
`

// Migrate applies the schema. Idempotent.
func Migrate(conn *sql.DB) error {
	if _, err := conn.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
