package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pithecene-io/ocean/clock"
)

// TickStore manages tick entity rows. A tick row is the FK target that
// guarantees tick storage rows cannot outlive their tick.
type TickStore struct {
	db *sql.DB
}

// NewTickStore creates a TickStore over the given database.
func NewTickStore(db *sql.DB) *TickStore {
	return &TickStore{db: db}
}

// Insert creates the tick entity for (runID, tickID) at most once.
// Re-inserting an existing tick is a no-op.
func (s *TickStore) Insert(ctx context.Context, runID, tickID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO ocean_ticks (run_id, tick_id, created_ts) VALUES (?, ?, ?)",
		runID, tickID, clock.Now(),
	)
	if err != nil {
		if isFKViolation(err) {
			return fmt.Errorf("insert tick %s/%s: %w", runID, tickID, ErrRunNotFound)
		}
		return fmt.Errorf("insert tick %s/%s: %w", runID, tickID, err)
	}
	return nil
}

// Exists reports whether the tick entity is present.
func (s *TickStore) Exists(ctx context.Context, runID, tickID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM ocean_ticks WHERE run_id = ? AND tick_id = ?", runID, tickID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tick exists %s/%s: %w", runID, tickID, err)
	}
	return true, nil
}
