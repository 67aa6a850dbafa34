package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pithecene-io/ocean/clock"
	"github.com/pithecene-io/ocean/types"
)

// RunStore provides durable run CRUD plus the atomic acquire and
// release-with-signal-detection primitives.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore over the given database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

const runColumns = "run_id, session_id, clog_id, status, state, locked_by, lock_expires_at, " +
	"attempt, max_attempts, wake_at, pending_input, last_error, created_ts, updated_ts"

// Create creates the session if absent and inserts a new run. A supplied
// Input (including json null) enqueues it and the run starts pending;
// a nil Input starts the run idle.
func (s *RunStore) Create(ctx context.Context, opts types.CreateRunOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = types.DefaultMaxAttempts
	}

	state := opts.InitialState
	if state == nil {
		state = json.RawMessage("null")
	}

	status := types.StatusIdle
	if opts.Input != nil {
		status = types.StatusPending
	}

	runID := clock.NewID("run")
	now := clock.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("create run: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO ocean_sessions (session_id, created_ts) VALUES (?, ?)",
		opts.SessionID, now,
	); err != nil {
		return "", fmt.Errorf("create run: ensure session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, session_id, clog_id, status, state, locked_by, lock_expires_at,
			attempt, max_attempts, wake_at, pending_input, last_error, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, NULL, NULL, 0, ?, NULL, ?, NULL, ?, ?)`,
		runID, opts.SessionID, opts.ClogID, string(status), string(state),
		maxAttempts, rawToNull(opts.Input), now, now,
	); err != nil {
		return "", fmt.Errorf("create run: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("create run: commit: %w", err)
	}
	return runID, nil
}

// Get reads a run row. Returns (nil, nil) when the run does not exist.
func (s *RunStore) Get(ctx context.Context, runID string) (*types.RunRow, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE run_id = ?", runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// Signal enqueues input into a run: one statement writes pending_input and
// flips idle/waiting to pending. Active and pending keep their status but
// still take the newer input. Terminal runs absorb the signal entirely.
//
// input must be non-nil; callers normalize an absent payload to json null.
func (s *RunStore) Signal(ctx context.Context, runID string, input json.RawMessage) error {
	if input == nil {
		input = json.RawMessage("null")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			pending_input = ?,
			status = CASE WHEN status IN ('idle', 'waiting') THEN 'pending' ELSE status END,
			updated_ts = ?
		WHERE run_id = ? AND status NOT IN ('done', 'failed')`,
		string(input), clock.Now(), runID,
	)
	if err != nil {
		return fmt.Errorf("signal run %s: %w", runID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("signal run %s: %w", runID, err)
	}
	if n == 0 {
		// Missing run is an error; a terminal run absorbs silently.
		run, err := s.Get(ctx, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("signal run %s: %w", runID, ErrRunNotFound)
		}
	}
	return nil
}

// Acquire atomically selects and locks one eligible run: status pending, or
// waiting with wake_at due, with a free or expired lock. The whole operation
// is a single UPDATE whose outer WHERE re-asserts the subselect's predicate,
// so two concurrent acquirers cannot both win. Status is intentionally not
// changed: the active marker is the non-null lock.
//
// Returns the pre-update snapshot (pending_input, attempt, status...), or
// (nil, nil) when no run is eligible.
func (s *RunStore) Acquire(ctx context.Context, instanceID string, lockMs int64) (*types.RunRow, error) {
	now := clock.Now()
	expires := now + lockMs

	row := s.db.QueryRowContext(ctx, `
		UPDATE runs SET locked_by = ?1, lock_expires_at = ?2, updated_ts = ?3
		WHERE run_id = (
			SELECT run_id FROM runs
			WHERE (status = 'pending' OR (status = 'waiting' AND wake_at <= ?3))
			  AND (locked_by IS NULL OR lock_expires_at <= ?3)
			ORDER BY updated_ts, run_id
			LIMIT 1
		)
		AND (status = 'pending' OR (status = 'waiting' AND wake_at <= ?3))
		AND (locked_by IS NULL OR lock_expires_at <= ?3)
		RETURNING `+runColumns,
		instanceID, expires, now,
	)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}
	return run, nil
}

// ConsumePendingInput nulls out pending_input. Called immediately after a
// successful Acquire so that a signal arriving during the tick is observable
// as a fresh non-null pending_input at release time.
func (s *RunStore) ConsumePendingInput(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET pending_input = NULL, updated_ts = ? WHERE run_id = ?",
		clock.Now(), runID,
	)
	if err != nil {
		return fmt.Errorf("consume pending input %s: %w", runID, err)
	}
	return nil
}

// ReleasePatch is the outcome-derived update a release applies when no
// signal arrived during the tick.
type ReleasePatch struct {
	Status       types.RunStatus
	Attempt      int
	WakeAt       *int64
	LastError    *string
	PendingInput json.RawMessage
}

// Release clears the lock and applies the patch in one UPDATE. For
// non-terminal patches the statement checks pending_input inside the same
// UPDATE: a non-null value means a signal arrived during the tick, and the
// run goes back to pending with attempt reset and the signal's input kept.
// Terminal patches (done, failed) apply unconditionally and clear
// pending_input; signals cannot override a terminal outcome.
//
// The check and the lock clear are one statement, closing the TOCTOU window
// between "handler returned" and "release persisted".
func (s *RunStore) Release(ctx context.Context, runID string, patch ReleasePatch) error {
	now := clock.Now()

	var res sql.Result
	var err error
	if patch.Status.IsTerminal() {
		res, err = s.db.ExecContext(ctx, `
			UPDATE runs SET
				status = ?, attempt = ?, wake_at = NULL, last_error = ?,
				pending_input = NULL, locked_by = NULL, lock_expires_at = NULL,
				updated_ts = ?
			WHERE run_id = ?`,
			string(patch.Status), patch.Attempt, patch.LastError, now, runID,
		)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE runs SET
				status        = CASE WHEN pending_input IS NOT NULL THEN 'pending' ELSE ?1 END,
				attempt       = CASE WHEN pending_input IS NOT NULL THEN 0 ELSE ?2 END,
				wake_at       = CASE WHEN pending_input IS NOT NULL THEN NULL ELSE ?3 END,
				last_error    = CASE WHEN pending_input IS NOT NULL THEN NULL ELSE ?4 END,
				pending_input = CASE WHEN pending_input IS NOT NULL THEN pending_input ELSE ?5 END,
				locked_by = NULL, lock_expires_at = NULL,
				updated_ts = ?6
			WHERE run_id = ?7`,
			string(patch.Status), patch.Attempt, patch.WakeAt, patch.LastError,
			rawToNull(patch.PendingInput), now, runID,
		)
	}
	if err != nil {
		return fmt.Errorf("release run %s: %w", runID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("release run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// DeleteRun deletes a run; ticks, run storage, and tick storage cascade.
func (s *RunStore) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}

// DeleteSession deletes a session; runs and all descendant rows cascade.
func (s *RunStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM ocean_sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanRun.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*types.RunRow, error) {
	var (
		run          types.RunRow
		status       string
		state        string
		pendingInput sql.NullString
	)
	err := sc.Scan(
		&run.RunID, &run.SessionID, &run.ClogID, &status, &state,
		&run.LockedBy, &run.LockExpiresAt, &run.Attempt, &run.MaxAttempts,
		&run.WakeAt, &pendingInput, &run.LastError, &run.CreatedTs, &run.UpdatedTs,
	)
	if err != nil {
		return nil, err
	}

	run.Status = types.RunStatus(status)
	run.State = json.RawMessage(state)
	if pendingInput.Valid {
		run.PendingInput = json.RawMessage(pendingInput.String)
	}
	return &run, nil
}

// rawToNull maps a nil RawMessage to SQL NULL and anything else to text.
func rawToNull(v json.RawMessage) any {
	if v == nil {
		return nil
	}
	return string(v)
}
