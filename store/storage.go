package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pithecene-io/ocean/clock"
	"github.com/pithecene-io/ocean/types"
)

// ScopedStore provides the four storage scopes: one row per adapter
// (global), one per (adapter, session), one per (adapter, run), and many
// per (adapter, run, tick) keyed by row_id. Values are opaque JSON text.
//
// Correctness around budgets and read-before-write lives in the tools
// package; this layer is plain upsert/get/delete plus the single-transaction
// op application write_scoped requires.
type ScopedStore struct {
	db *sql.DB
}

// NewScopedStore creates a ScopedStore over the given database.
func NewScopedStore(db *sql.DB) *ScopedStore {
	return &ScopedStore{db: db}
}

// --- singleton reads ---

// GetGlobal reads the per-adapter global row. found is false when absent.
func (s *ScopedStore) GetGlobal(ctx context.Context, clogID string) (value json.RawMessage, found bool, err error) {
	return s.getSingleton(ctx,
		"SELECT value FROM ocean_storage_global WHERE clog_id = ?", clogID)
}

// GetSession reads the per-adapter per-session row.
func (s *ScopedStore) GetSession(ctx context.Context, clogID, sessionID string) (json.RawMessage, bool, error) {
	return s.getSingleton(ctx,
		"SELECT value FROM ocean_storage_session WHERE clog_id = ? AND session_id = ?", clogID, sessionID)
}

// GetRun reads the per-adapter per-run row.
func (s *ScopedStore) GetRun(ctx context.Context, clogID, runID string) (json.RawMessage, bool, error) {
	return s.getSingleton(ctx,
		"SELECT value FROM ocean_storage_run WHERE clog_id = ? AND run_id = ?", clogID, runID)
}

func (s *ScopedStore) getSingleton(ctx context.Context, query string, args ...any) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("scoped read: %w", err)
	}
	return json.RawMessage(value), true, nil
}

// GetTickRows reads tick rows for (clogID, runID, tickID). An empty rowIDs
// slice selects all rows of the tick. Missing rows are simply absent from
// the result map.
func (s *ScopedStore) GetTickRows(ctx context.Context, clogID, runID, tickID string, rowIDs []string) (map[string]json.RawMessage, error) {
	query := "SELECT row_id, value FROM ocean_storage_tick WHERE clog_id = ? AND run_id = ? AND tick_id = ?"
	args := []any{clogID, runID, tickID}
	if len(rowIDs) > 0 {
		query += " AND row_id IN (" + placeholders(len(rowIDs)) + ")"
		for _, id := range rowIDs {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tick rows read: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var rowID, value string
		if err := rows.Scan(&rowID, &value); err != nil {
			return nil, fmt.Errorf("tick rows scan: %w", err)
		}
		out[rowID] = json.RawMessage(value)
	}
	return out, rows.Err()
}

// History returns up to limit distinct tick ids for (clogID, runID),
// ordered by each tick's latest row update (ascending unless desc), with
// the requested rows (all rows when rowIDs is empty) and the tick's latest
// updated_ts. Read-only with respect to the RBW ledger.
func (s *ScopedStore) History(ctx context.Context, clogID, runID string, rowIDs []string, limit int, desc bool) ([]types.HistoryTick, error) {
	if limit <= 0 {
		limit = types.DefaultHistoryLimit
	}
	order := "ASC"
	if desc {
		order = "DESC"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tick_id, MAX(updated_ts) AS ts
		FROM ocean_storage_tick
		WHERE clog_id = ? AND run_id = ?
		GROUP BY tick_id
		ORDER BY ts `+order+`, tick_id `+order+`
		LIMIT ?`,
		clogID, runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history ticks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ticks []types.HistoryTick
	for rows.Next() {
		var t types.HistoryTick
		if err := rows.Scan(&t.TickID, &t.UpdatedTs); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range ticks {
		tickRows, err := s.GetTickRows(ctx, clogID, runID, ticks[i].TickID, rowIDs)
		if err != nil {
			return nil, err
		}
		ticks[i].Rows = tickRows
	}
	return ticks, nil
}

// --- transactional writes ---

// ApplyOps applies all ops inside one transaction so a partial failure
// cannot corrupt state. Ops are assumed pre-validated (scope and RBW checks
// happen in the tools layer before this call). Returns the op count.
func (s *ScopedStore) ApplyOps(ctx context.Context, clogID string, tc types.TickContext, ops []types.WriteOp) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("apply ops: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := clock.Now()
	for _, op := range ops {
		if err := applyOp(ctx, tx, clogID, tc, op, now); err != nil {
			return 0, fmt.Errorf("apply op %s: %w", op.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("apply ops: commit: %w", err)
	}
	return len(ops), nil
}

func applyOp(ctx context.Context, tx *sql.Tx, clogID string, tc types.TickContext, op types.WriteOp, now int64) error {
	var err error
	switch op.Kind {
	case types.OpGlobalSet:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ocean_storage_global (clog_id, value, updated_ts) VALUES (?, ?, ?)
			ON CONFLICT (clog_id) DO UPDATE SET value = excluded.value, updated_ts = excluded.updated_ts`,
			clogID, string(op.Value), now)
	case types.OpGlobalClear:
		_, err = tx.ExecContext(ctx,
			"DELETE FROM ocean_storage_global WHERE clog_id = ?", clogID)
	case types.OpSessionSet:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ocean_storage_session (clog_id, session_id, value, updated_ts) VALUES (?, ?, ?, ?)
			ON CONFLICT (clog_id, session_id) DO UPDATE SET value = excluded.value, updated_ts = excluded.updated_ts`,
			clogID, tc.SessionID, string(op.Value), now)
	case types.OpSessionClear:
		_, err = tx.ExecContext(ctx,
			"DELETE FROM ocean_storage_session WHERE clog_id = ? AND session_id = ?", clogID, tc.SessionID)
	case types.OpRunSet:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ocean_storage_run (clog_id, run_id, value, updated_ts) VALUES (?, ?, ?, ?)
			ON CONFLICT (clog_id, run_id) DO UPDATE SET value = excluded.value, updated_ts = excluded.updated_ts`,
			clogID, tc.RunID, string(op.Value), now)
	case types.OpRunClear:
		_, err = tx.ExecContext(ctx,
			"DELETE FROM ocean_storage_run WHERE clog_id = ? AND run_id = ?", clogID, tc.RunID)
	case types.OpTickSet:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ocean_storage_tick (clog_id, run_id, tick_id, row_id, value, updated_ts) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (clog_id, run_id, tick_id, row_id) DO UPDATE SET value = excluded.value, updated_ts = excluded.updated_ts`,
			clogID, tc.RunID, tc.TickID, op.RowID, string(op.Value), now)
	case types.OpTickDel:
		_, err = tx.ExecContext(ctx,
			"DELETE FROM ocean_storage_tick WHERE clog_id = ? AND run_id = ? AND tick_id = ? AND row_id = ?",
			clogID, tc.RunID, tc.TickID, op.RowID)
	case types.OpSessionDelete:
		_, err = tx.ExecContext(ctx,
			"DELETE FROM ocean_sessions WHERE session_id = ?", tc.SessionID)
	case types.OpRunDelete:
		_, err = tx.ExecContext(ctx,
			"DELETE FROM runs WHERE run_id = ?", tc.RunID)
	case types.OpTickDelete:
		_, err = tx.ExecContext(ctx,
			"DELETE FROM ocean_ticks WHERE run_id = ? AND tick_id = ?", tc.RunID, tc.TickID)
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
	return err
}

// placeholders builds "?, ?, ..." for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
