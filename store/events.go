package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pithecene-io/ocean/clock"
	"github.com/pithecene-io/ocean/types"
)

// DefaultGCMinInterval is the minimum spacing between opportunistic TTL
// sweeps, in milliseconds.
const DefaultGCMinInterval = int64(60_000)

// DefaultEventTTL is the default event retention, in milliseconds (7 days).
const DefaultEventTTL = int64(7 * 24 * 60 * 60 * 1000)

// EventStore is the append-only event log: monotone seq, scope-filtered
// cursor reads, TTL pruning. Events have no foreign keys; they survive
// entity deletes as an independent audit trail.
type EventStore struct {
	db *sql.DB

	// TTL is the retention window for GCIfDue.
	TTL int64
	// GCMinInterval spaces opportunistic sweeps.
	GCMinInterval int64

	gcMu   sync.Mutex
	lastGC int64
}

// NewEventStore creates an EventStore with default TTL and sweep spacing.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{
		db:            db,
		TTL:           DefaultEventTTL,
		GCMinInterval: DefaultGCMinInterval,
	}
}

// Append inserts one event and returns the stored row, including the
// database-assigned seq.
func (s *EventStore) Append(ctx context.Context, scope types.ScopeKind, sessionID, runID, tickID *string, eventType string, payload json.RawMessage) (*types.EventRow, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("append event: unknown scope %q", scope)
	}
	if payload == nil {
		payload = json.RawMessage("null")
	}

	row := types.EventRow{
		ID:        clock.NewID("evt"),
		Ts:        clock.Now(),
		Scope:     scope,
		SessionID: sessionID,
		RunID:     runID,
		TickID:    tickID,
		Type:      eventType,
		Payload:   payload,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO events (id, ts, scope_kind, session_id, run_id, tick_id, type, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq`,
		row.ID, row.Ts, string(row.Scope), sessionID, runID, tickID, eventType, string(payload),
	).Scan(&row.Seq)
	if err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}
	return &row, nil
}

// ReadByScope returns events with seq > AfterSeq matching the scope filter,
// ordered by seq ascending, capped at Limit. Global scope matches rows whose
// scope_kind is global; session, run, and tick scopes match rows carrying
// the corresponding identifier.
func (s *EventStore) ReadByScope(ctx context.Context, q types.ReadEventsQuery) ([]types.EventRow, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = types.DefaultEventLimit
	}

	where := "seq > ?"
	args := []any{q.AfterSeq}
	switch q.Scope {
	case types.ScopeGlobal:
		where += " AND scope_kind = 'global'"
	case types.ScopeSession:
		if q.SessionID == "" {
			return nil, fmt.Errorf("read events: session scope requires session_id")
		}
		where += " AND session_id = ?"
		args = append(args, q.SessionID)
	case types.ScopeRun:
		if q.RunID == "" {
			return nil, fmt.Errorf("read events: run scope requires run_id")
		}
		where += " AND run_id = ?"
		args = append(args, q.RunID)
	case types.ScopeTick:
		if q.RunID == "" || q.TickID == "" {
			return nil, fmt.Errorf("read events: tick scope requires run_id and tick_id")
		}
		where += " AND run_id = ? AND tick_id = ?"
		args = append(args, q.RunID, q.TickID)
	default:
		return nil, fmt.Errorf("read events: unknown scope %q", q.Scope)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, id, ts, scope_kind, session_id, run_id, tick_id, type, payload FROM events WHERE "+
			where+" ORDER BY seq LIMIT ?", args...)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.EventRow
	for rows.Next() {
		var (
			e       types.EventRow
			scope   string
			payload string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Ts, &scope, &e.SessionID, &e.RunID, &e.TickID, &e.Type, &payload); err != nil {
			return nil, fmt.Errorf("read events scan: %w", err)
		}
		e.Scope = types.ScopeKind(scope)
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GCByTTL deletes events older than ttlMs and returns the number removed.
func (s *EventStore) GCByTTL(ctx context.Context, ttlMs int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE ts < ?", clock.Now()-ttlMs)
	if err != nil {
		return 0, fmt.Errorf("gc events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("gc events: %w", err)
	}
	return n, nil
}

// GCIfDue runs GCByTTL at most once per GCMinInterval. Callers invoke it
// opportunistically from any request path; off-schedule calls are no-ops.
func (s *EventStore) GCIfDue(ctx context.Context) (int64, error) {
	now := clock.Now()

	s.gcMu.Lock()
	if s.lastGC != 0 && now-s.lastGC < s.GCMinInterval {
		s.gcMu.Unlock()
		return 0, nil
	}
	s.lastGC = now
	s.gcMu.Unlock()

	return s.GCByTTL(ctx, s.TTL)
}
