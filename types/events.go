package types

import "encoding/json"

// ScopeKind is the addressing granularity of storage and events.
type ScopeKind string

const (
	ScopeGlobal  ScopeKind = "global"
	ScopeSession ScopeKind = "session"
	ScopeRun     ScopeKind = "run"
	ScopeTick    ScopeKind = "tick"
)

// Valid reports whether k is one of the four scope kinds.
func (k ScopeKind) Valid() bool {
	switch k {
	case ScopeGlobal, ScopeSession, ScopeRun, ScopeTick:
		return true
	}
	return false
}

// EventRow is one append-only log entry. Seq is the database-maintained
// monotone counter; ID is globally unique. The optional ids are populated
// per Scope: session carries SessionID, run adds RunID, tick adds TickID.
type EventRow struct {
	Seq       int64
	ID        string
	Ts        int64
	Scope     ScopeKind
	SessionID *string
	RunID     *string
	TickID    *string
	Type      string
	Payload   json.RawMessage
}

// ReadEventsQuery selects a scope-filtered, cursor-paginated slice of the
// log. The cursor is the last returned Seq.
type ReadEventsQuery struct {
	Scope ScopeKind
	// SessionID filters session-scope reads; required when Scope is session.
	SessionID string
	// RunID filters run- and tick-scope reads.
	RunID string
	// TickID filters tick-scope reads.
	TickID string
	// AfterSeq excludes events with seq <= AfterSeq.
	AfterSeq int64
	// Limit caps the page size. Defaults to DefaultEventLimit.
	Limit int
}

// DefaultEventLimit is the page cap applied when ReadEventsQuery.Limit is 0.
const DefaultEventLimit = 100

// EventEnvelope is the wire form of an appended event, published to the
// optional notifier adapters. Msgpack tags match the runtime frame format;
// JSON tags serve the webhook adapter.
type EventEnvelope struct {
	Seq       int64           `json:"seq" msgpack:"seq"`
	EventID   string          `json:"event_id" msgpack:"event_id"`
	Ts        int64           `json:"ts" msgpack:"ts"`
	Scope     ScopeKind       `json:"scope" msgpack:"scope"`
	SessionID *string         `json:"session_id,omitempty" msgpack:"session_id,omitempty"`
	RunID     *string         `json:"run_id,omitempty" msgpack:"run_id,omitempty"`
	TickID    *string         `json:"tick_id,omitempty" msgpack:"tick_id,omitempty"`
	Type      string          `json:"type" msgpack:"type"`
	Payload   json.RawMessage `json:"payload" msgpack:"payload"`
}

// Envelope converts a stored row to its wire form.
func (e *EventRow) Envelope() *EventEnvelope {
	return &EventEnvelope{
		Seq:       e.Seq,
		EventID:   e.ID,
		Ts:        e.Ts,
		Scope:     e.Scope,
		SessionID: e.SessionID,
		RunID:     e.RunID,
		TickID:    e.TickID,
		Type:      e.Type,
		Payload:   e.Payload,
	}
}
