package types

import (
	"context"
	"encoding/json"
)

// Tool names handled by the dispatcher.
const (
	ToolReadScoped  = "ocean.storage.read_scoped"
	ToolWriteScoped = "ocean.storage.write_scoped"
	ToolEmit        = "ocean.events.emit"
	ToolClogCall    = "ocean.clog.call"
)

// TickContext is the identity of the tick a tool invoker is bound to.
// Invokers have no meaningful life outside their tick.
type TickContext struct {
	SessionID string
	RunID     string
	TickID    string
}

// ToolInvoker is the surface adapters use to reach storage, events, and
// peer adapters. One invoker per adapter per tick; peer calls receive a
// fresh invoker with its own budget and ledger.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, input any) Result
}

// PlanKind discriminates read plans.
type PlanKind string

const (
	PlanGlobal   PlanKind = "global"
	PlanSession  PlanKind = "session"
	PlanRun      PlanKind = "run"
	PlanTickRows PlanKind = "tickRows"
	// PlanHistory reads prior ticks' rows for hydration. It records nothing
	// into the read ledger.
	PlanHistory PlanKind = "historyTicksForRun"
)

// HistoryOrder orders history ticks by their latest update.
type HistoryOrder string

const (
	HistoryAsc  HistoryOrder = "asc"
	HistoryDesc HistoryOrder = "desc"
)

// ReadPlan is one element of a read_scoped call. Identity fields must match
// the current tick context for non-history plans; a mismatch fails the whole
// call with INVALID_SCOPE.
type ReadPlan struct {
	Kind      PlanKind
	SessionID string
	RunID     string
	TickID    string
	// RowIDs selects tick rows. For history plans an empty slice means all
	// rows of each tick.
	RowIDs []string
	// LimitTicks bounds history plans. 0 means DefaultHistoryLimit.
	LimitTicks int
	// Order is the history tick ordering. Defaults to ascending.
	Order HistoryOrder
}

// DefaultHistoryLimit applies when ReadPlan.LimitTicks is 0.
const DefaultHistoryLimit = 20

// ReadScopedInput is the input of ocean.storage.read_scoped.
type ReadScopedInput struct {
	Plans []ReadPlan
}

// SnapshotEntry is the result of one read plan, in plan order. Value is set
// for singleton scopes (nil when the row does not exist), Rows for tickRows,
// Ticks for history.
type SnapshotEntry struct {
	Plan  PlanKind
	Value json.RawMessage
	Rows  map[string]json.RawMessage
	Ticks []HistoryTick
}

// HistoryTick is one prior tick's rows plus its latest update timestamp.
type HistoryTick struct {
	TickID    string
	UpdatedTs int64
	Rows      map[string]json.RawMessage
}

// ReadScopedOutput is the output of ocean.storage.read_scoped.
type ReadScopedOutput struct {
	Snapshot []SnapshotEntry
}

// OpKind discriminates write ops. Scope identities are implicit from the
// tick context; only tick ops carry a row id.
type OpKind string

const (
	OpGlobalSet     OpKind = "global.set"
	OpGlobalClear   OpKind = "global.clear"
	OpSessionSet    OpKind = "session.set"
	OpSessionClear  OpKind = "session.clear"
	OpRunSet        OpKind = "run.set"
	OpRunClear      OpKind = "run.clear"
	OpTickSet       OpKind = "tick.set"
	OpTickDel       OpKind = "tick.del"
	OpSessionDelete OpKind = "session.delete"
	OpRunDelete     OpKind = "run.delete"
	OpTickDelete    OpKind = "tick.delete"
)

// WriteOp is one element of a write_scoped call.
type WriteOp struct {
	Kind OpKind
	// RowID targets a tick row for tick.set and tick.del.
	RowID string
	// Value is the opaque payload for set ops.
	Value json.RawMessage
}

// WriteScopedInput is the input of ocean.storage.write_scoped. All ops are
// validated before any executes, then applied in one transaction.
type WriteScopedInput struct {
	Ops []WriteOp
}

// WriteScopedOutput is the output of ocean.storage.write_scoped.
type WriteScopedOutput struct {
	Applied int
}

// EmitInput is the input of ocean.events.emit. The scope ids are taken from
// the tick context.
type EmitInput struct {
	Scope   ScopeKind
	Type    string
	Payload json.RawMessage
}

// EmitOutput is the output of ocean.events.emit.
type EmitOutput struct {
	Seq     int64
	EventID string
}

// ClogCallInput is the input of ocean.clog.call. Address has the form
// "clog.<id>.<method>".
type ClogCallInput struct {
	Address string
	Payload json.RawMessage
}

// ClogCallOutput is the output of ocean.clog.call.
type ClogCallOutput struct {
	Result json.RawMessage
}
