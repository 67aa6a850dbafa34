// Package ocean is a persistence-first execution substrate: runs advance one
// durable tick at a time, all state lives in one SQLite database, and
// progress happens only inside Advance calls driven by external pokes.
package ocean

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pithecene-io/ocean/adapter"
	"github.com/pithecene-io/ocean/clock"
	"github.com/pithecene-io/ocean/db"
	"github.com/pithecene-io/ocean/log"
	"github.com/pithecene-io/ocean/metrics"
	"github.com/pithecene-io/ocean/runtime"
	"github.com/pithecene-io/ocean/store"
	"github.com/pithecene-io/ocean/tools"
	"github.com/pithecene-io/ocean/types"
)

// Options configures Open. Zero values select defaults.
type Options struct {
	// DBPath is the SQLite database file (required).
	DBPath string
	// InstanceID identifies this process as a lock holder. Defaults to a
	// generated "inst_<hex>" id.
	InstanceID string
	// LockMs is the advance lock TTL. Defaults to runtime.DefaultLockMs.
	LockMs int64
	// EventTTLMs is the event retention window for TTL sweeps. Defaults to
	// store.DefaultEventTTL.
	EventTTLMs int64
	// EventGCMinIntervalMs throttles opportunistic sweeps. Defaults to
	// store.DefaultGCMinInterval.
	EventGCMinIntervalMs int64
	// Notifier optionally mirrors appended events downstream. Best-effort:
	// publish failures are logged and dropped.
	Notifier adapter.Adapter
	// Logger defaults to a stderr logger bound to InstanceID.
	Logger *log.Logger
}

// Core is the substrate facade: one database handle, the registered clogs,
// and the scheduler. Safe for concurrent use.
type Core struct {
	conn       *sql.DB
	instanceID string

	runs   *store.RunStore
	ticks  *store.TickStore
	scoped *store.ScopedStore
	events *store.EventStore

	registry  *runtime.Registry
	factory   *tools.Factory
	scheduler *runtime.Scheduler

	notifier  adapter.Adapter
	collector *metrics.Collector
	logger    *log.Logger
}

// Open opens the database and wires the substrate. It does not apply the
// schema; call Migrate before first use of a fresh database.
func Open(opts Options) (*Core, error) {
	if opts.DBPath == "" {
		return nil, fmt.Errorf("ocean: DBPath is required")
	}

	instanceID := opts.InstanceID
	if instanceID == "" {
		instanceID = clock.NewID("inst")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger(instanceID)
	}

	conn, err := db.Open(opts.DBPath)
	if err != nil {
		return nil, err
	}

	c := &Core{
		conn:       conn,
		instanceID: instanceID,
		runs:       store.NewRunStore(conn),
		ticks:      store.NewTickStore(conn),
		scoped:     store.NewScopedStore(conn),
		events:     store.NewEventStore(conn),
		registry:   runtime.NewRegistry(),
		notifier:   opts.Notifier,
		collector:  metrics.NewCollector(instanceID),
		logger:     logger,
	}
	if opts.EventTTLMs > 0 {
		c.events.TTL = opts.EventTTLMs
	}
	if opts.EventGCMinIntervalMs > 0 {
		c.events.GCMinInterval = opts.EventGCMinIntervalMs
	}

	c.factory = &tools.Factory{
		Scoped:   c.scoped,
		Events:   c.events,
		Resolver: c.registry,
		OnEvent:  c.mirrorEvent,
		OnPeerCall: func(string, string, string) {
			c.collector.IncPeerCall()
		},
	}
	c.scheduler = runtime.NewScheduler(&runtime.Config{
		InstanceID: instanceID,
		LockMs:     opts.LockMs,
		Runs:       c.runs,
		Ticks:      c.ticks,
		Tools:      c.factory,
		Registry:   c.registry,
		Logger:     logger,
		Collector:  c.collector,
	})

	return c, nil
}

// Migrate applies the schema. Idempotent.
func (c *Core) Migrate() error {
	return db.Migrate(c.conn)
}

// RegisterClog adds an adapter to this process. Runs owned by unregistered
// clogs fail terminally when advanced.
func (c *Core) RegisterClog(clog *types.Clog) error {
	return c.registry.Register(clog)
}

// CreateRun creates a run (and its session if absent). A non-nil Input
// starts the run pending; nil starts it idle.
func (c *Core) CreateRun(ctx context.Context, opts types.CreateRunOptions) (string, error) {
	return c.runs.Create(ctx, opts)
}

// Signal enqueues input into a run and wakes it if idle or waiting.
// Terminal runs absorb the signal.
func (c *Core) Signal(ctx context.Context, runID string, input json.RawMessage) error {
	return c.runs.Signal(ctx, runID, input)
}

// AdvanceSummary is the external shape of one advance poll.
type AdvanceSummary struct {
	// Advanced is 0 or 1: how many runs this poll ticked.
	Advanced int                  `json:"advanced"`
	Results  []runtime.TickResult `json:"results"`
}

// Advance executes at most one tick. Callers poke it repeatedly until
// Advanced is 0.
func (c *Core) Advance(ctx context.Context) (*AdvanceSummary, error) {
	res, err := c.scheduler.Advance(ctx)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &AdvanceSummary{}, nil
	}
	return &AdvanceSummary{Advanced: 1, Results: []runtime.TickResult{*res}}, nil
}

// Drain advances until no run is eligible or max ticks have executed.
// max <= 0 means unbounded.
func (c *Core) Drain(ctx context.Context, max int) ([]runtime.TickResult, error) {
	return c.scheduler.Drain(ctx, max)
}

// GetRun returns the external view of a run, or nil when it does not exist.
func (c *Core) GetRun(ctx context.Context, runID string) (*types.RunView, error) {
	run, err := c.runs.Get(ctx, runID)
	if err != nil || run == nil {
		return nil, err
	}
	return &types.RunView{
		RunID:       run.RunID,
		SessionID:   run.SessionID,
		ClogID:      run.ClogID,
		Status:      run.Status,
		Attempt:     run.Attempt,
		MaxAttempts: run.MaxAttempts,
		WakeAt:      run.WakeAt,
		LastError:   run.LastError,
		CreatedTs:   run.CreatedTs,
		UpdatedTs:   run.UpdatedTs,
	}, nil
}

// ReadEvents returns a scope-filtered, cursor-paginated page of the event
// log. The cursor is the last returned Seq.
func (c *Core) ReadEvents(ctx context.Context, q types.ReadEventsQuery) ([]types.EventRow, error) {
	return c.events.ReadByScope(ctx, q)
}

// GCEventsIfDue runs a TTL sweep if the minimum interval has elapsed.
// Returns the number of events removed (0 when off-schedule).
func (c *Core) GCEventsIfDue(ctx context.Context) (int64, error) {
	removed, err := c.events.GCIfDue(ctx)
	if removed > 0 {
		c.collector.AddEventsSwept(removed)
	}
	return removed, err
}

// GCEvents runs a TTL sweep unconditionally.
func (c *Core) GCEvents(ctx context.Context) (int64, error) {
	removed, err := c.events.GCByTTL(ctx, c.events.TTL)
	if removed > 0 {
		c.collector.AddEventsSwept(removed)
	}
	return removed, err
}

// CallClog invokes a clog endpoint directly, outside the state machine: no
// lock is taken and no outcome is applied. The tick entity is created if
// absent so tick-scoped writes made by the endpoint have a parent row. The
// callee gets a fresh invoker with a full budget.
func (c *Core) CallClog(ctx context.Context, runID, tickID, clogID, method string, payload json.RawMessage) (json.RawMessage, error) {
	run, err := c.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("call clog: %w", store.ErrRunNotFound)
	}

	clog, ok := c.registry.Resolve(clogID)
	if !ok {
		return nil, fmt.Errorf("call clog: %q is not registered", clogID)
	}
	endpoint, ok := clog.Endpoints[method]
	if !ok {
		return nil, fmt.Errorf("call clog: %q has no endpoint %q", clogID, method)
	}

	if err := c.ticks.Insert(ctx, runID, tickID); err != nil {
		return nil, err
	}

	c.collector.IncPeerCall()
	tc := types.TickContext{SessionID: run.SessionID, RunID: runID, TickID: tickID}
	return endpoint(ctx, payload, &types.EndpointContext{Tools: c.factory.For(tc, clogID)})
}

// DeleteRun removes a run and its cascading storage, ticks, and tick rows.
func (c *Core) DeleteRun(ctx context.Context, runID string) error {
	return c.runs.DeleteRun(ctx, runID)
}

// DeleteSession removes a session and everything beneath it.
func (c *Core) DeleteSession(ctx context.Context, sessionID string) error {
	return c.runs.DeleteSession(ctx, sessionID)
}

// Metrics returns a point-in-time snapshot of the process counters.
func (c *Core) Metrics() metrics.Snapshot {
	return c.collector.Snapshot()
}

// Close closes the notifier (if any) and the database.
func (c *Core) Close() error {
	if c.notifier != nil {
		if err := c.notifier.Close(); err != nil {
			c.logger.Warn("notifier close failed", map[string]any{"error": err.Error()})
		}
	}
	return c.conn.Close()
}

// mirrorEvent counts the append and forwards the envelope to the notifier.
// Mirror failures never reach the appender.
func (c *Core) mirrorEvent(ctx context.Context, event *types.EventEnvelope) {
	c.collector.IncEventAppended()
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Publish(ctx, event); err != nil {
		c.logger.Warn("event mirror failed", map[string]any{
			"event_id": event.EventID,
			"error":    err.Error(),
		})
	}
}
