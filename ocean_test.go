package ocean

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pithecene-io/ocean/adapter"
	"github.com/pithecene-io/ocean/clock"
	"github.com/pithecene-io/ocean/log"
	"github.com/pithecene-io/ocean/types"
)

type coreClock struct {
	mu  sync.Mutex
	now int64
}

func (c *coreClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *coreClock) Advance(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ms
}

func useCoreClock(t *testing.T, start int64) *coreClock {
	t.Helper()
	fc := &coreClock{now: start}
	restore := clock.SetNow(fc.Now)
	t.Cleanup(restore)
	return fc
}

// captureAdapter records published envelopes. failWith makes Publish fail.
type captureAdapter struct {
	mu       sync.Mutex
	events   []*types.EventEnvelope
	failWith error
	closed   bool
}

func (a *captureAdapter) Publish(_ context.Context, event *types.EventEnvelope) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failWith != nil {
		return a.failWith
	}
	a.events = append(a.events, event)
	return nil
}

func (a *captureAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

var _ adapter.Adapter = (*captureAdapter)(nil)

func openCore(t *testing.T, mod func(*Options)) *Core {
	t.Helper()
	opts := Options{
		DBPath:     filepath.Join(t.TempDir(), "ocean.db"),
		InstanceID: "inst-test",
		Logger:     log.NewLogger("inst-test").WithOutput(io.Discard),
	}
	if mod != nil {
		mod(&opts)
	}
	c, err := Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return c
}

func TestOpenRequiresDBPath(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatal("expected error for empty DBPath")
	}
}

func TestEndToEndHappyPath(t *testing.T) {
	useCoreClock(t, 1_000_000)
	ctx := context.Background()
	c := openCore(t, nil)

	var gotInput json.RawMessage
	err := c.RegisterClog(&types.Clog{
		ID: "chat",
		OnAdvance: func(ctx context.Context, input json.RawMessage, ac *types.AdvanceContext) (*types.TickOutcome, error) {
			gotInput = input
			res := ac.Tools.Invoke(ctx, types.ToolEmit, types.EmitInput{
				Scope:   types.ScopeRun,
				Type:    "message",
				Payload: json.RawMessage(`{"text":"hi"}`),
			})
			if !res.OK {
				t.Errorf("emit failed: %v", res.Error)
			}
			return &types.TickOutcome{Status: types.OutcomeOK}, nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterClog: %v", err)
	}

	runID, err := c.CreateRun(ctx, types.CreateRunOptions{
		SessionID: "sess_1",
		ClogID:    "chat",
		Input:     json.RawMessage(`{"text":"hello"}`),
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	sum, err := c.Advance(ctx)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if sum.Advanced != 1 || len(sum.Results) != 1 {
		t.Fatalf("expected one tick, got %+v", sum)
	}
	if sum.Results[0].Outcome != types.OutcomeOK {
		t.Errorf("outcome = %q, want ok", sum.Results[0].Outcome)
	}
	if string(gotInput) != `{"text":"hello"}` {
		t.Errorf("handler input = %s", gotInput)
	}

	view, err := c.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if view == nil || view.Status != types.StatusIdle || view.Attempt != 0 {
		t.Fatalf("run view = %+v, want idle attempt=0", view)
	}

	events, err := c.ReadEvents(ctx, types.ReadEventsQuery{Scope: types.ScopeRun, RunID: runID})
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 1 || events[0].Type != "message" {
		t.Fatalf("expected one message event, got %+v", events)
	}

	snap := c.Metrics()
	if snap.AdvanceCalls != 1 || snap.TicksExecuted != 1 || snap.EventsAppended != 1 {
		t.Errorf("metrics = %+v", snap)
	}
	if snap.TicksDone != 0 || snap.TicksFailed != 0 {
		t.Errorf("unexpected terminal counters in %+v", snap)
	}
}

func TestAdvanceEmptySubstrate(t *testing.T) {
	ctx := context.Background()
	c := openCore(t, nil)

	sum, err := c.Advance(ctx)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if sum.Advanced != 0 || len(sum.Results) != 0 {
		t.Fatalf("expected empty poll, got %+v", sum)
	}
	if c.Metrics().EmptyPolls != 1 {
		t.Errorf("EmptyPolls = %d, want 1", c.Metrics().EmptyPolls)
	}
}

func TestGetRunMissingIsNil(t *testing.T) {
	c := openCore(t, nil)
	view, err := c.GetRun(context.Background(), "run_missing")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if view != nil {
		t.Fatalf("expected nil view, got %+v", view)
	}
}

func TestSignalThenDrain(t *testing.T) {
	useCoreClock(t, 1_000_000)
	ctx := context.Background()
	c := openCore(t, nil)

	steps := 0
	c.RegisterClog(&types.Clog{
		ID: "worker",
		OnAdvance: func(ctx context.Context, input json.RawMessage, ac *types.AdvanceContext) (*types.TickOutcome, error) {
			steps++
			if steps < 3 {
				return &types.TickOutcome{Status: types.OutcomeContinue, Input: json.RawMessage(`{"next":true}`)}, nil
			}
			return &types.TickOutcome{Status: types.OutcomeDone}, nil
		},
	})

	runID, err := c.CreateRun(ctx, types.CreateRunOptions{SessionID: "sess_1", ClogID: "worker"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	// Idle run: nothing to do until signaled.
	sum, _ := c.Advance(ctx)
	if sum.Advanced != 0 {
		t.Fatalf("idle run should not advance, got %+v", sum)
	}

	if err := c.Signal(ctx, runID, json.RawMessage(`{"go":true}`)); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	results, err := c.Drain(ctx, 0)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(results))
	}
	if results[2].Outcome != types.OutcomeDone {
		t.Errorf("final outcome = %q, want done", results[2].Outcome)
	}

	view, _ := c.GetRun(ctx, runID)
	if view.Status != types.StatusDone {
		t.Errorf("run status = %q, want done", view.Status)
	}
}

func TestNotifierMirrorsAppendedEvents(t *testing.T) {
	useCoreClock(t, 1_000_000)
	ctx := context.Background()
	capture := &captureAdapter{}
	c := openCore(t, func(o *Options) { o.Notifier = capture })

	c.RegisterClog(&types.Clog{
		ID: "chat",
		OnAdvance: func(ctx context.Context, input json.RawMessage, ac *types.AdvanceContext) (*types.TickOutcome, error) {
			ac.Tools.Invoke(ctx, types.ToolEmit, types.EmitInput{
				Scope:   types.ScopeRun,
				Type:    "mirrored",
				Payload: json.RawMessage(`{"n":1}`),
			})
			return &types.TickOutcome{Status: types.OutcomeOK}, nil
		},
	})
	runID, _ := c.CreateRun(ctx, types.CreateRunOptions{
		SessionID: "sess_1", ClogID: "chat", Input: json.RawMessage(`{}`),
	})
	if _, err := c.Advance(ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	capture.mu.Lock()
	defer capture.mu.Unlock()
	if len(capture.events) != 1 {
		t.Fatalf("expected 1 mirrored event, got %d", len(capture.events))
	}
	ev := capture.events[0]
	if ev.Type != "mirrored" || ev.Scope != types.ScopeRun {
		t.Errorf("mirrored event = %+v", ev)
	}
	if ev.RunID == nil || *ev.RunID != runID {
		t.Errorf("mirrored run id = %v, want %s", ev.RunID, runID)
	}
}

func TestNotifierFailureDoesNotAffectTick(t *testing.T) {
	useCoreClock(t, 1_000_000)
	ctx := context.Background()
	capture := &captureAdapter{failWith: errors.New("downstream unavailable")}
	c := openCore(t, func(o *Options) { o.Notifier = capture })

	c.RegisterClog(&types.Clog{
		ID: "chat",
		OnAdvance: func(ctx context.Context, input json.RawMessage, ac *types.AdvanceContext) (*types.TickOutcome, error) {
			res := ac.Tools.Invoke(ctx, types.ToolEmit, types.EmitInput{
				Scope: types.ScopeRun, Type: "message", Payload: json.RawMessage(`{}`),
			})
			if !res.OK {
				t.Errorf("emit should succeed despite mirror failure: %v", res.Error)
			}
			return &types.TickOutcome{Status: types.OutcomeOK}, nil
		},
	})
	runID, _ := c.CreateRun(ctx, types.CreateRunOptions{
		SessionID: "sess_1", ClogID: "chat", Input: json.RawMessage(`{}`),
	})

	sum, err := c.Advance(ctx)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if sum.Advanced != 1 || sum.Results[0].Outcome != types.OutcomeOK {
		t.Fatalf("tick should succeed, got %+v", sum)
	}

	// The durable log keeps the event even though the mirror dropped it.
	events, err := c.ReadEvents(ctx, types.ReadEventsQuery{Scope: types.ScopeRun, RunID: runID})
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected durable event, got %d", len(events))
	}
}

func TestCallClogDirectInvocation(t *testing.T) {
	useCoreClock(t, 1_000_000)
	ctx := context.Background()
	c := openCore(t, nil)

	c.RegisterClog(&types.Clog{
		ID: "notes",
		Endpoints: map[string]types.EndpointHandler{
			"save": func(ctx context.Context, payload json.RawMessage, ec *types.EndpointContext) (json.RawMessage, error) {
				res := ec.Tools.Invoke(ctx, types.ToolWriteScoped, types.WriteScopedInput{
					Ops: []types.WriteOp{{Kind: types.OpTickSet, RowID: "note_1", Value: payload}},
				})
				if !res.OK {
					t.Errorf("tick write failed: %v", res.Error)
				}
				return json.RawMessage(`{"saved":true}`), nil
			},
		},
	})
	runID, err := c.CreateRun(ctx, types.CreateRunOptions{SessionID: "sess_1", ClogID: "notes"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	out, err := c.CallClog(ctx, runID, "tick_direct", "notes", "save", json.RawMessage(`{"body":"remember"}`))
	if err != nil {
		t.Fatalf("CallClog: %v", err)
	}
	if string(out) != `{"saved":true}` {
		t.Errorf("CallClog result = %s", out)
	}
	if c.Metrics().PeerCalls != 1 {
		t.Errorf("PeerCalls = %d, want 1", c.Metrics().PeerCalls)
	}

	// Re-calling with the same tick id reuses the tick entity.
	if _, err := c.CallClog(ctx, runID, "tick_direct", "notes", "save", json.RawMessage(`{"body":"again"}`)); err != nil {
		t.Fatalf("repeat CallClog: %v", err)
	}
}

func TestCallClogAddressingErrors(t *testing.T) {
	ctx := context.Background()
	c := openCore(t, nil)

	c.RegisterClog(&types.Clog{
		ID: "notes",
		Endpoints: map[string]types.EndpointHandler{
			"save": func(ctx context.Context, payload json.RawMessage, ec *types.EndpointContext) (json.RawMessage, error) {
				return nil, nil
			},
		},
	})
	runID, _ := c.CreateRun(ctx, types.CreateRunOptions{SessionID: "sess_1", ClogID: "notes"})

	if _, err := c.CallClog(ctx, "run_missing", "tick_1", "notes", "save", nil); err == nil {
		t.Error("expected error for missing run")
	}
	if _, err := c.CallClog(ctx, runID, "tick_1", "ghost", "save", nil); err == nil {
		t.Error("expected error for unregistered clog")
	}
	if _, err := c.CallClog(ctx, runID, "tick_1", "notes", "missing", nil); err == nil {
		t.Error("expected error for unknown endpoint")
	}
}

func TestGCEventsSweepsExpired(t *testing.T) {
	fc := useCoreClock(t, 1_000_000)
	ctx := context.Background()
	c := openCore(t, func(o *Options) {
		o.EventTTLMs = 5_000
		o.EventGCMinIntervalMs = 1_000
	})

	c.RegisterClog(&types.Clog{
		ID: "chat",
		OnAdvance: func(ctx context.Context, input json.RawMessage, ac *types.AdvanceContext) (*types.TickOutcome, error) {
			ac.Tools.Invoke(ctx, types.ToolEmit, types.EmitInput{
				Scope: types.ScopeGlobal, Type: "ping", Payload: json.RawMessage(`{}`),
			})
			return &types.TickOutcome{Status: types.OutcomeOK}, nil
		},
	})
	c.CreateRun(ctx, types.CreateRunOptions{
		SessionID: "sess_1", ClogID: "chat", Input: json.RawMessage(`{}`),
	})
	if _, err := c.Advance(ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	fc.Advance(10_000)
	removed, err := c.GCEventsIfDue(ctx)
	if err != nil {
		t.Fatalf("GCEventsIfDue: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if c.Metrics().EventsSwept != 1 {
		t.Errorf("EventsSwept = %d, want 1", c.Metrics().EventsSwept)
	}

	events, _ := c.ReadEvents(ctx, types.ReadEventsQuery{Scope: types.ScopeGlobal})
	if len(events) != 0 {
		t.Errorf("expected empty log after sweep, got %d events", len(events))
	}
}

func TestDeleteRunCascades(t *testing.T) {
	useCoreClock(t, 1_000_000)
	ctx := context.Background()
	c := openCore(t, nil)

	c.RegisterClog(&types.Clog{
		ID: "worker",
		OnAdvance: func(ctx context.Context, input json.RawMessage, ac *types.AdvanceContext) (*types.TickOutcome, error) {
			ac.Tools.Invoke(ctx, types.ToolWriteScoped, types.WriteScopedInput{
				Ops: []types.WriteOp{{Kind: types.OpRunSet, Value: json.RawMessage(`{"state":1}`)}},
			})
			return &types.TickOutcome{Status: types.OutcomeOK}, nil
		},
	})
	runID, _ := c.CreateRun(ctx, types.CreateRunOptions{
		SessionID: "sess_1", ClogID: "worker", Input: json.RawMessage(`{}`),
	})
	if _, err := c.Advance(ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if err := c.DeleteRun(ctx, runID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	view, err := c.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if view != nil {
		t.Fatalf("run should be gone, got %+v", view)
	}
}

func TestCloseClosesNotifier(t *testing.T) {
	capture := &captureAdapter{}
	c := openCore(t, func(o *Options) { o.Notifier = capture })
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	capture.mu.Lock()
	defer capture.mu.Unlock()
	if !capture.closed {
		t.Error("notifier was not closed")
	}
}
