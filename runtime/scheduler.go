// Package runtime drives the run state machine: one Advance call acquires
// one eligible run, executes one tick through the owning clog's handler, and
// releases the run with the outcome folded against any mid-tick signal.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pithecene-io/ocean/clock"
	"github.com/pithecene-io/ocean/log"
	"github.com/pithecene-io/ocean/metrics"
	"github.com/pithecene-io/ocean/store"
	"github.com/pithecene-io/ocean/tools"
	"github.com/pithecene-io/ocean/types"
)

// DefaultLockMs is the lock TTL when Config.LockMs is zero.
const DefaultLockMs = 30_000

// Config wires a Scheduler.
type Config struct {
	// InstanceID identifies this process as a lock holder.
	InstanceID string
	// LockMs is the acquire lock TTL. Defaults to DefaultLockMs.
	LockMs int64
	// Runs, Ticks, and Tools are the storage and tool surfaces.
	Runs  *store.RunStore
	Ticks *store.TickStore
	Tools *tools.Factory
	// Registry resolves clog ids to handlers.
	Registry *Registry
	// Logger is optional; defaults to a stderr logger bound to InstanceID.
	Logger *log.Logger
	// Collector is optional metrics sink (nil-safe).
	Collector *metrics.Collector
}

// Scheduler advances runs one tick at a time. Safe for concurrent use; all
// coordination happens in the database.
type Scheduler struct {
	instanceID string
	lockMs     int64
	runs       *store.RunStore
	ticks      *store.TickStore
	tools      *tools.Factory
	registry   *Registry
	logger     *log.Logger
	collector  *metrics.Collector
}

// NewScheduler creates a Scheduler from the config.
func NewScheduler(cfg *Config) *Scheduler {
	lockMs := cfg.LockMs
	if lockMs <= 0 {
		lockMs = DefaultLockMs
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger(cfg.InstanceID)
	}
	return &Scheduler{
		instanceID: cfg.InstanceID,
		lockMs:     lockMs,
		runs:       cfg.Runs,
		ticks:      cfg.Ticks,
		tools:      cfg.Tools,
		registry:   cfg.Registry,
		logger:     logger,
		collector:  cfg.Collector,
	}
}

// TickResult describes one executed tick.
type TickResult struct {
	RunID   string
	TickID  string
	Attempt int
	// Outcome is the handler's classified outcome.
	Outcome types.OutcomeStatus
	// Status is the run status written at release. A signal folded in at
	// release flips it to pending.
	Status types.RunStatus
	// Output is the opaque result of a done outcome, if any.
	Output json.RawMessage
}

// Advance executes at most one tick: acquire an eligible run, invoke its
// clog's advance handler, apply the outcome, release. Returns (nil, nil)
// when no run is eligible. Progress happens only inside Advance calls;
// callers poll it from cron, request handlers, or Drain.
func (s *Scheduler) Advance(ctx context.Context) (*TickResult, error) {
	s.collector.IncAdvanceCall()

	run, err := s.runs.Acquire(ctx, s.instanceID, s.lockMs)
	if err != nil {
		return nil, err
	}
	if run == nil {
		s.collector.IncEmptyPoll()
		return nil, nil
	}

	// The acquire snapshot is pre-update: a non-null holder means we
	// displaced an expired lock.
	if run.LockedBy != nil {
		s.collector.IncLockSteal()
		s.logger.Warn("displaced expired lock", map[string]any{
			"run_id":      run.RunID,
			"prev_holder": *run.LockedBy,
		})
	}

	input := run.PendingInput
	if err := s.runs.ConsumePendingInput(ctx, run.RunID); err != nil {
		return nil, err
	}

	tickID := clock.NewID("tick")
	if err := s.ticks.Insert(ctx, run.RunID, tickID); err != nil {
		return nil, err
	}
	tickLog := s.logger.WithRun(run.RunID, tickID)

	outcome := s.executeTick(ctx, run, tickID, input, tickLog)
	patch := s.patchFor(run, outcome)
	s.countOutcome(patch, outcome)

	if err := s.runs.Release(ctx, run.RunID, patch); err != nil {
		// A handler may delete its own run or session through write_scoped;
		// the row is gone and the lock died with it. The tick still succeeded.
		if !errors.Is(err, store.ErrRunNotFound) {
			return nil, err
		}
		tickLog.Info("run deleted during tick", map[string]any{
			"clog_id": run.ClogID,
			"outcome": string(outcome.Status),
		})
		return &TickResult{
			RunID:   run.RunID,
			TickID:  tickID,
			Attempt: run.Attempt,
			Outcome: outcome.Status,
			Status:  patch.Status,
			Output:  outcome.Output,
		}, nil
	}

	// Fold detection is observational only: the release statement already
	// applied the signal atomically. A concurrent acquire can mask it here.
	final := patch.Status
	if !patch.Status.IsTerminal() && patch.Status != types.StatusPending {
		if cur, err := s.runs.Get(ctx, run.RunID); err == nil && cur != nil && cur.Status == types.StatusPending {
			s.collector.IncSignalFolded()
			final = cur.Status
		}
	}

	tickLog.Info("tick complete", map[string]any{
		"clog_id": run.ClogID,
		"outcome": string(outcome.Status),
		"status":  string(final),
		"attempt": run.Attempt,
	})

	return &TickResult{
		RunID:   run.RunID,
		TickID:  tickID,
		Attempt: run.Attempt,
		Outcome: outcome.Status,
		Status:  final,
		Output:  outcome.Output,
	}, nil
}

// Drain calls Advance until it reports no eligible run or max ticks have
// executed. max <= 0 means unbounded.
func (s *Scheduler) Drain(ctx context.Context, max int) ([]TickResult, error) {
	var results []TickResult
	for max <= 0 || len(results) < max {
		res, err := s.Advance(ctx)
		if err != nil {
			return results, err
		}
		if res == nil {
			break
		}
		results = append(results, *res)
	}
	return results, nil
}

// executeTick resolves the handler and runs it with panic recovery. Every
// failure mode comes back as an outcome; the run is always releasable.
func (s *Scheduler) executeTick(ctx context.Context, run *types.RunRow, tickID string, input json.RawMessage, tickLog *log.Logger) *types.TickOutcome {
	clog, ok := s.registry.Resolve(run.ClogID)
	if !ok || clog.OnAdvance == nil {
		tickLog.Error("no advance handler", map[string]any{"clog_id": run.ClogID})
		return &types.TickOutcome{
			Status: types.OutcomeFailed,
			Error:  fmt.Sprintf("clog %q has no registered advance handler", run.ClogID),
		}
	}

	tc := types.TickContext{SessionID: run.SessionID, RunID: run.RunID, TickID: tickID}
	ac := &types.AdvanceContext{
		Tools:   s.tools.For(tc, run.ClogID),
		Attempt: run.Attempt,
	}

	s.collector.IncTickExecuted()
	return s.callHandler(ctx, clog.OnAdvance, input, ac, tickLog)
}

func (s *Scheduler) callHandler(ctx context.Context, h types.AdvanceHandler, input json.RawMessage, ac *types.AdvanceContext, tickLog *log.Logger) (outcome *types.TickOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.collector.IncHandlerPanic()
			tickLog.Error("handler panic", map[string]any{"panic": fmt.Sprint(r)})
			outcome = &types.TickOutcome{
				Status: types.OutcomeRetry,
				Error:  fmt.Sprintf("handler panic: %v", r),
			}
		}
	}()

	out, err := h(ctx, input, ac)
	if err != nil {
		return &types.TickOutcome{Status: types.OutcomeRetry, Error: err.Error()}
	}
	if out == nil {
		return &types.TickOutcome{Status: types.OutcomeRetry, Error: "handler returned no outcome"}
	}
	if err := out.Validate(); err != nil {
		return &types.TickOutcome{
			Status: types.OutcomeRetry,
			Error:  fmt.Sprintf("invalid outcome: %v", err),
		}
	}
	return out
}

// patchFor maps an outcome to the release patch applied when no signal
// arrived during the tick. run carries the pre-consume acquire snapshot.
func (s *Scheduler) patchFor(run *types.RunRow, outcome *types.TickOutcome) store.ReleasePatch {
	switch outcome.Status {
	case types.OutcomeOK:
		return store.ReleasePatch{Status: types.StatusIdle}

	case types.OutcomeDone:
		return store.ReleasePatch{Status: types.StatusDone}

	case types.OutcomeContinue:
		return store.ReleasePatch{Status: types.StatusPending, PendingInput: outcome.Input}

	case types.OutcomeWait:
		wake := outcome.WakeAt
		return store.ReleasePatch{Status: types.StatusWaiting, WakeAt: &wake}

	case types.OutcomeRetry:
		next := run.Attempt + 1
		lastErr := outcome.Error
		if next >= run.MaxAttempts {
			return store.ReleasePatch{
				Status:    types.StatusFailed,
				Attempt:   next,
				LastError: &lastErr,
			}
		}
		wake := clock.Now() + Backoff(next)
		// The input consumed at acquire is restored so the retry replays it.
		return store.ReleasePatch{
			Status:       types.StatusWaiting,
			Attempt:      next,
			WakeAt:       &wake,
			LastError:    &lastErr,
			PendingInput: run.PendingInput,
		}

	default: // OutcomeFailed; Validate rules out anything else
		lastErr := outcome.Error
		return store.ReleasePatch{
			Status:    types.StatusFailed,
			Attempt:   run.Attempt,
			LastError: &lastErr,
		}
	}
}

func (s *Scheduler) countOutcome(patch store.ReleasePatch, outcome *types.TickOutcome) {
	switch outcome.Status {
	case types.OutcomeDone:
		s.collector.IncTickDone()
	case types.OutcomeContinue:
		s.collector.IncTickContinued()
	case types.OutcomeWait:
		s.collector.IncTickWaiting()
	case types.OutcomeRetry:
		if patch.Status == types.StatusFailed {
			s.collector.IncTickFailed()
		} else {
			s.collector.IncTickRetried()
		}
	case types.OutcomeFailed:
		s.collector.IncTickFailed()
	}
}
