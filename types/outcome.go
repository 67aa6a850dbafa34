package types

import (
	"encoding/json"
	"fmt"
)

// OutcomeStatus is the tagged status of a tick outcome.
type OutcomeStatus string

const (
	// OutcomeOK means the tick finished and the run returns to idle.
	OutcomeOK OutcomeStatus = "ok"
	// OutcomeDone means the run completed. Terminal.
	OutcomeDone OutcomeStatus = "done"
	// OutcomeContinue re-enqueues the run immediately with optional new input.
	OutcomeContinue OutcomeStatus = "continue"
	// OutcomeWait parks the run until WakeAt.
	OutcomeWait OutcomeStatus = "wait"
	// OutcomeRetry records a transient failure; the scheduler applies backoff
	// and fails the run terminally once attempts are exhausted.
	OutcomeRetry OutcomeStatus = "retry"
	// OutcomeFailed fails the run terminally, bypassing remaining attempts.
	OutcomeFailed OutcomeStatus = "failed"
)

// TickOutcome is the advance handler's description of what the scheduler
// should do next. Exactly one of the optional fields is meaningful per
// status: Output for done, Input for continue, WakeAt for wait, Error for
// retry and failed.
type TickOutcome struct {
	Status OutcomeStatus
	// Output is an optional opaque result for done outcomes.
	Output json.RawMessage
	// Input is the next pending input for continue outcomes. nil means none;
	// json "null" is a real input.
	Input json.RawMessage
	// WakeAt is the epoch-ms wake time for wait outcomes.
	WakeAt int64
	// Error is the failure description for retry and failed outcomes.
	Error string
}

// Validate checks the per-status field requirements.
func (o *TickOutcome) Validate() error {
	switch o.Status {
	case OutcomeOK, OutcomeDone, OutcomeContinue:
		return nil
	case OutcomeWait:
		if o.WakeAt <= 0 {
			return fmt.Errorf("wait outcome requires wake_at > 0, got %d", o.WakeAt)
		}
		return nil
	case OutcomeRetry, OutcomeFailed:
		if o.Error == "" {
			return fmt.Errorf("%s outcome requires an error message", o.Status)
		}
		return nil
	default:
		return fmt.Errorf("unknown outcome status %q", o.Status)
	}
}
