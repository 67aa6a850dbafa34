// Package types defines core domain types for the Ocean substrate.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	// StatusIdle means the run has no pending input and nothing to do.
	StatusIdle RunStatus = "idle"
	// StatusPending means the run has input queued and is eligible for advance.
	StatusPending RunStatus = "pending"
	// StatusActive means a tick is in flight. The authoritative active marker
	// is the non-null lock pair, not this value; acquire never writes it.
	StatusActive RunStatus = "active"
	// StatusWaiting means the run sleeps until wake_at.
	StatusWaiting RunStatus = "waiting"
	// StatusDone is terminal success.
	StatusDone RunStatus = "done"
	// StatusFailed is terminal failure.
	StatusFailed RunStatus = "failed"
)

// IsTerminal returns true for done and failed. Terminal runs absorb signals
// and advance attempts without effect.
func (s RunStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// RunRow is the durable run record. Pointer fields map to nullable columns;
// JSON fields are opaque to the core and stored as written.
type RunRow struct {
	RunID         string
	SessionID     string
	ClogID        string
	Status        RunStatus
	State         json.RawMessage
	LockedBy      *string
	LockExpiresAt *int64
	Attempt       int
	MaxAttempts   int
	WakeAt        *int64
	PendingInput  json.RawMessage
	LastError     *string
	CreatedTs     int64
	UpdatedTs     int64
}

// Locked reports whether the lock is held at the given instant.
func (r *RunRow) Locked(now int64) bool {
	return r.LockedBy != nil && r.LockExpiresAt != nil && *r.LockExpiresAt > now
}

// CreateRunOptions configures CreateRun.
type CreateRunOptions struct {
	// SessionID groups runs under one logical user/context. The session row
	// is created lazily if absent.
	SessionID string
	// ClogID is the owning adapter. Only its advance handler is dispatched.
	ClogID string
	// Input is the initial signal. nil means no input (the run starts idle);
	// json "null" is a real input and the run starts pending.
	Input json.RawMessage
	// InitialState seeds the opaque state column. Defaults to json null.
	InitialState json.RawMessage
	// MaxAttempts bounds retry outcomes. Defaults to 3; must be >= 1.
	MaxAttempts int
}

// DefaultMaxAttempts applies when CreateRunOptions.MaxAttempts is zero.
const DefaultMaxAttempts = 3

// Validate checks the identity fields and the retry bound.
func (o *CreateRunOptions) Validate() error {
	if o.SessionID == "" {
		return errors.New("session_id must be non-empty")
	}
	if o.ClogID == "" {
		return errors.New("clog_id must be non-empty")
	}
	if o.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 1, got %d", o.MaxAttempts)
	}
	return nil
}

// RunView is the external read model returned by GetRun. It omits the lock
// pair and opaque state, which are scheduler-internal.
type RunView struct {
	RunID       string    `json:"run_id"`
	SessionID   string    `json:"session_id"`
	ClogID      string    `json:"clog_id"`
	Status      RunStatus `json:"status"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	WakeAt      *int64    `json:"wake_at,omitempty"`
	LastError   *string   `json:"last_error,omitempty"`
	CreatedTs   int64     `json:"created_ts"`
	UpdatedTs   int64     `json:"updated_ts"`
}
