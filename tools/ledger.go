// Package tools implements the tool-call surface adapters use to reach
// storage, events, and peer adapters: the read-before-write ledger, the
// per-tick budget, and the dispatcher.
package tools

// Ledger is the per-adapter per-tick record of reads. Reads mint
// capabilities to write specific rows; writes consume them. Membership is
// never revoked within a tick, and peer calls get a fresh empty ledger —
// capabilities do not cross adapter boundaries.
type Ledger struct {
	global    bool
	sessions  map[string]struct{}
	runs      map[string]struct{}
	tickRows  map[string]struct{}
	ticksSeen map[string]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		sessions:  make(map[string]struct{}),
		runs:      make(map[string]struct{}),
		tickRows:  make(map[string]struct{}),
		ticksSeen: make(map[string]struct{}),
	}
}

func tickRowKey(runID, tickID, rowID string) string {
	return runID + "|" + tickID + "|" + rowID
}

func tickKey(runID, tickID string) string {
	return runID + "|" + tickID
}

// RecordGlobal marks the adapter's global row as read.
func (l *Ledger) RecordGlobal() { l.global = true }

// RecordSession marks a session row as read.
func (l *Ledger) RecordSession(sessionID string) {
	l.sessions[sessionID] = struct{}{}
}

// RecordRun marks a run row as read.
func (l *Ledger) RecordRun(runID string) {
	l.runs[runID] = struct{}{}
}

// RecordTickRead marks a tick as read, independent of which rows exist.
// Unlocks tick entity deletion.
func (l *Ledger) RecordTickRead(runID, tickID string) {
	l.ticksSeen[tickKey(runID, tickID)] = struct{}{}
}

// RecordTickRow marks one tick row identity as read. Rows that were read
// but never persisted still count: RBW requires the read, not prior
// existence.
func (l *Ledger) RecordTickRow(runID, tickID, rowID string) {
	l.tickRows[tickRowKey(runID, tickID, rowID)] = struct{}{}
	l.RecordTickRead(runID, tickID)
}

// HasGlobal reports whether the global row was read this tick.
func (l *Ledger) HasGlobal() bool { return l.global }

// HasSession reports whether the session row was read this tick.
func (l *Ledger) HasSession(sessionID string) bool {
	_, ok := l.sessions[sessionID]
	return ok
}

// HasRun reports whether the run row was read this tick.
func (l *Ledger) HasRun(runID string) bool {
	_, ok := l.runs[runID]
	return ok
}

// HasTickRow reports whether the tick row identity was read this tick.
func (l *Ledger) HasTickRow(runID, tickID, rowID string) bool {
	_, ok := l.tickRows[tickRowKey(runID, tickID, rowID)]
	return ok
}

// HasTickRead reports whether any tick-rows read touched the tick.
func (l *Ledger) HasTickRead(runID, tickID string) bool {
	_, ok := l.ticksSeen[tickKey(runID, tickID)]
	return ok
}
