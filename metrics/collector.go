// Package metrics provides scheduler metrics collection.
//
// The Collector accumulates counters across advance calls on one substrate
// instance. It is a leaf package with no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Scheduler
	AdvanceCalls  int64
	EmptyPolls    int64
	TicksExecuted int64
	LockSteals    int64

	// Tick outcomes
	TicksDone      int64
	TicksContinued int64
	TicksWaiting   int64
	TicksRetried   int64
	TicksFailed    int64
	HandlerPanics  int64

	// Signals
	SignalsFolded int64

	// Events
	EventsAppended int64
	EventsSwept    int64

	// Peer calls
	PeerCalls int64

	// Dimensions (informational, set at construction)
	InstanceID string
}

// Collector accumulates scheduler counters.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	advanceCalls  int64
	emptyPolls    int64
	ticksExecuted int64
	lockSteals    int64

	ticksDone      int64
	ticksContinued int64
	ticksWaiting   int64
	ticksRetried   int64
	ticksFailed    int64
	handlerPanics  int64

	signalsFolded int64

	eventsAppended int64
	eventsSwept    int64

	peerCalls int64

	instanceID string
}

// NewCollector creates a Collector labeled with the owning instance id.
func NewCollector(instanceID string) *Collector {
	return &Collector{instanceID: instanceID}
}

// --- Scheduler ---

// IncAdvanceCall records one advance poll.
func (c *Collector) IncAdvanceCall() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.advanceCalls++
	c.mu.Unlock()
}

// IncEmptyPoll records an advance call that found no eligible run.
func (c *Collector) IncEmptyPoll() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.emptyPolls++
	c.mu.Unlock()
}

// IncTickExecuted records a tick handed to an adapter handler.
func (c *Collector) IncTickExecuted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ticksExecuted++
	c.mu.Unlock()
}

// IncLockSteal records an acquisition that displaced an expired lock.
func (c *Collector) IncLockSteal() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lockSteals++
	c.mu.Unlock()
}

// --- Tick outcomes ---

// IncTickDone records a tick that finished its run.
func (c *Collector) IncTickDone() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ticksDone++
	c.mu.Unlock()
}

// IncTickContinued records a tick that left its run pending.
func (c *Collector) IncTickContinued() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ticksContinued++
	c.mu.Unlock()
}

// IncTickWaiting records a tick that parked its run.
func (c *Collector) IncTickWaiting() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ticksWaiting++
	c.mu.Unlock()
}

// IncTickRetried records a tick scheduled for another attempt.
func (c *Collector) IncTickRetried() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ticksRetried++
	c.mu.Unlock()
}

// IncTickFailed records a tick that failed its run terminally.
func (c *Collector) IncTickFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ticksFailed++
	c.mu.Unlock()
}

// IncHandlerPanic records a recovered adapter panic.
func (c *Collector) IncHandlerPanic() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.handlerPanics++
	c.mu.Unlock()
}

// --- Signals ---

// IncSignalFolded records a signal that arrived mid-tick and was folded
// into the release.
func (c *Collector) IncSignalFolded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.signalsFolded++
	c.mu.Unlock()
}

// --- Events ---

// IncEventAppended records one event appended to the log.
func (c *Collector) IncEventAppended() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsAppended++
	c.mu.Unlock()
}

// AddEventsSwept records events removed by a TTL sweep.
func (c *Collector) AddEventsSwept(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsSwept += n
	c.mu.Unlock()
}

// --- Peer calls ---

// IncPeerCall records one adapter-to-adapter call.
func (c *Collector) IncPeerCall() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.peerCalls++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		AdvanceCalls:  c.advanceCalls,
		EmptyPolls:    c.emptyPolls,
		TicksExecuted: c.ticksExecuted,
		LockSteals:    c.lockSteals,

		TicksDone:      c.ticksDone,
		TicksContinued: c.ticksContinued,
		TicksWaiting:   c.ticksWaiting,
		TicksRetried:   c.ticksRetried,
		TicksFailed:    c.ticksFailed,
		HandlerPanics:  c.handlerPanics,

		SignalsFolded: c.signalsFolded,

		EventsAppended: c.eventsAppended,
		EventsSwept:    c.eventsSwept,

		PeerCalls: c.peerCalls,

		InstanceID: c.instanceID,
	}
}
