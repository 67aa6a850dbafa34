// Package adapter defines the event mirror boundary.
//
// Adapters publish appended events to downstream systems. Mirroring is
// best-effort: a publish failure never affects the durable log or the run
// state machine. The core owns adapter lifecycle; users provide
// configuration only.
package adapter

import (
	"context"

	"github.com/pithecene-io/ocean/types"
)

// Adapter publishes event envelopes to a downstream system.
// Implementations must be safe for concurrent Publish calls.
type Adapter interface {
	// Publish sends one event envelope to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *types.EventEnvelope) error

	// Close releases adapter resources.
	Close() error
}
