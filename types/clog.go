package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// AdvanceContext carries the per-tick surface handed to an advance handler.
type AdvanceContext struct {
	// Tools is the tool invoker bound to the owning clog for this tick.
	Tools ToolInvoker
	// Attempt is the run's attempt counter at acquire time.
	Attempt int
}

// EndpointContext carries the per-call surface handed to an endpoint
// handler. Peer endpoints share the caller's tick but not its budget.
type EndpointContext struct {
	Tools ToolInvoker
}

// AdvanceHandler is the clog's tick entry point. input is the run's pending
// input snapshot at acquire (nil when there was none). A non-nil error is
// converted to a retry outcome by the scheduler.
type AdvanceHandler func(ctx context.Context, input json.RawMessage, ac *AdvanceContext) (*TickOutcome, error)

// EndpointHandler serves one named peer-call method.
type EndpointHandler func(ctx context.Context, payload json.RawMessage, ec *EndpointContext) (json.RawMessage, error)

// Clog is a user-supplied adapter descriptor: an id, optional named
// endpoints, and an optional advance handler. Clogs are the only code that
// runs inside ticks.
type Clog struct {
	ID        string
	Endpoints map[string]EndpointHandler
	OnAdvance AdvanceHandler
}

// Validate checks the descriptor shape at registration time.
func (c *Clog) Validate() error {
	if c.ID == "" {
		return errors.New("clog id must be non-empty")
	}
	for name, h := range c.Endpoints {
		if name == "" {
			return fmt.Errorf("clog %q has an endpoint with an empty name", c.ID)
		}
		if h == nil {
			return fmt.Errorf("clog %q endpoint %q has a nil handler", c.ID, name)
		}
	}
	return nil
}
