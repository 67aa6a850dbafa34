package runtime

import (
	"fmt"
	"sync"

	"github.com/pithecene-io/ocean/types"
)

// Registry holds the process-local set of registered clogs. Registration is
// in-memory only; the database never stores adapter code.
type Registry struct {
	mu    sync.RWMutex
	clogs map[string]*types.Clog
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clogs: make(map[string]*types.Clog)}
}

// Register validates and adds a clog. Re-registering an id is an error.
func (r *Registry) Register(c *types.Clog) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("register clog: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clogs[c.ID]; exists {
		return fmt.Errorf("register clog: %q is already registered", c.ID)
	}
	r.clogs[c.ID] = c
	return nil
}

// Resolve looks up a clog by id.
func (r *Registry) Resolve(id string) (*types.Clog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clogs[id]
	return c, ok
}

// IDs returns the registered clog ids in no particular order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clogs))
	for id := range r.clogs {
		ids = append(ids, id)
	}
	return ids
}
