package adapter

import (
	"context"
	"errors"

	"github.com/pithecene-io/ocean/types"
)

// Multi fans one event out to several adapters. Every child sees every
// event; a child failure does not stop delivery to the others.
type Multi struct {
	children []Adapter
}

// NewMulti composes adapters into one. Nil children are skipped.
func NewMulti(children ...Adapter) *Multi {
	kept := make([]Adapter, 0, len(children))
	for _, c := range children {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return &Multi{children: kept}
}

// Publish delivers the event to every child and joins their errors.
func (m *Multi) Publish(ctx context.Context, event *types.EventEnvelope) error {
	var errs []error
	for _, c := range m.children {
		if err := c.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every child and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, c := range m.children {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Adapter = (*Multi)(nil)
