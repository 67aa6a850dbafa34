// Package clock provides the time source and identifier generator.
//
// Every component that consults the wall clock (scheduler, backoff, lock
// expiry, TTL sweep, event timestamps) goes through Now so tests can swap
// the source atomically with SetNow.
package clock

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// NowFunc returns the current time as epoch milliseconds.
type NowFunc func() int64

var nowFunc atomic.Pointer[NowFunc]

func init() {
	real := NowFunc(func() int64 { return time.Now().UnixMilli() })
	nowFunc.Store(&real)
}

// Now returns the current epoch-ms time from the active source.
func Now() int64 {
	return (*nowFunc.Load())()
}

// SetNow replaces the time source and returns a restore function.
//
//	restore := clock.SetNow(func() int64 { return fixed })
//	defer restore()
func SetNow(fn NowFunc) (restore func()) {
	prev := nowFunc.Swap(&fn)
	return func() { nowFunc.Store(prev) }
}

// NewID returns a prefixed random identifier, e.g. "run_3f2a...".
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
