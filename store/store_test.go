package store

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pithecene-io/ocean/clock"
	"github.com/pithecene-io/ocean/db"
)

// openTestDB opens a migrated database in a per-test temp dir. A file
// database (not :memory:) so the pool's connections all see one store,
// matching multi-instance production shape.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "ocean.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// fakeClock is a controllable time source for lock and backoff tests.
type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (f *fakeClock) Now() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(ms int64) {
	f.mu.Lock()
	f.now += ms
	f.mu.Unlock()
}

// useFakeClock installs a fake clock starting at start and restores the
// real one at cleanup.
func useFakeClock(t *testing.T, start int64) *fakeClock {
	t.Helper()
	fc := &fakeClock{now: start}
	restore := clock.SetNow(fc.Now)
	t.Cleanup(restore)
	return fc
}
