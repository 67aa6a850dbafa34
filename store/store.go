// Package store implements typed CRUD over the Ocean tables and the atomic
// run-lock primitives the scheduler relies on.
//
// Every mutation is parametrized SQL against the single shared database.
// The store never introspects stored JSON: values go in and come out as
// opaque text.
package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors for store failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrRunNotFound indicates the target run does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrSessionNotFound indicates the target session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTickNotFound indicates the target tick does not exist.
	ErrTickNotFound = errors.New("tick not found")
)

// isFKViolation reports whether err is a SQLite foreign-key constraint
// failure. The driver reports either the extended code or the primary
// constraint code depending on where the check fired.
func isFKViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
		se.Code() == sqlite3.SQLITE_CONSTRAINT
}
