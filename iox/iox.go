// Package iox holds small cleanup helpers shared by the event adapters.
package iox

import "io"

// DiscardClose closes c, dropping the error. For defers where a close
// failure changes nothing:
//
//	defer iox.DiscardClose(notifier)
func DiscardClose(c io.Closer) { _ = c.Close() }

// DrainClose reads r to EOF and closes it, dropping both errors. HTTP
// response bodies go through this so the underlying connection can be
// reused.
func DrainClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	_ = r.Close()
}
