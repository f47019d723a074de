package mirror

import (
	"fmt"
	"os"
)

// PublishError is returned when neither a move nor the fallback copy
// could publish a directory
type PublishError struct {
	Src string
	Dst string
	Err error
}

func (e *PublishError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("can not publish %s to %s: source not found", e.Src, e.Dst)
	}
	return fmt.Sprintf("can not publish %s to %s: %v", e.Src, e.Dst, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Materializer publishes a directory into a target location. The fast
// path is an atomic rename; when that is impossible (cross-device
// move, target already populated by a racing task) it degrades to a
// recursive merge copy that leaves the source in place.
type Materializer struct {
	// rename is os.Rename unless a test swaps it out
	rename func(oldpath string, newpath string) error
}

// NewMaterializer returns a Materializer using os.Rename for moves
func NewMaterializer() *Materializer {
	return &Materializer{rename: os.Rename}
}

// Publish moves src to dst, falling back to a mirror copy when the
// move fails. Publishing is idempotent: a missing src with a
// populated dst means someone already did the work.
func (m *Materializer) Publish(src string, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if _, dstErr := os.Stat(dst); dstErr == nil {
			return nil
		}
		return &PublishError{Src: src, Dst: dst}
	}

	if err := m.rename(src, dst); err == nil {
		return nil
	}

	// move failed (different volume or dst exists), copy instead.
	// src stays behind for the cleanup stage.
	if err := Mirror(src, dst); err != nil {
		return &PublishError{Src: src, Dst: dst, Err: err}
	}
	return nil
}
