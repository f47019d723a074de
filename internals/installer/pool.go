package installer

import "sync/atomic"

// runBounded fans work out over n units with at most limit running at
// once. The first error wins: once a unit fails, queued units are no
// longer started, units already running finish but their outcome can
// not override the recorded error.
func runBounded(n int, limit int, work func(i int) error) error {
	if n == 0 {
		return nil
	}
	if limit < 1 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	errc := make(chan error)
	var failed atomic.Bool

	go func() {
		for i := 0; i < n; i++ {
			sem <- struct{}{}
			go func(i int) {
				defer func() { <-sem }()
				if failed.Load() {
					errc <- nil
					return
				}
				err := work(i)
				if err != nil {
					failed.Store(true)
				}
				errc <- err
			}(i)
		}
	}()

	var firstErr error
	for i := 0; i < n; i++ {
		if err := <-errc; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
