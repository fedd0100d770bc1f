// Package parallel provides bounded parallel loop helpers.
//
// The balancer's internal loops (Morton key computation, local leaf
// recounting) fan out over a fixed number of workers; the width comes
// from the caller's task hint, with 0 selecting a hardware-derived
// default.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// DefaultWorkers returns the default loop width for a zero task hint.
func DefaultWorkers() int {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8 // cap to avoid excessive goroutine churn on wide hosts
	}
	if workers < 2 {
		workers = 2
	}
	return workers
}

// Workers normalizes a task hint into a usable worker count.
func Workers(hint int) int {
	if hint <= 0 {
		return DefaultWorkers()
	}
	return hint
}

// ForEachChunk splits [0, n) into contiguous chunks and runs fn on each
// chunk from its own worker goroutine. fn receives the chunk bounds
// [start, end). It blocks until every chunk completes or ctx is done;
// the first fn error (or ctx error) is returned.
func ForEachChunk(ctx context.Context, n, hint int, fn func(start, end int) error) error {
	if n <= 0 {
		return nil
	}

	workers := Workers(hint)
	if workers > n {
		workers = n
	}

	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				setErr(ctx.Err())
				return
			default:
			}
			if err := fn(start, end); err != nil {
				setErr(err)
			}
		}(start, end)
	}

	wg.Wait()
	return firstErr
}

// MapChunks runs fn on contiguous chunks of [0, n) and merges the
// per-chunk results with merge once all chunks are done. merge runs on
// the calling goroutine, in chunk order.
func MapChunks[R any](ctx context.Context, n, hint int, fn func(start, end int) (R, error), merge func(R)) error {
	if n <= 0 {
		return nil
	}

	workers := Workers(hint)
	if workers > n {
		workers = n
	}

	chunk := (n + workers - 1) / workers
	numChunks := (n + chunk - 1) / chunk

	results := make([]R, numChunks)
	errs := make([]error, numChunks)

	var wg sync.WaitGroup
	for i := 0; i < numChunks; i++ {
		start := i * chunk
		end := start + chunk
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(i, start, end int) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			default:
			}
			results[i], errs[i] = fn(start, end)
		}(i, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	for _, r := range results {
		merge(r)
	}
	return nil
}
