// Package pool runs independent tasks on a bounded set of goroutines.
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// indexed pairs a result with its position in the input.
type indexed[T any] struct {
	i int
	v T
}

// Run calls fn for every index in [0, n) with at most workers calls in
// flight and returns the results in input order. Once ctx is cancelled no
// new calls start; the remaining indexes get onCancel's result instead.
//
// A workers value of 1 runs the tasks strictly one after another.
func Run[T any](ctx context.Context, n, workers int, fn func(int) T, onCancel func(int, error) T) []T {
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	resultChan := make(chan indexed[T], n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			resultChan <- indexed[T]{i, onCancel(i, err)}
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			resultChan <- indexed[T]{i, fn(i)}
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	out := make([]T, n)
	for r := range resultChan {
		out[r.i] = r.v
	}
	return out
}
