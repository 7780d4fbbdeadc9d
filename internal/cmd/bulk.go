package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the default number of concurrent uploads
const DefaultConcurrency = 4

// BulkResult is the outcome of one input in a bulk run.
type BulkResult struct {
	Input   string
	Success bool
	Error   error
	Data    any
}

// runBulkOperation runs operation for every input with bounded parallelism.
// Results come back in input order; a failed input never stops the others.
func runBulkOperation[T any](
	ctx context.Context,
	inputs []string,
	concurrency int64,
	progress bool,
	errOut io.Writer,
	operation func(ctx context.Context, input string) (T, error),
) []BulkResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if errOut == nil {
		errOut = io.Discard
	}

	sem := semaphore.NewWeighted(concurrency)
	var mu sync.Mutex
	results := make([]BulkResult, 0, len(inputs))
	order := make(map[string]int, len(inputs))
	total := len(inputs)
	var done int64

	g, ctx := errgroup.WithContext(ctx)

	for i, input := range inputs {
		input := input
		if _, dup := order[input]; !dup {
			order[input] = i
		}

		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil // cancelled
			}
			defer sem.Release(1)

			if ctx.Err() != nil {
				return nil
			}

			data, err := operation(ctx, input)

			mu.Lock()
			if err != nil {
				results = append(results, BulkResult{Input: input, Error: err})
			} else {
				results = append(results, BulkResult{Input: input, Success: true, Data: data})
			}
			mu.Unlock()

			if progress && total > 0 {
				current := atomic.AddInt64(&done, 1)
				mu.Lock()
				_, _ = fmt.Fprintf(errOut, "\rProcessed %d/%d", current, total)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	if progress && total > 0 {
		_, _ = fmt.Fprintf(errOut, "\rProcessed %d/%d\n", atomic.LoadInt64(&done), total)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return order[results[i].Input] < order[results[j].Input]
	})
	return results
}

// countResults returns success and failure counts from bulk results
func countResults(results []BulkResult) (success, failure int) {
	for _, r := range results {
		if r.Success {
			success++
		} else {
			failure++
		}
	}
	return
}
