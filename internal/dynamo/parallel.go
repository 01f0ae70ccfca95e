package dynamo

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RunFunc runs one simulation on a system it owns.
type RunFunc func(ctx context.Context, sys *System) (*Result, error)

// Ensemble runs the same initial system several times concurrently. Each
// run gets its own clone, so runs never share state.
type Ensemble struct {
	run     RunFunc
	numRuns int
	limit   int
}

func NewEnsemble(run RunFunc, numRuns int) *Ensemble {
	return &Ensemble{run: run, numRuns: numRuns, limit: runtime.GOMAXPROCS(0)}
}

// SetLimit caps the number of runs in flight; n <= 0 means no cap.
func (e *Ensemble) SetLimit(n int) { e.limit = n }

// Run returns results in run order. The first failing run cancels the rest.
func (e *Ensemble) Run(ctx context.Context, sys *System) ([]*Result, error) {
	if e.numRuns <= 0 {
		return nil, Configf("ensemble needs at least one run, got %d", e.numRuns)
	}

	results := make([]*Result, e.numRuns)
	g, ctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}

	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			res, err := e.run(ctx, sys.Clone())
			if err != nil {
				return fmt.Errorf("ensemble run %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ParallelFor executes fn over [0, n) in chunks of at least minChunk.
// Small ranges run inline on the calling goroutine.
func ParallelFor(n, minChunk int, fn func(start, end int)) {
	numWorkers := runtime.GOMAXPROCS(0)
	if n <= minChunk || numWorkers <= 1 {
		fn(0, n)
		return
	}

	workers := numWorkers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
