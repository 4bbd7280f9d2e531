// Package parallel runs a bounded pool of concurrent request tasks, streaming
// completions back as workers free up.
package parallel

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/materialsproject/mp-api-go/pkg/progress"
)

// Outcome is what one task produces: the decoded value, the server-side
// subtotal matching the task's query, and the number of documents returned.
type Outcome[R any] struct {
	Value    R
	Subtotal int
	Docs     int
}

// Func performs a single unit of work, typically one HTTP request.
type Func[P, R any] func(ctx context.Context, param P) (Outcome[R], error)

// Result is a completed task tagged with the index of its originating
// parameter, so callers can map results back to partitions.
type Result[R any] struct {
	Outcome[R]
	Index int
}

// Run executes fn over params with at most workers tasks in flight. As soon
// as one slot frees up it is backfilled from the remaining queue. Results are
// returned in completion order, each tagged with its original index, and the
// sink is advanced by each result's document count as it arrives.
//
// Any task error aborts the run: no new tasks are started, in-flight tasks
// are allowed to finish, and the first error is returned with no results.
// Concurrency here is for throughput, not fault isolation.
func Run[P, R any](ctx context.Context, workers int, params []P, fn Func[P, R], sink progress.Sink, logger zerolog.Logger) ([]Result[R], error) {
	if len(params) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(params) {
		workers = len(params)
	}
	if sink == nil {
		sink = progress.Noop{}
	}

	type job struct {
		index int
		param P
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job)
	results := make(chan Result[R], len(params))
	errs := make(chan error, workers)

	go func() {
		defer close(jobs)
		for i, p := range params {
			select {
			case jobs <- job{index: i, param: p}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := range jobs {
				outcome, err := fn(runCtx, j.param)
				if err != nil {
					logger.Warn().
						Err(err).
						Int("worker_id", workerID).
						Int("task", j.index).
						Msg("Parallel task failed")

					select {
					case errs <- err:
					default:
					}
					cancel()
					return
				}

				sink.Advance(outcome.Docs)
				results <- Result[R]{Outcome: outcome, Index: j.index}
			}
		}(w)
	}

	wg.Wait()
	close(results)
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}

	collected := make([]Result[R], 0, len(params))
	for r := range results {
		collected = append(collected, r)
	}
	return collected, nil
}
