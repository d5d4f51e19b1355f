// Package parallel runs independent per-cell work across the 1024-cell
// MCA grid on a fixed worker pool.
//
// This is a deliberately simplified descendant of the reference
// module's package-build scheduler: that scheduler orders work by a
// dependency graph (packages that must build before their reverse
// dependencies) using gonum's graph/topo packages. The 1024 cells of
// an MCA grid have no such edges between them — each cell's diff is a
// pure function of that cell alone — so there is nothing here for a
// graph library to order. What carries over is the errgroup-driven
// worker pool and channel-based work distribution.
package parallel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hairlessvillager/region-diff/internal/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Result pairs a task's index (its position in the input slice given
// to Run) with its output, so results can be re-sorted back to input
// order after collection regardless of completion order.
type Result[R any] struct {
	Index int
	Value R
}

// Run executes fn(tasks[i]) for every i on a fixed pool of workers
// goroutines. If cost is non-nil, tasks are dispatched largest-cost
// first (a longest-job-first heuristic that only affects scheduling
// order, never the result, which is always returned indexed by the
// original input position).
//
// A panic inside fn is recovered and turned into an error identifying
// the offending task index, rather than crashing the process: Run may
// be called from a long-lived host and must not let one bad cell bring
// down unrelated callers.
//
// logger may be nil; when non-nil, each task's duration is recorded at
// trace level, the only point in the package where verbosity affects
// output.
func Run[T, R any](ctx context.Context, workers int, tasks []T, cost func(T) int, fn func(context.Context, T) (R, error), logger *logging.Logger) ([]R, error) {
	if workers < 1 {
		workers = 1
	}
	n := len(tasks)
	out := make([]R, n)
	if n == 0 {
		return out, nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if cost != nil {
		sort.Slice(order, func(a, b int) bool {
			return cost(tasks[order[a]]) > cost(tasks[order[b]])
		})
	}

	work := make(chan int, n)
	for _, idx := range order {
		work <- idx
	}
	close(work)

	eg, egCtx := errgroup.WithContext(ctx)
	if workers > n {
		workers = n
	}
	for w := 0; w < workers; w++ {
		eg.Go(func() (err error) {
			for idx := range work {
				select {
				case <-egCtx.Done():
					return egCtx.Err()
				default:
				}
				if rerr := runTask(egCtx, idx, tasks[idx], fn, &out, logger); rerr != nil {
					return rerr
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func runTask[T, R any](ctx context.Context, idx int, task T, fn func(context.Context, T) (R, error), out *[]R, logger *logging.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("parallel: task %d panicked: %v", idx, fmt.Sprint(r))
		}
	}()
	start := time.Now()
	v, err := fn(ctx, task)
	logger.Tracef("parallel: task %d took %v", idx, time.Since(start))
	if err != nil {
		return xerrors.Errorf("parallel: task %d: %w", idx, err)
	}
	(*out)[idx] = v
	return nil
}
