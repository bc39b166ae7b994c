package concurrent

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zeusync/docsync/internal/core/observability/log"
	"golang.org/x/sync/semaphore"
)

// Runner executes units of work in the background. Submit never blocks the
// caller, and every submitted unit reports its outcome exactly once.
type Runner struct {
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	pending atomic.Int64
	logger  log.Log
}

// NewRunner bounds concurrently running units to maxConcurrent; zero or less
// means unbounded.
func NewRunner(maxConcurrent int64, logger log.Log) *Runner {
	if logger == nil {
		logger = log.Provide()
	}
	r := &Runner{
		logger: logger.With(log.String("component", "runner")),
	}
	if maxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(maxConcurrent)
	}
	return r
}

// Submit schedules task. onDone, if not nil, receives the task error, or the
// context error when ctx ends before a slot frees up. Panics in task are not
// recovered.
func (r *Runner) Submit(ctx context.Context, task func(context.Context) error, onDone func(error)) {
	r.wg.Add(1)
	r.pending.Add(1)

	go func() {
		defer r.wg.Done()
		defer r.pending.Add(-1)

		err := r.run(ctx, task)
		if onDone != nil {
			onDone(err)
		}
	}()
}

func (r *Runner) run(ctx context.Context, task func(context.Context) error) error {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.logger.Debug("Background task abandoned before start", log.Error(err))
			return err
		}
		defer r.sem.Release(1)
	}
	return task(ctx)
}

// Pending returns the number of submitted units that have not finished.
func (r *Runner) Pending() int64 {
	return r.pending.Load()
}

// Wait blocks until every submitted unit has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
