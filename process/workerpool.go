package process

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds concurrent goroutine fan-out for AsyncWrapper (a
// Composite's CONCURRENT execution policy runs its own errgroup instead).
// It generalizes the teacher's
// per-transaction TaskRunner (errgroup.Group scoped to one context, capped
// by SetLimit) — one WorkerPool is created per unit of background work
// rather than shared module-wide, so one failing pipeline never cancels an
// unrelated one.
type WorkerPool struct {
	eg  *errgroup.Group
	ctx context.Context
}

// NewWorkerPool creates a pool scoped to ctx. maxConcurrency <= 0 means
// unbounded (subject only to Go runtime scheduling).
func NewWorkerPool(ctx context.Context, maxConcurrency int) *WorkerPool {
	eg, egCtx := errgroup.WithContext(ctx)
	if maxConcurrency > 0 {
		eg.SetLimit(maxConcurrency)
	}
	return &WorkerPool{eg: eg, ctx: egCtx}
}

// Context returns the pool-scoped context, cancelled on the pool's first
// task error.
func (p *WorkerPool) Context() context.Context { return p.ctx }

// Go schedules task, blocking only if the pool is at its concurrency limit.
func (p *WorkerPool) Go(task func() error) { p.eg.Go(task) }

// Wait blocks until every scheduled task has returned, yielding the first
// error encountered (if any).
func (p *WorkerPool) Wait() error { return p.eg.Wait() }
