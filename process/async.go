package process

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/hive2hive/h2h"
)

// AsyncWrapper adapts any ProcessComponent for background execution (spec
// §4.3): Start returns immediately and the wrapped component runs on a
// WorkerPool goroutine. Pause/Resume called before Start are recorded and
// honored at pickup; once Start has been called they forward to the wrapped
// component.
// Cancellation always forwards to the wrapped component.
type AsyncWrapper struct {
	inner ProcessComponent
	pool  *WorkerPool

	mu           sync.Mutex
	started      bool
	pendingPause bool
	done         chan struct{}
	runErr       error
}

// NewAsyncWrapper wraps inner for background execution on pool.
func NewAsyncWrapper(inner ProcessComponent, pool *WorkerPool) *AsyncWrapper {
	return &AsyncWrapper{inner: inner, pool: pool, done: make(chan struct{})}
}

func (a *AsyncWrapper) Inner() ProcessComponent { return a.inner }

func (a *AsyncWrapper) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return h2h.NewError(h2h.InvalidState, fmt.Errorf("async wrapper already started"), a.inner.GetID())
	}
	a.started = true
	pendingPause := a.pendingPause
	a.mu.Unlock()

	a.pool.Go(func() error {
		if pendingPause {
			// The caller paused before the worker picked the job up; honor
			// it as soon as the wrapped component is RUNNING. If the
			// component finishes before the pause lands, Pause below will
			// simply fail with InvalidState, which we ignore here: the
			// pending-pause request is moot once the work is already done.
			go func() {
				for a.inner.GetState() == Ready {
					runtime.Gosched()
				}
				_ = a.inner.Pause(ctx)
			}()
		}
		err := a.inner.Start(ctx)
		a.mu.Lock()
		a.runErr = err
		a.mu.Unlock()
		close(a.done)
		return err
	})
	return nil
}

func (a *AsyncWrapper) Pause(ctx context.Context) error {
	a.mu.Lock()
	if !a.started {
		a.pendingPause = true
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()
	return a.inner.Pause(ctx)
}

func (a *AsyncWrapper) Resume(ctx context.Context) error {
	a.mu.Lock()
	if !a.started {
		a.pendingPause = false
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()
	return a.inner.Resume(ctx)
}

func (a *AsyncWrapper) Cancel(ctx context.Context, reason RollbackReason) error {
	return a.inner.Cancel(ctx, reason)
}

func (a *AsyncWrapper) GetState() LifecycleState   { return a.inner.GetState() }
func (a *AsyncWrapper) GetID() h2h.ID              { return a.inner.GetID() }
func (a *AsyncWrapper) GetProgress() float64       { return a.inner.GetProgress() }
func (a *AsyncWrapper) AttachListener(l Listener)   { a.inner.AttachListener(l) }
func (a *AsyncWrapper) DetachListener(l Listener)   { a.inner.DetachListener(l) }

// Wait blocks until the wrapped component reaches a terminal state (or ctx
// is done), returning the component's terminal error, if any.
func (a *AsyncWrapper) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResultWrapper is the result-bearing variant of AsyncWrapper (spec §4.3):
// the wrapped component writes its result into `result` before succeeding,
// and AwaitResult blocks until terminal state, surfacing the rollback
// reason's causal error on failure.
type ResultWrapper[T any] struct {
	*AsyncWrapper
	result *Field[T]

	mu         sync.Mutex
	failReason RollbackReason
	failed     bool
}

// NewResultWrapper wraps inner for background execution, reading its result
// from the shared result field once inner reaches SUCCEEDED.
func NewResultWrapper[T any](inner ProcessComponent, pool *WorkerPool, result *Field[T]) *ResultWrapper[T] {
	rw := &ResultWrapper[T]{AsyncWrapper: NewAsyncWrapper(inner, pool), result: result}
	inner.AttachListener(ListenerFuncs{
		OnFailedFn: func(reason RollbackReason) {
			rw.mu.Lock()
			rw.failReason = reason
			rw.failed = true
			rw.mu.Unlock()
		},
	})
	return rw
}

// AwaitResult blocks until terminal state and returns the produced value, or
// the rollback reason's causal error if the pipeline failed.
func (rw *ResultWrapper[T]) AwaitResult(ctx context.Context) (T, error) {
	var zero T
	if err := rw.Wait(ctx); err != nil {
		return zero, err
	}
	rw.mu.Lock()
	failed, reason := rw.failed, rw.failReason
	rw.mu.Unlock()
	if failed {
		if reason.Cause != nil {
			return zero, reason.Cause
		}
		return zero, reason
	}
	v, ok := rw.result.Get()
	if !ok {
		return zero, fmt.Errorf("result-bearing process succeeded without producing a result")
	}
	return v, nil
}
