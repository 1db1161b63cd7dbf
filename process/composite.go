package process

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"

	"github.com/hive2hive/h2h"
	"golang.org/x/sync/errgroup"
)

// Policy selects how a Composite runs its children (spec §4.2).
type Policy int

const (
	Sequential Policy = iota
	Concurrent
)

// Composite is a ProcessComponent that owns an ordered sequence of children
// and an execution policy. It embeds *Component so every Component method
// (Start/Pause/Resume/Cancel/GetState/...) is promoted; impl supplies the
// Steppable hooks Component.Start/Pause/Resume/Cancel drive.
type Composite struct {
	*Component
	impl *compositeImpl
}

// NewComposite creates a READY composite with the given execution policy.
func NewComposite(policy Policy, label string) *Composite {
	impl := &compositeImpl{policy: policy, label: label, resumeGate: closedChan()}
	self := NewComponent(impl, label)
	impl.self = self
	return &Composite{Component: self, impl: impl}
}

// AddChild appends a child before the composite has started. Use Append
// instead to extend a RUNNING composite's pipeline (spec §4.1 dynamic
// extension).
func (c *Composite) AddChild(child *Component) error {
	if c.GetState() != Ready {
		return invalidState(c.GetID(), "addChild", c.GetState())
	}
	child.setParent(c.Component)
	c.impl.mu.Lock()
	c.impl.children = append(c.impl.children, child)
	c.impl.mu.Unlock()
	return nil
}

// Append adds a child to a RUNNING composite's pipeline, to run after the
// currently-executing child (spec §4.1/§4.5 dynamic pipeline extension).
// Appends to a ROLLBACKING composite are rejected as InvalidState (§4.2).
func (c *Composite) Append(child *Component) error {
	if c.GetState() != Running {
		return invalidState(c.GetID(), "append", c.GetState())
	}
	child.setParent(c.Component)
	c.impl.mu.Lock()
	c.impl.children = append(c.impl.children, child)
	c.impl.mu.Unlock()
	log.Debug("composite extended with dynamic step", "composite", c.GetID(), "child", child.GetID())
	return nil
}

// Children returns a snapshot of the current child list, in insertion order.
func (c *Composite) Children() []*Component {
	return c.impl.Children()
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// compositeImpl is the Steppable driving a Composite's Component.
type compositeImpl struct {
	policy Policy
	label  string
	self   *Component

	mu         sync.Mutex
	children   []*Component
	completed  []*Component // completion order, for reverse-completion rollback
	// resumeGate is closed while the composite is free to proceed and is
	// replaced with a fresh, open channel while paused; the sequential
	// execute loop blocks on it between children (spec §5 suspension points).
	resumeGate chan struct{}
}

func (ci *compositeImpl) len() int {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	return len(ci.children)
}

func (ci *compositeImpl) at(i int) *Component {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	return ci.children[i]
}

func (ci *compositeImpl) markCompleted(child *Component) {
	ci.mu.Lock()
	ci.completed = append(ci.completed, child)
	ci.mu.Unlock()
}

func (ci *compositeImpl) setCompletionOrder(order []*Component) {
	ci.mu.Lock()
	ci.completed = order
	ci.mu.Unlock()
}

func (ci *compositeImpl) completionSnapshot() []*Component {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	out := make([]*Component, len(ci.completed))
	copy(out, ci.completed)
	return out
}

func (ci *compositeImpl) waitIfPaused(ctx context.Context) error {
	ci.mu.Lock()
	gate := ci.resumeGate
	ci.mu.Unlock()
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ci *compositeImpl) Pause(ctx context.Context, self *Component) {
	ci.mu.Lock()
	ci.resumeGate = make(chan struct{})
	ci.mu.Unlock()
}

func (ci *compositeImpl) ResumeExecution(ctx context.Context, self *Component) {
	ci.mu.Lock()
	close(ci.resumeGate)
	ci.mu.Unlock()
}

func (ci *compositeImpl) ResumeRollback(ctx context.Context, self *Component) {
	ci.mu.Lock()
	close(ci.resumeGate)
	ci.mu.Unlock()
}

func (ci *compositeImpl) Execute(ctx context.Context, self *Component) error {
	switch ci.policy {
	case Sequential:
		return ci.executeSequential(ctx, self)
	case Concurrent:
		return ci.executeConcurrent(ctx, self)
	default:
		return fmt.Errorf("composite %s: unknown policy %d", self.GetID(), ci.policy)
	}
}

// executeSequential runs children in insertion order (spec §4.2 SEQUENTIAL).
// The loop re-reads the live length each iteration so a step's dynamic
// Append (spec §4.1, §4.5) is picked up before the composite considers
// itself finished. On a child's failure, the already-SUCCEEDED children are
// rolled back in reverse completion order before the error is returned
// (spec §4.2, §5, P3) — Component.Start's own failure path never calls
// back into this composite's Rollback hook (see failWithoutRollback), so
// compensating the completed prefix has to happen here, inside Execute,
// while the failure is still being handled.
func (ci *compositeImpl) executeSequential(ctx context.Context, self *Component) error {
	for i := 0; i < ci.len(); i++ {
		if err := ci.waitIfPaused(ctx); err != nil {
			return err
		}
		child := ci.at(i)
		if err := child.Start(ctx); err != nil {
			ci.rollbackOnFailure(ctx, self, err, child.GetID())
			return err
		}
		ci.markCompleted(child)
	}
	return nil
}

// executeConcurrent runs children in parallel (spec §4.2 CONCURRENT). The
// first failure cancels the shared child context so in-flight siblings that
// observe ctx.Done() can stop cooperatively; errgroup.Wait's returned error
// is whichever goroutine's error it captured first — our documented
// fairness policy for near-simultaneous failures (DESIGN.md, Open Question 3).
// Completed siblings (reverse completion order, stable tie-break by
// insertion order) are rolled back before the error is returned, same as
// executeSequential.
func (ci *compositeImpl) executeConcurrent(ctx context.Context, self *Component) error {
	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, _ := errgroup.WithContext(childCtx)
	var mu sync.Mutex
	var order []*Component
	var failedChild *Component

	n := ci.len()
	for i := 0; i < n; i++ {
		child := ci.at(i)
		g.Go(func() error {
			err := child.Start(childCtx)
			mu.Lock()
			order = append(order, child)
			if err != nil && failedChild == nil {
				failedChild = child
			}
			mu.Unlock()
			if err != nil {
				cancel()
			}
			return err
		})
	}
	err := g.Wait()
	ci.setCompletionOrder(order)
	if err != nil {
		originID := self.GetID()
		if failedChild != nil {
			originID = failedChild.GetID()
		}
		ci.rollbackOnFailure(ctx, self, err, originID)
	}
	return err
}

// rollbackOnFailure invokes this composite's own Rollback (reverse
// completion order over already-SUCCEEDED children) in response to a
// child's failure during Execute, attributing the RollbackReason to
// originID. A failure in the rollback itself is logged, not propagated: the
// composite still reports cause, the original child error, to its caller.
func (ci *compositeImpl) rollbackOnFailure(ctx context.Context, self *Component, cause error, originID h2h.ID) {
	reason := NewRollbackReason("composite child failed", cause, originID)
	if err := ci.Rollback(ctx, self, reason); err != nil {
		log.Warn("composite rollback of completed children failed", "composite", self.GetID(), "error", err)
	}
}

// Rollback rolls back every already-succeeded (or still-running/paused)
// child in reverse completion order (stable tie-break by insertion order,
// spec §4.2/§5/P3). Children never started are skipped — no transition.
func (ci *compositeImpl) Rollback(ctx context.Context, self *Component, reason RollbackReason) error {
	order := ci.completionSnapshot()
	if len(order) == 0 {
		order = ci.Children()
	}

	var lastErr error
	for i := len(order) - 1; i >= 0; i-- {
		child := order[i]
		switch child.GetState() {
		case Succeeded, Running, Paused:
			if err := child.Cancel(ctx, reason); err != nil {
				lastErr = err
			}
		default:
			// Ready (never started) or already Failed: nothing to unwind.
		}
	}
	return lastErr
}

// Children implements a convenience accessor used by compositeImpl.Rollback
// when no child has completed yet but some may still be Ready/Running.
func (ci *compositeImpl) Children() []*Component {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	out := make([]*Component, len(ci.children))
	copy(out, ci.children)
	return out
}
