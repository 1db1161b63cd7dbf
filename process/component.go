package process

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"

	"github.com/hive2hive/h2h"
)

// ProcessComponent is the public, state-gated contract every leaf step and
// composite satisfies (spec §4.1). Composite embeds *Component and so
// implements this by promotion; AsyncWrapper implements it by delegation.
type ProcessComponent interface {
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Cancel(ctx context.Context, reason RollbackReason) error
	GetState() LifecycleState
	GetID() h2h.ID
	GetProgress() float64
	AttachListener(l Listener)
	DetachListener(l Listener)
}

// Steppable is the small capability contract concrete components supply,
// replacing the teacher's deep template-method inheritance (spec §9): one
// synchronous execute hook plus cooperative pause/resume/rollback hooks.
// Composite is itself a Steppable whose Execute runs its children.
type Steppable interface {
	// Execute performs the component's one atomic unit of work. Returning a
	// non-nil error drives the owning Component through ROLLBACKING -> FAILED.
	Execute(ctx context.Context, self *Component) error
	// Pause is advisory; implementations should make it cheap and idempotent.
	Pause(ctx context.Context, self *Component)
	// ResumeExecution is invoked when a RUNNING-turned-PAUSED component resumes.
	ResumeExecution(ctx context.Context, self *Component)
	// ResumeRollback is invoked when a ROLLBACKING-turned-PAUSED component resumes.
	ResumeRollback(ctx context.Context, self *Component)
	// Rollback performs the compensating action for this component alone.
	// A composite's Rollback additionally rolls back its already-succeeded
	// children in reverse order (composite.go).
	Rollback(ctx context.Context, self *Component, reason RollbackReason) error
}

// Component is the concrete base every leaf step and Composite builds on. It
// owns: identity, progress, current state, a non-owning back-edge to its
// parent composite (for cancel-propagation, spec §9), and its listener set.
type Component struct {
	id    h2h.ID
	hooks Steppable
	label string
	mu    sync.Mutex
	state LifecycleState
	// pausedFromRollback records which branch of RUNNING/ROLLBACKING a
	// PAUSED component should resume into (spec §4.1 resume).
	pausedFromRollback bool
	progress           float64
	parent             *Component
	listeners          []Listener

	// execCancel signals an in-flight Execute to stop cooperatively; it is
	// Cancel's only handle on a hook call still running in Start's goroutine.
	execCancel context.CancelFunc

	// finalizeOnce guarantees the ROLLBACKING/FAILED (or SUCCEEDED) terminal
	// transition and its hook/listener calls happen exactly once even when
	// Start's own post-Execute path races against a concurrent Cancel on the
	// same component (see Cancel's doc comment).
	finalizeOnce sync.Once
	finalizeDone chan struct{}

	// compensateOnce/compensateDone guard a *later* cancel arriving after
	// Start has already finalized the component as SUCCEEDED (spec §3's
	// compensating undo). It is a separate gate from finalizeOnce because
	// that transition is legitimate and sequential, not a race to arbitrate;
	// it still needs its own once so two concurrent post-success Cancel
	// calls don't both run the rollback hook.
	compensateOnce sync.Once
	compensateDone chan struct{}
}

// NewComponent constructs a READY component around the given Steppable
// hooks. label is used only for logging.
func NewComponent(hooks Steppable, label string) *Component {
	return &Component{
		id:             h2h.NewID(),
		hooks:          hooks,
		label:          label,
		state:          Ready,
		finalizeDone:   make(chan struct{}),
		compensateDone: make(chan struct{}),
	}
}

func (c *Component) GetID() h2h.ID { return c.id }

func (c *Component) GetState() LifecycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Component) GetProgress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// SetProgress clamps p into [0.0, 1.0] and records it. Steps call this from
// within Execute to report incremental progress.
func (c *Component) SetProgress(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	c.mu.Lock()
	c.progress = p
	c.mu.Unlock()
}

// Parent returns the owning composite's Component, or nil at the root.
func (c *Component) Parent() *Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

func (c *Component) setParent(p *Component) {
	c.mu.Lock()
	c.parent = p
	c.mu.Unlock()
}

// Equal compares components by identity, per spec §4.1.
func (c *Component) Equal(other *Component) bool {
	if other == nil {
		return false
	}
	return c.id == other.id
}

func (c *Component) AttachListener(l Listener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

func (c *Component) DetachListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.listeners {
		if existing == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

func (c *Component) snapshotListeners() []Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Listener, len(c.listeners))
	copy(out, c.listeners)
	return out
}

// clearListeners drops the component's listener references once it has
// reached a terminal state, per spec §3 ("must not keep them alive beyond
// its own terminal state").
func (c *Component) clearListeners() {
	c.mu.Lock()
	c.listeners = nil
	c.mu.Unlock()
}

func (c *Component) notifySucceeded() {
	for _, l := range c.snapshotListeners() {
		l.OnSucceeded()
	}
}

func (c *Component) notifyFailed(reason RollbackReason) {
	for _, l := range c.snapshotListeners() {
		l.OnFailed(reason)
	}
}

func (c *Component) notifyFinished() {
	for _, l := range c.snapshotListeners() {
		l.OnFinished()
	}
	c.clearListeners()
}

func invalidState(id h2h.ID, op string, from LifecycleState) error {
	return h2h.NewError(h2h.InvalidState, fmt.Errorf("%s: illegal from state %s", op, from), id)
}

// rollbackAndFail drives RUNNING/SUCCEEDED -> ROLLBACKING -> FAILED, invoking
// the rollback hook and the failure/finished notifications. This is the
// cancel path (spec §4.1's cancel row explicitly lists "invoke
// doRollback(reason)"): it compensates a component that is being cancelled
// out from under it, whether still running, paused, or already succeeded.
// Callers must already hold whichever once-guard makes this safe to run
// exactly once.
func (c *Component) rollbackAndFail(ctx context.Context, reason RollbackReason) {
	c.mu.Lock()
	c.state = Rollbacking
	c.mu.Unlock()
	log.Debug("component rolling back", "id", c.id, "label", c.label, "hint", reason.Hint)

	rbErr := c.hooks.Rollback(ctx, c, reason)
	finalReason := reason
	if rbErr != nil {
		finalReason = reason.WithRollbackError(rbErr)
		log.Warn("component rollback hook failed", "id", c.id, "label", c.label, "error", rbErr)
	}
	c.mu.Lock()
	c.state = Failed
	c.mu.Unlock()
	c.notifyFailed(finalReason)
	c.notifyFinished()
}

// failWithoutRollback drives RUNNING -> ROLLBACKING -> FAILED for a
// component whose own Execute just returned an error. Spec §4.1's start row
// documents this path as "ROLLBACKING then FAILED" with no doRollback call
// (unlike cancel's row) — the component never succeeded, so there is
// nothing of its own to compensate; a sibling that did succeed is rolled
// back by its owning composite, not by this failing leaf itself (spec §8
// scenario 1). Callers must already hold whichever once-guard makes this
// safe to run exactly once.
func (c *Component) failWithoutRollback(reason RollbackReason) {
	c.mu.Lock()
	c.state = Rollbacking
	c.mu.Unlock()
	log.Debug("component failed, no self-rollback (never succeeded)", "id", c.id, "label", c.label, "hint", reason.Hint)

	c.mu.Lock()
	c.state = Failed
	c.mu.Unlock()
	c.notifyFailed(reason)
	c.notifyFinished()
}

// Start runs doExecute per spec §4.1: READY -> RUNNING; on normal return,
// SUCCEEDED + onSucceeded/onFinished; on error, ROLLBACKING then FAILED +
// onFailed/onFinished, with no doRollback call on this component (it never
// succeeded, so it has nothing of its own to compensate; see
// failWithoutRollback and spec §8 scenario 1).
//
// A concurrent Cancel may win the race to finalize this component (it can
// observe RUNNING and start rolling back before Execute here has returned).
// finalizeOnce arbitrates: whichever of Start's own post-Execute logic or a
// concurrent Cancel gets there first performs the transition and
// notifications; the other only waits on finalizeDone and reports the
// resulting state, so the terminal notifications never fire twice for the
// same component. If Cancel wins the race, its own path still invokes the
// rollback hook (it is compensating a component that was running, not one
// that failed on its own).
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	from := c.state
	// start's precondition is READY specifically (Paused->Running belongs
	// to Resume, not Start, even though the table alone can't tell those
	// two operations apart); IsLegalTransition still gates the attempted
	// transition so this stays coupled to the one table in state.go.
	if from != Ready || !IsLegalTransition(from, Running) {
		c.mu.Unlock()
		return invalidState(c.id, "start", from)
	}
	execCtx, cancel := context.WithCancel(ctx)
	c.state = Running
	c.execCancel = cancel
	c.mu.Unlock()
	log.Debug("component started", "id", c.id, "label", c.label)

	err := c.hooks.Execute(execCtx, c)
	cancel()

	c.finalizeOnce.Do(func() {
		if err == nil {
			c.mu.Lock()
			c.state = Succeeded
			c.mu.Unlock()
			log.Debug("component succeeded", "id", c.id, "label", c.label)
			c.notifySucceeded()
			c.notifyFinished()
		} else {
			c.failWithoutRollback(NewRollbackReason("execution failed", err, c.id))
		}
		close(c.finalizeDone)
	})
	<-c.finalizeDone

	if err != nil {
		return err
	}
	if c.GetState() == Failed {
		// A concurrent Cancel won the finalize race while our own Execute
		// was still returning successfully; report it as cancelled rather
		// than claiming a success that was actually unwound.
		return fmt.Errorf("component %s cancelled during execution", c.id)
	}
	return nil
}

// Pause moves RUNNING or ROLLBACKING to PAUSED (spec §4.1).
func (c *Component) Pause(ctx context.Context) error {
	c.mu.Lock()
	from := c.state
	if !IsLegalTransition(from, Paused) {
		c.mu.Unlock()
		return invalidState(c.id, "pause", from)
	}
	c.pausedFromRollback = c.state == Rollbacking
	c.state = Paused
	c.mu.Unlock()
	c.hooks.Pause(ctx, c)
	return nil
}

// Resume moves PAUSED back to RUNNING or ROLLBACKING, depending on which
// branch it was paused from (spec §4.1).
func (c *Component) Resume(ctx context.Context) error {
	c.mu.Lock()
	from := c.state
	if from != Paused {
		c.mu.Unlock()
		return invalidState(c.id, "resume", from)
	}
	resumeRollback := c.pausedFromRollback
	to := Running
	if resumeRollback {
		to = Rollbacking
	}
	if !IsLegalTransition(from, to) {
		c.mu.Unlock()
		return invalidState(c.id, "resume", from)
	}
	c.state = to
	c.mu.Unlock()
	if resumeRollback {
		c.hooks.ResumeRollback(ctx, c)
	} else {
		c.hooks.ResumeExecution(ctx, c)
	}
	return nil
}

// Cancel implements spec §4.1's cancel contract: cancel always rolls back
// from the outermost ancestor, so it is delegated upward first; idempotence
// (P4) is the gate "parent not already rolling back" plus treating a
// component already ROLLBACKING or terminal-via-rollback as a silent no-op
// (see DESIGN.md, Open Question 2/P4).
//
// If this component's Execute hook is still running (in another goroutine,
// under an AsyncWrapper), Cancel cancels its derived context as a best-effort
// signal to stop, then races Start's own post-Execute logic for finalizeOnce
// exactly as described on Start. Whichever side wins performs the terminal
// transition and notifications once; the rollback hook runs only when
// Cancel wins, and when Start's own path wins its outcome stands. Cancel
// always reports nil once the race settles,
// since the causal error belongs to whatever originally failed, not to the
// act of cancelling.
func (c *Component) Cancel(ctx context.Context, reason RollbackReason) error {
	c.mu.Lock()
	state := c.state
	parent := c.parent
	cancelExec := c.execCancel
	c.mu.Unlock()

	switch state {
	case Rollbacking, Failed:
		// Already being (or having been) rolled back: idempotent no-op (P4).
		return nil
	}
	if !IsLegalTransition(state, Rollbacking) {
		return invalidState(c.id, "cancel", state)
	}
	// state is Running, Paused, or Succeeded: proceed below.

	if parent != nil && parent.GetState() != Rollbacking {
		return parent.Cancel(ctx, reason)
	}

	select {
	case <-c.finalizeDone:
		// Start already produced its terminal outcome (SUCCEEDED): this is a
		// later, sequential compensating cancel, not a race with an in-flight
		// Execute. Its own once keeps two concurrent post-success cancels
		// from both running the rollback hook.
		c.compensateOnce.Do(func() {
			c.rollbackAndFail(ctx, reason)
			close(c.compensateDone)
		})
		<-c.compensateDone
		return nil
	default:
	}

	if cancelExec != nil {
		cancelExec()
	}
	c.finalizeOnce.Do(func() {
		c.rollbackAndFail(ctx, reason)
		close(c.finalizeDone)
	})
	<-c.finalizeDone
	return nil
}
