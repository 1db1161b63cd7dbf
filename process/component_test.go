package process

import (
	"context"
	"errors"
	"testing"
	"time"
)

// P2: each component reaches exactly one terminal state, exactly once;
// onFinished fires exactly once.
func TestStartSucceeds(t *testing.T) {
	c, step := newFakeComponent("leaf", nil)
	var succeeded, finished int
	c.AttachListener(ListenerFuncs{
		OnSucceededFn: func() { succeeded++ },
		OnFinishedFn:  func() { finished++ },
		OnFailedFn:    func(RollbackReason) { t.Fatal("should not fail") },
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.GetState() != Succeeded {
		t.Fatalf("state = %s, want SUCCEEDED", c.GetState())
	}
	if succeeded != 1 || finished != 1 {
		t.Fatalf("succeeded=%d finished=%d, want 1,1", succeeded, finished)
	}
	if step.executeCalls != 1 {
		t.Fatalf("executeCalls = %d, want 1", step.executeCalls)
	}
}

// spec §4.1's start row: on an execution exception the component moves
// ROLLBACKING -> FAILED with no doRollback call on itself (it never
// succeeded, so there is nothing of its own to compensate; spec §8
// scenario 1 — "S3 not rollbacked, never succeeded").
func TestStartFailsWithoutSelfRollback(t *testing.T) {
	wantErr := errors.New("boom")
	c, step := newFakeComponent("leaf", func(ctx context.Context, self *Component) error {
		return wantErr
	})
	var failed, finished int
	var gotReason RollbackReason
	c.AttachListener(ListenerFuncs{
		OnFailedFn: func(r RollbackReason) {
			failed++
			gotReason = r
		},
		OnFinishedFn: func() { finished++ },
	})

	err := c.Start(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("Start err = %v, want %v", err, wantErr)
	}
	if c.GetState() != Failed {
		t.Fatalf("state = %s, want FAILED", c.GetState())
	}
	if step.rollbackCalls != 0 {
		t.Fatalf("rollbackCalls = %d, want 0 (never succeeded, nothing to compensate)", step.rollbackCalls)
	}
	if failed != 1 || finished != 1 {
		t.Fatalf("failed=%d finished=%d, want 1,1", failed, finished)
	}
	if !errors.Is(gotReason.Cause, wantErr) {
		t.Fatalf("reason cause = %v, want %v", gotReason.Cause, wantErr)
	}
}

func TestStartTwiceIsInvalidState(t *testing.T) {
	c, _ := newFakeComponent("leaf", nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("expected InvalidState on second Start")
	}
}

func TestPauseResumeExecution(t *testing.T) {
	started := make(chan struct{})
	proceed := make(chan struct{})
	c, step := newFakeComponent("leaf", func(ctx context.Context, self *Component) error {
		close(started)
		<-proceed
		return nil
	})
	go c.Start(context.Background())
	<-started

	// Pause is only legal once RUNNING/ROLLBACKING; by the time `started`
	// closed the component is RUNNING.
	if err := c.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if c.GetState() != Paused {
		t.Fatalf("state = %s, want PAUSED", c.GetState())
	}
	if step.pauseCalls != 1 {
		t.Fatalf("pauseCalls = %d, want 1", step.pauseCalls)
	}

	if err := c.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if c.GetState() != Running {
		t.Fatalf("state = %s, want RUNNING", c.GetState())
	}
	if step.resumeExecCalls != 1 {
		t.Fatalf("resumeExecCalls = %d, want 1", step.resumeExecCalls)
	}
	close(proceed)
}

// P4: repeated cancel on an already-ROLLBACKING/terminal component is a
// silent no-op, even when the first cancel arrives while Execute is still
// running in Start's own goroutine.
func TestCancelIdempotence(t *testing.T) {
	started := make(chan struct{})
	c, step := newFakeComponent("leaf", func(ctx context.Context, self *Component) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	startErr := make(chan error, 1)
	go func() { startErr <- c.Start(context.Background()) }()
	<-started

	reason := NewRollbackReason("user cancel", nil, c.GetID())
	if err := c.Cancel(context.Background(), reason); err != nil {
		t.Fatalf("first Cancel: %v", err)
	}
	if err := c.Cancel(context.Background(), reason); err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if step.rollbackCalls != 1 {
		t.Fatalf("rollbackCalls = %d, want 1", step.rollbackCalls)
	}
	if c.GetState() != Failed {
		t.Fatalf("state = %s, want FAILED", c.GetState())
	}

	select {
	case <-startErr:
	case <-time.After(time.Second):
		t.Fatal("Start never returned after cancel")
	}
}

func TestCancelOnReadyIsInvalidState(t *testing.T) {
	c, _ := newFakeComponent("leaf", nil)
	err := c.Cancel(context.Background(), NewRollbackReason("x", nil, c.GetID()))
	if err == nil {
		t.Fatal("expected InvalidState cancelling a READY component")
	}
}

// Cancel on a SUCCEEDED component performs a compensating rollback (spec
// §3, §4.1) rather than erroring.
func TestCancelAfterSuccessCompensates(t *testing.T) {
	c, step := newFakeComponent("leaf", nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	var failed int
	c.AttachListener(ListenerFuncs{OnFailedFn: func(RollbackReason) { failed++ }})

	if err := c.Cancel(context.Background(), NewRollbackReason("compensating undo", nil, c.GetID())); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if c.GetState() != Failed {
		t.Fatalf("state = %s, want FAILED", c.GetState())
	}
	if step.rollbackCalls != 1 {
		t.Fatalf("rollbackCalls = %d, want 1", step.rollbackCalls)
	}
	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
}
