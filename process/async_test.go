package process

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAsyncWrapperRunsInBackground(t *testing.T) {
	release := make(chan struct{})
	c, _ := newFakeComponent("leaf", func(ctx context.Context, self *Component) error {
		<-release
		return nil
	})
	pool := NewWorkerPool(context.Background(), 0)
	aw := NewAsyncWrapper(c, pool)

	if err := aw.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Start must return before the wrapped component finishes.
	if aw.GetState() == Succeeded {
		t.Fatal("component finished before Start returned; it is not running asynchronously")
	}
	close(release)
	if err := aw.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if aw.GetState() != Succeeded {
		t.Fatalf("state = %s, want SUCCEEDED", aw.GetState())
	}
}

func TestAsyncWrapperDoubleStartIsInvalidState(t *testing.T) {
	c, _ := newFakeComponent("leaf", nil)
	pool := NewWorkerPool(context.Background(), 0)
	aw := NewAsyncWrapper(c, pool)

	if err := aw.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := aw.Start(context.Background()); err == nil {
		t.Fatal("expected InvalidState on second Start")
	}
	_ = aw.Wait(context.Background())
}

func TestAsyncWrapperPauseBeforePickupIsHonored(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c, step := newFakeComponent("leaf", func(ctx context.Context, self *Component) error {
		close(started)
		<-release
		return nil
	})
	pool := NewWorkerPool(context.Background(), 0)
	aw := NewAsyncWrapper(c, pool)

	if err := aw.Pause(context.Background()); err != nil {
		t.Fatalf("pre-start Pause: %v", err)
	}
	if err := aw.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started

	deadline := time.After(time.Second)
	for step.pauseCalls == 0 {
		select {
		case <-deadline:
			t.Fatal("pending pause was never delivered to the wrapped component")
		case <-time.After(time.Millisecond):
		}
	}
	close(release)
	_ = aw.Wait(context.Background())
}

func TestResultWrapperAwaitResult(t *testing.T) {
	var result Field[string]
	c, _ := newFakeComponent("leaf", func(ctx context.Context, self *Component) error {
		return result.Set("done")
	})
	pool := NewWorkerPool(context.Background(), 0)
	rw := NewResultWrapper(c, pool, &result)

	if err := rw.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	v, err := rw.AwaitResult(context.Background())
	if err != nil {
		t.Fatalf("AwaitResult: %v", err)
	}
	if v != "done" {
		t.Fatalf("result = %q, want done", v)
	}
}

func TestResultWrapperAwaitResultSurfacesFailureCause(t *testing.T) {
	wantErr := errors.New("boom")
	var result Field[string]
	c, _ := newFakeComponent("leaf", func(ctx context.Context, self *Component) error {
		return wantErr
	})
	pool := NewWorkerPool(context.Background(), 0)
	rw := NewResultWrapper(c, pool, &result)

	if err := rw.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := rw.AwaitResult(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("AwaitResult err = %v, want %v", err, wantErr)
	}
}
