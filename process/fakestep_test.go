package process

import "context"

// fakeStep is a minimal Steppable used across this package's tests. Each
// hook records how many times it was invoked and optionally runs a
// caller-supplied function.
type fakeStep struct {
	executeFn  func(ctx context.Context, self *Component) error
	rollbackFn func(ctx context.Context, self *Component, reason RollbackReason) error

	executeCalls  int
	pauseCalls    int
	resumeExecCalls int
	resumeRBCalls int
	rollbackCalls int
}

func (f *fakeStep) Execute(ctx context.Context, self *Component) error {
	f.executeCalls++
	if f.executeFn != nil {
		return f.executeFn(ctx, self)
	}
	return nil
}

func (f *fakeStep) Pause(ctx context.Context, self *Component) { f.pauseCalls++ }

func (f *fakeStep) ResumeExecution(ctx context.Context, self *Component) { f.resumeExecCalls++ }

func (f *fakeStep) ResumeRollback(ctx context.Context, self *Component) { f.resumeRBCalls++ }

func (f *fakeStep) Rollback(ctx context.Context, self *Component, reason RollbackReason) error {
	f.rollbackCalls++
	if f.rollbackFn != nil {
		return f.rollbackFn(ctx, self, reason)
	}
	return nil
}

func newFakeComponent(label string, executeFn func(ctx context.Context, self *Component) error) (*Component, *fakeStep) {
	step := &fakeStep{executeFn: executeFn}
	return NewComponent(step, label), step
}
