package process

// Listener is the terminal-event sink a ProcessComponent notifies.
// Implementations must not block inside a notification — post to your own
// queue instead (spec §9 "listeners as coroutines/callbacks"). Delivery is
// at-most-once per terminal event per attached listener, in attach order;
// OnFinished always fires after OnSucceeded or OnFailed.
type Listener interface {
	OnSucceeded()
	OnFailed(reason RollbackReason)
	OnFinished()
}

// ListenerFuncs adapts plain closures to the Listener interface; any nil
// field is simply not invoked. Handy for tests and for one-off facade hooks
// that only care about one of the three events.
type ListenerFuncs struct {
	OnSucceededFn func()
	OnFailedFn    func(reason RollbackReason)
	OnFinishedFn  func()
}

func (l ListenerFuncs) OnSucceeded() {
	if l.OnSucceededFn != nil {
		l.OnSucceededFn()
	}
}

func (l ListenerFuncs) OnFailed(reason RollbackReason) {
	if l.OnFailedFn != nil {
		l.OnFailedFn(reason)
	}
}

func (l ListenerFuncs) OnFinished() {
	if l.OnFinishedFn != nil {
		l.OnFinishedFn()
	}
}
