package process

import (
	"fmt"
	"sync"
)

// Field is a generic set-once box used to build typed pipeline Contexts
// (spec §3: "each field transitions monotonically from 'unset' to 'set'
// exactly once during the forward pass; rollback may clear fields it
// wrote"). It is the concrete mechanism behind P5 (context monotonicity).
type Field[T any] struct {
	mu    sync.Mutex
	isSet bool
	value T
}

// Set writes v if the field is currently unset; it errors if called twice
// during the same forward pass, which is exactly the violation P5 forbids.
func (f *Field[T]) Set(v T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isSet {
		return fmt.Errorf("field already set")
	}
	f.value = v
	f.isSet = true
	return nil
}

// Get returns the current value and whether it has been set.
func (f *Field[T]) Get() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.isSet
}

// MustGet panics if the field is unset; steps use it after validating via
// Get when "unset" would itself be a programming error, not a data error.
func (f *Field[T]) MustGet() T {
	v, ok := f.Get()
	if !ok {
		panic("field read before being set")
	}
	return v
}

// Clear resets the field to unset, releasing its value. Rollback hooks call
// this for fields they wrote (spec §3 Context invariant).
func (f *Field[T]) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero T
	f.value = zero
	f.isSet = false
}

// IsSet reports whether the field currently holds a value.
func (f *Field[T]) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isSet
}
