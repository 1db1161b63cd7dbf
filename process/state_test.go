package process

import "testing"

// P1: for any component, the resulting state after an operation is a legal
// successor per spec §3.
func TestIsLegalTransition(t *testing.T) {
	cases := []struct {
		from, to LifecycleState
		legal    bool
	}{
		{Ready, Running, true},
		{Ready, Paused, false},
		{Ready, Succeeded, false},
		{Running, Paused, true},
		{Running, Rollbacking, true},
		{Running, Succeeded, true},
		{Running, Failed, false},
		{Paused, Running, true},
		{Paused, Rollbacking, true},
		{Paused, Succeeded, false},
		{Rollbacking, Paused, true},
		{Rollbacking, Failed, true},
		{Rollbacking, Succeeded, false},
		{Succeeded, Rollbacking, true},
		{Succeeded, Failed, false},
		{Failed, Running, false},
		{Failed, Ready, false},
	}
	for _, c := range cases {
		if got := IsLegalTransition(c.from, c.to); got != c.legal {
			t.Errorf("IsLegalTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.legal)
		}
	}
}

func TestLifecycleStateIsTerminal(t *testing.T) {
	for _, s := range []LifecycleState{Ready, Running, Paused, Rollbacking} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []LifecycleState{Succeeded, Failed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
