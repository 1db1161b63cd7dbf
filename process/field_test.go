package process

import "testing"

func TestFieldSetGet(t *testing.T) {
	var f Field[string]
	if _, ok := f.Get(); ok {
		t.Fatal("field should start unset")
	}
	if err := f.Set("a"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := f.Get()
	if !ok || v != "a" {
		t.Fatalf("Get = %q, %v, want a, true", v, ok)
	}
}

// P5: a field may only be written once per forward pass.
func TestFieldSetTwiceErrors(t *testing.T) {
	var f Field[int]
	if err := f.Set(1); err != nil {
		t.Fatalf("first Set: %v", err)
	}
	if err := f.Set(2); err == nil {
		t.Fatal("expected error setting an already-set field")
	}
	v, _ := f.Get()
	if v != 1 {
		t.Fatalf("value changed after rejected second Set: got %d, want 1", v)
	}
}

func TestFieldClearAllowsResetting(t *testing.T) {
	var f Field[int]
	_ = f.Set(7)
	f.Clear()
	if f.IsSet() {
		t.Fatal("IsSet should be false after Clear")
	}
	if err := f.Set(8); err != nil {
		t.Fatalf("Set after Clear: %v", err)
	}
	v, _ := f.Get()
	if v != 8 {
		t.Fatalf("value = %d, want 8", v)
	}
}

func TestFieldMustGetPanicsWhenUnset(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustGet to panic on an unset field")
		}
	}()
	var f Field[int]
	f.MustGet()
}
