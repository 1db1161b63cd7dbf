package recursion_test

import (
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/hive2hive/h2h/recursion"
)

func TestWalkPlannerPreorderParentsBeforeChildren(t *testing.T) {
	fsys := fstest.MapFS{
		"dir/a.txt":   {Data: []byte("a")},
		"dir/b.txt":   {Data: []byte("b")},
		"dir/sub/c":   {Data: []byte("c")},
	}
	planner := &recursion.WalkPlanner{FS: fsys}
	got, err := planner.Preorder("dir")
	if err != nil {
		t.Fatalf("Preorder: %v", err)
	}
	want := []string{"dir", "dir/a.txt", "dir/b.txt", "dir/sub", "dir/sub/c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Preorder = %v, want %v", got, want)
	}
}

func TestWalkPlannerPostorderIsReversePreorder(t *testing.T) {
	fsys := fstest.MapFS{
		"dir/a.txt": {Data: []byte("a")},
	}
	planner := &recursion.WalkPlanner{FS: fsys}
	pre, err := planner.Preorder("dir")
	if err != nil {
		t.Fatalf("Preorder: %v", err)
	}
	post, err := planner.Postorder("dir")
	if err != nil {
		t.Fatalf("Postorder: %v", err)
	}
	if !reflect.DeepEqual(post, recursion.Reverse(pre)) {
		t.Fatalf("Postorder = %v, want reverse of %v", post, pre)
	}
}

func TestStaticPlannerPreservesOrder(t *testing.T) {
	paths := []string{"x", "x/1", "x/2"}
	p := recursion.StaticPlanner{Paths: paths}
	got, err := p.Preorder("ignored")
	if err != nil {
		t.Fatalf("Preorder: %v", err)
	}
	if !reflect.DeepEqual(got, paths) {
		t.Fatalf("Preorder = %v, want %v", got, paths)
	}
	post, err := p.Postorder("ignored")
	if err != nil {
		t.Fatalf("Postorder: %v", err)
	}
	if !reflect.DeepEqual(post, recursion.Reverse(paths)) {
		t.Fatalf("Postorder = %v, want %v", post, recursion.Reverse(paths))
	}
}

func TestReverse(t *testing.T) {
	in := []string{"a", "b", "c"}
	got := recursion.Reverse(in)
	want := []string{"c", "b", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Reverse = %v, want %v", got, want)
	}
	if in[0] != "a" {
		t.Fatal("Reverse mutated its input")
	}
}
