// Package recursion implements the RecursionPlanner external collaborator
// (spec §4.4, §6): producing preorder/postorder path sequences that the
// pipeline factory turns into add/delete composites. It is kept thin and
// swappable — WalkPlanner is the real filesystem-backed implementation;
// tests use a plain slice-backed double satisfying the same interface.
package recursion

import (
	"io/fs"
	"path/filepath"
)

// Planner produces preorder and postorder path sequences for a directory
// tree rooted at root (spec §4.4: "compute preorder path list ... reverse
// preorder (postorder) so children vanish before parents").
type Planner interface {
	Preorder(root string) ([]string, error)
	Postorder(root string) ([]string, error)
}

// WalkPlanner is the filesystem-backed Planner, grounded on the external
// collaborator boundary spec §6 describes: a thin wrapper over
// filepath.WalkDir, deliberately with no dependency on process/pipeline
// types so it stays swappable in tests.
type WalkPlanner struct {
	// FS, if non-nil, is used instead of the OS filesystem — lets tests
	// supply an fstest.MapFS without touching disk.
	FS fs.FS
}

// NewWalkPlanner creates a Planner that walks the real OS filesystem.
func NewWalkPlanner() *WalkPlanner { return &WalkPlanner{} }

// Preorder returns every path under root (root included), in depth-first
// preorder: a directory entry precedes its children, and siblings are
// visited in lexical order (filepath.WalkDir's documented order).
func (p *WalkPlanner) Preorder(root string) ([]string, error) {
	var out []string
	walk := filepath.WalkDir
	if p.FS != nil {
		return preorderFS(p.FS, root)
	}
	err := walk(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func preorderFS(fsys fs.FS, root string) ([]string, error) {
	var out []string
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Postorder returns Preorder's sequence reversed (spec §4.4 delete: "preorder
// list, then deletion composite in reverse preorder (postorder) so children
// vanish before parents").
func (p *WalkPlanner) Postorder(root string) ([]string, error) {
	pre, err := p.Preorder(root)
	if err != nil {
		return nil, err
	}
	return Reverse(pre), nil
}

// Reverse returns a new slice with paths in reverse order, leaving paths
// untouched. Exposed so the pipeline factory (or a test double) can apply
// the same "postorder = reverse preorder" rule without re-walking.
func Reverse(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[len(paths)-1-i] = p
	}
	return out
}

// StaticPlanner is a fixed, slice-backed Planner double: Preorder/Postorder
// ignore root and return the configured slice (reversed for Postorder),
// used by pipeline tests so directory-add/delete ordering (spec §8
// scenarios 3-4) can be asserted without a real filesystem.
type StaticPlanner struct {
	Paths []string
}

func (s StaticPlanner) Preorder(root string) ([]string, error) {
	out := make([]string, len(s.Paths))
	copy(out, s.Paths)
	return out, nil
}

func (s StaticPlanner) Postorder(root string) ([]string, error) {
	pre, err := s.Preorder(root)
	if err != nil {
		return nil, err
	}
	return Reverse(pre), nil
}
