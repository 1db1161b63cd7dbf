// Package profile implements the user profile: the known file/folder tree
// for one user, as the process pipelines see it. It is the thin in-session
// analogue of the teacher's profile manager collaborator (spec §4.5, §6):
// steps read a snapshot via Manager.Get and write back via Manager.Save:
// the manager itself serialises concurrent access at the profile level
// (spec §5), so callers only ever see whole, consistent snapshots.
package profile

import (
	"context"
	"sort"
	"sync"

	"github.com/hive2hive/h2h/dht"
)

// Index is one file or folder entry in a UserProfile (spec §4.5: "look up
// the index by key ... if the index is a folder").
type Index struct {
	FileKey  dht.Key160
	Path     string
	IsFolder bool
	// MetaKey addresses the meta document (chunk list, size, mtime) for the
	// index; add writes a meta entry for folders too, so it is set for both.
	MetaKey dht.Key160
	// Children holds child file keys, preorder within this folder, so the
	// getFileList pipeline can walk the tree without re-deriving it from
	// path strings.
	Children []dht.Key160
}

// UserProfile is one user's known file tree: every Index reachable from the
// session root, keyed by FileKey.
type UserProfile struct {
	RootKey dht.Key160
	Indices map[dht.Key160]Index
}

// NewUserProfile creates an empty profile rooted at rootKey.
func NewUserProfile(rootKey dht.Key160) *UserProfile {
	return &UserProfile{RootKey: rootKey, Indices: make(map[dht.Key160]Index)}
}

// Lookup returns the Index for key, if known.
func (p *UserProfile) Lookup(key dht.Key160) (Index, bool) {
	idx, ok := p.Indices[key]
	return idx, ok
}

// Put inserts or replaces idx and, if it has a non-zero parent reachable via
// Path, is the caller's responsibility to link as a child — Put itself only
// maintains the flat index map.
func (p *UserProfile) Put(idx Index) {
	p.Indices[idx.FileKey] = idx
}

// LinkChild records child as a child of parent, preserving insertion order
// so Children reflects preorder discovery (spec §4.4 add's preorder build).
func (p *UserProfile) LinkChild(parent, child dht.Key160) {
	idx := p.Indices[parent]
	idx.Children = append(idx.Children, child)
	p.Indices[parent] = idx
}

// Remove deletes key (and, if it is a folder, recursively its children) from
// the profile — the profile-side mirror of a delete pipeline's postorder
// unwind (spec §4.4 delete).
func (p *UserProfile) Remove(key dht.Key160) {
	idx, ok := p.Indices[key]
	if !ok {
		return
	}
	for _, child := range idx.Children {
		p.Remove(child)
	}
	delete(p.Indices, key)
}

// Paths returns every known path, sorted, for getFileList (spec §4.4).
func (p *UserProfile) Paths() []string {
	out := make([]string, 0, len(p.Indices))
	for _, idx := range p.Indices {
		out = append(out, idx.Path)
	}
	sort.Strings(out)
	return out
}

// Manager is the profile-manager collaborator spec §4.5/§6 names: "fetch
// the current user profile from the profile manager". Get returns a
// snapshot; Save persists a (possibly mutated) copy back.
type Manager interface {
	Get(ctx context.Context) (*UserProfile, error)
	Save(ctx context.Context, profile *UserProfile) error
}

// MemoryManager is an in-process Manager, serialising reads/writes at the
// whole-profile level (spec §5's "profile manager serialises concurrent
// reads/writes at the profile level; steps must treat reads as snapshots").
type MemoryManager struct {
	mu      sync.Mutex
	current *UserProfile
}

// NewMemoryManager wraps an initial profile.
func NewMemoryManager(initial *UserProfile) *MemoryManager {
	return &MemoryManager{current: initial}
}

// Get returns a deep-enough copy that the caller's mutations never race the
// next Get/Save: the map and each Index's Children slice are copied.
func (m *MemoryManager) Get(ctx context.Context) (*UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := NewUserProfile(m.current.RootKey)
	for k, idx := range m.current.Indices {
		children := append([]dht.Key160(nil), idx.Children...)
		idx.Children = children
		cp.Indices[k] = idx
	}
	return cp, nil
}

func (m *MemoryManager) Save(ctx context.Context, profile *UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = profile
	return nil
}
