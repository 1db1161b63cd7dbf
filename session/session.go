// Package session implements the session/file-root external collaborator
// (spec §6): the root path, profile manager handle, and data manager handle
// every façade operation is scoped to, plus the root-prefix-child guards the
// façade applies before handing work to the process factory.
package session

import (
	"path/filepath"
	"strings"

	"github.com/hive2hive/h2h"
	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/profile"
)

// Session supplies the root path, profile manager handle, and data manager
// (DHT client) handle a façade call needs (spec §6). A nil Session is what
// the façade's NoSession error guards against.
type Session struct {
	Root           string
	ProfileManager profile.Manager
	DHT            *dht.Client
	Owner          dht.KeyPair
}

// New creates a Session rooted at root (cleaned with filepath.Clean; a
// relative root stays relative).
func New(root string, pm profile.Manager, client *dht.Client, owner dht.KeyPair) *Session {
	return &Session{Root: filepath.Clean(root), ProfileManager: pm, DHT: client, Owner: owner}
}

// IsPrefixChild reports whether path is root itself's child — a path
// strictly inside the root, per spec §6: "the façade rejects any add whose
// absolute path is not a prefix-child of root". path==root is NOT a prefix
// child (see IsRootOrOutside).
func (s *Session) IsPrefixChild(path string) bool {
	clean := filepath.Clean(path)
	if clean == s.Root {
		return false
	}
	rel, err := filepath.Rel(s.Root, clean)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

// IsRootOrOutside reports whether path equals root or lies outside it — the
// guard spec §6 requires for share: "any share whose target is the root
// itself or outside it".
func (s *Session) IsRootOrOutside(path string) bool {
	clean := filepath.Clean(path)
	if clean == s.Root {
		return true
	}
	return !s.IsPrefixChild(clean)
}

// RequireSession returns h2h.NoSession if s is nil, for façade entry guards.
func RequireSession(s *Session) error {
	if s == nil {
		return h2h.NewError(h2h.NoSession, errNoSession, "")
	}
	return nil
}

var errNoSession = noSessionError{}

type noSessionError struct{}

func (noSessionError) Error() string { return "no active session" }
