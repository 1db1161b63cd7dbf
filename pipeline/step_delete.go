package pipeline

import (
	"context"
	"fmt"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/process"
	"github.com/hive2hive/h2h/session"
)

// DeleteFileStep is the per-path "delete-file" step spec §4.4 delete builds
// a postorder composite of (children removed before parents). Rollback
// re-puts only the removed content entry under its original version; the
// meta versions and the profile entry that Execute also removed are not
// restored.
type DeleteFileStep struct {
	baseStep

	sess    *session.Session
	path    string
	version dht.Key160

	removedPayload []byte
	removedMeta    bool
	removedMetaVersions []dht.Key160
	removed        bool
}

func NewDeleteFileStep(sess *session.Session, path string, version dht.Key160) *DeleteFileStep {
	return &DeleteFileStep{sess: sess, path: path, version: version}
}

func (s *DeleteFileStep) Execute(ctx context.Context, self *process.Component) error {
	loc, domain, content := tuple(s.sess.Root, s.path, domainFiles)
	entry, err := s.sess.DHT.Get(ctx, loc, domain, content, s.version, s.sess.Owner.Public).Wait(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: read before delete: %w", s.path, err)
	}
	s.removedPayload = entry.Payload

	if _, err := s.sess.DHT.Remove(ctx, loc, domain, content, s.version, s.sess.Owner).Wait(ctx); err != nil {
		return fmt.Errorf("delete %s: remove content: %w", s.path, err)
	}
	s.removed = true

	metaLoc, metaDomain, metaContent := tuple(s.sess.Root, s.path, domainMeta)
	prof, err := s.sess.ProfileManager.Get(ctx)
	if err == nil {
		prof.Remove(content)
		_ = s.sess.ProfileManager.Save(ctx, prof)
	}

	// idx.MetaKey (profile.Index) addresses the meta tuple's content key,
	// not a version, so the actual stored version(s) must come from the
	// registry itself.
	metaVersions, err := s.sess.DHT.ListVersions(ctx, metaLoc, metaDomain, metaContent)
	if err == nil {
		for _, mv := range metaVersions {
			if _, err := s.sess.DHT.Remove(ctx, metaLoc, metaDomain, metaContent, mv.Version, s.sess.Owner).Wait(ctx); err == nil {
				s.removedMetaVersions = append(s.removedMetaVersions, mv.Version)
				s.removedMeta = true
			}
		}
	}
	return nil
}

func (s *DeleteFileStep) Rollback(ctx context.Context, self *process.Component, reason process.RollbackReason) error {
	if !s.removed {
		return nil
	}
	loc, domain, content := tuple(s.sess.Root, s.path, domainFiles)
	_, err := s.sess.DHT.Put(ctx, loc, domain, content, s.version, dht.ZeroVersion, s.removedPayload, s.sess.Owner).Wait(ctx)
	return err
}
