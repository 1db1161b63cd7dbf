package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/process"
	"github.com/hive2hive/h2h/profile"
	"github.com/hive2hive/h2h/session"
)

// NewFileStep is the per-path "new-file" step spec §4.4 add builds a
// SEQUENTIAL preorder composite of (directories, then files, parents before
// children). One step instance handles exactly one path.
type NewFileStep struct {
	baseStep

	sess     *session.Session
	path     string
	isFolder bool
	parentKey dht.Key160
	payload  []byte

	contentKey   dht.Key160
	version      dht.Key160
	metaVersion  dht.Key160
	wroteEntry   bool
	wroteMeta    bool
}

// NewNewFileStep builds a step that puts path (file content, or an empty
// marker for a folder) into the DHT and registers it in the user profile.
func NewNewFileStep(sess *session.Session, path string, isFolder bool, parentKey dht.Key160, payload []byte) *NewFileStep {
	return &NewFileStep{sess: sess, path: path, isFolder: isFolder, parentKey: parentKey, payload: payload}
}

func (s *NewFileStep) Execute(ctx context.Context, self *process.Component) error {
	loc, domain, content := tuple(s.sess.Root, s.path, domainFiles)
	s.contentKey = content
	s.version = dht.NewKey160(fmt.Sprintf("%s:%d", s.path, time.Now().UnixNano()))

	if _, err := s.sess.DHT.Put(ctx, loc, domain, content, s.version, dht.ZeroVersion, s.payload, s.sess.Owner).Wait(ctx); err != nil {
		return fmt.Errorf("new file %s: put content: %w", s.path, err)
	}
	s.wroteEntry = true

	metaLoc, metaDomain, metaContent := tuple(s.sess.Root, s.path, domainMeta)
	s.metaVersion = dht.NewKey160(fmt.Sprintf("%s:meta:%d", s.path, time.Now().UnixNano()))
	metaPayload := []byte(fmt.Sprintf(`{"size":%d}`, len(s.payload)))
	if _, err := s.sess.DHT.Put(ctx, metaLoc, metaDomain, metaContent, s.metaVersion, dht.ZeroVersion, metaPayload, s.sess.Owner).Wait(ctx); err != nil {
		return fmt.Errorf("new file %s: put meta: %w", s.path, err)
	}
	s.wroteMeta = true

	prof, err := s.sess.ProfileManager.Get(ctx)
	if err != nil {
		return fmt.Errorf("new file %s: fetch profile: %w", s.path, err)
	}
	prof.Put(profile.Index{FileKey: content, Path: s.path, IsFolder: s.isFolder, MetaKey: metaContent})
	if !s.parentKey.IsZero() {
		if _, ok := prof.Lookup(s.parentKey); ok {
			prof.LinkChild(s.parentKey, content)
		}
	}
	if err := s.sess.ProfileManager.Save(ctx, prof); err != nil {
		return fmt.Errorf("new file %s: save profile: %w", s.path, err)
	}
	return nil
}

// Rollback undoes whatever this step actually wrote, in reverse order of
// the writes Execute performed: profile entry, then meta put, then content
// put (spec §7 "rollback failures ... the component still moves to FAILED").
func (s *NewFileStep) Rollback(ctx context.Context, self *process.Component, reason process.RollbackReason) error {
	prof, err := s.sess.ProfileManager.Get(ctx)
	if err == nil {
		prof.Remove(s.contentKey)
		_ = s.sess.ProfileManager.Save(ctx, prof)
	}
	var lastErr error
	if s.wroteMeta {
		metaLoc, metaDomain, metaContent := tuple(s.sess.Root, s.path, domainMeta)
		if _, err := s.sess.DHT.Remove(ctx, metaLoc, metaDomain, metaContent, s.metaVersion, s.sess.Owner).Wait(ctx); err != nil {
			lastErr = err
		}
	}
	if s.wroteEntry {
		loc, domain, content := tuple(s.sess.Root, s.path, domainFiles)
		if _, err := s.sess.DHT.Remove(ctx, loc, domain, content, s.version, s.sess.Owner).Wait(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
