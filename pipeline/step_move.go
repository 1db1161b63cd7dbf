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

// MoveFileStep is the single step spec §4.4 move builds: a move is
// represented as a put under the destination path's content key (based on
// the source's current version, so lineage survives the rename) followed
// by removing the source entry and repointing the profile's Index; rollback
// reverses both in the opposite order.
type MoveFileStep struct {
	baseStep

	sess *session.Session
	src  string
	dst  string

	srcContentKey dht.Key160
	dstContentKey dht.Key160
	dstVersion    dht.Key160
	srcVersion    dht.Key160
	wroteDst      bool
	removedSrc    bool
}

func NewMoveFileStep(sess *session.Session, src, dst string, srcVersion dht.Key160) *MoveFileStep {
	return &MoveFileStep{sess: sess, src: src, dst: dst, srcVersion: srcVersion}
}

func (s *MoveFileStep) Execute(ctx context.Context, self *process.Component) error {
	srcLoc, srcDomain, srcContent := tuple(s.sess.Root, s.src, domainFiles)
	s.srcContentKey = srcContent

	entry, err := s.sess.DHT.Get(ctx, srcLoc, srcDomain, srcContent, s.srcVersion, s.sess.Owner.Public).Wait(ctx)
	if err != nil {
		return fmt.Errorf("move %s -> %s: read source: %w", s.src, s.dst, err)
	}

	dstLoc, dstDomain, dstContent := tuple(s.sess.Root, s.dst, domainFiles)
	s.dstContentKey = dstContent
	s.dstVersion = dht.NewKey160(fmt.Sprintf("%s:%d", s.dst, time.Now().UnixNano()))
	if _, err := s.sess.DHT.Put(ctx, dstLoc, dstDomain, dstContent, s.dstVersion, s.srcVersion, entry.Payload, s.sess.Owner).Wait(ctx); err != nil {
		return fmt.Errorf("move %s -> %s: put destination: %w", s.src, s.dst, err)
	}
	s.wroteDst = true

	if _, err := s.sess.DHT.Remove(ctx, srcLoc, srcDomain, srcContent, s.srcVersion, s.sess.Owner).Wait(ctx); err != nil {
		return fmt.Errorf("move %s -> %s: remove source: %w", s.src, s.dst, err)
	}
	s.removedSrc = true

	prof, err := s.sess.ProfileManager.Get(ctx)
	if err != nil {
		return fmt.Errorf("move %s -> %s: fetch profile: %w", s.src, s.dst, err)
	}
	idx, ok := prof.Lookup(srcContent)
	if !ok {
		idx = profile.Index{}
	}
	idx.FileKey = dstContent
	idx.Path = s.dst
	prof.Remove(srcContent)
	prof.Put(idx)
	if err := s.sess.ProfileManager.Save(ctx, prof); err != nil {
		return fmt.Errorf("move %s -> %s: save profile: %w", s.src, s.dst, err)
	}
	return nil
}

func (s *MoveFileStep) Rollback(ctx context.Context, self *process.Component, reason process.RollbackReason) error {
	var lastErr error
	srcLoc, srcDomain, srcContent := tuple(s.sess.Root, s.src, domainFiles)
	dstLoc, dstDomain, dstContent := tuple(s.sess.Root, s.dst, domainFiles)

	if s.removedSrc {
		if entry, err := s.sess.DHT.Get(ctx, dstLoc, dstDomain, dstContent, s.dstVersion, s.sess.Owner.Public).Wait(ctx); err == nil {
			if _, err := s.sess.DHT.Put(ctx, srcLoc, srcDomain, srcContent, s.srcVersion, dht.ZeroVersion, entry.Payload, s.sess.Owner).Wait(ctx); err != nil {
				lastErr = err
			}
		} else {
			lastErr = err
		}
	}
	if s.wroteDst {
		if _, err := s.sess.DHT.Remove(ctx, dstLoc, dstDomain, dstContent, s.dstVersion, s.sess.Owner).Wait(ctx); err != nil {
			lastErr = err
		}
	}
	if prof, err := s.sess.ProfileManager.Get(ctx); err == nil {
		idx, ok := prof.Lookup(dstContent)
		if ok {
			idx.FileKey = srcContent
			idx.Path = s.src
			prof.Remove(dstContent)
			prof.Put(idx)
			_ = s.sess.ProfileManager.Save(ctx, prof)
		}
	}
	return lastErr
}
