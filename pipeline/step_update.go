package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/process"
	"github.com/hive2hive/h2h/session"
)

// UpdateFileStep is the single step spec §4.4 update builds: it puts a new
// version of an existing file, chained to the file's prior version via
// basedOn, and leaves the prior version intact (rollback simply removes
// the new version, leaving the earlier versions as they were).
type UpdateFileStep struct {
	baseStep

	sess    *session.Session
	path    string
	payload []byte

	priorVersion dht.Key160
	newVersion   dht.Key160
	wrote        bool
}

// NewUpdateFileStep builds a step that updates path's content, based on
// priorVersion (the version currently on record; dht.ZeroVersion if this is
// somehow the first write through update, which ordinarily only add does).
func NewUpdateFileStep(sess *session.Session, path string, priorVersion dht.Key160, payload []byte) *UpdateFileStep {
	return &UpdateFileStep{sess: sess, path: path, priorVersion: priorVersion, payload: payload}
}

func (s *UpdateFileStep) Execute(ctx context.Context, self *process.Component) error {
	loc, domain, content := tuple(s.sess.Root, s.path, domainFiles)
	s.newVersion = dht.NewKey160(fmt.Sprintf("%s:%d", s.path, time.Now().UnixNano()))
	if _, err := s.sess.DHT.Put(ctx, loc, domain, content, s.newVersion, s.priorVersion, s.payload, s.sess.Owner).Wait(ctx); err != nil {
		return fmt.Errorf("update file %s: %w", s.path, err)
	}
	s.wrote = true
	return nil
}

func (s *UpdateFileStep) Rollback(ctx context.Context, self *process.Component, reason process.RollbackReason) error {
	if !s.wrote {
		return nil
	}
	loc, domain, content := tuple(s.sess.Root, s.path, domainFiles)
	_, err := s.sess.DHT.Remove(ctx, loc, domain, content, s.newVersion, s.sess.Owner).Wait(ctx)
	return err
}
