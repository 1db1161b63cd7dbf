package pipeline

import (
	"context"
	"fmt"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/process"
	"github.com/hive2hive/h2h/session"
)

// Permission is the access level granted to a share recipient.
type Permission int

const (
	PermissionRead Permission = iota
	PermissionWrite
)

func (p Permission) String() string {
	if p == PermissionWrite {
		return "write"
	}
	return "read"
}

// ShareStep is the single step spec §4.4 share builds: it writes a share
// record (recipient + permission) under the domainShare partition of the
// shared folder's content key. Rejecting non-folders, the root itself, and
// out-of-root targets is a façade-level precondition (spec §7, P8), not
// this step's concern.
type ShareStep struct {
	baseStep

	sess       *session.Session
	folderPath string
	userID     string
	permission Permission

	version dht.Key160
	wrote   bool
}

func NewShareStep(sess *session.Session, folderPath, userID string, permission Permission) *ShareStep {
	return &ShareStep{sess: sess, folderPath: folderPath, userID: userID, permission: permission}
}

func (s *ShareStep) Execute(ctx context.Context, self *process.Component) error {
	loc, domain, content := tuple(s.sess.Root, s.folderPath, domainShare)
	s.version = dht.NewKey160(fmt.Sprintf("%s:share:%s", s.folderPath, s.userID))
	payload := []byte(fmt.Sprintf(`{"userId":%q,"permission":%q}`, s.userID, s.permission))
	if _, err := s.sess.DHT.Put(ctx, loc, domain, content, s.version, dht.ZeroVersion, payload, s.sess.Owner).Wait(ctx); err != nil {
		return fmt.Errorf("share %s with %s: %w", s.folderPath, s.userID, err)
	}
	s.wrote = true
	return nil
}

func (s *ShareStep) Rollback(ctx context.Context, self *process.Component, reason process.RollbackReason) error {
	if !s.wrote {
		return nil
	}
	loc, domain, content := tuple(s.sess.Root, s.folderPath, domainShare)
	_, err := s.sess.DHT.Remove(ctx, loc, domain, content, s.version, s.sess.Owner).Wait(ctx)
	return err
}
