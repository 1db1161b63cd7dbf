package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/process"
	"github.com/hive2hive/h2h/session"
)

// RecoverFileStep is the single step spec §4.4 recover builds: it lists
// every version of a file, calls back into a dht.VersionSelector to pick
// one, then re-puts that version's payload as the new head version (the
// same "put as new version" shape UpdateFileStep uses). Rejecting folders
// and non-existent files is a façade-level precondition (spec §7), not
// this step's concern.
type RecoverFileStep struct {
	baseStep

	sess     *session.Session
	path     string
	selector dht.VersionSelector

	newVersion dht.Key160
	wrote      bool
}

func NewRecoverFileStep(sess *session.Session, path string, selector dht.VersionSelector) *RecoverFileStep {
	return &RecoverFileStep{sess: sess, path: path, selector: selector}
}

func (s *RecoverFileStep) Execute(ctx context.Context, self *process.Component) error {
	loc, domain, content := tuple(s.sess.Root, s.path, domainFiles)

	candidates, err := s.listVersions(ctx, loc, domain, content)
	if err != nil {
		return fmt.Errorf("recover %s: list versions: %w", s.path, err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("recover %s: no versions available", s.path)
	}

	maps := make([]map[string]any, len(candidates))
	for i, c := range candidates {
		maps[i] = map[string]any{"version": c.version.String(), "storedAt": c.storedAt}
	}
	choice, err := s.selector.Select(maps)
	if err != nil {
		return fmt.Errorf("recover %s: select version: %w", s.path, err)
	}
	if choice < 0 || choice >= len(candidates) {
		return fmt.Errorf("recover %s: selector returned out-of-range index %d", s.path, choice)
	}
	picked := candidates[choice]

	entry, err := s.sess.DHT.Get(ctx, loc, domain, content, picked.version, s.sess.Owner.Public).Wait(ctx)
	if err != nil {
		return fmt.Errorf("recover %s: read chosen version: %w", s.path, err)
	}

	s.newVersion = dht.NewKey160(fmt.Sprintf("%s:recover:%d", s.path, time.Now().UnixNano()))
	if _, err := s.sess.DHT.Put(ctx, loc, domain, content, s.newVersion, picked.version, entry.Payload, s.sess.Owner).Wait(ctx); err != nil {
		return fmt.Errorf("recover %s: put recovered version: %w", s.path, err)
	}
	s.wrote = true
	return nil
}

func (s *RecoverFileStep) Rollback(ctx context.Context, self *process.Component, reason process.RollbackReason) error {
	if !s.wrote {
		return nil
	}
	loc, domain, content := tuple(s.sess.Root, s.path, domainFiles)
	_, err := s.sess.DHT.Remove(ctx, loc, domain, content, s.newVersion, s.sess.Owner).Wait(ctx)
	return err
}

type versionCandidate struct {
	version  dht.Key160
	storedAt int64
}

// listVersions retrieves every stored version's metadata at the tuple for
// the recover step's selector to choose among (spec §4.4 recover's
// versionSelector callback).
func (s *RecoverFileStep) listVersions(ctx context.Context, loc, domain, content dht.Key160) ([]versionCandidate, error) {
	metas, err := s.sess.DHT.ListVersions(ctx, loc, domain, content)
	if err != nil {
		return nil, err
	}
	out := make([]versionCandidate, len(metas))
	for i, m := range metas {
		out[i] = versionCandidate{version: m.Version, storedAt: m.StoredAt.UnixNano()}
	}
	return out, nil
}
