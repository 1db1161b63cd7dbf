package pipeline

import (
	"context"
	"fmt"

	"github.com/hive2hive/h2h/process"
	"github.com/hive2hive/h2h/session"
)

// GetFileListStep is the result-bearing step spec §4.4 getFileList builds:
// it reads the user profile and writes the current list of known paths
// into Result, which a process.ResultWrapper[[]string] surfaces via
// AwaitResult once this step (and its owning component) succeeds.
type GetFileListStep struct {
	baseStep

	sess   *session.Session
	Result process.Field[[]string]
}

func NewGetFileListStep(sess *session.Session) *GetFileListStep {
	return &GetFileListStep{sess: sess}
}

func (s *GetFileListStep) Execute(ctx context.Context, self *process.Component) error {
	prof, err := s.sess.ProfileManager.Get(ctx)
	if err != nil {
		return fmt.Errorf("get file list: fetch profile: %w", err)
	}
	if err := s.Result.Set(prof.Paths()); err != nil {
		return fmt.Errorf("get file list: %w", err)
	}
	return nil
}

// Rollback is a no-op: getFileList performs no writes to undo.
func (s *GetFileListStep) Rollback(ctx context.Context, self *process.Component, reason process.RollbackReason) error {
	return nil
}
