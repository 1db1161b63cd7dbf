package pipeline

import (
	"context"
	"fmt"

	"github.com/hive2hive/h2h"
	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/process"
)

// FindInUserProfileStep is the representative step spec §4.5 describes:
// validate -> read-from-context -> perform one atomic subtask ->
// write-to-context -> optionally extend the pipeline. It looks up the
// context's FileKey in the user profile and, depending on whether that
// index names a folder or a file, dynamically appends the rest of the
// download pipeline to its parent composite (spec §4.1 dynamic extension,
// scenario 2 of spec §8).
type FindInUserProfileStep struct {
	baseStep
	dctx   *DownloadFileContext
	parent *process.Composite
}

// NewFindInUserProfileStep builds the step; parent is the composite this
// step's Component will be (or already is) a child of, the only handle a
// pipeline step has for dynamically extending its own pipeline.
func NewFindInUserProfileStep(dctx *DownloadFileContext, parent *process.Composite) *FindInUserProfileStep {
	return &FindInUserProfileStep{dctx: dctx, parent: parent}
}

func (s *FindInUserProfileStep) Execute(ctx context.Context, self *process.Component) error {
	prof, err := s.dctx.Sess.ProfileManager.Get(ctx)
	if err != nil {
		return fmt.Errorf("find in user profile: fetch profile: %w", err)
	}
	idx, ok := prof.Lookup(s.dctx.FileKey)
	if !ok {
		return h2h.NewError(h2h.FileNotFound, errFileNotFound, s.dctx.FileKey.String())
	}
	if err := s.dctx.Index.Set(idx); err != nil {
		return fmt.Errorf("find in user profile: %w", err)
	}

	if idx.IsFolder {
		createFolder := process.NewComponent(NewCreateFolderStep(s.dctx), "createFolder")
		return s.parent.Append(createFolder)
	}
	getMeta := process.NewComponent(NewGetMetaDocumentStep(s.dctx), "getMetaDocument")
	if err := s.parent.Append(getMeta); err != nil {
		return err
	}
	downloadChunks := process.NewComponent(NewDownloadChunksStep(s.dctx), "downloadChunks")
	return s.parent.Append(downloadChunks)
}

func (s *FindInUserProfileStep) Rollback(ctx context.Context, self *process.Component, reason process.RollbackReason) error {
	s.dctx.Index.Clear()
	return nil
}

var errFileNotFound = fileNotFoundError{}

type fileNotFoundError struct{}

func (fileNotFoundError) Error() string { return "file not found in user profile" }

// CreateFolderStep materializes a folder locally once Find determined the
// target is a folder; grounded on the same "FindInUserProfile then act"
// shape spec §4.5 describes.
type CreateFolderStep struct {
	baseStep
	dctx *DownloadFileContext
}

func NewCreateFolderStep(dctx *DownloadFileContext) *CreateFolderStep { return &CreateFolderStep{dctx: dctx} }

func (s *CreateFolderStep) Execute(ctx context.Context, self *process.Component) error {
	// Folder creation has no DHT-side effect beyond the index Find already
	// read; this step's atomic subtask is local directory materialization,
	// an external-filesystem concern the caller's facade layer owns. Here
	// we only mark completion via progress so listeners observe forward
	// motion.
	self.SetProgress(1)
	return nil
}

func (s *CreateFolderStep) Rollback(ctx context.Context, self *process.Component, reason process.RollbackReason) error {
	return nil
}

// GetMetaDocumentStep copies the MetaKey of the file index found by
// FindInUserProfileStep into the shared context for DownloadChunksStep; it
// does not read the meta document (chunk list, size) from the DHT.
type GetMetaDocumentStep struct {
	baseStep
	dctx *DownloadFileContext
}

func NewGetMetaDocumentStep(dctx *DownloadFileContext) *GetMetaDocumentStep {
	return &GetMetaDocumentStep{dctx: dctx}
}

func (s *GetMetaDocumentStep) Execute(ctx context.Context, self *process.Component) error {
	idx, ok := s.dctx.Index.Get()
	if !ok {
		return fmt.Errorf("get meta document: index not set")
	}
	if err := s.dctx.MetaKey.Set(idx.MetaKey); err != nil {
		return fmt.Errorf("get meta document: %w", err)
	}
	return nil
}

func (s *GetMetaDocumentStep) Rollback(ctx context.Context, self *process.Component, reason process.RollbackReason) error {
	s.dctx.MetaKey.Clear()
	return nil
}

// DownloadChunksStep fetches the file's content bytes from the DHT, reading
// the latest stored version under the index's FileKey, and writes them as
// Chunks into the context.
type DownloadChunksStep struct {
	baseStep
	dctx *DownloadFileContext
}

func NewDownloadChunksStep(dctx *DownloadFileContext) *DownloadChunksStep {
	return &DownloadChunksStep{dctx: dctx}
}

func (s *DownloadChunksStep) Execute(ctx context.Context, self *process.Component) error {
	metaKey, ok := s.dctx.MetaKey.Get()
	if !ok {
		return fmt.Errorf("download chunks: meta key not set")
	}
	loc, domain, content := dht.NewKey160(s.dctx.Sess.Root), domainFiles, s.dctx.FileKey
	_ = metaKey // the meta key addresses chunk boundaries in a full chunker; this slice excludes the cipher/chunker itself (spec §6 external collaborator)
	versions, err := s.dctx.Sess.DHT.ListVersions(ctx, loc, domain, content)
	if err != nil {
		return fmt.Errorf("download chunks: %w", err)
	}
	if len(versions) == 0 {
		return h2h.NewError(h2h.FileNotFound, errFileNotFound, content.String())
	}
	latest := versions[0]
	for _, v := range versions[1:] {
		if v.StoredAt.After(latest.StoredAt) {
			latest = v
		}
	}
	entry, err := s.dctx.Sess.DHT.Get(ctx, loc, domain, content, latest.Version, s.dctx.Sess.Owner.Public).Wait(ctx)
	if err != nil {
		return fmt.Errorf("download chunks: %w", err)
	}
	if err := s.dctx.Chunks.Set([][]byte{entry.Payload}); err != nil {
		return fmt.Errorf("download chunks: %w", err)
	}
	return nil
}

func (s *DownloadChunksStep) Rollback(ctx context.Context, self *process.Component, reason process.RollbackReason) error {
	s.dctx.Chunks.Clear()
	return nil
}
