// Package facade implements the IFileManager-style entry point (spec §6):
// one handle-returning method per user-visible operation, each guarded by
// the façade-level preconditions spec §7 requires be "detected at façade
// entry, raised synchronously, never enter the process framework" before a
// pipeline.Factory composite is built, wrapped in process.AsyncWrapper (or
// process.ResultWrapper for getFileList), and started.
package facade

import (
	"context"
	"fmt"

	"github.com/hive2hive/h2h"
	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/pipeline"
	"github.com/hive2hive/h2h/process"
	"github.com/hive2hive/h2h/profile"
	"github.com/hive2hive/h2h/session"
)

// PeerChecker reports whether the overlay is currently reachable, the
// external collaborator behind the NoPeerConnection precondition (spec §6).
type PeerChecker interface {
	Connected() bool
}

// AlwaysConnected is the default PeerChecker for setups (tests, single-node
// demos) that never need to simulate an unreachable overlay.
type AlwaysConnected struct{}

func (AlwaysConnected) Connected() bool { return true }

var errOverlayUnreachable = overlayUnreachableError{}

type overlayUnreachableError struct{}

func (overlayUnreachableError) Error() string { return "overlay unreachable" }

var errIllegalArgument = illegalArgumentError{}

type illegalArgumentError struct{ detail string }

func (e illegalArgumentError) Error() string {
	if e.detail == "" {
		return "illegal argument"
	}
	return "illegal argument: " + e.detail
}

var errIllegalFileLocation = illegalFileLocationError{}

type illegalFileLocationError struct{ detail string }

func (e illegalFileLocationError) Error() string {
	if e.detail == "" {
		return "illegal file location"
	}
	return "illegal file location: " + e.detail
}

var errFileNotFound = fileNotFoundError{}

type fileNotFoundError struct{}

func (fileNotFoundError) Error() string { return "file not found" }

// FileManager is the façade (spec §6): every operation method validates its
// preconditions synchronously, then builds, wraps, and starts a pipeline.
type FileManager struct {
	Sess    *session.Session
	Factory *pipeline.Factory
	Peers   PeerChecker

	// Concurrency bounds each started pipeline's own WorkerPool (spec §5); a
	// FileManager never shares one pool across unrelated operations so one
	// failing pipeline can't cancel another's work.
	Concurrency int
}

// New builds a FileManager over sess that assembles its pipelines with
// factory. peers may be nil, in which case NoPeerConnection is never raised.
func New(sess *session.Session, factory *pipeline.Factory, peers PeerChecker) *FileManager {
	if peers == nil {
		peers = AlwaysConnected{}
	}
	return &FileManager{Sess: sess, Factory: factory, Peers: peers, Concurrency: 1}
}

func (fm *FileManager) preconditions() error {
	if err := session.RequireSession(fm.Sess); err != nil {
		return err
	}
	if !fm.Peers.Connected() {
		return h2h.NewError(h2h.NoPeerConnection, errOverlayUnreachable, "")
	}
	return nil
}

func (fm *FileManager) lookupIndex(ctx context.Context, path string) (profile.Index, bool, error) {
	prof, err := fm.Sess.ProfileManager.Get(ctx)
	if err != nil {
		return profile.Index{}, false, err
	}
	idx, ok := prof.Lookup(dht.NewKey160(path))
	return idx, ok, nil
}

func (fm *FileManager) startAsync(ctx context.Context, comp process.ProcessComponent) (*process.AsyncWrapper, error) {
	pool := process.NewWorkerPool(ctx, fm.Concurrency)
	wrapper := process.NewAsyncWrapper(comp, pool)
	if err := wrapper.Start(ctx); err != nil {
		return nil, err
	}
	return wrapper, nil
}

// Add assembles and starts add(path) (spec §4.4), rejecting any path that
// is not a strict prefix-child of the session root (spec §6, P8).
func (fm *FileManager) Add(ctx context.Context, path string) (*process.AsyncWrapper, error) {
	if err := fm.preconditions(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, h2h.NewError(h2h.IllegalArgument, errIllegalArgument, path)
	}
	if !fm.Sess.IsPrefixChild(path) {
		return nil, h2h.NewError(h2h.IllegalFileLocation, errIllegalFileLocation, path)
	}
	comp, err := fm.Factory.BuildAdd(path)
	if err != nil {
		return nil, err
	}
	return fm.startAsync(ctx, comp)
}

// Update assembles and starts update(path, payload) (spec §4.4), rejecting
// folders and unknown paths (spec §6, P8).
func (fm *FileManager) Update(ctx context.Context, path string, payload []byte) (*process.AsyncWrapper, error) {
	if err := fm.preconditions(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, h2h.NewError(h2h.IllegalArgument, errIllegalArgument, path)
	}
	if !fm.Sess.IsPrefixChild(path) {
		return nil, h2h.NewError(h2h.IllegalFileLocation, errIllegalFileLocation, path)
	}
	idx, ok, err := fm.lookupIndex(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, h2h.NewError(h2h.FileNotFound, errFileNotFound, path)
	}
	if idx.IsFolder {
		return nil, h2h.NewError(h2h.IllegalArgument, illegalArgumentError{"update target is a folder"}, path)
	}
	comp, err := fm.Factory.BuildUpdate(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	return fm.startAsync(ctx, comp)
}

// Move assembles and starts move(src,dst) (spec §4.4).
func (fm *FileManager) Move(ctx context.Context, src, dst string) (*process.AsyncWrapper, error) {
	if err := fm.preconditions(); err != nil {
		return nil, err
	}
	if src == "" || dst == "" {
		return nil, h2h.NewError(h2h.IllegalArgument, errIllegalArgument, fmt.Sprintf("%s -> %s", src, dst))
	}
	if !fm.Sess.IsPrefixChild(src) || !fm.Sess.IsPrefixChild(dst) {
		return nil, h2h.NewError(h2h.IllegalFileLocation, errIllegalFileLocation, fmt.Sprintf("%s -> %s", src, dst))
	}
	if _, ok, err := fm.lookupIndex(ctx, src); err != nil {
		return nil, err
	} else if !ok {
		return nil, h2h.NewError(h2h.FileNotFound, errFileNotFound, src)
	}
	comp, err := fm.Factory.BuildMove(ctx, src, dst)
	if err != nil {
		return nil, err
	}
	return fm.startAsync(ctx, comp)
}

// Delete assembles and starts delete(path) (spec §4.4).
func (fm *FileManager) Delete(ctx context.Context, path string) (*process.AsyncWrapper, error) {
	if err := fm.preconditions(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, h2h.NewError(h2h.IllegalArgument, errIllegalArgument, path)
	}
	if !fm.Sess.IsPrefixChild(path) {
		return nil, h2h.NewError(h2h.IllegalFileLocation, errIllegalFileLocation, path)
	}
	if _, ok, err := fm.lookupIndex(ctx, path); err != nil {
		return nil, err
	} else if !ok {
		return nil, h2h.NewError(h2h.FileNotFound, errFileNotFound, path)
	}
	comp, err := fm.Factory.BuildDelete(ctx, path)
	if err != nil {
		return nil, err
	}
	return fm.startAsync(ctx, comp)
}

// Recover assembles and starts recover(path, selector) (spec §4.4),
// rejecting folders and non-existent files (spec §6, P8).
func (fm *FileManager) Recover(ctx context.Context, path string, selector dht.VersionSelector) (*process.AsyncWrapper, error) {
	if err := fm.preconditions(); err != nil {
		return nil, err
	}
	if path == "" || selector == nil {
		return nil, h2h.NewError(h2h.IllegalArgument, errIllegalArgument, path)
	}
	idx, ok, err := fm.lookupIndex(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, h2h.NewError(h2h.FileNotFound, errFileNotFound, path)
	}
	if idx.IsFolder {
		return nil, h2h.NewError(h2h.IllegalArgument, illegalArgumentError{"recover target is a folder"}, path)
	}
	comp, err := fm.Factory.BuildRecover(path, selector)
	if err != nil {
		return nil, err
	}
	return fm.startAsync(ctx, comp)
}

// Share assembles and starts share(folderPath, userID, permission) (spec
// §4.4), rejecting non-folders and the root itself or anything outside it
// (spec §6, P8).
func (fm *FileManager) Share(ctx context.Context, folderPath, userID string, permission pipeline.Permission) (*process.AsyncWrapper, error) {
	if err := fm.preconditions(); err != nil {
		return nil, err
	}
	if folderPath == "" || userID == "" {
		return nil, h2h.NewError(h2h.IllegalArgument, errIllegalArgument, folderPath)
	}
	if fm.Sess.IsRootOrOutside(folderPath) {
		return nil, h2h.NewError(h2h.IllegalFileLocation, errIllegalFileLocation, folderPath)
	}
	idx, ok, err := fm.lookupIndex(ctx, folderPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, h2h.NewError(h2h.FileNotFound, errFileNotFound, folderPath)
	}
	if !idx.IsFolder {
		return nil, h2h.NewError(h2h.IllegalArgument, illegalArgumentError{"share target is not a folder"}, folderPath)
	}
	comp, err := fm.Factory.BuildShare(folderPath, userID, permission)
	if err != nil {
		return nil, err
	}
	return fm.startAsync(ctx, comp)
}

// GetFileList assembles and starts getFileList() (spec §4.4), the one
// result-bearing operation; callers call AwaitResult on the returned
// wrapper to obtain the path list.
func (fm *FileManager) GetFileList(ctx context.Context) (*process.ResultWrapper[[]string], error) {
	if err := fm.preconditions(); err != nil {
		return nil, err
	}
	comp, result := fm.Factory.BuildGetFileList()
	pool := process.NewWorkerPool(ctx, fm.Concurrency)
	rw := process.NewResultWrapper[[]string](comp, pool, result)
	if err := rw.Start(ctx); err != nil {
		return nil, err
	}
	return rw, nil
}
