package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/process"
	"github.com/hive2hive/h2h/recursion"
	"github.com/hive2hive/h2h/session"
)

// FileStatter is the minimal local-filesystem collaborator the factory
// needs to turn a path into add/delete steps: whether it's a folder, and
// its bytes if not. It is the one piece of the "external collaborators"
// boundary (spec §6) the factory itself touches, kept narrow and
// injectable so tests can supply an in-memory double.
type FileStatter interface {
	IsFolder(path string) (bool, error)
	ReadFile(path string) ([]byte, error)
}

// OSFileStatter is the real, os-backed FileStatter.
type OSFileStatter struct{}

func (OSFileStatter) IsFolder(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (OSFileStatter) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// Factory is the ProcessFactory spec §4.4 describes: it assembles, for each
// user-visible operation, a specific process.Component/Composite wired to
// the session's DHT client and profile manager.
type Factory struct {
	Session *session.Session
	Planner recursion.Planner
	Files   FileStatter
}

// NewFactory builds a Factory over sess, using planner for directory
// recursion and files for local filesystem access.
func NewFactory(sess *session.Session, planner recursion.Planner, files FileStatter) *Factory {
	return &Factory{Session: sess, Planner: planner, Files: files}
}

// BuildAdd assembles add(path) (spec §4.4): a single new-file step for a
// plain file or an empty directory, or a SEQUENTIAL composite of per-path
// new-file steps in preorder (parents before children) for a directory
// with contents.
func (f *Factory) BuildAdd(path string) (process.ProcessComponent, error) {
	isFolder, err := f.Files.IsFolder(path)
	if err != nil {
		return nil, fmt.Errorf("add %s: stat: %w", path, err)
	}
	if !isFolder {
		payload, err := f.Files.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("add %s: read: %w", path, err)
		}
		step := NewNewFileStep(f.Session, path, false, parentKeyOf(path), payload)
		return process.NewComponent(step, "new-file:"+path), nil
	}

	paths, err := f.Planner.Preorder(path)
	if err != nil {
		return nil, fmt.Errorf("add %s: preorder: %w", path, err)
	}
	if len(paths) <= 1 {
		step := NewNewFileStep(f.Session, path, true, parentKeyOf(path), nil)
		return process.NewComponent(step, "new-file:"+path), nil
	}

	comp := process.NewComposite(process.Sequential, "add:"+path)
	for _, p := range paths {
		isDir, err := f.Files.IsFolder(p)
		if err != nil {
			return nil, fmt.Errorf("add %s: stat %s: %w", path, p, err)
		}
		var payload []byte
		if !isDir {
			payload, err = f.Files.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("add %s: read %s: %w", path, p, err)
			}
		}
		step := NewNewFileStep(f.Session, p, isDir, parentKeyOf(p), payload)
		child := process.NewComponent(step, "new-file:"+p)
		if err := comp.AddChild(child); err != nil {
			return nil, err
		}
	}
	return comp, nil
}

// BuildUpdate assembles update(file) (spec §4.4): a single update-file
// step. Rejecting folders is a façade-level precondition (§7, P8).
func (f *Factory) BuildUpdate(ctx context.Context, path string, payload []byte) (process.ProcessComponent, error) {
	prior, _, err := f.latestVersion(ctx, path, domainFiles)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", path, err)
	}
	step := NewUpdateFileStep(f.Session, path, prior, payload)
	return process.NewComponent(step, "update-file:"+path), nil
}

// BuildMove assembles move(src,dst) (spec §4.4): a single move-file step.
func (f *Factory) BuildMove(ctx context.Context, src, dst string) (process.ProcessComponent, error) {
	srcVersion, ok, err := f.latestVersion(ctx, src, domainFiles)
	if err != nil {
		return nil, fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	if !ok {
		return nil, fmt.Errorf("move %s -> %s: source has no known version", src, dst)
	}
	step := NewMoveFileStep(f.Session, src, dst, srcVersion)
	return process.NewComponent(step, "move-file:"+src+"->"+dst), nil
}

// BuildDelete assembles delete(file) (spec §4.4): a single delete-file step
// for a plain file or empty directory, or a SEQUENTIAL composite of
// per-path delete-file steps in postorder (children before parents) for a
// directory with contents.
func (f *Factory) BuildDelete(ctx context.Context, path string) (process.ProcessComponent, error) {
	isFolder, err := f.Files.IsFolder(path)
	if err != nil {
		return nil, fmt.Errorf("delete %s: stat: %w", path, err)
	}
	if !isFolder {
		version, ok, err := f.latestVersion(ctx, path, domainFiles)
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", path, err)
		}
		if !ok {
			return nil, fmt.Errorf("delete %s: no known version", path)
		}
		step := NewDeleteFileStep(f.Session, path, version)
		return process.NewComponent(step, "delete-file:"+path), nil
	}

	paths, err := f.Planner.Postorder(path)
	if err != nil {
		return nil, fmt.Errorf("delete %s: postorder: %w", path, err)
	}
	if len(paths) <= 1 {
		version, _, _ := f.latestVersion(ctx, path, domainFiles)
		step := NewDeleteFileStep(f.Session, path, version)
		return process.NewComponent(step, "delete-file:"+path), nil
	}

	comp := process.NewComposite(process.Sequential, "delete:"+path)
	for _, p := range paths {
		version, _, err := f.latestVersion(ctx, p, domainFiles)
		if err != nil {
			return nil, fmt.Errorf("delete %s: version of %s: %w", path, p, err)
		}
		step := NewDeleteFileStep(f.Session, p, version)
		child := process.NewComponent(step, "delete-file:"+p)
		if err := comp.AddChild(child); err != nil {
			return nil, err
		}
	}
	return comp, nil
}

// BuildRecover assembles recover(file, versionSelector) (spec §4.4): a
// single recover-file step. Rejecting folders and non-existent files is a
// façade-level precondition (§7, P8).
func (f *Factory) BuildRecover(path string, selector dht.VersionSelector) (process.ProcessComponent, error) {
	step := NewRecoverFileStep(f.Session, path, selector)
	return process.NewComponent(step, "recover-file:"+path), nil
}

// BuildShare assembles share(folder, userId, permission) (spec §4.4): a
// single share step. Rejecting non-folders, the root, and out-of-root
// targets is a façade-level precondition (§7, P8).
func (f *Factory) BuildShare(folderPath, userID string, permission Permission) (process.ProcessComponent, error) {
	step := NewShareStep(f.Session, folderPath, userID, permission)
	return process.NewComponent(step, "share:"+folderPath), nil
}

// BuildGetFileList assembles getFileList() (spec §4.4): a result-bearing
// step producing the current list of known paths. Callers wrap the
// returned component and field in a process.ResultWrapper[[]string].
func (f *Factory) BuildGetFileList() (*process.Component, *process.Field[[]string]) {
	step := NewGetFileListStep(f.Session)
	return process.NewComponent(step, "get-file-list"), &step.Result
}

// BuildDownload assembles the download pipeline spec §4.5 describes: a
// SEQUENTIAL composite whose first child is FindInUserProfile, which
// dynamically appends the rest (CreateFolder, or GetMetaDocument +
// DownloadChunks) depending on whether fileKey names a folder or a file.
func (f *Factory) BuildDownload(fileKey dht.Key160) (*process.Composite, *DownloadFileContext) {
	dctx := NewDownloadFileContext(f.Session, fileKey)
	comp := process.NewComposite(process.Sequential, "download:"+fileKey.String())
	find := process.NewComponent(NewFindInUserProfileStep(dctx, comp), "find")
	_ = comp.AddChild(find)
	return comp, dctx
}

func parentKeyOf(path string) dht.Key160 {
	parent := filepath.Dir(path)
	if parent == "." || parent == path {
		return dht.Key160{}
	}
	return dht.NewKey160(parent)
}

// latestVersion returns the most-recently-stored version at (root, path,
// domain), by StoredAt, or ok=false if no version is on record.
func (f *Factory) latestVersion(ctx context.Context, path string, domain dht.Key160) (dht.Key160, bool, error) {
	loc, dom, content := tuple(f.Session.Root, path, domain)
	versions, err := f.Session.DHT.ListVersions(ctx, loc, dom, content)
	if err != nil {
		return dht.Key160{}, false, err
	}
	if len(versions) == 0 {
		return dht.Key160{}, false, nil
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].StoredAt.After(versions[j].StoredAt) })
	return versions[0].Version, true, nil
}
