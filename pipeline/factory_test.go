package pipeline_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/dht/store"
	"github.com/hive2hive/h2h/pipeline"
	"github.com/hive2hive/h2h/process"
	"github.com/hive2hive/h2h/profile"
	"github.com/hive2hive/h2h/recursion"
	"github.com/hive2hive/h2h/session"
)

// fakeFileStatter records IsFolder/ReadFile answers by path, letting tests
// describe a directory tree without touching the real filesystem.
type fakeFileStatter struct {
	folders map[string]bool
	content map[string][]byte
}

func (f fakeFileStatter) IsFolder(path string) (bool, error) { return f.folders[path], nil }

func (f fakeFileStatter) ReadFile(path string) ([]byte, error) {
	if data, ok := f.content[path]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("no content for %s", path)
}

func newTestSession(t *testing.T, root string) *session.Session {
	t.Helper()
	owner, err := dht.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	client := dht.NewClient(store.NewMemoryRegistry(), store.NewMemoryCache(), store.NewMemoryBlobStore())
	pm := profile.NewMemoryManager(profile.NewUserProfile(dht.NewKey160(root)))
	return session.New(root, pm, client, owner)
}

// TestFactoryBuildAddDirectoryPreorder covers spec §8 scenario 3: a
// directory add assembles a SEQUENTIAL composite whose children are in
// preorder (parents before children), one per path.
func TestFactoryBuildAddDirectoryPreorder(t *testing.T) {
	root := "/root"
	sess := newTestSession(t, root)
	paths := []string{"/root/dir", "/root/dir/a.txt", "/root/dir/b.txt"}
	files := fakeFileStatter{
		folders: map[string]bool{"/root/dir": true},
		content: map[string][]byte{"/root/dir/a.txt": []byte("a"), "/root/dir/b.txt": []byte("b")},
	}
	factory := pipeline.NewFactory(sess, recursion.StaticPlanner{Paths: paths}, files)

	comp, err := factory.BuildAdd("/root/dir")
	if err != nil {
		t.Fatalf("BuildAdd: %v", err)
	}
	composite, ok := comp.(*process.Composite)
	if !ok {
		t.Fatalf("BuildAdd returned %T, want *process.Composite", comp)
	}
	children := composite.Children()
	if len(children) != len(paths) {
		t.Fatalf("len(children) = %d, want %d", len(children), len(paths))
	}

	if err := composite.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if composite.GetState() != process.Succeeded {
		t.Fatalf("composite state = %v, want Succeeded", composite.GetState())
	}

	prof, err := sess.ProfileManager.Get(context.Background())
	if err != nil {
		t.Fatalf("profile Get: %v", err)
	}
	gotPaths := prof.Paths()
	if len(gotPaths) != len(paths) {
		t.Fatalf("profile has %d paths, want %d: %v", len(gotPaths), len(paths), gotPaths)
	}
	// A child is linked under its parent only if the parent was added first,
	// so the link order shows the steps ran in preorder.
	dirIdx, ok := prof.Lookup(dht.NewKey160("/root/dir"))
	if !ok {
		t.Fatal("profile has no index for /root/dir")
	}
	wantA, wantB := dht.NewKey160("/root/dir/a.txt"), dht.NewKey160("/root/dir/b.txt")
	if len(dirIdx.Children) != 2 || dirIdx.Children[0] != wantA || dirIdx.Children[1] != wantB {
		t.Fatalf("/root/dir children = %v, want [a.txt b.txt]", dirIdx.Children)
	}
}

// TestFactoryBuildDeleteDirectoryPostorder covers spec §8 scenario 4: a
// directory delete assembles a SEQUENTIAL composite in postorder (children
// removed before parents) — the reverse of BuildAdd's preorder.
func TestFactoryBuildDeleteDirectoryPostorder(t *testing.T) {
	root := "/root"
	sess := newTestSession(t, root)
	preorder := []string{"/root/dir", "/root/dir/a.txt", "/root/dir/b.txt"}
	files := fakeFileStatter{
		folders: map[string]bool{"/root/dir": true},
		content: map[string][]byte{"/root/dir/a.txt": []byte("a"), "/root/dir/b.txt": []byte("b")},
	}
	factory := pipeline.NewFactory(sess, recursion.StaticPlanner{Paths: preorder}, files)

	addComp, err := factory.BuildAdd("/root/dir")
	if err != nil {
		t.Fatalf("BuildAdd: %v", err)
	}
	if err := addComp.Start(context.Background()); err != nil {
		t.Fatalf("Start add: %v", err)
	}

	delComp, err := factory.BuildDelete(context.Background(), "/root/dir")
	if err != nil {
		t.Fatalf("BuildDelete: %v", err)
	}
	composite, ok := delComp.(*process.Composite)
	if !ok {
		t.Fatalf("BuildDelete returned %T, want *process.Composite", delComp)
	}
	children := composite.Children()
	if len(children) != len(preorder) {
		t.Fatalf("len(children) = %d, want %d", len(children), len(preorder))
	}
	// Postorder deletes /root/dir/b.txt first, while /root/dir is still known.
	var firstDirKnown, firstBKnown bool
	children[0].AttachListener(process.ListenerFuncs{OnSucceededFn: func() {
		p, err := sess.ProfileManager.Get(context.Background())
		if err != nil {
			return
		}
		_, firstDirKnown = p.Lookup(dht.NewKey160("/root/dir"))
		_, firstBKnown = p.Lookup(dht.NewKey160("/root/dir/b.txt"))
	}})

	if err := composite.Start(context.Background()); err != nil {
		t.Fatalf("Start delete: %v", err)
	}
	if !firstDirKnown || firstBKnown {
		t.Fatalf("after first delete step: dir known = %v, b.txt known = %v, want true, false", firstDirKnown, firstBKnown)
	}
	if composite.GetState() != process.Succeeded {
		t.Fatalf("composite state = %v, want Succeeded", composite.GetState())
	}

	prof, err := sess.ProfileManager.Get(context.Background())
	if err != nil {
		t.Fatalf("profile Get: %v", err)
	}
	if len(prof.Paths()) != 0 {
		t.Fatalf("expected empty profile after delete, got %v", prof.Paths())
	}
}

// TestFactoryBuildUpdateUsesLatestVersion covers update(path) picking up the
// most recently stored version as its prior version.
func TestFactoryBuildUpdateUsesLatestVersion(t *testing.T) {
	root := "/root"
	sess := newTestSession(t, root)
	files := fakeFileStatter{content: map[string][]byte{"/root/a.txt": []byte("v1")}}
	factory := pipeline.NewFactory(sess, recursion.StaticPlanner{}, files)

	addComp, err := factory.BuildAdd("/root/a.txt")
	if err != nil {
		t.Fatalf("BuildAdd: %v", err)
	}
	if err := addComp.Start(context.Background()); err != nil {
		t.Fatalf("Start add: %v", err)
	}

	updateComp, err := factory.BuildUpdate(context.Background(), "/root/a.txt", []byte("v2"))
	if err != nil {
		t.Fatalf("BuildUpdate: %v", err)
	}
	if err := updateComp.Start(context.Background()); err != nil {
		t.Fatalf("Start update: %v", err)
	}
	if updateComp.(*process.Component).GetState() != process.Succeeded {
		t.Fatalf("update state = %v, want Succeeded", updateComp.(*process.Component).GetState())
	}

	versions, err := sess.DHT.ListVersions(context.Background(), dht.NewKey160(root), dht.NewKey160("h2h:domain:files"), dht.NewKey160("/root/a.txt"))
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("len(versions) = %d, want 2", len(versions))
	}
	var added, updated dht.StoredMeta
	for _, v := range versions {
		if v.BasedOn.IsZero() {
			added = v
		} else {
			updated = v
		}
	}
	if updated.BasedOn != added.Version {
		t.Fatalf("update basedOn = %s, want the added version %s", updated.BasedOn, added.Version)
	}
}
