package dht_test

import (
	"context"
	"testing"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/dht/store"
)

func newTestClient(t *testing.T) (*dht.Client, dht.KeyPair) {
	t.Helper()
	owner, err := dht.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	client := dht.NewClient(store.NewMemoryRegistry(), store.NewMemoryCache(), store.NewMemoryBlobStore())
	return client, owner
}

func tuple() (loc, domain, content dht.Key160) {
	return dht.NewKey160("loc"), dht.NewKey160("domain"), dht.NewKey160("content")
}

func TestClientPutGetRoundTrip(t *testing.T) {
	client, owner := newTestClient(t)
	loc, domain, content := tuple()
	ctx := context.Background()

	version := dht.NewKey160("v1")
	if _, err := client.Put(ctx, loc, domain, content, version, dht.ZeroVersion, []byte("hello"), owner).Wait(ctx); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entry, err := client.Get(ctx, loc, domain, content, version, owner.Public).Wait(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(entry.Payload) != "hello" {
		t.Fatalf("payload = %q, want %q", entry.Payload, "hello")
	}
	if !entry.Verify() {
		t.Fatal("entry did not verify under its own owner")
	}
}

func TestClientPutRejectsWrongOwner(t *testing.T) {
	client, owner := newTestClient(t)
	other, err := dht.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	loc, domain, content := tuple()
	ctx := context.Background()

	if _, err := client.Put(ctx, loc, domain, content, dht.NewKey160("v1"), dht.ZeroVersion, []byte("a"), owner).Wait(ctx); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := client.Put(ctx, loc, domain, content, dht.NewKey160("v2"), dht.ZeroVersion, []byte("b"), other).Wait(ctx); err == nil {
		t.Fatal("expected put from a different owner to be rejected")
	}
}

// Open Question 1 (DESIGN.md): remove without a matching owner keypair on a
// protected entry must fail, not silently succeed.
func TestClientRemoveRequiresOwner(t *testing.T) {
	client, owner := newTestClient(t)
	other, err := dht.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	loc, domain, content := tuple()
	ctx := context.Background()
	version := dht.NewKey160("v1")

	if _, err := client.Put(ctx, loc, domain, content, version, dht.ZeroVersion, []byte("a"), owner).Wait(ctx); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := client.Remove(ctx, loc, domain, content, version, other).Wait(ctx); err == nil {
		t.Fatal("expected remove from a different owner to fail")
	}
	if _, err := client.Get(ctx, loc, domain, content, version, owner.Public).Wait(ctx); err != nil {
		t.Fatalf("entry should still exist after rejected remove: %v", err)
	}
	if _, err := client.Remove(ctx, loc, domain, content, version, owner).Wait(ctx); err != nil {
		t.Fatalf("Remove by owner: %v", err)
	}
}

func TestClientRemoveRange(t *testing.T) {
	client, owner := newTestClient(t)
	loc, domain, content := tuple()
	ctx := context.Background()

	versions := []string{"v1", "v2", "v3"}
	for _, v := range versions {
		if _, err := client.Put(ctx, loc, domain, content, dht.NewKey160(v), dht.ZeroVersion, []byte(v), owner).Wait(ctx); err != nil {
			t.Fatalf("Put %s: %v", v, err)
		}
	}

	all, err := client.ListVersions(ctx, loc, domain, content)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}

	var top dht.Key160
	for i := range top {
		top[i] = 0xff
	}
	n, err := client.RemoveRange(ctx, loc, domain, content, dht.ZeroVersion, top, owner).Wait(ctx)
	if err != nil {
		t.Fatalf("RemoveRange: %v", err)
	}
	if n != 3 {
		t.Fatalf("RemoveRange removed %d, want 3", n)
	}
	left, err := client.ListVersions(ctx, loc, domain, content)
	if err != nil {
		t.Fatalf("ListVersions after RemoveRange: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("len(left) = %d, want 0", len(left))
	}
}

func TestClientTransferProtection(t *testing.T) {
	client, owner := newTestClient(t)
	newOwner, err := dht.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	loc, domain, content := tuple()
	ctx := context.Background()
	version := dht.NewKey160("v1")

	if _, err := client.Put(ctx, loc, domain, content, version, dht.ZeroVersion, []byte("a"), owner).Wait(ctx); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := client.TransferProtection(ctx, loc, domain, content, owner, newOwner.Public).Wait(ctx); err != nil {
		t.Fatalf("TransferProtection: %v", err)
	}

	// P7: the version was signed by the old owner, but must still verify
	// post-transfer under the new owner via the delegation chain — the
	// stored payload signature is never rewritten.
	got, err := client.Get(ctx, loc, domain, content, version, newOwner.Public).Wait(ctx)
	if err != nil {
		t.Fatalf("Get after transfer: %v", err)
	}
	if !got.Verify() {
		t.Fatal("entry does not verify under new owner after transfer")
	}
	if !got.Owner.Equal(newOwner.Public) {
		t.Fatalf("entry owner = %x, want new owner", got.Owner)
	}
	if got.Verify() && got.SignedBy.Equal(got.Owner) {
		t.Fatal("expected SignedBy (old owner) to differ from Owner (new owner) after transfer")
	}

	if _, err := client.Remove(ctx, loc, domain, content, version, owner).Wait(ctx); err == nil {
		t.Fatal("expected old owner to no longer be able to remove after transfer")
	}
	if _, err := client.Remove(ctx, loc, domain, content, version, newOwner).Wait(ctx); err != nil {
		t.Fatalf("new owner should be able to remove after transfer: %v", err)
	}
}

func TestListVersionsEmptyTuple(t *testing.T) {
	client, _ := newTestClient(t)
	loc, domain, content := tuple()
	versions, err := client.ListVersions(context.Background(), loc, domain, content)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("len(versions) = %d, want 0", len(versions))
	}
}
