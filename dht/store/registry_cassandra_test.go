package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/dht/store"
)

// Smoke test against a local Cassandra cluster, mirroring the teacher's
// in_cas_s3/cassandra/store_test.go direct-connect style (no live-service
// skip logic): OpenCassandraRegistry auto-creates the keyspace/table.
func TestCassandraRegistryPutGetListVersions(t *testing.T) {
	r, err := store.OpenCassandraRegistry(store.CassandraConfig{ClusterHosts: []string{"127.0.0.1"}})
	if err != nil {
		t.Fatalf("OpenCassandraRegistry: %v", err)
	}
	ctx := context.Background()

	loc, domain, content := dht.NewKey160("loc"), dht.NewKey160("domain"), dht.NewKey160("content")
	v1 := dht.NewKey160("v1")
	meta := dht.StoredMeta{
		Version:        v1,
		BasedOn:        dht.ZeroVersion,
		TTL:            time.Hour,
		StoredAt:       time.Now(),
		Signature:      []byte("sig-1"),
		ProtectedEntry: true,
		BlobKey:        "blob-1",
	}
	if err := r.Put(ctx, loc, domain, content, meta); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := r.Get(ctx, loc, domain, content, v1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || got.BlobKey != meta.BlobKey {
		t.Fatalf("Get = (%+v, %v), want blobKey %q", got, ok, meta.BlobKey)
	}

	versions, err := r.ListVersions(ctx, loc, domain, content)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("ListVersions = %d entries, want 1", len(versions))
	}

	if err := r.Delete(ctx, loc, domain, content, v1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := r.Get(ctx, loc, domain, content, v1); err != nil || ok {
		t.Fatalf("Get after delete = ok=%v err=%v, want ok=false", ok, err)
	}
}

func TestCassandraRegistryTransferOwnerIsAllOrNothing(t *testing.T) {
	r, err := store.OpenCassandraRegistry(store.CassandraConfig{ClusterHosts: []string{"127.0.0.1"}, Table: "dht_entry_transfer"})
	if err != nil {
		t.Fatalf("OpenCassandraRegistry: %v", err)
	}
	ctx := context.Background()
	loc, domain, content := dht.NewKey160("loc2"), dht.NewKey160("domain2"), dht.NewKey160("content2")

	owner, err := dht.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	newOwner, err := dht.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	for i, v := range []string{"v1", "v2"} {
		if err := r.Put(ctx, loc, domain, content, dht.StoredMeta{
			Version: dht.NewKey160(v), TTL: time.Hour, StoredAt: time.Now(),
			Owner: owner.Public, BlobKey: "blob", ProtectedEntry: true,
		}); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}

	cert := owner.SignTransfer(newOwner.Public)
	if err := r.TransferOwner(ctx, loc, domain, content, cert); err != nil {
		t.Fatalf("TransferOwner: %v", err)
	}

	versions, err := r.ListVersions(ctx, loc, domain, content)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	for _, v := range versions {
		if !v.Owner.Equal(newOwner.Public) {
			t.Fatalf("version %s owner = %x, want rebound to new owner", v.Version, v.Owner)
		}
		if !v.TransferChain.VerifiesTo(owner.Public, newOwner.Public) {
			t.Fatalf("version %s transfer chain does not bridge old owner to new owner", v.Version)
		}
	}
}
