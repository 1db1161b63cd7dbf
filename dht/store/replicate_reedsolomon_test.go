package store_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/dht/store"
)

func newMemoryReplicas(n int) []dht.BlobStore {
	out := make([]dht.BlobStore, n)
	for i := range out {
		out[i] = store.NewMemoryBlobStore()
	}
	return out
}

func TestReplicatedBlobStoreRoundTrip(t *testing.T) {
	replicas := newMemoryReplicas(5)
	rs, err := store.NewReplicatedBlobStore(store.ErasureConfig{DataShardsCount: 3, ParityShardsCount: 2}, replicas)
	if err != nil {
		t.Fatalf("NewReplicatedBlobStore: %v", err)
	}
	ctx := context.Background()
	payload := []byte("the quick brown fox jumps over the lazy dog")

	if err := rs.Put(ctx, "k1", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := rs.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

// Losing up to ParityShardsCount replicas must still reconstruct the
// original payload (the whole point of erasure coding over plain
// replication, spec.md §1 non-goal notwithstanding — this is durability
// over one put's bytes, not overlay-wide replication).
func TestReplicatedBlobStoreToleratesLostShards(t *testing.T) {
	replicas := newMemoryReplicas(5)
	rs, err := store.NewReplicatedBlobStore(store.ErasureConfig{DataShardsCount: 3, ParityShardsCount: 2}, replicas)
	if err != nil {
		t.Fatalf("NewReplicatedBlobStore: %v", err)
	}
	ctx := context.Background()
	payload := bytes.Repeat([]byte("payload-bytes-"), 100)

	if err := rs.Put(ctx, "k2", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Drop two of the five shards (equal to ParityShardsCount): still
	// reconstructible.
	lost := replicas[1].(*store.MemoryBlobStore)
	lost2 := replicas[3].(*store.MemoryBlobStore)
	if err := lost.Delete(ctx, "k2"); err != nil {
		t.Fatalf("delete shard: %v", err)
	}
	if err := lost2.Delete(ctx, "k2"); err != nil {
		t.Fatalf("delete shard: %v", err)
	}

	got, err := rs.Get(ctx, "k2")
	if err != nil {
		t.Fatalf("Get after losing 2 shards: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestReplicatedBlobStoreFailsBelowDataShardThreshold(t *testing.T) {
	replicas := newMemoryReplicas(5)
	rs, err := store.NewReplicatedBlobStore(store.ErasureConfig{DataShardsCount: 3, ParityShardsCount: 2}, replicas)
	if err != nil {
		t.Fatalf("NewReplicatedBlobStore: %v", err)
	}
	ctx := context.Background()
	if err := rs.Put(ctx, "k3", []byte("short")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Drop three of five shards: below DataShardsCount, reconstruction
	// must fail rather than return corrupted data.
	for _, i := range []int{0, 1, 2} {
		if err := replicas[i].(*store.MemoryBlobStore).Delete(ctx, "k3"); err != nil {
			t.Fatalf("delete shard %d: %v", i, err)
		}
	}
	if _, err := rs.Get(ctx, "k3"); err == nil {
		t.Fatal("expected Get to fail with fewer than DataShardsCount shards available")
	}
}

func TestNewReplicatedBlobStoreRejectsWrongReplicaCount(t *testing.T) {
	if _, err := store.NewReplicatedBlobStore(store.ErasureConfig{DataShardsCount: 3, ParityShardsCount: 2}, newMemoryReplicas(4)); err == nil {
		t.Fatal("expected error when replica count doesn't match data+parity shard count")
	}
}
