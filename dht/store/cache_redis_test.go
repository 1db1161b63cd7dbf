package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/dht/store"
)

// Smoke test against a local redis instance, mirroring the teacher's
// cache/redis_test.go direct-connect style (no live-service skip logic).
func TestRedisCacheSetGetDelete(t *testing.T) {
	c := store.NewRedisCache(store.DefaultRedisOptions())
	ctx := context.Background()

	meta := dht.StoredMeta{
		Version:        dht.NewKey160("v1"),
		BasedOn:        dht.ZeroVersion,
		TTL:            time.Minute,
		StoredAt:       time.Unix(1700000000, 0),
		Signature:      []byte("sig"),
		ProtectedEntry: true,
		BlobKey:        "blob-1",
	}

	if err := c.SetMeta(ctx, "tuple-1", meta, time.Minute); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}

	got, ok, err := c.GetMeta(ctx, "tuple-1")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if !ok {
		t.Fatal("GetMeta: expected a hit after SetMeta")
	}
	if got.BlobKey != meta.BlobKey || got.ProtectedEntry != meta.ProtectedEntry {
		t.Fatalf("GetMeta = %+v, want %+v", got, meta)
	}

	if err := c.Delete(ctx, "tuple-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, err = c.GetMeta(ctx, "tuple-1")
	if err != nil {
		t.Fatalf("GetMeta after delete: %v", err)
	}
	if ok {
		t.Fatal("GetMeta: expected a miss after Delete")
	}
}

func TestRedisCacheMissIsNotAnError(t *testing.T) {
	c := store.NewRedisCache(store.DefaultRedisOptions())
	_, ok, err := c.GetMeta(context.Background(), "never-set")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if ok {
		t.Fatal("expected a miss for a key that was never set")
	}
}
