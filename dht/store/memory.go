// Package store holds concrete Registry/Cache/BlobStore backends for
// dht.Client: in-memory implementations for tests and the demo command, and
// the production backends (Cassandra registry, Redis cache, S3 blobs,
// Reed-Solomon replication) grounded on the teacher's corresponding
// packages (see DESIGN.md).
package store

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/hive2hive/h2h/dht"
)

// MemoryRegistry is an in-process dht.Registry, used by tests and the demo
// command in place of the Cassandra-backed production registry.
type MemoryRegistry struct {
	mu   sync.Mutex
	data map[string]map[string]dht.StoredMeta // tupleKey(loc,domain,content) -> versionHex -> meta
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{data: make(map[string]map[string]dht.StoredMeta)}
}

func tupleKey(loc, domain, content dht.Key160) string {
	return loc.String() + "/" + domain.String() + "/" + content.String()
}

func (r *MemoryRegistry) Put(ctx context.Context, loc, domain, content dht.Key160, meta dht.StoredMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tupleKey(loc, domain, content)
	versions, ok := r.data[key]
	if !ok {
		versions = make(map[string]dht.StoredMeta)
		r.data[key] = versions
	}
	versions[meta.Version.String()] = meta
	return nil
}

func (r *MemoryRegistry) Get(ctx context.Context, loc, domain, content, version dht.Key160) (dht.StoredMeta, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions, ok := r.data[tupleKey(loc, domain, content)]
	if !ok {
		return dht.StoredMeta{}, false, nil
	}
	meta, ok := versions[version.String()]
	return meta, ok, nil
}

func (r *MemoryRegistry) ListVersions(ctx context.Context, loc, domain, content dht.Key160) ([]dht.StoredMeta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := r.data[tupleKey(loc, domain, content)]
	out := make([]dht.StoredMeta, 0, len(versions))
	for _, m := range versions {
		out = append(out, m)
	}
	return out, nil
}

func (r *MemoryRegistry) Delete(ctx context.Context, loc, domain, content, version dht.Key160) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions, ok := r.data[tupleKey(loc, domain, content)]
	if !ok {
		return nil
	}
	delete(versions, version.String())
	return nil
}

func (r *MemoryRegistry) DeleteRange(ctx context.Context, loc, domain, content dht.Key160, from, to dht.Key160) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions, ok := r.data[tupleKey(loc, domain, content)]
	if !ok {
		return nil
	}
	for hex, meta := range versions {
		if bytes.Compare(meta.Version[:], from[:]) >= 0 && bytes.Compare(meta.Version[:], to[:]) < 0 {
			delete(versions, hex)
		}
	}
	return nil
}

func (r *MemoryRegistry) TransferOwner(ctx context.Context, loc, domain, content dht.Key160, cert dht.TransferCertificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions, ok := r.data[tupleKey(loc, domain, content)]
	if !ok {
		return nil
	}
	// Rebind every version in one critical section: either all succeed or,
	// since nothing here can fail mid-way, none do (spec §4.6 rule 4).
	// Appending cert, rather than overwriting Owner alone, keeps each
	// version's original payload signature bridgeable to the new owner.
	for hex, meta := range versions {
		meta.Owner = cert.To
		meta.TransferChain = append(append(dht.TransferChain(nil), meta.TransferChain...), cert)
		versions[hex] = meta
	}
	return nil
}

// MemoryBlobStore is an in-process dht.BlobStore.
type MemoryBlobStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryBlobStore creates an empty MemoryBlobStore.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{data: make(map[string][]byte)}
}

func (b *MemoryBlobStore) Put(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := append([]byte(nil), data...)
	b.data[key] = cp
	return nil
}

func (b *MemoryBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return nil, errKeyNotFound(key)
	}
	return append([]byte(nil), v...), nil
}

func (b *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

type keyNotFoundError string

func (e keyNotFoundError) Error() string { return "store: key not found: " + string(e) }

func errKeyNotFound(key string) error { return keyNotFoundError(key) }

// MemoryCache is an in-process dht.Cache, used by tests where a real Redis
// instance is not available. It never errors on miss, matching the
// tolerant-of-cache-miss contract every Cache implementation must honor.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]dht.StoredMeta
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]dht.StoredMeta)}
}

func (c *MemoryCache) GetMeta(ctx context.Context, key string) (dht.StoredMeta, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.data[key]
	return m, ok, nil
}

func (c *MemoryCache) SetMeta(ctx context.Context, key string, meta dht.StoredMeta, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = meta
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}
