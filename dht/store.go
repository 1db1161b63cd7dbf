package dht

import (
	"context"
	"time"
)

// StoredMeta is what the Registry persists for one version of one Tuple:
// everything about an Entry except its payload bytes, which live in a
// BlobStore under BlobKey (spec §4.6's ambient blob-storage addition).
type StoredMeta struct {
	Version        Key160
	BasedOn        Key160
	TTL            time.Duration
	StoredAt       time.Time
	Signature      []byte
	ProtectedEntry bool
	Owner          PublicKey
	SignedBy       PublicKey
	TransferChain  TransferChain
	BlobKey        string
}

// Expired reports whether the entry's TTL has elapsed as of now.
func (m StoredMeta) Expired(now time.Time) bool {
	if m.TTL <= 0 {
		return false
	}
	return now.After(m.StoredAt.Add(m.TTL))
}

// Registry stores entry metadata keyed by (location, domain, content,
// version) — the teacher's cassandra/registry.go equivalent, generalized
// from Handle storage to DHT entry metadata storage.
type Registry interface {
	Put(ctx context.Context, loc, domain, content Key160, meta StoredMeta) error
	Get(ctx context.Context, loc, domain, content, version Key160) (StoredMeta, bool, error)
	ListVersions(ctx context.Context, loc, domain, content Key160) ([]StoredMeta, error)
	Delete(ctx context.Context, loc, domain, content, version Key160) error
	// DeleteRange removes every version key in the half-open range
	// [from, to) at the tuple (spec §4.6 removeRange), compared as raw
	// 160-bit values.
	DeleteRange(ctx context.Context, loc, domain, content, from, to Key160) error
	// TransferOwner atomically rebinds every stored version at the tuple to
	// cert.To (spec §4.6 transferProtection rule 4: all or nothing), appending
	// cert to each version's delegation chain so existing payload signatures
	// stay verifiable under the new owner (spec §8 P7).
	TransferOwner(ctx context.Context, loc, domain, content Key160, cert TransferCertificate) error
}

// Cache is a read-through cache-aside layer in front of Registry, grounded
// on the teacher's cache/redis.go SetStruct/GetStruct pattern. A cache miss
// or cache-layer failure is always tolerated by the caller; Cache is a
// latency optimization, never a source of truth.
type Cache interface {
	GetMeta(ctx context.Context, key string) (StoredMeta, bool, error)
	SetMeta(ctx context.Context, key string, meta StoredMeta, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// BlobStore persists opaque payload bytes under an opaque key, grounded on
// the teacher's aws_s3 cached-bucket shape.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// cacheKey builds the read-through cache key for one stored version.
func cacheKey(loc, domain, content, version Key160) string {
	return loc.String() + ":" + domain.String() + ":" + content.String() + ":" + version.String()
}
