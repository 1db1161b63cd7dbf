package dht

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	log "log/slog"
	"time"

	"github.com/hive2hive/h2h"
	"github.com/sethvargo/go-retry"
)

var (
	errNotOwner         = errors.New("dht: caller is not the owner")
	errNoSuchEntry      = errors.New("dht: no such entry")
	errOwnerMismatch    = errors.New("dht: stored owner does not match expected owner")
	errSignatureInvalid = errors.New("dht: entry signature verification failed")
)

// retryable wraps err so h2h.Retry's underlying Fibonacci backoff actually
// retries it; go-retry treats a plain error as permanent by default.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	if h2h.ShouldRetry(err) {
		return retry.RetryableError(err)
	}
	return err
}

// Client is the ProtectedEntryClient (spec §4.6): a typed façade over the
// DHT with sign-on-put, verify-on-get, version-key lineage, and protection
// transfer. Every operation is asynchronous, returning a Future.
type Client struct {
	registry Registry
	cache    Cache
	blobs    BlobStore

	DefaultTTL time.Duration
}

// NewClient wires a Client around its three backends. cache may be nil, in
// which case the client reads straight from the registry.
func NewClient(registry Registry, cache Cache, blobs BlobStore) *Client {
	return &Client{registry: registry, cache: cache, blobs: blobs, DefaultTTL: 24 * time.Hour}
}

func randomBlobKey() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return Key160(sha1Sum(buf)).String()
}

// sha1Sum is a tiny indirection so the blob-key generator doesn't need its
// own import cycle concerns; NewKey160 already covers the real hashing path.
func sha1Sum(b []byte) [20]byte {
	var out [20]byte
	key := NewKey160(string(b))
	copy(out[:], key[:])
	return out
}

func (c *Client) readMeta(ctx context.Context, loc, domain, content, version Key160) (StoredMeta, bool, error) {
	key := cacheKey(loc, domain, content, version)
	if c.cache != nil {
		if meta, ok, err := c.cache.GetMeta(ctx, key); err == nil && ok {
			return meta, true, nil
		} else if err != nil {
			log.Warn("dht cache read failed, falling back to registry", "key", key, "error", err)
		}
	}
	meta, ok, err := c.registry.Get(ctx, loc, domain, content, version)
	if err != nil || !ok {
		return meta, ok, err
	}
	if c.cache != nil {
		if err := c.cache.SetMeta(ctx, key, meta, c.DefaultTTL); err != nil {
			log.Warn("dht cache write failed", "key", key, "error", err)
		}
	}
	return meta, true, nil
}

// Put signs payload with ownerKeyPair and writes a new version at the tuple
// (spec §4.6). version defaults to a fresh key derived from the payload and
// basedOn when the zero key is passed. Success requires either no existing
// entry at the tuple, or that the existing owner matches ownerKeyPair.Public
// and the new signature verifies.
func (c *Client) Put(ctx context.Context, loc, domain, content, version, basedOn Key160, payload []byte, owner KeyPair) *Future[Entry] {
	future, resolve := newFuture[Entry]()
	go func() {
		var result Entry
		err := h2h.Retry(ctx, func(ctx context.Context) error {
			e, err := c.doPut(ctx, loc, domain, content, version, basedOn, payload, owner)
			if err != nil {
				return retryable(err)
			}
			result = e
			return nil
		}, func(ctx context.Context) {
			log.Error("dht put exhausted retries", "location", loc, "domain", domain, "content", content)
		})
		resolve(result, err)
	}()
	return future
}

func (c *Client) doPut(ctx context.Context, loc, domain, content, version, basedOn Key160, payload []byte, owner KeyPair) (Entry, error) {
	if version.IsZero() {
		version = NewKey160(string(signedPayload(basedOn, payload)))
	}
	existing, err := c.registry.ListVersions(ctx, loc, domain, content)
	if err != nil {
		return Entry{}, err
	}
	for _, v := range existing {
		if !v.Owner.Equal(owner.Public) {
			return Entry{}, h2h.NewError(h2h.IllegalArgument, errNotOwner, loc)
		}
	}

	sig := owner.Sign(basedOn, payload)
	blobKey := randomBlobKey()
	if err := c.blobs.Put(ctx, blobKey, payload); err != nil {
		return Entry{}, err
	}

	meta := StoredMeta{
		Version:        version,
		BasedOn:        basedOn,
		TTL:            c.DefaultTTL,
		StoredAt:       h2h.Now(),
		Signature:      sig,
		ProtectedEntry: true,
		Owner:          owner.Public,
		SignedBy:       owner.Public,
		BlobKey:        blobKey,
	}
	if err := c.registry.Put(ctx, loc, domain, content, meta); err != nil {
		return Entry{}, err
	}
	if c.cache != nil {
		key := cacheKey(loc, domain, content, version)
		if err := c.cache.SetMeta(ctx, key, meta, meta.TTL); err != nil {
			log.Warn("dht cache write after put failed", "key", key, "error", err)
		}
	}
	return Entry{
		Payload:        payload,
		TTL:            meta.TTL,
		BasedOn:        basedOn,
		Signature:      sig,
		ProtectedEntry: true,
		Owner:          owner.Public,
		SignedBy:       owner.Public,
	}, nil
}

// Get retrieves and verifies an entry at the tuple (spec §4.6). If expected
// is non-zero, the caller additionally requires the stored owner to match.
func (c *Client) Get(ctx context.Context, loc, domain, content, version Key160, expected PublicKey) *Future[Entry] {
	future, resolve := newFuture[Entry]()
	go func() {
		var result Entry
		err := h2h.Retry(ctx, func(ctx context.Context) error {
			e, err := c.doGet(ctx, loc, domain, content, version, expected)
			if err != nil {
				return retryable(err)
			}
			result = e
			return nil
		}, func(ctx context.Context) {
			log.Error("dht get exhausted retries", "location", loc, "domain", domain, "content", content)
		})
		resolve(result, err)
	}()
	return future
}

// ListVersions returns every stored version's metadata at the tuple, for
// callers (such as the recover pipeline's version selector) that need to
// enumerate the lineage rather than fetch a single named version.
func (c *Client) ListVersions(ctx context.Context, loc, domain, content Key160) ([]StoredMeta, error) {
	return c.registry.ListVersions(ctx, loc, domain, content)
}

func (c *Client) doGet(ctx context.Context, loc, domain, content, version Key160, expected PublicKey) (Entry, error) {
	meta, ok, err := c.readMeta(ctx, loc, domain, content, version)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, h2h.NewError(h2h.FileNotFound, errNoSuchEntry, loc)
	}
	if !expected.IsZero() && !expected.Equal(meta.Owner) {
		return Entry{}, h2h.NewError(h2h.IllegalArgument, errOwnerMismatch, loc)
	}
	payload, err := c.blobs.Get(ctx, meta.BlobKey)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		Payload:        payload,
		TTL:            meta.TTL,
		BasedOn:        meta.BasedOn,
		Signature:      meta.Signature,
		ProtectedEntry: meta.ProtectedEntry,
		Owner:          meta.Owner,
		SignedBy:       meta.SignedBy,
		TransferChain:  meta.TransferChain,
	}
	if !e.Verify() {
		return Entry{}, h2h.NewError(h2h.InvalidState, errSignatureInvalid, loc)
	}
	return e, nil
}

// Remove deletes one version at the tuple; it succeeds only if owner
// matches the stored owner (spec §4.6).
func (c *Client) Remove(ctx context.Context, loc, domain, content, version Key160, owner KeyPair) *Future[struct{}] {
	future, resolve := newFuture[struct{}]()
	go func() {
		err := h2h.Retry(ctx, func(ctx context.Context) error {
			return retryable(c.doRemove(ctx, loc, domain, content, version, owner))
		}, func(ctx context.Context) {
			log.Error("dht remove exhausted retries", "location", loc, "domain", domain, "content", content)
		})
		resolve(struct{}{}, err)
	}()
	return future
}

func (c *Client) doRemove(ctx context.Context, loc, domain, content, version Key160, owner KeyPair) error {
	meta, ok, err := c.readMeta(ctx, loc, domain, content, version)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if meta.ProtectedEntry && !meta.Owner.Equal(owner.Public) {
		return h2h.NewError(h2h.IllegalArgument, errNotOwner, loc)
	}
	if err := c.registry.Delete(ctx, loc, domain, content, version); err != nil {
		return err
	}
	if err := c.blobs.Delete(ctx, meta.BlobKey); err != nil {
		log.Warn("dht blob delete failed after registry delete", "blobKey", meta.BlobKey, "error", err)
	}
	if c.cache != nil {
		_ = c.cache.Delete(ctx, cacheKey(loc, domain, content, version))
	}
	return nil
}

// RemoveRange deletes every version in [fromVersion, toVersion) at the
// tuple, atomic in intent (spec §4.6). Every affected version must be owned
// by owner; the first mismatch aborts before any deletion happens.
func (c *Client) RemoveRange(ctx context.Context, loc, domain, content, fromVersion, toVersion Key160, owner KeyPair) *Future[int] {
	future, resolve := newFuture[int]()
	go func() {
		var n int
		err := h2h.Retry(ctx, func(ctx context.Context) error {
			count, err := c.doRemoveRange(ctx, loc, domain, content, fromVersion, toVersion, owner)
			n = count
			return retryable(err)
		}, func(ctx context.Context) {
			log.Error("dht removeRange exhausted retries", "location", loc, "domain", domain, "content", content)
		})
		resolve(n, err)
	}()
	return future
}

func (c *Client) doRemoveRange(ctx context.Context, loc, domain, content, fromVersion, toVersion Key160, owner KeyPair) (int, error) {
	versions, err := c.registry.ListVersions(ctx, loc, domain, content)
	if err != nil {
		return 0, err
	}
	affected := 0
	for _, v := range versions {
		if inHalfOpenRange(v.Version, fromVersion, toVersion) {
			if v.ProtectedEntry && !v.Owner.Equal(owner.Public) {
				return 0, h2h.NewError(h2h.IllegalArgument, errNotOwner, loc)
			}
			affected++
		}
	}
	if affected == 0 {
		return 0, nil
	}
	if err := c.registry.DeleteRange(ctx, loc, domain, content, fromVersion, toVersion); err != nil {
		return 0, err
	}
	if c.cache != nil {
		for _, v := range versions {
			if inHalfOpenRange(v.Version, fromVersion, toVersion) {
				_ = c.cache.Delete(ctx, cacheKey(loc, domain, content, v.Version))
			}
		}
	}
	return affected, nil
}

// TransferProtection rebinds every stored version at the tuple from
// currentOwner to newOwner.Public, atomically in intent (spec §4.6 rule 4).
func (c *Client) TransferProtection(ctx context.Context, loc, domain, content Key160, currentOwner KeyPair, newOwner PublicKey) *Future[struct{}] {
	future, resolve := newFuture[struct{}]()
	go func() {
		err := h2h.Retry(ctx, func(ctx context.Context) error {
			return retryable(c.doTransferProtection(ctx, loc, domain, content, currentOwner, newOwner))
		}, func(ctx context.Context) {
			log.Error("dht transferProtection exhausted retries", "location", loc, "domain", domain, "content", content)
		})
		resolve(struct{}{}, err)
	}()
	return future
}

func (c *Client) doTransferProtection(ctx context.Context, loc, domain, content Key160, currentOwner KeyPair, newOwner PublicKey) error {
	versions, err := c.registry.ListVersions(ctx, loc, domain, content)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if !v.Owner.Equal(currentOwner.Public) {
			return h2h.NewError(h2h.IllegalArgument, errNotOwner, loc)
		}
	}
	// currentOwner vouches for newOwner so every already-signed version's
	// TransferChain still bridges to the new owner (spec §8 P7) — rebinding
	// StoredMeta.Owner alone would leave Entry.Verify failing the next Get.
	cert := currentOwner.SignTransfer(newOwner)
	if err := c.registry.TransferOwner(ctx, loc, domain, content, cert); err != nil {
		return err
	}
	if c.cache != nil {
		for _, v := range versions {
			_ = c.cache.Delete(ctx, cacheKey(loc, domain, content, v.Version))
		}
	}
	return nil
}

func inHalfOpenRange(v, from, to Key160) bool {
	return bytes.Compare(v[:], from[:]) >= 0 && bytes.Compare(v[:], to[:]) < 0
}
