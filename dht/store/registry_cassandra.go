package store

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"time"

	"github.com/gocql/gocql"

	"github.com/hive2hive/h2h/dht"
)

// encodeTransferChain/decodeTransferChain marshal a dht.TransferChain to the
// JSON blob persisted in the transfer_chain column; gocql has no native
// column type for a variable-length slice of certificates.
func encodeTransferChain(chain dht.TransferChain) ([]byte, error) {
	if len(chain) == 0 {
		return nil, nil
	}
	return json.Marshal(chain)
}

func decodeTransferChain(data []byte) (dht.TransferChain, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var chain dht.TransferChain
	if err := json.Unmarshal(data, &chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// CassandraRegistry is the production dht.Registry backend, grounded on the
// teacher's cassandra/registry.go: one keyspace, prepared per-table
// statements, gocql.UUID-style fixed-width marshalling (here, 160-bit keys
// stored as blobs rather than UUIDs).
type CassandraRegistry struct {
	session  *gocql.Session
	keyspace string
	table    string
}

// CassandraConfig mirrors the teacher's cassandra.Config shape, trimmed to
// what the registry needs.
type CassandraConfig struct {
	ClusterHosts      []string
	Keyspace          string
	Table             string
	Consistency       gocql.Consistency
	ConnectionTimeout time.Duration
}

// OpenCassandraRegistry opens (or creates) the keyspace/table and returns a
// CassandraRegistry, following the teacher's OpenConnection auto-create-table
// pattern.
func OpenCassandraRegistry(cfg CassandraConfig) (*CassandraRegistry, error) {
	if cfg.Keyspace == "" {
		cfg.Keyspace = "h2h"
	}
	if cfg.Table == "" {
		cfg.Table = "dht_entry"
	}
	if cfg.Consistency == gocql.Any {
		cfg.Consistency = gocql.LocalQuorum
	}
	cluster := gocql.NewCluster(cfg.ClusterHosts...)
	cluster.Consistency = cfg.Consistency
	if cfg.ConnectionTimeout > 0 {
		cluster.ConnectTimeout = cfg.ConnectionTimeout
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("cassandra registry: create session: %w", err)
	}
	if err := session.Query(fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = {'class':'SimpleStrategy', 'replication_factor':1};",
		cfg.Keyspace)).Exec(); err != nil {
		return nil, fmt.Errorf("cassandra registry: create keyspace: %w", err)
	}
	if err := session.Query(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s.%s (
			loc blob, domain blob, content blob, version blob, based_on blob,
			ttl_ns bigint, stored_at bigint, signature blob, protected boolean,
			owner blob, signed_by blob, transfer_chain blob, blob_key text,
			PRIMARY KEY ((loc, domain, content), version));`,
		cfg.Keyspace, cfg.Table)).Exec(); err != nil {
		return nil, fmt.Errorf("cassandra registry: create table: %w", err)
	}
	return &CassandraRegistry{session: session, keyspace: cfg.Keyspace, table: cfg.Table}, nil
}

func (r *CassandraRegistry) Put(ctx context.Context, loc, domain, content dht.Key160, meta dht.StoredMeta) error {
	chainBytes, err := encodeTransferChain(meta.TransferChain)
	if err != nil {
		return fmt.Errorf("cassandra registry put: encode transfer chain: %w", err)
	}
	q := fmt.Sprintf(
		`INSERT INTO %s.%s (loc, domain, content, version, based_on, ttl_ns, stored_at, signature, protected, owner, signed_by, transfer_chain, blob_key)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?);`, r.keyspace, r.table)
	err = r.session.Query(q,
		loc[:], domain[:], content[:], meta.Version[:], meta.BasedOn[:],
		int64(meta.TTL), meta.StoredAt.UnixNano(), meta.Signature, meta.ProtectedEntry,
		meta.Owner[:], meta.SignedBy[:], chainBytes, meta.BlobKey,
	).WithContext(ctx).Exec()
	if err != nil {
		log.Error("cassandra registry put failed", "error", err)
	}
	return err
}

func (r *CassandraRegistry) Get(ctx context.Context, loc, domain, content, version dht.Key160) (dht.StoredMeta, bool, error) {
	q := fmt.Sprintf(
		`SELECT based_on, ttl_ns, stored_at, signature, protected, owner, signed_by, transfer_chain, blob_key
		 FROM %s.%s WHERE loc=? AND domain=? AND content=? AND version=?;`, r.keyspace, r.table)
	var basedOn, owner, signedBy, sig, chainBytes []byte
	var ttlNs, storedAt int64
	var protected bool
	var blobKey string
	err := r.session.Query(q, loc[:], domain[:], content[:], version[:]).WithContext(ctx).
		Scan(&basedOn, &ttlNs, &storedAt, &sig, &protected, &owner, &signedBy, &chainBytes, &blobKey)
	if err == gocql.ErrNotFound {
		return dht.StoredMeta{}, false, nil
	}
	if err != nil {
		return dht.StoredMeta{}, false, err
	}
	chain, err := decodeTransferChain(chainBytes)
	if err != nil {
		return dht.StoredMeta{}, false, fmt.Errorf("cassandra registry get: decode transfer chain: %w", err)
	}
	meta := dht.StoredMeta{
		Version:        version,
		TTL:            time.Duration(ttlNs),
		StoredAt:       time.Unix(0, storedAt),
		Signature:      sig,
		ProtectedEntry: protected,
		TransferChain:  chain,
		BlobKey:        blobKey,
	}
	copy(meta.BasedOn[:], basedOn)
	copy(meta.Owner[:], owner)
	copy(meta.SignedBy[:], signedBy)
	return meta, true, nil
}

func (r *CassandraRegistry) ListVersions(ctx context.Context, loc, domain, content dht.Key160) ([]dht.StoredMeta, error) {
	q := fmt.Sprintf(
		`SELECT version, based_on, ttl_ns, stored_at, signature, protected, owner, signed_by, transfer_chain, blob_key
		 FROM %s.%s WHERE loc=? AND domain=? AND content=?;`, r.keyspace, r.table)
	iter := r.session.Query(q, loc[:], domain[:], content[:]).WithContext(ctx).Iter()
	var out []dht.StoredMeta
	var version, basedOn, owner, signedBy, sig, chainBytes []byte
	var ttlNs, storedAt int64
	var protected bool
	var blobKey string
	for iter.Scan(&version, &basedOn, &ttlNs, &storedAt, &sig, &protected, &owner, &signedBy, &chainBytes, &blobKey) {
		chain, err := decodeTransferChain(chainBytes)
		if err != nil {
			_ = iter.Close()
			return nil, fmt.Errorf("cassandra registry list versions: decode transfer chain: %w", err)
		}
		meta := dht.StoredMeta{
			TTL:            time.Duration(ttlNs),
			StoredAt:       time.Unix(0, storedAt),
			Signature:      append([]byte(nil), sig...),
			ProtectedEntry: protected,
			TransferChain:  chain,
			BlobKey:        blobKey,
		}
		copy(meta.Version[:], version)
		copy(meta.BasedOn[:], basedOn)
		copy(meta.Owner[:], owner)
		copy(meta.SignedBy[:], signedBy)
		out = append(out, meta)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CassandraRegistry) Delete(ctx context.Context, loc, domain, content, version dht.Key160) error {
	q := fmt.Sprintf(`DELETE FROM %s.%s WHERE loc=? AND domain=? AND content=? AND version=?;`, r.keyspace, r.table)
	return r.session.Query(q, loc[:], domain[:], content[:], version[:]).WithContext(ctx).Exec()
}

// DeleteRange removes every version in the half-open range [from, to). gocql
// has no native "blob between" range delete, so this lists then deletes one
// statement per matching version inside a single logged batch, keeping the
// "atomic in intent" contract (spec §4.6 removeRange).
func (r *CassandraRegistry) DeleteRange(ctx context.Context, loc, domain, content dht.Key160, from, to dht.Key160) error {
	versions, err := r.ListVersions(ctx, loc, domain, content)
	if err != nil {
		return err
	}
	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	stmt := fmt.Sprintf(`DELETE FROM %s.%s WHERE loc=? AND domain=? AND content=? AND version=?;`, r.keyspace, r.table)
	any := false
	for _, v := range versions {
		if betweenHalfOpen(v.Version, from, to) {
			batch.Query(stmt, loc[:], domain[:], content[:], v.Version[:])
			any = true
		}
	}
	if !any {
		return nil
	}
	return r.session.ExecuteBatch(batch)
}

func (r *CassandraRegistry) TransferOwner(ctx context.Context, loc, domain, content dht.Key160, cert dht.TransferCertificate) error {
	versions, err := r.ListVersions(ctx, loc, domain, content)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return nil
	}
	// Logged batch gives the teacher's "all or nothing" update (cassandra/
	// registry.go's Update with allOrNothing=true) so a partial rebind can't
	// be observed by another reader (spec §4.6 rule 4). Each row's existing
	// transfer_chain is read back and appended to, not overwritten, so the
	// version's original payload signature stays bridgeable to the new owner
	// (spec §8 P7).
	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	stmt := fmt.Sprintf(`UPDATE %s.%s SET owner=?, transfer_chain=? WHERE loc=? AND domain=? AND content=? AND version=?;`, r.keyspace, r.table)
	for _, v := range versions {
		chain := append(append(dht.TransferChain(nil), v.TransferChain...), cert)
		chainBytes, err := encodeTransferChain(chain)
		if err != nil {
			return fmt.Errorf("cassandra registry transfer owner: encode transfer chain: %w", err)
		}
		batch.Query(stmt, cert.To[:], chainBytes, loc[:], domain[:], content[:], v.Version[:])
	}
	return r.session.ExecuteBatch(batch)
}

func betweenHalfOpen(v, from, to dht.Key160) bool {
	return bytesCompare(v[:], from[:]) >= 0 && bytesCompare(v[:], to[:]) < 0
}

func bytesCompare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
