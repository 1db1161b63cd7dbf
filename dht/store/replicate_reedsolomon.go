package store

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/hive2hive/h2h/dht"
)

// ErasureConfig mirrors the teacher's sop.ErasureCodingConfig, generalized
// from per-blob-table drive paths to per-shard dht.BlobStore backends: each
// "drive" is one replica store a shard is written to.
type ErasureConfig struct {
	DataShardsCount   int
	ParityShardsCount int
}

// ReplicatedBlobStore erasure-codes a put's payload into data+parity shards
// and distributes them across a fixed set of backing dht.BlobStore replicas,
// grounded on the teacher's fs/erasure/encoder.go (reedsolomon.Encoder.Split
// + Encode) and erasurecodingconfig.go (data/parity shard counts, storage
// locations). This is a bounded durability mechanism over one put's bytes,
// not a replication/consistency engine for the whole overlay (spec.md §1
// non-goal) — see DESIGN.md.
type ReplicatedBlobStore struct {
	cfg      ErasureConfig
	replicas []dht.BlobStore
	encoder  reedsolomon.Encoder
}

// shardHeader precedes each stored shard: the original payload length
// (needed to trim encoder-added padding on reconstruction) followed by an
// md5 checksum of the shard's data, mirroring the teacher's
// Erasure.ComputeShardMetadata layout.
type shardHeader struct {
	dataLen  uint64
	checksum [16]byte
}

const shardHeaderSize = 8 + 16

// NewReplicatedBlobStore builds a ReplicatedBlobStore over replicas, one per
// shard. len(replicas) must equal cfg.DataShardsCount+cfg.ParityShardsCount.
func NewReplicatedBlobStore(cfg ErasureConfig, replicas []dht.BlobStore) (*ReplicatedBlobStore, error) {
	total := cfg.DataShardsCount + cfg.ParityShardsCount
	if total > 256 {
		return nil, fmt.Errorf("sum of data and parity shards cannot exceed 256")
	}
	if len(replicas) != total {
		return nil, fmt.Errorf("replicated blob store: need %d replicas, got %d", total, len(replicas))
	}
	enc, err := reedsolomon.New(cfg.DataShardsCount, cfg.ParityShardsCount)
	if err != nil {
		return nil, err
	}
	return &ReplicatedBlobStore{cfg: cfg, replicas: replicas, encoder: enc}, nil
}

func (rs *ReplicatedBlobStore) Put(ctx context.Context, key string, data []byte) error {
	shards, err := rs.encoder.Split(data)
	if err != nil {
		return fmt.Errorf("erasure split: %w", err)
	}
	if err := rs.encoder.Encode(shards); err != nil {
		return fmt.Errorf("erasure encode: %w", err)
	}
	for i, shard := range shards {
		payload := framShard(uint64(len(data)), shard)
		if err := rs.replicas[i].Put(ctx, key, payload); err != nil {
			return fmt.Errorf("replica %d put: %w", i, err)
		}
	}
	return nil
}

func (rs *ReplicatedBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	shards := make([][]byte, len(rs.replicas))
	var dataLen uint64
	present := 0
	for i, replica := range rs.replicas {
		raw, err := replica.Get(ctx, key)
		if err != nil {
			continue // missing shard; reconstruction may still succeed
		}
		length, shard, ok := unframeShard(raw)
		if !ok {
			continue // corrupted shard header/checksum, treat as missing
		}
		dataLen = length
		shards[i] = shard
		present++
	}
	if present < rs.cfg.DataShardsCount {
		return nil, fmt.Errorf("replicated blob store: only %d/%d shards available for %s, need at least %d",
			present, len(rs.replicas), key, rs.cfg.DataShardsCount)
	}
	if err := rs.encoder.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("erasure reconstruct: %w", err)
	}
	var out []byte
	for _, s := range shards {
		out = append(out, s...)
	}
	if uint64(len(out)) > dataLen {
		out = out[:dataLen]
	}
	return out, nil
}

func (rs *ReplicatedBlobStore) Delete(ctx context.Context, key string) error {
	var lastErr error
	for i, replica := range rs.replicas {
		if err := replica.Delete(ctx, key); err != nil {
			lastErr = fmt.Errorf("replica %d delete: %w", i, err)
		}
	}
	return lastErr
}

func framShard(dataLen uint64, shard []byte) []byte {
	h := shardHeader{dataLen: dataLen, checksum: md5.Sum(shard)}
	out := make([]byte, shardHeaderSize+len(shard))
	binary.BigEndian.PutUint64(out[0:8], h.dataLen)
	copy(out[8:24], h.checksum[:])
	copy(out[24:], shard)
	return out
}

func unframeShard(raw []byte) (uint64, []byte, bool) {
	if len(raw) < shardHeaderSize {
		return 0, nil, false
	}
	dataLen := binary.BigEndian.Uint64(raw[0:8])
	var checksum [16]byte
	copy(checksum[:], raw[8:24])
	shard := raw[24:]
	if md5.Sum(shard) != checksum {
		return 0, nil, false
	}
	return dataLen, shard, true
}
