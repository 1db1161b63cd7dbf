package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	log "log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
)

// S3Config mirrors the teacher's aws_s3.Config shape (HostEndpointUrl so the
// same code path also targets a minio endpoint in local/dev setups).
type S3Config struct {
	HostEndpointURL string
	Region          string
	Username        string
	Password        string
	Bucket          string
}

// ConnectS3 builds an s3.Client from cfg, grounded directly on the teacher's
// aws_s3/connect.go Connect.
func ConnectS3(cfg S3Config) *s3.Client {
	return s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
		if cfg.HostEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.HostEndpointURL)
		}
		if cfg.Username != "" || cfg.Password != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.Username, cfg.Password, "")
		}
	})
}

// S3BlobStore is the production dht.BlobStore backend for payload bytes,
// grounded on the teacher's aws_s3/cached_bucket.go: a plain S3 bucket store
// fronted by a small Redis cache for cacheable-size objects, with the cache
// entirely a latency optimization (misses and cache failures always fall
// through to S3).
type S3BlobStore struct {
	client           *s3.Client
	bucket           string
	cache            *redis.Client
	cacheExpiry      time.Duration
	maxCacheableSize int
}

// NewS3BlobStore wraps an s3.Client for bucket and fronts reads with cache
// (which may be nil to disable caching, matching the teacher's pattern of
// tolerating a cache-less deployment).
func NewS3BlobStore(client *s3.Client, bucket string, cache *redis.Client) *S3BlobStore {
	return &S3BlobStore{
		client:           client,
		bucket:           bucket,
		cache:            cache,
		cacheExpiry:      2 * time.Hour,
		maxCacheableSize: 500 * 1024 * 1024,
	}
}

func (s *S3BlobStore) cacheKey(key string) string { return "s3blob:" + s.bucket + ":" + key }

func (s *S3BlobStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	if s.cache != nil && len(data) <= s.maxCacheableSize {
		if err := s.cache.Set(ctx, s.cacheKey(key), data, s.cacheExpiry).Err(); err != nil {
			log.Warn("s3 blob store redis cache write failed", "key", key, "error", err)
		}
	}
	return nil
}

func (s *S3BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, s.cacheKey(key)).Bytes(); err == nil {
			return data, nil
		}
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(data) <= s.maxCacheableSize {
		if err := s.cache.Set(ctx, s.cacheKey(key), data, s.cacheExpiry).Err(); err != nil {
			log.Warn("s3 blob store redis cache write failed", "key", key, "error", err)
		}
	}
	return data, nil
}

func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	if s.cache != nil {
		if err := s.cache.Del(ctx, s.cacheKey(key)).Err(); err != nil {
			log.Warn("s3 blob store redis cache delete failed", "key", key, "error", err)
		}
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object %s: %w", key, err)
	}
	return nil
}
