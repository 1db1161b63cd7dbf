// Command h2hd is a standalone demo daemon, grounded on the teacher's
// flag-driven tools/data_browser command: it wires a FileManager around
// in-memory DHT backends and a local file root, then serves it over HTTP.
package main

import (
	"flag"
	"fmt"
	log "log/slog"
	"os"
	"strings"

	"github.com/gocql/gocql"
	"github.com/redis/go-redis/v9"

	"github.com/hive2hive/h2h"
	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/dht/store"
	"github.com/hive2hive/h2h/facade"
	"github.com/hive2hive/h2h/facade/rest"
	"github.com/hive2hive/h2h/pipeline"
	"github.com/hive2hive/h2h/profile"
	"github.com/hive2hive/h2h/recursion"
	"github.com/hive2hive/h2h/session"
)

// Version is set at build time via -ldflags, matching the teacher's
// tools/data_browser convention.
var Version = "dev"

func main() {
	var (
		addr        string
		root        string
		showVersion bool

		registryBackend string
		cassandraHosts  string
		cassandraKeysp  string

		cacheBackend string
		redisAddr    string

		blobBackend string
		s3Endpoint  string
		s3Region    string
		s3Bucket    string
		s3AccessKey string
		s3SecretKey string
	)
	flag.StringVar(&addr, "addr", "localhost:8080", "address to serve the REST facade on")
	flag.StringVar(&root, "root", ".", "local session root directory")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")

	flag.StringVar(&registryBackend, "registry", "memory", "dht registry backend: memory|cassandra")
	flag.StringVar(&cassandraHosts, "cassandra-hosts", "127.0.0.1", "comma-separated cassandra cluster hosts")
	flag.StringVar(&cassandraKeysp, "cassandra-keyspace", "h2h", "cassandra keyspace")

	flag.StringVar(&cacheBackend, "cache", "memory", "dht cache backend: memory|redis|none")
	flag.StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address")

	flag.StringVar(&blobBackend, "blob", "memory", "dht blob backend: memory|s3")
	flag.StringVar(&s3Endpoint, "s3-endpoint", "", "s3/minio endpoint override, e.g. http://127.0.0.1:9000")
	flag.StringVar(&s3Region, "s3-region", "us-east-1", "s3 region")
	flag.StringVar(&s3Bucket, "s3-bucket", "h2h-blobs", "s3 bucket name")
	flag.StringVar(&s3AccessKey, "s3-access-key", "", "s3 access key")
	flag.StringVar(&s3SecretKey, "s3-secret-key", "", "s3 secret key")
	flag.Parse()

	if showVersion {
		fmt.Printf("h2hd v%s\n", Version)
		os.Exit(0)
	}

	h2h.ConfigureLogging()

	owner, err := dht.GenerateKeyPair()
	if err != nil {
		log.Error("generate owner keypair", "error", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(registryBackend, cassandraHosts, cassandraKeysp)
	if err != nil {
		log.Error("build dht registry", "backend", registryBackend, "error", err)
		os.Exit(1)
	}
	cache := buildCache(cacheBackend, redisAddr)
	blobs, err := buildBlobStore(blobBackend, s3Config{
		endpoint:  s3Endpoint,
		region:    s3Region,
		bucket:    s3Bucket,
		accessKey: s3AccessKey,
		secretKey: s3SecretKey,
	}, redisAddr, cacheBackend == "redis")
	if err != nil {
		log.Error("build dht blob store", "backend", blobBackend, "error", err)
		os.Exit(1)
	}
	client := dht.NewClient(registry, cache, blobs)

	rootKey := dht.NewKey160(root)
	profileManager := profile.NewMemoryManager(profile.NewUserProfile(rootKey))
	sess := session.New(root, profileManager, client, owner)

	factory := pipeline.NewFactory(sess, recursion.NewWalkPlanner(), pipeline.OSFileStatter{})
	fm := facade.New(sess, factory, facade.AlwaysConnected{})

	srv := rest.NewServer(fm)
	log.Info("h2hd starting", "version", Version, "addr", addr, "root", root,
		"registry", registryBackend, "cache", cacheBackend, "blob", blobBackend)
	if err := srv.Run(addr); err != nil {
		log.Error("h2hd exited", "error", err)
		os.Exit(1)
	}
}

// buildRegistry selects the dht.Registry backend, grounded on the teacher's
// cassandrafactory.go-style backend-name switch.
func buildRegistry(backend, hosts, keyspace string) (dht.Registry, error) {
	switch backend {
	case "", "memory":
		return store.NewMemoryRegistry(), nil
	case "cassandra":
		return store.OpenCassandraRegistry(store.CassandraConfig{
			ClusterHosts: strings.Split(hosts, ","),
			Keyspace:     keyspace,
			Consistency:  gocql.LocalQuorum,
		})
	default:
		return nil, fmt.Errorf("unknown registry backend %q", backend)
	}
}

// buildCache selects the dht.Cache backend; "none" disables caching
// entirely (dht.Client tolerates a nil cache).
func buildCache(backend, redisAddr string) dht.Cache {
	switch backend {
	case "redis":
		return store.NewRedisCache(store.RedisOptions{Address: redisAddr})
	case "none":
		return nil
	default:
		return store.NewMemoryCache()
	}
}

type s3Config struct {
	endpoint, region, bucket, accessKey, secretKey string
}

// buildBlobStore selects the dht.BlobStore backend. When both the blob and
// cache backends are s3/redis, the S3BlobStore fronts its reads with its
// own redis client at the cache's address (spec §4.6's domain stack,
// teacher's aws_s3 cached bucket pattern).
func buildBlobStore(backend string, cfg s3Config, redisAddr string, frontWithRedis bool) (dht.BlobStore, error) {
	switch backend {
	case "", "memory":
		return store.NewMemoryBlobStore(), nil
	case "s3":
		client := store.ConnectS3(store.S3Config{
			HostEndpointURL: cfg.endpoint,
			Region:          cfg.region,
			Username:        cfg.accessKey,
			Password:        cfg.secretKey,
		})
		var cache *redis.Client
		if frontWithRedis {
			cache = redis.NewClient(&redis.Options{Addr: redisAddr})
		}
		return store.NewS3BlobStore(client, cfg.bucket, cache), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", backend)
	}
}
