package store_test

import (
	"context"
	"testing"

	"github.com/hive2hive/h2h/dht/store"
)

// Smoke test against a local minio instance on the default port, mirroring
// the teacher's aws_s3/connect.go Connect target. No caching front, so this
// exercises the plain S3 path end to end.
func TestS3BlobStorePutGetDelete(t *testing.T) {
	client := store.ConnectS3(store.S3Config{
		HostEndpointURL: "http://127.0.0.1:9000",
		Region:          "us-east-1",
		Username:        "minioadmin",
		Password:        "minioadmin",
	})
	s := store.NewS3BlobStore(client, "h2h-test", nil)
	ctx := context.Background()

	payload := []byte("blob store payload")
	if err := s.Put(ctx, "k1", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}

	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "k1"); err == nil {
		t.Fatal("expected Get to fail after Delete")
	}
}
