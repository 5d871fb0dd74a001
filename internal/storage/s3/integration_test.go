//go:build integration

package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/askduck/askduck/internal/storage"
)

func TestStoreRoundTripAgainstMinIO(t *testing.T) {
	endpoint := envOr("ASKDUCK_TEST_S3_ENDPOINT", "")
	if endpoint == "" {
		t.Skip("ASKDUCK_TEST_S3_ENDPOINT is not set")
	}

	cfg := Config{
		Endpoint:         endpoint,
		Region:           envOr("ASKDUCK_TEST_S3_REGION", "us-east-1"),
		Bucket:           envOr("ASKDUCK_TEST_S3_BUCKET", "askduck-it"),
		AccessKeyID:      envOr("ASKDUCK_TEST_S3_ACCESS_KEY", "minio"),
		SecretAccessKey:  envOr("ASKDUCK_TEST_S3_SECRET_KEY", "miniostorage"),
		UseSSL:           false,
		Prefix:           "integration-tests",
		AutoCreateBucket: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	store, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	payload := []byte("id,name\n1,alice\n")
	if _, err := store.Put(ctx, storage.UploadObjectKey, bytes.NewReader(payload), int64(len(payload)), "text/csv"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	stat, err := store.Stat(ctx, storage.UploadObjectKey)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if stat.Size != int64(len(payload)) {
		t.Fatalf("Stat().Size = %d, want %d", stat.Size, len(payload))
	}

	reader, err := store.Get(ctx, storage.UploadObjectKey)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("round trip mismatch: %q", data)
	}

	if _, err := store.Get(ctx, "uploads/never-written.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
