package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/askduck/askduck/internal/storage"
)

type fakeClient struct {
	objects map[string][]byte
	buckets map[string]bool
	created []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, buckets: map[string]bool{}}
}

func (f *fakeClient) Put(_ context.Context, bucket, key string, reader io.Reader, _ int64, _ string) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.objects[bucket+"/"+key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeClient) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeClient) Stat(_ context.Context, bucket, key string) (storage.ObjectInfo, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeClient) BucketExists(_ context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeClient) CreateBucket(_ context.Context, bucket, _ string) error {
	f.buckets[bucket] = true
	f.created = append(f.created, bucket)
	return nil
}

func TestStorePutGetRoundTrip(t *testing.T) {
	client := newFakeClient()
	store, err := NewWithClient("datasets", "askduck", client)
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}

	body := strings.NewReader("id,name\n1,alice\n")
	info, err := store.Put(context.Background(), storage.UploadObjectKey, body, int64(body.Len()), "text/csv")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Key != "askduck/uploads/dataset.csv" {
		t.Fatalf("unexpected stored key %q", info.Key)
	}

	reader, err := store.Get(context.Background(), storage.UploadObjectKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if string(data) != "id,name\n1,alice\n" {
		t.Fatalf("unexpected object body %q", data)
	}
}

func TestStoreGetMissingObject(t *testing.T) {
	store, err := NewWithClient("datasets", "", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}
	if _, err := store.Get(context.Background(), "uploads/missing.csv"); err != storage.ErrObjectNotFound {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if _, err := store.Stat(context.Background(), "uploads/missing.csv"); err != storage.ErrObjectNotFound {
		t.Fatalf("expected ErrObjectNotFound from Stat, got %v", err)
	}
}

func TestStoreRejectsTraversalKeys(t *testing.T) {
	store, err := NewWithClient("datasets", "askduck", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}
	for _, key := range []string{"", "   ", "../secrets", "uploads/../../etc/passwd"} {
		if _, err := store.Stat(context.Background(), key); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestStorePrefixOptional(t *testing.T) {
	client := newFakeClient()
	store, err := NewWithClient("datasets", "", client)
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}
	if _, err := store.Put(context.Background(), "uploads/dataset.csv", strings.NewReader("x"), 1, "text/csv"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := client.objects["datasets/uploads/dataset.csv"]; !ok {
		t.Fatalf("object stored under unexpected key: %v", client.objects)
	}
}

func TestNewWithClientValidation(t *testing.T) {
	if _, err := NewWithClient("", "p", newFakeClient()); err == nil {
		t.Fatal("expected error for empty bucket")
	}
	if _, err := NewWithClient("b", "p", nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
