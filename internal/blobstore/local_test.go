package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
)

func setupLocalStore(t *testing.T) (*LocalStore, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "bdp-blobstore-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	store, err := NewLocalStore(dir)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	return store, func() { os.RemoveAll(dir) }
}

func TestLocalStorePutGet(t *testing.T) {
	store, cleanup := setupLocalStore(t)
	defer cleanup()
	ctx := context.Background()

	content := []byte("sp|P01308|INS_HUMAN Insulin")
	checksum, err := store.Put(ctx, IngestKey("uniprot", "2024_01", "sprot.dat"), bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if checksum == "" {
		t.Error("expected non-empty checksum")
	}

	r, err := store.Get(ctx, IngestKey("uniprot", "2024_01", "sprot.dat"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("got %q, want %q", got, content)
	}
}

func TestLocalStoreExistsAndDelete(t *testing.T) {
	store, cleanup := setupLocalStore(t)
	defer cleanup()
	ctx := context.Background()

	key := RecordKey("protein", "swissprot", "1.0", "p01308", "json")
	exists, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected key to not exist yet")
	}

	if _, err := store.Put(ctx, key, bytes.NewReader([]byte("{}")), 2); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err = store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected key to exist after put")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected key to be gone after delete")
	}

	// Deleting an already-missing key is not an error.
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("Delete of missing key should be a no-op, got %v", err)
	}
}

func TestLocalStoreGetMissing(t *testing.T) {
	store, cleanup := setupLocalStore(t)
	defer cleanup()

	_, err := store.Get(context.Background(), "nope/missing.dat")
	if err == nil {
		t.Fatal("expected error for missing key, got nil")
	}
}

func TestLocalStoreListAndCopy(t *testing.T) {
	store, cleanup := setupLocalStore(t)
	defer cleanup()
	ctx := context.Background()

	keys := []string{
		RecordKey("protein", "swissprot", "1.0", "p01308", "json"),
		RecordKey("protein", "swissprot", "1.0", "p02768", "json"),
		RecordKey("taxonomy", "ncbi-taxonomy", "1.0", "9606", "json"),
	}
	for _, k := range keys {
		if _, err := store.Put(ctx, k, bytes.NewReader([]byte("{}")), 2); err != nil {
			t.Fatalf("Put(%s) failed: %v", k, err)
		}
	}

	listed, err := store.List(ctx, "protein/swissprot/1.0/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("got %d objects, want 2", len(listed))
	}

	dst := RecordKey("protein", "swissprot", "1.0", "p01308-copy", "json")
	if err := store.Copy(ctx, keys[0], dst); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	exists, err := store.Exists(ctx, dst)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected copy destination to exist")
	}
}

func TestLocalStorePresignedRead(t *testing.T) {
	store, cleanup := setupLocalStore(t)
	defer cleanup()
	ctx := context.Background()

	key := RecordKey("protein", "swissprot", "1.0", "p01308", "json")
	if _, err := store.Put(ctx, key, bytes.NewReader([]byte("{}")), 2); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	url, err := store.PresignedRead(ctx, key, 0)
	if err != nil {
		t.Fatalf("PresignedRead failed: %v", err)
	}
	if url == "" {
		t.Error("expected non-empty presigned URL")
	}

	if _, err := store.PresignedRead(ctx, "nope/missing.dat", 0); err == nil {
		t.Error("expected error for missing key, got nil")
	}
}
