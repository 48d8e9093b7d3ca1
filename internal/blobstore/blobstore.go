// Package blobstore implements the Blob Store Adapter (C1): a small
// key-addressed object store abstraction (objects live under named path
// keys, see IngestKey and RecordKey) over either an
// S3-compatible bucket or the local filesystem, used for both upstream raw
// ingestion artifacts and permanent per-record artifacts (spec §3, §6).
package blobstore

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored blob without its content.
type ObjectInfo struct {
	Key          string
	SizeBytes    int64
	ChecksumSHA256 string
	LastModified time.Time
}

// Store is the Blob Store Adapter contract: put/get/exists/delete/
// presigned_read/list/copy, unchanged from spec §4.1.
type Store interface {
	// Put streams r into key, returning the SHA-256 hex digest computed
	// incrementally over the stream (never buffered whole in memory).
	Put(ctx context.Context, key string, r io.Reader, size int64) (checksum string, err error)

	// Get opens key for streaming read. Callers must Close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// PresignedRead returns a time-limited URL for direct read access.
	PresignedRead(ctx context.Context, key string, expires time.Duration) (string, error)

	// List returns every object whose key has the given prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Copy duplicates src to dst without a local round-trip where the
	// backend supports it.
	Copy(ctx context.Context, src, dst string) error
}

// Key namespaces, spec §6.
const (
	// IngestKeyFormat: ingest/{org}/{external_version}/{filename} — raw
	// upstream artifacts, retained for re-verification and audit.
	ingestPrefix = "ingest"
)

// IngestKey builds the raw-artifact key for an upstream download.
func IngestKey(org, externalVersion, filename string) string {
	return ingestPrefix + "/" + org + "/" + externalVersion + "/" + filename
}

// RecordKey builds the permanent per-record artifact key:
// {source_type}/{entry_slug}/{internal_version}/{filename}.{format}.
func RecordKey(sourceType, entrySlug, internalVersion, filename, format string) string {
	return sourceType + "/" + entrySlug + "/" + internalVersion + "/" + filename + "." + format
}
