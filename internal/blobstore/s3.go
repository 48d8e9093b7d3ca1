package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store is an S3-compatible implementation of Store backed by
// minio-go/v7, selected because its client surface maps directly onto the
// BLOB_* environment variables without inventing a bespoke protocol.
type S3Store struct {
	client *minio.Client
	bucket string
}

// S3Config carries the BLOB_* settings needed to dial an S3-compatible
// endpoint.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	PathStyle bool
	UseTLS    bool
}

// NewS3Store dials an S3-compatible endpoint and ensures the target bucket
// exists.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseTLS,
		Region:       cfg.Region,
		BucketLookup: lookupStyle(cfg.PathStyle),
	})
	if err != nil {
		return nil, bdperrors.WrapKind("blobstore.NewS3Store", bdperrors.KindInternal, "create s3 client", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, bdperrors.WrapKind("blobstore.NewS3Store", bdperrors.KindTransient, "check bucket", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, bdperrors.WrapKind("blobstore.NewS3Store", bdperrors.KindTransient, "create bucket", err)
		}
	}

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func lookupStyle(pathStyle bool) minio.BucketLookupType {
	if pathStyle {
		return minio.BucketLookupPath
	}
	return minio.BucketLookupDNS
}

// Put streams r into key. The SHA-256 digest is computed incrementally via
// a TeeReader so the payload is never buffered whole in memory, matching
// the teacher's countingReader streaming idiom.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	hasher := sha256.New()
	tee := io.TeeReader(r, hasher)

	_, err := s.client.PutObject(ctx, s.bucket, key, tee, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", bdperrors.WrapKind("blobstore.Put", classifyS3Error(err), "put object "+key, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Get opens key for streaming read.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, bdperrors.WrapKind("blobstore.Get", classifyS3Error(err), "get object "+key, err)
	}
	// minio's GetObject is lazy: force a stat so a missing key surfaces
	// here rather than on first Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, bdperrors.WrapKind("blobstore.Get", classifyS3Error(err), "stat object "+key, err)
	}
	return obj, nil
}

// Exists reports whether key is present.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, bdperrors.WrapKind("blobstore.Exists", classifyS3Error(err), "stat object "+key, err)
	}
	return true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return bdperrors.WrapKind("blobstore.Delete", classifyS3Error(err), "delete object "+key, err)
	}
	return nil
}

// PresignedRead returns a time-limited GET URL using the client's native
// presigned-GET support.
func (s *S3Store) PresignedRead(ctx context.Context, key string, expires time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expires, nil)
	if err != nil {
		return "", bdperrors.WrapKind("blobstore.PresignedRead", bdperrors.KindInternal, "presign object "+key, err)
	}
	return u.String(), nil
}

// List returns every object whose key has the given prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, bdperrors.WrapKind("blobstore.List", classifyS3Error(obj.Err), "list prefix "+prefix, obj.Err)
		}
		out = append(out, ObjectInfo{
			Key:          obj.Key,
			SizeBytes:    obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

// Copy duplicates src to dst server-side.
func (s *S3Store) Copy(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: s.bucket, Object: src})
	if err != nil {
		return bdperrors.WrapKind("blobstore.Copy", classifyS3Error(err), "copy "+src+" -> "+dst, err)
	}
	return nil
}

// classifyS3Error maps an S3 error response onto the registry's error
// taxonomy so callers can branch on Kind rather than provider-specific codes.
func classifyS3Error(err error) bdperrors.Kind {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return bdperrors.KindNotFound
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return bdperrors.KindConflict
	case "SlowDown", "RequestTimeout", "":
		return bdperrors.KindTransient
	default:
		return bdperrors.KindUpstream
	}
}
