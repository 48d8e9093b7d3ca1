package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	bdperrors "github.com/nishad/bdp/internal/errors"
)

// LocalStore is a filesystem-backed implementation of Store, used for
// single-node operation and tests — selected the way the teacher's
// internal/search picks a backend via a small factory (NewFromConfig).
type LocalStore struct {
	root string
}

// NewLocalStore roots a LocalStore at dir, creating it if necessary.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, bdperrors.WrapKind("blobstore.NewLocalStore", bdperrors.KindInternal, "create root dir", err)
	}
	return &LocalStore{root: dir}, nil
}

func (l *LocalStore) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

// Put streams r into key, computing its SHA-256 digest incrementally.
func (l *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	dst := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", bdperrors.WrapKind("blobstore.Put", bdperrors.KindInternal, "create parent dir", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", bdperrors.WrapKind("blobstore.Put", bdperrors.KindInternal, "create file "+key, err)
	}
	defer f.Close()

	hasher := sha256.New()
	tee := io.TeeReader(r, hasher)
	if _, err := io.Copy(f, tee); err != nil {
		return "", bdperrors.WrapKind("blobstore.Put", bdperrors.KindTransient, "write file "+key, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Get opens key for streaming read.
func (l *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, bdperrors.WrapKind("blobstore.Get", bdperrors.KindNotFound, "object "+key, err)
		}
		return nil, bdperrors.WrapKind("blobstore.Get", bdperrors.KindInternal, "open file "+key, err)
	}
	return f, nil
}

// Exists reports whether key is present.
func (l *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(l.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, bdperrors.WrapKind("blobstore.Exists", bdperrors.KindInternal, "stat file "+key, err)
}

// Delete removes key. Deleting a missing key is not an error.
func (l *LocalStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil && !os.IsNotExist(err) {
		return bdperrors.WrapKind("blobstore.Delete", bdperrors.KindInternal, "remove file "+key, err)
	}
	return nil
}

// PresignedRead has no meaningful signed-URL concept on a local filesystem;
// it returns a file:// URI, sufficient for single-node operation and tests.
func (l *LocalStore) PresignedRead(ctx context.Context, key string, expires time.Duration) (string, error) {
	exists, err := l.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", bdperrors.E("blobstore.PresignedRead", bdperrors.KindNotFound, "object "+key)
	}
	return "file://" + l.path(key), nil
}

// List returns every object whose key has the given prefix.
func (l *LocalStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	root := l.path(prefix)
	var out []ObjectInfo

	walkRoot := root
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		// prefix may not be a directory boundary; walk the parent and
		// filter by string prefix instead.
		walkRoot = l.root
	}

	err := filepath.WalkDir(walkRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{Key: key, SizeBytes: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, bdperrors.WrapKind("blobstore.List", bdperrors.KindInternal, "walk prefix "+prefix, err)
	}
	return out, nil
}

// Copy duplicates src to dst.
func (l *LocalStore) Copy(ctx context.Context, src, dst string) error {
	r, err := l.Get(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()

	if _, err := l.Put(ctx, dst, r, -1); err != nil {
		return err
	}
	return nil
}
