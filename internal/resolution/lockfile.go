package resolution

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
)

// Lockfile is the resolved, pinned, checksummed output of a Resolve run
// (spec §6). Its Digest is a SHA-256 over a canonical serialization of
// Packages, so two resolutions that pin identical versions always produce
// identical digests, regardless of map iteration order, ResolvedAt, or an
// unrelated publish elsewhere in the catalog (spec §8 scenario 6).
type Lockfile struct {
	Version    int                         `json:"version"`
	ResolvedAt string                      `json:"resolved_at"`
	Packages   map[string]LockfilePackage  `json:"packages"`
	Digest     string                      `json:"digest"`
}

// LockfilePackage is one pinned entry's resolved record.
type LockfilePackage struct {
	Org             string           `json:"org"`
	Slug            string           `json:"slug"`
	InternalVersion string           `json:"internal_version"`
	ExternalVersion string           `json:"external_version"`
	Files           []LockfileFile   `json:"files"`
}

// LockfileFile is one artifact attached to a pinned version.
type LockfileFile struct {
	Format   string `json:"format"`
	BlobKey  string `json:"blob_url"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// buildLockfile assembles a Lockfile from a fully-pinned resolution.
// ResolvedAt is stamped by the caller (Resolve) after buildLockfile
// returns, and deliberately excluded from the digest: two resolutions
// differing only in wall-clock time still pin identical packages and must
// produce identical digests (spec §8 scenario 6).
func (r *Resolver) buildLockfile(m *Manifest, pins map[string]*pinned, order []string) (*Lockfile, error) {
	packages := make(map[string]LockfilePackage, len(pins))
	for _, key := range order {
		p := pins[key]
		files, err := r.DB.ListVersionFiles(p.version.ID)
		if err != nil {
			return nil, err
		}
		lfFiles := make([]LockfileFile, 0, len(files))
		for _, f := range files {
			lfFiles = append(lfFiles, LockfileFile{
				Format:   f.Format,
				BlobKey:  f.BlobKey,
				Checksum: f.Checksum,
				Size:     f.SizeBytes,
			})
		}
		packages[key] = LockfilePackage{
			Org:             p.org.Slug,
			Slug:            p.entry.Slug,
			InternalVersion: p.version.String(),
			ExternalVersion: p.version.ExternalVersion,
			Files:           lfFiles,
		}
	}

	digest, err := canonicalDigest(packages)
	if err != nil {
		return nil, err
	}

	return &Lockfile{
		Version:  1,
		Packages: packages,
		Digest:   digest,
	}, nil
}

// canonicalDigest serializes packages with sorted map keys and sorted file
// lists so the resulting bytes - and therefore the digest - depend only on
// which versions were pinned, never on map/slice iteration order.
func canonicalDigest(packages map[string]LockfilePackage) (string, error) {
	keys := make([]string, 0, len(packages))
	for k := range packages {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type canonicalEntry struct {
		Key     string          `json:"key"`
		Package LockfilePackage `json:"package"`
	}
	entries := make([]canonicalEntry, 0, len(keys))
	for _, k := range keys {
		pkg := packages[k]
		sort.Slice(pkg.Files, func(i, j int) bool {
			if pkg.Files[i].Format != pkg.Files[j].Format {
				return pkg.Files[i].Format < pkg.Files[j].Format
			}
			return pkg.Files[i].BlobKey < pkg.Files[j].BlobKey
		})
		entries = append(entries, canonicalEntry{Key: k, Package: pkg})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return "", bdperrors.WrapKind("resolution.canonicalDigest", bdperrors.KindInternal, "marshal canonical packages", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
