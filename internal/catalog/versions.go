package catalog

import (
	"database/sql"
	"time"

	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/google/uuid"
)

// InsertVersion creates an immutable Version row. Versions are never
// mutated once committed.
func (db *DB) InsertVersion(v *Version) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO versions (id, entry_id, major, minor, patch, external_version, release_date, size_bytes, dependency_count, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		v.ID, v.EntryID, v.Major, v.Minor, v.ExternalVersion, v.ReleaseDate, v.SizeBytes, v.DependencyCount, v.CreatedAt)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertVersion", bdperrors.KindConflict, "insert version", err)
	}
	return nil
}

// LatestVersion returns the highest (major DESC, minor DESC) version for an
// entry, per spec §3's latest-version lookup rule.
func (db *DB) LatestVersion(entryID string) (*Version, error) {
	row := db.QueryRow(`
		SELECT id, entry_id, major, minor, external_version, release_date, size_bytes, dependency_count, created_at
		FROM versions WHERE entry_id = ? ORDER BY major DESC, minor DESC LIMIT 1`, entryID)
	return scanVersion(row)
}

// GetVersion fetches a specific major.minor version of an entry.
func (db *DB) GetVersion(entryID string, major, minor int) (*Version, error) {
	row := db.QueryRow(`
		SELECT id, entry_id, major, minor, external_version, release_date, size_bytes, dependency_count, created_at
		FROM versions WHERE entry_id = ? AND major = ? AND minor = ?`, entryID, major, minor)
	return scanVersion(row)
}

// GetVersionByID fetches a version by its primary key.
func (db *DB) GetVersionByID(id string) (*Version, error) {
	row := db.QueryRow(`
		SELECT id, entry_id, major, minor, external_version, release_date, size_bytes, dependency_count, created_at
		FROM versions WHERE id = ?`, id)
	return scanVersion(row)
}

// GetVersionByExternal fetches the version carrying a given external_version
// label, used when a resolution spec names the upstream release label
// rather than an internal MAJOR.MINOR (spec §6). Ties (a label re-released
// under more than one internal version, which Non-goals permit upstream to
// do) resolve to the newest internal version carrying it.
func (db *DB) GetVersionByExternal(entryID, externalVersion string) (*Version, error) {
	row := db.QueryRow(`
		SELECT id, entry_id, major, minor, external_version, release_date, size_bytes, dependency_count, created_at
		FROM versions WHERE entry_id = ? AND external_version = ? ORDER BY major DESC, minor DESC LIMIT 1`,
		entryID, externalVersion)
	return scanVersion(row)
}

func scanVersion(row *sql.Row) (*Version, error) {
	var v Version
	if err := row.Scan(&v.ID, &v.EntryID, &v.Major, &v.Minor, &v.ExternalVersion, &v.ReleaseDate, &v.SizeBytes, &v.DependencyCount, &v.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, bdperrors.WrapKind("catalog.GetVersion", bdperrors.KindNotFound, "version", err)
		}
		return nil, bdperrors.WrapKind("catalog.GetVersion", bdperrors.KindInternal, "scan version", err)
	}
	return &v, nil
}

// InsertVersionFile records a per-format artifact for a version.
func (db *DB) InsertVersionFile(f *VersionFile) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := db.Exec(`
		INSERT INTO version_files (id, version_id, format, blob_key, checksum, size_bytes, compression)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.VersionID, f.Format, f.BlobKey, f.Checksum, f.SizeBytes, f.Compression)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertVersionFile", bdperrors.KindConflict, "insert version file", err)
	}
	return nil
}

// ListVersionFiles returns every file recorded for a version.
func (db *DB) ListVersionFiles(versionID string) ([]*VersionFile, error) {
	rows, err := db.Query(`
		SELECT id, version_id, format, blob_key, checksum, size_bytes, compression
		FROM version_files WHERE version_id = ?`, versionID)
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ListVersionFiles", bdperrors.KindInternal, "query version files", err)
	}
	defer rows.Close()

	var out []*VersionFile
	for rows.Next() {
		var f VersionFile
		if err := rows.Scan(&f.ID, &f.VersionID, &f.Format, &f.BlobKey, &f.Checksum, &f.SizeBytes, &f.Compression); err != nil {
			continue
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// InsertDependency pins a version's reference to another entry's exact
// version. (version_id, depends_on_entry_id) is unique.
func (db *DB) InsertDependency(d *Dependency) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := db.Exec(`
		INSERT INTO dependencies (id, version_id, depends_on_entry_id, depends_on_version_id, kind)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.VersionID, d.DependsOnEntryID, d.DependsOnVersionID, string(d.Kind))
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertDependency", bdperrors.KindConflict, "insert dependency", err)
	}
	return nil
}

// ListDependencies returns every dependency pinned by a version.
func (db *DB) ListDependencies(versionID string) ([]*Dependency, error) {
	rows, err := db.Query(`
		SELECT id, version_id, depends_on_entry_id, depends_on_version_id, kind
		FROM dependencies WHERE version_id = ?`, versionID)
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ListDependencies", bdperrors.KindInternal, "query dependencies", err)
	}
	defer rows.Close()

	var out []*Dependency
	for rows.Next() {
		var d Dependency
		var kind string
		if err := rows.Scan(&d.ID, &d.VersionID, &d.DependsOnEntryID, &d.DependsOnVersionID, &kind); err != nil {
			continue
		}
		d.Kind = DependencyKind(kind)
		out = append(out, &d)
	}
	return out, rows.Err()
}
