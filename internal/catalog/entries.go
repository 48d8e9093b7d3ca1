package catalog

import (
	"database/sql"
	"time"

	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/google/uuid"
)

// InsertEntry creates a registry entry. Entries are append-only:
// deprecation is a flag, never a delete.
func (db *DB) InsertEntry(e *RegistryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO registry_entries (id, organization_id, slug, kind, deprecated, superseded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrganizationID, e.Slug, string(e.Kind), boolToInt(e.Deprecated), e.SupersededBy, e.CreatedAt)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertEntry", bdperrors.KindConflict, "insert registry entry", err)
	}
	return nil
}

// GetEntry fetches a registry entry by organization and slug.
func (db *DB) GetEntry(orgID, slug string) (*RegistryEntry, error) {
	row := db.QueryRow(`
		SELECT id, organization_id, slug, kind, deprecated, superseded_by, created_at
		FROM registry_entries WHERE organization_id = ? AND slug = ?`, orgID, slug)
	return scanEntry(row)
}

// GetEntryByID fetches a registry entry by its primary key.
func (db *DB) GetEntryByID(id string) (*RegistryEntry, error) {
	row := db.QueryRow(`
		SELECT id, organization_id, slug, kind, deprecated, superseded_by, created_at
		FROM registry_entries WHERE id = ?`, id)
	return scanEntry(row)
}

// ListEntriesByOrganization returns every entry under an organization,
// deprecated ones included — callers that care (e.g. search's FullSync)
// filter on RegistryEntry.Deprecated themselves.
func (db *DB) ListEntriesByOrganization(orgID string) ([]*RegistryEntry, error) {
	rows, err := db.Query(`
		SELECT id, organization_id, slug, kind, deprecated, superseded_by, created_at
		FROM registry_entries WHERE organization_id = ? ORDER BY slug`, orgID)
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ListEntriesByOrganization", bdperrors.KindInternal, "query entries", err)
	}
	defer rows.Close()

	var out []*RegistryEntry
	for rows.Next() {
		var e RegistryEntry
		var kind string
		var deprecated int
		var superseded sql.NullString
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Slug, &kind, &deprecated, &superseded, &e.CreatedAt); err != nil {
			continue
		}
		e.Kind = EntryKind(kind)
		e.Deprecated = deprecated != 0
		if superseded.Valid {
			e.SupersededBy = &superseded.String
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func scanEntry(row *sql.Row) (*RegistryEntry, error) {
	var e RegistryEntry
	var kind string
	var deprecated int
	var superseded sql.NullString
	if err := row.Scan(&e.ID, &e.OrganizationID, &e.Slug, &kind, &deprecated, &superseded, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, bdperrors.WrapKind("catalog.GetEntry", bdperrors.KindNotFound, "entry", err)
		}
		return nil, bdperrors.WrapKind("catalog.GetEntry", bdperrors.KindInternal, "scan entry", err)
	}
	e.Kind = EntryKind(kind)
	e.Deprecated = deprecated != 0
	if superseded.Valid {
		e.SupersededBy = &superseded.String
	}
	if e.Deprecated {
		return &e, bdperrors.WrapKind("catalog.GetEntry", bdperrors.KindDeprecated, "entry superseded", nil)
	}
	return &e, nil
}

// DeprecateEntry marks an entry deprecated, optionally recording its
// replacement. This never deletes the row.
func (db *DB) DeprecateEntry(entryID string, supersededBy *string) error {
	_, err := db.Exec(`UPDATE registry_entries SET deprecated = 1, superseded_by = ? WHERE id = ?`, supersededBy, entryID)
	if err != nil {
		return bdperrors.WrapKind("catalog.DeprecateEntry", bdperrors.KindInternal, "deprecate entry", err)
	}
	return nil
}

// InsertDataSource attaches source_type specialization data to an entry.
func (db *DB) InsertDataSource(d *DataSource) error {
	_, err := db.Exec(`INSERT INTO data_sources (entry_id, source_type, external_id) VALUES (?, ?, ?)`,
		d.EntryID, string(d.SourceType), d.ExternalID)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertDataSource", bdperrors.KindConflict, "insert data source", err)
	}
	return nil
}

// GetDataSource fetches the source_type specialization for an entry.
func (db *DB) GetDataSource(entryID string) (*DataSource, error) {
	row := db.QueryRow(`SELECT entry_id, source_type, external_id FROM data_sources WHERE entry_id = ?`, entryID)
	var d DataSource
	var sourceType string
	if err := row.Scan(&d.EntryID, &sourceType, &d.ExternalID); err != nil {
		if err == sql.ErrNoRows {
			return nil, bdperrors.WrapKind("catalog.GetDataSource", bdperrors.KindNotFound, entryID, err)
		}
		return nil, bdperrors.WrapKind("catalog.GetDataSource", bdperrors.KindInternal, "scan data source", err)
	}
	d.SourceType = SourceType(sourceType)
	return &d, nil
}

// DependentsOf returns every entry that has a Dependency on the given entry,
// the edge set the Versioning Engine's cascade traverses (spec §4.4.3).
func (db *DB) DependentsOf(entryID string) ([]string, error) {
	rows, err := db.Query(`
		SELECT DISTINCT v.entry_id
		FROM dependencies d
		JOIN versions v ON v.id = d.version_id
		WHERE d.depends_on_entry_id = ?`, entryID)
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.DependentsOf", bdperrors.KindInternal, "query dependents", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
