package catalog

import (
	"database/sql"
	"encoding/json"
	"time"

	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/google/uuid"
)

// InsertOrganization creates a new organization. Organizations are created
// at bootstrap and never destroyed (spec §3).
func (db *DB) InsertOrganization(o *Organization) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	strategy, err := json.Marshal(o.VersioningStrategy)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertOrganization", bdperrors.KindInternal, "marshal versioning strategy", err)
	}

	_, err = db.Exec(`
		INSERT INTO organizations (id, slug, name, versioning_strategy, license, citation_policy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Slug, o.Name, string(strategy), o.License, o.CitationPolicy, o.CreatedAt)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertOrganization", bdperrors.KindConflict, "insert organization", err)
	}
	return nil
}

// GetOrganizationBySlug fetches an organization by its unique slug.
func (db *DB) GetOrganizationBySlug(slug string) (*Organization, error) {
	row := db.QueryRow(`
		SELECT id, slug, name, versioning_strategy, license, citation_policy, created_at
		FROM organizations WHERE slug = ?`, slug)

	var o Organization
	var strategy string
	if err := row.Scan(&o.ID, &o.Slug, &o.Name, &strategy, &o.License, &o.CitationPolicy, &o.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, bdperrors.WrapKind("catalog.GetOrganizationBySlug", bdperrors.KindNotFound, slug, err)
		}
		return nil, bdperrors.WrapKind("catalog.GetOrganizationBySlug", bdperrors.KindInternal, "scan organization", err)
	}
	if err := json.Unmarshal([]byte(strategy), &o.VersioningStrategy); err != nil {
		return nil, bdperrors.WrapKind("catalog.GetOrganizationBySlug", bdperrors.KindInternal, "unmarshal versioning strategy", err)
	}
	return &o, nil
}

// GetOrganizationByID fetches an organization by its primary key, used when
// only an entry's organization_id is in hand (e.g. cascade traversal).
func (db *DB) GetOrganizationByID(id string) (*Organization, error) {
	row := db.QueryRow(`
		SELECT id, slug, name, versioning_strategy, license, citation_policy, created_at
		FROM organizations WHERE id = ?`, id)

	var o Organization
	var strategy string
	if err := row.Scan(&o.ID, &o.Slug, &o.Name, &strategy, &o.License, &o.CitationPolicy, &o.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, bdperrors.WrapKind("catalog.GetOrganizationByID", bdperrors.KindNotFound, id, err)
		}
		return nil, bdperrors.WrapKind("catalog.GetOrganizationByID", bdperrors.KindInternal, "scan organization", err)
	}
	if err := json.Unmarshal([]byte(strategy), &o.VersioningStrategy); err != nil {
		return nil, bdperrors.WrapKind("catalog.GetOrganizationByID", bdperrors.KindInternal, "unmarshal versioning strategy", err)
	}
	return &o, nil
}

// ListOrganizations returns all organizations.
func (db *DB) ListOrganizations() ([]*Organization, error) {
	rows, err := db.Query(`SELECT id, slug, name, versioning_strategy, license, citation_policy, created_at FROM organizations ORDER BY slug`)
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ListOrganizations", bdperrors.KindInternal, "query organizations", err)
	}
	defer rows.Close()

	scanner := bdperrors.NewRowScanner("list_organizations")
	var orgs []*Organization
	for rows.Next() {
		var o Organization
		var strategy string
		if err := rows.Scan(&o.ID, &o.Slug, &o.Name, &strategy, &o.License, &o.CitationPolicy, &o.CreatedAt); err != nil {
			scanner.RecordSkip(err, "organization row")
			continue
		}
		if err := json.Unmarshal([]byte(strategy), &o.VersioningStrategy); err != nil {
			scanner.RecordSkip(err, o.Slug)
			continue
		}
		scanner.RecordScan()
		orgs = append(orgs, &o)
	}
	scanner.Report()
	return orgs, rows.Err()
}
