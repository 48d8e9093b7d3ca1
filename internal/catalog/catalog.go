// Package catalog provides the SQLite-backed relational store for BDP's
// registry: organizations, registry entries, data sources, versions, version
// files, dependencies, citations/licenses, ingestion jobs, raw files, work
// units, staged records, and changelogs — the entity set of spec §3.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQL database connection.
type DB struct {
	*sql.DB
	path string
}

// GetSQLDB returns the underlying SQL database connection.
func (db *DB) GetSQLDB() *sql.DB {
	return db.DB
}

// Initialize creates and configures the catalog database connection.
func Initialize(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_sync=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 100000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 1073741824",
		"PRAGMA page_size = 32768",
		"PRAGMA wal_checkpoint = PASSIVE",
		"PRAGMA wal_autocheckpoint = 10000",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{DB: db, path: path}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		slug TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		versioning_strategy JSON NOT NULL,
		license TEXT,
		citation_policy TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS registry_entries (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		slug TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('data_source','tool')),
		deprecated INTEGER NOT NULL DEFAULT 0,
		superseded_by TEXT REFERENCES registry_entries(id),
		created_at DATETIME NOT NULL,
		UNIQUE(organization_id, slug)
	);
	CREATE INDEX IF NOT EXISTS idx_entries_org ON registry_entries(organization_id);

	CREATE TABLE IF NOT EXISTS data_sources (
		entry_id TEXT PRIMARY KEY REFERENCES registry_entries(id),
		source_type TEXT NOT NULL CHECK (source_type IN
			('protein','taxonomy','genomic_sequence','go_term','interpro_entry','organism','bundle')),
		external_id TEXT
	);

	CREATE TABLE IF NOT EXISTS versions (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL REFERENCES registry_entries(id),
		major INTEGER NOT NULL,
		minor INTEGER NOT NULL,
		patch INTEGER NOT NULL DEFAULT 0 CHECK (patch = 0),
		external_version TEXT NOT NULL,
		release_date DATETIME NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		dependency_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		UNIQUE(entry_id, major, minor, patch)
	);
	CREATE INDEX IF NOT EXISTS idx_versions_entry ON versions(entry_id, major DESC, minor DESC);

	CREATE TABLE IF NOT EXISTS version_files (
		id TEXT PRIMARY KEY,
		version_id TEXT NOT NULL REFERENCES versions(id),
		format TEXT NOT NULL,
		blob_key TEXT NOT NULL,
		checksum TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		compression TEXT,
		UNIQUE(version_id, format)
	);
	CREATE INDEX IF NOT EXISTS idx_version_files_version ON version_files(version_id);

	CREATE TABLE IF NOT EXISTS dependencies (
		id TEXT PRIMARY KEY,
		version_id TEXT NOT NULL REFERENCES versions(id),
		depends_on_entry_id TEXT NOT NULL REFERENCES registry_entries(id),
		depends_on_version_id TEXT NOT NULL REFERENCES versions(id),
		kind TEXT NOT NULL CHECK (kind IN ('required','optional')),
		UNIQUE(version_id, depends_on_entry_id)
	);
	CREATE INDEX IF NOT EXISTS idx_deps_entry ON dependencies(depends_on_entry_id);
	CREATE INDEX IF NOT EXISTS idx_deps_version ON dependencies(version_id);

	CREATE TABLE IF NOT EXISTS citations (
		id TEXT PRIMARY KEY,
		entry_id TEXT REFERENCES registry_entries(id),
		version_id TEXT REFERENCES versions(id),
		text TEXT NOT NULL,
		url TEXT
	);

	CREATE TABLE IF NOT EXISTS licenses (
		id TEXT PRIMARY KEY,
		entry_id TEXT REFERENCES registry_entries(id),
		version_id TEXT REFERENCES versions(id),
		spdx_id TEXT,
		text TEXT
	);

	CREATE TABLE IF NOT EXISTS ingestion_jobs (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		job_type TEXT NOT NULL,
		external_version TEXT NOT NULL,
		internal_version_id TEXT REFERENCES versions(id),
		status TEXT NOT NULL CHECK (status IN
			('pending','downloading','download_verified','parsing','storing','completed','failed')),
		counters JSON NOT NULL DEFAULT '{}',
		source_metadata JSON,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		completed_at DATETIME,
		UNIQUE(organization_id, job_type, external_version)
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON ingestion_jobs(status);

	CREATE TABLE IF NOT EXISTS raw_files (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL REFERENCES ingestion_jobs(id),
		file_purpose TEXT NOT NULL,
		blob_key TEXT NOT NULL,
		expected_md5 TEXT,
		computed_md5 TEXT,
		verified_md5 TEXT,
		status TEXT NOT NULL CHECK (status IN ('pending','downloaded','verified','failed')),
		UNIQUE(job_id, file_purpose)
	);

	CREATE TABLE IF NOT EXISTS work_units (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL REFERENCES ingestion_jobs(id),
		unit_type TEXT NOT NULL,
		batch_number INTEGER NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending','processing','completed','failed')),
		worker_id TEXT,
		claimed_at DATETIME,
		heartbeat_at DATETIME,
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 3,
		last_error TEXT,
		UNIQUE(job_id, unit_type, batch_number)
	);
	CREATE INDEX IF NOT EXISTS idx_work_units_claimable ON work_units(job_id, status, heartbeat_at);

	CREATE TABLE IF NOT EXISTS staged_records (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL REFERENCES ingestion_jobs(id),
		work_unit_id TEXT NOT NULL REFERENCES work_units(id),
		record_type TEXT NOT NULL,
		record_identifier TEXT NOT NULL,
		record_data JSON NOT NULL,
		content_md5 TEXT NOT NULL,
		sequence_md5 TEXT,
		status TEXT NOT NULL CHECK (status IN ('staged','stored')),
		stored_at DATETIME,
		UNIQUE(job_id, record_identifier)
	);
	CREATE INDEX IF NOT EXISTS idx_staged_records_unit ON staged_records(work_unit_id);

	CREATE TABLE IF NOT EXISTS changelogs (
		id TEXT PRIMARY KEY,
		version_id TEXT NOT NULL UNIQUE REFERENCES versions(id),
		bump_type TEXT NOT NULL CHECK (bump_type IN ('major','minor')),
		entries JSON NOT NULL,
		summary JSON NOT NULL,
		summary_text TEXT NOT NULL,
		triggered_by_version_id TEXT REFERENCES versions(id),
		trigger TEXT NOT NULL CHECK (trigger IN ('upstream_dependency','new_release','manual')),
		created_at DATETIME NOT NULL
	);

	-- Typed tables for committed records, one per source_type, keyed by
	-- record_identifier within an organization (spec §6 record uniqueness).
	CREATE TABLE IF NOT EXISTS proteins (
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		record_identifier TEXT NOT NULL,
		internal_version TEXT NOT NULL,
		data JSON NOT NULL,
		sequence_md5 TEXT,
		PRIMARY KEY (organization_id, record_identifier, internal_version)
	);
	CREATE TABLE IF NOT EXISTS taxonomy_nodes (
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		record_identifier TEXT NOT NULL,
		internal_version TEXT NOT NULL,
		data JSON NOT NULL,
		PRIMARY KEY (organization_id, record_identifier, internal_version)
	);
	CREATE TABLE IF NOT EXISTS genomic_sequences (
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		record_identifier TEXT NOT NULL,
		internal_version TEXT NOT NULL,
		data JSON NOT NULL,
		sequence_md5 TEXT,
		PRIMARY KEY (organization_id, record_identifier, internal_version)
	);
	CREATE TABLE IF NOT EXISTS go_terms (
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		record_identifier TEXT NOT NULL,
		internal_version TEXT NOT NULL,
		data JSON NOT NULL,
		PRIMARY KEY (organization_id, record_identifier, internal_version)
	);
	CREATE TABLE IF NOT EXISTS interpro_entries (
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		record_identifier TEXT NOT NULL,
		internal_version TEXT NOT NULL,
		data JSON NOT NULL,
		PRIMARY KEY (organization_id, record_identifier, internal_version)
	);
	`

	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
