package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nishad/bdp/internal/catalog"
)

func setupTestDB(t *testing.T) (*catalog.DB, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "bdp-search-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	db, err := catalog.Initialize(filepath.Join(dir, "test.db"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("catalog.Initialize: %v", err)
	}
	return db, func() {
		db.Close()
		os.RemoveAll(dir)
	}
}

func setupTestIndex(t *testing.T) (*Index, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "bdp-search-index-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	idx, err := Open(filepath.Join(dir, "search.bleve"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("Open: %v", err)
	}
	return idx, func() {
		idx.Close()
		os.RemoveAll(dir)
	}
}

func seedOrg(t *testing.T, db *catalog.DB, slug string) *catalog.Organization {
	t.Helper()
	org := &catalog.Organization{Slug: slug, Name: slug, VersioningStrategy: catalog.VersioningStrategy{DefaultBump: "minor"}, License: "CC0"}
	if err := db.InsertOrganization(org); err != nil {
		t.Fatalf("InsertOrganization: %v", err)
	}
	return org
}

func seedEntry(t *testing.T, db *catalog.DB, orgID, slug string) *catalog.RegistryEntry {
	t.Helper()
	entry := &catalog.RegistryEntry{OrganizationID: orgID, Slug: slug, Kind: catalog.EntryKindDataSource}
	if err := db.InsertEntry(entry); err != nil {
		t.Fatalf("InsertEntry: %v", err)
	}
	return entry
}

func seedVersion(t *testing.T, db *catalog.DB, entryID string, major, minor int, external string) *catalog.Version {
	t.Helper()
	v := &catalog.Version{EntryID: entryID, Major: major, Minor: minor, ExternalVersion: external}
	if err := db.InsertVersion(v); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}
	return v
}

func TestOpenCreatesThenReopens(t *testing.T) {
	dir, err := os.MkdirTemp("", "bdp-search-open-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "search.bleve")

	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open (create): %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open (reopen): %v", err)
	}
	defer reopened.Close()
}

func TestBuildDocumentPullsChangelogAndDataSource(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot")
	entry := seedEntry(t, db, org.ID, "swissprot")
	if err := db.InsertDataSource(&catalog.DataSource{EntryID: entry.ID, SourceType: catalog.SourceTypeProtein, ExternalID: "swissprot"}); err != nil {
		t.Fatalf("InsertDataSource: %v", err)
	}
	v := seedVersion(t, db, entry.ID, 1, 0, "2025_02")
	if err := db.InsertChangelog(&catalog.Changelog{VersionID: v.ID, BumpType: catalog.BumpMinor, SummaryText: "initial release"}); err != nil {
		t.Fatalf("InsertChangelog: %v", err)
	}

	doc, err := BuildDocument(db, org, entry, v, "Homo sapiens")
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}
	if doc.SourceType != string(catalog.SourceTypeProtein) {
		t.Errorf("SourceType = %q, want %q", doc.SourceType, catalog.SourceTypeProtein)
	}
	if doc.SummaryText != "initial release" {
		t.Errorf("SummaryText = %q", doc.SummaryText)
	}
	if doc.Organism != "Homo sapiens" {
		t.Errorf("Organism = %q", doc.Organism)
	}
	if doc.License != "CC0" {
		t.Errorf("License = %q", doc.License)
	}
}

func TestSyncerFullSyncSkipsDeprecatedAndVersionless(t *testing.T) {
	db, cleanupDB := setupTestDB(t)
	defer cleanupDB()
	idx, cleanupIdx := setupTestIndex(t)
	defer cleanupIdx()

	org := seedOrg(t, db, "uniprot")
	live := seedEntry(t, db, org.ID, "swissprot")
	seedVersion(t, db, live.ID, 1, 0, "2025_02")

	deprecated := seedEntry(t, db, org.ID, "old-entry")
	seedVersion(t, db, deprecated.ID, 1, 0, "2020_01")
	if err := db.DeprecateEntry(deprecated.ID, nil); err != nil {
		t.Fatalf("DeprecateEntry: %v", err)
	}

	seedEntry(t, db, org.ID, "not-yet-ingested") // no version committed

	syncer := &Syncer{DB: db, Index: idx}
	if err := syncer.FullSync(); err != nil {
		t.Fatalf("FullSync: %v", err)
	}

	result, err := Search(idx, "swissprot", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.TotalHits != 1 {
		t.Fatalf("TotalHits = %d, want 1", result.TotalHits)
	}
	if result.Hits[0].Slug != "swissprot" {
		t.Errorf("hit slug = %q", result.Hits[0].Slug)
	}
}

func TestSyncEntryReindexesLatestVersion(t *testing.T) {
	db, cleanupDB := setupTestDB(t)
	defer cleanupDB()
	idx, cleanupIdx := setupTestIndex(t)
	defer cleanupIdx()

	org := seedOrg(t, db, "ncbi-taxonomy")
	entry := seedEntry(t, db, org.ID, "taxdump")
	seedVersion(t, db, entry.ID, 1, 0, "2025-06-01")

	syncer := &Syncer{DB: db, Index: idx}
	if err := syncer.SyncEntry(org.ID, entry.ID, "multiple organisms"); err != nil {
		t.Fatalf("SyncEntry: %v", err)
	}

	result, err := Search(idx, "multiple", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.TotalHits != 1 {
		t.Fatalf("TotalHits = %d, want 1", result.TotalHits)
	}
}
