package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	bdperrors "github.com/nishad/bdp/internal/errors"
)

func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "bdp-catalog-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(dir, "test.db")
	db, err := Initialize(dbPath)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to initialize catalog: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(dir)
	}

	return db, cleanup
}

func seedOrg(t *testing.T, db *DB, slug string) *Organization {
	t.Helper()
	org := &Organization{
		Slug: slug,
		Name: slug + " org",
		VersioningStrategy: VersioningStrategy{
			MajorTriggers: []ChangeTrigger{{ChangeType: "removed", Category: "field"}},
			MinorTriggers: []ChangeTrigger{{ChangeType: "added", Category: "record"}},
			DefaultBump:   "minor",
		},
	}
	if err := db.InsertOrganization(org); err != nil {
		t.Fatalf("InsertOrganization failed: %v", err)
	}
	return org
}

func TestInitialize(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.Ping(); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestOrganizationRoundtrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot")

	got, err := db.GetOrganizationBySlug("uniprot")
	if err != nil {
		t.Fatalf("GetOrganizationBySlug failed: %v", err)
	}
	if got.ID != org.ID {
		t.Errorf("got id %q, want %q", got.ID, org.ID)
	}
	if len(got.VersioningStrategy.MinorTriggers) != 1 {
		t.Errorf("got %d minor triggers, want 1", len(got.VersioningStrategy.MinorTriggers))
	}

	all, err := db.ListOrganizations()
	if err != nil {
		t.Fatalf("ListOrganizations failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d organizations, want 1", len(all))
	}
}

func TestEntryDeprecation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "ncbi")
	entry := &RegistryEntry{OrganizationID: org.ID, Slug: "taxonomy", Kind: EntryKindDataSource}
	if err := db.InsertEntry(entry); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	got, err := db.GetEntry(org.ID, "taxonomy")
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got.Deprecated {
		t.Error("expected entry to not be deprecated")
	}

	next := &RegistryEntry{OrganizationID: org.ID, Slug: "taxonomy-v2", Kind: EntryKindDataSource}
	if err := db.InsertEntry(next); err != nil {
		t.Fatalf("InsertEntry (replacement) failed: %v", err)
	}
	replacement := next.ID
	if err := db.DeprecateEntry(entry.ID, &replacement); err != nil {
		t.Fatalf("DeprecateEntry failed: %v", err)
	}

	got, err = db.GetEntry(org.ID, "taxonomy")
	if !bdperrors.IsKind(err, bdperrors.KindDeprecated) {
		t.Fatalf("expected KindDeprecated, got %v", err)
	}
	if got == nil || got.SupersededBy == nil || *got.SupersededBy != replacement {
		t.Errorf("expected entry to carry superseded_by %q", replacement)
	}
}

func TestVersionLatestLookup(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot")
	entry := &RegistryEntry{OrganizationID: org.ID, Slug: "swissprot", Kind: EntryKindDataSource}
	if err := db.InsertEntry(entry); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	versions := []*Version{
		{EntryID: entry.ID, Major: 1, Minor: 0, ExternalVersion: "2024_01", ReleaseDate: time.Now()},
		{EntryID: entry.ID, Major: 1, Minor: 1, ExternalVersion: "2024_02", ReleaseDate: time.Now()},
		{EntryID: entry.ID, Major: 2, Minor: 0, ExternalVersion: "2024_03", ReleaseDate: time.Now()},
	}
	for _, v := range versions {
		if err := db.InsertVersion(v); err != nil {
			t.Fatalf("InsertVersion failed: %v", err)
		}
	}

	latest, err := db.LatestVersion(entry.ID)
	if err != nil {
		t.Fatalf("LatestVersion failed: %v", err)
	}
	if latest.Major != 2 || latest.Minor != 0 {
		t.Errorf("got %s, want 2.0", latest.String())
	}
	if latest.String() != "2.0" {
		t.Errorf("String() = %q, want %q", latest.String(), "2.0")
	}
}

func TestJobStateMachine(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot")
	job := &IngestionJob{OrganizationID: org.ID, JobType: "protein", ExternalVersion: "2024_01"}
	if err := db.InsertJob(job); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	if job.Status != JobPending {
		t.Errorf("got status %q, want pending", job.Status)
	}

	if err := db.TransitionJob(job.ID, JobDownloading, nil); err != nil {
		t.Fatalf("TransitionJob to downloading failed: %v", err)
	}
	if err := db.TransitionJob(job.ID, JobParsing, nil); err == nil {
		t.Error("expected error skipping download_verified, got nil")
	}
	if err := db.TransitionJob(job.ID, JobDownloadVerified, nil); err != nil {
		t.Fatalf("TransitionJob to download_verified failed: %v", err)
	}

	// Re-ingesting the same external version should conflict.
	dup := &IngestionJob{OrganizationID: org.ID, JobType: "protein", ExternalVersion: "2024_01"}
	if err := db.InsertJob(dup); err == nil {
		t.Error("expected conflict inserting duplicate job, got nil")
	}
}

func TestWorkUnitClaimProtocol(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot")
	job := &IngestionJob{OrganizationID: org.ID, JobType: "protein", ExternalVersion: "2024_01"}
	if err := db.InsertJob(job); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		w := &WorkUnit{JobID: job.ID, UnitType: "parse", BatchNumber: i, StartOffset: int64(i * 1000), EndOffset: int64((i + 1) * 1000)}
		if err := db.InsertWorkUnit(w); err != nil {
			t.Fatalf("InsertWorkUnit failed: %v", err)
		}
	}

	staleBefore := time.Now().Add(-5 * time.Minute)

	first, err := db.ClaimNextWorkUnit(job.ID, "worker-a", staleBefore)
	if err != nil {
		t.Fatalf("ClaimNextWorkUnit failed: %v", err)
	}
	if first == nil || first.BatchNumber != 0 {
		t.Fatalf("expected to claim batch 0 first, got %+v", first)
	}

	second, err := db.ClaimNextWorkUnit(job.ID, "worker-b", staleBefore)
	if err != nil {
		t.Fatalf("ClaimNextWorkUnit failed: %v", err)
	}
	if second == nil || second.BatchNumber != 1 {
		t.Fatalf("expected to claim batch 1 next, got %+v", second)
	}

	if err := db.CompleteWorkUnit(first.ID); err != nil {
		t.Fatalf("CompleteWorkUnit failed: %v", err)
	}

	done, err := db.AllWorkUnitsComplete(job.ID)
	if err != nil {
		t.Fatalf("AllWorkUnitsComplete failed: %v", err)
	}
	if done {
		t.Error("expected work units remaining, got all complete")
	}
}

func TestWorkUnitStaleReclaim(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot")
	job := &IngestionJob{OrganizationID: org.ID, JobType: "protein", ExternalVersion: "2024_01"}
	if err := db.InsertJob(job); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	w := &WorkUnit{JobID: job.ID, UnitType: "parse", BatchNumber: 0, StartOffset: 0, EndOffset: 1000}
	if err := db.InsertWorkUnit(w); err != nil {
		t.Fatalf("InsertWorkUnit failed: %v", err)
	}

	recent := time.Now().Add(-1 * time.Minute)
	claimed, err := db.ClaimNextWorkUnit(job.ID, "worker-a", recent)
	if err != nil || claimed == nil {
		t.Fatalf("initial claim failed: %v", err)
	}

	// A fresh claim attempt with the same staleness cutoff should see no
	// work: the unit is processing and its heartbeat is not yet stale.
	none, err := db.ClaimNextWorkUnit(job.ID, "worker-b", recent)
	if err != nil {
		t.Fatalf("ClaimNextWorkUnit failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no claimable unit, got %+v", none)
	}

	// A cutoff in the future treats the unit's heartbeat as stale, so it
	// becomes reclaimable by another worker.
	future := time.Now().Add(1 * time.Hour)
	reclaimed, err := db.ClaimNextWorkUnit(job.ID, "worker-b", future)
	if err != nil {
		t.Fatalf("ClaimNextWorkUnit (reclaim) failed: %v", err)
	}
	if reclaimed == nil || reclaimed.WorkerID != "worker-b" {
		t.Fatalf("expected worker-b to reclaim stale unit, got %+v", reclaimed)
	}
}

func TestFailWorkUnitRetryThenExhaust(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot")
	job := &IngestionJob{OrganizationID: org.ID, JobType: "protein", ExternalVersion: "2024_01"}
	if err := db.InsertJob(job); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	w := &WorkUnit{JobID: job.ID, UnitType: "parse", BatchNumber: 0, StartOffset: 0, EndOffset: 1000, MaxRetries: 2}
	if err := db.InsertWorkUnit(w); err != nil {
		t.Fatalf("InsertWorkUnit failed: %v", err)
	}

	if err := db.FailWorkUnit(w.ID, "transient network error"); err != nil {
		t.Fatalf("FailWorkUnit failed: %v", err)
	}
	units, err := db.ListWorkUnits(job.ID)
	if err != nil {
		t.Fatalf("ListWorkUnits failed: %v", err)
	}
	if units[0].Status != WorkUnitPending {
		t.Errorf("got status %q after first failure, want pending (retry)", units[0].Status)
	}

	if err := db.FailWorkUnit(w.ID, "transient network error"); err != nil {
		t.Fatalf("FailWorkUnit failed: %v", err)
	}
	units, err = db.ListWorkUnits(job.ID)
	if err != nil {
		t.Fatalf("ListWorkUnits failed: %v", err)
	}
	if units[0].Status != WorkUnitFailed {
		t.Errorf("got status %q after exhausting retries, want failed", units[0].Status)
	}
}

func TestStageAndCommitRecord(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot")
	job := &IngestionJob{OrganizationID: org.ID, JobType: "protein", ExternalVersion: "2024_01"}
	if err := db.InsertJob(job); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	w := &WorkUnit{JobID: job.ID, UnitType: "parse", BatchNumber: 0, StartOffset: 0, EndOffset: 1000}
	if err := db.InsertWorkUnit(w); err != nil {
		t.Fatalf("InsertWorkUnit failed: %v", err)
	}

	records := []*StagedRecord{
		{JobID: job.ID, WorkUnitID: w.ID, RecordType: "protein", RecordIdentifier: "p01308", RecordData: `{"id":"P01308"}`, ContentMD5: "abc"},
		{JobID: job.ID, WorkUnitID: w.ID, RecordType: "protein", RecordIdentifier: "p02768", RecordData: `{"id":"P02768"}`, ContentMD5: "def"},
	}
	staged, err := db.StageRecordsBatch(records)
	if err != nil {
		t.Fatalf("StageRecordsBatch failed: %v", err)
	}
	if staged != 2 {
		t.Errorf("got %d staged, want 2", staged)
	}

	// Re-staging the same batch after a simulated crash is a no-op.
	staged, err = db.StageRecordsBatch(records)
	if err != nil {
		t.Fatalf("StageRecordsBatch (replay) failed: %v", err)
	}
	if staged != 0 {
		t.Errorf("got %d newly staged on replay, want 0", staged)
	}

	if err := db.CommitTypedRecord(SourceTypeProtein, org.ID, "p01308", "1.0", "seqmd5", `{"id":"P01308"}`); err != nil {
		t.Fatalf("CommitTypedRecord failed: %v", err)
	}
	count, err := db.CountTypedRecords(SourceTypeProtein, org.ID, "1.0")
	if err != nil {
		t.Fatalf("CountTypedRecords failed: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d committed records, want 1", count)
	}
}

func TestChangelogRoundtrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot")
	entry := &RegistryEntry{OrganizationID: org.ID, Slug: "swissprot", Kind: EntryKindDataSource}
	if err := db.InsertEntry(entry); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	version := &Version{EntryID: entry.ID, Major: 1, Minor: 1, ExternalVersion: "2024_02", ReleaseDate: time.Now()}
	if err := db.InsertVersion(version); err != nil {
		t.Fatalf("InsertVersion failed: %v", err)
	}

	changelog := &Changelog{
		VersionID: version.ID,
		BumpType:  BumpMinor,
		Entries:   []Change{{ChangeType: "added", Category: "protein", Count: 12}},
		Summary:   ChangeSummary{EntriesBefore: 100, EntriesAfter: 112, Added: []string{"p99999"}},
		SummaryText: "12 proteins added",
		Trigger:   TriggerNewRelease,
	}
	if err := db.InsertChangelog(changelog); err != nil {
		t.Fatalf("InsertChangelog failed: %v", err)
	}

	got, err := db.GetChangelog(version.ID)
	if err != nil {
		t.Fatalf("GetChangelog failed: %v", err)
	}
	if got.BumpType != BumpMinor {
		t.Errorf("got bump type %q, want minor", got.BumpType)
	}
	if len(got.Entries) != 1 || got.Entries[0].Count != 12 {
		t.Errorf("got entries %+v, want one entry with count 12", got.Entries)
	}
}
