package versioning

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nishad/bdp/internal/catalog"
	"github.com/nishad/bdp/internal/ingestion"
)

func setupTestDB(t *testing.T) (*catalog.DB, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "bdp-versioning-test-*")
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

func seedOrg(t *testing.T, db *catalog.DB, slug string, strategy catalog.VersioningStrategy) *catalog.Organization {
	t.Helper()
	org := &catalog.Organization{Slug: slug, Name: slug, VersioningStrategy: strategy}
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

func commitProtein(t *testing.T, db *catalog.DB, orgID, identifier, version string, data map[string]interface{}) {
	t.Helper()
	jsonBlob := `{"value":"` + data["value"].(string) + `"}`
	if err := db.CommitTypedRecord(catalog.SourceTypeProtein, orgID, identifier, version, "", jsonBlob); err != nil {
		t.Fatalf("CommitTypedRecord: %v", err)
	}
}

func uniprotStrategy() catalog.VersioningStrategy {
	return catalog.VersioningStrategy{
		MajorTriggers:  []catalog.ChangeTrigger{{ChangeType: "removed", Category: "protein"}},
		MinorTriggers:  []catalog.ChangeTrigger{{ChangeType: "added", Category: "protein"}},
		DefaultBump:    "minor",
		CascadeOnMinor: true,
		CascadeOnMajor: true,
	}
}

func TestClassifyBumpMajorBeatsMinor(t *testing.T) {
	strategy := uniprotStrategy()
	changes := []catalog.Change{
		{ChangeType: "added", Category: "protein", Count: 2},
		{ChangeType: "removed", Category: "protein", Count: 1},
	}
	if got := ClassifyBump(strategy, changes); got != catalog.BumpMajor {
		t.Fatalf("want major, got %s", got)
	}
}

func TestClassifyBumpMinor(t *testing.T) {
	strategy := uniprotStrategy()
	changes := []catalog.Change{{ChangeType: "added", Category: "protein", Count: 2}}
	if got := ClassifyBump(strategy, changes); got != catalog.BumpMinor {
		t.Fatalf("want minor, got %s", got)
	}
}

func TestClassifyBumpFallsBackToDefault(t *testing.T) {
	strategy := uniprotStrategy()
	changes := []catalog.Change{{ChangeType: "modified", Category: "metadata", Count: 1}}
	if got := ClassifyBump(strategy, changes); got != catalog.BumpMinor {
		t.Fatalf("want default (minor), got %s", got)
	}
}

func TestNextVersion(t *testing.T) {
	prior := &catalog.Version{Major: 1, Minor: 3}
	if maj, min := NextVersion(prior, catalog.BumpMinor); maj != 1 || min != 4 {
		t.Fatalf("minor bump: got %d.%d", maj, min)
	}
	if maj, min := NextVersion(prior, catalog.BumpMajor); maj != 2 || min != 0 {
		t.Fatalf("major bump: got %d.%d", maj, min)
	}
	if maj, min := NextVersion(nil, catalog.BumpMajor); maj != 1 || min != 0 {
		t.Fatalf("initial version: got %d.%d", maj, min)
	}
}

func TestAllocateVersionFirstIngestion(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot", uniprotStrategy())
	entry := seedEntry(t, db, org.ID, "swissprot")

	e := &Engine{DB: db}
	staged := []ingestion.StagedRecordSummary{
		{RecordIdentifier: "p01308", ContentMD5: "aaa"},
		{RecordIdentifier: "p02768", ContentMD5: "bbb"},
		{RecordIdentifier: "p69905", ContentMD5: "ccc"},
	}
	version, changes, bump, err := e.AllocateVersion(context.Background(), org.ID, entry.ID, "2025_01", catalog.SourceTypeProtein, staged)
	if err != nil {
		t.Fatalf("AllocateVersion: %v", err)
	}
	if version.Major != 1 || version.Minor != 0 {
		t.Fatalf("want initial version 1.0, got %s", version.String())
	}
	if bump != catalog.BumpMinor {
		t.Fatalf("want minor bump recorded for initial version, got %s", bump)
	}
	if len(changes) != 1 || changes[0].ChangeType != "added" || changes[0].Count != 3 {
		t.Fatalf("want one added(3) change, got %+v", changes)
	}

	if err := e.WriteChangelog(context.Background(), version, bump, changes); err != nil {
		t.Fatalf("WriteChangelog: %v", err)
	}
	cl, err := db.GetChangelog(version.ID)
	if err != nil {
		t.Fatalf("GetChangelog: %v", err)
	}
	if cl.Trigger != catalog.TriggerNewRelease {
		t.Fatalf("want new_release trigger, got %s", cl.Trigger)
	}
	if cl.Summary.EntriesAfter != 3 {
		t.Fatalf("want entries_after=3, got %d", cl.Summary.EntriesAfter)
	}
}

func TestAllocateVersionClassifiesMinorOnAddedProtein(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot", uniprotStrategy())
	entry := seedEntry(t, db, org.ID, "swissprot")

	v1 := &catalog.Version{EntryID: entry.ID, Major: 1, Minor: 0, ExternalVersion: "2025_01"}
	if err := db.InsertVersion(v1); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}
	commitProtein(t, db, org.ID, "p01308", v1.String(), map[string]interface{}{"value": "insulin"})

	e := &Engine{DB: db}
	staged := []ingestion.StagedRecordSummary{
		{RecordIdentifier: "p01308", ContentMD5: "unchanged"}, // same identifier: not modified unless content_md5 recompute differs
		{RecordIdentifier: "p02768", ContentMD5: "new"},       // newly added
	}
	version, changes, bump, err := e.AllocateVersion(context.Background(), org.ID, entry.ID, "2025_02", catalog.SourceTypeProtein, staged)
	if err != nil {
		t.Fatalf("AllocateVersion: %v", err)
	}
	if bump != catalog.BumpMinor {
		t.Fatalf("want minor bump on added protein, got %s", bump)
	}
	if version.Major != 1 || version.Minor != 1 {
		t.Fatalf("want 1.1, got %s", version.String())
	}

	var sawAdded bool
	for _, c := range changes {
		if c.ChangeType == "added" && c.Count == 1 {
			sawAdded = true
		}
	}
	if !sawAdded {
		t.Fatalf("expected an added(1) change, got %+v", changes)
	}
}

func TestAllocateVersionClassifiesMajorOnRemovedProtein(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "uniprot", uniprotStrategy())
	entry := seedEntry(t, db, org.ID, "swissprot")

	v1 := &catalog.Version{EntryID: entry.ID, Major: 1, Minor: 0, ExternalVersion: "2025_01"}
	if err := db.InsertVersion(v1); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}
	commitProtein(t, db, org.ID, "p01308", v1.String(), map[string]interface{}{"value": "insulin"})
	commitProtein(t, db, org.ID, "p02768", v1.String(), map[string]interface{}{"value": "albumin"})

	e := &Engine{DB: db}
	staged := []ingestion.StagedRecordSummary{
		{RecordIdentifier: "p01308", ContentMD5: "unchanged"},
		// p02768 dropped from upstream
	}
	version, changes, bump, err := e.AllocateVersion(context.Background(), org.ID, entry.ID, "2025_02", catalog.SourceTypeProtein, staged)
	if err != nil {
		t.Fatalf("AllocateVersion: %v", err)
	}
	if bump != catalog.BumpMajor {
		t.Fatalf("want major bump on removed protein, got %s", bump)
	}
	if version.Major != 2 || version.Minor != 0 {
		t.Fatalf("want 2.0, got %s", version.String())
	}

	var sawRemoved bool
	for _, c := range changes {
		if c.ChangeType == "removed" && c.Count == 1 {
			sawRemoved = true
		}
	}
	if !sawRemoved {
		t.Fatalf("expected a removed(1) change, got %+v", changes)
	}
}

// interproMembershipOnlyStrategy isolates the membership-loss trigger from
// the generic whole-entry removed trigger, so these tests exercise only the
// new membership-loss signal rather than the (already-covered) case of a
// match identifier simply falling out of the staged set.
func interproMembershipOnlyStrategy() catalog.VersioningStrategy {
	return catalog.VersioningStrategy{
		MajorTriggers: []catalog.ChangeTrigger{{ChangeType: "modified", Category: InterProMembershipCategory}},
		MinorTriggers: []catalog.ChangeTrigger{{ChangeType: "added", Category: string(catalog.SourceTypeInterProEntry)}},
		DefaultBump:   "minor",
	}
}

func commitInterPro(t *testing.T, db *catalog.DB, orgID, identifier, version string) {
	t.Helper()
	if err := db.CommitTypedRecord(catalog.SourceTypeInterProEntry, orgID, identifier, version, "", `{"v":"`+identifier+`"}`); err != nil {
		t.Fatalf("CommitTypedRecord interpro: %v", err)
	}
}

// TestAllocateVersionMajorOnInterProMembershipLoss covers spec §4.4.4: an
// InterPro entry that keeps its entry_ac identifier but loses more than
// half its matched-protein membership must itself register as a change
// major enough to force a MAJOR bump, not just whole-entry removal.
func TestAllocateVersionMajorOnInterProMembershipLoss(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "interpro", interproMembershipOnlyStrategy())
	entry := seedEntry(t, db, org.ID, "entry-match-pairs")

	v1 := &catalog.Version{EntryID: entry.ID, Major: 1, Minor: 0, ExternalVersion: "94.0"}
	if err := db.InsertVersion(v1); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}
	commitInterPro(t, db, org.ID, "IPR000001", v1.String())
	commitInterPro(t, db, org.ID, "IPR000001:P00001", v1.String())
	commitInterPro(t, db, org.ID, "IPR000001:P00002", v1.String())
	commitInterPro(t, db, org.ID, "IPR000001:P00003", v1.String())
	commitInterPro(t, db, org.ID, "IPR000001:P00004", v1.String())

	e := &Engine{DB: db}
	staged := []ingestion.StagedRecordSummary{
		{RecordIdentifier: "IPR000001", ContentMD5: "unchanged"},
		{RecordIdentifier: "IPR000001:P00001", ContentMD5: "m1"}, // only 1 of 4 prior matches survives
	}
	version, changes, bump, err := e.AllocateVersion(context.Background(), org.ID, entry.ID, "94.1", catalog.SourceTypeInterProEntry, staged)
	if err != nil {
		t.Fatalf("AllocateVersion: %v", err)
	}
	if bump != catalog.BumpMajor {
		t.Fatalf("want major bump on interpro membership loss, got %s", bump)
	}
	if version.Major != 2 || version.Minor != 0 {
		t.Fatalf("want 2.0, got %s", version.String())
	}

	var sawMembershipLoss bool
	for _, c := range changes {
		if c.ChangeType == "modified" && c.Category == InterProMembershipCategory && c.Count == 1 {
			sawMembershipLoss = true
		}
	}
	if !sawMembershipLoss {
		t.Fatalf("expected a membership-loss(1) change, got %+v", changes)
	}
}

// TestAllocateVersionNoMembershipLossBelowThreshold ensures a modest
// membership drop (here, half the matches survive, which is the boundary
// rather than a >50% loss) does not spuriously trigger the major bump.
func TestAllocateVersionNoMembershipLossBelowThreshold(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	org := seedOrg(t, db, "interpro", interproMembershipOnlyStrategy())
	entry := seedEntry(t, db, org.ID, "entry-match-pairs")

	v1 := &catalog.Version{EntryID: entry.ID, Major: 1, Minor: 0, ExternalVersion: "94.0"}
	if err := db.InsertVersion(v1); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}
	commitInterPro(t, db, org.ID, "IPR000001", v1.String())
	commitInterPro(t, db, org.ID, "IPR000001:P00001", v1.String())
	commitInterPro(t, db, org.ID, "IPR000001:P00002", v1.String())

	e := &Engine{DB: db}
	staged := []ingestion.StagedRecordSummary{
		{RecordIdentifier: "IPR000001", ContentMD5: "unchanged"},
		{RecordIdentifier: "IPR000001:P00001", ContentMD5: "m1"}, // 1 of 2 matches survives, exactly 50%
	}
	_, changes, bump, err := e.AllocateVersion(context.Background(), org.ID, entry.ID, "94.1", catalog.SourceTypeInterProEntry, staged)
	if err != nil {
		t.Fatalf("AllocateVersion: %v", err)
	}
	if bump != catalog.BumpMinor {
		t.Fatalf("want minor (default) bump, 50%% loss is not yet >50%%, got %s", bump)
	}
	for _, c := range changes {
		if c.Category == InterProMembershipCategory {
			t.Fatalf("did not expect a membership-loss change at exactly 50%% retained, got %+v", changes)
		}
	}
}

// TestCascadeMinorBump exercises spec §8 scenario 2: UniProt 1.0 -> 1.1
// (added protein, MINOR) with InterPro depending on UniProt 1.0 and
// cascade_on_minor=true. InterPro should receive a new 1.1 with a
// changelog whose trigger is upstream_dependency, referencing UniProt 1.1.
func TestCascadeMinorBump(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	uniprotOrg := seedOrg(t, db, "uniprot", uniprotStrategy())
	uniprotEntry := seedEntry(t, db, uniprotOrg.ID, "swissprot")

	interproStrategy := catalog.VersioningStrategy{DefaultBump: "minor", CascadeOnMinor: true, CascadeOnMajor: true}
	interproOrg := seedOrg(t, db, "interpro", interproStrategy)
	interproEntry := seedEntry(t, db, interproOrg.ID, "all-matches")

	uniprotV1 := &catalog.Version{EntryID: uniprotEntry.ID, Major: 1, Minor: 0, ExternalVersion: "2025_01"}
	if err := db.InsertVersion(uniprotV1); err != nil {
		t.Fatalf("InsertVersion uniprot v1: %v", err)
	}
	interproV1 := &catalog.Version{EntryID: interproEntry.ID, Major: 1, Minor: 0, ExternalVersion: "94.0"}
	if err := db.InsertVersion(interproV1); err != nil {
		t.Fatalf("InsertVersion interpro v1: %v", err)
	}
	if err := db.InsertDependency(&catalog.Dependency{
		VersionID:          interproV1.ID,
		DependsOnEntryID:   uniprotEntry.ID,
		DependsOnVersionID: uniprotV1.ID,
		Kind:               catalog.DependencyRequired,
	}); err != nil {
		t.Fatalf("InsertDependency: %v", err)
	}
	commitProtein(t, db, uniprotOrg.ID, "p01308", uniprotV1.String(), map[string]interface{}{"value": "insulin"})

	e := &Engine{DB: db}
	staged := []ingestion.StagedRecordSummary{
		{RecordIdentifier: "p01308", ContentMD5: "unchanged"},
		{RecordIdentifier: "p02768", ContentMD5: "new"},
	}
	uniprotV2, changes, bump, err := e.AllocateVersion(context.Background(), uniprotOrg.ID, uniprotEntry.ID, "2025_02", catalog.SourceTypeProtein, staged)
	if err != nil {
		t.Fatalf("AllocateVersion: %v", err)
	}
	if bump != catalog.BumpMinor || uniprotV2.String() != "1.1" {
		t.Fatalf("want uniprot minor bump to 1.1, got %s (%s)", uniprotV2.String(), bump)
	}
	if err := e.WriteChangelog(context.Background(), uniprotV2, bump, changes); err != nil {
		t.Fatalf("WriteChangelog: %v", err)
	}
	if err := e.Cascade(context.Background(), uniprotEntry.ID, uniprotV2, bump); err != nil {
		t.Fatalf("Cascade: %v", err)
	}

	interproLatest, err := db.LatestVersion(interproEntry.ID)
	if err != nil {
		t.Fatalf("LatestVersion interpro: %v", err)
	}
	if interproLatest.String() != "1.1" {
		t.Fatalf("want interpro cascaded to 1.1, got %s", interproLatest.String())
	}

	cl, err := db.GetChangelog(interproLatest.ID)
	if err != nil {
		t.Fatalf("GetChangelog interpro: %v", err)
	}
	if cl.Trigger != catalog.TriggerUpstreamDependency {
		t.Fatalf("want upstream_dependency trigger, got %s", cl.Trigger)
	}
	if cl.TriggeredByVersionID == nil || *cl.TriggeredByVersionID != uniprotV2.ID {
		t.Fatalf("want triggered_by_version=%s, got %v", uniprotV2.ID, cl.TriggeredByVersionID)
	}
}

func TestCascadeSkipsDependentWithoutPolicyOptIn(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	uniprotOrg := seedOrg(t, db, "uniprot", uniprotStrategy())
	uniprotEntry := seedEntry(t, db, uniprotOrg.ID, "swissprot")

	noCascadeOrg := seedOrg(t, db, "somebody", catalog.VersioningStrategy{DefaultBump: "minor"})
	dependentEntry := seedEntry(t, db, noCascadeOrg.ID, "downstream-tool")

	uniprotV1 := &catalog.Version{EntryID: uniprotEntry.ID, Major: 1, Minor: 0, ExternalVersion: "2025_01"}
	if err := db.InsertVersion(uniprotV1); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}
	dependentV1 := &catalog.Version{EntryID: dependentEntry.ID, Major: 1, Minor: 0, ExternalVersion: "1.0"}
	if err := db.InsertVersion(dependentV1); err != nil {
		t.Fatalf("InsertVersion dependent: %v", err)
	}
	if err := db.InsertDependency(&catalog.Dependency{
		VersionID:          dependentV1.ID,
		DependsOnEntryID:   uniprotEntry.ID,
		DependsOnVersionID: uniprotV1.ID,
		Kind:               catalog.DependencyRequired,
	}); err != nil {
		t.Fatalf("InsertDependency: %v", err)
	}

	e := &Engine{DB: db}
	if err := e.Cascade(context.Background(), uniprotEntry.ID, uniprotV1, catalog.BumpMinor); err != nil {
		t.Fatalf("Cascade: %v", err)
	}

	latest, err := db.LatestVersion(dependentEntry.ID)
	if err != nil {
		t.Fatalf("LatestVersion: %v", err)
	}
	if latest.String() != "1.0" {
		t.Fatalf("expected dependent to stay at 1.0 without cascade_on_minor, got %s", latest.String())
	}
}
