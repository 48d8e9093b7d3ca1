package versioning

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/nishad/bdp/internal/ingestion"
)

// Engine implements ingestion.VersionAllocator and ingestion.ChangelogWriter,
// wiring the Ingestion Engine to the Versioning Engine's classification,
// allocation, change-detection, changelog, and cascade logic.
//
// AllocateVersion and WriteChangelog are always called sequentially for the
// same version within one Coordinator.Run, so the ChangeSummary computed
// during allocation (richer than the []Change slice the ingestion.
// ChangelogWriter interface carries) is cached here by version ID and
// consumed once WriteChangelog runs.
type Engine struct {
	DB *catalog.DB

	mu        sync.Mutex
	summaries map[string]catalog.ChangeSummary
}

var _ ingestion.VersionAllocator = (*Engine)(nil)
var _ ingestion.ChangelogWriter = (*Engine)(nil)

// AllocateVersion classifies the bump produced by staged, inserts the new
// immutable Version row, and returns the Changes that justified it so the
// caller can later write the Changelog (spec §4.4.1, §4.4.2).
func (e *Engine) AllocateVersion(ctx context.Context, orgID, entryID, externalVersion string, sourceType catalog.SourceType, staged []ingestion.StagedRecordSummary) (*catalog.Version, []catalog.Change, catalog.BumpType, error) {
	prior, err := e.DB.LatestVersion(entryID)
	if err != nil {
		if !bdperrors.IsKind(err, bdperrors.KindNotFound) {
			return nil, nil, "", err
		}
		prior = nil
	}

	changes, summary, err := DetectChanges(e.DB, sourceType, orgID, prior, staged)
	if err != nil {
		return nil, nil, "", err
	}

	var bump catalog.BumpType
	if prior == nil {
		bump = catalog.BumpMinor // initial version: no policy decision to make, 1.0 always
	} else {
		org, err := e.DB.GetOrganizationByID(orgID)
		if err != nil {
			return nil, nil, "", err
		}
		bump = ClassifyBump(org.VersioningStrategy, changes)
	}

	major, minor := NextVersion(prior, bump)
	version := &catalog.Version{
		EntryID:         entryID,
		Major:           major,
		Minor:           minor,
		ExternalVersion: externalVersion,
		ReleaseDate:     time.Now().UTC(),
	}
	if err := e.DB.InsertVersion(version); err != nil {
		return nil, nil, "", err
	}

	e.mu.Lock()
	if e.summaries == nil {
		e.summaries = make(map[string]catalog.ChangeSummary)
	}
	e.summaries[version.ID] = summary
	e.mu.Unlock()

	return version, changes, bump, nil
}

func (e *Engine) takeSummary(versionID string) catalog.ChangeSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	summary, ok := e.summaries[versionID]
	if ok {
		delete(e.summaries, versionID)
	}
	return summary
}

// WriteChangelog records the Changelog for a newly allocated version (spec
// §4.4.5). trigger defaults to new_release; Cascade overrides it to
// upstream_dependency for dependents it bumps.
func (e *Engine) WriteChangelog(ctx context.Context, version *catalog.Version, bump catalog.BumpType, changes []catalog.Change) error {
	return e.writeChangelog(version, bump, changes, catalog.TriggerNewRelease, nil)
}

func (e *Engine) writeChangelog(version *catalog.Version, bump catalog.BumpType, changes []catalog.Change, trigger catalog.ChangelogTrigger, triggeredBy *string) error {
	summary := e.takeSummary(version.ID)
	cl := &catalog.Changelog{
		VersionID:            version.ID,
		BumpType:             bump,
		Entries:              changes,
		Summary:              summary,
		SummaryText:          summaryText(version, bump, changes),
		TriggeredByVersionID: triggeredBy,
		Trigger:              trigger,
	}
	return e.DB.InsertChangelog(cl)
}

func summaryText(version *catalog.Version, bump catalog.BumpType, changes []catalog.Change) string {
	if len(changes) == 0 {
		return "initial release " + version.String()
	}
	text := string(bump) + " bump to " + version.String() + ":"
	for _, c := range changes {
		text += " " + c.ChangeType + " " + c.Category + "(" + strconv.Itoa(c.Count) + ")"
	}
	return text
}
