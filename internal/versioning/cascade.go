package versioning

import (
	"context"
	"time"

	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
)

// Cascade propagates entryID's bump to every dependent per spec §4.4.3: a
// MAJOR trigger bumps dependents with cascade_on_major=true, a MINOR
// trigger bumps dependents with cascade_on_minor=true, always by exactly
// one MINOR step, with trigger=upstream_dependency and
// triggered_by_version=version. Traversal is breadth-first over the
// dependents graph and deduplicated with a per-call seen set, so a
// dependent reachable via two paths is bumped at most once (spec §9).
func (e *Engine) Cascade(ctx context.Context, entryID string, version *catalog.Version, bump catalog.BumpType) error {
	seen := map[string]bool{entryID: true}
	queue := []string{entryID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		dependents, err := e.DB.DependentsOf(current)
		if err != nil {
			return err
		}
		for _, depID := range dependents {
			if seen[depID] {
				continue
			}
			seen[depID] = true

			bumped, err := e.cascadeOne(depID, version, bump)
			if err != nil {
				return err
			}
			if bumped {
				queue = append(queue, depID)
			}
		}
	}
	return nil
}

// cascadeOne bumps a single dependent by one MINOR step if its policy opts
// into cascading the triggering bump kind; it reports whether a bump
// happened (and therefore whether the dependent itself needs traversing
// further down the graph).
func (e *Engine) cascadeOne(entryID string, triggerVersion *catalog.Version, triggerBump catalog.BumpType) (bool, error) {
	entry, err := e.DB.GetEntryByID(entryID)
	if err != nil {
		return false, err
	}
	org, err := e.DB.GetOrganizationByID(entry.OrganizationID)
	if err != nil {
		return false, err
	}

	wantsCascade := (triggerBump == catalog.BumpMajor && org.VersioningStrategy.CascadeOnMajor) ||
		(triggerBump == catalog.BumpMinor && org.VersioningStrategy.CascadeOnMinor)
	if !wantsCascade {
		return false, nil
	}

	prior, err := e.DB.LatestVersion(entryID)
	if err != nil {
		if bdperrors.IsKind(err, bdperrors.KindNotFound) {
			return false, nil // nothing to cascade onto before the entry has an initial version
		}
		return false, err
	}

	major, minor := NextVersion(prior, catalog.BumpMinor)
	newVersion := &catalog.Version{
		EntryID:         entryID,
		Major:           major,
		Minor:           minor,
		ExternalVersion: prior.ExternalVersion,
		ReleaseDate:     time.Now().UTC(),
	}
	if err := e.DB.InsertVersion(newVersion); err != nil {
		return false, err
	}

	triggeredBy := triggerVersion.ID
	if err := e.writeChangelog(newVersion, catalog.BumpMinor, nil, catalog.TriggerUpstreamDependency, &triggeredBy); err != nil {
		return false, err
	}
	return true, nil
}
