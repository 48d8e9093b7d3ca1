// Package versioning implements the Versioning Engine (spec §4.4): it
// classifies a set of detected changes into a MAJOR or MINOR bump per an
// organization's policy, allocates the resulting immutable Version row,
// writes its Changelog, and cascades MINOR bumps to dependents.
package versioning

import "github.com/nishad/bdp/internal/catalog"

// ClassifyBump applies an organization's VersioningStrategy to a set of
// Changes: any change matching a major_trigger forces MAJOR; else any match
// against a minor_trigger forces MINOR; else the policy's default_bump
// applies (spec §4.4.2).
func ClassifyBump(strategy catalog.VersioningStrategy, changes []catalog.Change) catalog.BumpType {
	for _, c := range changes {
		if triggerMatches(strategy.MajorTriggers, c) {
			return catalog.BumpMajor
		}
	}
	for _, c := range changes {
		if triggerMatches(strategy.MinorTriggers, c) {
			return catalog.BumpMinor
		}
	}
	if strategy.DefaultBump == string(catalog.BumpMajor) {
		return catalog.BumpMajor
	}
	return catalog.BumpMinor
}

func triggerMatches(triggers []catalog.ChangeTrigger, c catalog.Change) bool {
	for _, t := range triggers {
		if t.ChangeType == c.ChangeType && t.Category == c.Category {
			return true
		}
	}
	return false
}

// NextVersion computes the new major.minor pair a bump produces (spec
// §4.4.2): MAJOR resets minor to 0; MINOR increments minor only.
func NextVersion(prior *catalog.Version, bump catalog.BumpType) (major, minor int) {
	if prior == nil {
		return 1, 0
	}
	if bump == catalog.BumpMajor {
		return prior.Major + 1, 0
	}
	return prior.Major, prior.Minor + 1
}
