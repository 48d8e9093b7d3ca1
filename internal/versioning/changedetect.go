package versioning

import (
	"encoding/json"
	"strings"

	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/nishad/bdp/internal/ingestion"
	"github.com/nishad/bdp/internal/parser"
)

// InterProMembershipCategory names the Change/ChangeTrigger category an
// InterPro entry's own matched-protein membership collapse is reported
// under — distinct from "interpro_entry" (which covers whole-entry
// added/removed/modified) so an organization's VersioningStrategy can
// major-trigger on membership loss independently of entry removal.
const InterProMembershipCategory = "interpro_membership"

// interProMembershipLossThreshold is the fraction of prior membership an
// InterPro entry must lose for it to register as a change in its own right
// (spec §4.4.4: "large (>50%) membership loss per entry").
const interProMembershipLossThreshold = 0.5

// DetectChanges diffs a newly staged record set against an entry's prior
// committed version, producing the added/removed/modified sets spec §4.4.4
// describes. priorVersion is nil for an entry's first ingestion, in which
// case every staged record counts as added.
func DetectChanges(db *catalog.DB, sourceType catalog.SourceType, orgID string, priorVersion *catalog.Version, staged []ingestion.StagedRecordSummary) ([]catalog.Change, catalog.ChangeSummary, error) {
	category := string(sourceType)

	stagedHash := make(map[string]string, len(staged))
	for _, s := range staged {
		stagedHash[s.RecordIdentifier] = s.ContentMD5
	}

	if priorVersion == nil {
		added := make([]string, 0, len(stagedHash))
		for id := range stagedHash {
			added = append(added, id)
		}
		summary := catalog.ChangeSummary{EntriesBefore: 0, EntriesAfter: len(added), Added: added}
		var changes []catalog.Change
		if len(added) > 0 {
			changes = append(changes, catalog.Change{ChangeType: "added", Category: category, Count: len(added)})
		}
		return changes, summary, nil
	}

	priorIDs, err := db.ListRecordIdentifiers(sourceType, orgID, priorVersion.String())
	if err != nil {
		return nil, catalog.ChangeSummary{}, err
	}
	priorSet := make(map[string]bool, len(priorIDs))
	for _, id := range priorIDs {
		priorSet[id] = true
	}

	var added, removed, modified []string
	for id, hash := range stagedHash {
		if !priorSet[id] {
			added = append(added, id)
			continue
		}
		changed, err := recordChanged(db, sourceType, orgID, priorVersion.String(), id, hash)
		if err != nil {
			return nil, catalog.ChangeSummary{}, err
		}
		if changed {
			modified = append(modified, id)
		}
	}
	for id := range priorSet {
		if _, ok := stagedHash[id]; !ok {
			removed = append(removed, id)
		}
	}

	summary := catalog.ChangeSummary{
		EntriesBefore: len(priorIDs),
		EntriesAfter:  len(stagedHash),
		Added:         added,
		Removed:       removed,
		Modified:      modified,
	}

	var changes []catalog.Change
	if len(added) > 0 {
		changes = append(changes, catalog.Change{ChangeType: "added", Category: category, Count: len(added)})
	}
	if len(removed) > 0 {
		changes = append(changes, catalog.Change{ChangeType: "removed", Category: category, Count: len(removed)})
	}
	if len(modified) > 0 {
		changes = append(changes, catalog.Change{ChangeType: "modified", Category: category, Count: len(modified)})
	}

	if sourceType == catalog.SourceTypeInterProEntry {
		stagedIDs := make([]string, 0, len(stagedHash))
		for id := range stagedHash {
			stagedIDs = append(stagedIDs, id)
		}
		removedEntries := make(map[string]bool, len(removed))
		for _, id := range removed {
			if !strings.Contains(id, ":") {
				removedEntries[id] = true
			}
		}
		if lost := interProMembershipLoss(priorIDs, stagedIDs, removedEntries); lost > 0 {
			changes = append(changes, catalog.Change{ChangeType: "modified", Category: InterProMembershipCategory, Count: lost})
		}
	}

	return changes, summary, nil
}

// interProMembershipLoss counts InterPro entries that kept their entry_ac
// identifier (so are not already counted in removedEntries) but whose own
// matched-protein count dropped by more than interProMembershipLossThreshold
// between priorIDs and stagedIDs — InterPro's match records are identified
// as "{interpro_ac}:{protein_ac}" (internal/parser/interpro.go), distinct
// from the bare entry_ac identifier of the entry-list record itself.
func interProMembershipLoss(priorIDs, stagedIDs []string, removedEntries map[string]bool) int {
	priorCounts := interProMatchCounts(priorIDs)
	stagedCounts := interProMatchCounts(stagedIDs)

	lost := 0
	for entryAC, before := range priorCounts {
		if before == 0 || removedEntries[entryAC] {
			continue
		}
		after := stagedCounts[entryAC]
		if float64(after) < float64(before)*(1-interProMembershipLossThreshold) {
			lost++
		}
	}
	return lost
}

// interProMatchCounts tallies match-record identifiers ("{interpro_ac}:
// {protein_ac}") per interpro_ac, ignoring bare entry-list identifiers
// (which carry no colon).
func interProMatchCounts(ids []string) map[string]int {
	counts := make(map[string]int)
	for _, id := range ids {
		if idx := strings.Index(id, ":"); idx >= 0 {
			counts[id[:idx]]++
		}
	}
	return counts
}

// recordChanged recomputes the prior record's content digest from its
// committed JSON payload and compares it against the newly staged digest —
// the typed tables don't persist content_md5 directly, so this recovers it
// the same way NewRecord computed it at parse time.
func recordChanged(db *catalog.DB, sourceType catalog.SourceType, orgID, priorInternalVersion, identifier, stagedHash string) (bool, error) {
	data, err := db.GetTypedRecord(sourceType, orgID, identifier, priorInternalVersion)
	if err != nil {
		if bdperrors.IsKind(err, bdperrors.KindNotFound) {
			return true, nil // present in the identifier list but unreadable: treat as changed
		}
		return false, err
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		return false, bdperrors.WrapKind("versioning.recordChanged", bdperrors.KindInternal, "unmarshal prior record", err)
	}
	return parser.ContentMD5(decoded) != stagedHash, nil
}
