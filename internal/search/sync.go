package search

import "github.com/nishad/bdp/internal/catalog"

// Syncer keeps Index in step with the catalog, following the teacher's
// sync.go idiom of a thin wrapper that re-derives documents from SQL state
// rather than tracking index deltas itself.
type Syncer struct {
	DB    *catalog.DB
	Index *Index
}

// SyncEntry reindexes a single entry's current latest version. Called
// after a job reaches completed and after a changelog write (spec §4.6),
// so the index only ever reflects committed state.
func (s *Syncer) SyncEntry(orgID, entryID, organism string) error {
	org, err := s.DB.GetOrganizationByID(orgID)
	if err != nil {
		return err
	}
	entry, err := s.DB.GetEntryByID(entryID)
	if err != nil {
		return err
	}
	version, err := s.DB.LatestVersion(entryID)
	if err != nil {
		return err
	}

	doc, err := BuildDocument(s.DB, org, entry, version, organism)
	if err != nil {
		return err
	}
	return s.Index.bleve.Index(documentID(org.Slug, entry.Slug), doc)
}

// FullSync reindexes every non-deprecated entry across every organization,
// rebuilding the index from scratch from the catalog's state. Organism
// metadata is not recoverable from a full resync without re-reading record
// data, so it is left blank here; SyncEntry from the ingestion/versioning
// write path is what keeps it populated going forward.
func (s *Syncer) FullSync() error {
	orgs, err := s.DB.ListOrganizations()
	if err != nil {
		return err
	}
	batch := s.Index.bleve.NewBatch()
	for _, org := range orgs {
		entries, err := s.DB.ListEntriesByOrganization(org.ID)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.Deprecated {
				continue
			}
			version, err := s.DB.LatestVersion(entry.ID)
			if err != nil {
				continue // no version committed yet, nothing to index
			}
			doc, err := BuildDocument(s.DB, org, entry, version, "")
			if err != nil {
				return err
			}
			if err := batch.Index(documentID(org.Slug, entry.Slug), doc); err != nil {
				return err
			}
		}
	}
	return s.Index.bleve.Batch(batch)
}
