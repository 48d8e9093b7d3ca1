package search

import "github.com/nishad/bdp/internal/catalog"

// CatalogDocument is one indexed unit: an entry at its latest known
// version, carrying just enough of the changelog prose and licensing
// metadata to be discoverable (spec §4.6). The document ID is
// "{org_slug}:{entry_slug}", matching the manifest spec-string shape so a
// search hit can be pasted directly into a manifest.
type CatalogDocument struct {
	Org             string `json:"org"`
	Slug            string `json:"slug"`
	SourceType      string `json:"source_type"`
	Organism        string `json:"organism,omitempty"`
	InternalVersion string `json:"internal_version"`
	ExternalVersion string `json:"external_version"`
	SummaryText     string `json:"summary_text,omitempty"`
	License         string `json:"license,omitempty"`
}

// BuildDocument assembles a CatalogDocument for an entry's current latest
// version, pulling summary_text from its changelog (if one exists — the
// initial version of an entry with no prior has none) and organism from
// organism metadata the caller already extracted from the parsed record
// set (search has no business re-parsing raw records just to index them).
func BuildDocument(db *catalog.DB, org *catalog.Organization, entry *catalog.RegistryEntry, version *catalog.Version, organism string) (CatalogDocument, error) {
	doc := CatalogDocument{
		Org:             org.Slug,
		Slug:            entry.Slug,
		SourceType:      "",
		Organism:        organism,
		InternalVersion: version.String(),
		ExternalVersion: version.ExternalVersion,
		License:         org.License,
	}

	if ds, err := db.GetDataSource(entry.ID); err == nil {
		doc.SourceType = string(ds.SourceType)
	}

	if cl, err := db.GetChangelog(version.ID); err == nil {
		doc.SummaryText = cl.SummaryText
	}

	return doc, nil
}

func documentID(org, slug string) string { return org + ":" + slug }
