package main

import (
	"fmt"

	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/nishad/bdp/internal/versioning"
	"github.com/spf13/cobra"
)

// orgSeed names one organization's identity and versioning policy. Entries
// are not seeded here — each is the whole-release dataset an ingest run
// creates on first use (spec §4.3.3's (org, job_type, external_version) key
// makes a repeat ingest of an already-known version a no-op, but a brand
// new entry still needs one InsertEntry before its first job).
type orgSeed struct {
	Slug     string
	Name     string
	License  string
	Strategy catalog.VersioningStrategy
}

// knownOrgs mirrors config.knownSources' organization set, each carrying
// the bump policy spec §4.4.2 illustrates for UniProt and generalizes
// across the other four sources by the same change-category shape.
func knownOrgs() []orgSeed {
	return []orgSeed{
		{
			Slug: "uniprot", Name: "UniProt", License: "CC-BY-4.0",
			Strategy: catalog.VersioningStrategy{
				MajorTriggers: []catalog.ChangeTrigger{
					{ChangeType: "removed", Category: string(catalog.SourceTypeProtein)},
					{ChangeType: "modified", Category: string(catalog.SourceTypeProtein)},
				},
				MinorTriggers: []catalog.ChangeTrigger{
					{ChangeType: "added", Category: string(catalog.SourceTypeProtein)},
				},
				DefaultBump: "minor", CascadeOnMinor: true,
			},
		},
		{
			Slug: "taxonomy", Name: "NCBI Taxonomy", License: "public-domain",
			Strategy: catalog.VersioningStrategy{
				MajorTriggers: []catalog.ChangeTrigger{{ChangeType: "removed", Category: string(catalog.SourceTypeTaxonomy)}},
				MinorTriggers: []catalog.ChangeTrigger{{ChangeType: "added", Category: string(catalog.SourceTypeTaxonomy)}},
				DefaultBump:   "minor", CascadeOnMinor: true, CascadeOnMajor: true,
			},
		},
		{
			Slug: "genbank", Name: "GenBank/RefSeq", License: "public-domain",
			Strategy: catalog.VersioningStrategy{
				MajorTriggers: []catalog.ChangeTrigger{
					{ChangeType: "removed", Category: string(catalog.SourceTypeGenomicSequence)},
					{ChangeType: "modified", Category: string(catalog.SourceTypeGenomicSequence)},
				},
				MinorTriggers: []catalog.ChangeTrigger{{ChangeType: "added", Category: string(catalog.SourceTypeGenomicSequence)}},
				DefaultBump:   "minor",
			},
		},
		{
			Slug: "go", Name: "Gene Ontology", License: "CC-BY-4.0",
			Strategy: catalog.VersioningStrategy{
				MajorTriggers: []catalog.ChangeTrigger{{ChangeType: "removed", Category: string(catalog.SourceTypeGOTerm)}},
				MinorTriggers: []catalog.ChangeTrigger{
					{ChangeType: "added", Category: string(catalog.SourceTypeGOTerm)},
					{ChangeType: "modified", Category: string(catalog.SourceTypeGOTerm)},
				},
				DefaultBump: "minor", CascadeOnMajor: true,
			},
		},
		{
			Slug: "interpro", Name: "InterPro", License: "CC0-1.0",
			Strategy: catalog.VersioningStrategy{
				MajorTriggers: []catalog.ChangeTrigger{
					{ChangeType: "removed", Category: string(catalog.SourceTypeInterProEntry)},
					{ChangeType: "modified", Category: versioning.InterProMembershipCategory},
				},
				MinorTriggers: []catalog.ChangeTrigger{{ChangeType: "added", Category: string(catalog.SourceTypeInterProEntry)}},
				DefaultBump:   "minor", CascadeOnMinor: true,
			},
		},
	}
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Seed the registry's known organizations and their versioning policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		for _, seed := range knownOrgs() {
			if _, err := a.DB.GetOrganizationBySlug(seed.Slug); err == nil {
				fmt.Printf("organization %s already present, skipping\n", seed.Slug)
				continue
			} else if !bdperrors.IsKind(err, bdperrors.KindNotFound) {
				return fmt.Errorf("check organization %s: %w", seed.Slug, err)
			}

			org := &catalog.Organization{Slug: seed.Slug, Name: seed.Name, License: seed.License, VersioningStrategy: seed.Strategy}
			if err := a.DB.InsertOrganization(org); err != nil {
				return fmt.Errorf("insert organization %s: %w", seed.Slug, err)
			}
			fmt.Printf("seeded organization %s\n", seed.Slug)
		}
		return nil
	},
}
