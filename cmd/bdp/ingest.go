package main

import (
	"fmt"
	"strings"

	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/nishad/bdp/internal/ingestion"
	"github.com/nishad/bdp/internal/metrics"
	"github.com/nishad/bdp/internal/search"
	"github.com/nishad/bdp/internal/ui"
	"github.com/nishad/bdp/internal/versioning"
	"github.com/spf13/cobra"
)

var (
	ingestOrg             string
	ingestEntry           string
	ingestSourceType      string
	ingestExternalVersion string
	ingestURLs            []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run an ingestion job for one organization's upstream release",
	Long: `ingest drives a single Ingestion Job through download, partition,
parse, and store (spec §4.3). Running it again for an external version
already completed is a no-op; running it again after a crash resumes from
persisted state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestOrg == "" || ingestEntry == "" || ingestSourceType == "" || ingestExternalVersion == "" || len(ingestURLs) == 0 {
			return fmt.Errorf("--org, --entry, --source-type, --external-version, and at least one --url are required")
		}

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		org, err := a.DB.GetOrganizationBySlug(ingestOrg)
		if err != nil {
			return fmt.Errorf("look up organization %s (run 'bdp bootstrap' first?): %w", ingestOrg, err)
		}

		entry, err := a.DB.GetEntry(org.ID, ingestEntry)
		if bdperrors.IsKind(err, bdperrors.KindNotFound) {
			entry = &catalog.RegistryEntry{OrganizationID: org.ID, Slug: ingestEntry, Kind: catalog.EntryKindDataSource}
			if err := a.DB.InsertEntry(entry); err != nil {
				return fmt.Errorf("create entry %s: %w", ingestEntry, err)
			}
			fmt.Printf("created entry %s:%s\n", org.Slug, entry.Slug)
		} else if err != nil {
			return fmt.Errorf("look up entry %s: %w", ingestEntry, err)
		}

		versions := &versioning.Engine{DB: a.DB}
		coordinator := &ingestion.Coordinator{
			DB:         a.DB,
			Blobs:      a.Blobs,
			PoolSize:   a.Config.Worker.PoolSize,
			Metrics:    metrics.NewIngestion(),
			Versions:   versions,
			Changelogs: versions,
		}

		spec := ingestion.JobSpec{
			OrganizationID:  org.ID,
			OrgSlug:         org.Slug,
			EntryID:         entry.ID,
			EntrySlug:       entry.Slug,
			SourceType:      catalog.SourceType(ingestSourceType),
			ExternalVersion: ingestExternalVersion,
			Resolver:        ingestion.StaticResolver{URLTemplate: staticFileList(ingestURLs)},
		}

		job, err := coordinator.StartOrResumeJob(spec)
		if err != nil {
			return fmt.Errorf("start or resume job: %w", err)
		}
		fmt.Printf("job %s: %s\n", job.ID, job.Status)

		err = ui.ShowSpinner(fmt.Sprintf("%s:%s %s", org.Slug, entry.Slug, ingestExternalVersion), func() error {
			return coordinator.Run(cmd.Context(), job, spec)
		})
		if err != nil {
			return fmt.Errorf("run job: %w", err)
		}
		fmt.Printf("job %s: %s\n", job.ID, job.Status)

		if a.Config.Search.Enabled {
			if err := syncSearchIndex(a, org.ID, entry.ID); err != nil {
				fmt.Printf("warning: search index sync failed: %v\n", err)
			}
		}
		return nil
	},
}

// staticFileList renders one ExpectedFile per --url flag, named by its
// basename (UniProt's metalink response names several files per release;
// a hand-specified ingest only ever names the ones the operator gives it).
func staticFileList(urls []string) func(externalVersion string) []ingestion.ExpectedFile {
	return func(externalVersion string) []ingestion.ExpectedFile {
		files := make([]ingestion.ExpectedFile, 0, len(urls))
		for _, u := range urls {
			name := u
			if idx := strings.LastIndex(u, "/"); idx >= 0 {
				name = u[idx+1:]
			}
			files = append(files, ingestion.ExpectedFile{Name: name, URL: u})
		}
		return files
	}
}

func syncSearchIndex(a *app, orgID, entryID string) error {
	idx, err := search.Open(a.Config.Search.IndexPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	syncer := &search.Syncer{DB: a.DB, Index: idx}
	return syncer.SyncEntry(orgID, entryID, "")
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOrg, "org", "", "Organization slug (e.g. uniprot)")
	ingestCmd.Flags().StringVar(&ingestEntry, "entry", "", "Entry slug within the organization (e.g. swissprot)")
	ingestCmd.Flags().StringVar(&ingestSourceType, "source-type", "", "Source type (protein|taxonomy|genomic_sequence|go_term|interpro_entry)")
	ingestCmd.Flags().StringVar(&ingestExternalVersion, "external-version", "", "Upstream release label (e.g. 2025_01)")
	ingestCmd.Flags().StringArrayVar(&ingestURLs, "url", nil, "Upstream file URL (repeatable)")
}
