package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.0.1-alpha"
	commit  = "dev"
	date    = "unknown"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "bdp",
	Short: "Bioinformatics Data Platform registry and ETL engine",
	Long: `bdp ingests public biological datasets (UniProt, NCBI taxonomy,
GenBank/RefSeq, Gene Ontology, InterPro) into a versioned registry, applies
per-organization semantic-version bump policy, and resolves manifests into
pinned, checksummed lockfiles.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Example: `  # Ingest a new UniProt release
  bdp ingest --org uniprot --entry swissprot --source-type protein --external-version 2025_01 --url https://example/uniprot_sprot.dat.gz

  # Resolve a manifest into a lockfile
  bdp resolve manifest.yaml --out bdp.lock

  # Start the read-only status surface
  bdp serve --port 8080`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path (defaults to BDP_CONFIG or bdp.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
