package main

import (
	"encoding/json"
	"fmt"

	"github.com/nishad/bdp/internal/search"
	"github.com/spf13/cobra"
)

var (
	searchSourceType string
	searchLimit      int
	searchOffset     int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Query the catalog's full-text search index",
	Long: `search runs a query against the Bleve index over organizations,
entries, versions, and changelogs (spec §4.6). Pass --source-type to
narrow to one source type (protein|taxonomy|genomic_sequence|go_term|
interpro_entry).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		idx, err := search.Open(a.Config.Search.IndexPath)
		if err != nil {
			return fmt.Errorf("open search index: %w", err)
		}
		defer idx.Close()

		var result *search.SearchResult
		if searchSourceType != "" {
			result, err = search.SearchBySourceType(idx, searchSourceType, args[0], searchLimit, searchOffset)
		} else {
			result, err = search.Search(idx, args[0], searchLimit, searchOffset)
		}
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchSourceType, "source-type", "", "Restrict to a single source type")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum hits to return")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "Result offset for pagination")
}
