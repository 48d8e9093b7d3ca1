package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nishad/bdp/internal/resolution"
	"github.com/spf13/cobra"
)

var resolveOut string

var resolveCmd = &cobra.Command{
	Use:   "resolve <manifest.yaml>",
	Short: "Resolve a manifest into a pinned, checksummed lockfile",
	Long: `resolve parses a manifest naming sources and tools, walks the
pinned dependency graph, and emits a lockfile (spec §4.5). A manifest
whose transitive dependencies pin the same entry at two different
versions fails with the conflicting versions reported, not a lockfile.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}

		m, err := resolution.ParseManifest(data)
		if err != nil {
			return err
		}
		if result := resolution.ValidateManifest(m); !result.Valid {
			for _, issue := range result.Errors {
				fmt.Fprintf(os.Stderr, "error: %s: %s\n", issue.Field, issue.Message)
			}
			return fmt.Errorf("manifest validation failed")
		}

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		resolver := resolution.NewResolver(a.DB)
		lockfile, conflicts, err := resolver.Resolve(m)
		if err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
		if len(conflicts) > 0 {
			for _, c := range conflicts {
				fmt.Fprintf(os.Stderr, "conflict: %s pinned at multiple versions: %v\n", c.Entry, c.Versions)
			}
			return fmt.Errorf("resolution has %d conflict(s)", len(conflicts))
		}

		out, err := json.MarshalIndent(lockfile, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal lockfile: %w", err)
		}

		if resolveOut == "" {
			fmt.Println(string(out))
			return nil
		}
		if err := os.WriteFile(resolveOut, out, 0644); err != nil {
			return fmt.Errorf("write lockfile: %w", err)
		}
		fmt.Printf("wrote %s (digest %s)\n", resolveOut, lockfile.Digest)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveOut, "out", "", "Write the lockfile to this path instead of stdout")
}
