package main

import (
	"fmt"

	"github.com/praetorian-inc/sieve/pkg/store"
	"github.com/spf13/cobra"
)

var (
	mergeOutput string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source1.db> <source2.db> [source3.db...]",
	Short: "Merge multiple Sieve databases",
	Long: `Merge multiple Sieve databases into a single output database.

This is useful for combining results from distributed scans or
merging results from different scan targets.

Deduplication is automatic - duplicate blobs, rules, matches and findings
are only stored once in the merged database.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output database path")
}

func runMerge(cmd *cobra.Command, args []string) error {
	stats, err := store.Merge(store.MergeConfig{
		SourcePaths: args,
		DestPath:    mergeOutput,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	logger.Debug("merge finished", "sources", stats.SourcesProcessed, "output", mergeOutput)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Merge complete:\n")
	fmt.Fprintf(out, "  Sources processed: %d\n", stats.SourcesProcessed)
	fmt.Fprintf(out, "  Blobs merged: %d\n", stats.BlobsMerged)
	fmt.Fprintf(out, "  Rules merged: %d\n", stats.RulesMerged)
	fmt.Fprintf(out, "  Matches merged: %d\n", stats.MatchesMerged)
	fmt.Fprintf(out, "  Findings merged: %d\n", stats.FindingsMerged)
	fmt.Fprintf(out, "  Provenance merged: %d\n", stats.ProvenanceMerged)
	fmt.Fprintf(out, "Output: %s\n", mergeOutput)

	return nil
}
