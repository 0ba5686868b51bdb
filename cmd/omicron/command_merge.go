package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alecgunny/pyomicron/internal/merge"
)

var mergeOutput string

var mergeCmd = &cobra.Command{
	Use:   "merge <input>...",
	Short: "Consolidate same-kind trigger files into one output",
	Long: "Merge constituent trigger files into a single time-ordered file. " +
		"Unreadable or empty constituents are skipped and reported in the " +
		"metadata sidecar rather than failing the merge.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMerge(args)
	},
}

func registerMergeCommand(root *cobra.Command) {
	root.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "Consolidated output path (required)")
	mergeCmd.MarkFlagRequired("output")
}

func runMerge(inputs []string) error {
	m := &merge.Merger{Stderr: os.Stderr}
	report, err := m.Merge(inputs, mergeOutput)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Merged %d of %d inputs (%d records) into %s\n",
		len(report.Merged), len(inputs), report.Records, report.Output)
	if report.Incomplete() {
		for input, reason := range report.Skipped {
			fmt.Printf("  ! skipped %s: %s\n", input, reason)
		}
	}
	return nil
}
