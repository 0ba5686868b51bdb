package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alecgunny/pyomicron/internal/config"
	"github.com/alecgunny/pyomicron/internal/dag"
	"github.com/alecgunny/pyomicron/internal/model"
	"github.com/alecgunny/pyomicron/internal/store"
)

var (
	statusAllGaps bool
	statusAckGap  []string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report node-state summary for the latest run",
	Long: "Summarize recorded node states and data gaps for the most recent " +
		"planning run. Exits non-zero unless every node reached terminal success.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus()
	},
}

func registerStatusCommand(root *cobra.Command) {
	root.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusAllGaps, "all-gaps", false, "Include acknowledged gaps in the report")
	statusCmd.Flags().StringSliceVar(&statusAckGap, "acknowledge-gap", nil, "Acknowledge a gap as 'start-end' (repeatable)")
}

func runStatus() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	ledger, err := store.Open(ledgerPath(cfg))
	if err != nil {
		return err
	}
	defer ledger.Close()

	runID, rng, dagPath, err := ledger.LatestRun()
	if err != nil {
		return fmt.Errorf("no runs recorded: %w", err)
	}
	fmt.Printf("Run %s  %s\n", runID, rng)
	fmt.Printf("Dag %s\n", dagPath)

	for _, arg := range statusAckGap {
		gap, err := parseGap(arg)
		if err != nil {
			return err
		}
		if err := ledger.AcknowledgeGap(runID, gap); err != nil {
			return err
		}
		fmt.Printf("✓ Acknowledged gap %s\n", gap)
	}

	states, err := ledger.LastStates(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no node states recorded for run %s", runID)
	}

	counts := make(map[dag.State]int)
	for _, st := range states {
		counts[st]++
	}
	fmt.Printf("\nNodes: %d\n", len(states))
	for st := dag.StateIdle; st <= dag.StateExhausted; st++ {
		if counts[st] > 0 {
			fmt.Printf("  %-16s %d\n", st, counts[st])
		}
	}

	gaps, err := ledger.Gaps(runID, statusAllGaps)
	if err != nil {
		return err
	}
	if len(gaps) > 0 {
		fmt.Printf("\nGaps (%d):\n", len(gaps))
		for _, g := range gaps {
			fmt.Printf("  %d %d [%d]\n", g.Start, g.End, g.Duration())
		}
	}

	var failed []string
	succeeded := 0
	for node, st := range states {
		switch st {
		case dag.StateSucceeded:
			succeeded++
		case dag.StateFailed, dag.StateExhausted:
			failed = append(failed, node)
		}
	}
	sort.Strings(failed)
	for _, node := range failed {
		fmt.Printf("  ✗ %s: %s\n", node, states[node])
	}

	if succeeded != len(states) {
		return fmt.Errorf("%d of %d nodes in terminal success", succeeded, len(states))
	}
	fmt.Println("\n✓ All nodes succeeded")
	return nil
}

func parseGap(arg string) (model.Range, error) {
	startText, endText, ok := strings.Cut(arg, "-")
	if !ok {
		return model.Range{}, fmt.Errorf("bad gap %q, expected start-end", arg)
	}
	start, err := strconv.ParseInt(startText, 10, 64)
	if err != nil {
		return model.Range{}, fmt.Errorf("bad gap %q: %w", arg, err)
	}
	end, err := strconv.ParseInt(endText, 10, 64)
	if err != nil {
		return model.Range{}, fmt.Errorf("bad gap %q: %w", arg, err)
	}
	return model.Range{Start: start, End: end}, nil
}
