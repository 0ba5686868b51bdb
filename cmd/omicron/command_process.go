package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alecgunny/pyomicron/internal/config"
	"github.com/alecgunny/pyomicron/internal/frames"
	"github.com/alecgunny/pyomicron/internal/model"
	"github.com/alecgunny/pyomicron/internal/segments"
	"github.com/alecgunny/pyomicron/internal/store"
	"github.com/alecgunny/pyomicron/internal/tracker"
	"github.com/alecgunny/pyomicron/internal/workflow"
)

var (
	processSegmentsDir string
	processFrameDir    string
	processCacheFile   string
	processNoSubmit    bool
	processRescue      bool
	processOnline      bool
	processWatch       bool
)

var processCmd = &cobra.Command{
	Use:   "process <gps-start> <gps-end>",
	Short: "Plan and submit a DAG for a time range",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("bad gps-start: %w", err)
		}
		end, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad gps-end: %w", err)
		}
		return runProcess(model.Range{Start: start, End: end})
	},
}

func registerProcessCommand(root *cobra.Command) {
	root.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processSegmentsDir, "segments-dir", "segments", "Directory of per-flag segment files")
	processCmd.Flags().StringVar(&processFrameDir, "frame-dir", "", "Directory to scan for frame files")
	processCmd.Flags().StringVar(&processCacheFile, "cache-file", "", "Use frame locations from FILE instead of querying the archive")
	processCmd.Flags().BoolVar(&processNoSubmit, "no-submit", false, "Write the DAG but do not submit it")
	processCmd.Flags().BoolVar(&processRescue, "rescue", false, "Rebuild and submit a retry sub-DAG for failed nodes instead of a new plan")
	processCmd.Flags().BoolVar(&processOnline, "online", false, "Trim the plan at the live edge of available data")
	processCmd.Flags().BoolVar(&processWatch, "watch", false, "Poll the engine until the run completes")
}

func runProcess(rng model.Range) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("□ Planning %s for group %s...\n", rng, cfg.Group)
	planner := &workflow.Planner{
		Config:  cfg,
		Store:   &segments.FileStore{Dir: processSegmentsDir},
		Archive: processArchive(),
		RunDir:  runDir,
		Online:  processOnline,
		DataEnd: rng.End,
	}
	pc, err := planner.Plan(ctx, rng)
	if err != nil {
		return err
	}
	for _, w := range pc.Warnings {
		fmt.Printf("  ! %s\n", w)
	}

	fmt.Printf("□ Segments selected: %d (%d s)\n", len(pc.Segments), segmentDuration(pc))
	for _, seg := range pc.Segments {
		fmt.Printf("    %d %d [%d]\n", seg.Start, seg.End, seg.Duration())
	}
	fmt.Printf("□ Trigger coverage: %d s\n", model.TotalDuration(pc.TriggerSpan(cfg.Pad())))
	fmt.Printf("□ Jobs: %d analysis, %d merge groups\n", len(pc.Jobs), len(pc.Groups))

	ledger, err := store.Open(ledgerPath(cfg))
	if err != nil {
		return err
	}
	defer ledger.Close()

	if processRescue {
		return runRescue(ctx, cfg, pc, ledger)
	}

	alreadyWritten, err := pc.Materialize()
	if err != nil {
		return err
	}
	fmt.Printf("✓ Dag with %d nodes written to %s\n", pc.Dag.Len(), pc.DagPath)

	if processNoSubmit {
		fmt.Println("✓ Skipping submission (--no-submit)")
		return nil
	}
	if alreadyWritten {
		fmt.Println("✓ Identical DAG already written; re-submission detected, nothing to do")
		return nil
	}

	runID, err := ledger.CreateRun(rng, cfg.StateFlags, pc.DagPath)
	if err != nil {
		return err
	}

	engine := &tracker.ExecEngine{
		SubmitCommand: cfg.Engine.SubmitCommand,
		StatusCommand: cfg.Engine.StatusCommand,
	}
	submission, err := engine.Submit(ctx, pc.DagPath)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Submitted as %s\n", submission)

	if !processWatch {
		return nil
	}
	return watch(ctx, cfg, pc, engine, submission, ledger, runID)
}

func runRescue(ctx context.Context, cfg *config.Config, pc *workflow.PlanningContext, ledger *store.Ledger) error {
	runID, _, _, err := ledger.LatestRun()
	if err != nil {
		return fmt.Errorf("rescue: no previous run recorded: %w", err)
	}
	states, err := ledger.LastStates(runID)
	if err != nil {
		return err
	}
	if err := workflow.ApplyStates(pc.Dag, states); err != nil {
		return err
	}
	created, err := workflow.Rescue(pc.Dag, cfg.MaxRetries)
	if err != nil {
		return err
	}
	if created == 0 {
		fmt.Println("✓ No failed nodes within retry budget; nothing to rescue")
		return nil
	}

	rescuePath := pc.DagPath + ".rescue"
	f, err := os.Create(rescuePath)
	if err != nil {
		return fmt.Errorf("write rescue dag: %w", err)
	}
	defer f.Close()
	if err := pc.Dag.WriteRescue(f); err != nil {
		return err
	}
	fmt.Printf("✓ Rescue DAG with %d retry nodes written to %s\n", created, rescuePath)

	if processNoSubmit {
		return nil
	}
	engine := &tracker.ExecEngine{
		SubmitCommand: cfg.Engine.SubmitCommand,
		StatusCommand: cfg.Engine.StatusCommand,
	}
	submission, err := engine.Submit(ctx, rescuePath)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Rescue submitted as %s\n", submission)
	return nil
}

func watch(ctx context.Context, cfg *config.Config, pc *workflow.PlanningContext, engine tracker.Engine, submission string, ledger *store.Ledger, runID string) error {
	interval, err := cfg.PollIntervalDuration()
	if err != nil {
		return err
	}
	t := &tracker.Tracker{
		Engine:         engine,
		Dag:            pc.Dag,
		Submission:     submission,
		RunID:          runID,
		Ledger:         ledger,
		MaxRetries:     cfg.MaxRetries,
		NoDataExitCode: cfg.NoDataExitCode,
		Interval:       interval,
	}

	actions := make(chan []tracker.Action)
	done := make(chan error, 1)
	go func() { done <- t.Run(ctx, actions) }()

	for {
		select {
		case acts := <-actions:
			for _, a := range acts {
				switch a.Kind {
				case tracker.ActionRetry:
					fmt.Printf("  ↻ retrying as %s\n", a.Node)
				case tracker.ActionMarkGapped:
					fmt.Printf("  ! no data for %s, recorded as gap\n", a.Gap)
				case tracker.ActionRequestMerge:
					fmt.Printf("  □ merge group %s ready\n", a.Group)
				case tracker.ActionComplete:
					fmt.Println("✓ All nodes succeeded")
				}
			}
		case err := <-done:
			return err
		}
	}
}

func processArchive() frames.Archive {
	if processCacheFile != "" {
		return &frames.CacheArchive{Path: processCacheFile}
	}
	return &frames.DirArchive{Dir: processFrameDir}
}

func segmentDuration(pc *workflow.PlanningContext) int64 {
	var total int64
	for _, seg := range pc.Segments {
		total += seg.Duration()
	}
	return total
}

func ledgerPath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.LedgerPath) {
		return cfg.LedgerPath
	}
	return filepath.Join(runDir, cfg.LedgerPath)
}
