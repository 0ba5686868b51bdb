package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/alecgunny/pyomicron/internal/config"
	"github.com/alecgunny/pyomicron/internal/flags"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the run configuration and state-flag expression",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func runValidate() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Configuration %s is valid\n", configFile)
	fmt.Printf("  group %s, chunk %d s, overlap %d s, formats %v\n",
		cfg.Group, cfg.ChunkDuration, cfg.OverlapDuration, cfg.OutputFormats)

	if cfg.OverlapDuration%2 != 0 {
		return fmt.Errorf("overlap-duration %d is odd, padding must be a whole number of seconds", cfg.OverlapDuration)
	}
	if cfg.OverlapDuration >= cfg.ChunkDuration {
		return fmt.Errorf("overlap-duration %d must be less than chunk-duration %d", cfg.OverlapDuration, cfg.ChunkDuration)
	}

	if cfg.StateFlags == "" {
		fmt.Println("  no state-flags set, the whole requested range will be analyzed")
		return nil
	}
	expr, err := flags.Parse(cfg.StateFlags)
	if err != nil {
		return fmt.Errorf("state-flags: %w", err)
	}
	names := expr.Names()
	sort.Strings(names)
	fmt.Printf("✓ State-flag expression references %d flag(s):\n", len(names))
	for _, name := range names {
		fmt.Printf("    %s\n", name)
	}
	return nil
}
