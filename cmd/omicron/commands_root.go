package main

import "github.com/spf13/cobra"

var (
	configFile string
	runDir     string
)

var rootCmd = &cobra.Command{
	Use:   "omicron",
	Short: "Workflow planner: time range → batch-engine DAG",
	Long: "omicron plans large-scale batch analysis of time-series sensor data: " +
		"it selects analyzable segments, locates frame files, partitions the work " +
		"into cluster jobs, and emits a dependency DAG for the external batch engine.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config-file", "c", "config.yaml", "Run configuration file")
	rootCmd.PersistentFlags().StringVarP(&runDir, "run-dir", "d", ".", "Directory for run artifacts (cache, dag, ledger)")

	registerProcessCommand(rootCmd)
	registerStatusCommand(rootCmd)
	registerMergeCommand(rootCmd)
	registerValidateCommand(rootCmd)
}
