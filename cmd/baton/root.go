package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "baton",
	Short: "Dependency-aware work item planner and executor",
	Long: `Baton schedules named, interdependent work items as an optimized
plan: it resolves dependency ordering, groups independent items for
concurrent execution, caches repeatable results, retries transient
failures with backoff, and learns per-item performance over time.

Items and pipelines are declared in a YAML manifest; see 'baton run'.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
