package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/batonhq/baton/internal/config"
	"github.com/batonhq/baton/internal/perf"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		dbPath := cfg.History.DBPath
		if dbPath == "" {
			dbPath = perf.DefaultDBPath()
		}

		fmt.Printf("user config:           %s\n", config.GetUserConfigPath())
		fmt.Println()
		fmt.Printf("engine.max_concurrent: %d\n", cfg.Engine.MaxConcurrent)
		fmt.Printf("engine.debug_log:      %s\n", orNone(cfg.Engine.DebugLog))
		fmt.Printf("cache.max_entries:     %d\n", cfg.Cache.MaxEntries)
		fmt.Printf("history.limit:         %d\n", cfg.History.Limit)
		fmt.Printf("history.db_path:       %s\n", dbPath)
		fmt.Printf("simulate.seed:         %d\n", cfg.Simulate.Seed)
		fmt.Printf("simulate.scale:        %.2f\n", cfg.Simulate.Scale)
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
