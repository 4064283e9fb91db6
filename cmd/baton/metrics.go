package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/batonhq/baton/internal/config"
	"github.com/batonhq/baton/internal/coordinator"
	"github.com/batonhq/baton/internal/perf"
	"github.com/batonhq/baton/internal/render"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show aggregate performance metrics from persisted run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Println(render.Metrics(coord.Metrics(), coord.Profiles()))
		return nil
	},
}

// openHistory builds a coordinator seeded from the persisted run
// history, for commands that only read performance data.
func openHistory() (*coordinator.Coordinator, *perf.Store, error) {
	cfg, store, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	coord, err := coordinator.New(coordinator.Config{
		HistoryLimit: cfg.History.Limit,
		Store:        store,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return coord, store, nil
}

// openStore opens the configured performance store.
func openStore() (*config.Config, *perf.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.History.DBPath == "off" {
		return nil, nil, fmt.Errorf("history persistence is disabled (history.db_path is \"off\")")
	}

	path := cfg.History.DBPath
	if path == "" {
		path = perf.DefaultDBPath()
	}
	store, err := perf.OpenStore(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open performance store: %w", err)
	}
	return cfg, store, nil
}
