package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the persisted step-result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show persisted cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, hits, err := store.CacheCount()
		if err != nil {
			return err
		}
		fmt.Printf("persisted entries: %d  total hits: %d\n", entries, hits)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all persisted cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.PurgeCache()
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d cache entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
