package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/batonhq/baton/internal/render"
)

var (
	planManifest string
	planPipeline string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the execution plan for a pipeline without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(planManifest, true, false, false)
		if err != nil {
			return err
		}
		defer s.Close()

		plan, err := buildPlan(s, planPipeline)
		if err != nil {
			return err
		}

		fmt.Println(render.Plan(plan))

		if recs := s.coord.SuggestOptimizations(plan); len(recs) > 0 {
			fmt.Println()
			for _, r := range recs {
				fmt.Printf("[%s] %s (%s)\n", r.Type, r.Message, r.EstimatedImpact)
			}
		}
		return nil
	},
}

func init() {
	planCmd.Flags().StringVarP(&planManifest, "manifest", "f", "baton.yaml", "manifest file to load")
	planCmd.Flags().StringVarP(&planPipeline, "pipeline", "p", "", "pipeline to plan (optional when the manifest declares one)")
}
