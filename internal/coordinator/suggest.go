package coordinator

import (
	"fmt"
	"time"

	"github.com/batonhq/baton/pkg/models"
)

// SuggestOptimizations analyzes a plan before execution and returns
// suggestions based on declared estimates and learned profiles.
func (c *Coordinator) SuggestOptimizations(plan *models.ExecutionPlan) []models.Recommendation {
	var recs []models.Recommendation
	defs := c.reg.Snapshot()

	estimated := criticalPathEstimate(plan, defs)
	if target := plan.Options.TargetDuration; target > 0 && estimated > target {
		recs = append(recs, models.Recommendation{
			Type: models.RecommendPerformance,
			Message: fmt.Sprintf("estimated duration %s exceeds the %s target",
				estimated, target),
			EstimatedImpact: fmt.Sprintf("shorten the critical path by %s", estimated-target),
		})
	}

	if max := plan.Constraints.MaxCost; max > 0 {
		if cost := plan.EstimatedCost(defs); cost > max {
			recs = append(recs, models.Recommendation{
				Type: models.RecommendCost,
				Message: fmt.Sprintf("estimated cost %.4f exceeds the %.4f limit",
					cost, max),
				EstimatedImpact: fmt.Sprintf("trim %.4f of estimated spend", cost-max),
			})
		}
	}

	for _, step := range plan.Steps {
		def, ok := defs[step.Item]
		if !ok {
			continue
		}
		rate := c.tracker.SuccessRate(step.Item, def.Reliability)
		if floor := plan.Constraints.MinReliability; floor > 0 && rate < floor {
			recs = append(recs, models.Recommendation{
				Type: models.RecommendReliability,
				Message: fmt.Sprintf("item %s success rate %.2f is below the %.2f floor",
					step.Item, rate, floor),
				EstimatedImpact: "retries already attached; consider replacing the item",
			})
		}
	}

	if plan.Options.Parallel && len(plan.Steps) > 1 && plan.GroupCount() == len(plan.Steps) {
		recs = append(recs, models.Recommendation{
			Type:            models.RecommendParallelism,
			Message:         "every step is in its own group; the dependency chain prevents any concurrency",
			EstimatedImpact: "removing one chain link merges two groups",
		})
	}

	if !plan.Options.Caching {
		for _, step := range plan.Steps {
			if def, ok := defs[step.Item]; ok && def.Cacheable {
				recs = append(recs, models.Recommendation{
					Type:            models.RecommendPerformance,
					Message:         "caching is disabled but the plan contains cache-eligible items",
					EstimatedImpact: "repeat runs with identical inputs would skip executor calls",
				})
				break
			}
		}
	}

	return recs
}

// criticalPathEstimate sums, per group, the maximum estimated duration
// of the group's steps. With parallelism off it sums all steps.
func criticalPathEstimate(plan *models.ExecutionPlan, defs map[string]models.ItemDefinition) time.Duration {
	if !plan.Options.Parallel {
		var sum time.Duration
		for _, s := range plan.Steps {
			if def, ok := defs[s.Item]; ok {
				sum += def.EstimatedDuration
			}
		}
		return sum
	}

	groupMax := make(map[int]time.Duration)
	for _, s := range plan.Steps {
		def, ok := defs[s.Item]
		if !ok {
			continue
		}
		if def.EstimatedDuration > groupMax[s.Group] {
			groupMax[s.Group] = def.EstimatedDuration
		}
	}

	var total time.Duration
	for _, d := range groupMax {
		total += d
	}
	return total
}
