package engine

import (
	"fmt"

	"github.com/batonhq/baton/pkg/models"
)

// recommend compares a run's aggregate totals against the plan's
// targets and constraints and generates improvement suggestions.
func recommend(plan *models.ExecutionPlan, result *models.ExecutionResult) []models.Recommendation {
	var recs []models.Recommendation

	if target := plan.Options.TargetDuration; target > 0 && result.TotalDuration > target {
		recs = append(recs, models.Recommendation{
			Type: models.RecommendPerformance,
			Message: fmt.Sprintf("run took %s, exceeding the %s target",
				result.TotalDuration, target),
			EstimatedImpact: fmt.Sprintf("reduce total duration by %s to meet target",
				result.TotalDuration-target),
		})
	}

	if max := plan.Constraints.MaxDuration; max > 0 && result.TotalDuration > max {
		recs = append(recs, models.Recommendation{
			Type: models.RecommendPerformance,
			Message: fmt.Sprintf("run took %s, violating the %s maximum duration constraint",
				result.TotalDuration, max),
			EstimatedImpact: "constraint violated; split the plan or raise the limit",
		})
	}

	if max := plan.Constraints.MaxCost; max > 0 && result.TotalCost > max {
		recs = append(recs, models.Recommendation{
			Type: models.RecommendCost,
			Message: fmt.Sprintf("run cost %.4f, exceeding the %.4f limit",
				result.TotalCost, max),
			EstimatedImpact: fmt.Sprintf("save %.4f by caching or removing items",
				result.TotalCost-max),
		})
	}

	if failures := countFailures(result.Steps); failures > 0 {
		recs = append(recs, models.Recommendation{
			Type:            models.RecommendReliability,
			Message:         fmt.Sprintf("%d of %d steps failed", failures, len(result.Steps)),
			EstimatedImpact: "investigate failing items or raise their retry budget",
		})
	} else if floor := plan.Constraints.MinReliability; floor > 0 {
		if rate := successRate(result.Steps); rate < floor {
			recs = append(recs, models.Recommendation{
				Type: models.RecommendReliability,
				Message: fmt.Sprintf("observed success rate %.2f is below the %.2f floor",
					rate, floor),
				EstimatedImpact: "add retries or replace unreliable items",
			})
		}
	}

	if len(result.Steps) > 1 && result.Optimization.ParallelSteps == 0 && plan.Options.Parallel {
		recs = append(recs, models.Recommendation{
			Type:            models.RecommendParallelism,
			Message:         "no steps ran concurrently despite parallelism being enabled",
			EstimatedImpact: "break dependency chains to unlock concurrent groups",
		})
	}

	return recs
}

func countFailures(steps []models.StepResult) int {
	n := 0
	for _, s := range steps {
		if !s.Success {
			n++
		}
	}
	return n
}

func successRate(steps []models.StepResult) float64 {
	if len(steps) == 0 {
		return 1
	}
	return float64(len(steps)-countFailures(steps)) / float64(len(steps))
}
