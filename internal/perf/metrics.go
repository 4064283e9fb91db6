package perf

import (
	"sort"
	"time"
)

// BottleneckStat ranks an item by its total time impact across the
// retained history.
type BottleneckStat struct {
	// Item is the item name.
	Item string `json:"item"`
	// MeanDuration is the average step duration observed.
	MeanDuration time.Duration `json:"mean_duration"`
	// Occurrences is how many times the item appeared in history.
	Occurrences int `json:"occurrences"`
	// Impact is MeanDuration * Occurrences, the ranking key.
	Impact time.Duration `json:"impact"`
}

// Trends holds percentage deltas between the older and newer halves of
// the retained history. Positive values are improvements: durations
// and costs falling, success rates rising.
type Trends struct {
	Duration    float64 `json:"duration_pct"`
	Cost        float64 `json:"cost_pct"`
	SuccessRate float64 `json:"success_rate_pct"`
}

// AggregateMetrics is the on-demand summary of everything the tracker
// has observed.
type AggregateMetrics struct {
	// TotalExecutions is the number of retained plan runs.
	TotalExecutions int `json:"total_executions"`
	// AvgPlanDuration is the mean total duration across runs.
	AvgPlanDuration time.Duration `json:"avg_plan_duration"`
	// ParallelismRate is parallel-eligible steps over total steps.
	ParallelismRate float64 `json:"parallelism_rate"`
	// CacheHitRate is cache hits over total steps.
	CacheHitRate float64 `json:"cache_hit_rate"`
	// ErrorRate is failed steps over total steps.
	ErrorRate float64 `json:"error_rate"`
	// CostEfficiency is successful step executions per unit cost.
	CostEfficiency float64 `json:"cost_efficiency"`
	// TopBottlenecks ranks the five worst items by total time impact.
	TopBottlenecks []BottleneckStat `json:"top_bottlenecks,omitempty"`
	// Trends compares the older half of history to the newer half.
	Trends Trends `json:"trends"`
}

// Metrics computes aggregate metrics over the retained history.
func (t *Tracker) Metrics() AggregateMetrics {
	t.mu.RLock()
	history := append([]HistoryEntry(nil), t.history...)
	t.mu.RUnlock()

	m := AggregateMetrics{TotalExecutions: len(history)}
	if len(history) == 0 {
		return m
	}

	var (
		totalDuration  time.Duration
		totalCost      float64
		totalSteps     int
		parallelSteps  int
		cacheHits      int
		failedSteps    int
		successSteps   int
		itemDurations  = make(map[string]time.Duration)
		itemOccurrence = make(map[string]int)
	)

	for _, entry := range history {
		r := entry.Result
		totalDuration += r.TotalDuration
		totalCost += r.TotalCost
		totalSteps += len(r.Steps)
		parallelSteps += r.Optimization.ParallelSteps
		cacheHits += r.Optimization.CacheHits

		for _, step := range r.Steps {
			if step.Success {
				successSteps++
			} else {
				failedSteps++
			}
			itemDurations[step.Item] += step.Duration
			itemOccurrence[step.Item]++
		}
	}

	m.AvgPlanDuration = totalDuration / time.Duration(len(history))
	if totalSteps > 0 {
		m.ParallelismRate = float64(parallelSteps) / float64(totalSteps)
		m.CacheHitRate = float64(cacheHits) / float64(totalSteps)
		m.ErrorRate = float64(failedSteps) / float64(totalSteps)
	}
	if totalCost > 0 {
		m.CostEfficiency = float64(successSteps) / totalCost
	}

	m.TopBottlenecks = topBottlenecks(itemDurations, itemOccurrence, 5)
	m.Trends = computeTrends(history)

	return m
}

// topBottlenecks ranks items by mean duration times frequency.
func topBottlenecks(durations map[string]time.Duration, occurrences map[string]int, n int) []BottleneckStat {
	stats := make([]BottleneckStat, 0, len(durations))
	for item, total := range durations {
		count := occurrences[item]
		if count == 0 {
			continue
		}
		mean := total / time.Duration(count)
		stats = append(stats, BottleneckStat{
			Item:         item,
			MeanDuration: mean,
			Occurrences:  count,
			Impact:       mean * time.Duration(count),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Impact != stats[j].Impact {
			return stats[i].Impact > stats[j].Impact
		}
		return stats[i].Item < stats[j].Item
	})

	if len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

// computeTrends compares the older half of history to the newer half.
// Fewer than two entries yields zero deltas.
func computeTrends(history []HistoryEntry) Trends {
	if len(history) < 2 {
		return Trends{}
	}

	mid := len(history) / 2
	older, newer := history[:mid], history[mid:]

	oldDur, oldCost, oldSuccess := halfStats(older)
	newDur, newCost, newSuccess := halfStats(newer)

	var t Trends
	// Falling duration and cost are improvements.
	if oldDur > 0 {
		t.Duration = (oldDur - newDur) / oldDur * 100
	}
	if oldCost > 0 {
		t.Cost = (oldCost - newCost) / oldCost * 100
	}
	// A rising success rate is an improvement.
	if oldSuccess > 0 {
		t.SuccessRate = (newSuccess - oldSuccess) / oldSuccess * 100
	}
	return t
}

// halfStats returns mean duration (as float seconds of time.Duration),
// mean cost, and mean run success rate for a slice of history.
func halfStats(entries []HistoryEntry) (meanDuration, meanCost, successRate float64) {
	if len(entries) == 0 {
		return 0, 0, 0
	}

	var dur, cost, successes float64
	for _, e := range entries {
		dur += float64(e.Result.TotalDuration)
		cost += e.Result.TotalCost
		if e.Result.Success {
			successes++
		}
	}

	n := float64(len(entries))
	return dur / n, cost / n, successes / n
}
