// Package render formats plans, results and metrics for terminal
// output.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/batonhq/baton/internal/engine"
	"github.com/batonhq/baton/internal/perf"
	"github.com/batonhq/baton/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	groupStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// Plan renders a plan's groups and steps as a bordered block.
func Plan(plan *models.ExecutionPlan) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("Plan %s — %s", plan.ID, plan.Name)))
	b.WriteString("\n")
	if plan.Description != "" {
		b.WriteString(dimStyle.Render(plan.Description))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d steps, %d groups, advisory timeout %s",
		len(plan.Steps), plan.GroupCount(), plan.Timeout)))
	b.WriteString("\n\n")

	currentGroup := -1
	for _, step := range plan.Steps {
		if step.Group != currentGroup {
			currentGroup = step.Group
			b.WriteString(groupStyle.Render(fmt.Sprintf("Group %d", currentGroup)))
			b.WriteString("\n")
		}
		line := fmt.Sprintf("  %s", step.Item)
		if len(step.DependsOn) > 0 {
			line += dimStyle.Render(fmt.Sprintf("  (after %s)", strings.Join(step.DependsOn, ", ")))
		}
		if step.Retry.MaxRetries > 0 {
			line += dimStyle.Render(fmt.Sprintf("  [retries: %d]", step.Retry.MaxRetries))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// Result prints a run's step outcomes and summary to stdout.
func Result(result *models.ExecutionResult) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	for _, step := range result.Steps {
		switch {
		case step.Skipped:
			yellow.Printf("- %s skipped (%s)\n", step.Item, step.Error)
		case step.CacheHit:
			green.Printf("✓ %s (cached)\n", step.Item)
		case step.Success:
			green.Printf("✓ %s (%s", step.Item, round(step.Duration))
			if step.Retries > 0 {
				fmt.Printf(", %d retries", step.Retries)
			}
			fmt.Println(")")
		default:
			red.Printf("✗ %s: %s\n", step.Item, step.Error)
		}
	}

	fmt.Println()
	if result.Success {
		green.Printf("Plan %s succeeded", result.PlanID)
	} else {
		red.Printf("Plan %s failed", result.PlanID)
	}
	fmt.Printf(" in %s (cost %.4f)\n", round(result.TotalDuration), result.TotalCost)
	fmt.Printf("  parallel steps: %d  cache hits: %d  skipped: %d\n",
		result.Optimization.ParallelSteps,
		result.Optimization.CacheHits,
		result.Optimization.SkippedSteps)

	for _, b := range result.Optimization.Bottlenecks {
		yellow.Printf("  bottleneck: %s — %s\n", b.Item, b.Reason)
	}
	for _, r := range result.Recommendations {
		fmt.Printf("  [%s] %s (%s)\n", r.Type, r.Message, r.EstimatedImpact)
	}
}

// Metrics renders the aggregate performance report.
func Metrics(m perf.AggregateMetrics, profiles map[string]models.PerformanceProfile) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Performance Metrics"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("total executions:  %d\n", m.TotalExecutions))
	b.WriteString(fmt.Sprintf("avg plan duration: %s\n", m.AvgPlanDuration))
	b.WriteString(fmt.Sprintf("parallelism rate:  %.1f%%\n", m.ParallelismRate*100))
	b.WriteString(fmt.Sprintf("cache hit rate:    %.1f%%\n", m.CacheHitRate*100))
	b.WriteString(fmt.Sprintf("error rate:        %.1f%%\n", m.ErrorRate*100))
	b.WriteString(fmt.Sprintf("cost efficiency:   %.2f successes/unit\n", m.CostEfficiency))

	if len(m.TopBottlenecks) > 0 {
		b.WriteString("\n")
		b.WriteString(groupStyle.Render("Top bottlenecks"))
		b.WriteString("\n")
		for _, s := range m.TopBottlenecks {
			b.WriteString(fmt.Sprintf("  %-24s mean %-12s x%d\n", s.Item, s.MeanDuration, s.Occurrences))
		}
	}

	b.WriteString("\n")
	b.WriteString(groupStyle.Render("Trends (older half vs newer half)"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  duration:     %+.1f%%\n", m.Trends.Duration))
	b.WriteString(fmt.Sprintf("  cost:         %+.1f%%\n", m.Trends.Cost))
	b.WriteString(fmt.Sprintf("  success rate: %+.1f%%\n", m.Trends.SuccessRate))

	if len(profiles) > 0 {
		b.WriteString("\n")
		b.WriteString(groupStyle.Render("Item profiles"))
		b.WriteString("\n")
		for _, p := range profiles {
			if p.Samples == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("  %-24s avg %-12s cost %.4f  success %.0f%%  (n=%d)\n",
				p.Item, p.AvgDuration, p.AvgCost, p.SuccessRate*100, p.Samples))
		}
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// CacheStats renders cache statistics.
func CacheStats(stats engine.CacheStats) string {
	return fmt.Sprintf("entries: %d  hit rate: %.1f%%  total written: %d",
		stats.Size, stats.HitRate*100, stats.TotalEntries)
}

// round trims durations to a readable precision.
func round(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond)
	default:
		return d
	}
}
