package models

import "time"

// StepResult records the outcome of one executed step. It is produced
// once per step per plan run and never mutated afterward.
type StepResult struct {
	// StepID matches the PlanStep that produced this result.
	StepID string `json:"step_id"`
	// Item is the item name that was invoked.
	Item string `json:"item"`
	// Success indicates the step completed without error.
	Success bool `json:"success"`
	// Duration is the wall-clock time the step took.
	Duration time.Duration `json:"duration"`
	// Cost is the monetary cost attributed to the step.
	Cost float64 `json:"cost"`
	// Output is the executor's response payload, if any.
	Output map[string]any `json:"output,omitempty"`
	// Error is the final error message for failed steps.
	Error string `json:"error,omitempty"`
	// Retries is the number of retry attempts that were made.
	Retries int `json:"retries"`
	// CacheHit indicates the result was served from cache.
	CacheHit bool `json:"cache_hit"`
	// Skipped indicates the step was never dispatched because one of
	// its dependencies failed or was itself skipped.
	Skipped bool `json:"skipped"`
}

// Bottleneck identifies a step whose duration or retry count was
// anomalously high relative to the rest of the run.
type Bottleneck struct {
	// Item is the offending item name.
	Item string `json:"item"`
	// Duration is the step's observed duration.
	Duration time.Duration `json:"duration"`
	// Retries is the step's retry count.
	Retries int `json:"retries"`
	// Reason describes why the step was flagged.
	Reason string `json:"reason"`
}

// OptimizationSummary aggregates how the optimizer's decisions played
// out during a run.
type OptimizationSummary struct {
	// ParallelSteps counts parallel-eligible steps that ran in a group
	// of size > 1.
	ParallelSteps int `json:"parallel_steps"`
	// CacheHits counts steps served from cache.
	CacheHits int `json:"cache_hits"`
	// SkippedSteps counts steps withheld due to failed dependencies
	// plus steps that succeeded without producing output.
	SkippedSteps int `json:"skipped_steps"`
	// Bottlenecks lists anomalously slow or retried steps.
	Bottlenecks []Bottleneck `json:"bottlenecks,omitempty"`
}

// RecommendationType classifies an optimization recommendation.
type RecommendationType string

const (
	// RecommendPerformance flags runs slower than their target.
	RecommendPerformance RecommendationType = "performance"
	// RecommendCost flags runs over their cost limit.
	RecommendCost RecommendationType = "cost"
	// RecommendReliability flags failing or flaky runs.
	RecommendReliability RecommendationType = "reliability"
	// RecommendParallelism flags underused concurrency.
	RecommendParallelism RecommendationType = "parallelism"
)

// Recommendation is a generated suggestion for improving future runs.
type Recommendation struct {
	Type RecommendationType `json:"type"`
	// Message describes the finding in plain language.
	Message string `json:"message"`
	// EstimatedImpact describes the expected benefit of acting on it.
	EstimatedImpact string `json:"estimated_impact"`
}

// ExecutionResult is the outcome of one run of a plan. Success is the
// logical AND of all step results, computed only after every group has
// terminated.
type ExecutionResult struct {
	// PlanID identifies the executed plan.
	PlanID string `json:"plan_id"`
	// Success is true only if every step succeeded.
	Success bool `json:"success"`
	// TotalDuration is the wall-clock time of the whole run.
	TotalDuration time.Duration `json:"total_duration"`
	// TotalCost is the summed cost of all steps.
	TotalCost float64 `json:"total_cost"`
	// Steps holds per-step results in submission order.
	Steps []StepResult `json:"steps"`
	// Optimization summarizes parallelism, caching and bottlenecks.
	Optimization OptimizationSummary `json:"optimization"`
	// Recommendations suggest improvements based on this run.
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
}
