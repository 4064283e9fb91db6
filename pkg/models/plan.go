package models

import "time"

// RetryPolicy controls how a failed step is retried.
// Backoff is linear: attempt n sleeps Backoff*n before retrying.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int `json:"max_retries"`
	// Backoff is the base delay between attempts.
	Backoff time.Duration `json:"backoff"`
	// RetryOn lists the failure kinds that are eligible for retry.
	RetryOn []string `json:"retry_on,omitempty"`
}

// Retryable returns true if the given failure kind is in the policy's
// trigger list.
func (p RetryPolicy) Retryable(kind string) bool {
	for _, k := range p.RetryOn {
		if k == kind {
			return true
		}
	}
	return false
}

// PlanStep is a single scheduled invocation of an item within a plan.
type PlanStep struct {
	// ID is unique within the plan.
	ID string `json:"id"`
	// Item is the registered item name to invoke.
	Item string `json:"item"`
	// Input is the payload passed to the executor.
	Input map[string]any `json:"input,omitempty"`
	// DependsOn lists item names this step waits for.
	DependsOn []string `json:"depends_on,omitempty"`
	// Group is the parallel group number. Every dependency of this
	// step is assigned a strictly lower group.
	Group int `json:"group"`
	// Retry is the retry policy attached by the optimizer.
	Retry RetryPolicy `json:"retry"`
}

// PlanOptions holds optimization settings for a plan.
type PlanOptions struct {
	// Parallel enables concurrent execution within a group.
	Parallel bool `json:"parallel"`
	// Caching enables cache lookups for cacheable items.
	Caching bool `json:"caching"`
	// TargetDuration is the desired total runtime, if any.
	TargetDuration time.Duration `json:"target_duration,omitempty"`
	// MaxConcurrent caps in-flight steps within a group (0 = unlimited).
	MaxConcurrent int `json:"max_concurrent,omitempty"`
}

// PlanConstraints holds caller-imposed limits checked when generating
// recommendations.
type PlanConstraints struct {
	// MaxDuration is the maximum acceptable total runtime.
	MaxDuration time.Duration `json:"max_duration,omitempty"`
	// MaxCost is the maximum acceptable total cost.
	MaxCost float64 `json:"max_cost,omitempty"`
	// MinReliability is the required success-probability floor.
	MinReliability float64 `json:"min_reliability,omitempty"`
}

// ExecutionPlan is an ordered, grouped sequence of steps derived from a
// requested item set. Immutable after creation; may be executed any
// number of times.
type ExecutionPlan struct {
	// ID is the unique plan identifier.
	ID string `json:"id"`
	// Name is a short human-readable label.
	Name string `json:"name"`
	// Description provides more detail about the plan's purpose.
	Description string `json:"description,omitempty"`
	// Steps are ordered by group, dependencies first.
	Steps []PlanStep `json:"steps"`
	// Options are the optimization settings the plan was built with.
	Options PlanOptions `json:"options"`
	// Constraints are the caller-imposed limits.
	Constraints PlanConstraints `json:"constraints"`
	// Timeout is the advisory plan-level timeout: 1.5x the sum of
	// estimated step durations, floored at 10s. Not enforced by the
	// engine; callers may use it to bound executePlan with a context.
	Timeout time.Duration `json:"timeout"`
	// CreatedAt is when the plan was built.
	CreatedAt time.Time `json:"created_at"`
}

// GroupCount returns the number of distinct parallel groups in the plan.
func (p *ExecutionPlan) GroupCount() int {
	max := -1
	for _, s := range p.Steps {
		if s.Group > max {
			max = s.Group
		}
	}
	return max + 1
}

// EstimatedCost sums the declared costs of all steps given a lookup of
// item definitions.
func (p *ExecutionPlan) EstimatedCost(defs map[string]ItemDefinition) float64 {
	var total float64
	for _, s := range p.Steps {
		if d, ok := defs[s.Item]; ok {
			total += d.EstimatedCost
		}
	}
	return total
}
