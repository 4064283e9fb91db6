package models

import "time"

// Category classifies what kind of work an item performs.
type Category string

const (
	// CategoryPlanning covers items that produce plans or outlines.
	CategoryPlanning Category = "planning"
	// CategoryGeneration covers items that generate new artifacts.
	CategoryGeneration Category = "generation"
	// CategoryAnalysis covers items that inspect existing artifacts.
	CategoryAnalysis Category = "analysis"
	// CategoryTransformation covers items that rewrite inputs into outputs.
	CategoryTransformation Category = "transformation"
	// CategoryValidation covers items that check artifacts against rules.
	CategoryValidation Category = "validation"
	// CategoryOrchestration covers items that coordinate other items.
	CategoryOrchestration Category = "orchestration"
)

// Valid returns true if the category is a known value.
func (c Category) Valid() bool {
	switch c {
	case CategoryPlanning, CategoryGeneration, CategoryAnalysis,
		CategoryTransformation, CategoryValidation, CategoryOrchestration:
		return true
	default:
		return false
	}
}

// ItemDefinition describes a named, schedulable unit of work.
// Definitions are immutable once registered; re-registering the same
// name replaces the previous definition.
type ItemDefinition struct {
	// Name is the unique key for this item.
	Name string `json:"name" yaml:"name"`
	// Category classifies the kind of work.
	Category Category `json:"category" yaml:"category"`
	// DependsOn lists item names that must complete before this item.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on"`
	// EstimatedDuration is the declared typical runtime.
	EstimatedDuration time.Duration `json:"estimated_duration" yaml:"estimated_duration"`
	// EstimatedCost is the declared monetary cost per invocation.
	EstimatedCost float64 `json:"estimated_cost" yaml:"estimated_cost"`
	// Reliability is the declared probability of success in [0,1].
	Reliability float64 `json:"reliability" yaml:"reliability"`
	// Parallelizable indicates the item may share a group with others.
	Parallelizable bool `json:"parallelizable" yaml:"parallelizable"`
	// Cacheable indicates repeated invocations with identical input
	// may be served from cache.
	Cacheable bool `json:"cacheable" yaml:"cacheable"`
}

// Validate checks that the definition is internally consistent.
func (d ItemDefinition) Validate() error {
	if d.Name == "" {
		return ErrEmptyItemName
	}
	if !d.Category.Valid() {
		return ErrInvalidCategory
	}
	if d.Reliability < 0 || d.Reliability > 1 {
		return ErrInvalidReliability
	}
	return nil
}

// PerformanceProfile holds running statistics for one item.
// Averages are cumulative running averages over all observed samples.
type PerformanceProfile struct {
	// Item is the item name this profile belongs to.
	Item string `json:"item"`
	// AvgDuration is the running-average execution duration.
	AvgDuration time.Duration `json:"avg_duration"`
	// AvgCost is the running-average cost per execution.
	AvgCost float64 `json:"avg_cost"`
	// SuccessRate is the running-average success rate in [0,1].
	SuccessRate float64 `json:"success_rate"`
	// Samples is the number of observations folded into the averages.
	Samples int `json:"samples"`
}
