// Package planner turns a requested set of items into an optimized
// execution plan: dependency-respecting order, parallel group
// assignment, and adaptive retry policies for historically unreliable
// items.
package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/batonhq/baton/internal/executor"
	"github.com/batonhq/baton/internal/graph"
	"github.com/batonhq/baton/internal/perf"
	"github.com/batonhq/baton/internal/registry"
	"github.com/batonhq/baton/pkg/models"
)

// reliabilityThreshold is the observed success rate below which an
// item gets an enhanced retry policy.
const reliabilityThreshold = 0.9

// enhancedMaxRetries is the retry count attached to unreliable items:
// 2 retries after the initial attempt, 3 invocations at most.
const enhancedMaxRetries = 2

// enhancedBackoff is the linear backoff base for enhanced policies.
const enhancedBackoff = time.Second

// timeoutFloor is the minimum advisory plan timeout.
const timeoutFloor = 10 * time.Second

// ItemRequest names an item to execute along with its input payload.
type ItemRequest struct {
	Name  string
	Input map[string]any
}

// Planner builds execution plans from the registry, consulting the
// performance tracker for adaptive retry decisions. The planning pass
// is side-effect-free on both.
type Planner struct {
	reg     *registry.Registry
	tracker *perf.Tracker
}

// New creates a Planner over the given registry and tracker.
func New(reg *registry.Registry, tracker *perf.Tracker) *Planner {
	return &Planner{reg: reg, tracker: tracker}
}

// CreatePlan builds an ExecutionPlan for the requested items.
// Transitive dependencies are pulled in automatically; each step's
// parallel group is strictly greater than all of its dependencies'
// groups. Fails entirely with graph.ErrCycleDetected or
// registry.ErrItemNotFound — no partial plan is ever returned.
func (p *Planner) CreatePlan(name, description string, requests []ItemRequest, opts models.PlanOptions, constraints models.PlanConstraints) (*models.ExecutionPlan, error) {
	names := make([]string, 0, len(requests))
	inputs := make(map[string]map[string]any, len(requests))
	for _, req := range requests {
		names = append(names, req.Name)
		inputs[req.Name] = req.Input
	}

	g, err := graph.Build(names, p.reg)
	if err != nil {
		return nil, fmt.Errorf("create plan %q: %w", name, err)
	}

	order, groups, err := g.Sort()
	if err != nil {
		return nil, fmt.Errorf("create plan %q: %w", name, err)
	}

	planID := uuid.New().String()[:8]

	steps := make([]models.PlanStep, 0, len(order))
	for i, item := range order {
		def, err := p.reg.Get(item)
		if err != nil {
			return nil, fmt.Errorf("create plan %q: %w", name, err)
		}

		steps = append(steps, models.PlanStep{
			ID:        fmt.Sprintf("%s-step-%d", planID, i),
			Item:      item,
			Input:     inputs[item],
			DependsOn: append([]string(nil), def.DependsOn...),
			Group:     groups[item],
		})
	}

	// Steps run group by group; within a group, submission order is
	// lexicographic so identical requests produce identical plans.
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Group != steps[j].Group {
			return steps[i].Group < steps[j].Group
		}
		return steps[i].Item < steps[j].Item
	})

	p.ApplyAdaptiveRetries(steps)

	plan := &models.ExecutionPlan{
		ID:          planID,
		Name:        name,
		Description: description,
		Steps:       steps,
		Options:     opts,
		Constraints: constraints,
		Timeout:     p.advisoryTimeout(steps),
		CreatedAt:   time.Now(),
	}
	return plan, nil
}

// ApplyAdaptiveRetries attaches retry policies based on observed
// success rates: items below the reliability threshold get an enhanced
// policy (3 attempts at most, linear 1s backoff), the rest keep a light
// default
// with no retries. The tracker's observed rate wins; the declared
// static reliability is the fallback when no samples exist. The pass
// is idempotent and leaves the registry untouched.
func (p *Planner) ApplyAdaptiveRetries(steps []models.PlanStep) {
	for i := range steps {
		def, err := p.reg.Get(steps[i].Item)
		if err != nil {
			continue
		}

		rate := def.Reliability
		if p.tracker != nil {
			rate = p.tracker.SuccessRate(steps[i].Item, def.Reliability)
		}

		if rate < reliabilityThreshold {
			steps[i].Retry = models.RetryPolicy{
				MaxRetries: enhancedMaxRetries,
				Backoff:    enhancedBackoff,
				RetryOn:    executor.TransientKinds(),
			}
		} else {
			steps[i].Retry = models.RetryPolicy{
				MaxRetries: 0,
				Backoff:    enhancedBackoff,
				RetryOn:    executor.TransientKinds(),
			}
		}
	}
}

// advisoryTimeout is 1.5x the summed estimated durations with a 10s
// floor. The engine does not enforce it; callers may bound execution
// with a context derived from it.
func (p *Planner) advisoryTimeout(steps []models.PlanStep) time.Duration {
	var sum time.Duration
	for _, s := range steps {
		if def, err := p.reg.Get(s.Item); err == nil {
			sum += def.EstimatedDuration
		}
	}

	timeout := sum + sum/2
	if timeout < timeoutFloor {
		timeout = timeoutFloor
	}
	return timeout
}
