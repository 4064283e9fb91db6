package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/batonhq/baton/internal/executor"
	"github.com/batonhq/baton/internal/perf"
	"github.com/batonhq/baton/internal/registry"
	"github.com/batonhq/baton/pkg/models"
)

// cacheHitDuration is the fixed synthetic duration reported for steps
// served from cache.
const cacheHitDuration = time.Millisecond

// Engine executes plans: groups run sequentially, steps within a group
// run concurrently, each step applying caching and retry. The engine
// never fails a whole run because a step failed; step errors are
// isolated into their StepResults.
type Engine struct {
	reg     *registry.Registry
	invoker executor.Invoker
	tracker *perf.Tracker
	cache   *Cache
	logger  *DebugLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCacheSize sets the LRU cache capacity.
func WithCacheSize(n int) Option {
	return func(e *Engine) { e.cache = NewCache(n) }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine over the given registry, invoker and tracker.
func New(reg *registry.Registry, invoker executor.Invoker, tracker *perf.Tracker, opts ...Option) *Engine {
	e := &Engine{
		reg:     reg,
		invoker: invoker,
		tracker: tracker,
		cache:   NewCache(DefaultCacheSize),
		logger:  NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache exposes the engine's cache for stats and lifecycle management.
func (e *Engine) Cache() *Cache { return e.cache }

// ExecutePlan runs the plan and returns its result. Step-level
// failures never abort the run; overall success is the logical AND of
// all step results, computed after every group has terminated. Any
// engine-internal panic is converted into a fully-failed result rather
// than propagating to the caller.
func (e *Engine) ExecutePlan(ctx context.Context, plan *models.ExecutionPlan) (result *models.ExecutionResult) {
	started := time.Now()
	var collected []models.StepResult

	defer func() {
		if r := recover(); r != nil {
			e.logger.Log("[engine] plan %s aborted by internal fault: %v", plan.ID, r)
			result = &models.ExecutionResult{
				PlanID:        plan.ID,
				Success:       false,
				TotalDuration: time.Since(started),
				TotalCost:     0,
				Steps:         collected,
				StartedAt:     started,
				Recommendations: []models.Recommendation{{
					Type:            models.RecommendReliability,
					Message:         fmt.Sprintf("execution aborted by internal fault: %v", r),
					EstimatedImpact: "run produced no usable results; investigate before retrying",
				}},
			}
		}
	}()

	e.logger.Log("[engine] executing plan %s (%d steps, %d groups)", plan.ID, len(plan.Steps), plan.GroupCount())

	// failed is only written at group barriers, so group goroutines
	// may read it without locking.
	failed := make(map[string]bool)

	for _, group := range partitionGroups(plan.Steps) {
		results := e.runGroup(ctx, plan, group, failed)
		for _, r := range results {
			collected = append(collected, r)
			if !r.Success {
				failed[r.Item] = true
			}
		}
	}

	result = e.assembleResult(plan, started, collected)
	if e.tracker != nil {
		e.tracker.RecordRun(*result)
	}
	return result
}

// partitionGroups splits steps into per-group slices ordered by group
// number ascending. Submission order within a group follows the
// plan's step order.
func partitionGroups(steps []models.PlanStep) [][]models.PlanStep {
	byGroup := make(map[int][]models.PlanStep)
	for _, s := range steps {
		byGroup[s.Group] = append(byGroup[s.Group], s)
	}

	numbers := make([]int, 0, len(byGroup))
	for n := range byGroup {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	groups := make([][]models.PlanStep, 0, len(numbers))
	for _, n := range numbers {
		groups = append(groups, byGroup[n])
	}
	return groups
}

// runGroup dispatches all steps of one group and waits for every one
// of them to finish. A single step's failure does not cancel its
// siblings. Result order follows submission order, not completion
// order.
func (e *Engine) runGroup(ctx context.Context, plan *models.ExecutionPlan, group []models.PlanStep, failed map[string]bool) []models.StepResult {
	results := make([]models.StepResult, len(group))

	if !plan.Options.Parallel || len(group) == 1 {
		for i, step := range group {
			results[i] = e.executeStep(ctx, plan, step, failed)
		}
		return results
	}

	var sem chan struct{}
	if plan.Options.MaxConcurrent > 0 {
		sem = make(chan struct{}, plan.Options.MaxConcurrent)
	}

	// A panic inside a worker goroutine cannot be recovered by the
	// parent, so it is captured at the goroutine boundary and re-raised
	// after the barrier, where ExecutePlan's recover converts it into a
	// fully-failed result.
	var (
		wg       sync.WaitGroup
		panicMu  sync.Mutex
		panicked any
	)
	for i, step := range group {
		if !e.stepParallelizable(step.Item) {
			continue
		}
		wg.Add(1)
		go func(i int, step models.PlanStep) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicMu.Lock()
					if panicked == nil {
						panicked = r
					}
					panicMu.Unlock()
				}
			}()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = e.executeStep(ctx, plan, step, failed)
		}(i, step)
	}
	wg.Wait()
	if panicked != nil {
		panic(panicked)
	}

	// Steps declared non-parallelizable never overlap their siblings;
	// they run after the concurrent batch has drained.
	for i, step := range group {
		if e.stepParallelizable(step.Item) {
			continue
		}
		results[i] = e.executeStep(ctx, plan, step, failed)
	}

	return results
}

// stepParallelizable reports whether the item may share in-flight time
// with its group siblings. Unknown items default to parallelizable;
// executeStep reports the lookup failure.
func (e *Engine) stepParallelizable(item string) bool {
	def, err := e.reg.Get(item)
	if err != nil {
		return true
	}
	return def.Parallelizable
}

// executeStep runs a single step: dependency-failure short circuit,
// cache lookup, then the invoke/retry loop.
func (e *Engine) executeStep(ctx context.Context, plan *models.ExecutionPlan, step models.PlanStep, failed map[string]bool) models.StepResult {
	for _, dep := range step.DependsOn {
		if failed[dep] {
			e.logger.Log("[engine] step %s skipped: dependency %s failed", step.ID, dep)
			return models.StepResult{
				StepID:  step.ID,
				Item:    step.Item,
				Success: false,
				Skipped: true,
				Error:   fmt.Sprintf("dependency %s failed", dep),
			}
		}
	}

	def, err := e.reg.Get(step.Item)
	if err != nil {
		return models.StepResult{
			StepID: step.ID,
			Item:   step.Item,
			Error:  err.Error(),
		}
	}

	key := cacheKey(step.Item, step.Input)
	cacheable := plan.Options.Caching && def.Cacheable

	if cacheable {
		if entry, ok := e.cache.Get(key); ok {
			e.logger.Log("[engine] step %s served from cache", step.ID)
			return models.StepResult{
				StepID:   step.ID,
				Item:     step.Item,
				Success:  true,
				Duration: cacheHitDuration,
				Cost:     0,
				Output:   entry.Output,
				CacheHit: true,
			}
		}
	}

	return e.invokeWithRetry(ctx, step, def, key, cacheable)
}

// invokeWithRetry calls the executor, retrying transient failures per
// the step's policy with linear backoff: attempt n sleeps backoff*n.
func (e *Engine) invokeWithRetry(ctx context.Context, step models.PlanStep, def models.ItemDefinition, key string, cacheable bool) models.StepResult {
	var lastErr error
	retries := 0

	for attempt := 0; ; attempt++ {
		start := time.Now()
		output, err := e.invoker.Invoke(ctx, step.Item, step.Input)
		duration := time.Since(start)

		if err == nil {
			if e.tracker != nil {
				e.tracker.Record(step.Item, duration, def.EstimatedCost, true)
			}
			if cacheable {
				e.cache.Put(key, output, duration)
			}
			return models.StepResult{
				StepID:   step.ID,
				Item:     step.Item,
				Success:  true,
				Duration: duration,
				Cost:     def.EstimatedCost,
				Output:   output,
				Retries:  retries,
			}
		}

		lastErr = err
		kind := executor.Classify(err)
		e.logger.Log("[engine] step %s attempt %d failed (%s): %v", step.ID, attempt+1, kind, err)

		if !step.Retry.Retryable(string(kind)) || attempt >= step.Retry.MaxRetries {
			if e.tracker != nil {
				e.tracker.Record(step.Item, duration, def.EstimatedCost, false)
			}
			return models.StepResult{
				StepID:   step.ID,
				Item:     step.Item,
				Success:  false,
				Duration: duration,
				Cost:     def.EstimatedCost,
				Error:    lastErr.Error(),
				Retries:  retries,
			}
		}

		// retries counts only retry attempts that actually ran, so the
		// increment waits until the backoff has elapsed.
		backoff := step.Retry.Backoff * time.Duration(attempt+1)
		select {
		case <-time.After(backoff):
			retries++
		case <-ctx.Done():
			if e.tracker != nil {
				e.tracker.Record(step.Item, duration, def.EstimatedCost, false)
			}
			return models.StepResult{
				StepID:   step.ID,
				Item:     step.Item,
				Success:  false,
				Duration: duration,
				Cost:     def.EstimatedCost,
				Error:    ctx.Err().Error(),
				Retries:  retries,
			}
		}
	}
}

// assembleResult computes totals, the optimization summary and
// recommendations once every group has terminated.
func (e *Engine) assembleResult(plan *models.ExecutionPlan, started time.Time, steps []models.StepResult) *models.ExecutionResult {
	groupSizes := make(map[int]int)
	groupOf := make(map[string]int)
	for _, s := range plan.Steps {
		groupSizes[s.Group]++
		groupOf[s.ID] = s.Group
	}

	result := &models.ExecutionResult{
		PlanID:    plan.ID,
		Success:   true,
		Steps:     steps,
		StartedAt: started,
	}

	var executedDurations []time.Duration
	for _, s := range steps {
		result.TotalCost += s.Cost
		if !s.Success {
			result.Success = false
		}

		if !s.Skipped && groupSizes[groupOf[s.StepID]] > 1 && e.stepParallelizable(s.Item) {
			result.Optimization.ParallelSteps++
		}
		if s.CacheHit {
			result.Optimization.CacheHits++
		}
		if s.Skipped || (s.Success && len(s.Output) == 0) {
			result.Optimization.SkippedSteps++
		}
		if !s.Skipped && !s.CacheHit {
			executedDurations = append(executedDurations, s.Duration)
		}
	}

	result.TotalDuration = time.Since(started)
	result.Optimization.Bottlenecks = findBottlenecks(steps, executedDurations)
	result.Recommendations = recommend(plan, result)
	return result
}

// findBottlenecks flags steps whose duration exceeds twice the run's
// mean step duration, and steps that needed at least one retry.
func findBottlenecks(steps []models.StepResult, executed []time.Duration) []models.Bottleneck {
	var mean time.Duration
	if len(executed) > 0 {
		var sum time.Duration
		for _, d := range executed {
			sum += d
		}
		mean = sum / time.Duration(len(executed))
	}

	var bottlenecks []models.Bottleneck
	for _, s := range steps {
		if s.Skipped || s.CacheHit {
			continue
		}
		switch {
		case mean > 0 && s.Duration > 2*mean:
			bottlenecks = append(bottlenecks, models.Bottleneck{
				Item:     s.Item,
				Duration: s.Duration,
				Retries:  s.Retries,
				Reason:   fmt.Sprintf("duration %s exceeds 2x run mean %s", s.Duration, mean),
			})
		case s.Retries > 0:
			bottlenecks = append(bottlenecks, models.Bottleneck{
				Item:     s.Item,
				Duration: s.Duration,
				Retries:  s.Retries,
				Reason:   fmt.Sprintf("required %d retries", s.Retries),
			})
		}
	}
	return bottlenecks
}
