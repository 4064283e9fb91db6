package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/batonhq/baton/internal/executor"
	"github.com/batonhq/baton/internal/perf"
	"github.com/batonhq/baton/internal/registry"
	"github.com/batonhq/baton/pkg/models"
)

func testRegistry(t *testing.T, defs ...models.ItemDefinition) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, d := range defs {
		if d.Category == "" {
			d.Category = models.CategoryGeneration
		}
		if d.Reliability == 0 {
			d.Reliability = 0.99
		}
		d.Parallelizable = true
		if err := reg.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.Name, err)
		}
	}
	return reg
}

func okInvoker() executor.Invoker {
	return executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		return map[string]any{"item": item}, nil
	})
}

func plan(opts models.PlanOptions, steps ...models.PlanStep) *models.ExecutionPlan {
	return &models.ExecutionPlan{
		ID:        "test-plan",
		Steps:     steps,
		Options:   opts,
		Timeout:   time.Minute,
		CreatedAt: time.Now(),
	}
}

func TestExecutePlanAllSucceed(t *testing.T) {
	reg := testRegistry(t,
		models.ItemDefinition{Name: "a", EstimatedCost: 0.1},
		models.ItemDefinition{Name: "b", EstimatedCost: 0.2},
	)
	e := New(reg, okInvoker(), perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{Parallel: true},
		models.PlanStep{ID: "s0", Item: "a", Group: 0},
		models.PlanStep{ID: "s1", Item: "b", Group: 0},
	))

	if !result.Success {
		t.Errorf("expected success, got failure: %+v", result.Steps)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(result.Steps))
	}
	// Results follow submission order regardless of completion order.
	if result.Steps[0].Item != "a" || result.Steps[1].Item != "b" {
		t.Errorf("results out of submission order: %s, %s", result.Steps[0].Item, result.Steps[1].Item)
	}
	if result.TotalCost != 0.3 {
		t.Errorf("expected total cost 0.3, got %f", result.TotalCost)
	}
	if result.Optimization.ParallelSteps != 2 {
		t.Errorf("expected 2 parallel steps, got %d", result.Optimization.ParallelSteps)
	}
}

func TestExecutePlanIsolatedFailure(t *testing.T) {
	reg := testRegistry(t,
		models.ItemDefinition{Name: "good"},
		models.ItemDefinition{Name: "bad"},
	)
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		if item == "bad" {
			return nil, executor.NewError(executor.KindInternal, item, errors.New("boom"))
		}
		return map[string]any{"done": true}, nil
	})
	e := New(reg, inv, perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{Parallel: true},
		models.PlanStep{ID: "s0", Item: "good", Group: 0},
		models.PlanStep{ID: "s1", Item: "bad", Group: 0},
	))

	if result.Success {
		t.Error("expected overall failure")
	}
	if !result.Steps[0].Success {
		t.Error("sibling step must complete despite the failure")
	}
	if result.Steps[1].Success || result.Steps[1].Skipped {
		t.Errorf("expected failed (not skipped) result for bad: %+v", result.Steps[1])
	}
}

func TestExecutePlanCascadeSkip(t *testing.T) {
	reg := testRegistry(t,
		models.ItemDefinition{Name: "base"},
		models.ItemDefinition{Name: "dependent", DependsOn: []string{"base"}},
	)
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		return nil, executor.NewError(executor.KindInternal, item, errors.New("boom"))
	})
	e := New(reg, inv, perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{Parallel: true},
		models.PlanStep{ID: "s0", Item: "base", Group: 0},
		models.PlanStep{ID: "s1", Item: "dependent", Group: 1, DependsOn: []string{"base"}},
	))

	if result.Success {
		t.Error("expected overall failure")
	}
	dep := result.Steps[1]
	if !dep.Skipped || dep.Success {
		t.Errorf("expected dependent to be skipped, got %+v", dep)
	}
	if !strings.Contains(dep.Error, "base") {
		t.Errorf("skip reason should name the failed dependency, got %q", dep.Error)
	}
	if dep.Cost != 0 {
		t.Errorf("skipped step must not incur cost, got %f", dep.Cost)
	}
	if result.Optimization.SkippedSteps != 1 {
		t.Errorf("expected 1 skipped step, got %d", result.Optimization.SkippedSteps)
	}
}

func TestExecutePlanGroupBarrier(t *testing.T) {
	reg := testRegistry(t,
		models.ItemDefinition{Name: "first"},
		models.ItemDefinition{Name: "second", DependsOn: []string{"first"}},
	)

	var mu sync.Mutex
	var order []string
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		mu.Lock()
		order = append(order, item)
		mu.Unlock()
		return map[string]any{"ok": true}, nil
	})
	e := New(reg, inv, perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{Parallel: true},
		models.PlanStep{ID: "s0", Item: "first", Group: 0},
		models.PlanStep{ID: "s1", Item: "second", Group: 1, DependsOn: []string{"first"}},
	))

	if !result.Success {
		t.Fatalf("expected success: %+v", result.Steps)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("groups must run strictly in order, got %v", order)
	}
}

func TestExecutePlanMaxConcurrent(t *testing.T) {
	reg := testRegistry(t,
		models.ItemDefinition{Name: "w1"},
		models.ItemDefinition{Name: "w2"},
		models.ItemDefinition{Name: "w3"},
		models.ItemDefinition{Name: "w4"},
	)

	var inflight, peak int32
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return map[string]any{"ok": true}, nil
	})
	e := New(reg, inv, perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{Parallel: true, MaxConcurrent: 2},
		models.PlanStep{ID: "s0", Item: "w1", Group: 0},
		models.PlanStep{ID: "s1", Item: "w2", Group: 0},
		models.PlanStep{ID: "s2", Item: "w3", Group: 0},
		models.PlanStep{ID: "s3", Item: "w4", Group: 0},
	))

	if !result.Success {
		t.Fatalf("expected success: %+v", result.Steps)
	}
	if peak > 2 {
		t.Errorf("expected at most 2 in-flight steps, saw %d", peak)
	}
}

func TestExecutePlanSequentialWhenParallelOff(t *testing.T) {
	reg := testRegistry(t,
		models.ItemDefinition{Name: "a"},
		models.ItemDefinition{Name: "b"},
	)

	var inflight, peak int32
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		n := atomic.AddInt32(&inflight, 1)
		if n > atomic.LoadInt32(&peak) {
			atomic.StoreInt32(&peak, n)
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return map[string]any{"ok": true}, nil
	})
	e := New(reg, inv, perf.NewTracker())

	e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{Parallel: false},
		models.PlanStep{ID: "s0", Item: "a", Group: 0},
		models.PlanStep{ID: "s1", Item: "b", Group: 0},
	))

	if peak != 1 {
		t.Errorf("expected sequential execution, saw %d in flight", peak)
	}
}

func TestExecutePlanCacheHit(t *testing.T) {
	reg := testRegistry(t, models.ItemDefinition{Name: "pure", Cacheable: true, EstimatedCost: 0.5})

	var calls int32
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]any{"value": 42}, nil
	})
	e := New(reg, inv, perf.NewTracker())

	p := plan(
		models.PlanOptions{Caching: true},
		models.PlanStep{ID: "s0", Item: "pure", Input: map[string]any{"x": 1}},
	)

	first := e.ExecutePlan(context.Background(), p)
	second := e.ExecutePlan(context.Background(), p)

	if calls != 1 {
		t.Errorf("expected exactly one invocation, got %d", calls)
	}
	if first.Steps[0].CacheHit {
		t.Error("first run must miss the cache")
	}
	hit := second.Steps[0]
	if !hit.CacheHit || !hit.Success {
		t.Errorf("second run must hit the cache: %+v", hit)
	}
	if hit.Cost != 0 {
		t.Errorf("cache hit must cost 0, got %f", hit.Cost)
	}
	if hit.Output["value"] != 42 {
		t.Errorf("cached output lost: %v", hit.Output)
	}
	if second.Optimization.CacheHits != 1 {
		t.Errorf("expected 1 cache hit in summary, got %d", second.Optimization.CacheHits)
	}
}

func TestExecutePlanCacheDistinguishesInputs(t *testing.T) {
	reg := testRegistry(t, models.ItemDefinition{Name: "pure", Cacheable: true})

	var calls int32
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]any{"ok": true}, nil
	})
	e := New(reg, inv, perf.NewTracker())

	e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{Caching: true},
		models.PlanStep{ID: "s0", Item: "pure", Input: map[string]any{"x": 1}},
	))
	e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{Caching: true},
		models.PlanStep{ID: "s0", Item: "pure", Input: map[string]any{"x": 2}},
	))

	if calls != 2 {
		t.Errorf("different inputs must not share cache entries, got %d calls", calls)
	}
}

func TestExecutePlanCachingDisabled(t *testing.T) {
	reg := testRegistry(t, models.ItemDefinition{Name: "pure", Cacheable: true})

	var calls int32
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]any{"ok": true}, nil
	})
	e := New(reg, inv, perf.NewTracker())

	p := plan(
		models.PlanOptions{Caching: false},
		models.PlanStep{ID: "s0", Item: "pure"},
	)
	e.ExecutePlan(context.Background(), p)
	e.ExecutePlan(context.Background(), p)

	if calls != 2 {
		t.Errorf("caching disabled must invoke every time, got %d calls", calls)
	}
}

func TestInvokeWithRetryExhaustion(t *testing.T) {
	reg := testRegistry(t, models.ItemDefinition{Name: "flaky"})

	var attempts int32
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, executor.NewError(executor.KindUnavailable, item, errors.New("down"))
	})
	e := New(reg, inv, perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{},
		models.PlanStep{
			ID:    "s0",
			Item:  "flaky",
			Retry: models.RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond, RetryOn: executor.TransientKinds()},
		},
	))

	if attempts != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
	step := result.Steps[0]
	if step.Success {
		t.Error("expected failure after exhaustion")
	}
	if step.Retries != 2 {
		t.Errorf("expected retry count 2, got %d", step.Retries)
	}
}

func TestInvokeWithRetryEventualSuccess(t *testing.T) {
	reg := testRegistry(t, models.ItemDefinition{Name: "flaky"})

	var attempts int32
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return nil, executor.NewError(executor.KindTimeout, item, errors.New("slow"))
		}
		return map[string]any{"ok": true}, nil
	})
	e := New(reg, inv, perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{},
		models.PlanStep{
			ID:    "s0",
			Item:  "flaky",
			Retry: models.RetryPolicy{MaxRetries: 3, Backoff: time.Millisecond, RetryOn: executor.TransientKinds()},
		},
	))

	step := result.Steps[0]
	if !step.Success {
		t.Errorf("expected eventual success: %+v", step)
	}
	if step.Retries != 2 {
		t.Errorf("expected 2 retries before success, got %d", step.Retries)
	}
}

func TestPermanentErrorNotRetried(t *testing.T) {
	reg := testRegistry(t, models.ItemDefinition{Name: "broken"})

	var attempts int32
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, executor.NewError(executor.KindInvalidInput, item, errors.New("bad payload"))
	})
	e := New(reg, inv, perf.NewTracker())

	e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{},
		models.PlanStep{
			ID:    "s0",
			Item:  "broken",
			Retry: models.RetryPolicy{MaxRetries: 5, Backoff: time.Millisecond, RetryOn: executor.TransientKinds()},
		},
	))

	if attempts != 1 {
		t.Errorf("permanent failures must not be retried, got %d attempts", attempts)
	}
}

func TestExecutePlanRecoversFromPanic(t *testing.T) {
	reg := testRegistry(t, models.ItemDefinition{Name: "bomb"})
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		panic("invoker exploded")
	})
	e := New(reg, inv, perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{},
		models.PlanStep{ID: "s0", Item: "bomb"},
	))

	if result == nil {
		t.Fatal("expected a result, not a propagated panic")
	}
	if result.Success {
		t.Error("expected fully-failed result")
	}
	if result.TotalCost != 0 {
		t.Errorf("expected zero cost, got %f", result.TotalCost)
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].Type != models.RecommendReliability {
		t.Errorf("expected a single reliability recommendation, got %+v", result.Recommendations)
	}
}

func TestExecutePlanRecoversFromParallelPanic(t *testing.T) {
	reg := testRegistry(t,
		models.ItemDefinition{Name: "steady"},
		models.ItemDefinition{Name: "bomb"},
	)
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		if item == "bomb" {
			panic("invoker exploded")
		}
		return map[string]any{"ok": true}, nil
	})
	e := New(reg, inv, perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{Parallel: true},
		models.PlanStep{ID: "s0", Item: "steady", Group: 0},
		models.PlanStep{ID: "s1", Item: "bomb", Group: 0},
	))

	if result == nil {
		t.Fatal("expected a result, not a propagated panic")
	}
	if result.Success {
		t.Error("expected fully-failed result")
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].Type != models.RecommendReliability {
		t.Errorf("expected a single reliability recommendation, got %+v", result.Recommendations)
	}
}

func TestNonParallelizableStepRunsAlone(t *testing.T) {
	reg := registry.New()
	for _, d := range []models.ItemDefinition{
		{Name: "p1", Category: models.CategoryGeneration, Reliability: 0.99, Parallelizable: true},
		{Name: "p2", Category: models.CategoryGeneration, Reliability: 0.99, Parallelizable: true},
		{Name: "solo", Category: models.CategoryGeneration, Reliability: 0.99},
	} {
		if err := reg.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.Name, err)
		}
	}

	var inflight, overlapped int32
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		n := atomic.AddInt32(&inflight, 1)
		if item == "solo" && n != 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return map[string]any{"ok": true}, nil
	})
	e := New(reg, inv, perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{Parallel: true},
		models.PlanStep{ID: "s0", Item: "p1", Group: 0},
		models.PlanStep{ID: "s1", Item: "solo", Group: 0},
		models.PlanStep{ID: "s2", Item: "p2", Group: 0},
	))

	if !result.Success {
		t.Fatalf("expected success: %+v", result.Steps)
	}
	if overlapped != 0 {
		t.Error("non-parallelizable step must not share in-flight time with siblings")
	}
	if result.Steps[1].Item != "solo" {
		t.Errorf("results must stay in submission order, got %+v", result.Steps)
	}
	if result.Optimization.ParallelSteps != 2 {
		t.Errorf("only parallel-eligible steps count, got %d", result.Optimization.ParallelSteps)
	}
}

func TestParallelStepsIncludeFailures(t *testing.T) {
	reg := testRegistry(t,
		models.ItemDefinition{Name: "good"},
		models.ItemDefinition{Name: "bad"},
	)
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		if item == "bad" {
			return nil, executor.NewError(executor.KindInternal, item, errors.New("boom"))
		}
		return map[string]any{"ok": true}, nil
	})
	e := New(reg, inv, perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{Parallel: true},
		models.PlanStep{ID: "s0", Item: "good", Group: 0},
		models.PlanStep{ID: "s1", Item: "bad", Group: 0},
	))

	if result.Optimization.ParallelSteps != 2 {
		t.Errorf("failed steps that ran in a shared group must count, got %d", result.Optimization.ParallelSteps)
	}
}

func TestRetryCountExcludesCancelledBackoff(t *testing.T) {
	reg := testRegistry(t, models.ItemDefinition{Name: "flaky"})
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		return nil, executor.NewError(executor.KindUnavailable, item, errors.New("down"))
	})
	e := New(reg, inv, perf.NewTracker())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result := e.ExecutePlan(ctx, plan(
		models.PlanOptions{},
		models.PlanStep{
			ID:    "s0",
			Item:  "flaky",
			Retry: models.RetryPolicy{MaxRetries: 3, Backoff: time.Second, RetryOn: executor.TransientKinds()},
		},
	))

	step := result.Steps[0]
	if step.Success {
		t.Error("expected failure on cancellation")
	}
	if step.Retries != 0 {
		t.Errorf("a retry that never ran must not be counted, got %d", step.Retries)
	}
}

func TestExecutePlanRecordsProfiles(t *testing.T) {
	reg := testRegistry(t, models.ItemDefinition{Name: "tracked", EstimatedCost: 0.25})
	tracker := perf.NewTracker()
	e := New(reg, okInvoker(), tracker)

	e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{},
		models.PlanStep{ID: "s0", Item: "tracked"},
	))

	p, ok := tracker.Profile("tracked")
	if !ok || p.Samples != 1 {
		t.Fatalf("expected 1 recorded sample, got %+v", p)
	}
	if p.AvgCost != 0.25 {
		t.Errorf("expected recorded cost 0.25, got %f", p.AvgCost)
	}
	if len(tracker.History()) != 1 {
		t.Errorf("expected run recorded in history, got %d", len(tracker.History()))
	}
}

func TestRecommendationsOnFailure(t *testing.T) {
	reg := testRegistry(t, models.ItemDefinition{Name: "bad"})
	inv := executor.InvokerFunc(func(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
		return nil, executor.NewError(executor.KindInternal, item, errors.New("boom"))
	})
	e := New(reg, inv, perf.NewTracker())

	result := e.ExecutePlan(context.Background(), plan(
		models.PlanOptions{},
		models.PlanStep{ID: "s0", Item: "bad"},
	))

	found := false
	for _, r := range result.Recommendations {
		if r.Type == models.RecommendReliability {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a reliability recommendation, got %+v", result.Recommendations)
	}
}
