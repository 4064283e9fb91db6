// Package coordinator ties the registry, planner, engine and tracker
// together behind a single facade: register items, build plans,
// execute them, and report metrics.
package coordinator

import (
	"context"
	"fmt"

	"github.com/batonhq/baton/internal/engine"
	"github.com/batonhq/baton/internal/executor"
	"github.com/batonhq/baton/internal/perf"
	"github.com/batonhq/baton/internal/planner"
	"github.com/batonhq/baton/internal/registry"
	"github.com/batonhq/baton/pkg/models"
)

// Config carries the collaborators and settings for a Coordinator.
type Config struct {
	// Invoker performs the actual per-item work. When nil, a seeded
	// simulator over the coordinator's registry is used.
	Invoker executor.Invoker
	// Seed and Scale configure the default simulator; ignored when
	// Invoker is set.
	Seed  int64
	Scale float64
	// Strict rejects duplicate item registrations instead of
	// overwriting.
	Strict bool
	// CacheSize caps the engine's LRU cache (0 = default).
	CacheSize int
	// HistoryLimit caps the tracker's run history (0 = default).
	HistoryLimit int
	// Logger receives engine debug output (nil = no-op).
	Logger *engine.DebugLogger
	// Store, if set, persists profiles and history across runs.
	Store *perf.Store
}

// Coordinator is the engine facade. All state (registry, tracker,
// cache) is instance-scoped: two coordinators share nothing.
type Coordinator struct {
	reg     *registry.Registry
	tracker *perf.Tracker
	planner *planner.Planner
	engine  *engine.Engine
	store   *perf.Store
}

// New creates a Coordinator from the given config.
func New(cfg Config) (*Coordinator, error) {
	reg := registry.New()
	if cfg.Strict {
		reg = registry.NewStrict()
	}

	invoker := cfg.Invoker
	if invoker == nil {
		sim := executor.NewSimulator(reg, cfg.Seed)
		if cfg.Scale > 0 {
			sim.SetScale(cfg.Scale)
		}
		invoker = sim
	}

	tracker := perf.NewTrackerWithLimit(cfg.HistoryLimit)
	if cfg.Store != nil {
		if err := restoreFromStore(cfg.Store, tracker); err != nil {
			return nil, fmt.Errorf("coordinator: restore state: %w", err)
		}
	}

	opts := []engine.Option{engine.WithCacheSize(cfg.CacheSize)}
	if cfg.Logger != nil {
		opts = append(opts, engine.WithLogger(cfg.Logger))
	}

	c := &Coordinator{
		reg:     reg,
		tracker: tracker,
		planner: planner.New(reg, tracker),
		engine:  engine.New(reg, invoker, tracker, opts...),
		store:   cfg.Store,
	}

	if cfg.Store != nil {
		if err := c.restoreCache(cfg.CacheSize); err != nil {
			return nil, fmt.Errorf("coordinator: restore cache: %w", err)
		}
	}
	return c, nil
}

// restoreCache seeds the engine cache from persisted records.
func (c *Coordinator) restoreCache(limit int) error {
	if limit <= 0 {
		limit = engine.DefaultCacheSize
	}
	records, err := c.store.LoadCache(limit)
	if err != nil {
		return err
	}
	entries := make([]engine.CacheEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, engine.CacheEntry{
			Key:       r.Key,
			Output:    r.Output,
			CreatedAt: r.CreatedAt,
			Duration:  r.Duration,
			Hits:      r.Hits,
		})
	}
	c.engine.Cache().Seed(entries)
	return nil
}

// restoreFromStore seeds the tracker from persisted state: run history
// up to the tracker's retention limit, and profiles as saved. Profiles
// are restored directly rather than replayed from history, so their
// cumulative averages keep samples that have already rolled out of the
// history window.
func restoreFromStore(store *perf.Store, tracker *perf.Tracker) error {
	history, err := store.LoadHistory(tracker.Limit())
	if err != nil {
		return err
	}
	for _, entry := range history {
		tracker.RecordRun(entry.Result)
	}

	profiles, err := store.LoadProfiles()
	if err != nil {
		return err
	}
	tracker.RestoreProfiles(profiles)
	return nil
}

// RegisterItem adds an item definition and initializes its performance
// profile. In strict mode a duplicate name fails with
// registry.ErrDuplicateName; otherwise it silently overwrites.
func (c *Coordinator) RegisterItem(def models.ItemDefinition) error {
	if err := c.reg.Register(def); err != nil {
		return err
	}
	c.tracker.InitProfile(def.Name)
	return nil
}

// Registry exposes the item registry for lookups and listing.
func (c *Coordinator) Registry() *registry.Registry { return c.reg }

// CreatePlan builds an execution plan for the requested items.
func (c *Coordinator) CreatePlan(name, description string, requests []planner.ItemRequest, opts models.PlanOptions, constraints models.PlanConstraints) (*models.ExecutionPlan, error) {
	return c.planner.CreatePlan(name, description, requests, opts, constraints)
}

// ExecutePlan runs the plan. Step failures are reported inside the
// result, never as an error; only persistence faults surface here.
func (c *Coordinator) ExecutePlan(ctx context.Context, plan *models.ExecutionPlan) (*models.ExecutionResult, error) {
	result := c.engine.ExecutePlan(ctx, plan)

	if c.store != nil {
		entry := perf.HistoryEntry{PlanID: plan.ID, Timestamp: result.StartedAt, Result: *result}
		if err := c.store.AppendRun(entry); err != nil {
			return result, fmt.Errorf("persist run: %w", err)
		}
		if err := c.store.SaveProfiles(c.tracker.Profiles()); err != nil {
			return result, fmt.Errorf("persist profiles: %w", err)
		}
		if err := c.persistCache(); err != nil {
			return result, fmt.Errorf("persist cache: %w", err)
		}
	}

	return result, nil
}

// persistCache writes the engine cache back to the store.
func (c *Coordinator) persistCache() error {
	entries := c.engine.Cache().Entries()
	records := make([]perf.CacheRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, perf.CacheRecord{
			Key:       e.Key,
			Output:    e.Output,
			Duration:  e.Duration,
			CreatedAt: e.CreatedAt,
			Hits:      e.Hits,
		})
	}
	return c.store.SaveCache(records)
}

// Metrics returns the tracker's aggregate report.
func (c *Coordinator) Metrics() perf.AggregateMetrics {
	return c.tracker.Metrics()
}

// Profiles returns all per-item performance profiles.
func (c *Coordinator) Profiles() map[string]models.PerformanceProfile {
	return c.tracker.Profiles()
}

// CacheStats returns the engine cache's statistics.
func (c *Coordinator) CacheStats() engine.CacheStats {
	return c.engine.Cache().Stats()
}

// ClearCache drops all cached step results, including persisted ones.
func (c *Coordinator) ClearCache() error {
	c.engine.Cache().Clear()
	if c.store != nil {
		if _, err := c.store.PurgeCache(); err != nil {
			return err
		}
	}
	return nil
}

// ClearPerformanceData drops all profiles and run history, including
// persisted ones, so a later session does not restore them.
func (c *Coordinator) ClearPerformanceData() error {
	c.tracker.Clear()
	if c.store != nil {
		if _, err := c.store.PurgeAllHistory(); err != nil {
			return err
		}
		if _, err := c.store.PurgeProfiles(); err != nil {
			return err
		}
	}
	return nil
}
