// Package perf tracks per-item performance profiles and execution
// history, and derives aggregate metrics, trends and bottlenecks from
// them. Profiles feed back into planning: the optimizer attaches
// heavier retry policies to items with poor observed success rates.
package perf

import (
	"sync"
	"time"

	"github.com/batonhq/baton/pkg/models"
)

// DefaultHistoryLimit caps how many run records are retained.
const DefaultHistoryLimit = 1000

// HistoryEntry records one completed plan run.
type HistoryEntry struct {
	// PlanID identifies the executed plan.
	PlanID string `json:"plan_id"`
	// Timestamp is when the run was recorded.
	Timestamp time.Time `json:"timestamp"`
	// Result is the full execution result.
	Result models.ExecutionResult `json:"result"`
}

// Tracker maintains one PerformanceProfile per item name plus a
// bounded, append-only execution history. Safe for concurrent use:
// profile updates are atomic per key.
type Tracker struct {
	mu       sync.RWMutex
	profiles map[string]*models.PerformanceProfile
	history  []HistoryEntry
	limit    int
}

// NewTracker creates a Tracker with the default history limit.
func NewTracker() *Tracker {
	return NewTrackerWithLimit(DefaultHistoryLimit)
}

// NewTrackerWithLimit creates a Tracker retaining at most limit runs.
func NewTrackerWithLimit(limit int) *Tracker {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Tracker{
		profiles: make(map[string]*models.PerformanceProfile),
		limit:    limit,
	}
}

// InitProfile ensures a zeroed profile exists for the item. Called at
// registration time so every registered item has a profile.
func (t *Tracker) InitProfile(item string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.profiles[item]; !ok {
		t.profiles[item] = &models.PerformanceProfile{Item: item}
	}
}

// Record folds one execution observation into the item's profile.
// The update is a cumulative running average: with n the post-increment
// sample count, avg' = avg*(1 - 1/n) + sample/n. Early samples fade
// but are never fully forgotten, unlike a fixed-decay EMA.
func (t *Tracker) Record(item string, duration time.Duration, cost float64, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.profiles[item]
	if !ok {
		p = &models.PerformanceProfile{Item: item}
		t.profiles[item] = p
	}

	p.Samples++
	w := 1.0 / float64(p.Samples)

	p.AvgDuration = time.Duration(float64(p.AvgDuration)*(1-w) + float64(duration)*w)
	p.AvgCost = p.AvgCost*(1-w) + cost*w

	sample := 0.0
	if success {
		sample = 1.0
	}
	p.SuccessRate = p.SuccessRate*(1-w) + sample*w
}

// Profile returns a copy of the item's profile and whether it has any
// samples yet.
func (t *Tracker) Profile(item string) (models.PerformanceProfile, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.profiles[item]
	if !ok {
		return models.PerformanceProfile{Item: item}, false
	}
	return *p, p.Samples > 0
}

// SuccessRate returns the observed success rate for the item, falling
// back to the given declared reliability when no samples exist.
func (t *Tracker) SuccessRate(item string, declared float64) float64 {
	if p, ok := t.Profile(item); ok {
		return p.SuccessRate
	}
	return declared
}

// RestoreProfiles replaces profiles with previously persisted copies,
// keeping their cumulative sample counts intact.
func (t *Tracker) RestoreProfiles(profiles map[string]models.PerformanceProfile) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, p := range profiles {
		restored := p
		t.profiles[name] = &restored
	}
}

// Limit returns the history retention limit.
func (t *Tracker) Limit() int {
	return t.limit
}

// Profiles returns copies of all profiles keyed by item name.
func (t *Tracker) Profiles() map[string]models.PerformanceProfile {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]models.PerformanceProfile, len(t.profiles))
	for name, p := range t.profiles {
		out[name] = *p
	}
	return out
}

// RecordRun appends a completed run to the history, truncating to the
// retention limit (oldest entries dropped first).
func (t *Tracker) RecordRun(result models.ExecutionResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = append(t.history, HistoryEntry{
		PlanID:    result.PlanID,
		Timestamp: time.Now(),
		Result:    result,
	})
	if len(t.history) > t.limit {
		t.history = t.history[len(t.history)-t.limit:]
	}
}

// History returns a copy of the retained run history, oldest first.
func (t *Tracker) History() []HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]HistoryEntry(nil), t.history...)
}

// Clear drops all profiles and history.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.profiles = make(map[string]*models.PerformanceProfile)
	t.history = nil
}
