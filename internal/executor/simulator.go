package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/batonhq/baton/internal/registry"
)

// Simulator is an Invoker that fakes item execution: it sleeps a
// jittered fraction of the item's estimated duration and fails with
// probability 1 - reliability. Seeded explicitly so tests are
// deterministic.
type Simulator struct {
	reg *registry.Registry
	// scale multiplies the estimated duration to produce the simulated
	// delay. Zero disables sleeping entirely.
	scale float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulator creates a Simulator over the given registry with the
// given random seed.
func NewSimulator(reg *registry.Registry, seed int64) *Simulator {
	return &Simulator{
		reg:   reg,
		scale: 0.1,
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// SetScale sets the delay scale factor. Zero disables sleeping.
func (s *Simulator) SetScale(scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scale = scale
}

// Invoke simulates the named item. Failures are reported as
// KindUnavailable so default retry policies consider them transient.
func (s *Simulator) Invoke(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
	def, err := s.reg.Get(item)
	if err != nil {
		return nil, NewError(KindInternal, item, err)
	}

	delay, failed := s.roll(def.EstimatedDuration, def.Reliability)

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, NewError(KindTimeout, item, ctx.Err())
		}
	}

	if failed {
		return nil, NewError(KindUnavailable, item, errors.New("simulated failure"))
	}

	return map[string]any{
		"item":   item,
		"status": "completed",
		"detail": fmt.Sprintf("simulated %s execution", def.Category),
	}, nil
}

// roll draws the delay and failure outcome under the lock; math/rand
// sources are not safe for concurrent use.
func (s *Simulator) roll(estimate time.Duration, reliability float64) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var delay time.Duration
	if s.scale > 0 && estimate > 0 {
		// Jitter between 50% and 150% of the scaled estimate.
		jitter := 0.5 + s.rnd.Float64()
		delay = time.Duration(float64(estimate) * s.scale * jitter)
	}
	failed := s.rnd.Float64() >= reliability
	return delay, failed
}

var _ Invoker = (*Simulator)(nil)
