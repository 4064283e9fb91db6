package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/batonhq/baton/internal/registry"
	"github.com/batonhq/baton/pkg/models"
)

func simRegistry(t *testing.T, reliability float64) *registry.Registry {
	t.Helper()
	reg := registry.New()
	err := reg.Register(models.ItemDefinition{
		Name:              "probe",
		Category:          models.CategoryValidation,
		EstimatedDuration: time.Millisecond,
		Reliability:       reliability,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func TestSimulatorSuccessOutput(t *testing.T) {
	sim := NewSimulator(simRegistry(t, 1.0), 1)
	sim.SetScale(0)

	out, err := sim.Invoke(context.Background(), "probe", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["item"] != "probe" || out["status"] != "completed" {
		t.Errorf("unexpected output: %v", out)
	}
}

func TestSimulatorFailureIsUnavailable(t *testing.T) {
	sim := NewSimulator(simRegistry(t, 0.0), 1)
	sim.SetScale(0)

	_, err := sim.Invoke(context.Background(), "probe", nil)
	if err == nil {
		t.Fatal("expected failure at reliability 0")
	}
	if got := Classify(err); got != KindUnavailable {
		t.Errorf("expected unavailable, got %s", got)
	}
}

func TestSimulatorUnknownItem(t *testing.T) {
	sim := NewSimulator(simRegistry(t, 1.0), 1)

	_, err := sim.Invoke(context.Background(), "ghost", nil)
	if !errors.Is(err, registry.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
	if got := Classify(err); got != KindInternal {
		t.Errorf("expected internal, got %s", got)
	}
}

func TestSimulatorFailureRateConverges(t *testing.T) {
	const reliability = 0.8
	sim := NewSimulator(simRegistry(t, reliability), 42)
	sim.SetScale(0)

	const n = 2000
	successes := 0
	for i := 0; i < n; i++ {
		if _, err := sim.Invoke(context.Background(), "probe", nil); err == nil {
			successes++
		}
	}

	rate := float64(successes) / n
	if rate < reliability-0.05 || rate > reliability+0.05 {
		t.Errorf("observed success rate %.3f, expected within 0.05 of %.2f", rate, reliability)
	}
}

func TestSimulatorRespectsContext(t *testing.T) {
	reg := registry.New()
	err := reg.Register(models.ItemDefinition{
		Name:              "slow",
		Category:          models.CategoryGeneration,
		EstimatedDuration: 10 * time.Second,
		Reliability:       1.0,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	sim := NewSimulator(reg, 1)
	sim.SetScale(1.0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = sim.Invoke(ctx, "slow", nil)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if got := Classify(err); got != KindTimeout {
		t.Errorf("expected timeout, got %s", got)
	}
}
