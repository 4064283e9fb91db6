package render

import (
	"strings"
	"testing"
	"time"

	"github.com/batonhq/baton/pkg/models"
)

func TestPlanOutput(t *testing.T) {
	plan := &models.ExecutionPlan{
		ID:      "abc123",
		Name:    "release",
		Timeout: 30 * time.Second,
		Steps: []models.PlanStep{
			{ID: "s0", Item: "fetch", Group: 0},
			{ID: "s1", Item: "build", Group: 1, DependsOn: []string{"fetch"},
				Retry: models.RetryPolicy{MaxRetries: 3}},
		},
	}

	out := Plan(plan)
	for _, want := range []string{"release", "Group 0", "Group 1", "fetch", "build", "after fetch", "retries: 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestRound(t *testing.T) {
	if got := round(1234567890 * time.Nanosecond); got != 1230*time.Millisecond {
		t.Errorf("expected 1.23s, got %s", got)
	}
	if got := round(1234567 * time.Nanosecond); got != 1230*time.Microsecond {
		t.Errorf("expected 1.23ms, got %s", got)
	}
	if got := round(999 * time.Nanosecond); got != 999*time.Nanosecond {
		t.Errorf("expected sub-millisecond durations untouched, got %s", got)
	}
}
