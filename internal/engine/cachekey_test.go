package engine

import "testing"

func TestCacheKeyDeterministic(t *testing.T) {
	a := cacheKey("build", map[string]any{"x": 1, "y": "two"})
	b := cacheKey("build", map[string]any{"y": "two", "x": 1})
	if a != b {
		t.Errorf("key must not depend on map insertion order: %s vs %s", a, b)
	}
}

func TestCacheKeyNestedMaps(t *testing.T) {
	a := cacheKey("build", map[string]any{"outer": map[string]any{"a": 1, "b": 2}})
	b := cacheKey("build", map[string]any{"outer": map[string]any{"b": 2, "a": 1}})
	if a != b {
		t.Errorf("nested key order must not matter: %s vs %s", a, b)
	}
}

func TestCacheKeyDistinguishes(t *testing.T) {
	if cacheKey("build", map[string]any{"x": 1}) == cacheKey("build", map[string]any{"x": 2}) {
		t.Error("different inputs must produce different keys")
	}
	if cacheKey("build", nil) == cacheKey("lint", nil) {
		t.Error("different items must produce different keys")
	}
}

func TestCacheKeyNilAndEmpty(t *testing.T) {
	// nil marshals to "null" and an empty map to "{}"; both are stable.
	if cacheKey("build", nil) != cacheKey("build", nil) {
		t.Error("nil input must be stable")
	}
	if cacheKey("build", map[string]any{}) != cacheKey("build", map[string]any{}) {
		t.Error("empty input must be stable")
	}
}
