// Package manifest loads item definitions and pipeline requests from
// YAML files, validating them against an embedded JSON schema before
// decoding.
package manifest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/batonhq/baton/pkg/models"
)

// Item is the YAML shape of an item definition. Durations are strings
// ("2s", "150ms") parsed with time.ParseDuration.
type Item struct {
	Name              string   `yaml:"name"`
	Category          string   `yaml:"category"`
	DependsOn         []string `yaml:"depends_on"`
	EstimatedDuration string   `yaml:"estimated_duration"`
	EstimatedCost     float64  `yaml:"estimated_cost"`
	Reliability       float64  `yaml:"reliability"`
	Parallelizable    bool     `yaml:"parallelizable"`
	Cacheable         bool     `yaml:"cacheable"`
	// Command optionally binds the item to a shell command for the
	// command invoker.
	Command string `yaml:"command"`
}

// PipelineItem names a requested item with its input payload.
type PipelineItem struct {
	Name  string         `yaml:"name"`
	Input map[string]any `yaml:"input"`
}

// Pipeline is a named request for a set of items plus plan settings.
type Pipeline struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Items       []PipelineItem `yaml:"items"`
	Options     Options        `yaml:"options"`
	Constraints Constraints    `yaml:"constraints"`
}

// Options is the YAML shape of plan options.
type Options struct {
	Parallel       *bool  `yaml:"parallel"`
	Caching        *bool  `yaml:"caching"`
	TargetDuration string `yaml:"target_duration"`
	MaxConcurrent  int    `yaml:"max_concurrent"`
}

// Constraints is the YAML shape of plan constraints.
type Constraints struct {
	MaxDuration    string  `yaml:"max_duration"`
	MaxCost        float64 `yaml:"max_cost"`
	MinReliability float64 `yaml:"min_reliability"`
}

// Manifest is a parsed manifest file.
type Manifest struct {
	Items     []Item     `yaml:"items"`
	Pipelines []Pipeline `yaml:"pipelines"`
}

// Load reads, validates and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	if err := validate(data); err != nil {
		return nil, fmt.Errorf("validate manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Definitions converts manifest items into model definitions.
func (m *Manifest) Definitions() ([]models.ItemDefinition, error) {
	defs := make([]models.ItemDefinition, 0, len(m.Items))
	for _, item := range m.Items {
		dur, err := parseDuration(item.EstimatedDuration)
		if err != nil {
			return nil, fmt.Errorf("item %s: estimated_duration: %w", item.Name, err)
		}

		def := models.ItemDefinition{
			Name:              item.Name,
			Category:          models.Category(item.Category),
			DependsOn:         item.DependsOn,
			EstimatedDuration: dur,
			EstimatedCost:     item.EstimatedCost,
			Reliability:       item.Reliability,
			Parallelizable:    item.Parallelizable,
			Cacheable:         item.Cacheable,
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("item %s: %w", item.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Commands returns the item -> shell command bindings declared in the
// manifest. Items without a command are omitted.
func (m *Manifest) Commands() map[string]string {
	out := make(map[string]string)
	for _, item := range m.Items {
		if item.Command != "" {
			out[item.Name] = item.Command
		}
	}
	return out
}

// Pipeline returns the named pipeline, or the only one if name is
// empty and exactly one is declared.
func (m *Manifest) Pipeline(name string) (*Pipeline, error) {
	if name == "" {
		if len(m.Pipelines) == 1 {
			return &m.Pipelines[0], nil
		}
		return nil, fmt.Errorf("manifest declares %d pipelines; name one explicitly", len(m.Pipelines))
	}
	for i := range m.Pipelines {
		if m.Pipelines[i].Name == name {
			return &m.Pipelines[i], nil
		}
	}
	return nil, fmt.Errorf("pipeline %q not found in manifest", name)
}

// PlanOptions converts YAML options to model options. Parallelism and
// caching default to enabled when unset.
func (p *Pipeline) PlanOptions() (models.PlanOptions, error) {
	opts := models.PlanOptions{Parallel: true, Caching: true, MaxConcurrent: p.Options.MaxConcurrent}
	if p.Options.Parallel != nil {
		opts.Parallel = *p.Options.Parallel
	}
	if p.Options.Caching != nil {
		opts.Caching = *p.Options.Caching
	}

	target, err := parseDuration(p.Options.TargetDuration)
	if err != nil {
		return opts, fmt.Errorf("pipeline %s: target_duration: %w", p.Name, err)
	}
	opts.TargetDuration = target
	return opts, nil
}

// PlanConstraints converts YAML constraints to model constraints.
func (p *Pipeline) PlanConstraints() (models.PlanConstraints, error) {
	maxDur, err := parseDuration(p.Constraints.MaxDuration)
	if err != nil {
		return models.PlanConstraints{}, fmt.Errorf("pipeline %s: max_duration: %w", p.Name, err)
	}
	return models.PlanConstraints{
		MaxDuration:    maxDur,
		MaxCost:        p.Constraints.MaxCost,
		MinReliability: p.Constraints.MinReliability,
	}, nil
}

// parseDuration parses an optional duration string; empty means zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
