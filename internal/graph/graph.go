// Package graph builds dependency graphs over registered items and
// orders them for plan construction.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/batonhq/baton/internal/registry"
)

// ErrCycleDetected indicates a circular dependency was found among the
// requested items.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed acyclic graph of item dependencies.
// Nodes are item names, and edges point from an item to the items it
// depends on. Built fresh per plan request; not persisted.
type DependencyGraph struct {
	// edges maps item name to the names it depends on.
	edges map[string][]string
}

// Build resolves the requested item names against the registry into a
// dependency graph. Dependencies are looked up in the registry, not the
// request: a dependency must be registered but need not be explicitly
// requested — transitive dependencies are pulled in automatically.
// Any unregistered name fails the whole build with ErrItemNotFound.
func Build(requested []string, reg *registry.Registry) (*DependencyGraph, error) {
	g := &DependencyGraph{edges: make(map[string][]string)}

	pending := append([]string(nil), requested...)
	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]

		if _, seen := g.edges[name]; seen {
			continue
		}

		def, err := reg.Get(name)
		if err != nil {
			return nil, fmt.Errorf("build dependency graph: %w", err)
		}

		deps := append([]string(nil), def.DependsOn...)
		g.edges[name] = deps
		pending = append(pending, deps...)
	}

	return g, nil
}

// Dependencies returns the names the given item depends on.
func (g *DependencyGraph) Dependencies(name string) []string {
	return g.edges[name]
}

// Dependents returns the names that depend on the given item.
func (g *DependencyGraph) Dependents(name string) []string {
	var dependents []string
	for node, deps := range g.edges {
		for _, dep := range deps {
			if dep == name {
				dependents = append(dependents, node)
				break
			}
		}
	}
	return dependents
}

// Size returns the number of nodes in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.edges)
}

// Names returns all node names sorted lexicographically.
func (g *DependencyGraph) Names() []string {
	names := make([]string, 0, len(g.edges))
	for name := range g.edges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
const (
	white = iota
	gray
	black
)

// Sort returns the graph's nodes in topological order alongside their
// parallel group numbers. An item with no dependencies lands in group
// 0; otherwise its group is one past the maximum group among its
// dependencies, so every dependency's group is strictly lower than its
// dependents'. A back edge fails with ErrCycleDetected naming the
// offending item.
func (g *DependencyGraph) Sort() (order []string, groups map[string]int, err error) {
	colors := make(map[string]int, len(g.edges))
	groups = make(map[string]int, len(g.edges))

	var visit func(name string) error
	visit = func(name string) error {
		colors[name] = gray

		group := 0
		for _, dep := range g.edges[name] {
			switch colors[dep] {
			case gray:
				// Found a back edge - cycle detected.
				return fmt.Errorf("%w: %s", ErrCycleDetected, dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
			// color == black means already processed; its group is final.
			if depGroup := groups[dep] + 1; depGroup > group {
				group = depGroup
			}
		}

		colors[name] = black
		groups[name] = group
		order = append(order, name)
		return nil
	}

	// Visit in lexicographic order so identical requests produce
	// identical plans.
	for _, name := range g.Names() {
		if colors[name] == white {
			if err := visit(name); err != nil {
				return nil, nil, err
			}
		}
	}

	return order, groups, nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	_, _, err := g.Sort()
	return errors.Is(err, ErrCycleDetected)
}
