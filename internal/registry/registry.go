// Package registry holds the set of declared work items. It is a pure
// data store: lookup, listing and lifecycle, no scheduling behavior.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/batonhq/baton/pkg/models"
)

// ErrDuplicateName indicates a strict-mode registration collided with
// an existing item.
var ErrDuplicateName = errors.New("item already registered")

// ErrItemNotFound indicates a lookup for an unregistered item name.
var ErrItemNotFound = errors.New("item not found")

// Registry stores item definitions by name. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	items map[string]models.ItemDefinition
	// strict rejects re-registration of an existing name instead of
	// overwriting it.
	strict bool
}

// New creates an empty Registry in overwrite mode.
func New() *Registry {
	return &Registry{items: make(map[string]models.ItemDefinition)}
}

// NewStrict creates an empty Registry that rejects duplicate names.
func NewStrict() *Registry {
	r := New()
	r.strict = true
	return r
}

// Register adds or replaces an item definition. In strict mode,
// registering an existing name returns ErrDuplicateName.
func (r *Registry) Register(def models.ItemDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid item %q: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.strict {
		if _, exists := r.items[def.Name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateName, def.Name)
		}
	}
	r.items[def.Name] = def
	return nil
}

// Get returns the definition for the given name.
func (r *Registry) Get(name string) (models.ItemDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.items[name]
	if !ok {
		return models.ItemDefinition{}, fmt.Errorf("%w: %s", ErrItemNotFound, name)
	}
	return def, nil
}

// Has returns true if the name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[name]
	return ok
}

// List returns all registered definitions sorted by name.
func (r *Registry) List() []models.ItemDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]models.ItemDefinition, 0, len(r.items))
	for _, def := range r.items {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Snapshot returns a copy of the name -> definition map.
func (r *Registry) Snapshot() map[string]models.ItemDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.ItemDefinition, len(r.items))
	for name, def := range r.items {
		out[name] = def
	}
	return out
}

// Size returns the number of registered items.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Clear removes all registered items.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]models.ItemDefinition)
}
