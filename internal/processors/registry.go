// Package processors builds and orders the processors of an index.
package processors

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

// BuilderFunc creates a Processor from generic settings.
// Settings is a map of processor-specific options parsed from index config.
type BuilderFunc func(ctx driven.ProcessorContext, settings map[string]any) (driven.Processor, error)

// Definition describes a registered processor.
type Definition struct {
	ID          string
	Label       string
	Description string
	Build       BuilderFunc
}

// Registry maps processor ids to their definitions.
// It is filled once at startup and read-only afterwards.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry creates a new processor registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
	}
}

// Register adds a processor definition to the registry.
// ID should be unique and match the processor's ID() return value.
func (r *Registry) Register(def Definition) {
	r.defs[def.ID] = def
}

// Build creates a processor by id with the given settings.
// Returns an error wrapping domain.ErrUnknownProcessor if the id is not registered.
func (r *Registry) Build(id string, ctx driven.ProcessorContext, settings map[string]any) (driven.Processor, error) {
	def, ok := r.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProcessor, id)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return def.Build(ctx, settings)
}

// Has returns true if a processor with the given id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.defs[id]
	return ok
}

// Definition returns the definition of a processor.
func (r *Registry) Definition(id string) (Definition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// Names returns all registered processor ids, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for id := range r.defs {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}
