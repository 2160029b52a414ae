// Package fieldproc provides the building blocks shared by processors:
// Plugin carries metadata and no-op stage hooks, Base adds field-scoped
// value processing.
package fieldproc

import "github.com/custodia-labs/searchapi/internal/core/domain"

// Plugin implements the metadata part of driven.Processor and no-op hooks
// for every stage. Processors embed it and override what they need.
type Plugin struct {
	id          string
	label       string
	description string
	weights     map[domain.Stage]int
}

// NewPlugin creates plugin metadata. weights lists the supported stages
// with their default weights.
func NewPlugin(id, label, description string, weights map[domain.Stage]int) Plugin {
	return Plugin{id: id, label: label, description: description, weights: weights}
}

// ID returns the processor id.
func (p *Plugin) ID() string { return p.id }

// Label returns the human readable name.
func (p *Plugin) Label() string { return p.label }

// Description returns a one-line summary of what the processor does.
func (p *Plugin) Description() string { return p.description }

// SupportsStage reports whether the plugin declared a default weight for the stage.
func (p *Plugin) SupportsStage(stage domain.Stage) bool {
	_, ok := p.weights[stage]
	return ok
}

// DefaultWeight returns the declared default weight, or zero.
func (p *Plugin) DefaultWeight(stage domain.Stage) int {
	return p.weights[stage]
}

// PreprocessIndexItems does nothing; embedders override the stages they support.
func (p *Plugin) PreprocessIndexItems(map[string]*domain.Item) {}

// PreprocessSearchQuery does nothing.
func (p *Plugin) PreprocessSearchQuery(*domain.Query) {}

// PostprocessSearchResults does nothing.
func (p *Plugin) PostprocessSearchResults(*domain.ResultSet, *domain.Query) {}

// AlterPropertyDefinitions does nothing.
func (p *Plugin) AlterPropertyDefinitions(*domain.DataDefinition, string) {}
