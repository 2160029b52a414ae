// Package nodestatus provides a processor that keeps unpublished content
// out of the index.
package nodestatus

import (
	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/processors/fieldproc"
)

// ID is the processor id.
const ID = "node_status"

// EntityType is the entity type this processor applies to.
const EntityType = "node"

// Processor rejects items whose original object reports itself as unpublished.
// Items without a publication status are kept.
type Processor struct {
	fieldproc.Plugin
}

// New creates a node status processor. It has no settings.
func New(driven.ProcessorContext, map[string]any) (*Processor, error) {
	return &Processor{
		Plugin: fieldproc.NewPlugin(ID, "Node status",
			"Exclude unpublished nodes from the index.",
			map[domain.Stage]int{domain.StagePreprocessIndex: -10}),
	}, nil
}

// SupportsIndex reports whether any datasource of the index provides nodes.
func (p *Processor) SupportsIndex(info driven.IndexInfo) bool {
	return info.HasEntityType(EntityType)
}

// PreprocessIndexItems removes unpublished items.
func (p *Processor) PreprocessIndexItems(items map[string]*domain.Item) {
	for id, item := range items {
		if obj, ok := item.Object.(domain.Publishable); ok && !obj.IsPublished() {
			delete(items, id)
		}
	}
}
