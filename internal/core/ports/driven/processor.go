package driven

import "github.com/custodia-labs/searchapi/internal/core/domain"

// Processor transforms items, queries, or results at one or more pipeline stages.
// One instance is built per index and reused for every stage of a run, so a
// processor may record state while preprocessing a query and read it back
// while postprocessing the results.
type Processor interface {
	// ID returns the stable processor identifier.
	ID() string

	// Label returns the human-readable name.
	Label() string

	// Description explains what the processor does.
	Description() string

	// SupportsStage reports whether the processor runs at the stage.
	SupportsStage(stage domain.Stage) bool

	// DefaultWeight returns the weight used when the index configures none.
	DefaultWeight(stage domain.Stage) int

	// PreprocessIndexItems transforms items in place.
	// Deleting an entry rejects the item.
	PreprocessIndexItems(items map[string]*domain.Item)

	// PreprocessSearchQuery rewrites a query before execution.
	PreprocessSearchQuery(q *domain.Query)

	// PostprocessSearchResults rewrites results after execution.
	PostprocessSearchResults(rs *domain.ResultSet, q *domain.Query)

	// AlterPropertyDefinitions adds or changes properties the processor contributes.
	// The datasource id is empty for index-level properties.
	AlterPropertyDefinitions(props *domain.DataDefinition, datasourceID string)
}

// IndexSupporter is implemented by processors that only work on some indexes.
type IndexSupporter interface {
	SupportsIndex(info IndexInfo) bool
}

// IndexInfo describes the index a processor is being attached to.
type IndexInfo struct {
	// ID is the index id.
	ID string

	// DatasourceIDs lists the datasources of the index.
	DatasourceIDs []string

	// EntityTypes maps datasource id to the entity type it provides.
	// Non-entity datasources map to an empty string.
	EntityTypes map[string]string
}

// HasEntityType reports whether any datasource of the index provides the entity type.
func (i IndexInfo) HasEntityType(entityType string) bool {
	for _, et := range i.EntityTypes {
		if et == entityType {
			return true
		}
	}
	return false
}

// FieldExtractor fills field values from an item's property tree.
type FieldExtractor interface {
	ExtractFields(data domain.ComplexData, fields map[string]*domain.Field)
}

// ProcessorContext is handed to processor builders.
type ProcessorContext struct {
	// Index describes the owning index.
	Index IndexInfo

	// Fields holds the configured fields of the index.
	Fields map[string]domain.FieldConfig

	// Extractor resolves property paths that are not configured as fields.
	Extractor FieldExtractor

	// DataTypes is the data type registry.
	DataTypes *domain.DataTypeRegistry
}
