package driven

import (
	"context"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// Datasource provides items and the property schema they follow.
type Datasource interface {
	// ID returns the datasource id, e.g. "entity:node".
	ID() string

	// EntityType returns the entity type of the items, or empty for non-entities.
	EntityType() string

	// PropertyDefinitions returns the root definition of the item property tree.
	PropertyDefinitions() *domain.DataDefinition

	// LoadItems loads items by raw id. Ids that cannot be loaded are absent
	// from the result.
	LoadItems(ctx context.Context, ids []string) (map[string]*domain.Item, error)

	// ItemIDs returns the raw ids of all items.
	ItemIDs(ctx context.Context) ([]string, error)
}

// ChangeType classifies an item change reported by a datasource.
type ChangeType string

const (
	ChangeInserted ChangeType = "inserted"
	ChangeUpdated  ChangeType = "updated"
	ChangeDeleted  ChangeType = "deleted"
)

// ItemChange reports raw item ids that changed in a datasource.
type ItemChange struct {
	DatasourceID string
	Type         ChangeType
	IDs          []string
}

// ChangeNotifier is implemented by datasources that can push changes.
type ChangeNotifier interface {
	// Watch emits changes until ctx is cancelled.
	Watch(ctx context.Context) (<-chan ItemChange, error)
}
