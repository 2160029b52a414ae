package driven

import (
	"context"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// Backend stores and searches processed items.
type Backend interface {
	// Kind returns the backend kind.
	Kind() domain.BackendKind

	// AddIndex prepares storage for an index.
	AddIndex(ctx context.Context, index *domain.IndexConfig) error

	// RemoveIndex drops all storage of an index.
	RemoveIndex(ctx context.Context, indexID string) error

	// FieldsUpdated is called when an index's field configuration changed.
	// It returns true when all items must be reindexed.
	FieldsUpdated(ctx context.Context, index *domain.IndexConfig) (bool, error)

	// IndexItems stores items and returns the ids that were indexed.
	IndexItems(ctx context.Context, index *domain.IndexConfig, items map[string]*domain.Item) ([]string, error)

	// DeleteItems removes items by combined id.
	DeleteItems(ctx context.Context, index *domain.IndexConfig, ids []string) error

	// DeleteAllItems removes every item of the index.
	DeleteAllItems(ctx context.Context, index *domain.IndexConfig) error

	// Search executes a query.
	Search(ctx context.Context, index *domain.IndexConfig, q *domain.Query) (*domain.ResultSet, error)

	// SupportsFeature reports support for an optional feature, such as
	// "search_api_data_type_<type>" for native custom data types.
	SupportsFeature(feature string) bool

	// Close releases resources.
	Close() error
}

// BackendFactory creates a backend for a server configuration.
type BackendFactory func(server domain.Server) (Backend, error)
