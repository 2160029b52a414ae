package driving

import (
	"context"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

// IndexService manages search indexes and their item tracking.
type IndexService interface {
	// List returns all index configurations ordered by id.
	List(ctx context.Context) ([]*domain.IndexConfig, error)

	// Config returns a copy of an index configuration.
	Config(ctx context.Context, indexID string) (*domain.IndexConfig, error)

	// Create adds a new index and starts tracking its items.
	Create(ctx context.Context, cfg *domain.IndexConfig) error

	// Update replaces an index configuration.
	Update(ctx context.Context, cfg *domain.IndexConfig) error

	// Delete removes an index, its tracking data, and its backend storage.
	Delete(ctx context.Context, indexID string) error

	// IndexBatch indexes up to limit pending items of an index.
	// A limit of zero uses the index's cron limit.
	IndexBatch(ctx context.Context, indexID string, limit int) (int, error)

	// IndexAll runs one batch for every enabled index.
	IndexAll(ctx context.Context, limit int) (int, error)

	// Reindex marks every item of the index as pending.
	Reindex(ctx context.Context, indexID string) error

	// Clear marks every item as pending and removes all items from the backend.
	Clear(ctx context.Context, indexID string) error

	// Status returns tracking counts for an index.
	Status(ctx context.Context, indexID string) (domain.TrackerStatus, error)

	// Fields returns the fields an index offers, keyed by field id.
	Fields(ctx context.Context, indexID string, onlyIndexed bool) (map[string]*domain.Field, error)

	// AdditionalFields returns the complex properties that can be expanded.
	AdditionalFields(ctx context.Context, indexID string) (map[string]string, error)

	// Processors returns the enabled processors of an index for a stage.
	Processors(ctx context.Context, indexID string, stage domain.Stage) ([]driven.Processor, error)
}

// SearchService executes queries against indexes.
type SearchService interface {
	// Search runs a query through the processor chain and the index backend.
	Search(ctx context.Context, q *domain.Query) (*domain.ResultSet, error)
}

// ServerService manages search servers.
type ServerService interface {
	// Servers returns all configured servers.
	Servers(ctx context.Context) ([]domain.Server, error)

	// SaveServer creates or updates a server. Enabling a server replays
	// its queued tasks.
	SaveServer(ctx context.Context, server domain.Server) error

	// ExecuteServerTasks replays queued tasks of every enabled server.
	ExecuteServerTasks(ctx context.Context) (int, error)
}

// ConfigSync moves index and server configurations between the active
// stores and a directory of editable files.
type ConfigSync interface {
	// Import applies every configuration file, creating or updating
	// servers and indexes. It returns the number of changed entries.
	Import(ctx context.Context) (int, error)

	// Export writes every active configuration to files.
	Export(ctx context.Context) (int, error)
}

// DatasourceWatcher feeds datasource change notifications into item tracking.
type DatasourceWatcher interface {
	// WatchDatasources starts following every datasource that reports
	// changes. It returns once the watches run; they stop with ctx.
	WatchDatasources(ctx context.Context) error
}
