package driven

import (
	"context"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// IndexStore persists index configurations.
type IndexStore interface {
	// Save stores or updates an index configuration.
	Save(ctx context.Context, index *domain.IndexConfig) error

	// Get retrieves an index configuration by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.IndexConfig, error)

	// Delete removes an index configuration.
	Delete(ctx context.Context, id string) error

	// List returns all index configurations ordered by id.
	List(ctx context.Context) ([]*domain.IndexConfig, error)
}

// ServerStore persists server configurations.
type ServerStore interface {
	Save(ctx context.Context, server domain.Server) error
	Get(ctx context.Context, id string) (*domain.Server, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Server, error)
}

// ServerTaskStore persists operations queued for unavailable servers.
type ServerTaskStore interface {
	// Add queues a task.
	Add(ctx context.Context, task domain.ServerTask) error

	// List returns the tasks of a server in creation order.
	// An empty server id lists tasks of all servers.
	List(ctx context.Context, serverID string) ([]domain.ServerTask, error)

	// Delete removes tasks by id.
	Delete(ctx context.Context, ids []string) error

	// DeleteForIndex removes every task concerning an index.
	DeleteForIndex(ctx context.Context, indexID string) error
}
