package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

// Ensure the stores implement their interfaces.
var (
	_ driven.IndexStore  = (*IndexStore)(nil)
	_ driven.ServerStore = (*ServerStore)(nil)
)

// IndexStore is an in-memory implementation of driven.IndexStore.
// Configurations are copied on the way in and out.
type IndexStore struct {
	mu      sync.RWMutex
	indexes map[string]*domain.IndexConfig
}

// NewIndexStore creates a new in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{
		indexes: make(map[string]*domain.IndexConfig),
	}
}

// Save stores or updates an index configuration.
func (s *IndexStore) Save(_ context.Context, index *domain.IndexConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[index.ID] = index.Clone()
	return nil
}

// Get retrieves an index configuration by ID.
func (s *IndexStore) Get(_ context.Context, id string) (*domain.IndexConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	index, ok := s.indexes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return index.Clone(), nil
}

// Delete removes an index configuration.
func (s *IndexStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, id)
	return nil
}

// List returns all index configurations ordered by id.
func (s *IndexStore) List(_ context.Context) ([]*domain.IndexConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.IndexConfig, 0, len(s.indexes))
	for _, index := range s.indexes {
		result = append(result, index.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ServerStore is an in-memory implementation of driven.ServerStore.
type ServerStore struct {
	mu      sync.RWMutex
	servers map[string]domain.Server
}

// NewServerStore creates a new in-memory server store.
func NewServerStore() *ServerStore {
	return &ServerStore{
		servers: make(map[string]domain.Server),
	}
}

// Save stores or updates a server.
func (s *ServerStore) Save(_ context.Context, server domain.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[server.ID] = server
	return nil
}

// Get retrieves a server by ID.
func (s *ServerStore) Get(_ context.Context, id string) (*domain.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	server, ok := s.servers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &server, nil
}

// Delete removes a server.
func (s *ServerStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.servers, id)
	return nil
}

// List returns all servers ordered by id.
func (s *ServerStore) List(_ context.Context) ([]domain.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Server, 0, len(s.servers))
	for _, server := range s.servers {
		result = append(result, server)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
