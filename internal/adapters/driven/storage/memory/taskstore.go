package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

// Ensure ServerTaskStore implements the interface.
var _ driven.ServerTaskStore = (*ServerTaskStore)(nil)

// ServerTaskStore is an in-memory implementation of driven.ServerTaskStore.
// Tasks are kept in insertion order.
type ServerTaskStore struct {
	mu    sync.RWMutex
	tasks []domain.ServerTask
}

// NewServerTaskStore creates a new in-memory server task store.
func NewServerTaskStore() *ServerTaskStore {
	return &ServerTaskStore{}
}

// Add queues a task.
func (s *ServerTaskStore) Add(_ context.Context, task domain.ServerTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ItemIDs = append([]string(nil), task.ItemIDs...)
	s.tasks = append(s.tasks, task)
	return nil
}

// List returns the tasks of a server in creation order.
func (s *ServerTaskStore) List(_ context.Context, serverID string) ([]domain.ServerTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.ServerTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		if serverID == "" || task.ServerID == serverID {
			result = append(result, task)
		}
	}
	return result, nil
}

// Delete removes tasks by id.
func (s *ServerTaskStore) Delete(_ context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	s.remove(func(task domain.ServerTask) bool { return drop[task.ID] })
	return nil
}

// DeleteForIndex removes every task concerning an index.
func (s *ServerTaskStore) DeleteForIndex(_ context.Context, indexID string) error {
	s.remove(func(task domain.ServerTask) bool { return task.IndexID == indexID })
	return nil
}

func (s *ServerTaskStore) remove(match func(domain.ServerTask) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.tasks[:0]
	for _, task := range s.tasks {
		if !match(task) {
			kept = append(kept, task)
		}
	}
	s.tasks = kept
}
