package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

var _ driven.SchedulerStore = (*SchedulerStore)(nil)

// SchedulerStore keeps task state and run history in memory.
// History slices are ordered newest first.
type SchedulerStore struct {
	mu      sync.RWMutex
	tasks   map[string]domain.ScheduledTask
	history map[string][]domain.TaskResult
}

// NewSchedulerStore creates an empty store.
func NewSchedulerStore() *SchedulerStore {
	return &SchedulerStore{
		tasks:   make(map[string]domain.ScheduledTask),
		history: make(map[string][]domain.TaskResult),
	}
}

func (s *SchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (s *SchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make([]domain.ScheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	slices.SortFunc(tasks, func(a, b domain.ScheduledTask) int { return strings.Compare(a.ID, b.ID) })
	return tasks, nil
}

func (s *SchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

func (s *SchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	delete(s.history, taskID)
	return nil
}

// RecordResult inserts a result at its place in start-time order.
func (s *SchedulerStore) RecordResult(_ context.Context, result domain.TaskResult) error {
	if result.TaskID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[result.TaskID]
	i := 0
	for i < len(h) && h[i].StartedAt.After(result.StartedAt) {
		i++
	}
	s.history[result.TaskID] = slices.Insert(h, i, result)
	return nil
}

func (s *SchedulerStore) History(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[taskID]
	if limit > 0 && len(h) > limit {
		h = h[:limit]
	}
	return slices.Clone(h), nil
}

func (s *SchedulerStore) PruneHistory(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.history {
		if len(h) > keep {
			s.history[id] = slices.Clone(h[:max(keep, 0)])
		}
	}
	return nil
}
