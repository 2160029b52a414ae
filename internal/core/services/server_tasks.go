package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/logger"
)

// ServerTasks runs backend operations, queueing those a server cannot
// accept right now and replaying them later in creation order.
type ServerTasks struct {
	store   driven.ServerTaskStore
	lookup  func(indexID string) (*domain.IndexConfig, bool)
	reindex func(ctx context.Context, indexID string) error
	log     *logger.Logger
}

// NewServerTasks creates a task runner. lookup resolves index configurations
// when a queued task is replayed; tasks of indexes it does not know are dropped.
// reindex is called when a backend asks for a reindex after a field change.
func NewServerTasks(
	store driven.ServerTaskStore,
	lookup func(indexID string) (*domain.IndexConfig, bool),
	reindex func(ctx context.Context, indexID string) error,
) *ServerTasks {
	return &ServerTasks{
		store:   store,
		lookup:  lookup,
		reindex: reindex,
		log:     logger.With("server tasks"),
	}
}

// Run performs op against the backend of server. The operation is queued
// instead when the server is disabled, when earlier tasks of the server
// cannot be replayed, or when op fails. Adding or removing an index drops
// every earlier task concerning that index.
func (t *ServerTasks) Run(
	ctx context.Context,
	server domain.Server,
	backend driven.Backend,
	task domain.ServerTask,
	op func(driven.Backend) error,
) error {
	task.ServerID = server.ID
	if task.Type == domain.ServerTaskAddIndex || task.Type == domain.ServerTaskRemoveIndex {
		if err := t.store.DeleteForIndex(ctx, task.IndexID); err != nil {
			return fmt.Errorf("drop superseded tasks of %s: %w", task.IndexID, err)
		}
	}

	if !server.Enabled || backend == nil {
		return t.queue(ctx, task)
	}

	pending, err := t.store.List(ctx, server.ID)
	if err != nil {
		return fmt.Errorf("list tasks of server %s: %w", server.ID, err)
	}
	if len(pending) > 0 {
		if _, err := t.Execute(ctx, server, backend); err != nil {
			t.log.Warn("server %s still has pending tasks: %v", server.ID, err)
			return t.queue(ctx, task)
		}
	}

	if err := op(backend); err != nil {
		t.log.Warn("%s on server %s failed, queued for later: %v", task.Type, server.ID, err)
		return t.queue(ctx, task)
	}
	return nil
}

func (t *ServerTasks) queue(ctx context.Context, task domain.ServerTask) error {
	task.ID = uuid.NewString()
	task.Created = time.Now()
	if err := t.store.Add(ctx, task); err != nil {
		return fmt.Errorf("queue %s task: %w", task.Type, err)
	}
	t.log.Debug("queued %s for index %s on server %s", task.Type, task.IndexID, task.ServerID)
	return nil
}

// Pending returns the queued tasks of a server. An empty id lists all.
func (t *ServerTasks) Pending(ctx context.Context, serverID string) ([]domain.ServerTask, error) {
	return t.store.List(ctx, serverID)
}

// Execute replays the queued tasks of an enabled server in order. It stops
// at the first failure and returns the number of tasks completed.
func (t *ServerTasks) Execute(ctx context.Context, server domain.Server, backend driven.Backend) (int, error) {
	if !server.Enabled || backend == nil {
		return 0, nil
	}
	tasks, err := t.store.List(ctx, server.ID)
	if err != nil {
		return 0, fmt.Errorf("list tasks of server %s: %w", server.ID, err)
	}

	done := 0
	for _, task := range tasks {
		if err := t.apply(ctx, backend, task); err != nil {
			return done, fmt.Errorf("task %s (%s %s): %w", task.ID, task.Type, task.IndexID, err)
		}
		if err := t.store.Delete(ctx, []string{task.ID}); err != nil {
			return done, fmt.Errorf("delete task %s: %w", task.ID, err)
		}
		done++
	}
	return done, nil
}

func (t *ServerTasks) apply(ctx context.Context, backend driven.Backend, task domain.ServerTask) error {
	if task.Type == domain.ServerTaskRemoveIndex {
		return backend.RemoveIndex(ctx, task.IndexID)
	}

	cfg, ok := t.lookup(task.IndexID)
	if !ok {
		t.log.Debug("dropping %s task of deleted index %s", task.Type, task.IndexID)
		return nil
	}

	switch task.Type {
	case domain.ServerTaskAddIndex:
		return backend.AddIndex(ctx, cfg)
	case domain.ServerTaskDeleteItems:
		return backend.DeleteItems(ctx, cfg, task.ItemIDs)
	case domain.ServerTaskClearIndex:
		return backend.DeleteAllItems(ctx, cfg)
	case domain.ServerTaskFieldsDirty:
		dirty, err := backend.FieldsUpdated(ctx, cfg)
		if err != nil {
			return err
		}
		if dirty && t.reindex != nil {
			return t.reindex(ctx, task.IndexID)
		}
		return nil
	default:
		t.log.Warn("dropping task %s of unknown type %q", task.ID, task.Type)
		return nil
	}
}
