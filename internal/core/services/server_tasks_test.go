package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchapi/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

type taskFixture struct {
	tasks     *ServerTasks
	store     *memory.ServerTaskStore
	configs   map[string]*domain.IndexConfig
	reindexed []string
}

func newTaskFixture() *taskFixture {
	f := &taskFixture{
		store:   memory.NewServerTaskStore(),
		configs: map[string]*domain.IndexConfig{"articles": newArticleConfig("articles")},
	}
	lookup := func(id string) (*domain.IndexConfig, bool) {
		cfg, ok := f.configs[id]
		return cfg, ok
	}
	reindex := func(_ context.Context, id string) error {
		f.reindexed = append(f.reindexed, id)
		return nil
	}
	f.tasks = NewServerTasks(f.store, lookup, reindex)
	return f
}

func (f *taskFixture) queue(t *testing.T, task domain.ServerTask) {
	t.Helper()
	server := *enabledServer()
	server.Enabled = false
	require.NoError(t, f.tasks.Run(context.Background(), server, nil, task, func(driven.Backend) error {
		t.Fatal("operation must not run on a disabled server")
		return nil
	}))
}

func TestServerTasks_RunExecutesOnEnabledServer(t *testing.T) {
	f := newTaskFixture()
	backend := newMockBackend()
	ctx := context.Background()

	task := domain.ServerTask{Type: domain.ServerTaskAddIndex, IndexID: "articles"}
	err := f.tasks.Run(ctx, *enabledServer(), backend, task, func(b driven.Backend) error {
		return b.AddIndex(ctx, f.configs["articles"])
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"articles"}, backend.added)
	pending, err := f.tasks.Pending(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestServerTasks_QueueOnDisabledServer(t *testing.T) {
	f := newTaskFixture()
	f.queue(t, domain.ServerTask{Type: domain.ServerTaskDeleteItems, IndexID: "articles", ItemIDs: []string{"node|1"}})

	pending, err := f.tasks.Pending(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "default", pending[0].ServerID)
	assert.Equal(t, []string{"node|1"}, pending[0].ItemIDs)
	assert.False(t, pending[0].Created.IsZero())
}

func TestServerTasks_AddAndRemoveSupersede(t *testing.T) {
	f := newTaskFixture()
	ctx := context.Background()

	f.queue(t, domain.ServerTask{Type: domain.ServerTaskAddIndex, IndexID: "articles"})
	f.queue(t, domain.ServerTask{Type: domain.ServerTaskClearIndex, IndexID: "articles"})
	f.queue(t, domain.ServerTask{Type: domain.ServerTaskAddIndex, IndexID: "other"})
	f.queue(t, domain.ServerTask{Type: domain.ServerTaskRemoveIndex, IndexID: "articles"})

	pending, err := f.tasks.Pending(ctx, "default")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "other", pending[0].IndexID)
	assert.Equal(t, domain.ServerTaskRemoveIndex, pending[1].Type)
}

func TestServerTasks_ExecuteReplaysInOrder(t *testing.T) {
	f := newTaskFixture()
	ctx := context.Background()
	backend := newMockBackend()
	backend.fieldsDirty = true

	f.queue(t, domain.ServerTask{Type: domain.ServerTaskAddIndex, IndexID: "articles"})
	f.queue(t, domain.ServerTask{Type: domain.ServerTaskDeleteItems, IndexID: "articles", ItemIDs: []string{"node|1"}})
	f.queue(t, domain.ServerTask{Type: domain.ServerTaskClearIndex, IndexID: "articles"})
	f.queue(t, domain.ServerTask{Type: domain.ServerTaskFieldsDirty, IndexID: "articles"})

	n, err := f.tasks.Execute(ctx, *enabledServer(), backend)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, []string{"articles"}, backend.added)
	assert.Equal(t, []string{"node|1"}, backend.deleted)
	assert.Equal(t, []string{"articles"}, backend.cleared)
	assert.Equal(t, []string{"articles"}, f.reindexed)

	pending, err := f.tasks.Pending(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestServerTasks_ExecuteStopsAtFirstFailure(t *testing.T) {
	f := newTaskFixture()
	ctx := context.Background()
	backend := newMockBackend()
	backend.deleteErr = errors.New("timeout")

	f.queue(t, domain.ServerTask{Type: domain.ServerTaskAddIndex, IndexID: "articles"})
	f.queue(t, domain.ServerTask{Type: domain.ServerTaskDeleteItems, IndexID: "articles", ItemIDs: []string{"node|1"}})
	f.queue(t, domain.ServerTask{Type: domain.ServerTaskClearIndex, IndexID: "articles"})

	n, err := f.tasks.Execute(ctx, *enabledServer(), backend)
	assert.ErrorIs(t, err, backend.deleteErr)
	assert.Equal(t, 1, n)
	assert.Empty(t, backend.cleared)

	pending, err := f.tasks.Pending(ctx, "default")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, domain.ServerTaskDeleteItems, pending[0].Type)
}

func TestServerTasks_RunQueuesBehindPendingTasks(t *testing.T) {
	f := newTaskFixture()
	ctx := context.Background()
	backend := newMockBackend()
	backend.deleteErr = errors.New("timeout")

	f.queue(t, domain.ServerTask{Type: domain.ServerTaskDeleteItems, IndexID: "articles", ItemIDs: []string{"node|1"}})

	ran := false
	err := f.tasks.Run(ctx, *enabledServer(), backend,
		domain.ServerTask{Type: domain.ServerTaskClearIndex, IndexID: "articles"},
		func(driven.Backend) error { ran = true; return nil })
	require.NoError(t, err)
	assert.False(t, ran)

	pending, err := f.tasks.Pending(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestServerTasks_DropsTasksOfDeletedIndexes(t *testing.T) {
	f := newTaskFixture()
	ctx := context.Background()
	backend := newMockBackend()

	f.queue(t, domain.ServerTask{Type: domain.ServerTaskClearIndex, IndexID: "gone"})
	f.queue(t, domain.ServerTask{Type: domain.ServerTaskRemoveIndex, IndexID: "gone2"})
	f.queue(t, domain.ServerTask{Type: "rebuild", IndexID: "articles"})

	n, err := f.tasks.Execute(ctx, *enabledServer(), backend)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, backend.cleared)
	assert.Equal(t, []string{"gone2"}, backend.removed)
}

func TestServerTasks_ExecuteOnDisabledServerDoesNothing(t *testing.T) {
	f := newTaskFixture()
	f.queue(t, domain.ServerTask{Type: domain.ServerTaskAddIndex, IndexID: "articles"})

	server := *enabledServer()
	server.Enabled = false
	n, err := f.tasks.Execute(context.Background(), server, newMockBackend())
	require.NoError(t, err)
	assert.Zero(t, n)
}
