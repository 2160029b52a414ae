package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

func taskIDs(tasks []domain.ServerTask) []string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func TestServerTaskStore_ListKeepsOrder(t *testing.T) {
	store := NewServerTaskStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, domain.ServerTask{ID: "t2", ServerID: "a", Type: domain.ServerTaskAddIndex, IndexID: "x"}))
	require.NoError(t, store.Add(ctx, domain.ServerTask{ID: "t1", ServerID: "b", Type: domain.ServerTaskClearIndex, IndexID: "y"}))
	require.NoError(t, store.Add(ctx, domain.ServerTask{ID: "t3", ServerID: "a", Type: domain.ServerTaskDeleteItems, IndexID: "x", ItemIDs: []string{"node|1"}}))

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t1", "t3"}, taskIDs(all))

	forA, err := store.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t3"}, taskIDs(forA))
	assert.Equal(t, []string{"node|1"}, forA[1].ItemIDs)
}

func TestServerTaskStore_Delete(t *testing.T) {
	store := NewServerTaskStore()
	ctx := context.Background()
	for _, id := range []string{"t1", "t2", "t3"} {
		_ = store.Add(ctx, domain.ServerTask{ID: id, ServerID: "a", IndexID: "x"})
	}

	require.NoError(t, store.Delete(ctx, []string{"t1", "t3", "missing"}))

	all, _ := store.List(ctx, "")
	assert.Equal(t, []string{"t2"}, taskIDs(all))
}

func TestServerTaskStore_DeleteForIndex(t *testing.T) {
	store := NewServerTaskStore()
	ctx := context.Background()
	_ = store.Add(ctx, domain.ServerTask{ID: "t1", ServerID: "a", IndexID: "x"})
	_ = store.Add(ctx, domain.ServerTask{ID: "t2", ServerID: "a", IndexID: "y"})
	_ = store.Add(ctx, domain.ServerTask{ID: "t3", ServerID: "b", IndexID: "x"})

	require.NoError(t, store.DeleteForIndex(ctx, "x"))

	all, _ := store.List(ctx, "")
	assert.Equal(t, []string{"t2"}, taskIDs(all))
}

func TestServerTaskStore_AddCopiesItemIDs(t *testing.T) {
	store := NewServerTaskStore()
	ctx := context.Background()
	ids := []string{"node|1"}
	_ = store.Add(ctx, domain.ServerTask{ID: "t1", ItemIDs: ids})
	ids[0] = "node|2"

	all, _ := store.List(ctx, "")
	assert.Equal(t, []string{"node|1"}, all[0].ItemIDs)
}
