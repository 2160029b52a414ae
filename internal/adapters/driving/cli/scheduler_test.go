package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

func resetSchedulerFlags() {
	schedulerHistoryLimit = 10
}

func TestScheduler_NotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	for _, args := range [][]string{
		{"scheduler", "status"},
		{"scheduler", "history", domain.TaskIDIndexBatch},
		{"scheduler", "run", domain.TaskIDIndexBatch},
	} {
		_, err := execute(args...)
		assert.ErrorIs(t, err, errSchedulerMissing, args)
	}
}

func TestSchedulerStatus(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	last := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	scheduler = &mockScheduler{tasks: []domain.ScheduledTask{
		{ID: domain.TaskIDIndexBatch, Name: "Index batch", Interval: 5 * time.Minute, Enabled: true, LastRun: last, LastItems: 42},
		{ID: domain.TaskIDServerTasks, Name: "Server task replay", Interval: 15 * time.Minute, LastError: "server offline"},
	}}

	out, err := execute("scheduler", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Index batch (index-batch)")
	assert.Contains(t, out, "5m0s")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "server offline")
}

func TestSchedulerStatus_Empty(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	scheduler = &mockScheduler{}

	out, err := execute("scheduler", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks have been scheduled yet")
}

func TestSchedulerHistory(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defer resetSchedulerFlags()

	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	s := &mockScheduler{history: map[string][]domain.TaskResult{
		domain.TaskIDIndexBatch: {
			{TaskID: domain.TaskIDIndexBatch, StartedAt: start, EndedAt: start.Add(1500 * time.Millisecond), Items: 17},
			{TaskID: domain.TaskIDIndexBatch, StartedAt: start.Add(-time.Hour), EndedAt: start.Add(-time.Hour), Error: "backend down"},
		},
	}}
	scheduler = s

	out, err := execute("scheduler", "history", domain.TaskIDIndexBatch, "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, s.limit)
	assert.Contains(t, out, "17 items")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "failed: backend down")

	out, err = execute("scheduler", "history", domain.TaskIDServerTasks)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded for server-tasks")
}

func TestSchedulerRun(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	s := &mockScheduler{result: domain.TaskResult{StartedAt: start, EndedAt: start.Add(2 * time.Second), Items: 8}}
	scheduler = s

	out, err := execute("scheduler", "run", domain.TaskIDIndexBatch)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskIDIndexBatch, s.ran)
	assert.Contains(t, out, "Index batch handled 8 items in 2s.")
}

func TestSchedulerRun_Failures(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	scheduler = &mockScheduler{runErr: domain.ErrTaskRunning}
	_, err := execute("scheduler", "run", domain.TaskIDIndexBatch)
	assert.ErrorIs(t, err, domain.ErrTaskRunning)

	scheduler = &mockScheduler{result: domain.TaskResult{Items: 3, Error: "server offline"}}
	_, err = execute("scheduler", "run", domain.TaskIDServerTasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server-tasks failed after 3 items: server offline")
}
