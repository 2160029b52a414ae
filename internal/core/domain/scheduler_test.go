package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	assert.True(t, config.Enabled)
	assert.Len(t, config.TaskConfigs, len(BuiltinTaskIDs))
	assert.Equal(t, TaskConfig{Enabled: true, Interval: DefaultIndexBatchInterval}, config.Task(TaskIDIndexBatch))
	assert.Equal(t, TaskConfig{Enabled: true, Interval: DefaultServerTasksInterval}, config.Task(TaskIDServerTasks))
}

func TestSchedulerConfig_Task(t *testing.T) {
	config := DefaultSchedulerConfig()
	assert.Equal(t, TaskConfig{}, config.Task("unknown-task"))

	empty := SchedulerConfig{Enabled: true}
	assert.Equal(t, TaskConfig{}, empty.Task(TaskIDIndexBatch))
}

func TestTaskName(t *testing.T) {
	assert.Equal(t, "Index batch", TaskName(TaskIDIndexBatch))
	assert.Equal(t, "Server task replay", TaskName(TaskIDServerTasks))
	assert.Equal(t, "custom", TaskName("custom"))
}

func TestScheduledTask_Due(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task ScheduledTask
		want bool
	}{
		{"never ran", ScheduledTask{Enabled: true}, true},
		{"past", ScheduledTask{Enabled: true, NextRun: now.Add(-time.Second)}, true},
		{"exactly now", ScheduledTask{Enabled: true, NextRun: now}, true},
		{"future", ScheduledTask{Enabled: true, NextRun: now.Add(time.Second)}, false},
		{"disabled", ScheduledTask{NextRun: now.Add(-time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.Due(now))
		})
	}
}

func TestScheduledTask_Complete(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Second)
	task := ScheduledTask{ID: TaskIDIndexBatch, Interval: time.Minute, Enabled: true}

	task.Complete(TaskResult{StartedAt: start, EndedAt: end, Items: 12})
	assert.Equal(t, start, task.LastRun)
	assert.Equal(t, end, task.LastSuccess)
	assert.Equal(t, end.Add(time.Minute), task.NextRun)
	assert.Equal(t, 12, task.LastItems)
	assert.Empty(t, task.LastError)

	later := end.Add(time.Minute)
	task.Complete(TaskResult{StartedAt: later, EndedAt: later, Error: "backend unavailable"})
	assert.Equal(t, "backend unavailable", task.LastError)
	assert.Equal(t, end, task.LastSuccess, "a failure keeps the last success")
	assert.Zero(t, task.LastItems)
}

func TestTaskResult(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ok := TaskResult{StartedAt: start, EndedAt: start.Add(2 * time.Second)}
	assert.True(t, ok.Succeeded())
	assert.Equal(t, 2*time.Second, ok.Duration())

	failed := TaskResult{Error: "boom"}
	assert.False(t, failed.Succeeded())
}
