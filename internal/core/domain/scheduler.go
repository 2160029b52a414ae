package domain

import "time"

// Task IDs of the built-in background jobs.
const (
	TaskIDIndexBatch  = "index-batch"
	TaskIDServerTasks = "server-tasks"
)

// DefaultServerTasksInterval is how often queued server tasks are replayed.
const DefaultServerTasksInterval = 15 * time.Minute

// BuiltinTaskIDs lists the background jobs in the order they are checked.
var BuiltinTaskIDs = []string{TaskIDIndexBatch, TaskIDServerTasks}

// TaskName returns the display name of a built-in task, or the id itself.
func TaskName(id string) string {
	switch id {
	case TaskIDIndexBatch:
		return "Index batch"
	case TaskIDServerTasks:
		return "Server task replay"
	}
	return id
}

// ScheduledTask is the persisted state of one background job.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time
	LastError   string

	// LastItems counts what the last run handled: items indexed for
	// index-batch, tasks replayed for server-tasks.
	LastItems int
}

// Due reports whether the task should run at now. A task that never ran
// is due at once.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && (t.NextRun.IsZero() || !t.NextRun.After(now))
}

// Complete applies the outcome of a run and schedules the next one.
func (t *ScheduledTask) Complete(r TaskResult) {
	t.LastRun = r.StartedAt
	t.LastItems = r.Items
	t.NextRun = r.EndedAt.Add(t.Interval)
	if r.Succeeded() {
		t.LastError = ""
		t.LastSuccess = r.EndedAt
		return
	}
	t.LastError = r.Error
}

// TaskResult is one entry of a task's run history.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Items     int

	// Error is empty for a successful run.
	Error string
}

// Succeeded reports whether the run finished without error.
func (r TaskResult) Succeeded() bool { return r.Error == "" }

// Duration returns how long the run took.
func (r TaskResult) Duration() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	TaskConfigs map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Task returns the configuration of a task, or a zero TaskConfig.
func (c *SchedulerConfig) Task(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig enables both built-in tasks.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDIndexBatch:  {Enabled: true, Interval: DefaultIndexBatchInterval},
			TaskIDServerTasks: {Enabled: true, Interval: DefaultServerTasksInterval},
		},
	}
}
