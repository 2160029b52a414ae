package driven

import (
	"context"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// SchedulerStore keeps background task state and run history across
// restarts.
type SchedulerStore interface {
	// GetTask returns nil and no error for an unknown task.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns all tasks ordered by id.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// DeleteTask removes a task together with its history.
	DeleteTask(ctx context.Context, taskID string) error

	RecordResult(ctx context.Context, result domain.TaskResult) error

	// History returns the most recent results of a task, newest first.
	// A limit of zero or less returns everything.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory keeps the newest keep results of every task.
	PruneHistory(ctx context.Context, keep int) error
}
