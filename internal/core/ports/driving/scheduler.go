package driving

import (
	"context"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// Scheduler runs batch indexing and server task replay in the background.
type Scheduler interface {
	// Start blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop waits for running tasks to finish.
	Stop() error

	// Tasks returns the stored state of every task.
	Tasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// History returns recent runs of a task, newest first.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// RunNow runs a built-in task synchronously and records the result.
	RunNow(ctx context.Context, taskID string) (domain.TaskResult, error)
}
