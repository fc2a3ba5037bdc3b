package driven

import (
	"context"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

// SchedulerStore persists daemon task state so schedules survive
// restarts, plus one result row per execution.
type SchedulerStore interface {
	// GetTask returns nil and no error if the task does not exist.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns every stored task.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask creates or updates a task by ID.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// RecordResult appends an execution. Index results reference the
	// crawl run they recorded.
	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// PruneHistory keeps the newest keep results per task.
	PruneHistory(ctx context.Context, keep int) error
}
