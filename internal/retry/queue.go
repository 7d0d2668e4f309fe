package retry

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	apperrors "github.com/allisson/clinicops/internal/errors"
)

// Task is a unit of delayed work. ID makes scheduling idempotent: a second Schedule
// with the same ID while the first is still queued is ignored.
type Task struct {
	ID        string
	Type      string
	Payload   []byte
	NotBefore time.Time
}

// TaskQueue schedules delayed tasks.
type TaskQueue interface {
	// Schedule enqueues task and reports false when a task with the same ID is already queued.
	Schedule(ctx context.Context, task Task) (bool, error)
}

// AsynqTaskQueue implements TaskQueue on top of an asynq client.
type AsynqTaskQueue struct {
	client *asynq.Client
	queue  string
}

// NewAsynqTaskQueue creates an AsynqTaskQueue that enqueues on the named queue.
func NewAsynqTaskQueue(client *asynq.Client, queue string) *AsynqTaskQueue {
	return &AsynqTaskQueue{
		client: client,
		queue:  queue,
	}
}

// Schedule enqueues the task to be processed at NotBefore. Tasks are never retried by
// asynq itself; the owning component decides about the next attempt.
func (q *AsynqTaskQueue) Schedule(ctx context.Context, task Task) (bool, error) {
	_, err := q.client.EnqueueContext(
		ctx,
		asynq.NewTask(task.Type, task.Payload),
		asynq.TaskID(task.ID),
		asynq.ProcessAt(task.NotBefore),
		asynq.MaxRetry(0),
		asynq.Queue(q.queue),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return false, nil
		}
		return false, apperrors.Wrapf(err, "failed to enqueue task %s", task.ID)
	}
	return true, nil
}
