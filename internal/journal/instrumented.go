package journal

import (
	"context"

	"go.taskorchestrator.dev/internal/common/repository"
	"go.taskorchestrator.dev/internal/task"
)

// instrumentedRepository wraps a Repository with the shared
// repository.Instrument helper, recording per-operation duration and
// error metrics under the "task_logs" collection label.
type instrumentedRepository struct {
	inner Repository
}

// NewInstrumented wraps repo so every call records duration/error
// metrics and structured logs via internal/common/repository.Instrument.
func NewInstrumented(repo Repository) Repository {
	return &instrumentedRepository{inner: repo}
}

const collection = "task_logs"

func (r *instrumentedRepository) Create(ctx context.Context, t *task.Task) error {
	return repository.InstrumentVoid(ctx, collection, "create", func() error {
		return r.inner.Create(ctx, t)
	})
}

func (r *instrumentedRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	return repository.Instrument(ctx, collection, "get", func() (*task.Task, error) {
		return r.inner.Get(ctx, id)
	})
}

func (r *instrumentedRepository) MarkProcessing(ctx context.Context, id, workerID string) error {
	return repository.InstrumentVoid(ctx, collection, "mark_processing", func() error {
		return r.inner.MarkProcessing(ctx, id, workerID)
	})
}

func (r *instrumentedRepository) MarkCompleted(ctx context.Context, id string) error {
	return repository.InstrumentVoid(ctx, collection, "mark_completed", func() error {
		return r.inner.MarkCompleted(ctx, id)
	})
}

func (r *instrumentedRepository) MarkFailed(ctx context.Context, id string, errMessage string) error {
	return repository.InstrumentVoid(ctx, collection, "mark_failed", func() error {
		return r.inner.MarkFailed(ctx, id, errMessage)
	})
}

func (r *instrumentedRepository) MarkStopped(ctx context.Context, id string) error {
	return repository.InstrumentVoid(ctx, collection, "mark_stopped", func() error {
		return r.inner.MarkStopped(ctx, id)
	})
}

func (r *instrumentedRepository) Retry(ctx context.Context, id string) error {
	return repository.InstrumentVoid(ctx, collection, "retry", func() error {
		return r.inner.Retry(ctx, id)
	})
}

func (r *instrumentedRepository) RequeueTimedOut(ctx context.Context, id string) error {
	return repository.InstrumentVoid(ctx, collection, "requeue_timed_out", func() error {
		return r.inner.RequeueTimedOut(ctx, id)
	})
}

func (r *instrumentedRepository) RetryAsPendingOnly(ctx context.Context, id string) error {
	return repository.InstrumentVoid(ctx, collection, "retry_pending_only", func() error {
		return r.inner.RetryAsPendingOnly(ctx, id)
	})
}

func (r *instrumentedRepository) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]*task.Task, error) {
	return repository.Instrument(ctx, collection, "list_by_group", func() ([]*task.Task, error) {
		return r.inner.ListByGroup(ctx, groupID, limit, offset)
	})
}

func (r *instrumentedRepository) ListRecent(ctx context.Context, limit int) ([]*task.Task, error) {
	return repository.Instrument(ctx, collection, "list_recent", func() ([]*task.Task, error) {
		return r.inner.ListRecent(ctx, limit)
	})
}

func (r *instrumentedRepository) ListByStatus(ctx context.Context, status task.Status, limit int) ([]*task.Task, error) {
	return repository.Instrument(ctx, collection, "list_by_status", func() ([]*task.Task, error) {
		return r.inner.ListByStatus(ctx, status, limit)
	})
}
