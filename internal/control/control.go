// Package control implements Control Operations (C7): operator-facing
// retry/stop/status/listRecent actions layered directly on the Journal
// and Queue Store, with no handler execution of their own.
package control

import (
	"context"
	"log/slog"
	"time"

	"go.taskorchestrator.dev/internal/common/metrics"
	"go.taskorchestrator.dev/internal/journal"
	"go.taskorchestrator.dev/internal/queuestore"
	"go.taskorchestrator.dev/internal/task"
)

// Operations wraps the same Journal and Queue Store the Producer does —
// grounded on producer.Producer's constructor shape, since both are
// thin orchestration layers over the same two collaborators.
type Operations struct {
	journal journal.Repository
	queue   queuestore.Store
	logger  *slog.Logger
}

func New(j journal.Repository, q queuestore.Store, logger *slog.Logger) *Operations {
	if logger == nil {
		logger = slog.Default()
	}
	return &Operations{journal: j, queue: q, logger: logger}
}

// Retry implements §4.7's retry(taskId): valid from FAILED, STOPPED, or
// PENDING. If an envelope for this task is already in flight (queued or
// claimed into processing — the PENDING-retry Open Question resolved in
// SPEC_FULL.md §9), only the Journal's retry bookkeeping is reset; no
// duplicate envelope is pushed. Otherwise the full retry sequence runs:
// Journal reset to PENDING, then a fresh envelope enqueued to the
// group's tail.
func (o *Operations) Retry(ctx context.Context, taskID string) error {
	t, err := o.journal.Get(ctx, taskID)
	if err != nil {
		return err
	}

	present, err := o.queue.EnvelopePresent(ctx, t.GroupID, taskID)
	if err != nil {
		return err
	}

	if present {
		if err := o.journal.RetryAsPendingOnly(ctx, taskID); err != nil {
			return err
		}
		metrics.ControlOperations.WithLabelValues("retry", "pending_only").Inc()
		return nil
	}

	if err := o.journal.Retry(ctx, taskID); err != nil {
		return err
	}

	env := task.Envelope{TaskID: taskID, GroupID: t.GroupID, Kind: t.Kind, Timestamp: time.Now().UTC()}
	if err := o.queue.Enqueue(ctx, env); err != nil {
		o.logger.Error("control: retry enqueue failed", "task_id", taskID, "error", err)
		return err
	}

	metrics.ControlOperations.WithLabelValues("retry", "enqueued").Inc()
	return nil
}

// Stop implements §4.7's stop(taskId): marks STOPPED without
// synchronously killing a running handler. If the task's envelope is
// still sitting in its group queue (never claimed), it is intentionally
// left in place; control.Operations does not drain the queue. The worker
// that eventually claims it does not check the Journal status: it runs
// the handler, its PROCESSING/COMPLETED/FAILED writes are rejected by
// the Journal's status guards, and the row stays STOPPED.
func (o *Operations) Stop(ctx context.Context, taskID string) error {
	if err := o.journal.MarkStopped(ctx, taskID); err != nil {
		return err
	}
	metrics.ControlOperations.WithLabelValues("stop", "ok").Inc()
	return nil
}

// Status implements §4.7's status(taskId): a read-only Journal lookup.
func (o *Operations) Status(ctx context.Context, taskID string) (*task.Task, error) {
	return o.journal.Get(ctx, taskID)
}

// ListRecent implements §4.7's listRecent: the most recently created
// tasks across all groups.
func (o *Operations) ListRecent(ctx context.Context, limit int) ([]*task.Task, error) {
	return o.journal.ListRecent(ctx, limit)
}

// ListByGroup surfaces a group's task history for operational tooling.
func (o *Operations) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]*task.Task, error) {
	return o.journal.ListByGroup(ctx, groupID, limit, offset)
}

// GroupQueueDepth reports how many envelopes are currently queued
// (not yet claimed) for a group, for operator-facing backpressure
// visibility — spec.md §4.7 notes bounding queue depth is out of scope,
// but observing it is not.
func (o *Operations) GroupQueueDepth(ctx context.Context, groupID string) (int64, error) {
	n, err := o.queue.GroupQueueLength(ctx, groupID)
	if err != nil {
		return 0, err
	}
	metrics.QueueStoreGroupDepth.WithLabelValues(groupID).Set(float64(n))
	return n, nil
}
