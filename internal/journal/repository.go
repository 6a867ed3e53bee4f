// Package journal implements the Task Journal (C1): the durable,
// relational record of every task the orchestrator has ever accepted,
// independent of the Queue Store's ephemeral Redis state.
package journal

import (
	"context"
	"time"

	"go.taskorchestrator.dev/internal/task"
)

// Repository defines Journal data access. Implementations must honor the
// status state machine exactly:
//
//	PENDING    -> PROCESSING
//	PROCESSING -> COMPLETED | FAILED
//	PENDING | PROCESSING -> STOPPED
//	FAILED | STOPPED | PENDING -> PENDING (via Retry, retryCount++)
//
// startedAt, completedAt, and stoppedAt are set-once: a second write to
// an already-set field must not move it forward.
type Repository interface {
	// Create inserts a new task row in PENDING status.
	Create(ctx context.Context, t *task.Task) error

	// Get fetches a task by ID. Returns orcherrors.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*task.Task, error)

	// MarkProcessing transitions a task to PROCESSING, recording the
	// claiming worker and (set-once) startedAt.
	MarkProcessing(ctx context.Context, id, workerID string) error

	// MarkCompleted transitions a task to COMPLETED, recording
	// (set-once) completedAt.
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed transitions a task to FAILED with an error message,
	// recording (set-once) completedAt.
	MarkFailed(ctx context.Context, id string, errMessage string) error

	// MarkStopped transitions a task to STOPPED, recording (set-once)
	// stoppedAt. Valid from PENDING or PROCESSING.
	MarkStopped(ctx context.Context, id string) error

	// Retry resets a task to PENDING, increments retryCount, and clears
	// errorMessage/startedAt/completedAt/stoppedAt so the task can run
	// its lifecycle again. Valid from FAILED, STOPPED, or PENDING.
	Retry(ctx context.Context, id string) error

	// RequeueTimedOut transitions a task from PROCESSING back to
	// PENDING with retryCount incremented, on behalf of the Recovery
	// Loop (§4.6), which is a distinct transition from Retry: the task
	// was never acked by its worker, so startedAt is cleared but
	// nothing about a terminal outcome applies. If the task is not
	// currently PROCESSING (its worker already acked it, racing with
	// Recovery), this is a benign no-op, not an error — Journal drift
	// against an already-terminal task is tolerated.
	RequeueTimedOut(ctx context.Context, id string) error

	// RetryAsPendingOnly increments retryCount and clears error
	// bookkeeping WITHOUT requiring the caller to also push a new
	// envelope — used when control.Operations determines an envelope
	// for this task is already in flight.
	RetryAsPendingOnly(ctx context.Context, id string) error

	// ListByGroup lists tasks for a group, most recent first.
	ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]*task.Task, error)

	// ListRecent lists the most recently created tasks across all groups.
	ListRecent(ctx context.Context, limit int) ([]*task.Task, error)

	// ListByStatus lists tasks in a given status, oldest first, for
	// operational tooling.
	ListByStatus(ctx context.Context, status task.Status, limit int) ([]*task.Task, error)
}

// now is overridable in tests; production code always uses time.Now().
var now = func() time.Time { return time.Now().UTC() }
