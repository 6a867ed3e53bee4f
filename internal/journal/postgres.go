package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"go.taskorchestrator.dev/internal/orcherrors"
	"go.taskorchestrator.dev/internal/task"
)

// PostgresRepository implements Repository against a task_logs table via
// sqlx over a pgx stdlib connection. Every transition is a single
// UPDATE ... WHERE status = <allowed prior status> so illegal
// transitions are rejected by the WHERE clause (zero rows affected,
// reported as orcherrors.ErrInvariantViolation) rather than requiring a
// SELECT-then-UPDATE round trip.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps an already-connected *sqlx.DB.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type taskRow struct {
	ID           string          `db:"id"`
	GroupID      string          `db:"group_id"`
	TaskType     string          `db:"task_type"`
	Status       string          `db:"status"`
	Payload      json.RawMessage `db:"payload"`
	EntityID     sql.NullString  `db:"entity_id"`
	EntityType   sql.NullString  `db:"entity_type"`
	ParentTaskID sql.NullString  `db:"parent_task_id"`
	WorkerID     sql.NullString  `db:"worker_id"`
	RetryCount   int             `db:"retry_count"`
	ErrorMessage sql.NullString  `db:"error_message"`
	CreatedAt    sql.NullTime    `db:"created_at"`
	StartedAt    sql.NullTime    `db:"started_at"`
	CompletedAt  sql.NullTime    `db:"completed_at"`
	StoppedAt    sql.NullTime    `db:"stopped_at"`
}

func (r taskRow) toTask() *task.Task {
	t := &task.Task{
		ID:         r.ID,
		GroupID:    r.GroupID,
		Kind:       task.Kind(r.TaskType),
		Status:     task.Status(r.Status),
		Payload:    r.Payload,
		EntityID:   r.EntityID.String,
		EntityType: r.EntityType.String,
		ParentTaskID: r.ParentTaskID.String,
		WorkerID:     r.WorkerID.String,
		RetryCount:   r.RetryCount,
		ErrorMessage: r.ErrorMessage.String,
		CreatedAt:    r.CreatedAt.Time,
	}
	if r.StartedAt.Valid {
		t.StartedAt = &r.StartedAt.Time
	}
	if r.CompletedAt.Valid {
		t.CompletedAt = &r.CompletedAt.Time
	}
	if r.StoppedAt.Valid {
		t.StoppedAt = &r.StoppedAt.Time
	}
	return t
}

const taskColumns = `id, group_id, task_type, status, payload, entity_id, entity_type,
	parent_task_id, worker_id, retry_count, error_message, created_at, started_at,
	completed_at, stopped_at`

func (r *PostgresRepository) Create(ctx context.Context, t *task.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_logs (id, group_id, task_type, status, payload, entity_id,
			entity_type, parent_task_id, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, NOW())
	`, t.ID, t.GroupID, string(t.Kind), string(task.StatusPending), []byte(t.Payload),
		nullableString(t.EntityID), nullableString(t.EntityType), nullableString(t.ParentTaskID))
	if err != nil {
		return fmt.Errorf("journal: create task %s: %w", t.ID, err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	var row taskRow
	err := r.db.GetContext(ctx, &row, `SELECT `+taskColumns+` FROM task_logs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orcherrors.Wrap(orcherrors.ErrNotFound, "task %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: get task %s: %w", id, err)
	}
	return row.toTask(), nil
}

func (r *PostgresRepository) MarkProcessing(ctx context.Context, id, workerID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_logs
		SET status = $1, worker_id = $2, started_at = COALESCE(started_at, NOW())
		WHERE id = $3 AND status = $4
	`, string(task.StatusProcessing), workerID, id, string(task.StatusPending))
	return checkRowsAffected(res, err, id, "mark processing")
}

func (r *PostgresRepository) MarkCompleted(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_logs
		SET status = $1, completed_at = COALESCE(completed_at, NOW())
		WHERE id = $2 AND status = $3
	`, string(task.StatusCompleted), id, string(task.StatusProcessing))
	return checkRowsAffected(res, err, id, "mark completed")
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_logs
		SET status = $1, error_message = $2, completed_at = COALESCE(completed_at, NOW())
		WHERE id = $3 AND status = $4
	`, string(task.StatusFailed), errMessage, id, string(task.StatusProcessing))
	return checkRowsAffected(res, err, id, "mark failed")
}

func (r *PostgresRepository) MarkStopped(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_logs
		SET status = $1, stopped_at = COALESCE(stopped_at, NOW())
		WHERE id = $2 AND status IN ($3, $4)
	`, string(task.StatusStopped), id, string(task.StatusPending), string(task.StatusProcessing))
	return checkRowsAffected(res, err, id, "mark stopped")
}

func (r *PostgresRepository) Retry(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_logs
		SET status = $1, retry_count = retry_count + 1, error_message = NULL,
			started_at = NULL, completed_at = NULL, stopped_at = NULL
		WHERE id = $2 AND status IN ($3, $4, $5)
	`, string(task.StatusPending), id,
		string(task.StatusFailed), string(task.StatusStopped), string(task.StatusPending))
	return checkRowsAffected(res, err, id, "retry")
}

// RequeueTimedOut is the recovery-loop counterpart to Retry: it only
// fires from PROCESSING, and a non-matching row is a benign no-op
// rather than ErrInvariantViolation, since the worker may have already
// acked the task out from under a stalled recovery tick.
func (r *PostgresRepository) RequeueTimedOut(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE task_logs
		SET status = $1, retry_count = retry_count + 1, started_at = NULL
		WHERE id = $2 AND status = $3
	`, string(task.StatusPending), id, string(task.StatusProcessing))
	if err != nil {
		return fmt.Errorf("journal: requeue timed out %s: %w", id, err)
	}
	return nil
}

func (r *PostgresRepository) RetryAsPendingOnly(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_logs
		SET retry_count = retry_count + 1, error_message = NULL
		WHERE id = $1 AND status IN ($2, $3, $4)
	`, id, string(task.StatusFailed), string(task.StatusStopped), string(task.StatusPending))
	return checkRowsAffected(res, err, id, "retry (pending-only)")
}

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]*task.Task, error) {
	var rows []taskRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+taskColumns+` FROM task_logs
		WHERE group_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, groupID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("journal: list by group %s: %w", groupID, err)
	}
	return toTasks(rows), nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*task.Task, error) {
	var rows []taskRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+taskColumns+` FROM task_logs ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list recent: %w", err)
	}
	return toTasks(rows), nil
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, status task.Status, limit int) ([]*task.Task, error) {
	var rows []taskRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+taskColumns+` FROM task_logs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list by status %s: %w", status, err)
	}
	return toTasks(rows), nil
}

func toTasks(rows []taskRow) []*task.Task {
	out := make([]*task.Task, len(rows))
	for i, row := range rows {
		out[i] = row.toTask()
	}
	return out
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func checkRowsAffected(res sql.Result, err error, id, op string) error {
	if err != nil {
		return fmt.Errorf("journal: %s %s: %w", op, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("journal: %s %s: rows affected: %w", op, id, err)
	}
	if n == 0 {
		return orcherrors.Wrap(orcherrors.ErrInvariantViolation, "%s %s: no row matched expected prior status", op, id)
	}
	return nil
}
