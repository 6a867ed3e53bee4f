package journal

import (
	"context"
	"sort"
	"sync"

	"go.taskorchestrator.dev/internal/orcherrors"
	"go.taskorchestrator.dev/internal/task"
)

// MemoryRepository is an in-process Repository used by tests and by
// local development without Postgres. It enforces the same status
// state machine as PostgresRepository.
type MemoryRepository struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
}

// NewMemoryRepository creates an empty in-memory Journal.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tasks: make(map[string]*task.Task)}
}

func (r *MemoryRepository) Create(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	cp.Status = task.StatusPending
	cp.CreatedAt = now()
	r.tasks[t.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, orcherrors.Wrap(orcherrors.ErrNotFound, "task %s", id)
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryRepository) transition(id string, from []task.Status, mutate func(t *task.Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return orcherrors.Wrap(orcherrors.ErrNotFound, "task %s", id)
	}
	allowed := false
	for _, s := range from {
		if t.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return orcherrors.Wrap(orcherrors.ErrInvariantViolation, "task %s: illegal transition from %s", id, t.Status)
	}
	mutate(t)
	return nil
}

func (r *MemoryRepository) MarkProcessing(ctx context.Context, id, workerID string) error {
	return r.transition(id, []task.Status{task.StatusPending}, func(t *task.Task) {
		t.Status = task.StatusProcessing
		t.WorkerID = workerID
		if t.StartedAt == nil {
			ts := now()
			t.StartedAt = &ts
		}
	})
}

func (r *MemoryRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.transition(id, []task.Status{task.StatusProcessing}, func(t *task.Task) {
		t.Status = task.StatusCompleted
		if t.CompletedAt == nil {
			ts := now()
			t.CompletedAt = &ts
		}
	})
}

func (r *MemoryRepository) MarkFailed(ctx context.Context, id string, errMessage string) error {
	return r.transition(id, []task.Status{task.StatusProcessing}, func(t *task.Task) {
		t.Status = task.StatusFailed
		t.ErrorMessage = errMessage
		if t.CompletedAt == nil {
			ts := now()
			t.CompletedAt = &ts
		}
	})
}

func (r *MemoryRepository) MarkStopped(ctx context.Context, id string) error {
	return r.transition(id, []task.Status{task.StatusPending, task.StatusProcessing}, func(t *task.Task) {
		t.Status = task.StatusStopped
		if t.StoppedAt == nil {
			ts := now()
			t.StoppedAt = &ts
		}
	})
}

func (r *MemoryRepository) Retry(ctx context.Context, id string) error {
	return r.transition(id, []task.Status{task.StatusFailed, task.StatusStopped, task.StatusPending}, func(t *task.Task) {
		t.Status = task.StatusPending
		t.RetryCount++
		t.ErrorMessage = ""
		t.StartedAt = nil
		t.CompletedAt = nil
		t.StoppedAt = nil
	})
}

func (r *MemoryRepository) RequeueTimedOut(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != task.StatusProcessing {
		return nil
	}
	t.Status = task.StatusPending
	t.RetryCount++
	t.StartedAt = nil
	return nil
}

func (r *MemoryRepository) RetryAsPendingOnly(ctx context.Context, id string) error {
	return r.transition(id, []task.Status{task.StatusFailed, task.StatusStopped, task.StatusPending}, func(t *task.Task) {
		t.RetryCount++
		t.ErrorMessage = ""
	})
}

func (r *MemoryRepository) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*task.Task
	for _, t := range r.tasks {
		if t.GroupID == groupID {
			cp := *t
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, limit, offset), nil
}

func (r *MemoryRepository) ListRecent(ctx context.Context, limit int) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*task.Task
	for _, t := range r.tasks {
		cp := *t
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, 0), nil
}

func (r *MemoryRepository) ListByStatus(ctx context.Context, status task.Status, limit int) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*task.Task
	for _, t := range r.tasks {
		if t.Status == status {
			cp := *t
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	return paginate(matched, limit, 0), nil
}

func paginate(tasks []*task.Task, limit, offset int) []*task.Task {
	if offset >= len(tasks) {
		return nil
	}
	tasks = tasks[offset:]
	if limit > 0 && limit < len(tasks) {
		tasks = tasks[:limit]
	}
	return tasks
}
