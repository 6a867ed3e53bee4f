package control

import (
	"context"
	"testing"
	"time"

	"go.taskorchestrator.dev/internal/journal"
	"go.taskorchestrator.dev/internal/queuestore"
	"go.taskorchestrator.dev/internal/task"
)

func seedTask(t *testing.T, j journal.Repository, id, group string) {
	t.Helper()
	if err := j.Create(context.Background(), &task.Task{ID: id, GroupID: group, Kind: task.KindAddEpisode, Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestOperations_Retry_FromFailed_EnqueuesFreshEnvelope(t *testing.T) {
	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	ops := New(j, q, nil)
	ctx := context.Background()

	seedTask(t, j, "t1", "g1")
	if err := j.MarkProcessing(ctx, "t1", "worker-1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := j.MarkFailed(ctx, "t1", "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	if err := ops.Retry(ctx, "t1"); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	got, err := j.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != task.StatusPending || got.RetryCount != 1 {
		t.Errorf("status=%s retryCount=%d, want PENDING/1", got.Status, got.RetryCount)
	}

	env, ok, err := q.ClaimNext(ctx, "g1")
	if err != nil || !ok {
		t.Fatalf("expected a re-enqueued envelope, ok=%v err=%v", ok, err)
	}
	if env.TaskID != "t1" {
		t.Errorf("envelope task id = %s, want t1", env.TaskID)
	}
}

func TestOperations_Retry_WithEnvelopeAlreadyInFlight_DoesNotDuplicate(t *testing.T) {
	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	ops := New(j, q, nil)
	ctx := context.Background()

	seedTask(t, j, "t1", "g1")
	env := task.Envelope{TaskID: "t1", GroupID: "g1", Kind: task.KindAddEpisode, Timestamp: time.Now()}
	if err := q.Enqueue(ctx, env); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := ops.Retry(ctx, "t1"); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	n, err := q.GroupQueueLength(ctx, "g1")
	if err != nil {
		t.Fatalf("GroupQueueLength: %v", err)
	}
	if n != 1 {
		t.Errorf("group queue length = %d, want 1 (no duplicate envelope)", n)
	}
}

func TestOperations_Stop_MarksStoppedWithoutTouchingQueue(t *testing.T) {
	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	ops := New(j, q, nil)
	ctx := context.Background()

	seedTask(t, j, "t1", "g1")
	env := task.Envelope{TaskID: "t1", GroupID: "g1", Kind: task.KindAddEpisode, Timestamp: time.Now()}
	if err := q.Enqueue(ctx, env); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := ops.Stop(ctx, "t1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got, err := ops.Status(ctx, "t1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Status != task.StatusStopped {
		t.Errorf("status = %s, want STOPPED", got.Status)
	}

	n, err := q.GroupQueueLength(ctx, "g1")
	if err != nil {
		t.Fatalf("GroupQueueLength: %v", err)
	}
	if n != 1 {
		t.Errorf("envelope should be left in place after Stop, got length %d", n)
	}
}

func TestOperations_ListRecentAndListByGroup(t *testing.T) {
	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	ops := New(j, q, nil)
	ctx := context.Background()

	seedTask(t, j, "t1", "g1")
	seedTask(t, j, "t2", "g2")

	recent, err := ops.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("ListRecent returned %d tasks, want 2", len(recent))
	}

	byGroup, err := ops.ListByGroup(ctx, "g1", 10, 0)
	if err != nil {
		t.Fatalf("ListByGroup: %v", err)
	}
	if len(byGroup) != 1 || byGroup[0].ID != "t1" {
		t.Errorf("ListByGroup(g1) = %+v, want just t1", byGroup)
	}
}
