package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"go.taskorchestrator.dev/internal/journal"
	"go.taskorchestrator.dev/internal/queuestore"
	"go.taskorchestrator.dev/internal/registry"
	"go.taskorchestrator.dev/internal/task"
)

type countingHandler struct {
	mu      sync.Mutex
	kind    task.Kind
	timeout int
	calls   int
	fail    bool
}

func (h *countingHandler) Kind() task.Kind     { return h.kind }
func (h *countingHandler) TimeoutSeconds() int { return h.timeout }
func (h *countingHandler) Process(context.Context, []byte) error {
	h.mu.Lock()
	h.calls++
	fail := h.fail
	h.mu.Unlock()
	if fail {
		return errors.New("handler failure")
	}
	return nil
}

func (h *countingHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type panicHandler struct{}

func (panicHandler) Kind() task.Kind     { return task.KindAddEpisode }
func (panicHandler) TimeoutSeconds() int { return 5 }
func (panicHandler) Process(context.Context, []byte) error {
	panic("boom")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestPool_ProcessesEnqueuedTaskToCompletion(t *testing.T) {
	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	reg := registry.New()
	h := &countingHandler{kind: task.KindAddEpisode, timeout: 5}
	reg.Register(h)

	tsk := &task.Task{ID: "t1", GroupID: "g1", Kind: task.KindAddEpisode, Status: task.StatusPending, Payload: []byte(`{}`), CreatedAt: time.Now()}
	if err := j.Create(context.Background(), tsk); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := q.Enqueue(context.Background(), task.Envelope{TaskID: "t1", GroupID: "g1", Kind: task.KindAddEpisode, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	pool := NewPool(j, q, reg, "proc-1", Config{WorkerCount: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Wait()
	}()

	waitFor(t, 2*time.Second, func() bool {
		got, err := j.Get(context.Background(), "t1")
		return err == nil && got.Status == task.StatusCompleted
	})

	if h.callCount() != 1 {
		t.Errorf("handler called %d times, want 1", h.callCount())
	}
}

func TestPool_HandlerFailureMarksJournalFailed(t *testing.T) {
	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	reg := registry.New()
	h := &countingHandler{kind: task.KindAddEpisode, timeout: 5, fail: true}
	reg.Register(h)

	tsk := &task.Task{ID: "t1", GroupID: "g1", Kind: task.KindAddEpisode, Status: task.StatusPending, Payload: []byte(`{}`), CreatedAt: time.Now()}
	if err := j.Create(context.Background(), tsk); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := q.Enqueue(context.Background(), task.Envelope{TaskID: "t1", GroupID: "g1", Kind: task.KindAddEpisode, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	pool := NewPool(j, q, reg, "proc-1", Config{WorkerCount: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Wait()
	}()

	waitFor(t, 2*time.Second, func() bool {
		got, err := j.Get(context.Background(), "t1")
		return err == nil && got.Status == task.StatusFailed
	})
}

func TestPool_UnknownKindMarksFailedWithoutHandler(t *testing.T) {
	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	reg := registry.New()

	tsk := &task.Task{ID: "t1", GroupID: "g1", Kind: task.Kind("mystery"), Status: task.StatusPending, Payload: []byte(`{}`), CreatedAt: time.Now()}
	if err := j.Create(context.Background(), tsk); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := q.Enqueue(context.Background(), task.Envelope{TaskID: "t1", GroupID: "g1", Kind: task.Kind("mystery"), Timestamp: time.Now()}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	pool := NewPool(j, q, reg, "proc-1", Config{WorkerCount: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Wait()
	}()

	waitFor(t, 2*time.Second, func() bool {
		got, err := j.Get(context.Background(), "t1")
		return err == nil && got.Status == task.StatusFailed
	})
}

func TestPool_HandlerPanicIsRecoveredAsFailure(t *testing.T) {
	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	reg := registry.New()
	reg.Register(panicHandler{})

	tsk := &task.Task{ID: "t1", GroupID: "g1", Kind: task.KindAddEpisode, Status: task.StatusPending, Payload: []byte(`{}`), CreatedAt: time.Now()}
	if err := j.Create(context.Background(), tsk); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := q.Enqueue(context.Background(), task.Envelope{TaskID: "t1", GroupID: "g1", Kind: task.KindAddEpisode, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	pool := NewPool(j, q, reg, "proc-1", Config{WorkerCount: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Wait()
	}()

	waitFor(t, 2*time.Second, func() bool {
		got, err := j.Get(context.Background(), "t1")
		return err == nil && got.Status == task.StatusFailed
	})
}

func TestPool_CrossGroupParallelism(t *testing.T) {
	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	reg := registry.New()
	h := &countingHandler{kind: task.KindAddEpisode, timeout: 5}
	reg.Register(h)

	for _, spec := range []struct{ id, group string }{{"x", "g1"}, {"y", "g2"}} {
		tsk := &task.Task{ID: spec.id, GroupID: spec.group, Kind: task.KindAddEpisode, Status: task.StatusPending, Payload: []byte(`{}`), CreatedAt: time.Now()}
		if err := j.Create(context.Background(), tsk); err != nil {
			t.Fatalf("Create(%s): %v", spec.id, err)
		}
		if err := q.Enqueue(context.Background(), task.Envelope{TaskID: spec.id, GroupID: spec.group, Kind: task.KindAddEpisode, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Enqueue(%s): %v", spec.id, err)
		}
	}

	pool := NewPool(j, q, reg, "proc-1", Config{WorkerCount: 2}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Wait()
	}()

	waitFor(t, 2*time.Second, func() bool {
		x, errX := j.Get(context.Background(), "x")
		y, errY := j.Get(context.Background(), "y")
		return errX == nil && errY == nil && x.Status == task.StatusCompleted && y.Status == task.StatusCompleted
	})
}

func TestPool_KindLimitThrottlesProcessing(t *testing.T) {
	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	reg := registry.New()
	h := &countingHandler{kind: task.KindAddEpisode, timeout: 5}
	reg.Register(h)

	for _, id := range []string{"a", "b", "c"} {
		tsk := &task.Task{ID: id, GroupID: "g1", Kind: task.KindAddEpisode, Status: task.StatusPending, Payload: []byte(`{}`), CreatedAt: time.Now()}
		if err := j.Create(context.Background(), tsk); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
		if err := q.Enqueue(context.Background(), task.Envelope{TaskID: id, GroupID: "g1", Kind: task.KindAddEpisode, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Enqueue(%s): %v", id, err)
		}
	}

	cfg := Config{WorkerCount: 1, KindLimits: map[task.Kind]rate.Limit{task.KindAddEpisode: rate.Limit(5)}}
	pool := NewPool(j, q, reg, "proc-1", cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Wait()
	}()

	// a burst of 1 permits the first call immediately; the remaining two
	// must each wait roughly 1/5s, so three completions take over 200ms.
	start := time.Now()
	waitFor(t, 2*time.Second, func() bool { return h.callCount() == 3 })
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("elapsed = %s, want throttling to take at least 200ms", elapsed)
	}
}
