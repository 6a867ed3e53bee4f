// Package worker implements the Worker Pool (C4): N cooperative workers
// per process, each repeatedly claiming one task from an unlocked
// active group and running its handler.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go.taskorchestrator.dev/internal/common/metrics"
	"go.taskorchestrator.dev/internal/journal"
	"go.taskorchestrator.dev/internal/orcherrors"
	"go.taskorchestrator.dev/internal/queuestore"
	"go.taskorchestrator.dev/internal/registry"
	"go.taskorchestrator.dev/internal/task"
)

// Config bounds a Pool's behavior; zero values are replaced with the
// SPEC_FULL.md §6 defaults by NewPool.
type Config struct {
	WorkerCount            int
	ActiveGroupsSampleSize int
	GroupLockTTL           time.Duration
	DefaultHandlerTimeout  time.Duration
	NoWorkBackoff          time.Duration
	LockContentionBackoff  time.Duration

	// KindLimits optionally caps the per-second rate at which a given
	// task.Kind is handed to a handler, process-wide across all of this
	// Pool's workers. A kind absent from the map runs unthrottled. This
	// is an operational safety valve (e.g. rebuild_communities hammering
	// the graph engine), not a correctness requirement — nothing in
	// SPEC_FULL.md's handler contracts depends on throttling.
	KindLimits map[task.Kind]rate.Limit
}

func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.ActiveGroupsSampleSize <= 0 {
		c.ActiveGroupsSampleSize = 5
	}
	if c.GroupLockTTL <= 0 {
		c.GroupLockTTL = time.Hour
	}
	if c.DefaultHandlerTimeout <= 0 {
		c.DefaultHandlerTimeout = 10 * time.Minute
	}
	if c.NoWorkBackoff <= 0 {
		c.NoWorkBackoff = 250 * time.Millisecond
	}
	if c.LockContentionBackoff <= 0 {
		c.LockContentionBackoff = 50 * time.Millisecond
	}
	return c
}

// Pool runs Config.WorkerCount goroutines against a shared Journal,
// Queue Store, and Handler Registry. Grounded in idiom (panic recovery
// via defer/recover around handler invocation, atomic-counter-backed
// gauges updated in place of a continuous ticker, WaitGroup-based
// drain) on router/pool/pool.go — not in architecture, since that
// pool's per-message-group goroutine model doesn't fit this spec's
// "N workers pull from a shared active-group pool" shape.
type Pool struct {
	journal   journal.Repository
	queue     queuestore.Store
	registry  *registry.Registry
	logger    *slog.Logger
	cfg       Config
	processID string
	limiters  map[task.Kind]*rate.Limiter

	wg sync.WaitGroup
}

// NewPool constructs a Pool. processID identifies this worker process
// and is prefixed onto each worker's lock-ownership token
// ("<processID>-worker-<i>"), so no two workers, in the same process or
// in different ones, share ownership of a group lock.
func NewPool(j journal.Repository, q queuestore.Store, reg *registry.Registry, processID string, cfg Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	limiters := make(map[task.Kind]*rate.Limiter, len(cfg.KindLimits))
	for kind, limit := range cfg.KindLimits {
		limiters[kind] = rate.NewLimiter(limit, 1)
	}

	return &Pool{
		journal:   j,
		queue:     q,
		registry:  reg,
		logger:    logger,
		cfg:       cfg,
		processID: processID,
		limiters:  limiters,
	}
}

// Start launches the configured number of worker goroutines. They run
// until ctx is cancelled; Start returns immediately.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.processID, i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runWorker(ctx, workerID)
		}()
	}
}

// Wait blocks until every worker goroutine has returned, i.e. until ctx
// is cancelled and in-flight handlers drain.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		group, sampled, ok := p.acquireAnyGroup(ctx, workerID)
		if !ok {
			backoff := p.cfg.NoWorkBackoff
			if sampled {
				backoff = p.cfg.LockContentionBackoff
			}
			if !sleepOrDone(ctx, backoff) {
				return
			}
			continue
		}

		p.drainGroup(ctx, workerID, group)
	}
}

// acquireAnyGroup samples up to ActiveGroupsSampleSize active groups
// and walks them in order, trying to acquire each one's lock, breaking
// on the first success — §4.4 step 2. The sampled return distinguishes
// "no active groups at all" (back off longer) from "groups exist but
// all locked by other workers" (back off briefly and retry sooner).
func (p *Pool) acquireAnyGroup(ctx context.Context, workerID string) (group string, sampled, ok bool) {
	groups, err := p.queue.SampleActiveGroups(ctx, p.cfg.ActiveGroupsSampleSize)
	if err != nil {
		p.logger.Error("sample active groups failed", "worker_id", workerID, "error", err)
		return "", false, false
	}
	if len(groups) == 0 {
		return "", false, false
	}

	shuffle(groups)
	for _, candidate := range groups {
		acquired, err := p.queue.TryAcquireGroupLock(ctx, candidate, workerID, p.cfg.GroupLockTTL)
		if err != nil {
			p.logger.Error("acquire group lock failed", "worker_id", workerID, "group_id", candidate, "error", err)
			continue
		}
		if acquired {
			return candidate, true, true
		}
	}
	return "", true, false
}

// drainGroup claims and processes exactly one envelope from group
// while holding its lock, then releases the lock on every exit path —
// §4.4 step 3.
func (p *Pool) drainGroup(ctx context.Context, workerID, group string) {
	defer func() {
		if err := p.queue.ReleaseGroupLock(ctx, group, workerID); err != nil {
			p.logger.Error("release group lock failed", "worker_id", workerID, "group_id", group, "error", err)
		}
	}()

	env, ok, err := p.queue.ClaimNext(ctx, group)
	if err != nil {
		p.logger.Error("claim next envelope failed", "worker_id", workerID, "group_id", group, "error", err)
		return
	}
	if !ok {
		if err := p.queue.DeactivateGroupIfEmpty(ctx, group); err != nil {
			p.logger.Error("deactivate empty group failed", "worker_id", workerID, "group_id", group, "error", err)
		}
		return
	}

	metrics.WorkerActiveWorkers.Inc()
	defer metrics.WorkerActiveWorkers.Dec()

	p.processEnvelope(ctx, workerID, env)
}

func (p *Pool) processEnvelope(ctx context.Context, workerID string, env task.Envelope) {
	handler, ok := p.registry.Lookup(env.Kind)
	if !ok {
		p.logger.Error("unknown task kind, acking without processing",
			"worker_id", workerID, "task_id", env.TaskID, "kind", env.Kind)
		if err := p.queue.Ack(ctx, env); err != nil {
			p.logger.Error("ack for unknown kind failed", "task_id", env.TaskID, "error", err)
		}
		if err := p.journal.MarkProcessing(ctx, env.TaskID, workerID); err != nil {
			p.logger.Error("mark processing for unknown kind failed", "task_id", env.TaskID, "error", err)
		}
		if err := p.journal.MarkFailed(ctx, env.TaskID, fmt.Sprintf("unknown kind: %s", env.Kind)); err != nil {
			p.logger.Error("mark failed for unknown kind failed", "task_id", env.TaskID, "error", err)
		}
		metrics.WorkerTasksProcessed.WithLabelValues(string(env.Kind), "unknown_kind").Inc()
		return
	}

	if err := p.journal.MarkProcessing(ctx, env.TaskID, workerID); err != nil {
		p.logger.Error("mark processing failed, continuing with handler anyway",
			"task_id", env.TaskID, "error", err)
	}

	t, err := p.journal.Get(ctx, env.TaskID)
	if err != nil {
		p.logger.Error("fetch journal row for claimed envelope failed",
			"task_id", env.TaskID, "error", err)
		p.finish(ctx, env, orcherrors.Wrap(orcherrors.ErrTransientStore, "worker: fetch task %s: %v", env.TaskID, err))
		return
	}

	if limiter, ok := p.limiters[env.Kind]; ok {
		if err := limiter.Wait(ctx); err != nil {
			p.finish(ctx, env, orcherrors.Wrap(orcherrors.ErrTransientStore, "worker: rate limit wait for %s: %v", env.Kind, err))
			return
		}
	}

	timeout := time.Duration(handler.TimeoutSeconds()) * time.Second
	if timeout <= 0 {
		timeout = p.cfg.DefaultHandlerTimeout
	}
	taskCtx, cancel := context.WithTimeout(task.WithID(ctx, env.TaskID), timeout)
	defer cancel()

	start := time.Now()
	err = p.invoke(handler, taskCtx, t.Payload)
	metrics.WorkerTaskDuration.WithLabelValues(string(env.Kind)).Observe(time.Since(start).Seconds())

	p.finish(ctx, env, err)
}

// invoke runs the handler with panic recovery, grounded on
// router/pool.go's processMessage: a handler panic becomes an error
// rather than taking down the worker goroutine.
func (p *Pool) invoke(h registry.Handler, ctx context.Context, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.WorkerPanicsRecovered.WithLabelValues(string(h.Kind())).Inc()
			p.logger.Error("handler panicked", "kind", h.Kind(), "panic", r)
			err = orcherrors.Wrap(orcherrors.ErrHandler, "handler %s panicked: %v", h.Kind(), r)
		}
	}()
	return h.Process(ctx, payload)
}

func (p *Pool) finish(ctx context.Context, env task.Envelope, handlerErr error) {
	if err := p.queue.Ack(ctx, env); err != nil {
		p.logger.Error("ack failed", "task_id", env.TaskID, "error", err)
	}

	if handlerErr == nil {
		if err := p.journal.MarkCompleted(ctx, env.TaskID); err != nil {
			p.logger.Error("mark completed failed", "task_id", env.TaskID, "error", err)
		}
		metrics.WorkerTasksProcessed.WithLabelValues(string(env.Kind), "completed").Inc()
		return
	}

	if err := p.journal.MarkFailed(ctx, env.TaskID, handlerErr.Error()); err != nil {
		p.logger.Error("mark failed failed", "task_id", env.TaskID, "error", err)
	}
	metrics.WorkerTasksProcessed.WithLabelValues(string(env.Kind), "failed").Inc()
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func shuffle(groups []string) {
	rand.Shuffle(len(groups), func(i, j int) { groups[i], groups[j] = groups[j], groups[i] })
}
