// Package recovery implements the Recovery Loop (C6): a single
// goroutine per worker process that periodically scans the processing
// list and re-queues any envelope whose age exceeds its handler's
// timeout.
package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.taskorchestrator.dev/internal/common/metrics"
	"go.taskorchestrator.dev/internal/journal"
	"go.taskorchestrator.dev/internal/queuestore"
	"go.taskorchestrator.dev/internal/registry"
)

// Loop runs one coroutine per worker process, grounded in structure on
// internal/outbox/processor.go's runPeriodicRecovery/doPeriodicRecovery
// ticker. Unlike that processor, Loop does not gate on fleet leadership
// — every worker process's recovery loop runs, and the operations it
// performs against the Queue Store are safe to race, per SPEC_FULL.md
// §9 (recovery never deletes a Journal row, and requeue is a benign
// no-op if the envelope was already acked).
type Loop struct {
	journal               journal.Repository
	queue                 queuestore.Store
	registry              *registry.Registry
	period                time.Duration
	defaultHandlerTimeout time.Duration
	logger                *slog.Logger

	wg sync.WaitGroup
}

func New(j journal.Repository, q queuestore.Store, reg *registry.Registry, period, defaultHandlerTimeout time.Duration, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if period <= 0 {
		period = 60 * time.Second
	}
	if defaultHandlerTimeout <= 0 {
		defaultHandlerTimeout = 10 * time.Minute
	}
	return &Loop{
		journal:               j,
		queue:                 q,
		registry:              reg,
		period:                period,
		defaultHandlerTimeout: defaultHandlerTimeout,
		logger:                logger,
	}
}

// Start launches the recovery goroutine. It runs until ctx is cancelled.
func (l *Loop) Start(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(ctx)
	}()
}

func (l *Loop) Wait() {
	l.wg.Wait()
}

func (l *Loop) run(ctx context.Context) {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick implements §4.6's four steps: snapshot, age-check, requeue,
// sleep (the sleep is the ticker itself).
func (l *Loop) tick(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.RecoveryTickDuration.Observe(time.Since(start).Seconds()) }()

	envelopes, err := l.queue.ListProcessing(ctx)
	if err != nil {
		l.logger.Error("recovery: list processing failed", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, env := range envelopes {
		limitSeconds := l.registry.TimeoutSeconds(env.Kind, int(l.defaultHandlerTimeout.Seconds()))
		limit := time.Duration(limitSeconds) * time.Second
		age := now.Sub(env.Timestamp)
		if age <= limit {
			continue
		}

		if err := l.queue.RequeueFromProcessing(ctx, env); err != nil {
			l.logger.Error("recovery: requeue failed", "task_id", env.TaskID, "group_id", env.GroupID, "error", err)
			continue
		}

		if err := l.journal.RequeueTimedOut(ctx, env.TaskID); err != nil {
			l.logger.Error("recovery: journal requeue failed", "task_id", env.TaskID, "error", err)
		}

		metrics.RecoveryTasksRequeued.Inc()
		l.logger.Info("recovery: requeued stalled task",
			"task_id", env.TaskID, "group_id", env.GroupID, "kind", env.Kind, "age_seconds", age.Seconds())
	}
}
