// Package producer implements the Producer API (C3): the entry points
// that write a Journal row and enqueue its envelope.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.taskorchestrator.dev/internal/common/tsid"
	"go.taskorchestrator.dev/internal/journal"
	"go.taskorchestrator.dev/internal/orcherrors"
	"go.taskorchestrator.dev/internal/queuestore"
	"go.taskorchestrator.dev/internal/task"
)

// Producer wraps the Journal and Queue Store to satisfy §4.3: write
// Journal(PENDING), then enqueue; never block on workers.
type Producer struct {
	journal journal.Repository
	queue   queuestore.Store
	logger  *slog.Logger
}

func New(j journal.Repository, q queuestore.Store, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{journal: j, queue: q, logger: logger}
}

// EpisodeFields is the payload for enqueueEpisode, mirroring §4.8.1's
// input shape.
type EpisodeFields struct {
	EpisodeID         string `json:"episodeId"`
	Name              string `json:"name"`
	Content           string `json:"content"`
	SourceDescription string `json:"sourceDescription"`
	SourceKind        string `json:"sourceKind"`
	TenantID          string `json:"tenantId"`
	ProjectID         string `json:"projectId"`
	UserID            string `json:"userId"`
	CorrelationID     string `json:"correlationId,omitempty"`
}

// EnqueueEpisode writes Journal(PENDING) and enqueues an add_episode
// task in groupID.
func (p *Producer) EnqueueEpisode(ctx context.Context, groupID string, fields EpisodeFields) (string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", orcherrors.Wrap(orcherrors.ErrConfiguration, "producer: marshal episode fields: %v", err)
	}
	return p.enqueue(ctx, groupID, task.KindAddEpisode, payload, fields.EpisodeID, "episode")
}

// RebuildCommunitiesFields is the payload for enqueueRebuildCommunities.
type RebuildCommunitiesFields struct {
	GroupID string `json:"groupId"`
}

// EnqueueRebuildCommunities writes Journal(PENDING) and enqueues a
// rebuild_communities task. Per SPEC_FULL.md §9, the legacy "global"
// magic group id is rejected here too, before a Journal row is even
// created, so callers get the failure at enqueue time rather than at
// handler execution time.
func (p *Producer) EnqueueRebuildCommunities(ctx context.Context, groupID string) (string, error) {
	return p.enqueueRebuildCommunities(ctx, groupID, "")
}

// EnqueueChildRebuildCommunities is EnqueueRebuildCommunities with
// parentTaskID recorded, used by IncrementalRefreshHandler when
// rebuildCommunities is set (§4.8.4) so the Journal's parentTaskId
// column (spec.md §4.1) traces the child back to the refresh that
// triggered it.
func (p *Producer) EnqueueChildRebuildCommunities(ctx context.Context, groupID, parentTaskID string) (string, error) {
	return p.enqueueRebuildCommunities(ctx, groupID, parentTaskID)
}

func (p *Producer) enqueueRebuildCommunities(ctx context.Context, groupID, parentTaskID string) (string, error) {
	if groupID == "" || groupID == "global" {
		return "", orcherrors.Wrap(orcherrors.ErrInvariantViolation, "producer: rebuild_communities requires a concrete group id, got %q", groupID)
	}
	payload, err := json.Marshal(RebuildCommunitiesFields{GroupID: groupID})
	if err != nil {
		return "", orcherrors.Wrap(orcherrors.ErrConfiguration, "producer: marshal rebuild communities fields: %v", err)
	}
	return p.enqueueWithParent(ctx, groupID, task.KindRebuildCommunities, payload, "", "", parentTaskID)
}

// DeduplicateFields is the payload for enqueueDeduplicate.
type DeduplicateFields struct {
	GroupID             string  `json:"groupId"`
	SimilarityThreshold float64 `json:"similarityThreshold"`
	DryRun              bool    `json:"dryRun"`
	ProjectID           string  `json:"projectId,omitempty"`
}

func (p *Producer) EnqueueDeduplicate(ctx context.Context, fields DeduplicateFields) (string, error) {
	if fields.SimilarityThreshold < 0 || fields.SimilarityThreshold > 1 {
		return "", orcherrors.Wrap(orcherrors.ErrInvariantViolation, "producer: similarityThreshold %v out of range [0,1]", fields.SimilarityThreshold)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", orcherrors.Wrap(orcherrors.ErrConfiguration, "producer: marshal deduplicate fields: %v", err)
	}
	return p.enqueue(ctx, fields.GroupID, task.KindDeduplicateEntities, payload, "", "")
}

// IncrementalRefreshFields is the payload for enqueueIncrementalRefresh.
type IncrementalRefreshFields struct {
	GroupID            string   `json:"groupId"`
	EpisodeUUIDs       []string `json:"episodeUuids,omitempty"`
	RebuildCommunities bool     `json:"rebuildCommunities"`
	ProjectID          string   `json:"projectId,omitempty"`
	TenantID           string   `json:"tenantId,omitempty"`
	UserID             string   `json:"userId,omitempty"`
}

func (p *Producer) EnqueueIncrementalRefresh(ctx context.Context, fields IncrementalRefreshFields) (string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", orcherrors.Wrap(orcherrors.ErrConfiguration, "producer: marshal incremental refresh fields: %v", err)
	}
	return p.enqueue(ctx, fields.GroupID, task.KindIncrementalRefresh, payload, "", "")
}

// enqueue is the shared §4.3 behavior: generate a taskId, write the
// Journal row PENDING, build and push the envelope. If the Journal
// write fails, nothing is enqueued. If the Queue Store write fails,
// the Journal row is marked FAILED with a clear cause rather than left
// orphaned as silently PENDING-with-no-envelope.
func (p *Producer) enqueue(ctx context.Context, groupID string, kind task.Kind, payload json.RawMessage, entityID, entityType string) (string, error) {
	return p.enqueueWithParent(ctx, groupID, kind, payload, entityID, entityType, "")
}

func (p *Producer) enqueueWithParent(ctx context.Context, groupID string, kind task.Kind, payload json.RawMessage, entityID, entityType, parentTaskID string) (string, error) {
	taskID := tsid.Generate()
	now := time.Now().UTC()

	t := &task.Task{
		ID:           taskID,
		GroupID:      groupID,
		Kind:         kind,
		Status:       task.StatusPending,
		Payload:      payload,
		EntityID:     entityID,
		EntityType:   entityType,
		ParentTaskID: parentTaskID,
		CreatedAt:    now,
	}
	if err := p.journal.Create(ctx, t); err != nil {
		return "", orcherrors.Wrap(orcherrors.ErrTransientStore, "producer: create journal row for %s/%s: %v", groupID, kind, err)
	}

	env := task.Envelope{TaskID: taskID, GroupID: groupID, Kind: kind, Timestamp: now}
	if err := p.queue.Enqueue(ctx, env); err != nil {
		p.logger.Error("enqueue failed after journal write, marking failed",
			"task_id", taskID, "group_id", groupID, "kind", kind, "error", err)
		// The Journal only admits FAILED from PROCESSING, so the row
		// passes through PROCESSING first.
		if markErr := p.journal.MarkProcessing(ctx, taskID, "producer"); markErr != nil {
			p.logger.Error("failed to mark orphaned journal row as processing",
				"task_id", taskID, "error", markErr)
		}
		if markErr := p.journal.MarkFailed(ctx, taskID, fmt.Sprintf("enqueue failed: %v", err)); markErr != nil {
			p.logger.Error("failed to mark orphaned journal row as failed",
				"task_id", taskID, "error", markErr)
		}
		return "", orcherrors.Wrap(orcherrors.ErrTransientStore, "producer: enqueue %s/%s: %v", groupID, kind, err)
	}

	return taskID, nil
}
