package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.taskorchestrator.dev/internal/graphengine"
	"go.taskorchestrator.dev/internal/orcherrors"
	"go.taskorchestrator.dev/internal/producer"
	"go.taskorchestrator.dev/internal/task"
)

// DefaultSimilarityThreshold matches the original handler's default and
// is used whenever a payload's similarityThreshold is 0, which is also
// what an omitted field decodes to (the Producer passes the caller's
// value through unchanged).
const DefaultSimilarityThreshold = 0.9

// DeduplicateEntitiesHandler implements §4.8.3, grounded on
// original_source/src/application/tasks/deduplicate_entities.py: load
// entities, resolve a dup -> canonical equivalence map, and (unless
// dryRun) merge each pair, logging and continuing past per-pair
// failures rather than aborting the whole run.
type DeduplicateEntitiesHandler struct {
	Graph      graphengine.Client
	Similarity SimilarityFunc
	Logger     *slog.Logger
}

func (h *DeduplicateEntitiesHandler) Kind() task.Kind { return task.KindDeduplicateEntities }

func (h *DeduplicateEntitiesHandler) TimeoutSeconds() int { return 1800 }

func (h *DeduplicateEntitiesHandler) Process(ctx context.Context, payload []byte) error {
	var fields producer.DeduplicateFields
	if err := json.Unmarshal(payload, &fields); err != nil {
		return orcherrors.Wrap(orcherrors.ErrConfiguration, "deduplicate_entities: decode payload: %v", err)
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sim := h.Similarity
	if sim == nil {
		sim = CosineSimilarity
	}
	threshold := fields.SimilarityThreshold
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}

	entities, err := h.Graph.EntitiesByGroup(ctx, fields.GroupID)
	if err != nil {
		return orcherrors.Wrap(orcherrors.ErrHandler, "deduplicate_entities: load entities for %s: %v", fields.GroupID, err)
	}
	logger.Info("deduplicate_entities: loaded entities", "group_id", fields.GroupID, "count", len(entities))

	if len(entities) < 2 {
		logger.Info("deduplicate_entities: not enough entities to deduplicate", "group_id", fields.GroupID)
		return nil
	}

	pairs := equivalenceMap(entities, sim, threshold)
	logger.Info("deduplicate_entities: found duplicate pairs", "group_id", fields.GroupID, "count", len(pairs))

	if fields.DryRun {
		logger.Info("deduplicate_entities: dry run, not merging", "group_id", fields.GroupID)
		return nil
	}

	merged := 0
	for dup, canonical := range pairs {
		if err := h.Graph.MergeEntities(ctx, dup, canonical, fields.ProjectID); err != nil {
			logger.Error("deduplicate_entities: merge failed", "dup", dup, "canonical", canonical, "error", err)
			continue
		}
		merged++
	}
	logger.Info("deduplicate_entities: merged entities", "group_id", fields.GroupID, "count", merged)

	return nil
}
