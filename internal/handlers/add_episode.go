package handlers

import (
	"context"
	"encoding/json"

	"go.taskorchestrator.dev/internal/graphengine"
	"go.taskorchestrator.dev/internal/orcherrors"
	"go.taskorchestrator.dev/internal/producer"
	"go.taskorchestrator.dev/internal/task"
)

// AddEpisodeHandler implements §4.8.1. Its precondition — an Episodic
// node in "Processing" state already exists with uuid = episodeId — is
// created transactionally by the Producer's caller, not by this
// handler; AddEpisodeHandler only drives the graph engine forward from
// that point.
type AddEpisodeHandler struct {
	Graph graphengine.Client
}

func (h *AddEpisodeHandler) Kind() task.Kind { return task.KindAddEpisode }

func (h *AddEpisodeHandler) TimeoutSeconds() int { return 600 }

func (h *AddEpisodeHandler) Process(ctx context.Context, payload []byte) error {
	var fields producer.EpisodeFields
	if err := json.Unmarshal(payload, &fields); err != nil {
		return orcherrors.Wrap(orcherrors.ErrConfiguration, "add_episode: decode payload: %v", err)
	}

	// Idempotency: at-most-once effect per episodeId. A Completed node
	// means a prior attempt already succeeded (the worker crashed after
	// the graph write but before acking); this run is a no-op success.
	status, err := h.Graph.EpisodeStatus(ctx, fields.EpisodeID)
	if err != nil {
		return orcherrors.Wrap(orcherrors.ErrTransientStore, "add_episode: status check for %s: %v", fields.EpisodeID, err)
	}
	if status == "Completed" {
		return nil
	}

	result, err := h.Graph.AddEpisode(ctx, graphengine.AddEpisodeRequest{
		EpisodeUUID:       fields.EpisodeID,
		Name:              fields.Name,
		Content:           fields.Content,
		SourceDescription: fields.SourceDescription,
		SourceKind:        fields.SourceKind,
	})
	if err != nil {
		return orcherrors.Wrap(orcherrors.ErrHandler, "add_episode: graph.AddEpisode for %s: %v", fields.EpisodeID, err)
	}

	if err := h.Graph.PropagateAttributes(ctx, fields.EpisodeID, graphengine.Attributes{
		TenantID:  fields.TenantID,
		ProjectID: fields.ProjectID,
		UserID:    fields.UserID,
	}); err != nil {
		return orcherrors.Wrap(orcherrors.ErrHandler, "add_episode: propagate attributes for %s: %v", fields.EpisodeID, err)
	}

	if fields.ProjectID != "" && result != nil && len(result.ConnectedEntityUUIDs) > 0 {
		// best-effort per §4.8.1: a schema sync failure never fails the
		// episode ingest itself.
		_ = h.Graph.SyncSchema(ctx, fields.ProjectID, nil, nil)
	}

	return nil
}
