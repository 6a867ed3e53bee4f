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

// RebuildCommunitiesHandler implements §4.8.2, grounded on
// original_source/src/application/tasks/community.py's do_rebuild
// sequence (remove, detect, save-with-embeddings, save edges, set
// member_count) — scoped to a single group rather than that source's
// "rebuild all groups" behavior, per the REDESIGN FLAG in spec.md §9
// that forbids the legacy group_id == "global" fan-out.
type RebuildCommunitiesHandler struct {
	Graph  graphengine.Client
	Logger *slog.Logger
}

func (h *RebuildCommunitiesHandler) Kind() task.Kind { return task.KindRebuildCommunities }

func (h *RebuildCommunitiesHandler) TimeoutSeconds() int { return 3600 }

func (h *RebuildCommunitiesHandler) Process(ctx context.Context, payload []byte) error {
	var fields producer.RebuildCommunitiesFields
	if err := json.Unmarshal(payload, &fields); err != nil {
		return orcherrors.Wrap(orcherrors.ErrConfiguration, "rebuild_communities: decode payload: %v", err)
	}
	if fields.GroupID == "" || fields.GroupID == "global" {
		return orcherrors.Wrap(orcherrors.ErrInvariantViolation, "rebuild_communities: empty or reserved group id %q", fields.GroupID)
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := h.Graph.DeleteCommunitiesByGroup(ctx, fields.GroupID); err != nil {
		return orcherrors.Wrap(orcherrors.ErrHandler, "rebuild_communities: delete existing for %s: %v", fields.GroupID, err)
	}

	communities, edges, err := h.Graph.BuildCommunities(ctx, fields.GroupID)
	if err != nil {
		return orcherrors.Wrap(orcherrors.ErrHandler, "rebuild_communities: detect communities for %s: %v", fields.GroupID, err)
	}

	for i := range communities {
		c := communities[i]
		c.ProjectID = fields.GroupID
		if err := h.Graph.SaveCommunity(ctx, &c); err != nil {
			return orcherrors.Wrap(orcherrors.ErrHandler, "rebuild_communities: save community %s: %v", c.UUID, err)
		}
	}

	for i := range edges {
		e := edges[i]
		if err := h.Graph.SaveCommunityEdge(ctx, &e); err != nil {
			return orcherrors.Wrap(orcherrors.ErrHandler, "rebuild_communities: save edge %s->%s: %v", e.CommunityUUID, e.MemberUUID, err)
		}
	}

	for i := range communities {
		if err := h.Graph.SetCommunityMemberCount(ctx, communities[i].UUID); err != nil {
			logger.Error("rebuild_communities: set member count failed", "community_uuid", communities[i].UUID, "error", err)
		}
	}

	logger.Info("rebuild_communities: done", "group_id", fields.GroupID, "communities", len(communities), "edges", len(edges))
	return nil
}
