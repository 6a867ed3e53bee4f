package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"go.taskorchestrator.dev/internal/graphengine"
	"go.taskorchestrator.dev/internal/graphengine/graphenginetest"
	"go.taskorchestrator.dev/internal/journal"
	"go.taskorchestrator.dev/internal/producer"
	"go.taskorchestrator.dev/internal/queuestore"
	"go.taskorchestrator.dev/internal/task"
)

func TestIncrementalRefreshHandler_RefreshesNamedEpisodes(t *testing.T) {
	graph := graphenginetest.New()
	graph.SeedEpisode(graphengine.Episode{UUID: "ep1", GroupID: "g1", Name: "n", Content: "c"}, "Completed")

	prod := producer.New(journal.NewMemoryRepository(), queuestore.NewMemoryStore(), nil)
	h := &IncrementalRefreshHandler{Graph: graph, Producer: prod}

	payload, _ := json.Marshal(producer.IncrementalRefreshFields{GroupID: "g1", EpisodeUUIDs: []string{"ep1"}})
	if err := h.Process(context.Background(), payload); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(graph.AddEpisodeCalls) != 1 {
		t.Errorf("AddEpisode called %d times, want 1", len(graph.AddEpisodeCalls))
	}
}

func TestIncrementalRefreshHandler_RebuildCommunitiesEnqueuesChildWithParent(t *testing.T) {
	graph := graphenginetest.New()
	graph.SeedEpisode(graphengine.Episode{UUID: "ep1", GroupID: "g1"}, "Completed")

	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	prod := producer.New(j, q, nil)
	h := &IncrementalRefreshHandler{Graph: graph, Producer: prod}

	payload, _ := json.Marshal(producer.IncrementalRefreshFields{GroupID: "g1", EpisodeUUIDs: []string{"ep1"}, RebuildCommunities: true})
	ctx := task.WithID(context.Background(), "parent-1")
	if err := h.Process(ctx, payload); err != nil {
		t.Fatalf("Process: %v", err)
	}

	env, ok, err := q.ClaimNext(context.Background(), "g1")
	if err != nil || !ok {
		t.Fatalf("expected a child rebuild_communities envelope, ok=%v err=%v", ok, err)
	}
	if env.Kind != task.KindRebuildCommunities {
		t.Errorf("child kind = %s, want rebuild_communities", env.Kind)
	}

	childTask, err := j.Get(context.Background(), env.TaskID)
	if err != nil {
		t.Fatalf("Get child task: %v", err)
	}
	if childTask.ParentTaskID != "parent-1" {
		t.Errorf("child parentTaskId = %q, want parent-1", childTask.ParentTaskID)
	}
}
