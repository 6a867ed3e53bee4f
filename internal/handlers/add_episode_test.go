package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"go.taskorchestrator.dev/internal/graphengine"
	"go.taskorchestrator.dev/internal/graphengine/graphenginetest"
	"go.taskorchestrator.dev/internal/producer"
)

func TestAddEpisodeHandler_ProcessesPreconditionedEpisode(t *testing.T) {
	graph := graphenginetest.New()
	graph.SeedEpisode(graphengine.Episode{UUID: "ep1", GroupID: "g1"}, "Processing")

	h := &AddEpisodeHandler{Graph: graph}
	payload, _ := json.Marshal(producer.EpisodeFields{EpisodeID: "ep1", Name: "n", Content: "c", TenantID: "t1", ProjectID: "p1", UserID: "u1"})

	if err := h.Process(context.Background(), payload); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(graph.AddEpisodeCalls) != 1 {
		t.Errorf("AddEpisode called %d times, want 1", len(graph.AddEpisodeCalls))
	}
}

func TestAddEpisodeHandler_AlreadyCompletedIsNoOp(t *testing.T) {
	graph := graphenginetest.New()
	graph.SeedEpisode(graphengine.Episode{UUID: "ep1", GroupID: "g1"}, "Completed")

	h := &AddEpisodeHandler{Graph: graph}
	payload, _ := json.Marshal(producer.EpisodeFields{EpisodeID: "ep1"})

	if err := h.Process(context.Background(), payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(graph.AddEpisodeCalls) != 0 {
		t.Errorf("AddEpisode should not be called for an already-completed episode, called %d times", len(graph.AddEpisodeCalls))
	}
}

func TestAddEpisodeHandler_MissingPreconditionErrors(t *testing.T) {
	graph := graphenginetest.New()
	h := &AddEpisodeHandler{Graph: graph}
	payload, _ := json.Marshal(producer.EpisodeFields{EpisodeID: "missing"})

	if err := h.Process(context.Background(), payload); err == nil {
		t.Fatal("expected error for episode with no pre-existing Episodic node")
	}
}
