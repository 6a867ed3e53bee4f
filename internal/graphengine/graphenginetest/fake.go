// Package graphenginetest provides an in-memory graphengine.Client for
// handler unit tests, the same way router/pool_test.go carries mock
// Mediator/MessageCallback implementations beside the interfaces they
// satisfy.
package graphenginetest

import (
	"context"
	"fmt"
	"sync"

	"go.taskorchestrator.dev/internal/graphengine"
)

// Client is a mutex-guarded in-memory graphengine.Client. Zero value is
// not usable; construct with New.
type Client struct {
	mu sync.Mutex

	episodeStatus map[string]string
	episodes      map[string]graphengine.Episode
	entities      map[string]graphengine.Entity
	communities   map[string][]graphengine.Community
	attributes    map[string]graphengine.Attributes

	AddEpisodeCalls         []graphengine.AddEpisodeRequest
	SyncSchemaCalls         int
	MergeCalls              []struct{ Dup, Canonical, ProjectID string }
	DeletedCommunityGroups  []string
}

func New() *Client {
	return &Client{
		episodeStatus: make(map[string]string),
		episodes:      make(map[string]graphengine.Episode),
		entities:      make(map[string]graphengine.Entity),
		communities:   make(map[string][]graphengine.Community),
		attributes:    make(map[string]graphengine.Attributes),
	}
}

// SeedEpisode registers a pre-existing Episodic node, as the Producer's
// upstream code is required to have done before an add_episode task is
// enqueued (§4.8.1's precondition).
func (c *Client) SeedEpisode(ep graphengine.Episode, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.episodes[ep.UUID] = ep
	c.episodeStatus[ep.UUID] = status
}

func (c *Client) SeedEntities(groupID string, entities ...graphengine.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entities {
		e.GroupID = groupID
		c.entities[e.UUID] = e
	}
}

func (c *Client) SeedCommunities(groupID string, communities ...graphengine.Community) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.communities[groupID] = append(c.communities[groupID], communities...)
}

func (c *Client) AddEpisode(_ context.Context, req graphengine.AddEpisodeRequest) (*graphengine.AddEpisodeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.AddEpisodeCalls = append(c.AddEpisodeCalls, req)

	if c.episodeStatus[req.EpisodeUUID] == "Completed" {
		return &graphengine.AddEpisodeResult{}, nil
	}
	if _, ok := c.episodeStatus[req.EpisodeUUID]; !ok {
		return nil, fmt.Errorf("graphenginetest: episode %s has no pre-existing Episodic node", req.EpisodeUUID)
	}
	c.episodeStatus[req.EpisodeUUID] = "Completed"
	c.episodes[req.EpisodeUUID] = graphengine.Episode{
		UUID:    req.EpisodeUUID,
		GroupID: req.GroupID,
		Name:    req.Name,
		Content: req.Content,
	}
	return &graphengine.AddEpisodeResult{}, nil
}

func (c *Client) PropagateAttributes(_ context.Context, episodeUUID string, attrs graphengine.Attributes) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attributes[episodeUUID] = attrs
	return nil
}

func (c *Client) SyncSchema(_ context.Context, _ string, _ []graphengine.Node, _ []graphengine.Edge) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SyncSchemaCalls++
	return nil
}

func (c *Client) DeleteCommunitiesByGroup(_ context.Context, groupID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DeletedCommunityGroups = append(c.DeletedCommunityGroups, groupID)
	delete(c.communities, groupID)
	return nil
}

func (c *Client) BuildCommunities(_ context.Context, groupID string) ([]graphengine.Community, []graphengine.CommunityEdge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var entityUUIDs []string
	for _, e := range c.entities {
		if e.GroupID == groupID {
			entityUUIDs = append(entityUUIDs, e.UUID)
		}
	}
	if len(entityUUIDs) == 0 {
		return nil, nil, nil
	}
	community := graphengine.Community{UUID: "community-" + groupID, GroupID: groupID}
	var edges []graphengine.CommunityEdge
	for _, uuid := range entityUUIDs {
		edges = append(edges, graphengine.CommunityEdge{CommunityUUID: community.UUID, MemberUUID: uuid})
	}
	return []graphengine.Community{community}, edges, nil
}

func (c *Client) SaveCommunity(_ context.Context, comm *graphengine.Community) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.communities[comm.GroupID] = append(c.communities[comm.GroupID], *comm)
	return nil
}

func (c *Client) SaveCommunityEdge(context.Context, *graphengine.CommunityEdge) error {
	return nil
}

func (c *Client) SetCommunityMemberCount(_ context.Context, communityUUID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, communities := range c.communities {
		for i := range communities {
			if communities[i].UUID == communityUUID {
				return nil
			}
		}
	}
	return fmt.Errorf("graphenginetest: unknown community %s", communityUUID)
}

func (c *Client) EntitiesByGroup(_ context.Context, groupID string) ([]graphengine.Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []graphengine.Entity
	for _, e := range c.entities {
		if e.GroupID == groupID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *Client) MergeEntities(_ context.Context, dupUUID, canonicalUUID, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MergeCalls = append(c.MergeCalls, struct{ Dup, Canonical, ProjectID string }{dupUUID, canonicalUUID, projectID})

	canonical, ok := c.entities[canonicalUUID]
	if !ok {
		return fmt.Errorf("graphenginetest: unknown canonical entity %s", canonicalUUID)
	}
	if canonical.ProjectID == "" {
		if dup, ok := c.entities[dupUUID]; ok {
			canonical.ProjectID = dup.ProjectID
		}
	}
	c.entities[canonicalUUID] = canonical
	delete(c.entities, dupUUID)
	return nil
}

func (c *Client) EpisodesByUUIDs(_ context.Context, uuids []string) ([]graphengine.Episode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []graphengine.Episode
	for _, uuid := range uuids {
		if ep, ok := c.episodes[uuid]; ok {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (c *Client) RecentEpisodes(_ context.Context, groupID string, n int) ([]graphengine.Episode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []graphengine.Episode
	for _, ep := range c.episodes {
		if ep.GroupID == groupID {
			out = append(out, ep)
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (c *Client) EpisodeStatus(_ context.Context, episodeUUID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.episodeStatus[episodeUUID]
	if !ok {
		return "", fmt.Errorf("graphenginetest: unknown episode %s", episodeUUID)
	}
	return status, nil
}
