// Package graphengine defines the external collaborator the task
// handlers are specified against: the temporal knowledge graph itself.
// This package fixes the contract only; no concrete graph algorithm,
// query planner, or storage engine lives here.
package graphengine

import "context"

// Attributes are tenant/project/user correlation fields propagated
// onto Entity nodes newly connected to an ingested Episode.
type Attributes struct {
	TenantID  string
	ProjectID string
	UserID    string
}

// Node and Edge are the minimal shapes SyncSchema needs to register
// newly observed labels with the domain's (external) schema registry.
type Node struct {
	Label      string
	Properties []string
}

type Edge struct {
	Label string
	From  string
	To    string
}

// Entity is a graph vertex produced by ingestion, scoped to a group and
// optionally a project. Embedding is precomputed by the graph engine;
// internal/handlers/dedup_match.go treats it as an opaque similarity
// vector.
type Entity struct {
	UUID      string
	GroupID   string
	ProjectID string
	Name      string
	Embedding []float64
}

// Community is a group-scoped clustering of Entities.
type Community struct {
	UUID         string
	GroupID      string
	ProjectID    string
	Name         string
	MemberCount  int
}

// CommunityEdge links a Community to a member Entity (HAS_MEMBER) or to
// another Community.
type CommunityEdge struct {
	CommunityUUID string
	MemberUUID    string
}

// Episode is a temporal ingestion unit already materialized in the
// graph, returned by lookups that re-drive ingestion (incremental
// refresh) or inspect status.
type Episode struct {
	UUID    string
	GroupID string
	Name    string
	Content string
	ValidAt string
}

// AddEpisodeRequest carries everything the graph engine needs to
// extract entities and edges from one episode and attach them to its
// pre-existing Episodic node.
type AddEpisodeRequest struct {
	EpisodeUUID       string
	Name              string
	Content           string
	SourceDescription string
	SourceKind        string
	GroupID           string
	ValidAt           string
}

// AddEpisodeResult reports which entities were newly connected via
// MENTIONS, so the caller can propagate tenant/project/user attributes
// onto exactly those nodes.
type AddEpisodeResult struct {
	ConnectedEntityUUIDs []string
}

// Client is the handler-visible interface onto the graph engine. Every
// method that can block takes a context for cooperative cancellation,
// matching the rest of this codebase's suspension-point convention.
type Client interface {
	AddEpisode(ctx context.Context, req AddEpisodeRequest) (*AddEpisodeResult, error)
	PropagateAttributes(ctx context.Context, episodeUUID string, attrs Attributes) error
	SyncSchema(ctx context.Context, projectID string, nodes []Node, edges []Edge) error

	DeleteCommunitiesByGroup(ctx context.Context, groupID string) error
	BuildCommunities(ctx context.Context, groupID string) ([]Community, []CommunityEdge, error)
	SaveCommunity(ctx context.Context, c *Community) error
	SaveCommunityEdge(ctx context.Context, e *CommunityEdge) error
	SetCommunityMemberCount(ctx context.Context, communityUUID string) error

	EntitiesByGroup(ctx context.Context, groupID string) ([]Entity, error)
	MergeEntities(ctx context.Context, dupUUID, canonicalUUID, projectID string) error

	EpisodesByUUIDs(ctx context.Context, uuids []string) ([]Episode, error)
	RecentEpisodes(ctx context.Context, groupID string, n int) ([]Episode, error)
	EpisodeStatus(ctx context.Context, episodeUUID string) (string, error)
}
