// Package graphenginehttp is an HTTP transport adapter for
// graphengine.Client: it carries the contract's calls to an externally
// hosted graph engine service, applying the same retry-with-backoff and
// circuit-breaker shape the teacher's webhook mediator uses for its own
// external collaborator.
package graphenginehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"go.taskorchestrator.dev/internal/common/metrics"
	"go.taskorchestrator.dev/internal/graphengine"
	"go.taskorchestrator.dev/internal/orcherrors"
)

// Config configures the Client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration

	CircuitBreakerRequests    uint32
	CircuitBreakerInterval    time.Duration
	CircuitBreakerRatio       float64
	CircuitBreakerTimeout     time.Duration
	CircuitBreakerMinRequests uint32
}

// DefaultConfig mirrors the teacher's DefaultHTTPMediatorConfig
// defaults, scaled down from a 15-minute webhook timeout to a graph
// engine call's expected latency.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:                   baseURL,
		Timeout:                   30 * time.Second,
		MaxRetries:                3,
		BaseBackoff:               200 * time.Millisecond,
		CircuitBreakerRequests:    10,
		CircuitBreakerInterval:    60 * time.Second,
		CircuitBreakerRatio:       0.5,
		CircuitBreakerTimeout:     5 * time.Second,
		CircuitBreakerMinRequests: 10,
	}
}

// Client implements graphengine.Client over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	retries int
	backoff time.Duration
}

var _ graphengine.Client = (*Client)(nil)

// New constructs a Client against cfg.BaseURL.
func New(cfg Config) *Client {
	c := &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		retries: cfg.MaxRetries,
		backoff: cfg.BaseBackoff,
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "graph-engine",
		MaxRequests: cfg.CircuitBreakerRequests,
		Interval:    cfg.CircuitBreakerInterval,
		Timeout:     cfg.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.CircuitBreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.CircuitBreakerRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateValue float64
			switch to {
			case gobreaker.StateClosed:
				stateValue = metrics.CircuitBreakerClosed
			case gobreaker.StateOpen:
				stateValue = metrics.CircuitBreakerOpen
				metrics.GraphEngineCircuitBreakerTrips.WithLabelValues(c.baseURL).Inc()
			case gobreaker.StateHalfOpen:
				stateValue = metrics.CircuitBreakerHalfOpen
			}
			metrics.GraphEngineCircuitBreakerState.WithLabelValues(c.baseURL).Set(stateValue)
		},
	})

	return c
}

// call executes method against path, marshaling body as the request
// payload (if non-nil) and unmarshaling the response into out (if
// non-nil). Retries apply to transport and 5xx failures only; a 4xx
// response is reported as an invariant violation and is never retried.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	start := time.Now()
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.callWithRetry(ctx, method, path, body, out)
	})
	metrics.GraphEngineRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.GraphEngineRequests.WithLabelValues(method, "circuit_open").Inc()
			return orcherrors.Wrap(orcherrors.ErrTransientStore, "graphenginehttp: %s: circuit open: %v", method, err)
		}
		metrics.GraphEngineRequests.WithLabelValues(method, "error").Inc()
		return err
	}
	metrics.GraphEngineRequests.WithLabelValues(method, "success").Inc()
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, method, path string, body, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		retryable, err := c.callOnce(ctx, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == c.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	return lastErr
}

func (c *Client) callOnce(ctx context.Context, path string, body, out interface{}) (retryable bool, err error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return false, orcherrors.Wrap(orcherrors.ErrConfiguration, "graphenginehttp: marshal request: %v", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return false, orcherrors.Wrap(orcherrors.ErrConfiguration, "graphenginehttp: build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return true, orcherrors.Wrap(orcherrors.ErrTransientStore, "graphenginehttp: %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return true, orcherrors.Wrap(orcherrors.ErrTransientStore, "graphenginehttp: %s: status %d", path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return false, orcherrors.Wrap(orcherrors.ErrInvariantViolation, "graphenginehttp: %s: status %d", path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, orcherrors.Wrap(orcherrors.ErrConfiguration, "graphenginehttp: decode response: %v", err)
		}
	}
	return false, nil
}

func (c *Client) AddEpisode(ctx context.Context, req graphengine.AddEpisodeRequest) (*graphengine.AddEpisodeResult, error) {
	var out graphengine.AddEpisodeResult
	if err := c.call(ctx, "AddEpisode", "/episodes", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PropagateAttributes(ctx context.Context, episodeUUID string, attrs graphengine.Attributes) error {
	body := struct {
		EpisodeUUID string                 `json:"episodeUuid"`
		Attributes  graphengine.Attributes `json:"attributes"`
	}{episodeUUID, attrs}
	return c.call(ctx, "PropagateAttributes", "/episodes/attributes", body, nil)
}

func (c *Client) SyncSchema(ctx context.Context, groupID string, nodes []graphengine.Node, edges []graphengine.Edge) error {
	body := struct {
		GroupID string             `json:"groupId"`
		Nodes   []graphengine.Node `json:"nodes"`
		Edges   []graphengine.Edge `json:"edges"`
	}{groupID, nodes, edges}
	return c.call(ctx, "SyncSchema", "/schema/sync", body, nil)
}

func (c *Client) DeleteCommunitiesByGroup(ctx context.Context, groupID string) error {
	body := struct {
		GroupID string `json:"groupId"`
	}{groupID}
	return c.call(ctx, "DeleteCommunitiesByGroup", "/communities/delete-by-group", body, nil)
}

func (c *Client) BuildCommunities(ctx context.Context, groupID string) ([]graphengine.Community, []graphengine.CommunityEdge, error) {
	body := struct {
		GroupID string `json:"groupId"`
	}{groupID}
	var out struct {
		Communities []graphengine.Community     `json:"communities"`
		Edges       []graphengine.CommunityEdge `json:"edges"`
	}
	if err := c.call(ctx, "BuildCommunities", "/communities/build", body, &out); err != nil {
		return nil, nil, err
	}
	return out.Communities, out.Edges, nil
}

func (c *Client) SaveCommunity(ctx context.Context, community *graphengine.Community) error {
	return c.call(ctx, "SaveCommunity", "/communities", community, nil)
}

func (c *Client) SaveCommunityEdge(ctx context.Context, edge *graphengine.CommunityEdge) error {
	return c.call(ctx, "SaveCommunityEdge", "/communities/edges", edge, nil)
}

func (c *Client) SetCommunityMemberCount(ctx context.Context, communityUUID string) error {
	body := struct {
		CommunityUUID string `json:"communityUuid"`
	}{communityUUID}
	return c.call(ctx, "SetCommunityMemberCount", "/communities/member-count", body, nil)
}

func (c *Client) EntitiesByGroup(ctx context.Context, groupID string) ([]graphengine.Entity, error) {
	var out struct {
		Entities []graphengine.Entity `json:"entities"`
	}
	path := fmt.Sprintf("/entities/by-group?groupId=%s", groupID)
	if err := c.call(ctx, "EntitiesByGroup", path, nil, &out); err != nil {
		return nil, err
	}
	return out.Entities, nil
}

func (c *Client) MergeEntities(ctx context.Context, dupUUID, canonicalUUID, projectID string) error {
	body := struct {
		DupUUID       string `json:"dupUuid"`
		CanonicalUUID string `json:"canonicalUuid"`
		ProjectID     string `json:"projectId"`
	}{dupUUID, canonicalUUID, projectID}
	return c.call(ctx, "MergeEntities", "/entities/merge", body, nil)
}

func (c *Client) EpisodesByUUIDs(ctx context.Context, uuids []string) ([]graphengine.Episode, error) {
	body := struct {
		UUIDs []string `json:"uuids"`
	}{uuids}
	var out struct {
		Episodes []graphengine.Episode `json:"episodes"`
	}
	if err := c.call(ctx, "EpisodesByUUIDs", "/episodes/by-uuids", body, &out); err != nil {
		return nil, err
	}
	return out.Episodes, nil
}

func (c *Client) RecentEpisodes(ctx context.Context, groupID string, n int) ([]graphengine.Episode, error) {
	body := struct {
		GroupID string `json:"groupId"`
		N       int    `json:"n"`
	}{groupID, n}
	var out struct {
		Episodes []graphengine.Episode `json:"episodes"`
	}
	if err := c.call(ctx, "RecentEpisodes", "/episodes/recent", body, &out); err != nil {
		return nil, err
	}
	return out.Episodes, nil
}

func (c *Client) EpisodeStatus(ctx context.Context, episodeUUID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/episodes/%s/status", episodeUUID)
	if err := c.call(ctx, "EpisodeStatus", path, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}
