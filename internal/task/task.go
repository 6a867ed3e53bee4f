// Package task defines the Task domain type shared by the Journal, the
// Queue Store, and every component that acts on a task's lifecycle.
package task

import (
	"context"
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a task, persisted in the Journal.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusStopped    Status = "STOPPED"
)

// IsTerminal reports whether the status represents a final state that a
// task can only leave via an explicit retry.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// CanRetry reports whether a task in this status is eligible for retry(),
// per the orchestrator's state machine: FAILED, STOPPED, and PENDING all
// accept a retry (a retry whose envelope is still queued or claimed only
// resets retry bookkeeping and pushes no duplicate envelope — see
// control.Operations.Retry).
func (s Status) CanRetry() bool {
	return s == StatusFailed || s == StatusStopped || s == StatusPending
}

// Kind identifies which handler a task dispatches to.
type Kind string

const (
	KindAddEpisode           Kind = "add_episode"
	KindRebuildCommunities   Kind = "rebuild_communities"
	KindDeduplicateEntities  Kind = "deduplicate_entities"
	KindIncrementalRefresh   Kind = "incremental_refresh"
)

// Task is a single row of the Journal: the durable record of a unit of
// work, independent of whether it is currently sitting in the Queue
// Store, being processed, or finished.
type Task struct {
	ID           string
	GroupID      string
	Kind         Kind
	Status       Status
	Payload      json.RawMessage
	EntityID     string
	EntityType   string
	ParentTaskID string
	WorkerID     string
	RetryCount   int
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	StoppedAt    *time.Time
}

// Envelope is the structure written into the Queue Store's group lists.
// It carries only what a worker needs to claim and dispatch a task
// without going back to the Journal first for identity; the Journal
// row holds the full payload and bookkeeping. The wire format is
// bit-exact per SPEC_FULL.md §6: keys task_id, group_id, task_type, and
// a numeric epoch-seconds timestamp, not Go's default RFC 3339 string,
// since Recovery measures age by subtracting this field directly.
type Envelope struct {
	TaskID    string
	GroupID   string
	Kind      Kind
	Timestamp time.Time
}

type envelopeWire struct {
	TaskID    string `json:"task_id"`
	GroupID   string `json:"group_id"`
	TaskType  string `json:"task_type"`
	Timestamp int64  `json:"timestamp"`
}

// Marshal serializes the envelope for storage in a Redis list.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(envelopeWire{
		TaskID:    e.TaskID,
		GroupID:   e.GroupID,
		TaskType:  string(e.Kind),
		Timestamp: e.Timestamp.Unix(),
	})
}

type contextKey int

const idContextKey contextKey = 0

// WithID attaches a task's own Journal id to ctx, so a handler can
// record itself as a parentTaskId on any child task it enqueues
// (§4.1's parentTaskId field) without the Handler contract needing a
// second argument alongside payload.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idContextKey, id)
}

// IDFromContext returns the task id attached by WithID, if any.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idContextKey).(string)
	return id, ok
}

// UnmarshalEnvelope parses a raw Queue Store list entry.
func UnmarshalEnvelope(raw []byte) (Envelope, error) {
	var w envelopeWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Envelope{}, err
	}
	return Envelope{
		TaskID:    w.TaskID,
		GroupID:   w.GroupID,
		Kind:      Kind(w.TaskType),
		Timestamp: time.Unix(w.Timestamp, 0).UTC(),
	}, nil
}
