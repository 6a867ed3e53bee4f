// Package queuestore implements the Queue Store (C2): the ephemeral,
// Redis-backed structures used to fan work out across worker processes
// with per-group FIFO ordering and per-group mutual exclusion.
//
// Wire layout (bit-exact, see SPEC_FULL.md §6):
//
//	queue:group:<G>        list   FIFO envelopes for group G
//	queue:active_groups    set    groups whose list may hold queued envelopes (removed once a worker finds the list empty)
//	queue:processing:global list  envelopes currently claimed by some worker
//	lock:queue:group:<G>   string SETNX+EX ownership lease for group G
package queuestore

import (
	"context"
	"time"

	"go.taskorchestrator.dev/internal/task"
)

// Store is the Queue Store contract. All operations that write more
// than one Redis key are implemented atomically (a MULTI transaction for
// Enqueue, LMOVE for ClaimNext, Lua scripts for the rest), per the
// "no torn move" requirement between the group list and the processing
// list.
type Store interface {
	// Enqueue appends env to the tail of its group's list and adds the
	// group to the active-groups set.
	Enqueue(ctx context.Context, env task.Envelope) error

	// SampleActiveGroups returns up to n group IDs drawn at random from
	// the active-groups set, for a worker's lock-acquisition attempt.
	SampleActiveGroups(ctx context.Context, n int) ([]string, error)

	// TryAcquireGroupLock attempts to take the per-group lock for
	// ownerID with the given TTL. Returns false if already held by a
	// different owner.
	TryAcquireGroupLock(ctx context.Context, groupID, ownerID string, ttl time.Duration) (bool, error)

	// ReleaseGroupLock releases the lock iff still held by ownerID.
	ReleaseGroupLock(ctx context.Context, groupID, ownerID string) error

	// ClaimNext atomically moves the head envelope of a group's list
	// into the global processing list and returns it. Returns
	// (Envelope{}, false, nil) if the group's list is empty.
	ClaimNext(ctx context.Context, groupID string) (task.Envelope, bool, error)

	// Ack removes a claimed envelope from the processing list on
	// successful or terminal-failed completion.
	Ack(ctx context.Context, env task.Envelope) error

	// GroupQueueLength returns the number of pending envelopes queued
	// for a group (not counting ones already claimed into processing).
	GroupQueueLength(ctx context.Context, groupID string) (int64, error)

	// DeactivateGroupIfEmpty removes groupID from the active-groups set
	// iff its queue is currently empty. Called by a worker that finds
	// no work after acquiring a group's lock.
	DeactivateGroupIfEmpty(ctx context.Context, groupID string) error

	// ListProcessing returns every envelope currently in the global
	// processing list, for the recovery loop's age scan.
	ListProcessing(ctx context.Context) ([]task.Envelope, error)

	// RequeueFromProcessing atomically removes env from the processing
	// list, refreshes its timestamp, re-adds its group to the
	// active-groups set, and prepends the refreshed envelope to the
	// head of the group's list (priority re-delivery after a recovery).
	RequeueFromProcessing(ctx context.Context, env task.Envelope) error

	// EnvelopePresent reports whether an envelope for taskID exists in
	// either the group's list or the processing list — used by
	// control.Operations.Retry to avoid enqueueing a duplicate when one
	// is already in flight.
	EnvelopePresent(ctx context.Context, groupID, taskID string) (bool, error)
}
