// Package registry implements the Handler Registry (C5): a process-local
// mapping from task kind to the Handler that processes it.
package registry

import (
	"context"
	"fmt"
	"sync"

	"go.taskorchestrator.dev/internal/task"
)

// Handler is the contract every task kind's processing logic satisfies.
// Kind identifies the task.Kind this handler serves; TimeoutSeconds
// bounds how long a claimed envelope may sit in the processing list
// before Recovery assumes the worker died; Process executes the
// handler's side effects against the decoded payload.
type Handler interface {
	Kind() task.Kind
	TimeoutSeconds() int
	Process(ctx context.Context, payload []byte) error
}

// Registry is an in-memory map[kind]Handler guarded by a RWMutex:
// registration happens once at worker-process startup, lookups happen
// on every claimed envelope, so reads dominate writes — the same
// access pattern the platform's PermissionRegistry is built for.
type Registry struct {
	mu       sync.RWMutex
	handlers map[task.Kind]Handler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[task.Kind]Handler)}
}

// Register adds a handler for its kind. Registration happens once at
// startup before the Worker Pool begins its loop; a duplicate
// registration is a configuration bug, not a runtime condition, so it
// panics rather than returning an error.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[h.Kind()]; exists {
		panic(fmt.Sprintf("registry: handler already registered for kind %q", h.Kind()))
	}
	r.handlers[h.Kind()] = h
}

// Lookup returns the handler registered for kind, if any.
func (r *Registry) Lookup(kind task.Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[kind]
	return h, ok
}

// TimeoutSeconds returns the handler's declared timeout for kind, or
// fallback if the kind is unregistered — used by Recovery, which must
// still assign an age limit to an envelope whose kind it can't resolve.
func (r *Registry) TimeoutSeconds(kind task.Kind, fallback int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[kind]; ok {
		return h.TimeoutSeconds()
	}
	return fallback
}
