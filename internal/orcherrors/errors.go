// Package orcherrors holds the orchestrator's error taxonomy: a small set
// of sentinel/wrapped errors every component classifies against, mirrored
// on internal/common/repository's error-classification style.
package orcherrors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates a misconfigured component (e.g. a
	// handler registered twice, a missing required knob). Always a
	// startup-time bug, never a runtime condition to retry.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransientStore indicates a Journal or Queue Store operation
	// failed for a reason that may clear on its own (connection reset,
	// deadline exceeded). Safe to retry at the same layer.
	ErrTransientStore = errors.New("transient store error")

	// ErrHandler indicates a Handler's Process returned an error that
	// is not itself classified as timeout or invariant violation.
	ErrHandler = errors.New("handler error")

	// ErrTimeout indicates a handler did not return before its
	// configured timeout elapsed.
	ErrTimeout = errors.New("handler timeout")

	// ErrInvariantViolation indicates a caller asked for something the
	// state machine forbids (e.g. rebuild_communities on group "global",
	// a status transition outside the defined state machine).
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrUnknownKind indicates a task's kind has no registered handler.
	ErrUnknownKind = errors.New("unknown task kind")

	// ErrNotFound indicates the requested task does not exist in the
	// Journal.
	ErrNotFound = errors.New("task not found")
)

// Classify returns a label-safe error category for metrics, mirroring
// internal/common/repository's classifyError.
func Classify(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTransientStore):
		return "transient_store"
	case errors.Is(err, ErrHandler):
		return "handler"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, ErrUnknownKind):
		return "unknown_kind"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

// Wrap annotates err with one of the taxonomy's sentinels so callers up
// the stack can classify it via errors.Is without string matching.
func Wrap(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
