package httpapi

import (
	"errors"
	"net/http"

	"go.taskorchestrator.dev/internal/orcherrors"
)

// writeOrchError maps the orcherrors taxonomy onto HTTP status codes,
// mirroring the teacher's WriteUseCaseError switch over UseCaseError.Kind.
func writeOrchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orcherrors.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, orcherrors.ErrInvariantViolation):
		WriteError(w, http.StatusBadRequest, "invariant_violation", err.Error())
	case errors.Is(err, orcherrors.ErrConfiguration):
		WriteError(w, http.StatusBadRequest, "configuration_error", err.Error())
	case errors.Is(err, orcherrors.ErrTransientStore):
		WriteError(w, http.StatusServiceUnavailable, "transient_store_error", err.Error())
	default:
		WriteInternalError(w, err.Error())
	}
}
