package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"go.taskorchestrator.dev/internal/control"
	"go.taskorchestrator.dev/internal/producer"
)

// Handler wires the Producer and Control Operations onto the HTTP
// surface SPEC_FULL.md §6 names, grounded on the teacher's per-resource
// *Handler{repo/useCases}.Routes() chi.Router pattern
// (internal/platform/api/role_handler.go).
type Handler struct {
	producer *producer.Producer
	control  *control.Operations
	logger   *slog.Logger
}

func New(p *producer.Producer, c *control.Operations, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{producer: p, control: c, logger: logger}
}

// Routes returns the /api/tasks router. Liveness/readiness/metrics are
// mounted separately by the caller (cmd/producer), since they're
// process-level concerns independent of this resource's routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/episodes", h.enqueueEpisode)
	r.Post("/rebuild-communities", h.enqueueRebuildCommunities)
	r.Post("/deduplicate", h.enqueueDeduplicate)
	r.Post("/incremental-refresh", h.enqueueIncrementalRefresh)
	r.Post("/{id}/retry", h.retryTask)
	r.Post("/{id}/stop", h.stopTask)
	r.Get("/{id}", h.getTaskStatus)
	r.Get("/group/{group}/depth", h.listGroupQueueDepth)
	r.Get("/recent", h.listRecent)

	return r
}

type enqueueRequest struct {
	GroupID string `json:"groupId"`
	producer.EpisodeFields
}

func (h *Handler) enqueueEpisode(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	taskID, err := h.producer.EnqueueEpisode(r.Context(), req.GroupID, req.EpisodeFields)
	if err != nil {
		writeOrchError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (h *Handler) enqueueRebuildCommunities(w http.ResponseWriter, r *http.Request) {
	var req producer.RebuildCommunitiesFields
	if err := DecodeJSON(r, &req); err != nil {
		WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	taskID, err := h.producer.EnqueueRebuildCommunities(r.Context(), req.GroupID)
	if err != nil {
		writeOrchError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (h *Handler) enqueueDeduplicate(w http.ResponseWriter, r *http.Request) {
	var req producer.DeduplicateFields
	if err := DecodeJSON(r, &req); err != nil {
		WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	taskID, err := h.producer.EnqueueDeduplicate(r.Context(), req)
	if err != nil {
		writeOrchError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (h *Handler) enqueueIncrementalRefresh(w http.ResponseWriter, r *http.Request) {
	var req producer.IncrementalRefreshFields
	if err := DecodeJSON(r, &req); err != nil {
		WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	taskID, err := h.producer.EnqueueIncrementalRefresh(r.Context(), req)
	if err != nil {
		writeOrchError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (h *Handler) retryTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.control.Retry(r.Context(), id); err != nil {
		writeOrchError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) stopTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.control.Stop(r.Context(), id); err != nil {
		writeOrchError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) getTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.control.Status(r.Context(), id)
	if err != nil {
		writeOrchError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) listGroupQueueDepth(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	depth, err := h.control.GroupQueueDepth(r.Context(), group)
	if err != nil {
		writeOrchError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"depth": depth})
}

func (h *Handler) listRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	tasks, err := h.control.ListRecent(r.Context(), limit)
	if err != nil {
		writeOrchError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tasks)
}
