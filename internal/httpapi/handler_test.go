package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.taskorchestrator.dev/internal/control"
	"go.taskorchestrator.dev/internal/journal"
	"go.taskorchestrator.dev/internal/producer"
	"go.taskorchestrator.dev/internal/queuestore"
)

func newTestHandler() (*Handler, journal.Repository, queuestore.Store) {
	j := journal.NewMemoryRepository()
	q := queuestore.NewMemoryStore()
	p := producer.New(j, q, nil)
	c := control.New(j, q, nil)
	return New(p, c, nil), j, q
}

func TestEnqueueEpisode_ReturnsTaskID(t *testing.T) {
	h, _, _ := newTestHandler()
	body := `{"groupId":"g1","episodeId":"e1","name":"n","content":"c"}`
	req := httptest.NewRequest(http.MethodPost, "/episodes", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["taskId"] == "" {
		t.Error("expected a non-empty taskId")
	}
}

func TestEnqueueRebuildCommunities_RejectsGlobalGroup(t *testing.T) {
	h, _, _ := newTestHandler()
	body := `{"groupId":"global"}`
	req := httptest.NewRequest(http.MethodPost, "/rebuild-communities", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestGetTaskStatus_NotFoundTaskReturns404(t *testing.T) {
	h, _, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusNotFound, rec.Body.String())
	}
}

func TestRetryStopStatusFlow(t *testing.T) {
	h, _, _ := newTestHandler()

	enqueueBody := `{"groupId":"g1","episodeId":"e1","name":"n","content":"c"}`
	enqueueReq := httptest.NewRequest(http.MethodPost, "/episodes", bytes.NewBufferString(enqueueBody))
	enqueueRec := httptest.NewRecorder()
	h.Routes().ServeHTTP(enqueueRec, enqueueReq)

	var enqueueResp map[string]string
	json.Unmarshal(enqueueRec.Body.Bytes(), &enqueueResp)
	taskID := enqueueResp["taskId"]

	stopReq := httptest.NewRequest(http.MethodPost, "/"+taskID+"/stop", nil)
	stopRec := httptest.NewRecorder()
	h.Routes().ServeHTTP(stopRec, stopReq)
	if stopRec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, body=%s", stopRec.Code, stopRec.Body.String())
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/"+taskID, nil)
	statusRec := httptest.NewRecorder()
	h.Routes().ServeHTTP(statusRec, statusReq)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("status code = %d, body=%s", statusRec.Code, statusRec.Body.String())
	}

	retryReq := httptest.NewRequest(http.MethodPost, "/"+taskID+"/retry", nil)
	retryRec := httptest.NewRecorder()
	h.Routes().ServeHTTP(retryRec, retryReq)
	if retryRec.Code != http.StatusOK {
		t.Fatalf("retry status = %d, body=%s", retryRec.Code, retryRec.Body.String())
	}
}

func TestListGroupQueueDepthAndRecent(t *testing.T) {
	h, _, _ := newTestHandler()

	body := `{"groupId":"g1","episodeId":"e1","name":"n","content":"c"}`
	req := httptest.NewRequest(http.MethodPost, "/episodes", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	depthReq := httptest.NewRequest(http.MethodGet, "/group/g1/depth", nil)
	depthRec := httptest.NewRecorder()
	h.Routes().ServeHTTP(depthRec, depthReq)
	if depthRec.Code != http.StatusOK {
		t.Fatalf("depth status = %d, body=%s", depthRec.Code, depthRec.Body.String())
	}
	var depthResp map[string]int64
	json.Unmarshal(depthRec.Body.Bytes(), &depthResp)
	if depthResp["depth"] != 1 {
		t.Errorf("depth = %d, want 1", depthResp["depth"])
	}

	recentReq := httptest.NewRequest(http.MethodGet, "/recent", nil)
	recentRec := httptest.NewRecorder()
	h.Routes().ServeHTTP(recentRec, recentReq)
	if recentRec.Code != http.StatusOK {
		t.Fatalf("recent status = %d, body=%s", recentRec.Code, recentRec.Body.String())
	}
}
