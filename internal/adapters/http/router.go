package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/manualqa/manual-assistant/internal/core/domain"
	"github.com/manualqa/manual-assistant/internal/core/ports"
	"github.com/manualqa/manual-assistant/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	manualQuery    ports.ManualQueryService
	dashboardQuery ports.DashboardQueryService
	sessions       ports.SessionStore
	metrics        *metrics.HTTPServerMetrics
}

func NewRouter(
	manualQuery ports.ManualQueryService,
	dashboardQuery ports.DashboardQueryService,
	sessions ports.SessionStore,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		manualQuery:    manualQuery,
		dashboardQuery: dashboardQuery,
		sessions:       sessions,
		metrics:        httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", rt.health)
	mux.HandleFunc("/api/text-query", rt.textQuery)
	mux.HandleFunc("/api/image-query", rt.imageQuery)
	mux.HandleFunc("/v1/sessions", rt.createSession)
	mux.HandleFunc("/v1/sessions/", rt.deleteSession)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(recoverMiddleware(handler)))
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) textQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query     string `json:"query"`
		SessionID string `json:"session_id"`
		TopK      int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	answer, err := rt.manualQuery.Answer(r.Context(), req.SessionID, req.Query, req.TopK)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordQuery(serviceName, "text-query", len(answer.PageNumbers), time.Since(start))
	}

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) imageQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ImagePath      string `json:"image_path"`
		BoxCoordinates []int  `json:"box_coordinates"`
		TopK           int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.ImagePath) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image_path is required"})
		return
	}
	if len(req.BoxCoordinates) != 4 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "box_coordinates must be [x0, y0, x1, y1]"})
		return
	}
	box := domain.Rect{
		X0: req.BoxCoordinates[0],
		Y0: req.BoxCoordinates[1],
		X1: req.BoxCoordinates[2],
		Y1: req.BoxCoordinates[3],
	}

	start := time.Now()
	answer, err := rt.dashboardQuery.AnswerComponent(r.Context(), req.ImagePath, box, req.TopK)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordQuery(serviceName, "image-query", len(answer.PageNumbers), time.Since(start))
	}

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	session, err := rt.sessions.Create(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": session.ID})
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}

	if err := rt.sessions.Delete(r.Context(), id); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
