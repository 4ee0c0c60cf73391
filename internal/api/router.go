package api

import (
	"net/http"

	"servicewatch/internal/health"
	"servicewatch/internal/scheduling"
	"servicewatch/internal/storage"
)

// NewRouter creates a new http.ServeMux and registers the API handlers.
func NewRouter(store storage.Storer, orchestrator *health.Orchestrator, sched *scheduling.Service) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewHandlers(store, orchestrator, sched)

	mux.HandleFunc("POST /v1/watchers", h.CreateWatcher)
	mux.HandleFunc("GET /v1/watchers/{watcher_id}", h.GetWatcher)
	mux.HandleFunc("POST /v1/watchers/{watcher_id}/candidates", h.CreateCandidate)
	mux.HandleFunc("GET /v1/watchers/{watcher_id}/candidates", h.ListCandidates)
	mux.HandleFunc("POST /v1/watchers/{watcher_id}/schedule", h.Schedule)
	mux.HandleFunc("GET /v1/watchers/{watcher_id}/schedule", h.GetSchedule)
	mux.HandleFunc("POST /v1/health-checks", h.CheckHealth)
	mux.HandleFunc("GET /healthz", h.Healthz)

	return mux
}
