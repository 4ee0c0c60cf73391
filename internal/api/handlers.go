package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"servicewatch/internal/apperr"
	"servicewatch/internal/health"
	"servicewatch/internal/models"
	"servicewatch/internal/scheduling"
	"servicewatch/internal/storage"
	"servicewatch/internal/urlutil"
)

// Handlers holds dependencies for the API handlers.
type Handlers struct {
	store        storage.Storer
	orchestrator *health.Orchestrator
	scheduling   *scheduling.Service
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(store storage.Storer, orchestrator *health.Orchestrator, sched *scheduling.Service) *Handlers {
	return &Handlers{store: store, orchestrator: orchestrator, scheduling: sched}
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a classified error onto an HTTP status and a stable
// machine-checkable body.
func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeInvalidState:
		status = http.StatusConflict
	}
	if code == apperr.CodeInternal {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    string(code),
			"message": apperr.MessageOf(err),
		},
	})
}

// CreateWatcher registers a new watcher in the pending_schedule state. The
// actual candidate discovery and code analysis are driven by the external
// workflow engine.
func (h *Handlers) CreateWatcher(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		Name                 string                                `json:"name"`
		ApplicationURL       string                                `json:"applicationUrl"`
		ObservabilitySources map[string]models.ObservabilitySource `json:"observabilitySources"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if reqBody.Name == "" {
		writeError(w, apperr.Validation("name is required"))
		return
	}

	appURL := reqBody.ApplicationURL
	if appURL != "" {
		canonical, err := urlutil.Canonicalize(appURL)
		if err != nil {
			writeError(w, apperr.Validation("applicationUrl: %v", err))
			return
		}
		appURL = canonical
	}

	watcher := &models.Watcher{
		ID:                   uuid.NewString(),
		Name:                 reqBody.Name,
		Status:               models.StatusPendingSchedule,
		ApplicationURL:       appURL,
		ObservabilitySources: reqBody.ObservabilitySources,
		CreatedAt:            time.Now().UTC(),
	}
	if err := h.store.CreateWatcher(r.Context(), watcher); err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusCreated, watcher)
}

// GetWatcher fetches a single watcher.
func (h *Handlers) GetWatcher(w http.ResponseWriter, r *http.Request) {
	watcher, err := h.store.GetWatcherByID(r.Context(), r.PathValue("watcher_id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, apperr.NotFound("watcher not found"))
		return
	}
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, watcher)
}

// CreateCandidate registers one discovered service unit under a watcher. In
// production this is called by the discovery workflow, not by end users.
func (h *Handlers) CreateCandidate(w http.ResponseWriter, r *http.Request) {
	watcherID := r.PathValue("watcher_id")
	var reqBody struct {
		EntityType models.EntityType `json:"entityType"`
		Name       string            `json:"name"`
		RoutePath  string            `json:"routePath"`
		Method     string            `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if !models.ValidEntityType(reqBody.EntityType) {
		writeError(w, apperr.Validation("entityType %q is not recognized", reqBody.EntityType))
		return
	}
	if reqBody.Name == "" {
		writeError(w, apperr.Validation("name is required"))
		return
	}

	if _, err := h.store.GetWatcherByID(r.Context(), watcherID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, apperr.NotFound("watcher not found"))
		} else {
			writeError(w, apperr.Internal(err))
		}
		return
	}

	candidate := &models.Candidate{
		WatcherID:  watcherID,
		EntityType: reqBody.EntityType,
		Name:       reqBody.Name,
		RoutePath:  reqBody.RoutePath,
		Method:     reqBody.Method,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.store.CreateCandidate(r.Context(), candidate); err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusCreated, candidate)
}

// ListCandidates lists all candidates of a watcher.
func (h *Handlers) ListCandidates(w http.ResponseWriter, r *http.Request) {
	watcherID := r.PathValue("watcher_id")
	if _, err := h.store.GetWatcherByID(r.Context(), watcherID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, apperr.NotFound("watcher not found"))
		} else {
			writeError(w, apperr.Internal(err))
		}
		return
	}
	candidates, err := h.store.ListCandidatesByWatcher(r.Context(), watcherID)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": candidates})
}

// Schedule activates periodic observation for a watcher.
func (h *Handlers) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduling.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	watcher, err := h.scheduling.Schedule(r.Context(), r.PathValue("watcher_id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               watcher.Status,
		"observationType":      watcher.ObservationType,
		"scanFrequencyMinutes": watcher.ScanFrequencyMinutes,
		"analysisPeriodDays":   watcher.AnalysisPeriodDays,
		"nextObservationAt":    watcher.NextObservationAt,
	})
}

// GetSchedule returns the watcher's current schedule view.
func (h *Handlers) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := h.scheduling.GetSchedule(r.Context(), r.PathValue("watcher_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// CheckHealth runs one batch health assessment.
func (h *Handlers) CheckHealth(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		CandidateIDs []int64 `json:"candidateIds"`
		OwnerID      string  `json:"ownerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if reqBody.OwnerID == "" {
		writeError(w, apperr.Validation("ownerId is required"))
		return
	}
	report, err := h.orchestrator.CheckBatch(r.Context(), reqBody.OwnerID, reqBody.CandidateIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Healthz is a simple health check endpoint.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
