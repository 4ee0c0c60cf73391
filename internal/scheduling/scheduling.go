// Package scheduling owns the watcher lifecycle transition that activates
// periodic observation. A watcher is created awaiting a schedule and moves
// exactly once into the scheduled state; re-entry is rejected.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"servicewatch/internal/apperr"
	"servicewatch/internal/models"
	"servicewatch/internal/storage"
)

// Schedule bounds. Frequency is in minutes, period in days.
const (
	MinScanFrequencyMinutes = 5
	MaxScanFrequencyMinutes = 1440
	MinAnalysisPeriodDays   = 7
	MaxAnalysisPeriodDays   = 365
)

// ScheduleRequest carries the scheduling transition inputs.
type ScheduleRequest struct {
	ScanFrequencyMinutes int  `json:"scanFrequencyMinutes"`
	AnalysisPeriodDays   int  `json:"analysisPeriodDays"`
	ForAllServices       bool `json:"forAllServices"`
}

// CandidateSchedule is one candidate's individual cadence, reported by
// GetSchedule for varied watchers.
type CandidateSchedule struct {
	CandidateID          int64             `json:"candidateId"`
	EntityType           models.EntityType `json:"entityType"`
	Name                 string            `json:"name"`
	ScanFrequencyMinutes *int              `json:"scanFrequencyMinutes"`
	AnalysisPeriodDays   *int              `json:"analysisPeriodDays"`
}

// Schedule is the watcher's current schedule view.
type Schedule struct {
	Status               models.WatcherStatus   `json:"status"`
	ObservationType      models.ObservationType `json:"observationType,omitempty"`
	ScanFrequencyMinutes *int                   `json:"scanFrequencyMinutes"`
	AnalysisPeriodDays   *int                   `json:"analysisPeriodDays"`
	NextObservationAt    *time.Time             `json:"nextObservationAt"`
	Candidates           []CandidateSchedule    `json:"candidates,omitempty"`
}

// Service validates and performs scheduling operations against the store.
type Service struct {
	store storage.Storer
	now   func() time.Time
}

// NewService creates a scheduling service.
func NewService(store storage.Storer) *Service {
	return &Service{store: store, now: time.Now}
}

func validateBounds(req ScheduleRequest) error {
	if req.ScanFrequencyMinutes < MinScanFrequencyMinutes || req.ScanFrequencyMinutes > MaxScanFrequencyMinutes {
		return apperr.Validation("scanFrequencyMinutes must be between %d and %d, got %d",
			MinScanFrequencyMinutes, MaxScanFrequencyMinutes, req.ScanFrequencyMinutes)
	}
	if req.AnalysisPeriodDays < MinAnalysisPeriodDays || req.AnalysisPeriodDays > MaxAnalysisPeriodDays {
		return apperr.Validation("analysisPeriodDays must be between %d and %d, got %d",
			MinAnalysisPeriodDays, MaxAnalysisPeriodDays, req.AnalysisPeriodDays)
	}
	return nil
}

// Schedule moves a watcher from pending_schedule to scheduled. Bounds are
// validated before any state is touched; the store applies the transition and
// the candidate propagation as one atomic unit. The operation is not
// idempotent: scheduling an already scheduled watcher fails.
func (s *Service) Schedule(ctx context.Context, watcherID string, req ScheduleRequest) (*models.Watcher, error) {
	if err := validateBounds(req); err != nil {
		return nil, err
	}

	obsType := models.ObservationVaried
	if req.ForAllServices {
		obsType = models.ObservationUniform
	}

	watcher, err := s.store.ScheduleWatcher(ctx, watcherID, storage.ScheduleParams{
		ObservationType:      obsType,
		ScanFrequencyMinutes: req.ScanFrequencyMinutes,
		AnalysisPeriodDays:   req.AnalysisPeriodDays,
		NextObservationAt:    s.now().UTC().Add(time.Duration(req.ScanFrequencyMinutes) * time.Minute),
		Propagate:            obsType == models.ObservationVaried,
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, apperr.NotFound("watcher %s not found", watcherID)
	case errors.Is(err, storage.ErrInvalidState):
		return nil, apperr.InvalidState("watcher %s is not awaiting a schedule", watcherID)
	case err != nil:
		return nil, apperr.Internal(fmt.Errorf("scheduling watcher: %w", err))
	}
	return watcher, nil
}

// GetSchedule returns the watcher's current schedule. For varied watchers it
// also reports every candidate's individual settings, ordered by entity type
// then name.
func (s *Service) GetSchedule(ctx context.Context, watcherID string) (*Schedule, error) {
	watcher, err := s.store.GetWatcherByID(ctx, watcherID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("watcher %s not found", watcherID)
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("loading watcher: %w", err))
	}

	sched := &Schedule{
		Status:               watcher.Status,
		ObservationType:      watcher.ObservationType,
		ScanFrequencyMinutes: watcher.ScanFrequencyMinutes,
		AnalysisPeriodDays:   watcher.AnalysisPeriodDays,
		NextObservationAt:    watcher.NextObservationAt,
	}
	if watcher.ObservationType != models.ObservationVaried {
		return sched, nil
	}

	candidates, err := s.store.ListCandidatesByWatcher(ctx, watcherID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("loading candidates: %w", err))
	}
	for _, c := range candidates {
		sched.Candidates = append(sched.Candidates, CandidateSchedule{
			CandidateID:          c.ID,
			EntityType:           c.EntityType,
			Name:                 c.Name,
			ScanFrequencyMinutes: c.ScanFrequencyMinutes,
			AnalysisPeriodDays:   c.AnalysisPeriodDays,
		})
	}
	return sched, nil
}
