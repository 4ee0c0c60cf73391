package storage

import (
	"context"
	"errors"
	"time"

	"servicewatch/internal/models"
)

var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when a lifecycle mutation is attempted
	// against a resource whose current state does not permit it
	ErrInvalidState = errors.New("invalid state")
)

// ScheduleParams carries the fields written by the watcher scheduling
// transition. When Propagate is true the frequency and period are also copied
// onto every candidate owned by the watcher.
type ScheduleParams struct {
	ObservationType      models.ObservationType
	ScanFrequencyMinutes int
	AnalysisPeriodDays   int
	NextObservationAt    time.Time
	Propagate            bool
}

// Storer defines the interface for storage operations on watchers and
// candidates.
type Storer interface {
	CreateWatcher(ctx context.Context, w *models.Watcher) error
	GetWatcherByID(ctx context.Context, id string) (*models.Watcher, error)
	// ListDueWatchers returns scheduled watchers whose next observation
	// instant is at or before now.
	ListDueWatchers(ctx context.Context, now time.Time) ([]models.Watcher, error)
	SetNextObservation(ctx context.Context, watcherID string, next time.Time) error

	CreateCandidate(ctx context.Context, c *models.Candidate) error
	// GetCandidatesByIDs resolves the given candidate ids scoped to one
	// owning watcher. Ids that do not resolve are silently omitted.
	GetCandidatesByIDs(ctx context.Context, watcherID string, ids []int64) ([]models.Candidate, error)
	// ListCandidatesByWatcher returns all candidates of a watcher ordered
	// by entity type, then name.
	ListCandidatesByWatcher(ctx context.Context, watcherID string) ([]models.Candidate, error)

	// ScheduleWatcher performs the pending_schedule -> scheduled transition
	// as one atomic unit: the state check, the watcher update and the
	// optional candidate propagation either all apply or none do. Returns
	// ErrNotFound for an unknown watcher and ErrInvalidState when the
	// watcher is not awaiting scheduling.
	ScheduleWatcher(ctx context.Context, watcherID string, params ScheduleParams) (*models.Watcher, error)
}
