// Package storagetest provides an in-memory Storer used by tests across
// packages.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"servicewatch/internal/models"
	"servicewatch/internal/storage"
)

// MemStore is a mutex-guarded in-memory implementation of storage.Storer.
type MemStore struct {
	mu         sync.RWMutex
	watchers   map[string]models.Watcher
	candidates map[int64]models.Candidate
	nextID     int64
}

// New creates an empty MemStore.
func New() *MemStore {
	return &MemStore{
		watchers:   make(map[string]models.Watcher),
		candidates: make(map[int64]models.Candidate),
	}
}

func (s *MemStore) CreateWatcher(ctx context.Context, w *models.Watcher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watchers[w.ID]; ok {
		return fmt.Errorf("watcher %s already exists", w.ID)
	}
	s.watchers[w.ID] = *w
	return nil
}

func (s *MemStore) GetWatcherByID(ctx context.Context, id string) (*models.Watcher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.watchers[id]; ok {
		return &w, nil
	}
	return nil, storage.ErrNotFound
}

func (s *MemStore) ListDueWatchers(ctx context.Context, now time.Time) ([]models.Watcher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []models.Watcher
	for _, w := range s.watchers {
		if w.Status == models.StatusScheduled && w.NextObservationAt != nil && !w.NextObservationAt.After(now) {
			due = append(due, w)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (s *MemStore) SetNextObservation(ctx context.Context, watcherID string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watchers[watcherID]
	if !ok {
		return storage.ErrNotFound
	}
	n := next
	w.NextObservationAt = &n
	s.watchers[watcherID] = w
	return nil
}

func (s *MemStore) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	s.candidates[c.ID] = *c
	return nil
}

func (s *MemStore) GetCandidatesByIDs(ctx context.Context, watcherID string, ids []int64) ([]models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Candidate
	for _, id := range ids {
		if c, ok := s.candidates[id]; ok && c.WatcherID == watcherID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemStore) ListCandidatesByWatcher(ctx context.Context, watcherID string) ([]models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Candidate
	for _, c := range s.candidates {
		if c.WatcherID == watcherID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityType != out[j].EntityType {
			return out[i].EntityType < out[j].EntityType
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) ScheduleWatcher(ctx context.Context, watcherID string, params storage.ScheduleParams) (*models.Watcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watchers[watcherID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if w.Status != models.StatusPendingSchedule {
		return nil, fmt.Errorf("watcher %s has status %q: %w", watcherID, w.Status, storage.ErrInvalidState)
	}
	w.Status = models.StatusScheduled
	w.ObservationType = params.ObservationType
	freq := params.ScanFrequencyMinutes
	period := params.AnalysisPeriodDays
	w.ScanFrequencyMinutes = &freq
	w.AnalysisPeriodDays = &period
	next := params.NextObservationAt
	w.NextObservationAt = &next
	s.watchers[watcherID] = w

	if params.Propagate {
		for id, c := range s.candidates {
			if c.WatcherID != watcherID {
				continue
			}
			f, p := freq, period
			c.ScanFrequencyMinutes = &f
			c.AnalysisPeriodDays = &p
			s.candidates[id] = c
		}
	}
	out := w
	return &out, nil
}
