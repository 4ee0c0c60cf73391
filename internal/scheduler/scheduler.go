// Package scheduler drives periodic observation: it wakes on a tick, finds
// watchers whose next observation instant has passed, runs the batch health
// orchestrator over their candidates and advances the cadence.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"servicewatch/internal/health"
	"servicewatch/internal/models"
	"servicewatch/internal/storage"
)

// Scheduler is responsible for periodically running due observations.
type Scheduler struct {
	store        storage.Storer
	orchestrator *health.Orchestrator
	tick         time.Duration
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

// New creates a new Scheduler.
func New(store storage.Storer, orchestrator *health.Orchestrator, tick time.Duration) *Scheduler {
	return &Scheduler{
		store:        store,
		orchestrator: orchestrator,
		tick:         tick,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the periodic observation process.
func (s *Scheduler) Start() {
	log.Printf("starting observation scheduler with tick: %s", s.tick)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runDue(context.Background())
			case <-s.stopChan:
				log.Println("stopping observation scheduler...")
				return
			}
		}
	}()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	log.Println("observation scheduler stopped")
}

// runDue observes every watcher whose next observation instant has passed.
func (s *Scheduler) runDue(ctx context.Context) {
	now := time.Now().UTC()
	watchers, err := s.store.ListDueWatchers(ctx, now)
	if err != nil {
		log.Printf("error fetching due watchers: %v", err)
		return
	}
	for _, w := range watchers {
		s.observe(ctx, w, now)
	}
}

// observe runs one watcher's candidates through the orchestrator in chunks of
// the batch cap, then advances next_observation_at by the watcher's frequency.
func (s *Scheduler) observe(ctx context.Context, w models.Watcher, now time.Time) {
	candidates, err := s.store.ListCandidatesByWatcher(ctx, w.ID)
	if err != nil {
		log.Printf("error fetching candidates for watcher %s: %v", w.ID, err)
		return
	}

	for start := 0; start < len(candidates); start += health.MaxBatchSize {
		end := min(start+health.MaxBatchSize, len(candidates))
		ids := make([]int64, 0, end-start)
		for _, c := range candidates[start:end] {
			ids = append(ids, c.ID)
		}
		report, err := s.orchestrator.CheckBatch(ctx, w.ID, ids)
		if err != nil {
			log.Printf("batch health check failed for watcher %s: %v", w.ID, err)
			continue
		}
		log.Printf("watcher %s observed: total=%d healthy=%d unhealthy=%d tracked=%d reachable=%d",
			w.ID, report.Summary.Total, report.Summary.Healthy, report.Summary.Unhealthy,
			report.Summary.Tracked, report.Summary.Reachable)
	}

	freq := 60
	if w.ScanFrequencyMinutes != nil {
		freq = *w.ScanFrequencyMinutes
	}
	next := now.Add(time.Duration(freq) * time.Minute)
	if err := s.store.SetNextObservation(ctx, w.ID, next); err != nil {
		log.Printf("error advancing next observation for watcher %s: %v", w.ID, err)
	}
}
