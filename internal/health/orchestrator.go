package health

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"servicewatch/internal/apperr"
	"servicewatch/internal/models"
	"servicewatch/internal/probe"
	"servicewatch/internal/storage"
)

// MaxBatchSize caps one batch invocation to bound total latency and outbound
// connection fan-out.
const MaxBatchSize = 50

// BatchReport is the full outcome of one batch health check.
type BatchReport struct {
	Summary    models.BatchSummary        `json:"summary"`
	Candidates []models.HealthCheckResult `json:"candidates"`
}

// Orchestrator fans a candidate batch out to the reachability probe and the
// observability resolver, then synthesizes one verdict per candidate. It is
// read-only against the store.
type Orchestrator struct {
	store  storage.Storer
	prober *probe.Prober
}

// NewOrchestrator creates a batch health orchestrator.
func NewOrchestrator(store storage.Storer, prober *probe.Prober) *Orchestrator {
	return &Orchestrator{store: store, prober: prober}
}

// CheckBatch assesses up to MaxBatchSize candidates owned by one watcher.
// Requested ids that do not resolve for the owner are silently absent from
// the result set; only a fully empty resolution is an error. Results carry no
// ordering guarantee.
func (o *Orchestrator) CheckBatch(ctx context.Context, ownerID string, candidateIDs []int64) (*BatchReport, error) {
	if len(candidateIDs) == 0 {
		return nil, apperr.Validation("candidateIds must contain at least one id")
	}
	if len(candidateIDs) > MaxBatchSize {
		return nil, apperr.Validation("candidateIds must contain at most %d ids, got %d", MaxBatchSize, len(candidateIDs))
	}

	watcher, err := o.store.GetWatcherByID(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("watcher %s not found", ownerID)
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("loading watcher: %w", err))
	}

	candidates, err := o.store.GetCandidatesByIDs(ctx, ownerID, candidateIDs)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("loading candidates: %w", err))
	}
	if len(candidates) == 0 {
		return nil, apperr.NotFound("no candidates found for watcher %s", ownerID)
	}

	// One slot per candidate; every task writes only its own slot, so the
	// batch waits for the full set without any cross-task sharing.
	results := make([]models.HealthCheckResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxBatchSize)
	for i, cand := range candidates {
		g.Go(func() error {
			results[i] = o.assess(gctx, watcher, cand)
			return nil
		})
	}
	// Tasks never return errors; probe failures are downgraded into the
	// per-candidate result.
	_ = g.Wait()

	report := &BatchReport{Candidates: results}
	report.Summary = summarize(results)
	return report, nil
}

// assess produces the health verdict for a single candidate. Only HTTP
// endpoints are actively probed; every other entity type inherits the tracked
// value as its sole liveness signal.
func (o *Orchestrator) assess(ctx context.Context, watcher *models.Watcher, cand models.Candidate) models.HealthCheckResult {
	tracked, sources := ResolveObservability(watcher.ObservabilitySources, cand.RoutePath)

	var (
		reachable bool
		probed    bool
		probeErr  string
		pr        probe.Result
	)
	if cand.EntityType == models.EntityHTTPEndpoint {
		if watcher.ApplicationURL == "" {
			probeErr = "no application URL configured"
		} else {
			probed = true
			pr = o.prober.Check(ctx, watcher.ApplicationURL, cand.RoutePath, cand.Method)
			reachable = pr.Reachable
			probeErr = pr.Error
		}
	} else {
		reachable = tracked
	}

	verdict := Synthesize(tracked, reachable, probed, probeErr)
	return models.HealthCheckResult{
		CandidateID:          cand.ID,
		Healthy:              verdict.Healthy,
		Reachable:            reachable,
		Tracked:              tracked,
		Message:              verdict.Message,
		StatusCode:           pr.StatusCode,
		ResponseTimeMs:       pr.ResponseTimeMs,
		ObservabilitySources: sources,
	}
}

// summarize folds the individual results into batch counts.
func summarize(results []models.HealthCheckResult) models.BatchSummary {
	s := models.BatchSummary{Total: len(results)}
	for _, r := range results {
		if r.Healthy {
			s.Healthy++
		} else {
			s.Unhealthy++
		}
		if r.Tracked {
			s.Tracked++
		}
		if r.Reachable {
			s.Reachable++
		}
	}
	return s
}
