package scheduler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicewatch/internal/health"
	"servicewatch/internal/models"
	"servicewatch/internal/probe"
	"servicewatch/internal/scheduler"
	"servicewatch/internal/storage/storagetest"
)

func TestSchedulerObservesDueWatchers(t *testing.T) {
	var probed atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probed.Add(1)
	}))
	defer upstream.Close()

	store := storagetest.New()
	freq := 30
	past := time.Now().UTC().Add(-time.Minute)
	w := &models.Watcher{
		ID:                   "w1",
		Name:                 "payments",
		Status:               models.StatusScheduled,
		ObservationType:      models.ObservationUniform,
		ApplicationURL:       upstream.URL,
		ScanFrequencyMinutes: &freq,
		NextObservationAt:    &past,
		CreatedAt:            time.Now().UTC(),
	}
	require.NoError(t, store.CreateWatcher(context.Background(), w))
	c := &models.Candidate{WatcherID: "w1", EntityType: models.EntityHTTPEndpoint, Name: "api", RoutePath: "/health", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateCandidate(context.Background(), c))

	orchestrator := health.NewOrchestrator(store, probe.New(time.Second))
	s := scheduler.New(store, orchestrator, 20*time.Millisecond)
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return probed.Load() > 0
	}, 3*time.Second, 10*time.Millisecond, "due watcher's endpoint gets probed")

	require.Eventually(t, func() bool {
		got, err := store.GetWatcherByID(context.Background(), "w1")
		if err != nil {
			return false
		}
		return got.NextObservationAt != nil && got.NextObservationAt.After(time.Now().UTC())
	}, 3*time.Second, 10*time.Millisecond, "next observation is advanced by the frequency")

	got, err := store.GetWatcherByID(context.Background(), "w1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Duration(freq)*time.Minute), *got.NextObservationAt, 10*time.Second)
}

func TestSchedulerSkipsUnscheduledWatchers(t *testing.T) {
	store := storagetest.New()
	w := &models.Watcher{ID: "w1", Name: "payments", Status: models.StatusPendingSchedule, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateWatcher(context.Background(), w))

	due, err := store.ListDueWatchers(context.Background(), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due, "pending watchers are never due")
}
