package scheduling_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicewatch/internal/apperr"
	"servicewatch/internal/models"
	"servicewatch/internal/scheduling"
	"servicewatch/internal/storage/storagetest"
)

func newPendingWatcher(t *testing.T, store *storagetest.MemStore) *models.Watcher {
	t.Helper()
	w := &models.Watcher{
		ID:        "w-" + t.Name(),
		Name:      "payments",
		Status:    models.StatusPendingSchedule,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateWatcher(context.Background(), w))
	return w
}

func TestScheduleBounds(t *testing.T) {
	tests := []struct {
		name    string
		freq    int
		period  int
		wantErr bool
	}{
		{"frequency below minimum", 4, 30, true},
		{"frequency at minimum", 5, 30, false},
		{"frequency at maximum", 1440, 30, false},
		{"frequency above maximum", 1441, 30, true},
		{"period below minimum", 60, 6, true},
		{"period at minimum", 60, 7, false},
		{"period at maximum", 60, 365, false},
		{"period above maximum", 60, 366, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storagetest.New()
			w := newPendingWatcher(t, store)
			svc := scheduling.NewService(store)

			_, err := svc.Schedule(t.Context(), w.ID, scheduling.ScheduleRequest{
				ScanFrequencyMinutes: tt.freq,
				AnalysisPeriodDays:   tt.period,
				ForAllServices:       true,
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
				// Validation failures must not touch state.
				got, gerr := store.GetWatcherByID(t.Context(), w.ID)
				require.NoError(t, gerr)
				assert.Equal(t, models.StatusPendingSchedule, got.Status)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestScheduleNotFound(t *testing.T) {
	svc := scheduling.NewService(storagetest.New())
	_, err := svc.Schedule(t.Context(), "missing", scheduling.ScheduleRequest{
		ScanFrequencyMinutes: 60,
		AnalysisPeriodDays:   30,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestScheduleUniform(t *testing.T) {
	store := storagetest.New()
	w := newPendingWatcher(t, store)
	cand := &models.Candidate{WatcherID: w.ID, EntityType: models.EntityCronJob, Name: "nightly"}
	require.NoError(t, store.CreateCandidate(t.Context(), cand))

	svc := scheduling.NewService(store)
	before := time.Now().UTC()
	updated, err := svc.Schedule(t.Context(), w.ID, scheduling.ScheduleRequest{
		ScanFrequencyMinutes: 30,
		AnalysisPeriodDays:   90,
		ForAllServices:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusScheduled, updated.Status)
	assert.Equal(t, models.ObservationUniform, updated.ObservationType)
	require.NotNil(t, updated.ScanFrequencyMinutes)
	assert.Equal(t, 30, *updated.ScanFrequencyMinutes)
	require.NotNil(t, updated.AnalysisPeriodDays)
	assert.Equal(t, 90, *updated.AnalysisPeriodDays)
	require.NotNil(t, updated.NextObservationAt)
	next := *updated.NextObservationAt
	assert.WithinDuration(t, before.Add(30*time.Minute), next, 5*time.Second)

	// Uniform watchers rely on inheritance; candidates stay untouched.
	cands, err := store.ListCandidatesByWatcher(t.Context(), w.ID)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Nil(t, cands[0].ScanFrequencyMinutes)
	assert.Nil(t, cands[0].AnalysisPeriodDays)
}

func TestScheduleVariedPropagates(t *testing.T) {
	store := storagetest.New()
	w := newPendingWatcher(t, store)
	for _, name := range []string{"api", "worker"} {
		c := &models.Candidate{WatcherID: w.ID, EntityType: models.EntityHTTPEndpoint, Name: name}
		require.NoError(t, store.CreateCandidate(t.Context(), c))
	}

	svc := scheduling.NewService(store)
	updated, err := svc.Schedule(t.Context(), w.ID, scheduling.ScheduleRequest{
		ScanFrequencyMinutes: 15,
		AnalysisPeriodDays:   14,
		ForAllServices:       false,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ObservationVaried, updated.ObservationType)

	cands, err := store.ListCandidatesByWatcher(t.Context(), w.ID)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	for _, c := range cands {
		require.NotNil(t, c.ScanFrequencyMinutes)
		assert.Equal(t, 15, *c.ScanFrequencyMinutes)
		require.NotNil(t, c.AnalysisPeriodDays)
		assert.Equal(t, 14, *c.AnalysisPeriodDays)
	}
}

func TestScheduleTwiceRejected(t *testing.T) {
	store := storagetest.New()
	w := newPendingWatcher(t, store)
	svc := scheduling.NewService(store)

	first, err := svc.Schedule(t.Context(), w.ID, scheduling.ScheduleRequest{
		ScanFrequencyMinutes: 30,
		AnalysisPeriodDays:   90,
		ForAllServices:       true,
	})
	require.NoError(t, err)

	_, err = svc.Schedule(t.Context(), w.ID, scheduling.ScheduleRequest{
		ScanFrequencyMinutes: 120,
		AnalysisPeriodDays:   180,
		ForAllServices:       false,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))

	// Everything from the first call stays intact.
	got, err := store.GetWatcherByID(t.Context(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, got.Status)
	assert.Equal(t, models.ObservationUniform, got.ObservationType)
	assert.Equal(t, *first.ScanFrequencyMinutes, *got.ScanFrequencyMinutes)
	assert.Equal(t, *first.AnalysisPeriodDays, *got.AnalysisPeriodDays)
	assert.Equal(t, first.NextObservationAt.Unix(), got.NextObservationAt.Unix())
}

func TestGetSchedule(t *testing.T) {
	store := storagetest.New()
	w := newPendingWatcher(t, store)
	for _, c := range []models.Candidate{
		{WatcherID: w.ID, EntityType: models.EntityHTTPEndpoint, Name: "api"},
		{WatcherID: w.ID, EntityType: models.EntityCronJob, Name: "nightly"},
		{WatcherID: w.ID, EntityType: models.EntityCronJob, Name: "archive"},
	} {
		cand := c
		require.NoError(t, store.CreateCandidate(t.Context(), &cand))
	}
	svc := scheduling.NewService(store)

	sched, err := svc.GetSchedule(t.Context(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingSchedule, sched.Status)
	assert.Empty(t, sched.Candidates, "candidates reported only for varied watchers")

	_, err = svc.Schedule(t.Context(), w.ID, scheduling.ScheduleRequest{
		ScanFrequencyMinutes: 15,
		AnalysisPeriodDays:   14,
		ForAllServices:       false,
	})
	require.NoError(t, err)

	sched, err = svc.GetSchedule(t.Context(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ObservationVaried, sched.ObservationType)
	require.Len(t, sched.Candidates, 3)
	// Entity type first, then name.
	assert.Equal(t, "archive", sched.Candidates[0].Name)
	assert.Equal(t, "nightly", sched.Candidates[1].Name)
	assert.Equal(t, "api", sched.Candidates[2].Name)

	_, err = svc.GetSchedule(t.Context(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}
