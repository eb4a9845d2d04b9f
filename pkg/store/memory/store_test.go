package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/arnavshah/site-capacity-api/pkg/planning"
	"github.com/arnavshah/site-capacity-api/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestStore_ImplementsStore(t *testing.T) {
	var _ store.Store = New()
}

func TestStore_FetchOrdered(t *testing.T) {
	s := New()
	s.PutWorkers(models.Worker{ID: "w2"}, models.Worker{ID: "w1"})
	s.PutSites(models.Site{ID: "s9"}, models.Site{ID: "s1"})

	workers, err := s.FetchWorkers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "w1", workers[0].ID)

	sites, err := s.FetchSites(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", sites[0].ID)
}

func TestStore_FetchAssignmentsInRange(t *testing.T) {
	s := New()
	s.PutAssignments(
		models.Assignment{ID: "in", Day: mustDate(t, "2026-10-25")},
		models.Assignment{ID: "out", Day: mustDate(t, "2026-10-26")},
	)
	period, err := planning.Build(mustDate(t, "2026-10-19"), models.GranularityWeek)
	require.NoError(t, err)

	got, err := s.FetchAssignments(context.Background(), period)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "in", got[0].ID)
}

func TestStore_PersistReplacesRange(t *testing.T) {
	s := New()
	s.PutAssignments(
		models.Assignment{ID: "old", Day: mustDate(t, "2026-10-20")},
		models.Assignment{ID: "other-week", Day: mustDate(t, "2026-10-27")},
	)
	period, err := planning.Build(mustDate(t, "2026-10-19"), models.GranularityWeek)
	require.NoError(t, err)
	period.Locked = true

	version, err := s.PersistAssignments(context.Background(), period, []models.Assignment{
		{ID: "new", Day: mustDate(t, "2026-10-21"), Conflicts: []models.ConflictReason{models.ConflictAbsence}},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)

	got, err := s.FetchAssignments(context.Background(), period)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
	assert.Nil(t, got[0].Conflicts, "conflicts are derived, never stored")

	state, err := s.FetchPeriodState(context.Background(), period)
	require.NoError(t, err)
	assert.True(t, state.Locked)
	assert.Equal(t, uint64(1), state.Version)
	assert.Empty(t, state.LockedOverlaps)
}

func TestStore_OverlappingPeriods(t *testing.T) {
	s := New()
	ctx := context.Background()
	week, err := planning.Build(mustDate(t, "2026-10-19"), models.GranularityWeek)
	require.NoError(t, err)
	month, err := planning.Build(mustDate(t, "2026-10-01"), models.GranularityMonth)
	require.NoError(t, err)
	november, err := planning.Build(mustDate(t, "2026-11-10"), models.GranularityMonth)
	require.NoError(t, err)

	monthState, err := s.FetchPeriodState(ctx, month)
	require.NoError(t, err)

	week.Locked = true
	_, err = s.PersistAssignments(ctx, week, []models.Assignment{
		{ID: "a1", WorkerID: "w1", Day: mustDate(t, "2026-10-20"), State: models.StateLocked},
	}, 0)
	require.NoError(t, err)

	state, err := s.FetchPeriodState(ctx, month)
	require.NoError(t, err)
	assert.False(t, state.Locked)
	assert.Equal(t, []string{"2026-W43"}, state.LockedOverlaps)
	assert.Greater(t, state.Version, monthState.Version)

	// A month read before the week was written cannot overwrite it
	_, err = s.PersistAssignments(ctx, month, nil, monthState.Version)
	var stale *store.StaleError
	require.ErrorAs(t, err, &stale)
	assert.ErrorIs(t, err, store.ErrStale)
	assert.Equal(t, "2026-10", stale.PeriodID)

	got, err := s.FetchAssignments(ctx, week)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)

	other, err := s.FetchPeriodState(ctx, november)
	require.NoError(t, err)
	assert.Empty(t, other.LockedOverlaps)
	assert.Zero(t, other.Version)
}

func TestStore_PersistFailures(t *testing.T) {
	s := New()
	period, err := planning.Build(mustDate(t, "2026-10-19"), models.GranularityWeek)
	require.NoError(t, err)

	s.FailPersist = errors.New("disk full")
	_, err = s.PersistAssignments(context.Background(), period, nil, 0)
	assert.ErrorIs(t, err, store.ErrPersist)
	assert.ErrorContains(t, err, "disk full")

	s.FailPersist = nil
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.PersistAssignments(ctx, period, nil, 0)
	assert.ErrorIs(t, err, store.ErrPersist)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.FetchWorkers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeed(t *testing.T) {
	s := New()
	today := mustDate(t, "2026-10-19")
	Seed(s, today)

	workers, err := s.FetchWorkers(context.Background())
	require.NoError(t, err)
	sites, err := s.FetchSites(context.Background())
	require.NoError(t, err)

	assert.Len(t, workers, 5)
	assert.Len(t, sites, 3)
	for _, w := range workers {
		assert.True(t, w.Role.Valid(), w.ID)
	}
	assert.True(t, workers[2].AbsentOn(today.AddDate(0, 0, 1)))
}
