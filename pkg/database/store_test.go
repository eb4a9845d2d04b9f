package database

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

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	err := s.SaveWorkers(ctx,
		models.Worker{ID: "w1", Name: "Alex", Role: models.RoleOperator},
		models.Worker{ID: "w2", Name: "Jo", Role: models.RoleSafety, Absences: []models.Absence{
			{Start: mustDate(t, "2026-10-20"), End: mustDate(t, "2026-10-21"), Kind: models.AbsenceVacation},
		}},
	)
	require.NoError(t, err, "Failed to save workers")

	err = s.SaveSites(ctx,
		models.Site{ID: "s1", Name: "Riverside", BudgetedHours: 40},
		models.Site{ID: "s2", Name: "Depot", BudgetedHours: 100, Status: models.SiteClosed},
	)
	require.NoError(t, err, "Failed to save sites")
}

func TestStore_FetchReferenceData(t *testing.T) {
	s := NewStore(SetupTestDB(t))
	seed(t, s)

	workers, err := s.FetchWorkers(context.Background())
	require.NoError(t, err)
	require.Len(t, workers, 2)
	assert.Equal(t, "w1", workers[0].ID)
	require.Len(t, workers[1].Absences, 1)
	assert.Equal(t, models.AbsenceVacation, workers[1].Absences[0].Kind)
	assert.True(t, workers[1].AbsentOn(mustDate(t, "2026-10-21")))

	sites, err := s.FetchSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, models.SiteActive, sites[0].Status, "status defaults to active")
	assert.Equal(t, models.SiteClosed, sites[1].Status)
	assert.Equal(t, 100.0, sites[1].BudgetedHours)
}

func TestStore_SaveWorkersReplacesAbsences(t *testing.T) {
	s := NewStore(SetupTestDB(t))
	seed(t, s)

	err := s.SaveWorkers(context.Background(), models.Worker{ID: "w2", Name: "Jo", Role: models.RoleSafety})
	require.NoError(t, err)

	workers, err := s.FetchWorkers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, workers[1].Absences)
}

func TestStore_PersistAndFetchAssignments(t *testing.T) {
	s := NewStore(SetupTestDB(t))
	seed(t, s)
	ctx := context.Background()

	period, err := planning.Build(mustDate(t, "2026-10-19"), models.GranularityWeek)
	require.NoError(t, err)
	next, err := planning.Build(mustDate(t, "2026-10-26"), models.GranularityWeek)
	require.NoError(t, err)

	// Next week's row must survive a flush of this week
	_, err = s.PersistAssignments(ctx, next, []models.Assignment{
		{ID: "n1", WorkerID: "w1", SiteID: "s1", Day: mustDate(t, "2026-10-26"), HoursPlanned: 8, State: models.StateDraft},
	}, 0)
	require.NoError(t, err)

	period.Locked = true
	version, err := s.PersistAssignments(ctx, period, []models.Assignment{
		{ID: "a1", WorkerID: "w1", SiteID: "s1", Day: mustDate(t, "2026-10-19"), HoursPlanned: 8, State: models.StateLocked},
		{ID: "a2", WorkerID: "w1", SiteID: "s2", Day: mustDate(t, "2026-10-20"), HoursPlanned: 4.5, State: models.StateValidated},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)

	got, err := s.FetchAssignments(ctx, period)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, mustDate(t, "2026-10-19"), got[0].Day)
	assert.Equal(t, models.StateLocked, got[0].State)
	assert.Equal(t, 4.5, got[1].HoursPlanned)

	state, err := s.FetchPeriodState(ctx, period)
	require.NoError(t, err)
	assert.True(t, state.Locked)
	assert.Equal(t, uint64(1), state.Version)

	// Second flush replaces the range
	period.Locked = false
	version, err = s.PersistAssignments(ctx, period, []models.Assignment{
		{ID: "a3", WorkerID: "w2", SiteID: "s1", Day: mustDate(t, "2026-10-23"), HoursPlanned: 6, State: models.StateDraft},
	}, version)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)

	got, err = s.FetchAssignments(ctx, period)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a3", got[0].ID)

	state, err = s.FetchPeriodState(ctx, period)
	require.NoError(t, err)
	assert.False(t, state.Locked)

	other, err := s.FetchAssignments(ctx, next)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestStore_FetchPeriodStateUnknown(t *testing.T) {
	s := NewStore(SetupTestDB(t))
	period, err := planning.Build(mustDate(t, "1999-01-04"), models.GranularityWeek)
	require.NoError(t, err)

	state, err := s.FetchPeriodState(context.Background(), period)
	require.NoError(t, err)
	assert.Equal(t, store.PeriodState{}, state)
}

func TestStore_OverlappingPeriodsShareVersion(t *testing.T) {
	s := NewStore(SetupTestDB(t))
	seed(t, s)
	ctx := context.Background()

	week, err := planning.Build(mustDate(t, "2026-10-19"), models.GranularityWeek)
	require.NoError(t, err)
	month, err := planning.Build(mustDate(t, "2026-10-01"), models.GranularityMonth)
	require.NoError(t, err)

	before, err := s.FetchPeriodState(ctx, month)
	require.NoError(t, err)

	week.Locked = true
	_, err = s.PersistAssignments(ctx, week, []models.Assignment{
		{ID: "a1", WorkerID: "w1", SiteID: "s1", Day: mustDate(t, "2026-10-19"), HoursPlanned: 8, State: models.StateLocked},
	}, 0)
	require.NoError(t, err)

	after, err := s.FetchPeriodState(ctx, month)
	require.NoError(t, err)
	assert.False(t, after.Locked)
	assert.Equal(t, []string{"2026-W43"}, after.LockedOverlaps)
	assert.Greater(t, after.Version, before.Version)

	// A month session read before the week write must not clobber it
	_, err = s.PersistAssignments(ctx, month, nil, before.Version)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStale))
	var stale *store.StaleError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, "2026-10", stale.PeriodID)
	assert.False(t, errors.Is(err, store.ErrPersist))

	got, err := s.FetchAssignments(ctx, week)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
}

func TestStore_PersistFailureIsTyped(t *testing.T) {
	db := SetupTestDB(t)
	s := NewStore(db)
	period, err := planning.Build(mustDate(t, "2026-10-19"), models.GranularityWeek)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.PersistAssignments(ctx, period, []models.Assignment{
		{ID: "a1", WorkerID: "w1", SiteID: "s1", Day: mustDate(t, "2026-10-19"), HoursPlanned: 8, State: models.StateDraft},
	}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrPersist))

	var pe *store.PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "assignments", pe.Op)
}
