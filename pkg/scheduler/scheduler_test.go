package scheduler

import (
	"testing"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/arnavshah/site-capacity-api/pkg/planning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func workers() []models.Worker {
	return []models.Worker{
		{ID: "w1", Name: "Alex", Role: models.RoleOperator},
		{ID: "w2", Name: "Sam", Role: models.RoleOperator},
		{ID: "w3", Name: "Jo", Role: models.RoleSafety},
		{ID: "w4", Name: "Rin", Role: models.RoleOperator, OnLeave: true},
	}
}

func ledger(t *testing.T) *planning.Ledger {
	t.Helper()
	period, err := planning.Build(mustDate("2026-10-19"), models.GranularityWeek)
	require.NoError(t, err)

	l := planning.NewLedger()
	sites := []models.Site{{ID: "s1", BudgetedHours: 100}}
	require.NoError(t, l.Load(period, workers(), sites, nil))
	return l
}

func TestAvailable_LeastLoadedFirst(t *testing.T) {
	l := ledger(t)
	_, err := l.Place("w1", "s1", mustDate("2026-10-19"), 8)
	require.NoError(t, err)
	_, err = l.Place("w2", "s1", mustDate("2026-10-19"), 2)
	require.NoError(t, err)

	avail, err := Available(l.Snapshot(), workers(), mustDate("2026-10-20"), "")
	require.NoError(t, err)

	require.Len(t, avail.Candidates, 3)
	assert.Equal(t, "w3", avail.Candidates[0].WorkerID)
	assert.Equal(t, "w2", avail.Candidates[1].WorkerID)
	assert.Equal(t, 2.0, avail.Candidates[1].PlannedHours)
	assert.Equal(t, "w1", avail.Candidates[2].WorkerID)
	assert.Empty(t, avail.Reasons)
}

func TestAvailable_ExcludesBusyAndAbsent(t *testing.T) {
	l := ledger(t)
	_, err := l.Place("w1", "s1", mustDate("2026-10-19"), 8)
	require.NoError(t, err)

	avail, err := Available(l.Snapshot(), workers(), mustDate("2026-10-19"), models.RoleOperator)
	require.NoError(t, err)

	require.Len(t, avail.Candidates, 1)
	assert.Equal(t, "w2", avail.Candidates[0].WorkerID)
}

func TestAvailable_ExplainsEmptyResult(t *testing.T) {
	l := ledger(t)
	_, err := l.Place("w3", "s1", mustDate("2026-10-19"), 8)
	require.NoError(t, err)

	avail, err := Available(l.Snapshot(), workers(), mustDate("2026-10-19"), models.RoleSafety)
	require.NoError(t, err)

	assert.Empty(t, avail.Candidates)
	assert.Contains(t, avail.Reasons, "1 workers were already planned")
	assert.Contains(t, avail.Reasons, "3 workers had another role")

	avail, err = Available(l.Snapshot(), nil, mustDate("2026-10-19"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"no workers loaded"}, avail.Reasons)
}

func TestAvailable_DayOutsidePeriod(t *testing.T) {
	l := ledger(t)

	_, err := Available(l.Snapshot(), workers(), mustDate("2026-11-02"), "")
	assert.ErrorIs(t, err, planning.ErrUnknownReference)
}

func TestFairnessScore(t *testing.T) {
	ws := workers()[:2]

	assert.Equal(t, 100.0, FairnessScore(Workload{}, ws), "everyone at zero is fair")
	assert.Equal(t, 100.0, FairnessScore(Workload{"w1": 8, "w2": 8}, ws))
	assert.Equal(t, 0.0, FairnessScore(Workload{"w1": 16}, ws))
	assert.InDelta(t, 66.67, FairnessScore(Workload{"w1": 8, "w2": 4}, ws), 0.01)
	assert.Equal(t, 100.0, FairnessScore(Workload{"w1": 8}, nil))
}

func TestWorkloadOf(t *testing.T) {
	l := ledger(t)
	_, err := l.Place("w1", "s1", mustDate("2026-10-19"), 8)
	require.NoError(t, err)
	_, err = l.Place("w1", "s1", mustDate("2026-10-20"), 6)
	require.NoError(t, err)

	load := WorkloadOf(l.Snapshot())
	assert.Equal(t, 14.0, load["w1"])
	assert.Zero(t, load["w2"])
}
