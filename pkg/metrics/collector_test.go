package metrics

import (
	"errors"
	"testing"

	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector("2026-W43")

	assert.NotNil(t, collector)
	assert.Equal(t, "2026-W43", collector.period)
}

func TestCollector_IncMutation(t *testing.T) {
	collector := NewCollector("test-period-1")

	before := testutil.ToFloat64(MutationsTotal.WithLabelValues("test-period-1", "place"))
	collector.IncMutation("place")
	after := testutil.ToFloat64(MutationsTotal.WithLabelValues("test-period-1", "place"))

	assert.Equal(t, before+1, after)
}

func TestCollector_IncRejected(t *testing.T) {
	collector := NewCollector("test-period-2")

	before := testutil.ToFloat64(RejectedMutationsTotal.WithLabelValues("test-period-2", "hours"))
	collector.IncRejected("hours")
	after := testutil.ToFloat64(RejectedMutationsTotal.WithLabelValues("test-period-2", "hours"))

	assert.Equal(t, before+1, after)
}

func TestCollector_IncLockAttempt(t *testing.T) {
	collector := NewCollector("test-period-3")

	collector.IncLockAttempt(false)
	collector.IncLockAttempt(false)
	collector.IncLockAttempt(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(LockAttemptsTotal.WithLabelValues("test-period-3", "blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(LockAttemptsTotal.WithLabelValues("test-period-3", "locked")))
}

func TestCollector_SetConflicts(t *testing.T) {
	collector := NewCollector("test-period-4")

	collector.SetConflicts(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(ConflictingCells.WithLabelValues("test-period-4")))

	collector.SetConflicts(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(ConflictingCells.WithLabelValues("test-period-4")))
}

func TestCollector_SetRollups(t *testing.T) {
	collector := NewCollector("test-period-5")

	collector.SetRollups([]models.SiteRollup{
		{SiteID: "s1", UtilizationRatio: 0.95, Band: models.BandCritical},
		{SiteID: "s2", Band: models.BandUndefined},
	})

	assert.Equal(t, 0.95, testutil.ToFloat64(SiteUtilization.WithLabelValues("test-period-5", "s1")))
	// undefined bands are not exported
	assert.Equal(t, 1, testutil.CollectAndCount(SiteUtilization))
}

func TestCollector_ObservePersist(t *testing.T) {
	collector := NewCollector("test-period-6")

	collector.ObservePersist(0.01, nil)
	collector.ObservePersist(0.02, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(PersistErrorsTotal.WithLabelValues("test-period-6")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.IncMutation("place")
		collector.IncRejected("place")
		collector.IncLockAttempt(true)
		collector.SetConflicts(1)
		collector.SetRollups(nil)
		collector.ObservePersist(1, nil)
	})
}
