package metrics

import "github.com/arnavshah/site-capacity-api/pkg/models"

// Collector wraps metrics and provides helper methods with the period label pre-filled.
// A nil Collector records nothing.
type Collector struct {
	period string
}

// NewCollector creates a new Collector for the given period.
func NewCollector(periodID string) *Collector {
	return &Collector{period: periodID}
}

// IncMutation increments the mutation counter for op.
func (c *Collector) IncMutation(op string) {
	if c == nil {
		return
	}
	MutationsTotal.WithLabelValues(c.period, op).Inc()
}

// IncRejected increments the rejected mutation counter for op.
func (c *Collector) IncRejected(op string) {
	if c == nil {
		return
	}
	RejectedMutationsTotal.WithLabelValues(c.period, op).Inc()
}

// IncLockAttempt increments the lock attempts counter.
func (c *Collector) IncLockAttempt(ok bool) {
	if c == nil {
		return
	}
	result := "locked"
	if !ok {
		result = "blocked"
	}
	LockAttemptsTotal.WithLabelValues(c.period, result).Inc()
}

// SetConflicts sets the conflicting cells gauge.
func (c *Collector) SetConflicts(count int) {
	if c == nil {
		return
	}
	ConflictingCells.WithLabelValues(c.period).Set(float64(count))
}

// SetRollups sets the utilization gauge of every site with a budget.
func (c *Collector) SetRollups(rollups []models.SiteRollup) {
	if c == nil {
		return
	}
	for _, r := range rollups {
		if r.Band == models.BandUndefined {
			continue
		}
		SiteUtilization.WithLabelValues(c.period, r.SiteID).Set(r.UtilizationRatio)
	}
}

// ObservePersist records a persist duration and its outcome.
func (c *Collector) ObservePersist(seconds float64, err error) {
	if c == nil {
		return
	}
	PersistDuration.WithLabelValues(c.period).Observe(seconds)
	if err != nil {
		PersistErrorsTotal.WithLabelValues(c.period).Inc()
	}
}
