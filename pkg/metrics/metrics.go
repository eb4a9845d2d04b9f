package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MutationsTotal tracks successful ledger mutations.
var MutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "site_capacity_mutations_total",
		Help: "Total successful ledger mutations",
	},
	[]string{"period", "op"},
)

// RejectedMutationsTotal tracks mutations refused by the ledger.
var RejectedMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "site_capacity_rejected_mutations_total",
		Help: "Total ledger mutations rejected with an error",
	},
	[]string{"period", "op"},
)

// LockAttemptsTotal tracks period lock attempts by result.
var LockAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "site_capacity_lock_attempts_total",
		Help: "Total period lock attempts",
	},
	[]string{"period", "result"},
)

// ConflictingCells tracks the current number of conflicting worker-day cells.
var ConflictingCells = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "site_capacity_conflicting_cells",
		Help: "Current conflicting worker-day cells",
	},
	[]string{"period"},
)

// SiteUtilization tracks consumed/budget per site.
var SiteUtilization = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "site_capacity_site_utilization_ratio",
		Help: "Consumed hours over budgeted hours per site",
	},
	[]string{"period", "site"},
)

// PersistDuration tracks time spent persisting a period.
var PersistDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "site_capacity_persist_duration_seconds",
		Help:    "Time spent persisting a period",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"period"},
)

// PersistErrorsTotal tracks failed persist attempts.
var PersistErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "site_capacity_persist_errors_total",
		Help: "Total failed persist attempts",
	},
	[]string{"period"},
)
