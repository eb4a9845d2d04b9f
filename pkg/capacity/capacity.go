package capacity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/arnavshah/site-capacity-api/pkg/planning"
)

// Thresholds are the utilization ratios at which a site changes band
type Thresholds struct {
	Warning  float64 `yaml:"warning" json:"warning"`
	Critical float64 `yaml:"critical" json:"critical"`
	Exceeded float64 `yaml:"exceeded" json:"exceeded"`
	// ExceededInclusive puts a ratio equal to Exceeded in the exceeded band
	// instead of critical.
	ExceededInclusive bool `yaml:"exceeded_inclusive" json:"exceeded_inclusive"`
}

// DefaultThresholds returns 70% / 90% / 100% with 100% itself still critical
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 0.70, Critical: 0.90, Exceeded: 1.00}
}

// Validate checks the thresholds are non-negative and increasing
func (t Thresholds) Validate() error {
	if t.Warning < 0 || t.Critical < 0 || t.Exceeded < 0 {
		return errors.New("thresholds must not be negative")
	}
	if !(t.Warning < t.Critical && t.Critical <= t.Exceeded) {
		return fmt.Errorf("thresholds must increase: warning %g, critical %g, exceeded %g", t.Warning, t.Critical, t.Exceeded)
	}
	return nil
}

// Classify maps a utilization ratio to its band
func (t Thresholds) Classify(ratio float64) models.Band {
	switch {
	case ratio > t.Exceeded, t.ExceededInclusive && ratio == t.Exceeded:
		return models.BandExceeded
	case ratio >= t.Critical:
		return models.BandCritical
	case ratio >= t.Warning:
		return models.BandWarning
	default:
		return models.BandNormal
	}
}

// Aggregator derives site rollups from ledger snapshots. It holds no hours of
// its own.
type Aggregator struct {
	Thresholds Thresholds
}

// NewAggregator creates an aggregator with the given thresholds
func NewAggregator(t Thresholds) *Aggregator {
	return &Aggregator{Thresholds: t}
}

// ComputeRollups sums the locked and validated hours of each site and classifies
// them against the site's budget. Hours on non-working days are not consumed.
// Rollups are ordered by site ID.
func (g *Aggregator) ComputeRollups(sites []models.Site, snap planning.Snapshot) []models.SiteRollup {
	nonWorking := make(map[string]bool)
	for _, d := range snap.Period().Days {
		if d.NonWorking {
			nonWorking[d.Date.Format(models.DateLayout)] = true
		}
	}

	consumed := make(map[string]float64, len(sites))
	planned := make(map[string]float64, len(sites))
	for _, a := range snap.Assignments() {
		if nonWorking[a.Day.Format(models.DateLayout)] {
			continue
		}
		planned[a.SiteID] += a.HoursPlanned
		if a.State.Frozen() {
			consumed[a.SiteID] += a.HoursPlanned
		}
	}

	rollups := make([]models.SiteRollup, 0, len(sites))
	for _, s := range sites {
		r := models.SiteRollup{
			SiteID:        s.ID,
			SiteName:      s.Name,
			BudgetedHours: s.BudgetedHours,
			ConsumedHours: consumed[s.ID],
			PlannedHours:  planned[s.ID],
		}
		if s.BudgetedHours <= 0 {
			r.Band = models.BandUndefined
		} else {
			r.UtilizationRatio = r.ConsumedHours / s.BudgetedHours
			r.Band = g.Thresholds.Classify(r.UtilizationRatio)
		}
		rollups = append(rollups, r)
	}
	sort.Slice(rollups, func(i, j int) bool { return rollups[i].SiteID < rollups[j].SiteID })
	return rollups
}

// WithConsumed returns sites with ConsumedHours filled from rollups
func WithConsumed(sites []models.Site, rollups []models.SiteRollup) []models.Site {
	byID := make(map[string]float64, len(rollups))
	for _, r := range rollups {
		byID[r.SiteID] = r.ConsumedHours
	}
	out := make([]models.Site, len(sites))
	for i, s := range sites {
		s.ConsumedHours = byID[s.ID]
		out[i] = s
	}
	return out
}

// Summary totals a set of rollups
type Summary struct {
	Bands         map[models.Band]int `json:"bands"`
	ConsumedHours float64             `json:"consumed_hours"`
	BudgetedHours float64             `json:"budgeted_hours"`
	Alerting      []string            `json:"alerting,omitempty"`
}

// Summarize counts sites per band and lists the alerting ones
func Summarize(rollups []models.SiteRollup) Summary {
	s := Summary{Bands: make(map[models.Band]int)}
	for _, r := range rollups {
		s.Bands[r.Band]++
		s.ConsumedHours += r.ConsumedHours
		s.BudgetedHours += r.BudgetedHours
		if r.Band.Alerting() {
			s.Alerting = append(s.Alerting, r.SiteID)
		}
	}
	return s
}
