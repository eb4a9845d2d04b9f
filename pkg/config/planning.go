package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/capacity"
	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/arnavshah/site-capacity-api/pkg/planning"
	"gopkg.in/yaml.v3"
)

const defaultPlanningYAML = `# site capacity planning configuration
version: 1

# Utilization ratios (consumed / budget) at which a site changes band.
# A ratio equal to "exceeded" stays critical unless exceeded_inclusive is true.
thresholds:
  warning: 0.70
  critical: 0.90
  exceeded: 1.00
  exceeded_inclusive: false

# Dates flagged on the calendar. Hours planned on non_working days are not consumed.
holidays: []
non_working: []
weekends_non_working: false

default_hours: 8
`

// Planning models planning.yaml
type Planning struct {
	Version            int                 `yaml:"version"`
	Thresholds         capacity.Thresholds `yaml:"thresholds"`
	Holidays           []string            `yaml:"holidays"`
	NonWorking         []string            `yaml:"non_working"`
	WeekendsNonWorking bool                `yaml:"weekends_non_working"`
	DefaultHours       float64             `yaml:"default_hours"`
}

// DefaultPlanning returns the built-in planning configuration
func DefaultPlanning() Planning {
	p, err := ParsePlanning([]byte(defaultPlanningYAML))
	if err != nil {
		panic(err)
	}
	return p
}

// LoadPlanning reads the planning file at path. A missing file yields the defaults.
func LoadPlanning(path string) (Planning, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultPlanning(), nil
	}
	if err != nil {
		return Planning{}, fmt.Errorf("read planning config: %w", err)
	}
	return ParsePlanning(data)
}

// ParsePlanning decodes and validates a planning document. Keys left out keep
// their default value.
func ParsePlanning(data []byte) (Planning, error) {
	p := Planning{
		Version:      1,
		Thresholds:   capacity.DefaultThresholds(),
		DefaultHours: 8,
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Planning{}, fmt.Errorf("parse planning config: %w", err)
	}
	if err := p.Thresholds.Validate(); err != nil {
		return Planning{}, fmt.Errorf("planning config: %w", err)
	}
	if p.DefaultHours <= 0 || p.DefaultHours > planning.MaxDailyHours {
		return Planning{}, fmt.Errorf("planning config: default_hours must be in (0, %g]", planning.MaxDailyHours)
	}
	if _, err := parseDates(p.Holidays); err != nil {
		return Planning{}, fmt.Errorf("planning config: holidays: %w", err)
	}
	if _, err := parseDates(p.NonWorking); err != nil {
		return Planning{}, fmt.Errorf("planning config: non_working: %w", err)
	}
	return p, nil
}

// Calendar builds the planning calendar described by the config
func (p Planning) Calendar() planning.Calendar {
	holidays, _ := parseDates(p.Holidays)
	nonWorking, _ := parseDates(p.NonWorking)
	return planning.NewCalendar(holidays, nonWorking, p.WeekendsNonWorking)
}

func parseDates(values []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		d, err := models.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q", v)
		}
		out = append(out, d)
	}
	return out, nil
}
