package planning

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/models"
)

// Calendar builds period grids. The zero value knows no holidays.
type Calendar struct {
	Holidays           map[time.Time]bool
	NonWorking         map[time.Time]bool
	WeekendsNonWorking bool
}

// NewCalendar indexes holiday and non-working dates
func NewCalendar(holidays, nonWorking []time.Time, weekendsNonWorking bool) Calendar {
	c := Calendar{
		Holidays:           make(map[time.Time]bool, len(holidays)),
		NonWorking:         make(map[time.Time]bool, len(nonWorking)),
		WeekendsNonWorking: weekendsNonWorking,
	}
	for _, d := range holidays {
		c.Holidays[models.DateOf(d)] = true
	}
	for _, d := range nonWorking {
		c.NonWorking[models.DateOf(d)] = true
	}
	return c
}

// Build returns the week or month grid containing ref with a plain calendar
func Build(ref time.Time, g models.Granularity) (models.Period, error) {
	return Calendar{}.Build(ref, g)
}

// Build returns the grid for the period containing ref. Grids always start on a
// Monday; month grids are padded to whole weeks with filler days.
func (c Calendar) Build(ref time.Time, g models.Granularity) (models.Period, error) {
	ref = models.DateOf(ref)

	var p models.Period
	switch g {
	case models.GranularityWeek:
		start := mondayOf(ref)
		year, week := start.ISOWeek()
		p = models.Period{
			ID:    fmt.Sprintf("%04d-W%02d", year, week),
			Start: start,
			End:   start.AddDate(0, 0, 6),
		}
	case models.GranularityMonth:
		first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		p = models.Period{
			ID:    first.Format("2006-01"),
			Start: first,
			End:   last,
		}
	default:
		return models.Period{}, &InvalidPeriodError{Granularity: g}
	}
	p.Granularity = g

	gridStart := mondayOf(p.Start)
	gridEnd := sundayOf(p.End)
	for d := gridStart; !d.After(gridEnd); d = d.AddDate(0, 0, 1) {
		weekend := d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
		p.Days = append(p.Days, models.Day{
			Date:       d,
			Weekend:    weekend,
			Holiday:    c.Holidays[d],
			NonWorking: c.NonWorking[d] || (weekend && c.WeekendsNonWorking),
			Filler:     d.Before(p.Start) || d.After(p.End),
		})
	}
	return p, nil
}

// ParseGranularity validates a granularity from user input
func ParseGranularity(s string) (models.Granularity, error) {
	g := models.Granularity(s)
	if g != models.GranularityWeek && g != models.GranularityMonth {
		return "", &InvalidPeriodError{Granularity: g}
	}
	return g, nil
}

// ParsePeriodID recovers a reference date and granularity from a period ID
// produced by Build ("2026-W43" or "2026-10").
func ParsePeriodID(id string) (time.Time, models.Granularity, error) {
	if year, week, ok := strings.Cut(id, "-W"); ok {
		y, err1 := strconv.Atoi(year)
		w, err2 := strconv.Atoi(week)
		if err1 != nil || err2 != nil || len(year) != 4 || w < 1 || w > 53 {
			return time.Time{}, "", &InvalidPeriodError{Granularity: models.GranularityWeek, ID: id}
		}
		// January 4th always falls in ISO week 1
		monday := mondayOf(time.Date(y, time.January, 4, 0, 0, 0, 0, time.UTC)).AddDate(0, 0, (w-1)*7)
		if gy, gw := monday.ISOWeek(); gy != y || gw != w {
			return time.Time{}, "", &InvalidPeriodError{Granularity: models.GranularityWeek, ID: id}
		}
		return monday, models.GranularityWeek, nil
	}
	first, err := time.Parse("2006-01", id)
	if err != nil {
		return time.Time{}, "", &InvalidPeriodError{Granularity: models.GranularityMonth, ID: id}
	}
	return first, models.GranularityMonth, nil
}

func mondayOf(d time.Time) time.Time {
	// time.Weekday counts from Sunday
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func sundayOf(d time.Time) time.Time {
	return mondayOf(d).AddDate(0, 0, 6)
}
