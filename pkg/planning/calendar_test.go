package planning

import (
	"testing"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBuild_Week(t *testing.T) {
	for _, ref := range []string{"2026-10-19", "2026-10-21", "2026-10-25"} {
		p, err := Build(date(ref), models.GranularityWeek)
		require.NoError(t, err)

		assert.Equal(t, "2026-W43", p.ID)
		assert.Equal(t, date("2026-10-19"), p.Start)
		assert.Equal(t, date("2026-10-25"), p.End)
		require.Len(t, p.Days, 7)
		assert.Equal(t, time.Monday, p.Days[0].Date.Weekday())
		for _, d := range p.Days {
			assert.False(t, d.Filler)
		}
		assert.True(t, p.Days[5].Weekend)
		assert.True(t, p.Days[6].Weekend)
	}
}

func TestBuild_WeekAcrossYear(t *testing.T) {
	p, err := Build(date("2027-01-01"), models.GranularityWeek)
	require.NoError(t, err)

	assert.Equal(t, "2026-W53", p.ID)
	assert.Equal(t, date("2026-12-28"), p.Start)
}

func TestBuild_Month(t *testing.T) {
	p, err := Build(date("2026-10-15"), models.GranularityMonth)
	require.NoError(t, err)

	assert.Equal(t, "2026-10", p.ID)
	assert.Equal(t, date("2026-10-01"), p.Start)
	assert.Equal(t, date("2026-10-31"), p.End)

	// Padded from Monday Sep 28 to Sunday Nov 1
	require.Len(t, p.Days, 35)
	assert.Equal(t, time.Monday, p.Days[0].Date.Weekday())
	assert.Equal(t, date("2026-09-28"), p.Days[0].Date)
	assert.Equal(t, date("2026-11-01"), p.Days[34].Date)

	fillers := 0
	for _, d := range p.Days {
		if d.Filler {
			fillers++
			assert.NotEqual(t, time.October, d.Date.Month())
		}
	}
	assert.Equal(t, 4, fillers)
	assert.True(t, p.Plannable(date("2026-10-01")))
	assert.False(t, p.Plannable(date("2026-09-30")))
}

func TestBuild_MonthStartingOnSunday(t *testing.T) {
	p, err := Build(date("2026-02-10"), models.GranularityMonth)
	require.NoError(t, err)

	assert.Equal(t, date("2026-01-26"), p.Days[0].Date)
	assert.Equal(t, time.Monday, p.Days[0].Date.Weekday())
	assert.Equal(t, 0, len(p.Days)%7)
}

func TestBuild_InvalidGranularity(t *testing.T) {
	_, err := Build(date("2026-10-19"), models.Granularity("quarter"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestCalendar_Flags(t *testing.T) {
	cal := NewCalendar(
		[]time.Time{date("2026-10-20")},
		[]time.Time{date("2026-10-21")},
		true,
	)
	p, err := cal.Build(date("2026-10-19"), models.GranularityWeek)
	require.NoError(t, err)

	tue, _ := p.DayOf(date("2026-10-20"))
	wed, _ := p.DayOf(date("2026-10-21"))
	sat, _ := p.DayOf(date("2026-10-24"))
	mon, _ := p.DayOf(date("2026-10-19"))

	assert.True(t, tue.Holiday)
	assert.False(t, tue.NonWorking)
	assert.True(t, wed.NonWorking)
	assert.True(t, sat.NonWorking)
	assert.False(t, mon.NonWorking)
}

func TestParsePeriodID(t *testing.T) {
	ref, g, err := ParsePeriodID("2026-W43")
	require.NoError(t, err)
	assert.Equal(t, models.GranularityWeek, g)
	assert.Equal(t, date("2026-10-19"), ref)

	ref, g, err = ParsePeriodID("2021-W01")
	require.NoError(t, err)
	assert.Equal(t, models.GranularityWeek, g)
	assert.Equal(t, date("2021-01-04"), ref)

	ref, g, err = ParsePeriodID("2026-10")
	require.NoError(t, err)
	assert.Equal(t, models.GranularityMonth, g)
	assert.Equal(t, date("2026-10-01"), ref)

	for _, bad := range []string{"", "2026", "2026-W00", "2025-W53", "26-W10", "2026-13", "yesterday"} {
		_, _, err := ParsePeriodID(bad)
		assert.ErrorIs(t, err, ErrInvalidPeriod, bad)
	}
}

func TestParsePeriodID_RoundTrip(t *testing.T) {
	for _, g := range []models.Granularity{models.GranularityWeek, models.GranularityMonth} {
		p, err := Build(date("2026-12-31"), g)
		require.NoError(t, err)

		ref, parsed, err := ParsePeriodID(p.ID)
		require.NoError(t, err)
		again, err := Build(ref, parsed)
		require.NoError(t, err)
		assert.Equal(t, p.ID, again.ID)
	}
}
