package models

import "time"

// DateLayout is the wire format used for calendar days.
const DateLayout = "2006-01-02"

// Role is a worker's trade on site
type Role string

const (
	RoleSiteLead  Role = "site_lead"
	RoleCrewLead  Role = "crew_lead"
	RoleOperator  Role = "operator"
	RoleSafety    Role = "safety"
	RoleLogistics Role = "logistics"
	RoleInterim   Role = "interim"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSiteLead, RoleCrewLead, RoleOperator, RoleSafety, RoleLogistics, RoleInterim:
		return true
	}
	return false
}

// AbsenceKind classifies why a worker is away
type AbsenceKind string

const (
	AbsenceVacation  AbsenceKind = "vacation"
	AbsenceSickLeave AbsenceKind = "sick_leave"
	AbsenceDayOff    AbsenceKind = "day_off"
)

// Absence is an inclusive range of days a worker cannot be planned
type Absence struct {
	Start time.Time   `json:"start"`
	End   time.Time   `json:"end"`
	Kind  AbsenceKind `json:"kind"`
}

// Covers reports whether day falls within the absence
func (a Absence) Covers(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(a.Start)) && !d.After(DateOf(a.End))
}

// Worker represents a person that can be planned on a site
type Worker struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	OnLeave     bool      `json:"on_leave"`
	Unavailable bool      `json:"unavailable"`
	Absences    []Absence `json:"absences,omitempty"`
}

// AbsentOn reports whether the worker cannot work on day
func (w Worker) AbsentOn(day time.Time) bool {
	if w.OnLeave || w.Unavailable {
		return true
	}
	for _, a := range w.Absences {
		if a.Covers(day) {
			return true
		}
	}
	return false
}

// SiteStatus is the lifecycle status of a construction site
type SiteStatus string

const (
	SiteActive SiteStatus = "active"
	SiteClosed SiteStatus = "closed"
)

// Site represents a construction site with an hours budget
type Site struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Address       string     `json:"address,omitempty"`
	BudgetedHours float64    `json:"budgeted_hours"`
	ConsumedHours float64    `json:"consumed_hours"`
	Status        SiteStatus `json:"status"`
}

// Day is one calendar day of a period grid
type Day struct {
	Date       time.Time `json:"date"`
	Weekend    bool      `json:"weekend,omitempty"`
	Holiday    bool      `json:"holiday,omitempty"`
	NonWorking bool      `json:"non_working,omitempty"`
	// Filler days pad a month grid to whole weeks and belong to the neighbouring month.
	Filler bool `json:"filler,omitempty"`
}

// Granularity selects the length of a planning period
type Granularity string

const (
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Period is an ordered run of days planned together
type Period struct {
	ID          string      `json:"id"`
	Granularity Granularity `json:"granularity"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Days        []Day       `json:"days"`
	Locked      bool        `json:"locked"`
}

// DayOf returns the grid day for date, if the period contains it
func (p Period) DayOf(date time.Time) (Day, bool) {
	d := DateOf(date)
	for _, day := range p.Days {
		if day.Date.Equal(d) {
			return day, true
		}
	}
	return Day{}, false
}

// Overlaps reports whether the two periods share at least one day
func (p Period) Overlaps(other Period) bool {
	return !p.End.Before(other.Start) && !other.End.Before(p.Start)
}

// Plannable reports whether assignments may be placed on date
func (p Period) Plannable(date time.Time) bool {
	day, ok := p.DayOf(date)
	return ok && !day.Filler
}

// AssignmentState is the lifecycle state of an assignment
type AssignmentState string

const (
	StateDraft       AssignmentState = "draft"
	StateConflicting AssignmentState = "conflicting"
	StateLocked      AssignmentState = "locked"
	StateValidated   AssignmentState = "validated"
)

// Valid reports whether s is a known state
func (s AssignmentState) Valid() bool {
	switch s {
	case StateDraft, StateConflicting, StateLocked, StateValidated:
		return true
	}
	return false
}

// Frozen reports whether the state can only change through an unlock
func (s AssignmentState) Frozen() bool {
	return s == StateLocked || s == StateValidated
}

// ConflictReason explains why an assignment is conflicting
type ConflictReason string

const (
	ConflictDoubleBooking ConflictReason = "double_booking"
	ConflictAbsence       ConflictReason = "absence"
)

// Assignment places a worker on a site for one day
type Assignment struct {
	ID           string           `json:"id"`
	WorkerID     string           `json:"worker_id"`
	SiteID       string           `json:"site_id"`
	Day          time.Time        `json:"day"`
	HoursPlanned float64          `json:"hours_planned"`
	State        AssignmentState  `json:"state"`
	Conflicts    []ConflictReason `json:"conflicts,omitempty"`
}

// Cell returns the worker-day slot of the assignment
func (a Assignment) Cell() Cell {
	return Cell{WorkerID: a.WorkerID, Day: DateOf(a.Day)}
}

// Cell identifies one worker on one day
type Cell struct {
	WorkerID string    `json:"worker_id"`
	Day      time.Time `json:"day"`
}

func (c Cell) String() string {
	return c.WorkerID + "@" + c.Day.Format(DateLayout)
}

// CellConflict lists the reasons a cell blocks a period lock
type CellConflict struct {
	Cell
	Reasons []ConflictReason `json:"reasons"`
}

// Band is a discrete utilization classification
type Band string

const (
	BandNormal    Band = "normal"
	BandWarning   Band = "warning"
	BandCritical  Band = "critical"
	BandExceeded  Band = "exceeded"
	BandUndefined Band = "undefined"
)

// Alerting reports whether the band should be surfaced to an approver
func (b Band) Alerting() bool {
	return b == BandCritical || b == BandExceeded
}

// SiteRollup aggregates a site's hours against its budget
type SiteRollup struct {
	SiteID           string  `json:"site_id"`
	SiteName         string  `json:"site_name"`
	BudgetedHours    float64 `json:"budgeted_hours"`
	ConsumedHours    float64 `json:"consumed_hours"`
	PlannedHours     float64 `json:"planned_hours"`
	UtilizationRatio float64 `json:"utilization_ratio"`
	Band             Band    `json:"band"`
}

// DateOf truncates t to midnight UTC of its calendar date
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD day
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
