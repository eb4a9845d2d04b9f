package planning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/models"
)

var (
	// ErrInvalidPeriod indicates an unknown granularity was requested.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrLoad indicates raw assignments broke referential integrity on load.
	ErrLoad = errors.New("load failed")

	// ErrImmutableCell indicates a mutation targeted a locked or validated assignment.
	ErrImmutableCell = errors.New("cell is immutable")

	// ErrInvalidHours indicates planned hours outside (0, 24].
	ErrInvalidHours = errors.New("invalid hours")

	// ErrUnresolvedConflict indicates a period lock was attempted with conflicting cells.
	ErrUnresolvedConflict = errors.New("unresolved conflicts")

	// ErrInvalidTransition indicates a state change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownReference indicates a worker, site or day the loaded period does not know.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrAssignmentNotFound indicates no assignment has the given ID.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrUnauthorized indicates an unlock without the unlock capability.
	ErrUnauthorized = errors.New("unlock not authorized")
)

// InvalidPeriodError reports a granularity or period ID the calendar cannot build.
type InvalidPeriodError struct {
	Granularity models.Granularity
	ID          string
}

func (e *InvalidPeriodError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("invalid %s period id %q", e.Granularity, e.ID)
	}
	return fmt.Sprintf("invalid period granularity %q", e.Granularity)
}

func (e *InvalidPeriodError) Is(target error) bool { return target == ErrInvalidPeriod }

// LoadError reports the raw row that broke integrity.
type LoadError struct {
	AssignmentID string
	Reason       string
}

func (e *LoadError) Error() string {
	if e.AssignmentID == "" {
		return "load: " + e.Reason
	}
	return fmt.Sprintf("load: assignment %s: %s", e.AssignmentID, e.Reason)
}

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// ImmutableCellError reports the frozen assignment a mutation hit.
type ImmutableCellError struct {
	Cell  models.Cell
	State models.AssignmentState
}

func (e *ImmutableCellError) Error() string {
	return fmt.Sprintf("cell %s is %s", e.Cell, e.State)
}

func (e *ImmutableCellError) Is(target error) bool { return target == ErrImmutableCell }

// InvalidHoursError carries the rejected value.
type InvalidHoursError struct {
	Hours float64
}

func (e *InvalidHoursError) Error() string {
	return fmt.Sprintf("hours must be in (0, %g], got %g", MaxDailyHours, e.Hours)
}

func (e *InvalidHoursError) Is(target error) bool { return target == ErrInvalidHours }

// UnresolvedConflictError lists every cell that blocked a period lock.
type UnresolvedConflictError struct {
	PeriodID string
	Cells    []models.CellConflict
}

func (e *UnresolvedConflictError) Error() string {
	cells := make([]string, 0, len(e.Cells))
	for _, c := range e.Cells {
		cells = append(cells, c.Cell.String())
	}
	return fmt.Sprintf("period %s has %d unresolved conflicts: %s", e.PeriodID, len(e.Cells), strings.Join(cells, ", "))
}

func (e *UnresolvedConflictError) Is(target error) bool { return target == ErrUnresolvedConflict }

// InvalidTransitionError reports a refused lifecycle move.
type InvalidTransitionError struct {
	AssignmentID string
	From         models.AssignmentState
	To           models.AssignmentState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("assignment %s cannot move from %s to %s", e.AssignmentID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// UnknownReferenceError names the missing worker, site or day.
type UnknownReferenceError struct {
	Kind string
	ID   string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.ID)
}

func (e *UnknownReferenceError) Is(target error) bool { return target == ErrUnknownReference }

func unknownDay(day time.Time) error {
	return &UnknownReferenceError{Kind: "day", ID: day.Format(models.DateLayout)}
}
