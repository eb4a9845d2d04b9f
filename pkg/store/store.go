package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnavshah/site-capacity-api/pkg/models"
)

// ErrPersist matches every PersistError.
var ErrPersist = errors.New("persist failed")

// PersistError wraps a failure of the persistence collaborator. The engine
// surfaces it verbatim and never retries.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

func (e *PersistError) Is(target error) bool { return target == ErrPersist }

// ErrStale matches every StaleError.
var ErrStale = errors.New("stale write")

// StaleError reports a persist refused because another writer changed the
// same days since the period was read.
type StaleError struct {
	PeriodID string
	Expected uint64
	Actual   uint64
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("period %s changed since it was read (version %d, expected %d)", e.PeriodID, e.Actual, e.Expected)
}

func (e *StaleError) Is(target error) bool { return target == ErrStale }

// PeriodState is what the store knows about the days of a period.
type PeriodState struct {
	// Locked is the period's own stored lock flag.
	Locked bool
	// LockedOverlaps lists the other stored periods that share days with
	// this one and are locked, ordered by ID.
	LockedOverlaps []string
	// Version changes whenever any period sharing days with this one is persisted.
	Version uint64
}

// Store is the assignment store the planning engine reads from and writes to.
// Implementations must be safe for concurrent access.
type Store interface {
	// FetchWorkers returns every known worker with their absences.
	FetchWorkers(ctx context.Context) ([]models.Worker, error)

	// FetchSites returns every known site.
	FetchSites(ctx context.Context) ([]models.Site, error)

	// FetchAssignments returns the stored assignments between the period's
	// start and end, inclusive.
	FetchAssignments(ctx context.Context, period models.Period) ([]models.Assignment, error)

	// FetchPeriodState reports the stored lock flags and version of the
	// period's days. Unknown periods are unlocked at version 0.
	FetchPeriodState(ctx context.Context, period models.Period) (PeriodState, error)

	// PersistAssignments replaces the assignments of the period's date range
	// and stores its lock flag, atomically, and returns the new version.
	// Returns a *StaleError when the version moved past expected, a
	// *PersistError on any other failure.
	PersistAssignments(ctx context.Context, period models.Period, assignments []models.Assignment, expected uint64) (uint64, error)
}
