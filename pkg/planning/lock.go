package planning

import (
	"fmt"
	"sort"

	"github.com/arnavshah/site-capacity-api/pkg/models"
)

// LockPeriod freezes every draft assignment and marks the period locked.
// Nothing changes if any cell is still conflicting or holds more than one
// assignment.
func (l *Ledger) LockPeriod() error {
	// Phase 1: decide.
	if cells := l.lockBlockers(); len(cells) > 0 {
		return &UnresolvedConflictError{PeriodID: l.period.ID, Cells: cells}
	}

	// Phase 2: commit.
	var changed []models.Cell
	for _, a := range l.assignments {
		if a.State == models.StateDraft {
			a.State = models.StateLocked
			changed = append(changed, a.Cell())
		}
	}
	l.period.Locked = true
	l.commit(ChangeLock, changed)
	return nil
}

// Lock freezes one draft assignment without locking the period.
func (l *Ledger) Lock(id string) (models.Assignment, error) {
	a, err := l.get(id)
	if err != nil {
		return models.Assignment{}, err
	}
	if a.State != models.StateDraft {
		return models.Assignment{}, &InvalidTransitionError{AssignmentID: id, From: a.State, To: models.StateLocked}
	}
	// A cell holds at most one frozen assignment, override or not.
	for _, otherID := range l.cells[keyOf(a.WorkerID, a.Day)] {
		if other := l.assignments[otherID]; other.ID != id && other.State.Frozen() {
			return models.Assignment{}, &ImmutableCellError{Cell: other.Cell(), State: other.State}
		}
	}
	a.State = models.StateLocked
	l.commit(ChangeLock, []models.Cell{a.Cell()})
	return cloneAssignment(*a), nil
}

// Validate certifies locked assignments. Either all of ids move to validated
// or none do.
func (l *Ledger) Validate(ids ...string) error {
	targets := make([]*models.Assignment, 0, len(ids))
	for _, id := range ids {
		a, err := l.get(id)
		if err != nil {
			return err
		}
		if a.State != models.StateLocked {
			return &InvalidTransitionError{AssignmentID: id, From: a.State, To: models.StateValidated}
		}
		targets = append(targets, a)
	}
	if len(targets) == 0 {
		return nil
	}

	cells := make([]models.Cell, 0, len(targets))
	for _, a := range targets {
		a.State = models.StateValidated
		cells = append(cells, a.Cell())
	}
	l.commit(ChangeValidate, cells)
	return nil
}

// ValidatePeriod certifies every locked assignment of the period and returns how many moved.
func (l *Ledger) ValidatePeriod() (int, error) {
	var ids []string
	for _, a := range l.Snapshot().assignments {
		if a.State == models.StateLocked {
			ids = append(ids, a.ID)
		}
	}
	return len(ids), l.Validate(ids...)
}

// Unlock returns one locked assignment to draft. Validated assignments and the
// assignments of a locked period can only be released through UnlockPeriod.
func (l *Ledger) Unlock(id string, actor Actor) (models.Assignment, error) {
	if !actor.CanUnlock {
		return models.Assignment{}, ErrUnauthorized
	}
	a, err := l.get(id)
	if err != nil {
		return models.Assignment{}, err
	}
	if l.period.Locked {
		return models.Assignment{}, &ImmutableCellError{Cell: a.Cell(), State: a.State}
	}
	if a.State != models.StateLocked {
		return models.Assignment{}, &InvalidTransitionError{AssignmentID: id, From: a.State, To: models.StateDraft}
	}
	a.State = models.StateDraft

	l.detect(keyOf(a.WorkerID, a.Day))
	l.record("unlock_assignment", actor, 1)
	l.commit(ChangeUnlock, []models.Cell{a.Cell()})
	return cloneAssignment(*a), nil
}

// UnlockPeriod reverts every locked or validated assignment to draft and clears
// the period lock. The actor must hold the unlock capability.
func (l *Ledger) UnlockPeriod(actor Actor) error {
	if !actor.CanUnlock {
		return fmt.Errorf("%w: period %s", ErrUnauthorized, l.period.ID)
	}

	var changed []models.Cell
	keys := make([]cellKey, 0)
	for _, a := range l.assignments {
		if a.State.Frozen() {
			a.State = models.StateDraft
			changed = append(changed, a.Cell())
			keys = append(keys, keyOf(a.WorkerID, a.Day))
		}
	}
	l.period.Locked = false

	l.detect(keys...)
	l.record("unlock_period", actor, len(changed))
	l.commit(ChangeUnlock, changed)
	return nil
}

// lockBlockers lists every conflicting cell plus the overridden double
// bookings: the override silences the flag but two frozen assignments can
// never share a cell.
func (l *Ledger) lockBlockers() []models.CellConflict {
	cells := conflictCells(l.Snapshot().assignments)
	index := make(map[cellKey]int, len(cells))
	for i, cc := range cells {
		index[keyOf(cc.WorkerID, cc.Day)] = i
	}

	for key, ids := range l.cells {
		if len(ids) < 2 {
			continue
		}
		if i, ok := index[key]; ok {
			if !hasReason(cells[i].Reasons, models.ConflictDoubleBooking) {
				cells[i].Reasons = append(cells[i].Reasons, models.ConflictDoubleBooking)
				sort.Slice(cells[i].Reasons, func(a, b int) bool { return cells[i].Reasons[a] < cells[i].Reasons[b] })
			}
			continue
		}
		cell := l.assignments[ids[0]].Cell()
		cells = append(cells, models.CellConflict{Cell: cell, Reasons: []models.ConflictReason{models.ConflictDoubleBooking}})
	}

	sort.Slice(cells, func(i, j int) bool {
		if !cells[i].Day.Equal(cells[j].Day) {
			return cells[i].Day.Before(cells[j].Day)
		}
		return cells[i].WorkerID < cells[j].WorkerID
	})
	return cells
}

func (l *Ledger) record(action string, actor Actor, count int) {
	if l.audit == nil {
		return
	}
	l.audit.Record(AuditEvent{
		Action:   action,
		PeriodID: l.period.ID,
		Actor:    actor.ID,
		Count:    count,
		At:       l.now(),
	})
}
