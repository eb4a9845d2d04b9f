package planning

import (
	"sort"

	"github.com/arnavshah/site-capacity-api/pkg/models"
)

// detect re-evaluates the conflict state of the given cells only. Frozen
// assignments keep their state; draft and conflicting ones move between the two.
func (l *Ledger) detect(keys ...cellKey) {
	for _, key := range keys {
		ids := l.cells[key]
		doubleBooked := len(ids) > 1 && !l.overrides[key]
		worker := l.workers[key.worker]

		for _, id := range ids {
			a := l.assignments[id]
			if a.State.Frozen() {
				a.Conflicts = nil
				continue
			}

			var reasons []models.ConflictReason
			if doubleBooked {
				reasons = append(reasons, models.ConflictDoubleBooking)
			}
			if worker.AbsentOn(a.Day) {
				reasons = append(reasons, models.ConflictAbsence)
			}

			a.Conflicts = reasons
			if len(reasons) > 0 {
				a.State = models.StateConflicting
			} else {
				a.State = models.StateDraft
			}
		}
	}
}

// conflictCells groups conflicting assignments by worker-day, sorted by day
// then worker.
func conflictCells(list []models.Assignment) []models.CellConflict {
	byCell := make(map[cellKey]*models.CellConflict)
	var order []cellKey
	for _, a := range list {
		if a.State != models.StateConflicting {
			continue
		}
		key := keyOf(a.WorkerID, a.Day)
		cc, ok := byCell[key]
		if !ok {
			cc = &models.CellConflict{Cell: a.Cell()}
			byCell[key] = cc
			order = append(order, key)
		}
		for _, r := range a.Conflicts {
			if !hasReason(cc.Reasons, r) {
				cc.Reasons = append(cc.Reasons, r)
			}
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].day != order[j].day {
			return order[i].day < order[j].day
		}
		return order[i].worker < order[j].worker
	})
	out := make([]models.CellConflict, 0, len(order))
	for _, key := range order {
		cc := byCell[key]
		sort.Slice(cc.Reasons, func(i, j int) bool { return cc.Reasons[i] < cc.Reasons[j] })
		out = append(out, *cc)
	}
	return out
}

func hasReason(rs []models.ConflictReason, r models.ConflictReason) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}
