package planning

import "github.com/arnavshah/site-capacity-api/pkg/models"

// Snapshot is an immutable view of a ledger at one revision. Every accessor
// returns copies.
type Snapshot struct {
	period      models.Period
	assignments []models.Assignment
	revision    uint64
}

// Period returns the period the snapshot was taken from
func (s Snapshot) Period() models.Period {
	p := s.period
	p.Days = append([]models.Day(nil), s.period.Days...)
	return p
}

// Assignments returns every assignment ordered by day, worker, then site
func (s Snapshot) Assignments() []models.Assignment {
	out := make([]models.Assignment, len(s.assignments))
	for i, a := range s.assignments {
		out[i] = cloneAssignment(a)
	}
	return out
}

func (s Snapshot) Len() int { return len(s.assignments) }

func (s Snapshot) Revision() uint64 { return s.revision }

// Lookup finds an assignment by ID
func (s Snapshot) Lookup(id string) (models.Assignment, bool) {
	for _, a := range s.assignments {
		if a.ID == id {
			return cloneAssignment(a), true
		}
	}
	return models.Assignment{}, false
}

// ForCell returns the assignments of one worker-day
func (s Snapshot) ForCell(cell models.Cell) []models.Assignment {
	return s.filter(func(a models.Assignment) bool {
		return a.WorkerID == cell.WorkerID && a.Day.Equal(models.DateOf(cell.Day))
	})
}

// ForSite returns the assignments of one site
func (s Snapshot) ForSite(siteID string) []models.Assignment {
	return s.filter(func(a models.Assignment) bool { return a.SiteID == siteID })
}

// Conflicts lists the conflicting worker-day cells with their reasons
func (s Snapshot) Conflicts() []models.CellConflict {
	return conflictCells(s.assignments)
}

func (s Snapshot) filter(keep func(models.Assignment) bool) []models.Assignment {
	var out []models.Assignment
	for _, a := range s.assignments {
		if keep(a) {
			out = append(out, cloneAssignment(a))
		}
	}
	return out
}
