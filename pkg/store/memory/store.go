package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/arnavshah/site-capacity-api/pkg/store"
)

// Store is an in-memory implementation of store.Store for tests and demo mode.
// It provides thread-safe access using a sync.RWMutex.
type Store struct {
	mu          sync.RWMutex
	workers     map[string]models.Worker
	sites       map[string]models.Site
	assignments map[string]models.Assignment // assignmentID -> assignment
	periods     map[string]periodRecord      // periodID -> stored range

	// FailPersist, when set, is returned wrapped in a PersistError by PersistAssignments.
	FailPersist error
}

type periodRecord struct {
	start, end time.Time
	locked     bool
	version    uint64
}

func (r periodRecord) overlaps(period models.Period) bool {
	return !r.end.Before(period.Start) && !period.End.Before(r.start)
}

// New creates a new in-memory store with initialized maps.
func New() *Store {
	return &Store{
		workers:     make(map[string]models.Worker),
		sites:       make(map[string]models.Site),
		assignments: make(map[string]models.Assignment),
		periods:     make(map[string]periodRecord),
	}
}

// PutWorkers adds or replaces workers.
func (s *Store) PutWorkers(workers ...models.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range workers {
		s.workers[w.ID] = w
	}
}

// PutSites adds or replaces sites.
func (s *Store) PutSites(sites ...models.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, site := range sites {
		s.sites[site.ID] = site
	}
}

// PutAssignments adds or replaces raw assignments.
func (s *Store) PutAssignments(assignments ...models.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range assignments {
		s.assignments[a.ID] = a
	}
}

// FetchWorkers returns every worker ordered by ID.
func (s *Store) FetchWorkers(ctx context.Context) ([]models.Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FetchSites returns every site ordered by ID.
func (s *Store) FetchSites(ctx context.Context) ([]models.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Site, 0, len(s.sites))
	for _, site := range s.sites {
		out = append(out, site)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FetchAssignments returns the assignments inside the period's range.
func (s *Store) FetchAssignments(ctx context.Context, period models.Period) ([]models.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Assignment
	for _, a := range s.assignments {
		if inRange(period, a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FetchPeriodState reports the lock flags and version of the period's days.
func (s *Store) FetchPeriodState(ctx context.Context, period models.Period) (store.PeriodState, error) {
	if err := ctx.Err(); err != nil {
		return store.PeriodState{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := store.PeriodState{Locked: s.periods[period.ID].locked, Version: s.versionOf(period)}
	for id, r := range s.periods {
		if id != period.ID && r.locked && r.overlaps(period) {
			state.LockedOverlaps = append(state.LockedOverlaps, id)
		}
	}
	sort.Strings(state.LockedOverlaps)
	return state, nil
}

// PersistAssignments replaces the period's assignments and lock flag.
func (s *Store) PersistAssignments(ctx context.Context, period models.Period, assignments []models.Assignment, expected uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &store.PersistError{Op: "assignments", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailPersist != nil {
		return 0, &store.PersistError{Op: "assignments", Err: s.FailPersist}
	}
	current := s.versionOf(period)
	if current != expected {
		return 0, &store.StaleError{PeriodID: period.ID, Expected: expected, Actual: current}
	}

	for id, a := range s.assignments {
		if inRange(period, a) {
			delete(s.assignments, id)
		}
	}
	for _, a := range assignments {
		a.Conflicts = nil
		s.assignments[a.ID] = a
	}
	s.periods[period.ID] = periodRecord{start: period.Start, end: period.End, locked: period.Locked, version: current + 1}
	return current + 1, nil
}

// versionOf is the highest version stored for any period sharing days with period.
func (s *Store) versionOf(period models.Period) uint64 {
	var v uint64
	for _, r := range s.periods {
		if r.overlaps(period) && r.version > v {
			v = r.version
		}
	}
	return v
}

func inRange(period models.Period, a models.Assignment) bool {
	d := models.DateOf(a.Day)
	return !d.Before(period.Start) && !d.After(period.End)
}
