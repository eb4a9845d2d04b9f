package planner

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/capacity"
	"github.com/arnavshah/site-capacity-api/pkg/metrics"
	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/arnavshah/site-capacity-api/pkg/notify"
	"github.com/arnavshah/site-capacity-api/pkg/planning"
	"github.com/arnavshah/site-capacity-api/pkg/scheduler"
	"github.com/arnavshah/site-capacity-api/pkg/store"
)

// Session serializes access to one period's ledger: mutations take the write
// lock, reads the read lock. Persistence runs outside the lock on a snapshot.
type Session struct {
	mu         sync.RWMutex
	ledger     *planning.Ledger
	store      store.Store
	aggregator *capacity.Aggregator
	notifier   notify.Notifier
	metrics    *metrics.Collector
	persisted  uint64
	alerting   map[string]bool

	// flushMu keeps one flush in flight so version always matches the store
	flushMu sync.Mutex
	// version is the stored range version the ledger was loaded or last flushed at
	version uint64
}

func newSession(l *planning.Ledger, st store.Store, agg *capacity.Aggregator, n notify.Notifier, version uint64) *Session {
	s := &Session{
		ledger:     l,
		store:      st,
		aggregator: agg,
		notifier:   n,
		persisted:  l.Revision(),
		alerting:   make(map[string]bool),
		version:    version,
	}
	for _, r := range agg.ComputeRollups(l.Sites(), l.Snapshot()) {
		if r.Band.Alerting() {
			s.alerting[r.SiteID] = true
		}
	}
	return s
}

// Period returns the session's period
func (s *Session) Period() models.Period {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Period()
}

// Snapshot returns a read-only view of the ledger
func (s *Session) Snapshot() planning.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Snapshot()
}

// Workers returns the reference workers of the period
func (s *Session) Workers() []models.Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Workers()
}

// Sites returns the reference sites with their consumed hours filled in
func (s *Session) Sites() []models.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sites := s.ledger.Sites()
	return capacity.WithConsumed(sites, s.aggregator.ComputeRollups(sites, s.ledger.Snapshot()))
}

// Rollups recomputes the site rollups from the current ledger state
func (s *Session) Rollups() []models.SiteRollup {
	s.mu.RLock()
	rollups := s.aggregator.ComputeRollups(s.ledger.Sites(), s.ledger.Snapshot())
	s.mu.RUnlock()

	s.metrics.SetRollups(rollups)
	return rollups
}

// Subscribe registers a change hook. Hooks run while the session is locked and
// must not call back into it.
func (s *Session) Subscribe(fn func(planning.Change)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unsub := s.ledger.Subscribe(fn)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		unsub()
	}
}

// Place creates or updates the draft assignment of a worker on a site and day
func (s *Session) Place(workerID, siteID string, day time.Time, hours float64) (models.Assignment, error) {
	var out models.Assignment
	err := s.mutate("place", func(l *planning.Ledger) (err error) {
		out, err = l.Place(workerID, siteID, day, hours)
		return err
	})
	return out, err
}

// Remove clears a worker-day cell
func (s *Session) Remove(workerID string, day time.Time) error {
	return s.mutate("remove", func(l *planning.Ledger) error {
		return l.Remove(workerID, day)
	})
}

// RemoveAssignment deletes one assignment
func (s *Session) RemoveAssignment(id string) error {
	return s.mutate("remove", func(l *planning.Ledger) error {
		return l.RemoveAssignment(id)
	})
}

// Update moves an assignment and sets its hours in one step. Every check runs
// before anything changes.
func (s *Session) Update(id, siteID string, day time.Time, hours float64) (models.Assignment, error) {
	var out models.Assignment
	err := s.mutate("update", func(l *planning.Ledger) (err error) {
		out, err = l.Update(id, siteID, day, hours)
		return err
	})
	return out, err
}

// AllowDoubleBooking toggles the double-booking override of a cell
func (s *Session) AllowDoubleBooking(workerID string, day time.Time, allowed bool) error {
	return s.mutate("override", func(l *planning.Ledger) error {
		return l.AllowDoubleBooking(workerID, day, allowed)
	})
}

// Lock freezes one assignment
func (s *Session) Lock(ctx context.Context, id string) (models.Assignment, error) {
	var out models.Assignment
	err := s.mutate("lock", func(l *planning.Ledger) (err error) {
		out, err = l.Lock(id)
		return err
	})
	if err == nil {
		s.alert(ctx)
	}
	return out, err
}

// LockPeriod freezes the whole period, or reports every conflicting cell
func (s *Session) LockPeriod(ctx context.Context) error {
	err := s.mutate("lock_period", func(l *planning.Ledger) error {
		return l.LockPeriod()
	})
	s.metrics.IncLockAttempt(err == nil)
	if err == nil {
		s.alert(ctx)
	}
	return err
}

// Validate certifies locked assignments, all or nothing
func (s *Session) Validate(ids ...string) error {
	return s.mutate("validate", func(l *planning.Ledger) error {
		return l.Validate(ids...)
	})
}

// ValidatePeriod certifies every locked assignment of the period
func (s *Session) ValidatePeriod() (int, error) {
	var n int
	err := s.mutate("validate", func(l *planning.Ledger) (err error) {
		n, err = l.ValidatePeriod()
		return err
	})
	return n, err
}

// Unlock returns one assignment to draft
func (s *Session) Unlock(id string, actor planning.Actor) (models.Assignment, error) {
	var out models.Assignment
	err := s.mutate("unlock", func(l *planning.Ledger) (err error) {
		out, err = l.Unlock(id, actor)
		return err
	})
	if err == nil {
		s.resetAlerts()
	}
	return out, err
}

// UnlockPeriod reopens the period for editing
func (s *Session) UnlockPeriod(actor planning.Actor) error {
	err := s.mutate("unlock_period", func(l *planning.Ledger) error {
		return l.UnlockPeriod(actor)
	})
	if err == nil {
		s.resetAlerts()
	}
	return err
}

// Dirty reports whether the ledger changed since the last successful flush
func (s *Session) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Revision() != s.persisted
}

// Flush persists the current snapshot. The ledger is never modified here, so a
// failed or cancelled flush leaves it exactly as it was and still dirty.
// A *store.StaleError means another writer changed the period's days since the
// session loaded them; the session must be closed and reopened.
func (s *Session) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.RLock()
	snap := s.ledger.Snapshot()
	clean := snap.Revision() == s.persisted
	expected := s.version
	s.mu.RUnlock()
	if clean {
		return nil
	}

	start := time.Now()
	version, err := s.store.PersistAssignments(ctx, snap.Period(), snap.Assignments(), expected)
	s.metrics.ObservePersist(time.Since(start).Seconds(), err)
	if err != nil {
		var pe *store.PersistError
		if !errors.Is(err, store.ErrStale) && !errors.As(err, &pe) {
			err = &store.PersistError{Op: "assignments", Err: err}
		}
		return err
	}

	s.mu.Lock()
	if snap.Revision() > s.persisted {
		s.persisted = snap.Revision()
	}
	s.version = version
	s.mu.Unlock()
	return nil
}

func (s *Session) mutate(op string, fn func(l *planning.Ledger) error) error {
	s.mu.Lock()
	err := fn(s.ledger)
	conflicts := 0
	if err == nil {
		conflicts = len(s.ledger.Snapshot().Conflicts())
	}
	s.mu.Unlock()

	if err != nil {
		s.metrics.IncRejected(op)
		return err
	}
	s.metrics.IncMutation(op)
	s.metrics.SetConflicts(conflicts)
	return nil
}

// alert notifies about sites that entered an alerting band since the last alert.
func (s *Session) alert(ctx context.Context) {
	rollups := s.Rollups()
	periodID := s.Period().ID

	s.mu.Lock()
	var fresh []models.SiteRollup
	for _, r := range rollups {
		if r.Band.Alerting() && !s.alerting[r.SiteID] {
			s.alerting[r.SiteID] = true
			fresh = append(fresh, r)
		}
	}
	s.mu.Unlock()

	if len(fresh) == 0 {
		return
	}
	if err := s.notifier.SitesAlerting(ctx, periodID, fresh); err != nil {
		log.Printf("budget alert for %s not delivered: %v", periodID, err)
	}
}

func (s *Session) resetAlerts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerting = make(map[string]bool)
}

// Available lists the workers free on day, least loaded first
func (s *Session) Available(day time.Time, role models.Role) (scheduler.Availability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scheduler.Available(s.ledger.Snapshot(), s.ledger.Workers(), day, role)
}

// Fairness scores how evenly planned hours are spread over the workers
func (s *Session) Fairness() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scheduler.FairnessScore(scheduler.WorkloadOf(s.ledger.Snapshot()), s.ledger.Workers())
}
