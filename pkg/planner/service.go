package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/capacity"
	"github.com/arnavshah/site-capacity-api/pkg/metrics"
	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/arnavshah/site-capacity-api/pkg/notify"
	"github.com/arnavshah/site-capacity-api/pkg/planning"
	"github.com/arnavshah/site-capacity-api/pkg/store"
)

var (
	// ErrSessionNotFound indicates the period has not been opened.
	ErrSessionNotFound = errors.New("period not open")
	// ErrPeriodOverlap indicates the period shares days with an open session
	// or a locked stored period.
	ErrPeriodOverlap = errors.New("period overlaps another period")
)

// OverlapError names the periods blocking an Open
type OverlapError struct {
	PeriodID string
	Open     []string
	Locked   []string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("period %s overlaps open sessions %v and locked periods %v", e.PeriodID, e.Open, e.Locked)
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrPeriodOverlap
}

// Options configures a Service
type Options struct {
	Calendar   planning.Calendar
	Thresholds capacity.Thresholds
	Audit      planning.AuditSink
	Notifier   notify.Notifier
	Metrics    bool
	// NewID mints assignment IDs; uuid when nil
	NewID func() string
}

// Service opens planning periods from the store and keeps one session per period.
type Service struct {
	store      store.Store
	calendar   planning.Calendar
	aggregator *capacity.Aggregator
	audit      planning.AuditSink
	notifier   notify.Notifier
	metrics    bool
	newID      func() string

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a planning service backed by st
func New(st store.Store, opts Options) *Service {
	if opts.Thresholds == (capacity.Thresholds{}) {
		opts.Thresholds = capacity.DefaultThresholds()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	return &Service{
		store:      st,
		calendar:   opts.Calendar,
		aggregator: capacity.NewAggregator(opts.Thresholds),
		audit:      opts.Audit,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		newID:      opts.NewID,
		sessions:   make(map[string]*Session),
	}
}

// Calendar returns the calendar periods are built with
func (s *Service) Calendar() planning.Calendar {
	return s.calendar
}

// Aggregator returns the aggregator sessions compute rollups with
func (s *Service) Aggregator() *capacity.Aggregator {
	return s.aggregator
}

// Open returns the session of the period containing ref, loading it from the
// store when it is not open yet.
func (s *Service) Open(ctx context.Context, ref time.Time, g models.Granularity) (*Session, error) {
	period, err := s.calendar.Build(ref, g)
	if err != nil {
		return nil, err
	}
	if sess, err := s.Session(period.ID); err == nil {
		return sess, nil
	}
	if open := s.overlapping(period); len(open) > 0 {
		return nil, &OverlapError{PeriodID: period.ID, Open: open}
	}

	workers, err := s.store.FetchWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", period.ID, err)
	}
	sites, err := s.store.FetchSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", period.ID, err)
	}
	raw, err := s.store.FetchAssignments(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", period.ID, err)
	}
	state, err := s.store.FetchPeriodState(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", period.ID, err)
	}
	if len(state.LockedOverlaps) > 0 {
		return nil, &OverlapError{PeriodID: period.ID, Locked: state.LockedOverlaps}
	}
	period.Locked = state.Locked

	opts := []planning.LedgerOption{}
	if s.audit != nil {
		opts = append(opts, planning.WithAuditSink(s.audit))
	}
	if s.newID != nil {
		opts = append(opts, planning.WithIDGenerator(s.newID))
	}
	ledger := planning.NewLedger(opts...)
	if err := ledger.Load(period, workers, sites, raw); err != nil {
		return nil, err
	}

	sess := newSession(ledger, s.store, s.aggregator, s.notifier, state.Version)
	if s.metrics {
		sess.metrics = metrics.NewCollector(period.ID)
		sess.metrics.SetConflicts(len(ledger.Snapshot().Conflicts()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[period.ID]; ok {
		return existing, nil
	}
	// Another Open may have raced in an overlapping session while we loaded
	if open := s.overlappingLocked(period); len(open) > 0 {
		return nil, &OverlapError{PeriodID: period.ID, Open: open}
	}
	s.sessions[period.ID] = sess
	return sess, nil
}

// Session returns an open session
func (s *Service) Session(periodID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[periodID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, periodID)
	}
	return sess, nil
}

// Close drops an open session without flushing it
func (s *Service) Close(periodID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, periodID)
}

// Sessions lists the open period IDs in order
func (s *Service) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) overlapping(period models.Period) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlappingLocked(period)
}

// overlappingLocked expects s.mu to be held
func (s *Service) overlappingLocked(period models.Period) []string {
	var ids []string
	for id, sess := range s.sessions {
		if id != period.ID && sess.Period().Overlaps(period) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
