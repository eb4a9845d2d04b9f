package planning

import (
	"fmt"
	"sort"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/google/uuid"
)

// MaxDailyHours is the most hours one assignment may plan for a day.
const MaxDailyHours = 24.0

// ChangeKind names the mutation behind a Change
type ChangeKind string

const (
	ChangeLoad     ChangeKind = "load"
	ChangePlace    ChangeKind = "place"
	ChangeRemove   ChangeKind = "remove"
	ChangeHours    ChangeKind = "hours"
	ChangeReassign ChangeKind = "reassign"
	ChangeOverride ChangeKind = "override"
	ChangeLock     ChangeKind = "lock"
	ChangeValidate ChangeKind = "validate"
	ChangeUnlock   ChangeKind = "unlock"
)

// Change is delivered to subscribers after every successful mutation.
type Change struct {
	Kind     ChangeKind
	PeriodID string
	Cells    []models.Cell
	Revision uint64
}

// Actor identifies who asks for an unlock. CanUnlock is granted by the caller's
// own authorization layer.
type Actor struct {
	ID        string
	CanUnlock bool
}

// AuditEvent records an unlock for the audit trail.
type AuditEvent struct {
	Action   string
	PeriodID string
	Actor    string
	Count    int
	At       time.Time
}

// AuditSink receives unlock events.
type AuditSink interface {
	Record(event AuditEvent)
}

type cellKey struct {
	worker string
	day    string
}

func keyOf(workerID string, day time.Time) cellKey {
	return cellKey{worker: workerID, day: models.DateOf(day).Format(models.DateLayout)}
}

// Ledger owns the assignments of one loaded period.
//
// A Ledger is not safe for concurrent use: mutations must be serialized by the
// caller, and snapshots must not be taken while a mutation runs.
type Ledger struct {
	period      models.Period
	workers     map[string]models.Worker
	sites       map[string]models.Site
	assignments map[string]*models.Assignment
	cells       map[cellKey][]string
	overrides   map[cellKey]bool

	subscribers []subscriber
	nextSub     int
	revision    uint64

	newID func() string
	audit AuditSink
	now   func() time.Time
}

type subscriber struct {
	id int
	fn func(Change)
}

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithIDGenerator overrides how new assignment IDs are minted
func WithIDGenerator(fn func() string) LedgerOption {
	return func(l *Ledger) { l.newID = fn }
}

// WithAuditSink sets where unlocks are recorded
func WithAuditSink(sink AuditSink) LedgerOption {
	return func(l *Ledger) { l.audit = sink }
}

// WithClock overrides the time source used for audit events
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates an empty ledger
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		workers:     make(map[string]models.Worker),
		sites:       make(map[string]models.Site),
		assignments: make(map[string]*models.Assignment),
		cells:       make(map[cellKey][]string),
		overrides:   make(map[cellKey]bool),
		newID:       uuid.NewString,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the ledger content with a period and its raw assignments.
// On error the ledger is left as it was.
func (l *Ledger) Load(period models.Period, workers []models.Worker, sites []models.Site, raw []models.Assignment) error {
	workerMap := make(map[string]models.Worker, len(workers))
	for _, w := range workers {
		if _, dup := workerMap[w.ID]; dup {
			return &LoadError{Reason: fmt.Sprintf("duplicate worker %q", w.ID)}
		}
		if !w.Role.Valid() {
			return &LoadError{Reason: fmt.Sprintf("worker %q has unknown role %q", w.ID, w.Role)}
		}
		workerMap[w.ID] = w
	}
	siteMap := make(map[string]models.Site, len(sites))
	for _, s := range sites {
		if _, dup := siteMap[s.ID]; dup {
			return &LoadError{Reason: fmt.Sprintf("duplicate site %q", s.ID)}
		}
		if s.BudgetedHours < 0 {
			return &LoadError{Reason: fmt.Sprintf("site %q has negative budget", s.ID)}
		}
		siteMap[s.ID] = s
	}

	assignments := make(map[string]*models.Assignment, len(raw))
	cells := make(map[cellKey][]string)
	frozen := make(map[cellKey]string)
	for _, r := range raw {
		a := r
		if a.ID == "" {
			a.ID = l.newID()
		}
		if _, dup := assignments[a.ID]; dup {
			return &LoadError{AssignmentID: a.ID, Reason: "duplicate id"}
		}
		if _, ok := workerMap[a.WorkerID]; !ok {
			return &LoadError{AssignmentID: a.ID, Reason: fmt.Sprintf("unknown worker %q", a.WorkerID)}
		}
		if _, ok := siteMap[a.SiteID]; !ok {
			return &LoadError{AssignmentID: a.ID, Reason: fmt.Sprintf("unknown site %q", a.SiteID)}
		}
		a.Day = models.DateOf(a.Day)
		if !period.Plannable(a.Day) {
			return &LoadError{AssignmentID: a.ID, Reason: fmt.Sprintf("day %s is outside period %s", a.Day.Format(models.DateLayout), period.ID)}
		}
		if !validHours(a.HoursPlanned) {
			return &LoadError{AssignmentID: a.ID, Reason: fmt.Sprintf("invalid hours %g", a.HoursPlanned)}
		}
		if a.State == "" {
			a.State = models.StateDraft
		}
		if !a.State.Valid() {
			return &LoadError{AssignmentID: a.ID, Reason: fmt.Sprintf("unknown state %q", a.State)}
		}
		key := keyOf(a.WorkerID, a.Day)
		for _, otherID := range cells[key] {
			if assignments[otherID].SiteID == a.SiteID {
				return &LoadError{AssignmentID: a.ID, Reason: fmt.Sprintf("duplicates assignment %s", otherID)}
			}
		}
		if a.State.Frozen() {
			if other, taken := frozen[key]; taken {
				return &LoadError{AssignmentID: a.ID, Reason: fmt.Sprintf("worker %s already has frozen assignment %s on %s", a.WorkerID, other, key.day)}
			}
			frozen[key] = a.ID
		} else {
			a.State = models.StateDraft
		}
		a.Conflicts = nil
		assignments[a.ID] = &a
		cells[key] = append(cells[key], a.ID)
	}

	period.Days = append([]models.Day(nil), period.Days...)
	l.period = period
	l.workers = workerMap
	l.sites = siteMap
	l.assignments = assignments
	l.cells = cells
	l.overrides = make(map[cellKey]bool)

	keys := make([]cellKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	l.detect(keys...)
	l.commit(ChangeLoad, nil)
	return nil
}

// Place creates the draft assignment for (worker, site, day) or overwrites its hours.
func (l *Ledger) Place(workerID, siteID string, day time.Time, hours float64) (models.Assignment, error) {
	if !validHours(hours) {
		return models.Assignment{}, &InvalidHoursError{Hours: hours}
	}
	if err := l.checkRefs(workerID, siteID, day); err != nil {
		return models.Assignment{}, err
	}
	day = models.DateOf(day)
	key := keyOf(workerID, day)
	if err := l.checkOpen(workerID, day); err != nil {
		return models.Assignment{}, err
	}

	a := l.find(key, siteID)
	if a != nil {
		if a.State.Frozen() {
			return models.Assignment{}, &ImmutableCellError{Cell: a.Cell(), State: a.State}
		}
		a.HoursPlanned = hours
	} else {
		a = &models.Assignment{
			ID:           l.newID(),
			WorkerID:     workerID,
			SiteID:       siteID,
			Day:          day,
			HoursPlanned: hours,
			State:        models.StateDraft,
		}
		l.assignments[a.ID] = a
		l.cells[key] = append(l.cells[key], a.ID)
	}

	l.detect(key)
	l.commit(ChangePlace, []models.Cell{a.Cell()})
	return cloneAssignment(*a), nil
}

// Remove deletes every draft or conflicting assignment of a worker-day cell.
func (l *Ledger) Remove(workerID string, day time.Time) error {
	key := keyOf(workerID, day)
	ids := l.cells[key]
	if len(ids) == 0 {
		return fmt.Errorf("%w: no assignment for %s on %s", ErrAssignmentNotFound, workerID, key.day)
	}
	for _, id := range ids {
		if a := l.assignments[id]; a.State.Frozen() {
			return &ImmutableCellError{Cell: a.Cell(), State: a.State}
		}
	}
	for _, id := range ids {
		delete(l.assignments, id)
	}
	delete(l.cells, key)

	cell := models.Cell{WorkerID: workerID, Day: models.DateOf(day)}
	l.commit(ChangeRemove, []models.Cell{cell})
	return nil
}

// RemoveAssignment deletes a single draft or conflicting assignment.
func (l *Ledger) RemoveAssignment(id string) error {
	a, err := l.get(id)
	if err != nil {
		return err
	}
	if a.State.Frozen() {
		return &ImmutableCellError{Cell: a.Cell(), State: a.State}
	}
	key := keyOf(a.WorkerID, a.Day)
	l.unindex(key, id)
	delete(l.assignments, id)

	l.detect(key)
	l.commit(ChangeRemove, []models.Cell{a.Cell()})
	return nil
}

// SetHours updates the planned hours of a draft or conflicting assignment.
func (l *Ledger) SetHours(id string, hours float64) (models.Assignment, error) {
	if !validHours(hours) {
		return models.Assignment{}, &InvalidHoursError{Hours: hours}
	}
	a, err := l.get(id)
	if err != nil {
		return models.Assignment{}, err
	}
	if a.State.Frozen() {
		return models.Assignment{}, &ImmutableCellError{Cell: a.Cell(), State: a.State}
	}
	a.HoursPlanned = hours

	l.detect(keyOf(a.WorkerID, a.Day))
	l.commit(ChangeHours, []models.Cell{a.Cell()})
	return cloneAssignment(*a), nil
}

// Reassign moves an assignment to another site or day. Moving onto an existing
// (worker, site, day) assignment merges the two, keeping the moved hours.
func (l *Ledger) Reassign(id, siteID string, day time.Time) (models.Assignment, error) {
	return l.Update(id, siteID, day, 0)
}

// Update moves an assignment and sets its hours in one step: every check runs
// before anything changes. An empty siteID, a zero day or zero hours keep the
// current value.
func (l *Ledger) Update(id, siteID string, day time.Time, hours float64) (models.Assignment, error) {
	if hours != 0 && !validHours(hours) {
		return models.Assignment{}, &InvalidHoursError{Hours: hours}
	}
	a, err := l.get(id)
	if err != nil {
		return models.Assignment{}, err
	}
	if a.State.Frozen() {
		return models.Assignment{}, &ImmutableCellError{Cell: a.Cell(), State: a.State}
	}
	if siteID == "" {
		siteID = a.SiteID
	}
	if day.IsZero() {
		day = a.Day
	}
	if err := l.checkRefs(a.WorkerID, siteID, day); err != nil {
		return models.Assignment{}, err
	}
	day = models.DateOf(day)
	from := keyOf(a.WorkerID, a.Day)
	to := keyOf(a.WorkerID, day)
	target := l.find(to, siteID)
	if target != nil && target.ID != a.ID && target.State.Frozen() {
		return models.Assignment{}, &ImmutableCellError{Cell: target.Cell(), State: target.State}
	}
	if hours == 0 {
		hours = a.HoursPlanned
	}

	oldCell := a.Cell()
	l.unindex(from, a.ID)
	if target != nil && target.ID != a.ID {
		delete(l.assignments, a.ID)
		a = target
	} else {
		a.SiteID = siteID
		a.Day = day
		l.cells[to] = append(l.cells[to], a.ID)
	}
	a.HoursPlanned = hours

	l.detect(from, to)
	l.commit(ChangeReassign, []models.Cell{oldCell, a.Cell()})
	return cloneAssignment(*a), nil
}

// AllowDoubleBooking records that a worker is intentionally planned on several
// sites the same day. Absence conflicts are still flagged.
func (l *Ledger) AllowDoubleBooking(workerID string, day time.Time, allowed bool) error {
	if _, ok := l.workers[workerID]; !ok {
		return &UnknownReferenceError{Kind: "worker", ID: workerID}
	}
	if !l.period.Plannable(day) {
		return unknownDay(day)
	}
	if err := l.checkOpen(workerID, day); err != nil {
		return err
	}
	key := keyOf(workerID, day)
	if allowed {
		l.overrides[key] = true
	} else {
		delete(l.overrides, key)
	}

	l.detect(key)
	l.commit(ChangeOverride, []models.Cell{{WorkerID: workerID, Day: models.DateOf(day)}})
	return nil
}

// Snapshot returns a read-only copy of the ledger state
func (l *Ledger) Snapshot() Snapshot {
	list := make([]models.Assignment, 0, len(l.assignments))
	for _, a := range l.assignments {
		list = append(list, cloneAssignment(*a))
	}
	sortAssignments(list)

	period := l.period
	period.Days = append([]models.Day(nil), l.period.Days...)
	return Snapshot{period: period, assignments: list, revision: l.revision}
}

// Period returns the loaded period
func (l *Ledger) Period() models.Period {
	p := l.period
	p.Days = append([]models.Day(nil), l.period.Days...)
	return p
}

// Sites returns the reference sites ordered by ID
func (l *Ledger) Sites() []models.Site {
	sites := make([]models.Site, 0, len(l.sites))
	for _, s := range l.sites {
		sites = append(sites, s)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].ID < sites[j].ID })
	return sites
}

// Workers returns the reference workers ordered by ID
func (l *Ledger) Workers() []models.Worker {
	workers := make([]models.Worker, 0, len(l.workers))
	for _, w := range l.workers {
		workers = append(workers, w)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })
	return workers
}

// Revision increases with every successful mutation
func (l *Ledger) Revision() uint64 {
	return l.revision
}

// Subscribe registers fn to be called after every successful mutation.
// The returned func removes the subscription.
func (l *Ledger) Subscribe(fn func(Change)) (unsubscribe func()) {
	id := l.nextSub
	l.nextSub++
	l.subscribers = append(l.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range l.subscribers {
			if s.id == id {
				l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (l *Ledger) commit(kind ChangeKind, cells []models.Cell) {
	l.revision++
	change := Change{Kind: kind, PeriodID: l.period.ID, Cells: cells, Revision: l.revision}
	for _, s := range append([]subscriber(nil), l.subscribers...) {
		s.fn(change)
	}
}

func (l *Ledger) checkRefs(workerID, siteID string, day time.Time) error {
	if _, ok := l.workers[workerID]; !ok {
		return &UnknownReferenceError{Kind: "worker", ID: workerID}
	}
	if _, ok := l.sites[siteID]; !ok {
		return &UnknownReferenceError{Kind: "site", ID: siteID}
	}
	if !l.period.Plannable(day) {
		return unknownDay(day)
	}
	return nil
}

// checkOpen refuses edits while the period is locked
func (l *Ledger) checkOpen(workerID string, day time.Time) error {
	if l.period.Locked {
		return &ImmutableCellError{Cell: models.Cell{WorkerID: workerID, Day: models.DateOf(day)}, State: models.StateLocked}
	}
	return nil
}

func (l *Ledger) get(id string) (*models.Assignment, error) {
	a, ok := l.assignments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssignmentNotFound, id)
	}
	return a, nil
}

func (l *Ledger) find(key cellKey, siteID string) *models.Assignment {
	for _, id := range l.cells[key] {
		if a := l.assignments[id]; a.SiteID == siteID {
			return a
		}
	}
	return nil
}

func (l *Ledger) unindex(key cellKey, id string) {
	ids := l.cells[key]
	for i, other := range ids {
		if other == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(l.cells, key)
		return
	}
	l.cells[key] = ids
}

func validHours(h float64) bool {
	return h > 0 && h <= MaxDailyHours
}

// CheckHours reports hours outside (0, MaxDailyHours] as an *InvalidHoursError.
func CheckHours(hours float64) error {
	if !validHours(hours) {
		return &InvalidHoursError{Hours: hours}
	}
	return nil
}

func cloneAssignment(a models.Assignment) models.Assignment {
	a.Conflicts = append([]models.ConflictReason(nil), a.Conflicts...)
	return a
}

func sortAssignments(list []models.Assignment) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Day.Equal(b.Day) {
			return a.Day.Before(b.Day)
		}
		if a.WorkerID != b.WorkerID {
			return a.WorkerID < b.WorkerID
		}
		if a.SiteID != b.SiteID {
			return a.SiteID < b.SiteID
		}
		return a.ID < b.ID
	})
}
