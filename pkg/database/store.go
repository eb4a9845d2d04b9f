package database

import (
	"context"
	"fmt"

	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/arnavshah/site-capacity-api/pkg/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the gorm implementation of store.Store. It works on postgres and
// sqlite alike.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an opened gorm connection
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FetchWorkers returns every worker with their absences
func (s *Store) FetchWorkers(ctx context.Context) ([]models.Worker, error) {
	var rows []WorkerRow
	if err := s.db.WithContext(ctx).Preload("Absences").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch workers: %w", err)
	}
	workers := make([]models.Worker, 0, len(rows))
	for _, r := range rows {
		workers = append(workers, r.toModel())
	}
	return workers, nil
}

// FetchSites returns every site
func (s *Store) FetchSites(ctx context.Context) ([]models.Site, error) {
	var rows []SiteRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sites: %w", err)
	}
	sites := make([]models.Site, 0, len(rows))
	for _, r := range rows {
		sites = append(sites, r.toModel())
	}
	return sites, nil
}

// FetchAssignments returns the assignments inside the period's date range
func (s *Store) FetchAssignments(ctx context.Context, period models.Period) ([]models.Assignment, error) {
	var rows []AssignmentRow
	err := s.db.WithContext(ctx).
		Where("day >= ? AND day <= ?", period.Start, period.End).
		Order("day, worker_id, site_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignments: %w", err)
	}
	out := make([]models.Assignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// FetchPeriodState reports the lock flags and version of the period's days
func (s *Store) FetchPeriodState(ctx context.Context, period models.Period) (store.PeriodState, error) {
	rows, err := overlapping(s.db.WithContext(ctx), period)
	if err != nil {
		return store.PeriodState{}, fmt.Errorf("failed to fetch period %s: %w", period.ID, err)
	}

	var state store.PeriodState
	for _, r := range rows {
		if r.Version > state.Version {
			state.Version = r.Version
		}
		switch {
		case r.ID == period.ID:
			state.Locked = r.Locked
		case r.Locked:
			state.LockedOverlaps = append(state.LockedOverlaps, r.ID)
		}
	}
	return state, nil
}

// PersistAssignments replaces the period's assignments and lock flag in one
// transaction, refusing the write when the days changed since expected.
func (s *Store) PersistAssignments(ctx context.Context, period models.Period, assignments []models.Assignment, expected uint64) (uint64, error) {
	var version uint64
	var stale *store.StaleError
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// sqlite serializes writers itself and has no row locks
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		rows, err := overlapping(q, period)
		if err != nil {
			return fmt.Errorf("failed to read period versions: %w", err)
		}
		var current uint64
		for _, r := range rows {
			if r.Version > current {
				current = r.Version
			}
		}
		if current != expected {
			stale = &store.StaleError{PeriodID: period.ID, Expected: expected, Actual: current}
			return stale
		}
		version = current + 1

		if err := tx.Where("day >= ? AND day <= ?", period.Start, period.End).Delete(&AssignmentRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear assignments: %w", err)
		}

		if len(assignments) > 0 {
			rows := make([]AssignmentRow, 0, len(assignments))
			for _, a := range assignments {
				rows = append(rows, assignmentRowOf(a))
			}
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return fmt.Errorf("failed to write assignments: %w", err)
			}
		}

		// Single-query upsert, supported by both Postgres and SQLite
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"start_date", "end_date", "locked", "version", "updated_at"}),
		}).Create(&PeriodRow{
			ID:        period.ID,
			StartDate: period.Start,
			EndDate:   period.End,
			Locked:    period.Locked,
			Version:   version,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to write period: %w", err)
		}
		return nil
	})
	if stale != nil {
		return 0, stale
	}
	if err != nil {
		return 0, &store.PersistError{Op: "assignments", Err: err}
	}
	return version, nil
}

// overlapping returns the stored periods sharing at least one day with period, ordered by ID
func overlapping(db *gorm.DB, period models.Period) ([]PeriodRow, error) {
	var rows []PeriodRow
	err := db.
		Where("start_date <= ? AND end_date >= ?", period.End, period.Start).
		Order("id").
		Find(&rows).Error
	return rows, err
}

// SaveWorkers upserts reference workers and replaces their absences
func (s *Store) SaveWorkers(ctx context.Context, workers ...models.Worker) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, w := range workers {
			row := workerRowOf(w)
			absences := row.Absences
			row.Absences = nil
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("failed to save worker %s: %w", w.ID, err)
			}
			if err := tx.Where("worker_id = ?", w.ID).Delete(&AbsenceRow{}).Error; err != nil {
				return fmt.Errorf("failed to clear absences of %s: %w", w.ID, err)
			}
			if len(absences) > 0 {
				if err := tx.Create(&absences).Error; err != nil {
					return fmt.Errorf("failed to save absences of %s: %w", w.ID, err)
				}
			}
		}
		return nil
	})
}

// SaveSites upserts reference sites
func (s *Store) SaveSites(ctx context.Context, sites ...models.Site) error {
	if len(sites) == 0 {
		return nil
	}
	rows := make([]SiteRow, 0, len(sites))
	for _, site := range sites {
		status := string(site.Status)
		if status == "" {
			status = string(models.SiteActive)
		}
		rows = append(rows, SiteRow{
			ID:            site.ID,
			Name:          site.Name,
			Address:       site.Address,
			BudgetedHours: site.BudgetedHours,
			Status:        status,
		})
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to save sites: %w", err)
	}
	return nil
}
