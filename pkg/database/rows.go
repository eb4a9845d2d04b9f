package database

import (
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/models"
)

// WorkerRow represents the workers table
type WorkerRow struct {
	ID          string       `gorm:"primaryKey"`
	Name        string       `gorm:"not null"`
	Role        string       `gorm:"type:varchar(20);not null"`
	OnLeave     bool         `gorm:"default:false"`
	Unavailable bool         `gorm:"default:false"`
	Absences    []AbsenceRow `gorm:"foreignKey:WorkerID"`
}

func (WorkerRow) TableName() string { return "workers" }

// AbsenceRow represents the absences table
type AbsenceRow struct {
	ID        uint      `gorm:"primaryKey"`
	WorkerID  string    `gorm:"not null;index"`
	StartDate time.Time `gorm:"type:date;not null"`
	EndDate   time.Time `gorm:"type:date;not null"`
	Kind      string    `gorm:"type:varchar(20);not null"`
}

func (AbsenceRow) TableName() string { return "absences" }

// SiteRow represents the sites table
type SiteRow struct {
	ID            string  `gorm:"primaryKey"`
	Name          string  `gorm:"not null"`
	Address       string
	BudgetedHours float64 `gorm:"not null;default:0"`
	Status        string  `gorm:"type:varchar(10);not null;default:active"`
}

func (SiteRow) TableName() string { return "sites" }

// AssignmentRow represents the assignments table
type AssignmentRow struct {
	ID           string    `gorm:"primaryKey"`
	WorkerID     string    `gorm:"not null;uniqueIndex:idx_worker_site_day"`
	SiteID       string    `gorm:"not null;uniqueIndex:idx_worker_site_day"`
	Day          time.Time `gorm:"type:date;not null;index;uniqueIndex:idx_worker_site_day"`
	HoursPlanned float64   `gorm:"not null"`
	State        string    `gorm:"type:varchar(20);not null;default:draft"`
	UpdatedAt    time.Time
}

func (AssignmentRow) TableName() string { return "assignments" }

// PeriodRow represents the planning_periods table
type PeriodRow struct {
	ID        string    `gorm:"primaryKey"`
	StartDate time.Time `gorm:"type:date;index"`
	EndDate   time.Time `gorm:"type:date;index"`
	Locked    bool      `gorm:"not null;default:false"`
	Version   uint64    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (PeriodRow) TableName() string { return "planning_periods" }

func (r WorkerRow) toModel() models.Worker {
	w := models.Worker{
		ID:          r.ID,
		Name:        r.Name,
		Role:        models.Role(r.Role),
		OnLeave:     r.OnLeave,
		Unavailable: r.Unavailable,
	}
	for _, a := range r.Absences {
		w.Absences = append(w.Absences, models.Absence{
			Start: models.DateOf(a.StartDate),
			End:   models.DateOf(a.EndDate),
			Kind:  models.AbsenceKind(a.Kind),
		})
	}
	return w
}

func workerRowOf(w models.Worker) WorkerRow {
	r := WorkerRow{
		ID:          w.ID,
		Name:        w.Name,
		Role:        string(w.Role),
		OnLeave:     w.OnLeave,
		Unavailable: w.Unavailable,
	}
	for _, a := range w.Absences {
		r.Absences = append(r.Absences, AbsenceRow{
			WorkerID:  w.ID,
			StartDate: models.DateOf(a.Start),
			EndDate:   models.DateOf(a.End),
			Kind:      string(a.Kind),
		})
	}
	return r
}

func (r SiteRow) toModel() models.Site {
	return models.Site{
		ID:            r.ID,
		Name:          r.Name,
		Address:       r.Address,
		BudgetedHours: r.BudgetedHours,
		Status:        models.SiteStatus(r.Status),
	}
}

func (r AssignmentRow) toModel() models.Assignment {
	return models.Assignment{
		ID:           r.ID,
		WorkerID:     r.WorkerID,
		SiteID:       r.SiteID,
		Day:          models.DateOf(r.Day),
		HoursPlanned: r.HoursPlanned,
		State:        models.AssignmentState(r.State),
	}
}

func assignmentRowOf(a models.Assignment) AssignmentRow {
	return AssignmentRow{
		ID:           a.ID,
		WorkerID:     a.WorkerID,
		SiteID:       a.SiteID,
		Day:          models.DateOf(a.Day),
		HoursPlanned: a.HoursPlanned,
		State:        string(a.State),
	}
}
