package memory

import (
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/models"
)

// Seed fills the store with a small crew and three sites for demo mode.
// Absences are placed relative to today so the current week shows conflicts.
func Seed(s *Store, today time.Time) {
	today = models.DateOf(today)

	s.PutSites(
		models.Site{ID: "S1", Name: "Riverside Offices", Address: "12 Quay Street", BudgetedHours: 120, Status: models.SiteActive},
		models.Site{ID: "S2", Name: "North Depot Extension", Address: "4 Depot Road", BudgetedHours: 40, Status: models.SiteActive},
		models.Site{ID: "S3", Name: "School Annex", Address: "88 Elm Avenue", BudgetedHours: 0, Status: models.SiteActive},
	)
	s.PutWorkers(
		models.Worker{ID: "W1", Name: "Alex Moreau", Role: models.RoleSiteLead},
		models.Worker{ID: "W2", Name: "Sam Okafor", Role: models.RoleCrewLead},
		models.Worker{ID: "W3", Name: "Jo Lindqvist", Role: models.RoleOperator, Absences: []models.Absence{
			{Start: today.AddDate(0, 0, 1), End: today.AddDate(0, 0, 2), Kind: models.AbsenceVacation},
		}},
		models.Worker{ID: "W4", Name: "Rin Takahashi", Role: models.RoleSafety},
		models.Worker{ID: "W5", Name: "Dana Costa", Role: models.RoleInterim, Unavailable: true},
	)
}
