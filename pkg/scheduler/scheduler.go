package scheduler

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/arnavshah/site-capacity-api/pkg/planning"
)

// Candidate is a worker free to take a cell on the requested day
type Candidate struct {
	WorkerID     string      `json:"worker_id"`
	Name         string      `json:"name"`
	Role         models.Role `json:"role"`
	PlannedHours float64     `json:"planned_hours"`
}

// Availability lists who can still be placed on a day. Suggestions only: the
// caller decides, nothing is placed here.
type Availability struct {
	Day        time.Time   `json:"day"`
	Candidates []Candidate `json:"candidates"`
	Reasons    []string    `json:"reasons,omitempty"`
}

// Workload maps worker IDs to the hours planned for them in a period
type Workload map[string]float64

// WorkloadOf sums planned hours per worker over every assignment of the snapshot
func WorkloadOf(snap planning.Snapshot) Workload {
	w := make(Workload)
	for _, a := range snap.Assignments() {
		w[a.WorkerID] += a.HoursPlanned
	}
	return w
}

// Available returns the workers with no assignment and no absence on day, least
// loaded over the period first. An empty role matches every worker.
func Available(snap planning.Snapshot, workers []models.Worker, day time.Time, role models.Role) (Availability, error) {
	day = models.DateOf(day)
	if !snap.Period().Plannable(day) {
		return Availability{}, &planning.UnknownReferenceError{Kind: "day", ID: day.Format(models.DateLayout)}
	}

	busy := make(map[string]bool)
	for _, a := range snap.Assignments() {
		if a.Day.Equal(day) {
			busy[a.WorkerID] = true
		}
	}
	load := WorkloadOf(snap)

	out := Availability{Day: day, Candidates: []Candidate{}}
	absentCount, busyCount, roleCount := 0, 0, 0
	for _, w := range workers {
		switch {
		case role != "" && w.Role != role:
			roleCount++
		case w.AbsentOn(day):
			absentCount++
		case busy[w.ID]:
			busyCount++
		default:
			out.Candidates = append(out.Candidates, Candidate{
				WorkerID:     w.ID,
				Name:         w.Name,
				Role:         w.Role,
				PlannedHours: load[w.ID],
			})
		}
	}

	sort.Slice(out.Candidates, func(i, j int) bool {
		a, b := out.Candidates[i], out.Candidates[j]
		if a.PlannedHours != b.PlannedHours {
			return a.PlannedHours < b.PlannedHours
		}
		return a.WorkerID < b.WorkerID
	})

	if len(out.Candidates) == 0 {
		if absentCount > 0 {
			out.Reasons = append(out.Reasons, fmt.Sprintf("%d workers were absent", absentCount))
		}
		if busyCount > 0 {
			out.Reasons = append(out.Reasons, fmt.Sprintf("%d workers were already planned", busyCount))
		}
		if roleCount > 0 {
			out.Reasons = append(out.Reasons, fmt.Sprintf("%d workers had another role", roleCount))
		}
		if len(out.Reasons) == 0 {
			out.Reasons = append(out.Reasons, "no workers loaded")
		}
	}
	return out, nil
}

// FairnessScore returns a percentage (0-100) representing how evenly hours are
// spread over workers. 100% is perfectly even (standard deviation 0).
func FairnessScore(load Workload, workers []models.Worker) float64 {
	if len(workers) == 0 {
		return 100.0
	}

	var sum float64
	for _, w := range workers {
		sum += load[w.ID]
	}
	if sum == 0 {
		return 100.0
	}

	mean := sum / float64(len(workers))

	var varianceSum float64
	for _, w := range workers {
		diff := load[w.ID] - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(workers)))

	// 0% means the deviation is at least the mean
	score := (1.0 - (stdDev / mean)) * 100.0
	if score < 0 {
		return 0.0
	}
	return score
}
