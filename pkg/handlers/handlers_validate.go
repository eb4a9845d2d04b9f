package handlers

import (
	"net/http"

	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/arnavshah/site-capacity-api/pkg/planning"
	"github.com/gin-gonic/gin"
)

// ValidateRequest is a raw period payload checked without touching the store
type ValidateRequest struct {
	Date        string              `json:"date" binding:"required"`
	Granularity string              `json:"granularity" binding:"required"`
	Workers     []models.Worker     `json:"workers"`
	Sites       []models.Site       `json:"sites"`
	Assignments []models.Assignment `json:"assignments"`
}

// ValidateInput loads the payload into a throwaway ledger and reports what a
// real load would reject or flag.
func (h *Handler) ValidateInput(c *gin.Context) {
	var input ValidateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	ref, err := models.ParseDate(input.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "date must be YYYY-MM-DD"})
		return
	}
	g, err := planning.ParseGranularity(input.Granularity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
		return
	}
	period, err := h.Planner.Calendar().Build(ref, g)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
		return
	}

	if len(input.Workers) == 0 {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": "At least one worker is required"})
		return
	}
	if len(input.Sites) == 0 {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": "At least one site is required"})
		return
	}

	ledger := planning.NewLedger()
	if err := ledger.Load(period, input.Workers, input.Sites, input.Assignments); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}

	snap := ledger.Snapshot()
	rollups := h.Planner.Aggregator().ComputeRollups(ledger.Sites(), snap)
	h.RecordUsage(c, 0, snap.Len())

	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"period_id": period.ID,
		"conflicts": snap.Conflicts(),
		"rollups":   rollups,
		"stats": gin.H{
			"worker_count":     len(input.Workers),
			"site_count":       len(input.Sites),
			"assignment_count": snap.Len(),
		},
	})
}
