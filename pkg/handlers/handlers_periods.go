package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/audit"
	"github.com/arnavshah/site-capacity-api/pkg/capacity"
	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/arnavshah/site-capacity-api/pkg/planner"
	"github.com/arnavshah/site-capacity-api/pkg/planning"
	"github.com/gin-gonic/gin"
)

type openRequest struct {
	Date        string `json:"date" binding:"required"`
	Granularity string `json:"granularity" binding:"required"`
}

type placeRequest struct {
	WorkerID string   `json:"worker_id" binding:"required"`
	SiteID   string   `json:"site_id" binding:"required"`
	Day      string   `json:"day" binding:"required"`
	Hours    *float64 `json:"hours"`
}

type updateRequest struct {
	Hours  *float64 `json:"hours"`
	SiteID string   `json:"site_id"`
	Day    string   `json:"day"`
}

type doubleBookingRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
	Day      string `json:"day" binding:"required"`
	Allowed  bool   `json:"allowed"`
}

// periodView is the JSON rendering of a session
type periodView struct {
	Period      models.Period         `json:"period"`
	Revision    uint64                `json:"revision"`
	Dirty       bool                  `json:"dirty"`
	Workers     []models.Worker       `json:"workers"`
	Sites       []models.Site         `json:"sites"`
	Assignments []models.Assignment   `json:"assignments"`
	Conflicts   []models.CellConflict `json:"conflicts"`
	Rollups     []models.SiteRollup   `json:"rollups"`
	Summary     capacity.Summary      `json:"summary"`
}

func viewOf(sess *planner.Session) periodView {
	snap := sess.Snapshot()
	rollups := sess.Rollups()
	return periodView{
		Period:      snap.Period(),
		Revision:    snap.Revision(),
		Dirty:       sess.Dirty(),
		Workers:     sess.Workers(),
		Sites:       sess.Sites(),
		Assignments: snap.Assignments(),
		Conflicts:   snap.Conflicts(),
		Rollups:     rollups,
		Summary:     capacity.Summarize(rollups),
	}
}

// session resolves the :id route parameter to an open session, opening the
// period from the store on first use.
func (h *Handler) session(c *gin.Context) (*planner.Session, bool) {
	ref, g, err := planning.ParsePeriodID(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	sess, err := h.Planner.Open(c.Request.Context(), ref, g)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return sess, true
}

func parseDay(c *gin.Context, raw string) (time.Time, bool) {
	d, err := models.ParseDate(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "day must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return d, true
}

// Calendar returns the grid of the period containing ?date= without opening it
func (h *Handler) Calendar(c *gin.Context) {
	ref, err := models.ParseDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	g, err := planning.ParseGranularity(c.DefaultQuery("granularity", string(models.GranularityWeek)))
	if err != nil {
		abortWithError(c, err)
		return
	}
	period, err := h.Planner.Calendar().Build(ref, g)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, period)
}

// OpenPeriod loads the period containing the given date
func (h *Handler) OpenPeriod(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ref, err := models.ParseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	g, err := planning.ParseGranularity(req.Granularity)
	if err != nil {
		abortWithError(c, err)
		return
	}

	sess, err := h.Planner.Open(c.Request.Context(), ref, g)
	if err != nil {
		abortWithError(c, err)
		return
	}

	view := viewOf(sess)
	h.RecordUsage(c, 0, len(view.Assignments))
	c.JSON(http.StatusOK, view)
}

// GetPeriod returns the current snapshot of a period
func (h *Handler) GetPeriod(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	view := viewOf(sess)
	h.RecordUsage(c, 0, len(view.Assignments))
	c.JSON(http.StatusOK, view)
}

// GetRollups returns the per-site budget rollups of a period
func (h *Handler) GetRollups(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	rollups := sess.Rollups()
	h.RecordUsage(c, 0, 0)
	c.JSON(http.StatusOK, gin.H{
		"period_id": sess.Period().ID,
		"rollups":   rollups,
		"summary":   capacity.Summarize(rollups),
		"fairness":  sess.Fairness(),
	})
}

// GetAvailable lists the workers free on ?day=, optionally filtered by ?role=
func (h *Handler) GetAvailable(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	day, ok := parseDay(c, c.Query("day"))
	if !ok {
		return
	}
	avail, err := sess.Available(day, models.Role(c.Query("role")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.RecordUsage(c, 0, 0)
	c.JSON(http.StatusOK, avail)
}

// PlaceAssignment puts a worker on a site for a day
func (h *Handler) PlaceAssignment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req placeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, ok := parseDay(c, req.Day)
	if !ok {
		return
	}
	hours := h.DefaultHours
	if req.Hours != nil {
		hours = *req.Hours
	}

	a, err := sess.Place(req.WorkerID, req.SiteID, day, hours)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.RecordUsage(c, 1, 1)
	c.JSON(http.StatusCreated, a)
}

// UpdateAssignment reassigns and/or changes the hours of an assignment
func (h *Handler) UpdateAssignment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Hours == nil && req.SiteID == "" && req.Day == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours, site_id or day is required"})
		return
	}

	var hours float64
	if req.Hours != nil {
		// zero means "keep" to the ledger, so an explicit zero is rejected here
		if err := planning.CheckHours(*req.Hours); err != nil {
			abortWithError(c, err)
			return
		}
		hours = *req.Hours
	}
	var day time.Time
	if req.Day != "" {
		d, ok := parseDay(c, req.Day)
		if !ok {
			return
		}
		day = d
	}

	a, err := sess.Update(c.Param("aid"), req.SiteID, day, hours)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.RecordUsage(c, 1, 1)
	c.JSON(http.StatusOK, a)
}

// DeleteAssignment removes one assignment
func (h *Handler) DeleteAssignment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.RemoveAssignment(c.Param("aid")); err != nil {
		abortWithError(c, err)
		return
	}
	h.RecordUsage(c, 1, 1)
	c.Status(http.StatusNoContent)
}

// ClearCell removes every assignment of a worker on a day
func (h *Handler) ClearCell(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	day, ok := parseDay(c, c.Param("day"))
	if !ok {
		return
	}
	if err := sess.Remove(c.Param("worker"), day); err != nil {
		abortWithError(c, err)
		return
	}
	h.RecordUsage(c, 1, 0)
	c.Status(http.StatusNoContent)
}

// LockAssignment freezes one assignment
func (h *Handler) LockAssignment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	a, err := sess.Lock(c.Request.Context(), c.Param("aid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.RecordUsage(c, 1, 1)
	c.JSON(http.StatusOK, a)
}

// SetDoubleBooking toggles the intentional double-booking override of a cell
func (h *Handler) SetDoubleBooking(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req doubleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, ok := parseDay(c, req.Day)
	if !ok {
		return
	}
	if err := sess.AllowDoubleBooking(req.WorkerID, day, req.Allowed); err != nil {
		abortWithError(c, err)
		return
	}
	h.RecordUsage(c, 1, 0)
	c.JSON(http.StatusOK, gin.H{
		"conflicts": sess.Snapshot().Conflicts(),
	})
}

// LockPeriod freezes every assignment of the period or lists the blocking cells
func (h *Handler) LockPeriod(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.LockPeriod(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	view := viewOf(sess)
	h.record(audit.LevelInfo, "lock_period period=%s assignments=%d", view.Period.ID, len(view.Assignments))
	h.RecordUsage(c, 1, len(view.Assignments))
	c.JSON(http.StatusOK, view)
}

// FlushPeriod persists the period to the store
func (h *Handler) FlushPeriod(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.Flush(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	snap := sess.Snapshot()
	h.RecordUsage(c, 0, snap.Len())
	c.JSON(http.StatusOK, gin.H{
		"period_id": snap.Period().ID,
		"revision":  snap.Revision(),
		"dirty":     sess.Dirty(),
	})
}

// ListPeriods returns the IDs of the open sessions
func (h *Handler) ListPeriods(c *gin.Context) {
	h.RecordUsage(c, 0, 0)
	c.JSON(http.StatusOK, gin.H{"periods": h.Planner.Sessions()})
}

// ClosePeriod flushes an open period and drops its session. With
// ?discard=true unsaved changes are dropped instead, which is the way out of a
// stale session.
func (h *Handler) ClosePeriod(c *gin.Context) {
	id := c.Param("id")
	sess, err := h.Planner.Session(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	discard := c.Query("discard") == "true"
	if !discard {
		if err := sess.Flush(c.Request.Context()); err != nil {
			abortWithError(c, err)
			return
		}
	}
	h.Planner.Close(id)
	if discard {
		h.record(audit.LevelWarn, "discard period=%s revision=%d", id, sess.Snapshot().Revision())
	}
	h.RecordUsage(c, 0, 0)
	c.JSON(http.StatusOK, gin.H{"period_id": id, "discarded": discard})
}

// ExportCSV renders the period's assignments as CSV
func (h *Handler) ExportCSV(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	snap := sess.Snapshot()

	workers := make(map[string]string)
	for _, w := range sess.Workers() {
		workers[w.ID] = w.Name
	}
	sites := make(map[string]string)
	for _, s := range sess.Sites() {
		sites[s.ID] = s.Name
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"assignment_id", "worker_id", "worker_name", "site_id", "site_name", "day", "hours_planned", "state"})
	for _, a := range snap.Assignments() {
		w.Write([]string{
			a.ID,
			a.WorkerID,
			workers[a.WorkerID],
			a.SiteID,
			sites[a.SiteID],
			a.Day.Format(models.DateLayout),
			strconv.FormatFloat(a.HoursPlanned, 'f', -1, 64),
			string(a.State),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not render CSV"})
		return
	}

	h.RecordUsage(c, 0, snap.Len())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.Period().ID+".csv"))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}
