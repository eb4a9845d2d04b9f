package handlers

import (
	"net/http"

	"github.com/arnavshah/site-capacity-api/pkg/audit"
	"github.com/gin-gonic/gin"
)

// ValidatePeriod certifies locked assignments. An empty or missing
// assignment_ids list validates the whole period.
func (h *Handler) ValidatePeriod(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req struct {
		AssignmentIDs []string `json:"assignment_ids"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	count := len(req.AssignmentIDs)
	if count == 0 {
		n, err := sess.ValidatePeriod()
		if err != nil {
			abortWithError(c, err)
			return
		}
		count = n
	} else if err := sess.Validate(req.AssignmentIDs...); err != nil {
		abortWithError(c, err)
		return
	}

	actor := ""
	if claims := claimsFrom(c); claims != nil {
		actor = claims.Username
	}
	h.record(audit.LevelInfo, "validate period=%s actor=%s assignments=%d", c.Param("id"), actor, count)
	c.JSON(http.StatusOK, gin.H{
		"period_id": c.Param("id"),
		"validated": count,
	})
}

// UnlockPeriod reopens a locked period for editing
func (h *Handler) UnlockPeriod(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	if err := sess.UnlockPeriod(claims.Actor()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

// UnlockAssignment returns one frozen assignment to draft
func (h *Handler) UnlockAssignment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	a, err := sess.Unlock(c.Param("aid"), claims.Actor())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
