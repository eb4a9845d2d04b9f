package handlers

import (
	"errors"
	"net/http"

	"github.com/arnavshah/site-capacity-api/pkg/planner"
	"github.com/arnavshah/site-capacity-api/pkg/planning"
	"github.com/arnavshah/site-capacity-api/pkg/store"
	"github.com/gin-gonic/gin"
)

// statusOf maps planning errors onto HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, planning.ErrInvalidHours),
		errors.Is(err, planning.ErrInvalidPeriod),
		errors.Is(err, planning.ErrUnknownReference):
		return http.StatusBadRequest
	case errors.Is(err, planning.ErrLoad):
		return http.StatusUnprocessableEntity
	case errors.Is(err, planning.ErrAssignmentNotFound),
		errors.Is(err, planner.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, planning.ErrImmutableCell),
		errors.Is(err, planning.ErrInvalidTransition),
		errors.Is(err, planning.ErrUnresolvedConflict),
		errors.Is(err, planner.ErrPeriodOverlap),
		errors.Is(err, store.ErrStale):
		return http.StatusConflict
	case errors.Is(err, planning.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, store.ErrPersist):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}

	var unresolved *planning.UnresolvedConflictError
	if errors.As(err, &unresolved) {
		body["cells"] = unresolved.Cells
	}
	c.AbortWithStatusJSON(statusOf(err), body)
}
