package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/export"
	"alcyxob/coach-scheduler/internal/schedule"
	"alcyxob/coach-scheduler/internal/service"
)

// ExecutionHandler exposes materialization, date regeneration and the client calendar.
type ExecutionHandler struct {
	executionService service.ExecutionService
	location         *time.Location // calendar days of start dates are read here
}

// NewExecutionHandler creates a new ExecutionHandler.
func NewExecutionHandler(executionService service.ExecutionService, location *time.Location) *ExecutionHandler {
	if location == nil {
		location = time.UTC
	}
	return &ExecutionHandler{executionService: executionService, location: location}
}

// --- DTOs ---

// RegenerateDatesRequest is the body of POST /regenerate-exercise-dates.
type RegenerateDatesRequest struct {
	EnrollmentID string `json:"enrollmentId" binding:"required,objectid"`
	StartDate    string `json:"startDate" binding:"required,start_date"` // YYYY-MM-DD or RFC 3339
}

// UpdateProgressRequest is the body of PATCH /executions/:executionId.
type UpdateProgressRequest struct {
	Completed  *bool   `json:"completed"`
	ClientNote *string `json:"clientNote" binding:"omitempty,max=2000"`
}

func pathObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s format", param))
		return primitive.NilObjectID, false
	}
	return id, true
}

// --- Handler Methods ---

// Materialize creates the enrollment's execution rows. Partial failures still
// answer 200 with the failed units listed.
// @Router /enrollments/{enrollmentId}/executions [post]
func (h *ExecutionHandler) Materialize(c *gin.Context) {
	enrollmentID, ok := pathObjectID(c, "enrollmentId")
	if !ok {
		return
	}
	actorID, err := actorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	summary, err := h.executionService.Materialize(c.Request.Context(), actorID, enrollmentID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

// RegenerateDates recomputes every scheduled date of an enrollment from a new start date.
// @Router /regenerate-exercise-dates [post]
func (h *ExecutionHandler) RegenerateDates(c *gin.Context) {
	var req RegenerateDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, bindingMessage(err))
		return
	}
	actorID, err := actorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	enrollmentID, _ := primitive.ObjectIDFromHex(req.EnrollmentID)
	startDate, err := schedule.ParseStartDate(req.StartDate, h.location)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "startDate must be YYYY-MM-DD or RFC 3339")
		return
	}

	summary, err := h.executionService.RegenerateDates(c.Request.Context(), actorID, enrollmentID, startDate)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

// Calendar lists the enrollment's executions in execution order.
// @Router /enrollments/{enrollmentId}/calendar [get]
func (h *ExecutionHandler) Calendar(c *gin.Context) {
	enrollmentID, ok := pathObjectID(c, "enrollmentId")
	if !ok {
		return
	}
	actorID, err := actorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	entries, err := h.executionService.Calendar(c.Request.Context(), actorID, enrollmentID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "executions": entries})
}

// ExportCalendar downloads the calendar as an .xlsx workbook.
// @Router /enrollments/{enrollmentId}/calendar/export [get]
func (h *ExecutionHandler) ExportCalendar(c *gin.Context) {
	enrollmentID, ok := pathObjectID(c, "enrollmentId")
	if !ok {
		return
	}
	actorID, err := actorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	entries, err := h.executionService.Calendar(c.Request.Context(), actorID, enrollmentID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	buf, err := export.CalendarWorkbook(entries)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Failed to render calendar.")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="calendar-%s.xlsx"`, enrollmentID.Hex()))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// UpdateProgress marks an execution completed or stores the client's note.
// @Router /executions/{executionId} [patch]
func (h *ExecutionHandler) UpdateProgress(c *gin.Context) {
	executionID, ok := pathObjectID(c, "executionId")
	if !ok {
		return
	}
	var req UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, bindingMessage(err))
		return
	}
	clientID, err := actorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify client from token.")
		return
	}

	execution, err := h.executionService.UpdateProgress(c.Request.Context(), clientID, executionID, req.Completed, req.ClientNote)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "execution": execution})
}
