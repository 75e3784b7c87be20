package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/service"
)

// WorkshopHandler exposes workshop topic recovery.
type WorkshopHandler struct {
	recoveryService service.TopicRecoveryService
}

// NewWorkshopHandler creates a new WorkshopHandler.
func NewWorkshopHandler(recoveryService service.TopicRecoveryService) *WorkshopHandler {
	return &WorkshopHandler{recoveryService: recoveryService}
}

// RecoverTopicsRequest is the body of POST /workshop/recover-topics.
type RecoverTopicsRequest struct {
	ActividadID string `json:"actividad_id" binding:"required,objectid"`
	Restore     bool   `json:"restore"`
}

// RecoverTopics rebuilds workshop topics from attendance logs. Without "restore" it
// only previews them.
// @Router /workshop/recover-topics [post]
func (h *WorkshopHandler) RecoverTopics(c *gin.Context) {
	var req RecoverTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, bindingMessage(err))
		return
	}
	coachID, err := actorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify coach from token.")
		return
	}
	activityID, _ := primitive.ObjectIDFromHex(req.ActividadID)

	mode := service.ModePreview
	if req.Restore {
		mode = service.ModeRestore
	}
	result, err := h.recoveryService.Recover(c.Request.Context(), coachID, activityID, mode)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"mode":          result.Mode,
		"topics":        result.Topics,
		"insertedCount": result.InsertedCount,
		"updatedCount":  result.UpdatedCount,
		"failed":        result.Failed,
	})
}
