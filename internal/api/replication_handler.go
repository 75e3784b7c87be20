package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/service"
)

// ReplicationHandler holds the replication service dependency.
type ReplicationHandler struct {
	replicationService service.ReplicationService
}

// NewReplicationHandler creates a new ReplicationHandler.
func NewReplicationHandler(replicationService service.ReplicationService) *ReplicationHandler {
	return &ReplicationHandler{replicationService: replicationService}
}

// --- DTOs ---

// CreateReplicationRequest is the body of POST /exercise-replications.
// sourcePeriods and targetPeriods are week numbers; they are ignored for "periods".
type CreateReplicationRequest struct {
	ActivityID      string `json:"activityId" binding:"required,objectid"`
	SourcePeriods   []int  `json:"sourcePeriods" binding:"omitempty,dive,min=1"`
	TargetPeriods   []int  `json:"targetPeriods" binding:"omitempty,dive,min=1"`
	Repetitions     int    `json:"repetitions" binding:"required,min=1"`
	ReplicationType string `json:"replicationType" binding:"required,replication_type"`
}

// --- Handler Methods ---

// Create replicates plan weeks or changes the period count of an activity.
// @Router /exercise-replications [post]
func (h *ReplicationHandler) Create(c *gin.Context) {
	var req CreateReplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, bindingMessage(err))
		return
	}
	coachID, err := actorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify coach from token.")
		return
	}
	activityID, _ := primitive.ObjectIDFromHex(req.ActivityID) // validated by binding

	result, err := h.replicationService.Replicate(c.Request.Context(), coachID, service.ReplicationRequest{
		ActivityID:    activityID,
		SourcePeriods: req.SourcePeriods,
		TargetPeriods: req.TargetPeriods,
		Repetitions:   req.Repetitions,
		Type:          domain.ReplicationType(req.ReplicationType),
	})
	if err != nil {
		respondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "batchId": result.BatchID, "replications": result.Records})
}

// List returns the replications of an activity that can still be reverted.
// @Router /exercise-replications [get]
func (h *ReplicationHandler) List(c *gin.Context) {
	activityID, err := primitive.ObjectIDFromHex(c.Query("activity_id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "activity_id query parameter must be a valid ID")
		return
	}
	coachID, err := actorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify coach from token.")
		return
	}

	records, err := h.replicationService.List(c.Request.Context(), coachID, activityID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "replications": records})
}

// Revert undoes a single replicated row.
// @Router /exercise-replications [delete]
func (h *ReplicationHandler) Revert(c *gin.Context) {
	replicationID, err := primitive.ObjectIDFromHex(c.Query("replication_id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "replication_id query parameter must be a valid ID")
		return
	}
	coachID, err := actorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify coach from token.")
		return
	}

	record, err := h.replicationService.Revert(c.Request.Context(), coachID, replicationID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "replication": record})
}
