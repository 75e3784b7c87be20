package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/service"
)

// NewRouter builds the gin engine with the standard middleware stack and all routes.
// loc is the schedule location in which calendar dates sent by clients are read.
func NewRouter(
	logger *slog.Logger,
	jwtSecret string,
	loc *time.Location,
	executionService service.ExecutionService,
	replicationService service.ReplicationService,
	recoveryService service.TopicRecoveryService,
) (*gin.Engine, error) {
	if err := RegisterValidations(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(RequestIDMiddleware(), AccessLogMiddleware(logger), RecoveryMiddleware(logger))
	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "Route not found")
	})

	SetupRoutes(router, jwtSecret, loc, executionService, replicationService, recoveryService)
	return router, nil
}

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	loc *time.Location,
	executionService service.ExecutionService,
	replicationService service.ReplicationService,
	recoveryService service.TopicRecoveryService,
) {
	executionHandler := NewExecutionHandler(executionService, loc)
	replicationHandler := NewReplicationHandler(replicationService)
	workshopHandler := NewWorkshopHandler(recoveryService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "pong"})
	})

	protected := router.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		// --- Coach-only plan maintenance ---
		coach := protected.Group("")
		coach.Use(RoleMiddleware(domain.RoleCoach))
		{
			coach.POST("/exercise-replications", replicationHandler.Create)
			coach.GET("/exercise-replications", replicationHandler.List)
			coach.DELETE("/exercise-replications", replicationHandler.Revert)

			coach.POST("/workshop/recover-topics", workshopHandler.RecoverTopics)
		}

		// --- Enrollment schedule (client or owning coach; checked by the service) ---
		protected.POST("/regenerate-exercise-dates", executionHandler.RegenerateDates)
		protected.POST("/enrollments/:enrollmentId/executions", executionHandler.Materialize)
		protected.GET("/enrollments/:enrollmentId/calendar", executionHandler.Calendar)
		protected.GET("/enrollments/:enrollmentId/calendar/export", executionHandler.ExportCalendar)

		// --- Client progress ---
		protected.PATCH("/executions/:executionId", RoleMiddleware(domain.RoleClient), executionHandler.UpdateProgress)
	}
}
