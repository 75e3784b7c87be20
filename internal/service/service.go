// Package service holds the scheduling use cases: materializing executions, date
// regeneration, plan replication and workshop topic recovery.
package service

import (
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/repository"
)

// --- Error Definitions ---
// Handlers map these to HTTP status codes; everything returned by a service wraps one of them.
var (
	ErrValidation          = errors.New("validation failed")
	ErrForbidden           = errors.New("access denied")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("datastore unavailable")
)

// Repositories groups the persistence ports the services depend on.
type Repositories struct {
	UnitOfWork    repository.UnitOfWork
	Activities    repository.ActivityRepository
	Enrollments   repository.EnrollmentRepository
	Plans         repository.PlanRepository
	PeriodConfigs repository.PeriodConfigRepository
	Exercises     repository.ExerciseRepository
	Executions    repository.ExecutionRepository
	Topics        repository.WorkshopTopicRepository
	TopicLogs     repository.TopicLogRepository
	Replications  repository.ReplicationRepository
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// lookupError translates a repository read error. Missing rows become ErrNotFound;
// anything else is logged with its context and surfaced as ErrUpstreamUnavailable.
func lookupError(logger *slog.Logger, what string, id primitive.ObjectID, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id.Hex())
	}
	return upstreamError(logger, "load "+what, err, "id", id.Hex())
}

func upstreamError(logger *slog.Logger, op string, err error, attrs ...any) error {
	logger.Error("datastore call failed", append([]any{"op", op, "error", err}, attrs...)...)
	return fmt.Errorf("%w: %s", ErrUpstreamUnavailable, op)
}
