package repository

import (
	"alcyxob/coach-scheduler/internal/domain" // Import our defined domain models
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrInvalidInput = RepositoryError("invalid input")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UnitOfWork runs a group of writes atomically. Repositories called with the ctx handed
// to fn take part in the same transaction.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// ActivityRepository reads coach activities.
type ActivityRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Activity, error)
}

// EnrollmentRepository reads client enrollments and records their start date.
type EnrollmentRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Enrollment, error)
	SetStartDate(ctx context.Context, id primitive.ObjectID, startDate time.Time) error
}

// PlanRepository manages the weekly plan rows of an activity, one per week number.
type PlanRepository interface {
	GetByActivityID(ctx context.Context, activityID primitive.ObjectID) ([]domain.WeeklyPlanEntry, error)
	GetWeek(ctx context.Context, activityID primitive.ObjectID, weekNumber int) (*domain.WeeklyPlanEntry, error)
	// UpsertWeek writes all day payloads of (activityId, weekNumber), creating the row if needed.
	UpsertWeek(ctx context.Context, entry *domain.WeeklyPlanEntry) error
	DeleteWeek(ctx context.Context, activityID primitive.ObjectID, weekNumber int) error
}

// PeriodConfigRepository manages the per-activity replication count.
type PeriodConfigRepository interface {
	GetByActivityID(ctx context.Context, activityID primitive.ObjectID) (*domain.PeriodConfig, error)
	SetPeriodCount(ctx context.Context, activityID primitive.ObjectID, count int) (*domain.PeriodConfig, error)
	DeleteByActivityID(ctx context.Context, activityID primitive.ObjectID) error
}

// ExerciseRepository reads exercise definitions.
type ExerciseRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ExerciseDefinition, error)
	// GetByIDs returns the definitions found, keyed by id. Missing ids are simply absent.
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.ExerciseDefinition, error)
}

// ExecutionRepository manages materialized exercise executions.
type ExecutionRepository interface {
	// InsertIfAbsent creates the execution unless one with the same natural key exists.
	// It reports whether a row was created; existing rows are left untouched.
	InsertIfAbsent(ctx context.Context, execution *domain.ExerciseExecution) (bool, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ExerciseExecution, error)
	GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.ExerciseExecution, error)
	SetScheduledDate(ctx context.Context, id primitive.ObjectID, date *time.Time) error
	UpdateProgress(ctx context.Context, id primitive.ObjectID, completed *bool, clientNote *string) error
}

// WorkshopTopicRepository manages workshop topic definitions.
type WorkshopTopicRepository interface {
	GetByActivityID(ctx context.Context, activityID primitive.ObjectID) ([]domain.WorkshopTopic, error)
	GetAll(ctx context.Context) ([]domain.WorkshopTopic, error)
	// UpsertByName finds the topic by (activityId, name); it overwrites the primary
	// schedule, description and active flag, or inserts a new topic. Reports whether it inserted.
	UpsertByName(ctx context.Context, topic *domain.WorkshopTopic) (bool, error)
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) error
}

// TopicLogRepository reads workshop attendance logs.
type TopicLogRepository interface {
	GetByActivityID(ctx context.Context, activityID primitive.ObjectID) ([]domain.TopicExecutionLog, error)
}

// ReplicationRepository stores the undo information of exercise replications.
type ReplicationRepository interface {
	Create(ctx context.Context, record *domain.ReplicationRecord) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ReplicationRecord, error)
	GetActiveByActivityID(ctx context.Context, activityID primitive.ObjectID) ([]domain.ReplicationRecord, error)
	MarkReverted(ctx context.Context, id primitive.ObjectID, at time.Time) error
}
