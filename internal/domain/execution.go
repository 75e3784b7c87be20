package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExerciseExecution is one concrete occurrence of an exercise for a client.
// (clientId, periodConfigId, exerciseId, period, week, weekday, blockNumber, orderInBlock)
// is its natural key.
type ExerciseExecution struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ExerciseID           primitive.ObjectID `bson:"exerciseId" json:"exerciseId"`
	ClientID             primitive.ObjectID `bson:"clientId" json:"clientId"`
	ActivityID           primitive.ObjectID `bson:"activityId" json:"activityId"`
	EnrollmentID         primitive.ObjectID `bson:"enrollmentId" json:"enrollmentId"`
	PeriodConfigID       primitive.ObjectID `bson:"periodConfigId" json:"periodConfigId"`
	Period               int                `bson:"period" json:"period"`
	Week                 int                `bson:"week" json:"week"`
	Weekday              Weekday            `bson:"weekday" json:"weekday"`
	BlockNumber          int                `bson:"blockNumber" json:"blockNumber"`
	OrderInBlock         int                `bson:"orderInBlock" json:"orderInBlock"`
	DetailOfSetsSnapshot string             `bson:"detailOfSetsSnapshot,omitempty" json:"detailOfSetsSnapshot,omitempty"` // Copied at materialization
	ScheduledDate        *time.Time         `bson:"scheduledDate,omitempty" json:"scheduledDate,omitempty"`
	Completed            bool               `bson:"completed" json:"completed"`
	ClientNote           string             `bson:"clientNote,omitempty" json:"clientNote,omitempty"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}
