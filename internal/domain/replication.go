package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReplicationType selects what an exercise replication copies.
type ReplicationType string

const (
	ReplicationWeeks   ReplicationType = "weeks"   // Copy plan weeks onto other week numbers
	ReplicationPeriods ReplicationType = "periods" // Change how many times the whole plan repeats
)

// ReplicationRecord remembers one row changed by a replication so it can be reverted.
type ReplicationRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActivityID primitive.ObjectID `bson:"activityId" json:"activityId"`
	CoachID    primitive.ObjectID `bson:"coachId" json:"coachId"`
	BatchID    string             `bson:"batchId" json:"batchId"` // Shared by every record of one request
	Type       ReplicationType    `bson:"type" json:"type"`

	// weeks
	SourceWeek   int              `bson:"sourceWeek,omitempty" json:"sourceWeek,omitempty"`
	TargetWeek   int              `bson:"targetWeek,omitempty" json:"targetWeek,omitempty"`
	PreviousWeek *WeeklyPlanEntry `bson:"previousWeek,omitempty" json:"-"` // nil when the target week did not exist

	// periods
	PreviousPeriodCount int `bson:"previousPeriodCount,omitempty" json:"previousPeriodCount,omitempty"` // 0 when no config existed
	NewPeriodCount      int `bson:"newPeriodCount,omitempty" json:"newPeriodCount,omitempty"`

	Reverted   bool       `bson:"reverted" json:"reverted"`
	RevertedAt *time.Time `bson:"revertedAt,omitempty" json:"revertedAt,omitempty"`
	CreatedAt  time.Time  `bson:"createdAt" json:"createdAt"`
}
