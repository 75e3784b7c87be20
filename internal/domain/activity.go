package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivityType distinguishes what a coach is selling.
type ActivityType string

const (
	ActivityProgram  ActivityType = "program"
	ActivityWorkshop ActivityType = "workshop"
	ActivityDocument ActivityType = "document"
)

// Activity is a coach-authored purchasable program, workshop or document.
type Activity struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID   primitive.ObjectID `bson:"coachId" json:"coachId"`
	Title     string             `bson:"title" json:"title"`
	Type      ActivityType       `bson:"type" json:"type"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PeriodConfig says how many times an activity's weekly plan repeats end-to-end.
type PeriodConfig struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActivityID  primitive.ObjectID `bson:"activityId" json:"activityId"`
	PeriodCount int                `bson:"periodCount" json:"periodCount"` // >= 1
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Enrollment is a client's purchase of an activity.
type Enrollment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID   primitive.ObjectID `bson:"clientId" json:"clientId"`
	ActivityID primitive.ObjectID `bson:"activityId" json:"activityId"`
	StartDate  *time.Time         `bson:"startDate,omitempty" json:"startDate,omitempty"` // Unknown until the client picks one
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}
