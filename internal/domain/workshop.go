package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DateLayout is the calendar-date format used for workshop slots and logs.
const DateLayout = "2006-01-02"

// ScheduleSlot is one dated session of a workshop topic.
type ScheduleSlot struct {
	Date      string `bson:"date" json:"date"`           // YYYY-MM-DD
	StartTime string `bson:"startTime" json:"startTime"` // HH:MM
	EndTime   string `bson:"endTime" json:"endTime"`     // HH:MM
	Capacity  int    `bson:"capacity" json:"capacity"`
}

// WorkshopTopic is one topic of a workshop activity with its sessions.
type WorkshopTopic struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActivityID        primitive.ObjectID `bson:"activityId" json:"activityId"`
	Name              string             `bson:"name" json:"name"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	PrimarySchedule   []ScheduleSlot     `bson:"primarySchedule" json:"primarySchedule"`
	SecondarySchedule []ScheduleSlot     `bson:"secondarySchedule,omitempty" json:"secondarySchedule,omitempty"` // Overflow/alternate sessions
	Active            bool               `bson:"active" json:"active"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// HasUpcomingSlot reports whether any primary slot falls on today (YYYY-MM-DD) or later.
// Slots with unparseable dates are ignored.
func HasUpcomingSlot(slots []ScheduleSlot, today string) bool {
	for _, slot := range slots {
		if _, err := time.Parse(DateLayout, slot.Date); err != nil {
			continue
		}
		if slot.Date >= today {
			return true
		}
	}
	return false
}

// TimeSlot is the session window a client picked.
type TimeSlot struct {
	StartTime string `bson:"startTime" json:"startTime"`
	EndTime   string `bson:"endTime" json:"endTime"`
}

// TopicExecutionLog records one client's attendance of one topic in one execution run.
type TopicExecutionLog struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ExecutionRunID      string             `bson:"executionRunId" json:"executionRunId"`
	ClientID            primitive.ObjectID `bson:"clientId" json:"clientId"`
	ActivityID          primitive.ObjectID `bson:"activityId" json:"activityId"`
	TopicID             primitive.ObjectID `bson:"topicId,omitempty" json:"topicId,omitempty"`
	TopicName           string             `bson:"topicName" json:"topicName"`
	TopicDescription    string             `bson:"topicDescription,omitempty" json:"topicDescription,omitempty"`
	AttendanceConfirmed bool               `bson:"attendanceConfirmed" json:"attendanceConfirmed"`
	Attended            bool               `bson:"attended" json:"attended"`
	ScheduledDate       string             `bson:"scheduledDate" json:"scheduledDate"` // YYYY-MM-DD
	SelectedTimeSlot    TimeSlot           `bson:"selectedTimeSlot" json:"selectedTimeSlot"`
	Capacity            *int               `bson:"capacity,omitempty" json:"capacity,omitempty"` // Older logs don't carry it
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
}
