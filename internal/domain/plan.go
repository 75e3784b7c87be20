// internal/domain/plan.go
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WeeklyPlanEntry is one week of an activity's plan. Each weekday field holds the
// day-plan payload as JSON text, exactly as coaches' editors store it.
type WeeklyPlanEntry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActivityID primitive.ObjectID `bson:"activityId" json:"activityId"`
	WeekNumber int                `bson:"weekNumber" json:"weekNumber"`
	Monday     string             `bson:"monday,omitempty" json:"monday,omitempty"`
	Tuesday    string             `bson:"tuesday,omitempty" json:"tuesday,omitempty"`
	Wednesday  string             `bson:"wednesday,omitempty" json:"wednesday,omitempty"`
	Thursday   string             `bson:"thursday,omitempty" json:"thursday,omitempty"`
	Friday     string             `bson:"friday,omitempty" json:"friday,omitempty"`
	Saturday   string             `bson:"saturday,omitempty" json:"saturday,omitempty"`
	Sunday     string             `bson:"sunday,omitempty" json:"sunday,omitempty"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Day returns the raw payload stored for a weekday.
func (e *WeeklyPlanEntry) Day(d Weekday) string {
	switch d {
	case Monday:
		return e.Monday
	case Tuesday:
		return e.Tuesday
	case Wednesday:
		return e.Wednesday
	case Thursday:
		return e.Thursday
	case Friday:
		return e.Friday
	case Saturday:
		return e.Saturday
	case Sunday:
		return e.Sunday
	}
	return ""
}

// ExerciseAssignment places an exercise inside a block.
type ExerciseAssignment struct {
	ExerciseID primitive.ObjectID
	Order      int
}

// Block is one numbered group of a day's exercises, assignments already in execution order.
type Block struct {
	Number      int
	Assignments []ExerciseAssignment
}

// DayPlan is the decoded form of a weekday payload. A zero DayPlan is the empty day.
type DayPlan struct {
	Blocks []Block // ascending by Number
}

// IsEmpty reports whether the day has nothing scheduled.
func (p DayPlan) IsEmpty() bool {
	return len(p.Blocks) == 0
}

var ErrMalformedDayPlan = errors.New("malformed day plan")

type rawAssignment struct {
	ExerciseID string `json:"exerciseId"`
	Order      int    `json:"order"`
}

// ParseDayPlan decodes a weekday payload of the form
// {"1":[{"exerciseId":"…","order":1}],"2":[…]}.
// Blocks come back in numeric order and assignments are stable-sorted by Order,
// so ties keep their position in the payload.
func ParseDayPlan(raw string) (DayPlan, error) {
	trimmed := strings.TrimSpace(raw)
	switch trimmed {
	case "", "[]", "{}", "null":
		return DayPlan{}, nil
	}

	var decoded map[string][]rawAssignment
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return DayPlan{}, fmt.Errorf("%w: %v", ErrMalformedDayPlan, err)
	}

	plan := DayPlan{Blocks: make([]Block, 0, len(decoded))}
	seen := make(map[int]bool, len(decoded))
	for key, items := range decoded {
		number, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || number < 1 {
			return DayPlan{}, fmt.Errorf("%w: block key %q is not a positive integer", ErrMalformedDayPlan, key)
		}
		if seen[number] {
			return DayPlan{}, fmt.Errorf("%w: block %d appears twice", ErrMalformedDayPlan, number)
		}
		seen[number] = true
		block := Block{Number: number, Assignments: make([]ExerciseAssignment, 0, len(items))}
		for i, item := range items {
			id, err := primitive.ObjectIDFromHex(item.ExerciseID)
			if err != nil {
				return DayPlan{}, fmt.Errorf("%w: block %d item %d: invalid exerciseId %q", ErrMalformedDayPlan, number, i, item.ExerciseID)
			}
			block.Assignments = append(block.Assignments, ExerciseAssignment{ExerciseID: id, Order: item.Order})
		}
		sort.SliceStable(block.Assignments, func(a, b int) bool {
			return block.Assignments[a].Order < block.Assignments[b].Order
		})
		if len(block.Assignments) > 0 {
			plan.Blocks = append(plan.Blocks, block)
		}
	}
	sort.Slice(plan.Blocks, func(a, b int) bool { return plan.Blocks[a].Number < plan.Blocks[b].Number })
	return plan, nil
}
