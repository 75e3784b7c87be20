// Package schedule expands a coach's weekly plan into the ordered, dated sequence of
// exercise occurrences a client executes. Everything here is pure; persistence lives
// in the service layer.
package schedule

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/domain"
)

// ScheduleUnit is one exercise slot of the weekly plan.
type ScheduleUnit struct {
	Week         int
	Weekday      domain.Weekday
	Block        int
	OrderInBlock int
	ExerciseID   primitive.ObjectID
}

// DaySkip describes a weekday payload that could not be decoded and was left out.
type DaySkip struct {
	Week    int
	Weekday domain.Weekday
	Err     error
}

func (s DaySkip) Error() string {
	return fmt.Sprintf("week %d %s: %v", s.Week, s.Weekday, s.Err)
}

// ParsePlan flattens plan entries into schedule units ordered by week, canonical
// weekday, block number and in-block order. A corrupt weekday is reported in the
// returned skips and does not affect the rest of the plan.
func ParsePlan(entries []domain.WeeklyPlanEntry) ([]ScheduleUnit, []DaySkip) {
	sorted := make([]domain.WeeklyPlanEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].WeekNumber < sorted[j].WeekNumber })

	var (
		units []ScheduleUnit
		skips []DaySkip
	)
	for i := range sorted {
		entry := &sorted[i]
		for _, day := range domain.Weekdays() {
			plan, err := domain.ParseDayPlan(entry.Day(day))
			if err != nil {
				skips = append(skips, DaySkip{Week: entry.WeekNumber, Weekday: day, Err: err})
				continue
			}
			for _, block := range plan.Blocks {
				for _, a := range block.Assignments {
					units = append(units, ScheduleUnit{
						Week:         entry.WeekNumber,
						Weekday:      day,
						Block:        block.Number,
						OrderInBlock: a.Order,
						ExerciseID:   a.ExerciseID,
					})
				}
			}
		}
	}
	return units, skips
}

// WeeksPerPeriod is the length of one period in weeks: the highest week number in
// the plan, so gaps in week numbering still leave room for the missing weeks.
func WeeksPerPeriod(entries []domain.WeeklyPlanEntry) int {
	weeks := 0
	for _, e := range entries {
		if e.WeekNumber > weeks {
			weeks = e.WeekNumber
		}
	}
	return weeks
}
