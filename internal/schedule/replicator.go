package schedule

import (
	"errors"
	"fmt"
)

// ReplicatedUnit is a schedule unit placed in a specific 1-based period.
type ReplicatedUnit struct {
	ScheduleUnit
	Period int
}

var ErrInvalidPeriodCount = errors.New("period count must be at least 1")

// Replicate repeats the unit sequence periodCount times. The result is ordered by
// period, then by the original unit order; that order is the canonical execution
// sequence.
func Replicate(units []ScheduleUnit, periodCount int) ([]ReplicatedUnit, error) {
	if periodCount < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPeriodCount, periodCount)
	}
	out := make([]ReplicatedUnit, 0, len(units)*periodCount)
	for period := 1; period <= periodCount; period++ {
		for _, u := range units {
			out = append(out, ReplicatedUnit{ScheduleUnit: u, Period: period})
		}
	}
	return out, nil
}
