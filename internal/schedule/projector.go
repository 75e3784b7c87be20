package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/coach-scheduler/internal/domain"
)

var ErrInvalidSlot = errors.New("invalid schedule slot")

// PeriodLengthDays is the single source of a period's length in days. A positive
// override pins it for the whole deployment; otherwise it is derived from the plan's
// week count, so a period always spans exactly one pass over the plan.
func PeriodLengthDays(weeksPerPeriod, override int) int {
	if override > 0 {
		return override
	}
	if weeksPerPeriod < 1 {
		weeksPerPeriod = 1
	}
	return weeksPerPeriod * 7
}

// ParseStartDate reads a program start date. A bare calendar date (YYYY-MM-DD) is that
// day at midnight in loc; an RFC 3339 timestamp is converted into loc first, so the
// calendar day is the one the instant falls on there.
func ParseStartDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(domain.DateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
}

// ProjectDate returns the calendar date of (period, week, weekday) for a program that
// starts on startDate. The time of day is dropped; the location is kept.
func ProjectDate(startDate time.Time, period, week int, weekday domain.Weekday, periodLengthDays int) (time.Time, error) {
	if period < 1 || week < 1 {
		return time.Time{}, fmt.Errorf("%w: period %d week %d", ErrInvalidSlot, period, week)
	}
	if periodLengthDays < 1 {
		return time.Time{}, fmt.Errorf("%w: period length %d days", ErrInvalidSlot, periodLengthDays)
	}
	idx := weekday.Index()
	if idx < 0 {
		return time.Time{}, fmt.Errorf("%w: weekday %q", ErrInvalidSlot, weekday)
	}
	offset := (period-1)*periodLengthDays + (week-1)*7 + idx
	y, m, d := startDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, startDate.Location()).AddDate(0, 0, offset), nil
}

// Less orders two replicated units canonically.
func Less(a, b ReplicatedUnit) bool {
	if a.Period != b.Period {
		return a.Period < b.Period
	}
	if a.Week != b.Week {
		return a.Week < b.Week
	}
	if a.Weekday.Index() != b.Weekday.Index() {
		return a.Weekday.Index() < b.Weekday.Index()
	}
	if a.Block != b.Block {
		return a.Block < b.Block
	}
	return a.OrderInBlock < b.OrderInBlock
}
