package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Weekday is the canonical day-of-week used by plans, executions and date math.
// Values are stored as lowercase English names.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var canonicalWeekdays = [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Weekdays returns the seven canonical weekdays, Monday first.
func Weekdays() []Weekday {
	out := make([]Weekday, len(canonicalWeekdays))
	copy(out, canonicalWeekdays[:])
	return out
}

// Index is the zero-based position of the weekday (Monday=0 … Sunday=6), or -1 when
// the value is not canonical.
func (d Weekday) Index() int {
	for i, w := range canonicalWeekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// Valid reports whether d is one of the canonical weekdays.
func (d Weekday) Valid() bool {
	return d.Index() >= 0
}

func (d Weekday) String() string {
	return string(d)
}

// UnrecognizedDayError is returned when a day name or number cannot be normalized.
type UnrecognizedDayError struct {
	Input string
}

func (e *UnrecognizedDayError) Error() string {
	return fmt.Sprintf("unrecognized day %q", e.Input)
}

// dayAliases maps diacritic-free lowercase spellings to canonical weekdays.
var dayAliases = map[string]Weekday{
	// English
	"monday": Monday, "mon": Monday,
	"tuesday": Tuesday, "tue": Tuesday,
	"wednesday": Wednesday, "wed": Wednesday,
	"thursday": Thursday, "thu": Thursday,
	"friday": Friday, "fri": Friday,
	"saturday": Saturday, "sat": Saturday,
	"sunday": Sunday, "sun": Sunday,
	// Spanish
	"lunes": Monday, "lun": Monday,
	"martes": Tuesday, "mar": Tuesday,
	"miercoles": Wednesday, "mie": Wednesday,
	"jueves": Thursday, "jue": Thursday,
	"viernes": Friday, "vie": Friday,
	"sabado": Saturday, "sab": Saturday,
	"domingo": Sunday, "dom": Sunday,
}

// NormalizeDay maps a free-form day (English or Spanish name or abbreviation, or an
// ISO number 1-7 where Monday=1) to its canonical Weekday. Matching ignores case,
// surrounding whitespace and diacritics.
func NormalizeDay(input string) (Weekday, error) {
	key := foldDay(input)
	if key == "" {
		return "", &UnrecognizedDayError{Input: input}
	}
	if n, err := strconv.Atoi(key); err == nil {
		d, numErr := WeekdayFromNumber(n)
		if numErr != nil {
			return "", &UnrecognizedDayError{Input: input}
		}
		return d, nil
	}
	if d, ok := dayAliases[key]; ok {
		return d, nil
	}
	return "", &UnrecognizedDayError{Input: input}
}

// WeekdayFromNumber maps an ISO weekday number (Monday=1 … Sunday=7).
func WeekdayFromNumber(n int) (Weekday, error) {
	if n < 1 || n > 7 {
		return "", &UnrecognizedDayError{Input: strconv.Itoa(n)}
	}
	return canonicalWeekdays[n-1], nil
}

func foldDay(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSuffix(b.String(), ".")
}
