package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ErrInvalidWindow is returned when a window does not start strictly before it ends.
var ErrInvalidWindow = errors.New("scheduler: start must be before end")

// Date is a calendar date without a time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the normalised date for the given components.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return DateOf(t), nil
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return compareInts(d.Year, other.Year)
	case d.Month != other.Month:
		return compareInts(int(d.Month), int(other.Month))
	default:
		return compareInts(d.Day, other.Day)
	}
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// DaysUntil returns the number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.In(time.UTC).Sub(d.In(time.UTC)).Hours() / 24)
}

func (d Date) String() string {
	return d.In(time.UTC).Format(dateLayout)
}

// TimeOfDay is a wall-clock offset from midnight in seconds. EndOfDay (24:00)
// is valid as the end of a window.
type TimeOfDay int

const (
	// StartOfDay is midnight at the beginning of a day.
	StartOfDay TimeOfDay = 0
	// EndOfDay is midnight at the end of a day.
	EndOfDay TimeOfDay = 24 * 60 * 60
)

// NewTimeOfDay builds a time-of-day from its components.
func NewTimeOfDay(hour, minute, second int) (TimeOfDay, error) {
	if hour < 0 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, fmt.Errorf("invalid time %02d:%02d:%02d", hour, minute, second)
	}
	t := TimeOfDay(hour*3600 + minute*60 + second)
	if t > EndOfDay {
		return 0, fmt.Errorf("invalid time %02d:%02d:%02d", hour, minute, second)
	}
	return t, nil
}

// TimeOfDayOf returns the wall-clock time of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// ParseTimeOfDay accepts HH:MM or HH:MM:SS; 24:00 denotes the end of the day.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	components := make([]int, 3)
	for i, part := range parts {
		if len(part) != 2 {
			return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
		}
		components[i] = n
	}
	t, err := NewTimeOfDay(components[0], components[1], components[2])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	return t, nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 3600 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }

// Second returns the second component.
func (t TimeOfDay) Second() int { return int(t) % 60 }

// Valid reports whether t lies within [00:00, 24:00].
func (t TimeOfDay) Valid() bool { return t >= StartOfDay && t <= EndOfDay }

func (t TimeOfDay) String() string {
	if t.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// TimeWindow is a span of wall-clock time on one calendar date. Windows are
// half-open: [start, end).
type TimeWindow struct {
	date  Date
	start TimeOfDay
	end   TimeOfDay
}

// NewTimeWindow validates and returns a window. start must be strictly before end.
func NewTimeWindow(date Date, start, end TimeOfDay) (TimeWindow, error) {
	if date.IsZero() {
		return TimeWindow{}, errors.New("scheduler: date is required")
	}
	if !start.Valid() || !end.Valid() {
		return TimeWindow{}, fmt.Errorf("scheduler: time out of range (%s-%s)", start, end)
	}
	if start >= end {
		return TimeWindow{}, ErrInvalidWindow
	}
	return TimeWindow{date: date, start: start, end: end}, nil
}

// FullDay returns the window covering all of date.
func FullDay(date Date) TimeWindow {
	return TimeWindow{date: date, start: StartOfDay, end: EndOfDay}
}

// Date returns the calendar date of the window.
func (w TimeWindow) Date() Date { return w.date }

// Start returns the inclusive start time.
func (w TimeWindow) Start() TimeOfDay { return w.start }

// End returns the exclusive end time.
func (w TimeWindow) End() TimeOfDay { return w.end }

// IsZero reports whether w was never constructed.
func (w TimeWindow) IsZero() bool { return w == TimeWindow{} }

// StartsAt returns the instant the window begins in loc.
func (w TimeWindow) StartsAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(w.date.Year, w.date.Month, w.date.Day, w.start.Hour(), w.start.Minute(), w.start.Second(), 0, loc)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s %s-%s", w.date, w.start, w.end)
}

// Overlaps reports whether a and b share any instant. Windows touching at a
// boundary do not overlap.
func Overlaps(a, b TimeWindow) bool {
	return a.date == b.date && a.start < b.end && b.start < a.end
}

// Range bounds a query. Nil fields leave that side unbounded.
type Range struct {
	DateFrom *Date
	DateTo   *Date
	TimeFrom *TimeOfDay
	TimeTo   *TimeOfDay
}

// WithinRange reports whether w's date lies in [DateFrom, DateTo] and its start
// time lies in [TimeFrom, TimeTo]. All bounds are inclusive.
func WithinRange(w TimeWindow, r Range) bool {
	if r.DateFrom != nil && w.date.Before(*r.DateFrom) {
		return false
	}
	if r.DateTo != nil && w.date.After(*r.DateTo) {
		return false
	}
	if r.TimeFrom != nil && w.start < *r.TimeFrom {
		return false
	}
	if r.TimeTo != nil && w.start > *r.TimeTo {
		return false
	}
	return true
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
