package timeutil

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidClock = errors.New("invalid clock value")

// Day numbers used by the assistant tool schema: 1=Sunday .. 7=Saturday.
const (
	MinDayNumber = 1
	MaxDayNumber = 7
)

// ParseClock parses a zero-padded 24-hour "HH:MM" string.
func ParseClock(clock string) (hour, minute int, err error) {
	if len(clock) != 5 || clock[2] != ':' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	if _, err := fmt.Sscanf(clock, "%02d:%02d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q out of range", ErrInvalidClock, clock)
	}
	return hour, minute, nil
}

// FormatClock renders an hour and minute as zero-padded "HH:MM".
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// ClockHour returns only the hour component of an "HH:MM" string.
func ClockHour(clock string) (int, error) {
	hour, _, err := ParseClock(clock)
	return hour, err
}

// WeekStart rolls back to midnight of the most recent Sunday at or before t.
func WeekStart(t time.Time) time.Time {
	d := DateOnly(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// WeekDates returns the seven days of the week containing t, Sunday first.
func WeekDates(t time.Time) [7]time.Time {
	start := WeekStart(t)
	var dates [7]time.Time
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// ResolveDay maps a 1-indexed Sunday-based day number onto an absolute date
// in the week containing current. Out-of-range day numbers are clamped into
// 1..7 rather than rejected.
func ResolveDay(current time.Time, day int) time.Time {
	if day < MinDayNumber {
		day = MinDayNumber
	}
	if day > MaxDayNumber {
		day = MaxDayNumber
	}
	return WeekStart(current).AddDate(0, 0, day-1)
}

// Combine anchors an "HH:MM" clock onto the calendar day of date.
func Combine(date time.Time, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	d := DateOnly(date)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location()), nil
}

// Split decomposes an absolute timestamp into its calendar day and "HH:MM"
// clock, the inverse of Combine.
func Split(t time.Time) (date time.Time, clock string) {
	return DateOnly(t), FormatClock(t.Hour(), t.Minute())
}

// DateOnly truncates t to midnight of its calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

var dayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DayName returns the English name for a 1-indexed day number.
func DayName(day int) string {
	if day < MinDayNumber || day > MaxDayNumber {
		return "Unknown"
	}
	return dayNames[day-1]
}
