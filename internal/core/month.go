package core

import (
	"fmt"
	"time"
)

// MonthOrdinal is a linear month counter (year*12 + month) that makes calendar
// months comparable and steppable as plain integers.
type MonthOrdinal int

// Month is a calendar month that statistics are computed for.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth returns the month or ErrInvalidTargetMonth when it is outside the
// representable calendar range (years 1 through 9999).
func NewMonth(year, month int) (Month, error) {
	if year < 1 || year > 9999 {
		return Month{}, fmt.Errorf("%w: year %d out of range", ErrInvalidTargetMonth, year)
	}
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("%w: month %d out of range", ErrInvalidTargetMonth, month)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidTargetMonth, s)
	}
	return NewMonth(t.Year(), int(t.Month()))
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// OrdinalOf returns the month ordinal of t.
func OrdinalOf(t time.Time) MonthOrdinal {
	return MonthOrdinal(t.Year()*12 + int(t.Month()))
}

// Month converts the ordinal back to a calendar month.
func (o MonthOrdinal) Month() Month {
	n := int(o) - 1
	return Month{Year: n / 12, Month: time.Month(n%12 + 1)}
}

func (m Month) Ordinal() MonthOrdinal {
	return MonthOrdinal(m.Year*12 + int(m.Month))
}

// Start returns midnight of the first day.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight of the last day.
func (m Month) End() time.Time {
	return time.Date(m.Year, m.Month, m.Days(), 0, 0, 0, 0, time.UTC)
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return DaysIn(m.Year, m.Month)
}

func (m Month) Next() Month {
	return (m.Ordinal() + 1).Month()
}

// Add returns the month n months later (earlier for negative n).
func (m Month) Add(n int) Month {
	return (m.Ordinal() + MonthOrdinal(n)).Month()
}

// Contains reports whether t falls on any calendar day of the month.
func (m Month) Contains(t time.Time) bool {
	return MonthOf(t) == m
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// DaysIn returns the number of days of a month in the proleptic Gregorian calendar.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// wallClock drops the location so that day arithmetic works on naive
// calendar values, unaffected by DST transitions.
func wallClock(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)
}

// daysBetween returns the number of whole days from start to end, floored.
func daysBetween(start, end time.Time) int64 {
	s, e := wallClock(start), wallClock(end)
	secs := e.Unix() - s.Unix()
	if e.Nanosecond() < s.Nanosecond() {
		secs--
	}
	days := secs / 86400
	if secs < 0 && secs%86400 != 0 {
		days--
	}
	return days
}
