/*
Package calendar provides day-granularity dates and the first-payment date picker.

PURPOSE:
  The quote engine only ever reasons about calendar days: "is the first payment
  today or later?", "how many days does February have this year?". This package
  keeps that arithmetic in one place so the engine never touches wall-clock time
  directly.

KEY CONCEPTS:
  - Date:      A calendar day (year, month, day) with no time-of-day or zone.
  - Rules:     The option ranges a picker offers, anchored on "today".
  - Selection: The three picker fields (day, month, year), each possibly unset.

SEE ALSO:
  - picker.go: Selection state machine
  - quote/engine.go: Uses Rules to validate the first-payment date
*/
package calendar

import "time"

// =============================================================================
// DATE - Day granularity calendar date
// =============================================================================

const dateLayout = "2006-01-02"

type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// FromTime returns the calendar day of t in t's own location.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Today returns the current day as seen from loc.
func Today(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(now.In(loc))
}

func (d Date) Before(other Date) bool { return d.Time().Before(other.Time()) }

func (d Date) Time() time.Time { return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC) }
func (d Date) String() string { return d.Time().Format(dateLayout) }

// Valid reports whether the fields name a real day (no Feb 30, no month 13).
func (d Date) Valid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return d.Day <= DaysIn(d.Year, d.Month)
}

// =============================================================================
// MONTH UTILITIES
// =============================================================================

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysIn returns the number of days in month of year, accounting for leap years.
// month must be January through December.
func DaysIn(year int, month time.Month) int {
	if month == time.February && IsLeapYear(year) {
		return 29
	}
	return monthDays[month-1]
}

// IsLeapYear applies the Gregorian rule: every 4th year, except centuries not
// divisible by 400.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
