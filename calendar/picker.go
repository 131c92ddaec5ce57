package calendar

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrIncompleteDate is returned when day, month or year has not been chosen.
	ErrIncompleteDate = errors.New("first payment date incomplete")

	// ErrPastDate is returned when the composed date is strictly before today.
	ErrPastDate = errors.New("first payment date is in the past")

	// ErrInvalidDateField is returned when a picker value is outside the offered range.
	ErrInvalidDateField = errors.New("invalid date field value")
)

// DefaultYearsAhead is how many years past the current one the year picker offers.
const DefaultYearsAhead = 2

// =============================================================================
// SELECTION - One logical date picker
// =============================================================================

// Field names one of the three picker controls.
type Field string

const (
	FieldDay   Field = "day"
	FieldMonth Field = "month"
	FieldYear  Field = "year"
)

// Selection holds the picker values. Zero means "not chosen".
type Selection struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// Complete reports whether all three fields are chosen.
func (s Selection) Complete() bool { return s.Day > 0 && s.Month > 0 && s.Year > 0 }

// Date composes the selection. ok is false when a field is missing.
func (s Selection) Date() (Date, bool) {
	if !s.Complete() {
		return Date{}, false
	}
	return NewDate(s.Year, time.Month(s.Month), s.Day), true
}

// Range is an inclusive integer interval of picker options.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r Range) Contains(v int) bool { return v >= r.Min && v <= r.Max }

func (r Range) Values() []int {
	if r.Max < r.Min {
		return nil
	}
	out := make([]int, 0, r.Max-r.Min+1)
	for v := r.Min; v <= r.Max; v++ {
		out = append(out, v)
	}
	return out
}

// =============================================================================
// RULES - Option ranges anchored on today
// =============================================================================

// Rules decides which picker options are valid on a given day.
type Rules struct {
	Today      Date
	YearsAhead int
}

// NewRules builds rules for the day containing now in loc.
func NewRules(now time.Time, loc *time.Location, yearsAhead int) Rules {
	if yearsAhead < 0 {
		yearsAhead = DefaultYearsAhead
	}
	return Rules{Today: Today(now, loc), YearsAhead: yearsAhead}
}

func (r Rules) Years() Range {
	return Range{Min: r.Today.Year, Max: r.Today.Year + r.YearsAhead}
}

// Months returns the valid months for year. Months already over in the current
// year are not offered. An unset year does not constrain.
func (r Rules) Months(year int) Range {
	if year == r.Today.Year {
		return Range{Min: int(r.Today.Month), Max: 12}
	}
	return Range{Min: 1, Max: 12}
}

// Days returns the valid days for month/year. Past days of the current month are
// excluded. With month unset every day 1-31 is allowed; with year unset February
// allows 29 until a year is chosen.
func (r Rules) Days(year, month int) Range {
	if month < 1 || month > 12 {
		return Range{Min: 1, Max: 31}
	}
	last := DaysIn(2000, time.Month(month))
	if year > 0 {
		last = DaysIn(year, time.Month(month))
	}
	first := 1
	if year == r.Today.Year && time.Month(month) == r.Today.Month {
		first = r.Today.Day
	}
	return Range{Min: first, Max: last}
}

// Set applies one picker change and returns the new selection.
//
// Changing month or year re-validates the dependent fields: a value that is still
// offered is kept, otherwise it snaps to the smallest offered value. Setting a
// field to 0 clears it.
func (r Rules) Set(sel Selection, field Field, value int) (Selection, error) {
	switch field {
	case FieldYear:
		if value != 0 && !r.Years().Contains(value) {
			return sel, fmt.Errorf("%w: year %d not in %d-%d", ErrInvalidDateField, value, r.Years().Min, r.Years().Max)
		}
		sel.Year = value
		sel.Month = snap(sel.Month, r.Months(sel.Year))
		sel.Day = snap(sel.Day, r.Days(sel.Year, sel.Month))
	case FieldMonth:
		months := r.Months(sel.Year)
		if value != 0 && !months.Contains(value) {
			return sel, fmt.Errorf("%w: month %d not in %d-%d", ErrInvalidDateField, value, months.Min, months.Max)
		}
		sel.Month = value
		sel.Day = snap(sel.Day, r.Days(sel.Year, sel.Month))
	case FieldDay:
		days := r.Days(sel.Year, sel.Month)
		if value != 0 && !days.Contains(value) {
			return sel, fmt.Errorf("%w: day %d not in %d-%d", ErrInvalidDateField, value, days.Min, days.Max)
		}
		sel.Day = value
	default:
		return sel, fmt.Errorf("%w: unknown field %q", ErrInvalidDateField, field)
	}
	return sel, nil
}

// Normalize clears every field that is no longer offered, e.g. after the day
// rolled over while a session was open. The user has to pick those again.
func (r Rules) Normalize(sel Selection) Selection {
	if sel.Year != 0 && !r.Years().Contains(sel.Year) {
		sel.Year = 0
	}
	if sel.Month != 0 && !r.Months(sel.Year).Contains(sel.Month) {
		sel.Month = 0
	}
	if sel.Day != 0 && !r.Days(sel.Year, sel.Month).Contains(sel.Day) {
		sel.Day = 0
	}
	return sel
}

// Validate accepts the selection only if it is complete, names a real day and is
// not before today.
func (r Rules) Validate(sel Selection) (Date, error) {
	d, ok := sel.Date()
	if !ok {
		return Date{}, ErrIncompleteDate
	}
	if !d.Valid() {
		return Date{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDateField, sel.Year, sel.Month, sel.Day)
	}
	if d.Before(r.Today) {
		return Date{}, fmt.Errorf("%w: %s before %s", ErrPastDate, d, r.Today)
	}
	return d, nil
}

func snap(v int, rng Range) int {
	if v == 0 || rng.Contains(v) {
		return v
	}
	return rng.Min
}
