package common

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar-date layout used on the wire and in
// partition keys.
const DateLayout = "2006-01-02"

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to midnight UTC of its calendar day (in t's location).
func Day(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders a calendar day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// YearsBetween lists every calendar year in [from.Year(), to.Year()],
// ascending. It is empty when to is before from.
func YearsBetween(from, to time.Time) []int {
	if to.Year() < from.Year() {
		return nil
	}
	years := make([]int, 0, to.Year()-from.Year()+1)
	for y := from.Year(); y <= to.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// InRange reports whether d lies in [from, to], both ends inclusive,
// comparing calendar days only.
func InRange(d, from, to time.Time) bool {
	d, from, to = Day(d), Day(from), Day(to)
	return !d.Before(from) && !d.After(to)
}
