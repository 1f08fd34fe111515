package calendar

import "time"

// WorkingDays counts weekdays (Mon-Fri) between start and end, inclusive of
// both endpoints. Returns 0 when either bound is zero or end precedes start.
func WorkingDays(start, end time.Time) int {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	start = truncate(start)
	end = truncate(end)
	if end.Before(start) {
		return 0
	}
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

// DaysInMonth returns the Gregorian day count for the given month, respecting
// leap years.
func DaysInMonth(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthBounds returns the first and last day of a month.
func MonthBounds(month time.Month, year int) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(year, month, DaysInMonth(month, year), 0, 0, 0, 0, time.UTC)
	return first, last
}

// Overlap intersects [aStart,aEnd] with [bStart,bEnd]. The returned bool is
// false when the ranges do not intersect.
func Overlap(aStart, aEnd, bStart, bEnd time.Time) (time.Time, time.Time, bool) {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
