package project

import (
	"math"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/calendar"
)

// RentalCost pro-rates a monthly rental rate over an assignment window by
// walking it month by month: each month bills monthlyRate divided by that
// month's calendar length, times the assignment days falling in it, endpoints
// inclusive. Degenerate windows cost nothing.
func RentalCost(start, end time.Time, monthlyRate float64) float64 {
	if start.IsZero() || end.IsZero() || monthlyRate <= 0 {
		return 0
	}
	start = midnight(start)
	end = midnight(end)
	if end.Before(start) {
		return 0
	}

	var total float64
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		monthStart, monthEnd := calendar.MonthBounds(cursor.Month(), cursor.Year())
		overlapStart, overlapEnd, ok := calendar.Overlap(start, end, monthStart, monthEnd)
		if ok {
			days := int(overlapEnd.Sub(overlapStart).Hours()/24) + 1
			dailyRate := monthlyRate / float64(calendar.DaysInMonth(cursor.Month(), cursor.Year()))
			total += dailyRate * float64(days)
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return round2(total)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
