// Package calendar provides the month-grid and date-bucketing helpers behind
// the calendar views. It knows nothing about rendering.
package calendar

import (
	"time"

	"pitstop/internal/shopapi"
)

// DateFormat is the wire format for calendar days.
const DateFormat = "2006-01-02"

// Day is one cell of a month grid.
type Day struct {
	Date       time.Time
	InMonth    bool
	Selectable bool
}

// MonthGrid builds a Monday-first grid of weeks for a month. Days strictly
// before today are not selectable (today is); days outside the month or past
// the booking horizon are not either.
func MonthGrid(year int, month time.Month, today time.Time, maxAdvance time.Duration) [][]Day {
	first := time.Date(year, month, 1, 0, 0, 0, 0, today.Location())
	todayMid := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	horizon := todayMid.Add(maxAdvance)

	// Walk back to the Monday on or before the 1st.
	offset := (int(first.Weekday()) + 6) % 7
	cursor := first.AddDate(0, 0, -offset)

	var weeks [][]Day
	for {
		week := make([]Day, 0, 7)
		for i := 0; i < 7; i++ {
			inMonth := cursor.Month() == month
			selectable := inMonth &&
				!cursor.Before(todayMid) &&
				(maxAdvance <= 0 || !cursor.After(horizon))
			week = append(week, Day{Date: cursor, InMonth: inMonth, Selectable: selectable})
			cursor = cursor.AddDate(0, 0, 1)
		}
		weeks = append(weeks, week)
		if cursor.Month() != month {
			break
		}
	}
	return weeks
}

// NextMonth and PrevMonth step the displayed month.
func NextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

func PrevMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// BucketByDay groups appointments by their calendar date for the monthly
// view. Order within a day follows the input order (the backend returns
// appointments sorted by start time).
func BucketByDay(appts []shopapi.Appointment) map[string][]shopapi.Appointment {
	buckets := make(map[string][]shopapi.Appointment, len(appts))
	for _, a := range appts {
		buckets[a.Date] = append(buckets[a.Date], a)
	}
	return buckets
}
