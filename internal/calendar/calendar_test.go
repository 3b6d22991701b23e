package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitstop/internal/shopapi"
)

func TestMonthGrid(t *testing.T) {
	// June 2025: the 1st is a Sunday, so the grid starts on Monday May 26.
	today := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	weeks := MonthGrid(2025, time.June, today, 30*24*time.Hour)

	require.NotEmpty(t, weeks)
	for _, week := range weeks {
		require.Len(t, week, 7)
	}

	first := weeks[0][0]
	assert.Equal(t, time.Monday, first.Date.Weekday())
	assert.Equal(t, 26, first.Date.Day())
	assert.False(t, first.InMonth)
	assert.False(t, first.Selectable)

	byDay := map[int]Day{}
	for _, week := range weeks {
		for _, d := range week {
			if d.InMonth {
				byDay[d.Date.Day()] = d
			}
		}
	}
	require.Len(t, byDay, 30)

	assert.False(t, byDay[9].Selectable, "yesterday is not selectable")
	assert.True(t, byDay[10].Selectable, "today is selectable")
	assert.True(t, byDay[11].Selectable)
	assert.True(t, byDay[30].Selectable, "within the booking horizon")
}

func TestMonthGridHorizon(t *testing.T) {
	today := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	weeks := MonthGrid(2025, time.June, today, 7*24*time.Hour)

	selectable := map[int]bool{}
	for _, week := range weeks {
		for _, d := range week {
			if d.InMonth {
				selectable[d.Date.Day()] = d.Selectable
			}
		}
	}
	assert.True(t, selectable[8], "horizon day itself is selectable")
	assert.False(t, selectable[9], "beyond the horizon")
}

func TestMonthNavigation(t *testing.T) {
	y, m := NextMonth(2025, time.December)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.January, m)

	y, m = PrevMonth(2026, time.January)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.December, m)

	y, m = NextMonth(2025, time.June)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.July, m)
}

func TestBucketByDay(t *testing.T) {
	appts := []shopapi.Appointment{
		{ID: 1, Date: "2025-06-10", Start: "09:00"},
		{ID: 2, Date: "2025-06-10", Start: "14:00"},
		{ID: 3, Date: "2025-06-12", Start: "10:00"},
	}

	byDay := BucketByDay(appts)
	require.Len(t, byDay, 2)
	require.Len(t, byDay["2025-06-10"], 2)
	assert.Equal(t, int64(1), byDay["2025-06-10"][0].ID, "input order is preserved within a day")
	require.Len(t, byDay["2025-06-12"], 1)
}
