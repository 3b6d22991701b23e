package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pitstop/internal/shopapi"
)

func TestFilename(t *testing.T) {
	ts := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "appointments_2025-06.xlsx", Filename(ts))
}

func TestWriteAppointments(t *testing.T) {
	appts := []shopapi.Appointment{
		{ID: 1, VehicleID: 7, ServiceType: "oil_change", Status: shopapi.StatusConfirmed,
			Date: "2025-06-10", Start: "09:00", End: "10:00", Notes: "check wipers too"},
		{ID: 2, VehicleID: 7, ServiceType: "brake_service", Status: shopapi.StatusCompleted,
			Date: "2025-05-02", Start: "14:00", End: "15:30"},
		{ID: 3, VehicleID: 8, ServiceType: "tire_rotation", Status: shopapi.StatusCancelled,
			Date: "2025-04-20", Start: "11:00", End: "11:45"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAppointments(&buf, appts))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Upcoming", "History"}, f.GetSheetList())

	// Header row on the upcoming sheet.
	got, err := f.GetCellValue("Upcoming", "A1")
	require.NoError(t, err)
	assert.Equal(t, "ID", got)

	// The confirmed appointment lands on Upcoming with a readable label.
	svc, err := f.GetCellValue("Upcoming", "E2")
	require.NoError(t, err)
	assert.Equal(t, "Oil Change", svc)
	notes, err := f.GetCellValue("Upcoming", "H2")
	require.NoError(t, err)
	assert.Equal(t, "check wipers too", notes)

	// Completed and cancelled go to History.
	id1, err := f.GetCellValue("History", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2", id1)
	id2, err := f.GetCellValue("History", "A3")
	require.NoError(t, err)
	assert.Equal(t, "3", id2)

	// No third row on Upcoming.
	empty, err := f.GetCellValue("Upcoming", "A3")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestWriteAppointmentsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAppointments(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.ElementsMatch(t, []string{"Upcoming", "History"}, f.GetSheetList())
}
