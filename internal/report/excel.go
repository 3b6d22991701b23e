// Package report exports a customer's appointment history as an Excel
// workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"pitstop/internal/catalog"
	"pitstop/internal/shopapi"
)

var header = []string{"ID", "Date", "Start", "End", "Service", "Vehicle ID", "Status", "Notes"}

// Filename builds the export file name, e.g. "appointments_2026-08.xlsx".
func Filename(t time.Time) string {
	return fmt.Sprintf("appointments_%s.xlsx", t.Format("2006-01"))
}

// WriteAppointments writes a workbook with upcoming and past appointments on
// separate sheets.
func WriteAppointments(w io.Writer, appts []shopapi.Appointment) error {
	f := excelize.NewFile()
	defer f.Close()

	var upcoming, history []shopapi.Appointment
	for _, a := range appts {
		switch a.Status {
		case shopapi.StatusCompleted, shopapi.StatusCancelled:
			history = append(history, a)
		default:
			upcoming = append(upcoming, a)
		}
	}

	f.SetSheetName("Sheet1", "Upcoming")
	if err := writeSheet(f, "Upcoming", upcoming); err != nil {
		return err
	}
	if _, err := f.NewSheet("History"); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeSheet(f, "History", history); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, appts []shopapi.Appointment) error {
	for i, col := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = f.SetCellStyle(sheet, start, end, style)
	}

	for row, a := range appts {
		values := []any{a.ID, a.Date, a.Start, a.End, serviceLabel(a.ServiceType), a.VehicleID, a.Status, a.Notes}
		for col, val := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}
	return nil
}

func serviceLabel(code string) string {
	if st, ok := catalog.ByCode(code); ok {
		return st.Label
	}
	return code
}
