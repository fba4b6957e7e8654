// Package export renders attendance history as spreadsheets
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"hr-attendance-bot/internal/models"
)

// SheetName is the worksheet holding the history rows
const SheetName = "Attendance"

var headers = []string{"Date", "Check in", "Check out", "Status", "Address", "Working hours"}

// HistoryWorkbook writes records into a single-sheet xlsx workbook
func HistoryWorkbook(records []models.AttendanceRecord) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "F1", bold); err != nil {
		return nil, err
	}

	for i, rec := range records {
		row := []interface{}{
			day(rec),
			clock(rec.CheckInTime),
			clock(rec.CheckOutTime),
			rec.Status,
			rec.Address,
			rec.WorkingHours,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "C", 12); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetName, "E", "E", 48); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

// FileName names an export for the given user and range start
func FileName(userID string, from time.Time) string {
	return fmt.Sprintf("attendance_%s_%s.xlsx", userID, from.Format("2006-01-02"))
}

func day(rec models.AttendanceRecord) string {
	switch {
	case rec.CheckInTime != nil:
		return rec.CheckInTime.Format("2006-01-02")
	case rec.CheckOutTime != nil:
		return rec.CheckOutTime.Format("2006-01-02")
	}
	return ""
}

func clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04:05")
}
