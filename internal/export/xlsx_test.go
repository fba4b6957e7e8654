package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"hr-attendance-bot/internal/models"
)

func TestHistoryWorkbook(t *testing.T) {
	in := time.Date(2026, 2, 3, 8, 1, 2, 0, time.Local)
	out := time.Date(2026, 2, 3, 17, 30, 0, 0, time.Local)
	records := []models.AttendanceRecord{
		{CheckInTime: &in, CheckOutTime: &out, Status: "PRESENT", Address: "Le Loi, District 1", WorkingHours: 8.5},
		{CheckInTime: &in, Status: "LATE"},
	}

	buf, err := HistoryWorkbook(records)
	if err != nil {
		t.Fatalf("HistoryWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	if name := f.GetSheetName(0); name != SheetName {
		t.Errorf("sheet = %q, want %q", name, SheetName)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	want := [][]string{
		{"Date", "Check in", "Check out", "Status", "Address", "Working hours"},
		{"2026-02-03", "08:01:02", "17:30:00", "PRESENT", "Le Loi, District 1", "8.5"},
	}
	for r, row := range want {
		for c, v := range row {
			if rows[r][c] != v {
				t.Errorf("cell(%d,%d) = %q, want %q", r+1, c+1, rows[r][c], v)
			}
		}
	}
	if rows[2][2] != "" || rows[2][3] != "LATE" {
		t.Errorf("second record row = %q", rows[2])
	}
}

func TestHistoryWorkbookEmpty(t *testing.T) {
	buf, err := HistoryWorkbook(nil)
	if err != nil {
		t.Fatalf("HistoryWorkbook() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows, want header only", len(rows))
	}
}

func TestFileName(t *testing.T) {
	got := FileName("42", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if got != "attendance_42_2026-02-01.xlsx" {
		t.Errorf("FileName() = %q", got)
	}
}
