package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
)

func sampleEntries() []attendance.Entry {
	in := time.Date(2024, time.May, 6, 8, 5, 0, 0, time.UTC)
	out := time.Date(2024, time.May, 6, 15, 30, 0, 0, time.UTC)
	jane := &attendance.Guardian{ID: "g1", Name: "Jane Doe"}
	return []attendance.Entry{
		{
			Record: attendance.Record{StudentID: "S001", Status: attendance.StatusCheckedOut, CheckInTime: &in, CheckOutTime: &out, CheckInGuardian: jane, CheckOutGuardian: jane},
			Student: attendance.Student{ID: "S001", Name: "Liam Johnson", Grade: 3},
		},
		{
			Record:  attendance.Record{StudentID: "S002", Status: attendance.StatusAbsent},
			Student: attendance.Student{ID: "S002", Name: "Olivia Smith", Grade: 5},
		},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, sampleEntries()); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	want := []string{"S001", "Liam Johnson", "3", "Checked Out", "08:05", "15:30", "Jane Doe", "Jane Doe"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Fatalf("row 1 = %v", rows[1])
		}
	}
	if rows[2][4] != "" || rows[2][6] != "" {
		t.Fatalf("absent row should have blank times and guardians: %v", rows[2])
	}
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := XLSX(&buf, sampleEntries()); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0][0] != Header[0] || rows[1][1] != "Liam Johnson" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestFilename(t *testing.T) {
	start := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.May, 7, 23, 59, 0, 0, time.UTC)
	if got := Filename(start, end, "csv"); got != "attendance_report_2024-05-01_to_2024-05-07.csv" {
		t.Fatalf("filename = %q", got)
	}
}
