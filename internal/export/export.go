// Package export renders attendance entries as downloadable reports.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
)

// SheetName is the worksheet holding the rows in XLSX exports.
const SheetName = "Attendance"

// Header is the column order of every export.
var Header = []string{
	"Student ID", "Student Name", "Grade", "Status",
	"Check-in Time", "Check-out Time", "Check-in Guardian", "Check-out Guardian",
}

// Filename returns the download name for a range, e.g.
// attendance_report_2024-05-01_to_2024-05-07.csv.
func Filename(start, end time.Time, ext string) string {
	return fmt.Sprintf("attendance_report_%s_to_%s.%s", start.Format(time.DateOnly), end.Format(time.DateOnly), ext)
}

// Row formats one entry in Header order.
func Row(e attendance.Entry) []string {
	return []string{
		e.Student.ID,
		e.Student.Name,
		strconv.Itoa(e.Student.Grade),
		string(e.Status),
		clock(e.CheckInTime),
		clock(e.CheckOutTime),
		guardianName(e.CheckInGuardian),
		guardianName(e.CheckOutGuardian),
	}
}

// CSV writes entries with a header line.
func CSV(w io.Writer, entries []attendance.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(Row(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes entries as a workbook with a single sheet.
func XLSX(w io.Writer, entries []attendance.Entry) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}
	if err := setRow(f, 1, Header); err != nil {
		return err
	}
	for i, e := range entries {
		if err := setRow(f, i+2, Row(e)); err != nil {
			return err
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(SheetName, cell, &vals)
}

func clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04")
}

func guardianName(g *attendance.Guardian) string {
	if g == nil {
		return ""
	}
	return g.Name
}
