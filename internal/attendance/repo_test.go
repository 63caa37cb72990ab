package attendance

import (
	"database/sql"
	"fmt"
	"testing"
	"time"
)

// row feeds fixed column values to the scan helpers.
type row []any

func (r row) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("scan: %d columns, %d destinations", len(r), len(dest))
	}
	for i, v := range r {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *time.Time:
			*d = v.(time.Time)
		case *sql.NullTime:
			*d = v.(sql.NullTime)
		case *sql.NullString:
			*d = v.(sql.NullString)
		case *[]byte:
			if v != nil {
				*d = v.([]byte)
			}
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func TestScanRecordRebuildsSchoolDay(t *testing.T) {
	school := time.FixedZone("school", -5*3600)
	repo := NewPostgresRepository(nil, school)

	checkIn := time.Date(2024, time.May, 6, 13, 30, 0, 0, time.UTC)
	guardian, err := guardianJSON(&Guardian{ID: "g1", Name: "Jane Doe", Phone: "555"})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := repo.scanRecord(row{
		"rec-1", "S001",
		time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC),
		"Present",
		sql.NullTime{Time: checkIn, Valid: true},
		sql.NullTime{},
		[]byte(guardian.(string)),
		nil,
	})
	if err != nil {
		t.Fatal(err)
	}

	if y, m, d := rec.Date.Date(); y != 2024 || m != time.May || d != 6 || rec.Date.Location() != school || rec.Date.Hour() != 0 {
		t.Fatalf("date = %v", rec.Date)
	}
	if rec.Status != StatusPresent || rec.CheckInTime == nil || !rec.CheckInTime.Equal(checkIn) || rec.CheckInTime.Location() != school {
		t.Fatalf("record = %+v", rec)
	}
	if rec.CheckOutTime != nil || rec.CheckOutGuardian != nil {
		t.Fatalf("unexpected check-out: %+v", rec)
	}
	if rec.CheckInGuardian == nil || *rec.CheckInGuardian != (Guardian{ID: "g1", Name: "Jane Doe", Phone: "555"}) {
		t.Fatalf("guardian = %+v", rec.CheckInGuardian)
	}
	if repo.day(rec.Date) != "2024-05-06" {
		t.Fatalf("day key = %q", repo.day(rec.Date))
	}
}

func TestGuardianJSON(t *testing.T) {
	if v, err := guardianJSON(nil); v != nil || err != nil {
		t.Fatalf("nil guardian = %v, %v", v, err)
	}
	if g, err := decodeGuardian(nil); g != nil || err != nil {
		t.Fatalf("empty column = %v, %v", g, err)
	}
	if _, err := decodeGuardian([]byte("{")); err == nil {
		t.Fatal("expected malformed json to fail")
	}

	in, out, err := recordGuardians(Record{CheckOutGuardian: &Guardian{ID: "g-manual-1", Name: "Uncle Bob", Phone: "N/A"}})
	if err != nil || in != nil {
		t.Fatalf("check-in guardian = %v, %v", in, err)
	}
	g, err := decodeGuardian([]byte(out.(string)))
	if err != nil || g.Name != "Uncle Bob" || g.Phone != "N/A" {
		t.Fatalf("round trip = %+v, %v", g, err)
	}
}

func TestScanStudentDecodesGuardians(t *testing.T) {
	s, err := scanStudent(row{
		"S001", "Liam Johnson", 3,
		sql.NullString{String: "https://img/s001.jpg", Valid: true},
		sql.NullString{},
		[]byte(`[{"id":"g1","name":"Jane Doe","phone":"555"}]`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.PhotoURL != "https://img/s001.jpg" || s.Notes != "" || len(s.AuthorizedGuardians) != 1 || s.AuthorizedGuardians[0].Name != "Jane Doe" {
		t.Fatalf("student = %+v", s)
	}
}
