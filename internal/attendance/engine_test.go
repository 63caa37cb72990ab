package attendance

import (
	"errors"
	"testing"
	"time"
)

var testLoc = time.FixedZone("school", 0)

func at(day, clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", day+" "+clock, testLoc)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func testRoster() Roster {
	return NewRoster([]Student{
		{ID: "S001", Name: "Liam Johnson", Grade: 3, AuthorizedGuardians: []Guardian{{ID: "g1", Name: "Jane Doe", Phone: "555"}}},
		{ID: "S002", Name: "Olivia Smith", Grade: 5},
		{ID: "S003", Name: "Noah Williams", Grade: 3},
	})
}

func TestCheckInCheckOutScenario(t *testing.T) {
	roster := testRoster()
	var records []Record

	records, rec, err := ApplyEvent(records, roster, Event{StudentID: "S001", GuardianName: "Jane Doe", Action: CheckIn}, at("2024-05-06", "08:30:00"))
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if rec.Status != StatusPresent || rec.CheckInTime == nil || rec.CheckOutTime != nil {
		t.Fatalf("after check-in got %+v", rec)
	}
	if rec.CheckInGuardian == nil || rec.CheckInGuardian.Name != "Jane Doe" || rec.CheckInGuardian.ID != "g1" {
		t.Fatalf("expected registered guardian, got %+v", rec.CheckInGuardian)
	}

	records, rec, err = ApplyEvent(records, roster, Event{StudentID: "S001", GuardianName: "Jane Doe", Action: CheckOut}, at("2024-05-06", "15:00:00"))
	if err != nil {
		t.Fatalf("check-out: %v", err)
	}
	if rec.Status != StatusCheckedOut || rec.CheckOutTime.Before(*rec.CheckInTime) {
		t.Fatalf("after check-out got %+v", rec)
	}

	_, _, err = ApplyEvent(records, roster, Event{StudentID: "S001", GuardianName: "Jane Doe", Action: CheckOut}, at("2024-05-06", "15:05:00"))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record for the day, got %d", len(records))
	}
}

func TestApplyEventKeepsOneRecordPerStudentDay(t *testing.T) {
	roster := testRoster()
	var records []Record
	day := "2024-05-06"
	events := []Event{
		{StudentID: "S001", GuardianName: "Jane Doe", Action: CheckIn},
		{StudentID: "s002", GuardianName: "Someone", Action: CheckIn},
		{StudentID: "S001", GuardianName: "Jane Doe", Action: CheckIn},
		{StudentID: "S002", GuardianName: "Someone", Action: CheckOut},
		{StudentID: "S003", GuardianName: "Someone", Action: CheckOut},
		{StudentID: "S001", GuardianName: "Jane Doe", Action: CheckOut},
	}
	for i, ev := range events {
		records, _, _ = ApplyEvent(records, roster, ev, at(day, "09:00:00").Add(time.Duration(i)*time.Minute))
	}
	seen := map[string]int{}
	for _, rec := range records {
		seen[rec.StudentID+dayKey(rec.Date)]++
	}
	for k, n := range seen {
		if n > 1 {
			t.Fatalf("%s has %d records", k, n)
		}
	}
	if len(records) != 2 {
		t.Fatalf("expected records for S001 and S002 only, got %d", len(records))
	}
}

func TestApplyEventUnknownStudent(t *testing.T) {
	_, _, err := ApplyEvent(nil, testRoster(), Event{StudentID: "S999", GuardianName: "X", Action: CheckIn}, at("2024-05-06", "08:00:00"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransitionCheckOutAbsentLeavesRecord(t *testing.T) {
	s := testRoster()["S001"]
	rec := NewDayRecord(s.ID, at("2024-05-06", "00:00:00"))
	got, err := Transition(rec, s, Event{StudentID: s.ID, GuardianName: "Jane Doe", Action: CheckOut}, at("2024-05-06", "10:00:00"))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if got.Status != StatusAbsent || got.CheckOutTime != nil {
		t.Fatalf("record changed: %+v", got)
	}
}

func TestTransitionErrors(t *testing.T) {
	s := testRoster()["S001"]
	now := at("2024-05-06", "10:00:00")
	present := Record{StudentID: s.ID, Status: StatusPresent, CheckInTime: ptr(now)}
	out := Record{StudentID: s.ID, Status: StatusCheckedOut, CheckInTime: ptr(now), CheckOutTime: ptr(now)}

	cases := []struct {
		name string
		rec  Record
		ev   Event
		want error
		msg  string
	}{
		{"check in twice", present, Event{StudentID: s.ID, GuardianName: "a", Action: CheckIn}, ErrInvalidTransition, "already present"},
		{"check in after out", out, Event{StudentID: s.ID, GuardianName: "a", Action: CheckIn}, ErrInvalidTransition, "already checked out"},
		{"check out twice", out, Event{StudentID: s.ID, GuardianName: "a", Action: CheckOut}, ErrInvalidTransition, "already checked out"},
		{"missing guardian", present, Event{StudentID: s.ID, Action: CheckOut}, ErrValidation, "guardian name is required"},
		{"unknown action", present, Event{StudentID: s.ID, GuardianName: "a", Action: "wave"}, ErrValidation, `unknown action "wave"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Transition(tc.rec, s, tc.ev, now)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if err.Error() != tc.msg {
				t.Fatalf("message = %q, want %q", err.Error(), tc.msg)
			}
		})
	}
}

func TestCheckOutNeverBeforeCheckIn(t *testing.T) {
	s := testRoster()["S001"]
	in := at("2024-05-06", "10:00:00")
	rec := Record{StudentID: s.ID, Status: StatusPresent, CheckInTime: ptr(in)}
	got, err := Transition(rec, s, Event{StudentID: s.ID, GuardianName: "Jane Doe", Action: CheckOut}, in.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if got.CheckOutTime.Before(*got.CheckInTime) {
		t.Fatalf("check-out %v before check-in %v", got.CheckOutTime, got.CheckInTime)
	}
}

func TestResolveGuardianTransient(t *testing.T) {
	s := testRoster()["S001"]
	if g := ResolveGuardian(s, " jane doe "); g.ID != "g1" {
		t.Fatalf("expected case-insensitive match, got %+v", g)
	}
	g := ResolveGuardian(s, "Uncle Bob")
	if g.Name != "Uncle Bob" || g.Phone != "N/A" || g.ID == "" {
		t.Fatalf("unexpected transient guardian %+v", g)
	}
}

func TestClassifyLatenessBoundary(t *testing.T) {
	s := Settings{LateCheckInThreshold: TimeOfDay{Hour: 9}, LateCheckOutThreshold: TimeOfDay{Hour: 16}}
	before := at("2024-05-06", "08:59:59")
	if ClassifyLateness(&before, CheckIn, s) {
		t.Fatal("08:59:59 should not be late")
	}
	onTime := before.Add(time.Second)
	if !ClassifyLateness(&onTime, CheckIn, s) {
		t.Fatal("09:00:00 should be late")
	}
	if ClassifyLateness(nil, CheckIn, s) {
		t.Fatal("nil time is never late")
	}
	out := at("2024-05-06", "16:00:00")
	if !ClassifyLateness(&out, CheckOut, s) {
		t.Fatal("16:00 check-out should be late")
	}
}

func TestComputeTrendShape(t *testing.T) {
	end := at("2024-05-06", "12:00:00")
	buckets := ComputeTrend(nil, end, 7, DefaultSettings())
	if len(buckets) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(buckets))
	}
	for i := 1; i < len(buckets); i++ {
		if !buckets[i].Date.After(buckets[i-1].Date) {
			t.Fatalf("buckets not ascending at %d", i)
		}
	}
	if !SameDay(buckets[6].Date, end) {
		t.Fatalf("last bucket %v should be %v", buckets[6].Date, end)
	}

	entries := []Entry{
		{Record: Record{Date: Day(end), Status: StatusPresent, CheckInTime: ptr(at("2024-05-06", "09:30:00"))}},
		{Record: Record{Date: Day(end), Status: StatusAbsent}},
		{Record: Record{Date: Day(end).AddDate(0, 0, -1), Status: StatusCheckedOut}},
	}
	buckets = ComputeTrend(entries, end, 7, DefaultSettings())
	if b := buckets[6]; b.Present != 1 || b.Absent != 1 || b.Late != 1 {
		t.Fatalf("today bucket = %+v", b)
	}
	if b := buckets[5]; b.Present != 1 {
		t.Fatalf("yesterday bucket = %+v", b)
	}
}

func TestComputeRangeOverview(t *testing.T) {
	s := DefaultSettings()
	entries := []Entry{
		{Record: Record{Date: at("2024-05-06", "00:00:00"), Status: StatusCheckedOut,
			CheckInTime: ptr(at("2024-05-06", "09:10:00")), CheckOutTime: ptr(at("2024-05-06", "16:30:00"))}},
		{Record: Record{Date: at("2024-05-06", "00:00:00"), Status: StatusPresent, CheckInTime: ptr(at("2024-05-06", "08:10:00"))}},
		{Record: Record{Date: at("2024-05-07", "00:00:00"), Status: StatusAbsent}},
	}
	ov := ComputeRangeOverview(entries, at("2024-05-06", "13:00:00"), at("2024-05-06", "13:00:00"), s)
	if ov.StatusCounts[StatusCheckedOut] != 1 || ov.StatusCounts[StatusPresent] != 1 || ov.StatusCounts[StatusAbsent] != 0 {
		t.Fatalf("status counts = %v", ov.StatusCounts)
	}
	if _, ok := ov.StatusCounts[StatusAbsent]; !ok {
		t.Fatal("every status should be present in the counts")
	}
	if ov.LateCheckIns != 1 || ov.LateCheckOuts != 1 {
		t.Fatalf("late counts = %d/%d", ov.LateCheckIns, ov.LateCheckOuts)
	}
}

func TestScopeForUser(t *testing.T) {
	roster := testRoster()
	var entries []Entry
	for _, s := range roster {
		entries = append(entries, Entry{Record: Record{StudentID: s.ID}, Student: s})
	}

	teacher := User{Role: RoleTeacher, Grade: 3}
	for _, e := range ScopeForUser(entries, teacher) {
		if e.Student.Grade != 3 {
			t.Fatalf("teacher saw grade %d", e.Student.Grade)
		}
	}
	if n := len(ScopeForUser(entries, teacher)); n != 2 {
		t.Fatalf("expected 2 grade 3 entries, got %d", n)
	}
	for _, role := range []Role{RoleStaff, RoleAdmin, RoleSuperAdmin} {
		got := ScopeForUser(entries, User{Role: role})
		if len(got) != len(entries) || (len(got) > 0 && &got[0] != &entries[0]) {
			t.Fatalf("%s scope should be the identity", role)
		}
	}
}

func TestDailyAbsenteeism(t *testing.T) {
	roster := testRoster()
	day := at("2024-05-06", "00:00:00")
	entries := Join([]Record{
		{StudentID: "S001", Date: day, Status: StatusPresent},
		{StudentID: "S002", Date: day, Status: StatusAbsent},
		{StudentID: "S003", Date: day, Status: StatusCheckedOut},
		{StudentID: "S003", Date: day.AddDate(0, 0, 1), Status: StatusAbsent},
	}, roster)
	got := DailyAbsenteeism(entries, day)
	if len(got) != 1 || got[0].ID != "S002" {
		t.Fatalf("absenteeism = %+v", got)
	}
}

func TestMonthlyPerfectAttendance(t *testing.T) {
	students := []Student{{ID: "S001", Name: "A"}, {ID: "S002", Name: "B"}}
	if got := MonthlyPerfectAttendance(nil, students, 2024, time.May); len(got) != 0 {
		t.Fatalf("no school days should mean no students, got %+v", got)
	}

	d1, d2 := at("2024-05-06", "00:00:00"), at("2024-05-07", "00:00:00")
	roster := NewRoster(students)
	entries := Join([]Record{
		{StudentID: "S001", Date: d1, Status: StatusPresent},
		{StudentID: "S001", Date: d2, Status: StatusCheckedOut},
		{StudentID: "S002", Date: d1, Status: StatusPresent},
		{StudentID: "S002", Date: d2, Status: StatusAbsent},
		{StudentID: "S002", Date: at("2024-06-03", "00:00:00"), Status: StatusPresent},
	}, roster)
	got := MonthlyPerfectAttendance(entries, students, 2024, time.May)
	if len(got) != 1 || got[0].ID != "S001" {
		t.Fatalf("perfect attendance = %+v", got)
	}
}

func TestMonthlyPerfectAttendanceMissingRecord(t *testing.T) {
	students := []Student{{ID: "S001", Name: "A"}, {ID: "S002", Name: "B"}}
	d1, d2 := at("2024-05-06", "00:00:00"), at("2024-05-07", "00:00:00")
	// S002 has no record at all on d2, which is still a school day.
	entries := Join([]Record{
		{StudentID: "S001", Date: d1, Status: StatusPresent},
		{StudentID: "S001", Date: d2, Status: StatusPresent},
		{StudentID: "S002", Date: d1, Status: StatusCheckedOut},
	}, NewRoster(students))
	got := MonthlyPerfectAttendance(entries, students, 2024, time.May)
	if len(got) != 1 || got[0].ID != "S001" {
		t.Fatalf("perfect attendance = %+v", got)
	}
}

func TestLateArrivals(t *testing.T) {
	roster := testRoster()
	day := at("2024-05-06", "00:00:00")
	entries := Join([]Record{
		{StudentID: "S001", Date: day, Status: StatusAbsent},
		{StudentID: "S002", Date: day, Status: StatusPresent},
	}, roster)
	if got := LateArrivals(entries, at("2024-05-06", "08:30:00"), DefaultSettings()); len(got) != 0 {
		t.Fatalf("nobody is late before the threshold, got %+v", got)
	}
	got := LateArrivals(entries, at("2024-05-06", "09:30:00"), DefaultSettings())
	if len(got) != 1 || got[0].ID != "S001" {
		t.Fatalf("late arrivals = %+v", got)
	}
}

func TestSearchAndSort(t *testing.T) {
	roster := testRoster()
	day := at("2024-05-06", "00:00:00")
	jane := &Guardian{Name: "Jane Doe"}
	entries := Join([]Record{
		{StudentID: "S001", Date: day, Status: StatusPresent, CheckInTime: ptr(at("2024-05-06", "08:40:00")), CheckInGuardian: jane},
		{StudentID: "S002", Date: day, Status: StatusAbsent},
		{StudentID: "S003", Date: day, Status: StatusPresent, CheckInTime: ptr(at("2024-05-06", "08:10:00"))},
	}, roster)

	if got := Search(entries, "JANE"); len(got) != 1 || got[0].StudentID != "S001" {
		t.Fatalf("guardian search = %+v", got)
	}
	if got := Search(entries, "s00"); len(got) != 3 {
		t.Fatalf("id search matched %d", len(got))
	}

	SortEntries(entries, SortCheckIn, true)
	if entries[0].StudentID != "S001" || entries[2].StudentID != "S002" {
		t.Fatalf("desc check-in order = %s,%s,%s", entries[0].StudentID, entries[1].StudentID, entries[2].StudentID)
	}
	SortEntries(entries, SortCheckIn, false)
	if entries[0].StudentID != "S003" || entries[2].StudentID != "S002" {
		t.Fatalf("asc check-in order = %s,%s,%s", entries[0].StudentID, entries[1].StudentID, entries[2].StudentID)
	}
	SortEntries(entries, SortStudentName, false)
	if entries[0].Student.Name != "Liam Johnson" {
		t.Fatalf("name order starts with %s", entries[0].Student.Name)
	}

	if _, err := ParseSortKey("bogus"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestJoinUsesCurrentStudent(t *testing.T) {
	roster := testRoster()
	rec := Record{StudentID: "S002", Date: at("2024-05-06", "00:00:00")}
	renamed := roster["S002"]
	renamed.Name = "Olivia Brown"
	roster["S002"] = renamed
	got := Join([]Record{rec, {StudentID: "GONE"}}, roster)
	if len(got) != 1 || got[0].Student.Name != "Olivia Brown" {
		t.Fatalf("join = %+v", got)
	}
}

func TestNextStudentID(t *testing.T) {
	if got := NextStudentID(nil); got != "S001" {
		t.Fatalf("got %s", got)
	}
	if got := NextStudentID([]Student{{ID: "S007"}, {ID: "S012"}, {ID: "X99"}}); got != "S013" {
		t.Fatalf("got %s", got)
	}
}
