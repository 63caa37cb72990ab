package attendance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Roster indexes students by id.
type Roster map[string]Student

// NewRoster builds a roster from a student list.
func NewRoster(students []Student) Roster {
	r := make(Roster, len(students))
	for _, s := range students {
		r[s.ID] = s
	}
	return r
}

// Find resolves a student id, ignoring case.
func (r Roster) Find(id string) (Student, bool) {
	id = strings.TrimSpace(id)
	if s, ok := r[id]; ok {
		return s, true
	}
	for key, s := range r {
		if strings.EqualFold(key, id) {
			return s, true
		}
	}
	return Student{}, false
}

// Join attaches the current student to every record. Records whose student is
// no longer on the roster are dropped.
func Join(records []Record, roster Roster) []Entry {
	out := make([]Entry, 0, len(records))
	for _, rec := range records {
		s, ok := roster[rec.StudentID]
		if !ok {
			continue
		}
		out = append(out, Entry{Record: rec, Student: s})
	}
	return out
}

// NewDayRecord is the record a student has before any event that day.
func NewDayRecord(studentID string, day time.Time) Record {
	return Record{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Date:      Day(day),
		Status:    StatusAbsent,
	}
}

// ValidateEvent rejects malformed check-in/check-out requests.
func ValidateEvent(ev Event) error {
	if strings.TrimSpace(ev.StudentID) == "" {
		return invalid("student id is required")
	}
	if strings.TrimSpace(ev.GuardianName) == "" {
		return invalid("guardian name is required")
	}
	if ev.Action != CheckIn && ev.Action != CheckOut {
		return invalid("unknown action %q", ev.Action)
	}
	return nil
}

// ResolveGuardian matches name against the student's authorized guardians.
// Unknown names get a transient guardian so the event can still be recorded.
func ResolveGuardian(s Student, name string) Guardian {
	name = strings.TrimSpace(name)
	for _, g := range s.AuthorizedGuardians {
		if strings.EqualFold(strings.TrimSpace(g.Name), name) {
			return g
		}
	}
	return Guardian{ID: "g-manual-" + uuid.NewString(), Name: name, Phone: "N/A"}
}

// Transition applies ev to rec and returns the updated copy. rec is never modified.
func Transition(rec Record, s Student, ev Event, now time.Time) (Record, error) {
	if err := ValidateEvent(ev); err != nil {
		return rec, err
	}
	switch ev.Action {
	case CheckIn:
		switch rec.Status {
		case StatusPresent:
			return rec, invalidTransition("already present")
		case StatusCheckedOut:
			return rec, invalidTransition("already checked out")
		}
		g := ResolveGuardian(s, ev.GuardianName)
		t := now
		rec.Status = StatusPresent
		rec.CheckInTime = &t
		rec.CheckInGuardian = &g
		rec.CheckOutTime = nil
		rec.CheckOutGuardian = nil
	case CheckOut:
		switch rec.Status {
		case StatusAbsent:
			return rec, invalidTransition("cannot check out an absent student")
		case StatusCheckedOut:
			return rec, invalidTransition("already checked out")
		}
		g := ResolveGuardian(s, ev.GuardianName)
		t := now
		if rec.CheckInTime != nil && t.Before(*rec.CheckInTime) {
			t = *rec.CheckInTime
		}
		rec.Status = StatusCheckedOut
		rec.CheckOutTime = &t
		rec.CheckOutGuardian = &g
	}
	return rec, nil
}

// ApplyEvent runs ev against the in-memory record list. The record for the
// student and day(now) is updated in place, or synthesized as Absent and
// prepended when missing. On error records is returned untouched.
func ApplyEvent(records []Record, roster Roster, ev Event, now time.Time) ([]Record, Record, error) {
	if err := ValidateEvent(ev); err != nil {
		return records, Record{}, err
	}
	s, ok := roster.Find(ev.StudentID)
	if !ok {
		return records, Record{}, notFound("student %s not found", ev.StudentID)
	}

	idx := -1
	for i, rec := range records {
		if rec.StudentID == s.ID && SameDay(rec.Date, now) {
			idx = i
			break
		}
	}
	current := NewDayRecord(s.ID, now)
	if idx >= 0 {
		current = records[idx]
	}

	updated, err := Transition(current, s, ev, now)
	if err != nil {
		return records, current, err
	}
	if idx >= 0 {
		records[idx] = updated
		return records, updated, nil
	}
	return append([]Record{updated}, records...), updated, nil
}

// ClassifyLateness reports whether t is at or after the threshold for action,
// anchored to t's own calendar day. A nil time is never late.
func ClassifyLateness(t *time.Time, action Action, s Settings) bool {
	if t == nil {
		return false
	}
	threshold := s.LateCheckInThreshold
	if action == CheckOut {
		threshold = s.LateCheckOutThreshold
	}
	return !t.Before(threshold.On(*t))
}

// IsLate reports whether either event of rec was late.
func IsLate(rec Record, s Settings) bool {
	return ClassifyLateness(rec.CheckInTime, CheckIn, s) || ClassifyLateness(rec.CheckOutTime, CheckOut, s)
}

// ScopeForUser restricts entries to what user may see. Teachers only see their
// own grade; every other role gets the input back unchanged.
func ScopeForUser(entries []Entry, user User) []Entry {
	if user.Role != RoleTeacher {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Student.Grade == user.Grade {
			out = append(out, e)
		}
	}
	return out
}

// ScopeStudents is ScopeForUser for the roster.
func ScopeStudents(students []Student, user User) []Student {
	if user.Role != RoleTeacher {
		return students
	}
	out := make([]Student, 0, len(students))
	for _, s := range students {
		if s.Grade == user.Grade {
			out = append(out, s)
		}
	}
	return out
}

// CanSee reports whether user's scope includes student.
func CanSee(user User, s Student) bool {
	return user.Role != RoleTeacher || s.Grade == user.Grade
}

// TodayStats are the dashboard stat cards.
type TodayStats struct {
	Total      int `json:"total"`
	Present    int `json:"present"`
	CheckedOut int `json:"checked_out"`
	Absent     int `json:"absent"`
}

// ComputeTodayStats counts the records dated today by status.
func ComputeTodayStats(entries []Entry, today time.Time) TodayStats {
	var st TodayStats
	for _, e := range entries {
		if !SameDay(e.Date, today) {
			continue
		}
		st.Total++
		switch e.Status {
		case StatusPresent:
			st.Present++
		case StatusCheckedOut:
			st.CheckedOut++
		case StatusAbsent:
			st.Absent++
		}
	}
	return st
}

// TrendBucket is one day of the attendance trend chart.
type TrendBucket struct {
	Date    time.Time `json:"date"`
	Present int       `json:"present"`
	Absent  int       `json:"absent"`
	Late    int       `json:"late"`
}

// DefaultTrendWindow is the number of days on the dashboard trend chart.
const DefaultTrendWindow = 7

// ComputeTrend returns exactly windowDays buckets ending at end, oldest first.
// Days without records are zero filled.
func ComputeTrend(entries []Entry, end time.Time, windowDays int, s Settings) []TrendBucket {
	if windowDays <= 0 {
		windowDays = DefaultTrendWindow
	}
	last := Day(end)
	buckets := make([]TrendBucket, windowDays)
	index := make(map[string]int, windowDays)
	for i := 0; i < windowDays; i++ {
		d := last.AddDate(0, 0, i-windowDays+1)
		buckets[i] = TrendBucket{Date: d}
		index[dayKey(d)] = i
	}
	for _, e := range entries {
		i, ok := index[dayKey(e.Date)]
		if !ok {
			continue
		}
		if e.Status.Attended() {
			buckets[i].Present++
		} else if e.Status == StatusAbsent {
			buckets[i].Absent++
		}
		if IsLate(e.Record, s) {
			buckets[i].Late++
		}
	}
	return buckets
}

// Overview summarises a date range.
type Overview struct {
	StatusCounts  map[Status]int `json:"status_counts"`
	LateCheckIns  int            `json:"late_check_ins"`
	LateCheckOuts int            `json:"late_check_outs"`
}

// FilterRange keeps entries dated within [start, end], with start floored to
// the beginning of its day and end ceiled to the end of its day.
func FilterRange(entries []Entry, start, end time.Time) []Entry {
	from, to := Day(start), EndOfDay(end)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ComputeRangeOverview partitions the entries in the range by status and counts
// late check-ins and check-outs independently.
func ComputeRangeOverview(entries []Entry, start, end time.Time, s Settings) Overview {
	ov := Overview{StatusCounts: map[Status]int{
		StatusPresent:    0,
		StatusCheckedOut: 0,
		StatusAbsent:     0,
	}}
	for _, e := range FilterRange(entries, start, end) {
		ov.StatusCounts[e.Status]++
		if ClassifyLateness(e.CheckInTime, CheckIn, s) {
			ov.LateCheckIns++
		}
		if ClassifyLateness(e.CheckOutTime, CheckOut, s) {
			ov.LateCheckOuts++
		}
	}
	return ov
}

// StudentsWithStatus lists the distinct students with the given status on day.
func StudentsWithStatus(entries []Entry, day time.Time, status Status) []Student {
	seen := make(map[string]bool)
	var out []Student
	for _, e := range entries {
		if e.Status != status || !SameDay(e.Date, day) || seen[e.Student.ID] {
			continue
		}
		seen[e.Student.ID] = true
		out = append(out, e.Student)
	}
	SortStudentsByName(out)
	return out
}

// DailyAbsenteeism lists the students absent on date, sorted by name.
func DailyAbsenteeism(entries []Entry, date time.Time) []Student {
	return StudentsWithStatus(entries, date, StatusAbsent)
}

// MonthlyPerfectAttendance lists the students who attended every school day of
// the month. A school day is any day with at least one record.
func MonthlyPerfectAttendance(entries []Entry, students []Student, year int, month time.Month) []Student {
	schoolDays := make(map[string]bool)
	attended := make(map[string]map[string]bool)
	for _, e := range entries {
		y, m, _ := e.Date.Date()
		if y != year || m != month {
			continue
		}
		key := dayKey(e.Date)
		schoolDays[key] = true
		if !e.Status.Attended() {
			continue
		}
		if attended[e.StudentID] == nil {
			attended[e.StudentID] = make(map[string]bool)
		}
		attended[e.StudentID][key] = true
	}
	if len(schoolDays) == 0 {
		return nil
	}

	var out []Student
	for _, s := range students {
		days := attended[s.ID]
		if len(days) != len(schoolDays) {
			continue
		}
		full := true
		for d := range schoolDays {
			if !days[d] {
				full = false
				break
			}
		}
		if full {
			out = append(out, s)
		}
	}
	SortStudentsByName(out)
	return out
}

// LateArrivals lists the students still absent today once the check-in
// threshold has passed. Before the threshold nobody is late yet.
func LateArrivals(entries []Entry, now time.Time, s Settings) []Student {
	if !ClassifyLateness(&now, CheckIn, s) {
		return nil
	}
	return StudentsWithStatus(entries, now, StatusAbsent)
}

// StudentHistory returns the records of one student, newest first.
func StudentHistory(entries []Entry, studentID string) []Entry {
	var out []Entry
	for _, e := range entries {
		if strings.EqualFold(e.StudentID, studentID) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// Search keeps entries whose student name, student id or guardian names contain
// term, ignoring case. An empty term matches everything.
func Search(entries []Entry, term string) []Entry {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if contains(e.Student.Name, term) || contains(e.Student.ID, term) ||
			(e.CheckInGuardian != nil && contains(e.CheckInGuardian.Name, term)) ||
			(e.CheckOutGuardian != nil && contains(e.CheckOutGuardian.Name, term)) {
			out = append(out, e)
		}
	}
	return out
}

func contains(s, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(s), lowerTerm)
}

// SortKey is a sortable column of the records table.
type SortKey string

const (
	SortStudentName SortKey = "studentName"
	SortStudentID   SortKey = "studentId"
	SortGrade       SortKey = "grade"
	SortCheckIn     SortKey = "checkIn"
	SortCheckOut    SortKey = "checkOut"
	SortStatus      SortKey = "status"
)

// ParseSortKey defaults to SortStudentName for an empty value.
func ParseSortKey(v string) (SortKey, error) {
	switch k := SortKey(v); k {
	case "":
		return SortStudentName, nil
	case SortStudentName, SortStudentID, SortGrade, SortCheckIn, SortCheckOut, SortStatus:
		return k, nil
	}
	return "", invalid("unknown sort key %q", v)
}

// SortEntries orders entries by key in place. Missing times always sort last,
// whatever the direction.
func SortEntries(entries []Entry, key SortKey, desc bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		var cmp int
		switch key {
		case SortStudentID:
			cmp = strings.Compare(a.Student.ID, b.Student.ID)
		case SortGrade:
			cmp = a.Student.Grade - b.Student.Grade
		case SortStatus:
			cmp = strings.Compare(string(a.Status), string(b.Status))
		case SortCheckIn, SortCheckOut:
			at, bt := a.CheckInTime, b.CheckInTime
			if key == SortCheckOut {
				at, bt = a.CheckOutTime, b.CheckOutTime
			}
			switch {
			case at == nil && bt == nil:
				return false
			case at == nil:
				return false
			case bt == nil:
				return true
			}
			cmp = at.Compare(*bt)
		default:
			cmp = strings.Compare(strings.ToLower(a.Student.Name), strings.ToLower(b.Student.Name))
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

// SortStudentsByName sorts case-insensitively, breaking ties by id.
func SortStudentsByName(students []Student) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := strings.ToLower(students[i].Name), strings.ToLower(students[j].Name)
		if a != b {
			return a < b
		}
		return students[i].ID < students[j].ID
	})
}

// NextStudentID returns "S" followed by the next free number, zero padded to 3.
func NextStudentID(students []Student) string {
	highest := 0
	for _, s := range students {
		if len(s.ID) < 2 || (s.ID[0] != 'S' && s.ID[0] != 's') {
			continue
		}
		if n, err := strconv.Atoi(s.ID[1:]); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("S%03d", highest+1)
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
