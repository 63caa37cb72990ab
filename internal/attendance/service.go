package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/metrics"
)

// Audit actions recorded by the service.
const (
	ActionManualCheckIn  = "Manual Check-in"
	ActionManualCheckOut = "Manual Check-out"
	ActionStudentAdded   = "Student Record Added"
	ActionStudentUpdated = "Student Record Updated"
	ActionStudentDeleted = "Student Record Deleted"
)

// SettingsSource supplies the current lateness thresholds.
type SettingsSource interface {
	Get(ctx context.Context) (Settings, error)
}

// Auditor receives audit trail entries. Implementations must not block.
type Auditor interface {
	Record(ctx context.Context, actor User, action, details string)
}

// Publisher is notified of every record change.
type Publisher interface {
	Publish(e Entry)
}

// Service coordinates the engine with storage. Every mutation goes through a
// single writer lock so transitions always see a consistent prior state.
type Service struct {
	repo     Repository
	settings SettingsSource
	loc      *time.Location
	now      func() time.Time
	auditor  Auditor
	pub      Publisher

	mu sync.Mutex
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the school time zone used for calendar days.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

// WithAuditor records mutations in the audit trail.
func WithAuditor(a Auditor) Option { return func(s *Service) { s.auditor = a } }

// WithPublisher broadcasts record changes.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }

// NewService creates a service backed by a repository.
func NewService(repo Repository, settings SettingsSource, opts ...Option) *Service {
	s := &Service{repo: repo, settings: settings, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time in the school time zone.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

// Location is the school time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Settings returns the current thresholds, falling back to the defaults when
// the store is unavailable.
func (s *Service) Settings(ctx context.Context) Settings {
	if s.settings == nil {
		return DefaultSettings()
	}
	set, err := s.settings.Get(ctx)
	if err != nil {
		log.Printf("settings unavailable, using defaults: %v", err)
		return DefaultSettings()
	}
	return set
}

// Record applies a check-in or check-out for the student's record today.
func (s *Service) Record(ctx context.Context, actor User, ev Event) (Entry, error) {
	entry, err := s.record(ctx, ev)
	metrics.ObserveEvent(string(ev.Action), outcome(err))
	if err != nil {
		return Entry{}, err
	}

	set := s.Settings(ctx)
	at := entry.CheckInTime
	if ev.Action == CheckOut {
		at = entry.CheckOutTime
	}
	if ClassifyLateness(at, ev.Action, set) {
		metrics.ObserveLate(string(ev.Action))
	}

	action, verb := ActionManualCheckIn, "checked in"
	guardian := entry.CheckInGuardian
	if ev.Action == CheckOut {
		action, verb = ActionManualCheckOut, "checked out"
		guardian = entry.CheckOutGuardian
	}
	s.audit(ctx, actor, action, fmt.Sprintf("%s (%s) %s by guardian %s.", entry.Student.Name, entry.Student.ID, verb, guardian.Name))
	if s.pub != nil {
		s.pub.Publish(entry)
	}
	return entry, nil
}

// recordAttempts bounds the compare-and-set retries of record when another
// process changes the same record between our read and our write.
const recordAttempts = 4

func (s *Service) record(ctx context.Context, ev Event) (Entry, error) {
	ev.StudentID = strings.TrimSpace(ev.StudentID)
	if err := ValidateEvent(ev); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	st, err := s.repo.Student(ctx, ev.StudentID)
	if err != nil {
		return Entry{}, err
	}
	for attempt := 0; attempt < recordAttempts; attempt++ {
		current, err := s.repo.FindRecord(ctx, st.ID, now)
		if err != nil {
			return Entry{}, fmt.Errorf("load record: %w", err)
		}
		if current == nil {
			updated, err := Transition(NewDayRecord(st.ID, now), st, ev, now)
			if err != nil {
				return Entry{}, err
			}
			// Loses to any writer that opened the day first; retry against theirs.
			ok, err := s.repo.OpenRecord(ctx, updated)
			if err != nil {
				return Entry{}, fmt.Errorf("save record: %w", err)
			}
			if ok {
				return Entry{Record: updated, Student: st}, nil
			}
			continue
		}
		updated, err := Transition(*current, st, ev, now)
		if err != nil {
			return Entry{}, err
		}
		ok, err := s.repo.UpdateRecord(ctx, updated, current.Status)
		if err != nil {
			return Entry{}, fmt.Errorf("save record: %w", err)
		}
		if ok {
			return Entry{Record: updated, Student: st}, nil
		}
	}
	return Entry{}, invalidTransition("record changed while saving, try again")
}

// Dashboard is everything the overview page renders.
type Dashboard struct {
	Today        TodayStats    `json:"today"`
	Trend        []TrendBucket `json:"trend"`
	Overview     Overview      `json:"overview"`
	LateArrivals []Student     `json:"late_arrivals"`
	Entries      []Entry       `json:"entries"`
}

// Dashboard computes the scoped stats, trend and range overview.
func (s *Service) Dashboard(ctx context.Context, user User, start, end time.Time) (Dashboard, error) {
	now := s.Now()
	trendFrom := Day(now).AddDate(0, 0, 1-DefaultTrendWindow)
	from, to := earliest(Day(start), trendFrom), latest(end, now)
	entries, err := s.load(ctx, user, from, to)
	if err != nil {
		return Dashboard{}, err
	}
	set := s.Settings(ctx)
	ranged := FilterRange(entries, start, end)
	SortEntries(ranged, SortStudentName, false)
	return Dashboard{
		Today:        ComputeTodayStats(entries, now),
		Trend:        ComputeTrend(entries, now, DefaultTrendWindow, set),
		Overview:     ComputeRangeOverview(entries, start, end, set),
		LateArrivals: LateArrivals(entries, now, set),
		Entries:      ranged,
	}, nil
}

// RecordQuery selects rows for the records table.
type RecordQuery struct {
	Start  time.Time
	End    time.Time
	Search string
	Sort   SortKey
	Desc   bool
}

// Records lists the scoped records in a range, filtered and sorted.
func (s *Service) Records(ctx context.Context, user User, q RecordQuery) ([]Entry, error) {
	entries, err := s.load(ctx, user, q.Start, q.End)
	if err != nil {
		return nil, err
	}
	out := Search(FilterRange(entries, q.Start, q.End), q.Search)
	if q.Sort == "" {
		q.Sort = SortStudentName
	}
	SortEntries(out, q.Sort, q.Desc)
	return out, nil
}

// Export returns the rows handed to the CSV and XLSX writers: scoped, limited
// to the range and sorted by student name.
func (s *Service) Export(ctx context.Context, user User, start, end time.Time) ([]Entry, error) {
	return s.Records(ctx, user, RecordQuery{Start: start, End: end, Sort: SortStudentName})
}

// TodayByStatus lists today's students with status, for the stat card drill down.
func (s *Service) TodayByStatus(ctx context.Context, user User, status Status) ([]Student, error) {
	now := s.Now()
	entries, err := s.load(ctx, user, now, now)
	if err != nil {
		return nil, err
	}
	return StudentsWithStatus(entries, now, status), nil
}

// LateArrivals lists students still absent after the check-in threshold today.
func (s *Service) LateArrivals(ctx context.Context, user User) ([]Student, error) {
	now := s.Now()
	entries, err := s.load(ctx, user, now, now)
	if err != nil {
		return nil, err
	}
	return LateArrivals(entries, now, s.Settings(ctx)), nil
}

// Absenteeism is the daily absenteeism report.
func (s *Service) Absenteeism(ctx context.Context, user User, day time.Time) ([]Student, error) {
	day = day.In(s.loc)
	entries, err := s.load(ctx, user, day, day)
	if err != nil {
		return nil, err
	}
	return DailyAbsenteeism(entries, day), nil
}

// PerfectAttendance is the monthly perfect attendance report.
func (s *Service) PerfectAttendance(ctx context.Context, user User, year int, month time.Month) ([]Student, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	last := first.AddDate(0, 1, -1)
	entries, err := s.load(ctx, user, first, last)
	if err != nil {
		return nil, err
	}
	students, err := s.repo.Students(ctx)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	return MonthlyPerfectAttendance(entries, ScopeStudents(students, user), year, month), nil
}

// History returns a student and all of their records, newest first.
func (s *Service) History(ctx context.Context, user User, studentID string) (Student, []Entry, error) {
	st, err := s.Student(ctx, user, studentID)
	if err != nil {
		return Student{}, nil, err
	}
	records, err := s.repo.Records(ctx, historyStart, s.Now())
	if err != nil {
		return Student{}, nil, fmt.Errorf("load records: %w", err)
	}
	var own []Record
	for _, rec := range records {
		if rec.StudentID == st.ID {
			own = append(own, rec)
		}
	}
	return st, StudentHistory(Join(own, Roster{st.ID: st}), st.ID), nil
}

var historyStart = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Students returns the roster visible to user, sorted by name.
func (s *Service) Students(ctx context.Context, user User) ([]Student, error) {
	students, err := s.repo.Students(ctx)
	if err != nil {
		return nil, err
	}
	out := append([]Student(nil), ScopeStudents(students, user)...)
	SortStudentsByName(out)
	return out, nil
}

// Student returns one student if user may see it.
func (s *Service) Student(ctx context.Context, user User, id string) (Student, error) {
	st, err := s.repo.Student(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !CanSee(user, st) {
		return Student{}, notFound("student %s not found", id)
	}
	return st, nil
}

// CreateStudent assigns the next id, saves the student and opens an Absent
// record for today.
func (s *Service) CreateStudent(ctx context.Context, actor User, st Student) (Student, error) {
	st.Name = strings.TrimSpace(st.Name)
	if err := ValidateStudent(st); err != nil {
		return Student{}, err
	}

	s.mu.Lock()
	students, err := s.repo.Students(ctx)
	if err != nil {
		s.mu.Unlock()
		return Student{}, fmt.Errorf("load students: %w", err)
	}
	st.ID = NextStudentID(students)
	st.AuthorizedGuardians = withGuardianIDs(st.AuthorizedGuardians)
	if err := s.repo.SaveStudent(ctx, st); err != nil {
		s.mu.Unlock()
		return Student{}, fmt.Errorf("save student: %w", err)
	}
	rec := NewDayRecord(st.ID, s.Now())
	if _, err := s.repo.OpenRecord(ctx, rec); err != nil {
		s.mu.Unlock()
		return Student{}, fmt.Errorf("open record: %w", err)
	}
	s.mu.Unlock()

	s.audit(ctx, actor, ActionStudentAdded, fmt.Sprintf("Added %s (%s) to grade %d.", st.Name, st.ID, st.Grade))
	if s.pub != nil {
		s.pub.Publish(Entry{Record: rec, Student: st})
	}
	return st, nil
}

// UpdateStudent replaces the editable fields of a student. Records pick up the
// change on their next read since they only hold the student id.
func (s *Service) UpdateStudent(ctx context.Context, actor User, id string, st Student) (Student, error) {
	st.Name = strings.TrimSpace(st.Name)
	if err := ValidateStudent(st); err != nil {
		return Student{}, err
	}

	s.mu.Lock()
	existing, err := s.repo.Student(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return Student{}, err
	}
	st.ID = existing.ID
	if st.PhotoURL == "" {
		st.PhotoURL = existing.PhotoURL
	}
	st.AuthorizedGuardians = withGuardianIDs(st.AuthorizedGuardians)
	err = s.repo.SaveStudent(ctx, st)
	s.mu.Unlock()
	if err != nil {
		return Student{}, fmt.Errorf("save student: %w", err)
	}

	s.audit(ctx, actor, ActionStudentUpdated, fmt.Sprintf("Updated %s (%s).", st.Name, st.ID))
	return st, nil
}

// SetStudentPhoto stores the photo url of a student.
func (s *Service) SetStudentPhoto(ctx context.Context, actor User, id, url string) (Student, error) {
	s.mu.Lock()
	st, err := s.repo.Student(ctx, id)
	if err == nil {
		st.PhotoURL = url
		err = s.repo.SaveStudent(ctx, st)
	}
	s.mu.Unlock()
	if err != nil {
		return Student{}, err
	}
	s.audit(ctx, actor, ActionStudentUpdated, fmt.Sprintf("Updated photo of %s (%s).", st.Name, st.ID))
	return st, nil
}

// DeleteStudent removes a student and cascades to its records.
func (s *Service) DeleteStudent(ctx context.Context, actor User, id string) error {
	s.mu.Lock()
	st, err := s.repo.Student(ctx, id)
	if err == nil {
		err = s.repo.DeleteStudent(ctx, st.ID)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.audit(ctx, actor, ActionStudentDeleted, fmt.Sprintf("Deleted %s (%s).", st.Name, st.ID))
	return nil
}

// OpenDay creates an Absent record for every student without one today and
// returns how many were created. Existing records are left alone, so it is safe
// to run while another process records check-ins.
func (s *Service) OpenDay(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	students, err := s.repo.Students(ctx)
	if err != nil {
		return 0, fmt.Errorf("load students: %w", err)
	}
	created := 0
	for _, st := range students {
		ok, err := s.repo.OpenRecord(ctx, NewDayRecord(st.ID, now))
		if err != nil {
			return created, fmt.Errorf("open record for %s: %w", st.ID, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// load fetches the records in [from, to], joins them with the roster and
// applies the user's scope.
func (s *Service) load(ctx context.Context, user User, from, to time.Time) ([]Entry, error) {
	records, err := s.repo.Records(ctx, Day(from.In(s.loc)), EndOfDay(to.In(s.loc)))
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	students, err := s.repo.Students(ctx)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	return ScopeForUser(Join(records, NewRoster(students)), user), nil
}

func (s *Service) audit(ctx context.Context, actor User, action, details string) {
	if s.auditor != nil {
		s.auditor.Record(ctx, actor, action, details)
	}
}

func withGuardianIDs(guardians []Guardian) []Guardian {
	out := make([]Guardian, 0, len(guardians))
	for _, g := range guardians {
		g.Name = strings.TrimSpace(g.Name)
		if g.ID == "" {
			g.ID = "g-" + uuid.NewString()
		}
		out = append(out, g)
	}
	return out
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrValidation):
		return "invalid"
	}
	return "error"
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
