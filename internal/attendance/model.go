package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the daily attendance state of a student.
type Status string

const (
	StatusPresent    Status = "Present"
	StatusCheckedOut Status = "Checked Out"
	StatusAbsent     Status = "Absent"
)

// Attended reports whether the status counts as attending the day.
func (s Status) Attended() bool {
	return s == StatusPresent || s == StatusCheckedOut
}

// ParseStatus accepts the display names and a few url friendly aliases.
func ParseStatus(v string) (Status, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), "_", "-")) {
	case "present":
		return StatusPresent, nil
	case "checked out", "checked-out", "checkedout":
		return StatusCheckedOut, nil
	case "absent":
		return StatusAbsent, nil
	}
	return "", invalid("unknown status %q", v)
}

// Action is an event that advances a record.
type Action string

const (
	CheckIn  Action = "check-in"
	CheckOut Action = "check-out"
)

// Role of a dashboard user.
type Role string

const (
	RoleSuperAdmin Role = "Super Admin"
	RoleAdmin      Role = "Admin"
	RoleTeacher    Role = "Teacher"
	RoleStaff      Role = "Staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStaff:
		return true
	}
	return false
}

// Guardian is a contact allowed to check a student in or out.
type Guardian struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

// Student is a roster entry.
type Student struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name" validate:"required"`
	Grade               int        `json:"grade" validate:"min=1,max=12"`
	PhotoURL            string     `json:"photo_url,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	AuthorizedGuardians []Guardian `json:"authorized_guardians" validate:"dive"`
}

// Record is the attendance of one student on one calendar day.
// The student is referenced by id; see Entry for the joined view.
type Record struct {
	ID               string     `json:"id"`
	StudentID        string     `json:"student_id"`
	Date             time.Time  `json:"date"`
	Status           Status     `json:"status"`
	CheckInTime      *time.Time `json:"check_in_time"`
	CheckOutTime     *time.Time `json:"check_out_time"`
	CheckInGuardian  *Guardian  `json:"check_in_guardian"`
	CheckOutGuardian *Guardian  `json:"check_out_guardian"`
}

// Entry is a record joined with the current state of its student.
type Entry struct {
	Record
	Student Student `json:"student"`
}

// User is an authenticated dashboard operator.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Role      Role   `json:"role" validate:"required"`
	Grade     int    `json:"grade,omitempty" validate:"omitempty,min=1,max=12"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// TimeOfDay is a wall clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" in 24h format.
func ParseTimeOfDay(v string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return TimeOfDay{}, invalid("time of day %q must be HH:MM", v)
	}
	h, herr := strconv.Atoi(hh)
	m, merr := strconv.Atoi(mm)
	if herr != nil || merr != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, invalid("time of day %q out of range", v)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On anchors the time of day to the calendar day of d.
func (t TimeOfDay) On(d time.Time) time.Time {
	y, mo, day := d.Date()
	return time.Date(y, mo, day, t.Hour, t.Minute, 0, 0, d.Location())
}

// MarshalText encodes as HH:MM.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes HH:MM.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Settings holds the user configurable lateness thresholds.
type Settings struct {
	LateCheckInThreshold  TimeOfDay `json:"late_check_in_threshold"`
	LateCheckOutThreshold TimeOfDay `json:"late_check_out_threshold"`
}

// DefaultSettings are the thresholds used until an admin changes them.
func DefaultSettings() Settings {
	return Settings{
		LateCheckInThreshold:  TimeOfDay{Hour: 9},
		LateCheckOutThreshold: TimeOfDay{Hour: 16},
	}
}

// Event is a check-in or check-out request.
type Event struct {
	StudentID    string
	GuardianName string
	Action       Action
}

// Day truncates t to midnight of its calendar day in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
