package seed

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
)

func TestRecordsInvariants(t *testing.T) {
	now := time.Date(2024, time.May, 6, 11, 0, 0, 0, time.UTC)
	students := Students()
	records := Records(students, now, 7, rand.New(rand.NewSource(42)))

	if len(records) != 7*len(students) {
		t.Fatalf("expected %d records, got %d", 7*len(students), len(records))
	}
	seen := map[string]bool{}
	for _, rec := range records {
		key := rec.StudentID + rec.Date.Format(time.DateOnly)
		if seen[key] {
			t.Fatalf("duplicate record for %s", key)
		}
		seen[key] = true

		switch rec.Status {
		case attendance.StatusAbsent:
			if rec.CheckInTime != nil || rec.CheckOutTime != nil {
				t.Fatalf("absent record with times: %+v", rec)
			}
		case attendance.StatusPresent:
			if rec.CheckInTime == nil || rec.CheckOutTime != nil {
				t.Fatalf("present record malformed: %+v", rec)
			}
		case attendance.StatusCheckedOut:
			if rec.CheckInTime == nil || rec.CheckOutTime == nil || rec.CheckOutTime.Before(*rec.CheckInTime) {
				t.Fatalf("checked out record malformed: %+v", rec)
			}
		}
		if rec.CheckInTime != nil && rec.CheckInTime.After(now) {
			t.Fatalf("check-in in the future: %+v", rec)
		}
		if rec.CheckOutTime != nil && rec.CheckOutTime.After(now) {
			t.Fatalf("check-out in the future: %+v", rec)
		}
	}
}

func TestStudentsAreValid(t *testing.T) {
	ids := map[string]bool{}
	for _, s := range Students() {
		if err := attendance.ValidateStudent(s); err != nil {
			t.Fatalf("%s: %v", s.ID, err)
		}
		if ids[s.ID] {
			t.Fatalf("duplicate id %s", s.ID)
		}
		ids[s.ID] = true
		if len(s.AuthorizedGuardians) == 0 {
			t.Fatalf("%s has no guardians", s.ID)
		}
	}
}

func TestPopulateOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := attendance.NewMemoryRepository(nil, nil)
	now := time.Date(2024, time.May, 6, 11, 0, 0, 0, time.UTC)

	seeded, err := Populate(ctx, repo, now, DefaultDays)
	if err != nil || !seeded {
		t.Fatalf("first populate = %v, %v", seeded, err)
	}
	seeded, err = Populate(ctx, repo, now, DefaultDays)
	if err != nil || seeded {
		t.Fatalf("second populate = %v, %v", seeded, err)
	}
	students, _ := repo.Students(ctx)
	if len(students) != len(Students()) {
		t.Fatalf("roster has %d students", len(students))
	}
}
