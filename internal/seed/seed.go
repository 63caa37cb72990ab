// Package seed generates the demo roster and a week of attendance history.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
)

// Guardians is the demo guardian pool.
var Guardians = []attendance.Guardian{
	{ID: "g01", Name: "Ama Osei", Phone: "555-0101"},
	{ID: "g02", Name: "Kofi Mensah", Phone: "555-0102"},
	{ID: "g03", Name: "Yaa Addo", Phone: "555-0103"},
	{ID: "g04", Name: "Kwabena Boateng", Phone: "555-0104"},
	{ID: "g05", Name: "Akua Asante", Phone: "555-0105"},
	{ID: "g06", Name: "Yaw Nkrumah", Phone: "555-0106"},
	{ID: "g07", Name: "Adwoa Acheampong", Phone: "555-0107"},
	{ID: "g08", Name: "Kwaku Owusu", Phone: "555-0108"},
	{ID: "g09", Name: "Afia Annan", Phone: "555-0109"},
	{ID: "g10", Name: "Kojo Agyemang", Phone: "555-0110"},
	{ID: "g11", Name: "Amma Boateng", Phone: "555-0111"},
	{ID: "g12", Name: "Kwadwo Mensah", Phone: "555-0112"},
}

// Students returns the demo roster.
func Students() []attendance.Student {
	g := Guardians
	photo := func(id string) string { return "https://i.pravatar.cc/150?u=" + id }
	return []attendance.Student{
		{ID: "S001", Name: "Kwaku Osei", Grade: 3, PhotoURL: photo("S001"), AuthorizedGuardians: []attendance.Guardian{g[0], g[1]}},
		{ID: "S002", Name: "Abena Mensah", Grade: 3, PhotoURL: photo("S002"), AuthorizedGuardians: []attendance.Guardian{g[1]}},
		{ID: "S003", Name: "Yaw Addo Jr.", Grade: 3, PhotoURL: photo("S003"), AuthorizedGuardians: []attendance.Guardian{g[2], g[3]}},
		{ID: "S004", Name: "Akosua Boateng", Grade: 5, PhotoURL: photo("S004"), AuthorizedGuardians: []attendance.Guardian{g[3]}},
		{ID: "S005", Name: "Kofi Asante", Grade: 5, Notes: "Allergy to peanuts.", AuthorizedGuardians: []attendance.Guardian{g[4]}},
		{ID: "S006", Name: "Afia Nkrumah", Grade: 5, PhotoURL: photo("S006"), AuthorizedGuardians: []attendance.Guardian{g[5], g[0]}},
		{ID: "S007", Name: "Kwadwo Acheampong", Grade: 3, PhotoURL: photo("S007"), AuthorizedGuardians: []attendance.Guardian{g[6]}},
		{ID: "S008", Name: "Amma Owusu", Grade: 5, PhotoURL: photo("S008"), AuthorizedGuardians: []attendance.Guardian{g[7]}},
	}
}

// Records generates one record per student for each of the days days ending
// at now. Roughly 85% of students attend; check-ins spread between 08:00 and
// 10:30 and check-outs between 14:00 and 18:00 so late events show up.
// Today's check-outs are only filled in when now has passed them.
func Records(students []attendance.Student, now time.Time, days int, rng *rand.Rand) []attendance.Record {
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	out := make([]attendance.Record, 0, days*len(students))
	for day := 0; day < days; day++ {
		date := attendance.Day(now).AddDate(0, 0, -day)
		for _, st := range students {
			rec := attendance.Record{
				ID:        fmt.Sprintf("rec-%d-%s", day, st.ID),
				StudentID: st.ID,
				Date:      date,
				Status:    attendance.StatusAbsent,
			}
			chance := rng.Float64()
			if chance < 0.85 {
				in := date.Add(8*time.Hour + time.Duration(rng.Float64()*150)*time.Minute)
				if day == 0 && in.After(now) {
					out = append(out, rec)
					continue
				}
				rec.Status = attendance.StatusPresent
				rec.CheckInTime = &in
				rec.CheckInGuardian = guardian(st, 0)

				outAt := date.Add(14*time.Hour + time.Duration(rng.Float64()*240)*time.Minute)
				leaves := chance < 0.5 && !(day == 0 && (outAt.After(now) || rng.Float64() > 0.6))
				if leaves {
					rec.Status = attendance.StatusCheckedOut
					rec.CheckOutTime = &outAt
					rec.CheckOutGuardian = guardian(st, rng.Intn(len(st.AuthorizedGuardians)+1))
				}
			}
			out = append(out, rec)
		}
	}
	return out
}

func guardian(st attendance.Student, i int) *attendance.Guardian {
	if len(st.AuthorizedGuardians) == 0 {
		return nil
	}
	g := st.AuthorizedGuardians[i%len(st.AuthorizedGuardians)]
	return &g
}

// DefaultDays is how much history Populate generates.
const DefaultDays = 7

// Populate writes the demo roster and history into repo unless it already
// holds students. It reports whether anything was written.
func Populate(ctx context.Context, repo attendance.Repository, now time.Time, days int) (bool, error) {
	existing, err := repo.Students(ctx)
	if err != nil {
		return false, fmt.Errorf("load students: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}
	students := Students()
	for _, st := range students {
		if err := repo.SaveStudent(ctx, st); err != nil {
			return false, fmt.Errorf("seed student %s: %w", st.ID, err)
		}
	}
	for _, rec := range Records(students, now, days, nil) {
		if _, err := repo.OpenRecord(ctx, rec); err != nil {
			return false, fmt.Errorf("seed record %s: %w", rec.ID, err)
		}
	}
	return true, nil
}
