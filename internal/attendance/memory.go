package attendance

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository keeps the roster and records in process memory. It backs
// development and tests when no database is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	students map[string]Student
	records  []Record
}

// NewMemoryRepository creates a repository preloaded with students and records.
func NewMemoryRepository(students []Student, records []Record) *MemoryRepository {
	m := &MemoryRepository{students: make(map[string]Student, len(students))}
	for _, s := range students {
		m.students[s.ID] = s
	}
	m.records = append(m.records, records...)
	return m
}

func (m *MemoryRepository) Students(ctx context.Context) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, cloneStudent(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) Student(ctx context.Context, id string) (Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.lookup(id)
	if !ok {
		return Student{}, notFound("student %s not found", id)
	}
	return cloneStudent(s), nil
}

func (m *MemoryRepository) SaveStudent(ctx context.Context, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = cloneStudent(s)
	return nil
}

func (m *MemoryRepository) DeleteStudent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.lookup(id)
	if !ok {
		return notFound("student %s not found", id)
	}
	delete(m.students, s.ID)
	kept := m.records[:0]
	for _, rec := range m.records {
		if rec.StudentID != s.ID {
			kept = append(kept, rec)
		}
	}
	m.records = kept
	return nil
}

func (m *MemoryRepository) Records(ctx context.Context, from, to time.Time) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lo, hi := Day(from), EndOfDay(to)
	var out []Record
	for _, rec := range m.records {
		if rec.Date.Before(lo) || rec.Date.After(hi) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *MemoryRepository) FindRecord(ctx context.Context, studentID string, day time.Time) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexOf(studentID, day); i >= 0 {
		rec := m.records[i]
		return &rec, nil
	}
	return nil, nil
}

// SaveRecord replaces the record of the same (student, day), or prepends it.
func (m *MemoryRepository) SaveRecord(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(rec.StudentID, rec.Date); i >= 0 {
		rec.ID = m.records[i].ID
		m.records[i] = rec
		return nil
	}
	m.records = append([]Record{rec}, m.records...)
	return nil
}

// OpenRecord prepends rec unless the student already has a record that day.
func (m *MemoryRepository) OpenRecord(ctx context.Context, rec Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(rec.StudentID, rec.Date) >= 0 {
		return false, nil
	}
	m.records = append([]Record{rec}, m.records...)
	return true, nil
}

// UpdateRecord replaces the record of the same (student, day) while its status
// is still prev.
func (m *MemoryRepository) UpdateRecord(ctx context.Context, rec Record, prev Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(rec.StudentID, rec.Date)
	if i < 0 || m.records[i].Status != prev {
		return false, nil
	}
	rec.ID = m.records[i].ID
	m.records[i] = rec
	return true, nil
}

func (m *MemoryRepository) lookup(id string) (Student, bool) {
	if s, ok := m.students[id]; ok {
		return s, true
	}
	for key, s := range m.students {
		if strings.EqualFold(key, id) {
			return s, true
		}
	}
	return Student{}, false
}

func (m *MemoryRepository) indexOf(studentID string, day time.Time) int {
	for i, rec := range m.records {
		if rec.StudentID == studentID && SameDay(rec.Date, day) {
			return i
		}
	}
	return -1
}

func cloneStudent(s Student) Student {
	if s.AuthorizedGuardians != nil {
		s.AuthorizedGuardians = append([]Guardian(nil), s.AuthorizedGuardians...)
	}
	return s
}
