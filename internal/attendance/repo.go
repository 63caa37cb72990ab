package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository is the data provider behind the service.
type Repository interface {
	Students(ctx context.Context) ([]Student, error)
	// Student resolves id case-insensitively and returns ErrNotFound when missing.
	Student(ctx context.Context, id string) (Student, error)
	SaveStudent(ctx context.Context, s Student) error
	// DeleteStudent removes the student and all of its records.
	DeleteStudent(ctx context.Context, id string) error
	// Records returns the records dated within [from, to].
	Records(ctx context.Context, from, to time.Time) ([]Record, error)
	// FindRecord returns nil when the student has no record on day.
	FindRecord(ctx context.Context, studentID string, day time.Time) (*Record, error)
	// SaveRecord inserts or replaces the record for (student, day).
	SaveRecord(ctx context.Context, rec Record) error
	// OpenRecord inserts rec unless (student, day) already has a record and
	// reports whether it was inserted. An existing record is never touched.
	OpenRecord(ctx context.Context, rec Record) (bool, error)
	// UpdateRecord replaces the record for (student, day) only while its status
	// is still prev, and reports whether it did.
	UpdateRecord(ctx context.Context, rec Record, prev Status) (bool, error)
}

// PostgresRepository persists the roster and records in Postgres.
type PostgresRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewPostgresRepository creates a repo; days are interpreted in loc.
func NewPostgresRepository(db *sql.DB, loc *time.Location) *PostgresRepository {
	if loc == nil {
		loc = time.Local
	}
	return &PostgresRepository{db: db, loc: loc}
}

// Students returns the roster ordered by id.
func (r *PostgresRepository) Students(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, grade, photo_url, notes, guardians
		FROM students
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// Student returns a single student.
func (r *PostgresRepository) Student(ctx context.Context, id string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, grade, photo_url, notes, guardians
		FROM students WHERE lower(id) = lower($1)
	`, id)
	s, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, notFound("student %s not found", id)
		}
		return Student{}, err
	}
	return s, nil
}

// SaveStudent creates or updates a student.
func (r *PostgresRepository) SaveStudent(ctx context.Context, s Student) error {
	guardians := s.AuthorizedGuardians
	if guardians == nil {
		guardians = []Guardian{}
	}
	raw, err := json.Marshal(guardians)
	if err != nil {
		return fmt.Errorf("encode guardians: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO students (id, name, grade, photo_url, notes, guardians)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			grade = EXCLUDED.grade,
			photo_url = EXCLUDED.photo_url,
			notes = EXCLUDED.notes,
			guardians = EXCLUDED.guardians,
			updated_at = NOW()
	`, s.ID, s.Name, s.Grade, s.PhotoURL, s.Notes, string(raw))
	return err
}

// DeleteStudent relies on ON DELETE CASCADE for the records.
func (r *PostgresRepository) DeleteStudent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE lower(id) = lower($1)`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("student %s not found", id)
	}
	return nil
}

// Records returns records with day between from and to inclusive.
func (r *PostgresRepository) Records(ctx context.Context, from, to time.Time) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, day, status, check_in_time, check_out_time, check_in_guardian, check_out_guardian
		FROM attendance_records
		WHERE day BETWEEN $1 AND $2
		ORDER BY day DESC, student_id
	`, from.In(r.loc).Format(time.DateOnly), to.In(r.loc).Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// FindRecord returns the record for (student, day) or nil.
func (r *PostgresRepository) FindRecord(ctx context.Context, studentID string, day time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, day, status, check_in_time, check_out_time, check_in_guardian, check_out_guardian
		FROM attendance_records
		WHERE student_id = $1 AND day = $2
	`, studentID, day.In(r.loc).Format(time.DateOnly))
	rec, err := r.scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// SaveRecord upserts on the (student_id, day) unique key.
func (r *PostgresRepository) SaveRecord(ctx context.Context, rec Record) error {
	in, out, err := recordGuardians(rec)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, day, status, check_in_time, check_out_time, check_in_guardian, check_out_guardian)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (student_id, day) DO UPDATE SET
			status = EXCLUDED.status,
			check_in_time = EXCLUDED.check_in_time,
			check_out_time = EXCLUDED.check_out_time,
			check_in_guardian = EXCLUDED.check_in_guardian,
			check_out_guardian = EXCLUDED.check_out_guardian,
			updated_at = NOW()
	`, rec.ID, rec.StudentID, r.day(rec.Date), string(rec.Status),
		nullTime(rec.CheckInTime), nullTime(rec.CheckOutTime), in, out)
	return err
}

// OpenRecord relies on the (student_id, day) unique key so concurrent openers
// and check-ins from other processes never overwrite each other.
func (r *PostgresRepository) OpenRecord(ctx context.Context, rec Record) (bool, error) {
	in, out, err := recordGuardians(rec)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, day, status, check_in_time, check_out_time, check_in_guardian, check_out_guardian)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (student_id, day) DO NOTHING
	`, rec.ID, rec.StudentID, r.day(rec.Date), string(rec.Status),
		nullTime(rec.CheckInTime), nullTime(rec.CheckOutTime), in, out)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// UpdateRecord is a compare-and-set on the current status.
func (r *PostgresRepository) UpdateRecord(ctx context.Context, rec Record, prev Status) (bool, error) {
	in, out, err := recordGuardians(rec)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records SET
			status = $3,
			check_in_time = $4,
			check_out_time = $5,
			check_in_guardian = $6,
			check_out_guardian = $7,
			updated_at = NOW()
		WHERE student_id = $1 AND day = $2 AND status = $8
	`, rec.StudentID, r.day(rec.Date), string(rec.Status),
		nullTime(rec.CheckInTime), nullTime(rec.CheckOutTime), in, out, string(prev))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *PostgresRepository) day(t time.Time) string {
	return t.In(r.loc).Format(time.DateOnly)
}

func recordGuardians(rec Record) (any, any, error) {
	in, err := guardianJSON(rec.CheckInGuardian)
	if err != nil {
		return nil, nil, err
	}
	out, err := guardianJSON(rec.CheckOutGuardian)
	if err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (Student, error) {
	var (
		s         Student
		photo     sql.NullString
		notes     sql.NullString
		guardians []byte
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Grade, &photo, &notes, &guardians); err != nil {
		return Student{}, err
	}
	s.PhotoURL, s.Notes = photo.String, notes.String
	if len(guardians) > 0 {
		if err := json.Unmarshal(guardians, &s.AuthorizedGuardians); err != nil {
			return Student{}, fmt.Errorf("decode guardians of %s: %w", s.ID, err)
		}
	}
	return s, nil
}

func (r *PostgresRepository) scanRecord(row scanner) (Record, error) {
	var (
		rec         Record
		day         time.Time
		status      string
		checkIn     sql.NullTime
		checkOut    sql.NullTime
		inGuardian  []byte
		outGuardian []byte
	)
	if err := row.Scan(&rec.ID, &rec.StudentID, &day, &status, &checkIn, &checkOut, &inGuardian, &outGuardian); err != nil {
		return Record{}, err
	}
	// DATE columns come back as UTC midnight; rebuild the day in the school zone.
	y, m, d := day.Date()
	rec.Date = time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	rec.Status = Status(status)
	if checkIn.Valid {
		t := checkIn.Time.In(r.loc)
		rec.CheckInTime = &t
	}
	if checkOut.Valid {
		t := checkOut.Time.In(r.loc)
		rec.CheckOutTime = &t
	}
	var err error
	if rec.CheckInGuardian, err = decodeGuardian(inGuardian); err != nil {
		return Record{}, err
	}
	if rec.CheckOutGuardian, err = decodeGuardian(outGuardian); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func guardianJSON(g *Guardian) (any, error) {
	if g == nil {
		return nil, nil
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode guardian: %w", err)
	}
	return string(raw), nil
}

func decodeGuardian(raw []byte) (*Guardian, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var g Guardian
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode guardian: %w", err)
	}
	return &g, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
