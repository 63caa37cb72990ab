// Package audit keeps the append-only trail of who did what on the dashboard.
package audit

import (
	"context"
	"database/sql"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/metrics"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/queue"
)

// Actions recorded outside the attendance service.
const (
	ActionLogin           = "User Login"
	ActionReport          = "Report Generated"
	ActionSettingsChanged = "System Settings Changed"
	ActionUserEdited      = "User Profile Edited"
	ActionUserDeleted     = "User Deleted"
)

// Actor identifies the user behind an entry.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entry is one audit log line.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	User      Actor     `json:"user"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// Store persists entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// List returns up to limit entries, newest first, whose user name, action or
	// details contain search (case-insensitive).
	List(ctx context.Context, search string, limit int) ([]Entry, error)
}

const defaultLimit = 100

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(ctx context.Context, e Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(ctx context.Context, search string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	term := strings.ToLower(strings.TrimSpace(search))
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if term == "" || matches(e, term) {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(e Entry, term string) bool {
	return strings.Contains(strings.ToLower(e.User.Name), term) ||
		strings.Contains(strings.ToLower(e.Action), term) ||
		strings.Contains(strings.ToLower(e.Details), term)
}

// PostgresStore persists entries in the audit_logs table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store on db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Append(ctx context.Context, e Entry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, occurred_at, user_id, user_name, action, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.Timestamp.UTC(), e.User.ID, e.User.Name, e.Action, e.Details)
	return err
}

func (p *PostgresStore) List(ctx context.Context, search string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, occurred_at, user_id, user_name, action, details
		FROM audit_logs
		WHERE $1 = '' OR user_name ILIKE '%' || $1 || '%' OR action ILIKE '%' || $1 || '%' OR details ILIKE '%' || $1 || '%'
		ORDER BY occurred_at DESC
		LIMIT $2
	`, strings.TrimSpace(search), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.User.ID, &e.User.Name, &e.Action, &e.Details); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Recorder publishes entries to the queue so request handlers never wait on the
// store. It satisfies attendance.Auditor.
type Recorder struct {
	q       queue.Queue
	now     func() time.Time
	timeout time.Duration
}

// NewRecorder creates a recorder publishing to q.
func NewRecorder(q queue.Queue) *Recorder {
	return &Recorder{q: q, now: time.Now, timeout: 2 * time.Second}
}

// Record queues an entry. Failures are logged and counted, never returned.
func (r *Recorder) Record(ctx context.Context, actor attendance.User, action, details string) {
	e := Entry{
		ID:        uuid.NewString(),
		Timestamp: r.now(),
		User:      Actor{ID: actor.ID, Name: actor.Name},
		Action:    action,
		Details:   details,
	}
	msg, err := queue.NewMessage(queue.TypeAudit, e)
	if err != nil {
		log.Printf("audit encode failed: %v", err)
		metrics.AuditDropped()
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.q.Publish(pubCtx, msg); err != nil {
		log.Printf("audit publish failed (%s): %v", action, err)
		metrics.AuditDropped()
	}
}

// Consume appends every audit message from q to store until ctx ends.
func Consume(ctx context.Context, q queue.Queue, store Store) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != queue.TypeAudit {
			continue
		}
		var e Entry
		if err := msg.Decode(&e); err != nil {
			log.Printf("audit decode failed: %v", err)
			metrics.AuditDropped()
			continue
		}
		if err := store.Append(ctx, e); err != nil {
			log.Printf("audit append %s failed: %v", e.ID, err)
			metrics.AuditDropped()
		}
	}
	return nil
}
