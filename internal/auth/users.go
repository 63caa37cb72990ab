package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

type account struct {
	user attendance.User
	hash []byte
}

// Directory is the in-memory user store behind login and user management.
type Directory struct {
	mu       sync.RWMutex
	cost     int
	accounts map[string]account
	nextID   int
}

// NewDirectory creates an empty directory hashing passwords at cost.
func NewDirectory(cost int) *Directory {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Directory{cost: cost, accounts: make(map[string]account)}
}

// DemoUsers are the accounts seeded in development.
func DemoUsers() []attendance.User {
	return []attendance.User{
		{ID: "user1", Name: "Dr. Evelyn Reed", Email: "admin@school.edu", Role: attendance.RoleSuperAdmin},
		{ID: "user2", Name: "Samuel Green", Email: "staff@school.edu", Role: attendance.RoleAdmin},
		{ID: "user3", Name: "Ms. Alice Johnson", Email: "teacher.alice@school.edu", Role: attendance.RoleTeacher, Grade: 5},
		{ID: "user4", Name: "Mr. David Chen", Email: "teacher.david@school.edu", Role: attendance.RoleTeacher, Grade: 3},
		{ID: "user5", Name: "Grace Owusu", Email: "frontdesk@school.edu", Role: attendance.RoleStaff},
	}
}

// Seed adds users that all share password, keeping their ids.
func (d *Directory) Seed(users []attendance.User, password string) error {
	for _, u := range users {
		if _, err := d.put(u, password, true); err != nil {
			return fmt.Errorf("seed %s: %w", u.Email, err)
		}
	}
	return nil
}

// Authenticate checks an email/password pair. Emails match case-insensitively.
func (d *Directory) Authenticate(email, password string) (attendance.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.accounts {
		if !strings.EqualFold(a.user.Email, strings.TrimSpace(email)) {
			continue
		}
		if bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
			return attendance.User{}, ErrInvalidCredentials
		}
		return a.user, nil
	}
	return attendance.User{}, ErrInvalidCredentials
}

// List returns all users sorted by name.
func (d *Directory) List() []attendance.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]attendance.User, 0, len(d.accounts))
	for _, a := range d.accounts {
		out = append(out, a.user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns one user.
func (d *Directory) Get(id string) (attendance.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.accounts[id]
	if !ok {
		return attendance.User{}, attendance.NotFoundf("user %s not found", id)
	}
	return a.user, nil
}

// Create adds a user with a fresh id. A password is required.
func (d *Directory) Create(u attendance.User, password string) (attendance.User, error) {
	u.ID = ""
	return d.put(u, password, true)
}

// Update replaces an existing user. An empty password keeps the current one.
func (d *Directory) Update(u attendance.User, password string) (attendance.User, error) {
	return d.put(u, password, false)
}

func (d *Directory) put(u attendance.User, password string, create bool) (attendance.User, error) {
	u.Email = strings.TrimSpace(u.Email)
	if u.Role != attendance.RoleTeacher {
		u.Grade = 0
	}
	if err := attendance.ValidateUser(u); err != nil {
		return attendance.User{}, err
	}
	if create && password == "" {
		return attendance.User{}, attendance.Invalidf("password is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	existing, exists := d.accounts[u.ID]
	if !create && !exists {
		return attendance.User{}, attendance.NotFoundf("user %s not found", u.ID)
	}
	if create && exists {
		return attendance.User{}, attendance.Invalidf("user %s already exists", u.ID)
	}
	for id, a := range d.accounts {
		if id != u.ID && strings.EqualFold(a.user.Email, u.Email) {
			return attendance.User{}, attendance.Invalidf("email %s already in use", u.Email)
		}
	}

	hash := existing.hash
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
		if err != nil {
			return attendance.User{}, fmt.Errorf("hash password: %w", err)
		}
		hash = h
	}
	if u.ID == "" {
		u.ID = d.newID()
	}
	d.accounts[u.ID] = account{user: u, hash: hash}
	return u, nil
}

// Delete removes a user.
func (d *Directory) Delete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.accounts[id]; !ok {
		return attendance.NotFoundf("user %s not found", id)
	}
	delete(d.accounts, id)
	return nil
}

func (d *Directory) newID() string {
	for {
		d.nextID++
		id := fmt.Sprintf("user%d", d.nextID)
		if _, taken := d.accounts[id]; !taken {
			return id
		}
	}
}
