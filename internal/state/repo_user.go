package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/stamon-dev/stamon/internal/model"
)

// UserRepo provides operator account storage. Passwords arrive pre-hashed.
type UserRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewUserRepo creates a UserRepo on the shared database handle.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Insert creates a user and returns its id. ErrConflict on duplicate username.
func (r *UserRepo) Insert(u model.User) (uint32, error) {
	if u.Role == "" {
		u.Role = model.RoleViewer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`
		INSERT INTO users (username, password, role, active, timezone)
		VALUES (?, ?, ?, ?, ?)
	`, u.Username, u.Password, u.Role, true, nullableStr(tzPtr(u.Timezone)))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert user id: %w", err)
	}
	return uint32(id), nil
}

// Get returns the user with the given id, or ErrNotFound.
func (r *UserRepo) Get(id uint32) (model.User, error) {
	return r.get("SELECT id, username, password, role, active, timezone FROM users WHERE id = ?", id)
}

// GetByUsername returns the user with the given username, or ErrNotFound.
func (r *UserRepo) GetByUsername(username string) (model.User, error) {
	return r.get("SELECT id, username, password, role, active, timezone FROM users WHERE username = ?", username)
}

func (r *UserRepo) get(q string, arg any) (model.User, error) {
	var u model.User
	var timezone sql.NullString
	err := r.db.QueryRow(q, arg).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.Active, &timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	u.Timezone = timezone.String
	return u, nil
}

// List returns all users ordered by id.
func (r *UserRepo) List() ([]model.User, error) {
	rows, err := r.db.Query("SELECT id, username, password, role, active, timezone FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		var timezone sql.NullString
		if err := rows.Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.Active, &timezone); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Timezone = timezone.String
		out = append(out, u)
	}
	return out, rows.Err()
}

// Count returns the number of users. Zero means first-run bootstrap:
// /register is open until the first account exists.
func (r *UserRepo) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func tzPtr(tz string) *string {
	if tz == "" {
		return nil
	}
	return &tz
}
