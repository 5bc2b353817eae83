package state

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/stamon-dev/stamon/internal/model"
)

// ServiceRepo provides CRUD for monitored services.
// All writes are serialized by an internal mutex.
type ServiceRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewServiceRepo creates a ServiceRepo on the shared database handle.
func NewServiceRepo(db *sql.DB) *ServiceRepo {
	return &ServiceRepo{db: db}
}

const serviceColumns = `id, user_id, active, name, interval, url, timeout,
	last_status, service_type, retry, retry_interval, invert, expected_code, expected_payload`

func scanService(row interface{ Scan(...any) error }) (model.Service, error) {
	var s model.Service
	var expectedCode sql.NullInt64
	var expectedPayload sql.NullString
	err := row.Scan(
		&s.ID, &s.UserID, &s.Active, &s.Name, &s.Interval, &s.URL, &s.Timeout,
		&s.LastStatus, &s.ServiceType, &s.Retry, &s.RetryInterval, &s.Invert,
		&expectedCode, &expectedPayload,
	)
	if err != nil {
		return model.Service{}, err
	}
	if expectedCode.Valid {
		code := int(expectedCode.Int64)
		s.ExpectedCode = &code
	}
	if expectedPayload.Valid {
		payload := expectedPayload.String
		s.ExpectedPayload = &payload
	}
	return s, nil
}

// Insert creates a service and returns its DB-assigned id.
// interval and timeout must both be >= 1.
func (r *ServiceRepo) Insert(s model.Service) (uint32, error) {
	if s.Interval < 1 {
		return 0, fmt.Errorf("service interval must be >= 1, got %d", s.Interval)
	}
	if s.Timeout < 1 {
		return 0, fmt.Errorf("service timeout must be >= 1, got %d", s.Timeout)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`
		INSERT INTO services (user_id, active, name, interval, url, timeout,
		                      last_status, service_type, retry, retry_interval, invert,
		                      expected_code, expected_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.UserID, s.Active, s.Name, s.Interval, s.URL, s.Timeout,
		model.StatusPending, s.ServiceType, s.Retry, s.RetryInterval, s.Invert,
		nullableInt(s.ExpectedCode), nullableStr(s.ExpectedPayload))
	if err != nil {
		return 0, fmt.Errorf("insert service: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert service id: %w", err)
	}
	return uint32(id), nil
}

// Get returns the service with the given id, or ErrNotFound.
func (r *ServiceRepo) Get(id uint32) (model.Service, error) {
	row := r.db.QueryRow("SELECT "+serviceColumns+" FROM services WHERE id = ?", id)
	s, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Service{}, ErrNotFound
	}
	if err != nil {
		return model.Service{}, fmt.Errorf("get service %d: %w", id, err)
	}
	return s, nil
}

// List returns all services ordered by id.
func (r *ServiceRepo) List() ([]model.Service, error) {
	return r.query("SELECT " + serviceColumns + " FROM services ORDER BY id")
}

// ListActive returns all services with active=true, ordered by id.
// This is the scheduler's per-tick read.
func (r *ServiceRepo) ListActive() ([]model.Service, error) {
	return r.query("SELECT " + serviceColumns + " FROM services WHERE active = true ORDER BY id")
}

func (r *ServiceRepo) query(q string, args ...any) ([]model.Service, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update rewrites the admin-owned config fields of a service.
// last_status is owned by the transition engine and is not touched here.
func (r *ServiceRepo) Update(s model.Service) error {
	if s.Interval < 1 {
		return fmt.Errorf("service interval must be >= 1, got %d", s.Interval)
	}
	if s.Timeout < 1 {
		return fmt.Errorf("service timeout must be >= 1, got %d", s.Timeout)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`
		UPDATE services SET
			active = ?, name = ?, interval = ?, url = ?, timeout = ?,
			service_type = ?, retry = ?, retry_interval = ?, invert = ?,
			expected_code = ?, expected_payload = ?
		WHERE id = ?
	`, s.Active, s.Name, s.Interval, s.URL, s.Timeout,
		s.ServiceType, s.Retry, s.RetryInterval, s.Invert,
		nullableInt(s.ExpectedCode), nullableStr(s.ExpectedPayload), s.ID)
	if err != nil {
		return fmt.Errorf("update service %d: %w", s.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a service together with its log history.
func (r *ServiceRepo) Delete(id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM logs WHERE service_id = ?", id); err != nil {
		return fmt.Errorf("delete logs for service %d: %w", id, err)
	}
	res, err := tx.Exec("DELETE FROM services WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete service %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// UpdateLastStatus sets last_status only. Used by the transition engine when
// the log insert is handled elsewhere; the combined atomic path is
// LogRepo.InsertProbeResult.
func (r *ServiceRepo) UpdateLastStatus(id uint32, status model.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec("UPDATE services SET last_status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("update last_status for service %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns the dashboard summary over all services.
func (r *ServiceRepo) Stats() (model.ServiceStats, error) {
	var st model.ServiceStats
	row := r.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE active = true),
		       COUNT(*) FILTER (WHERE active = true AND last_status = 1),
		       COUNT(*) FILTER (WHERE active = true AND last_status = 2),
		       COUNT(*) FILTER (WHERE active = true AND last_status = 3)
		FROM services
	`)
	if err := row.Scan(&st.Count, &st.Active, &st.Up, &st.Down, &st.Failed); err != nil {
		return model.ServiceStats{}, fmt.Errorf("service stats: %w", err)
	}
	return st, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
