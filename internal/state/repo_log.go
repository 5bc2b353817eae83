package state

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maypok86/otter"

	"github.com/stamon-dev/stamon/internal/model"
)

// DefaultIncidentLimit mirrors the API default when no limit is given.
const DefaultIncidentLimit = 20

// DefaultLogLimit is the default page size for log listings.
const DefaultLogLimit = 100

// LogRepo provides the append-only probe log plus derived incident views.
// Incident aggregation is cached with a short TTL; any probe write clears
// the cache.
type LogRepo struct {
	db *sql.DB
	mu sync.Mutex

	incidents otter.Cache[int, []model.Incident]
}

// NewLogRepo creates a LogRepo. cacheTTL bounds incident staleness.
func NewLogRepo(db *sql.DB, cacheTTL time.Duration) *LogRepo {
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Second
	}
	cache, err := otter.MustBuilder[int, []model.Incident](64).
		Cost(func(_ int, _ []model.Incident) uint32 { return 1 }).
		WithTTL(cacheTTL).
		Build()
	if err != nil {
		panic("state: failed to create incident cache: " + err.Error())
	}
	return &LogRepo{db: db, incidents: cache}
}

// Insert appends one log entry and returns its id. Append-only: inserting the
// same entry twice yields two rows.
func (r *LogRepo) Insert(entry model.LogEntry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := insertLog(r.db, entry)
	if err == nil {
		r.incidents.Clear()
	}
	return id, err
}

// InsertProbeResult appends the log entry AND updates the owning service's
// last_status in one transaction. Readers observing one observe the other.
func (r *LogRepo) InsertProbeResult(entry model.LogEntry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin probe result tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := insertLog(tx, entry)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(
		"UPDATE services SET last_status = ? WHERE id = ?",
		entry.Status, entry.ServiceID,
	); err != nil {
		return 0, fmt.Errorf("update last_status for service %d: %w", entry.ServiceID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit probe result: %w", err)
	}
	r.incidents.Clear()
	return id, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertLog(db execer, entry model.LogEntry) (int64, error) {
	t := entry.Time
	if t.IsZero() {
		t = time.Now()
	}
	res, err := db.Exec(`
		INSERT INTO logs (service_id, status, message, time, duration)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ServiceID, entry.Status, nullableMessage(entry.Message), formatTime(t), entry.Duration)
	if err != nil {
		return 0, fmt.Errorf("insert log for service %d: %w", entry.ServiceID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert log id: %w", err)
	}
	return id, nil
}

// List returns the most recent entries for one service, newest first.
func (r *LogRepo) List(serviceID uint32, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return r.query(`
		SELECT id, service_id, status, message, time, duration
		FROM logs WHERE service_id = ? ORDER BY id DESC LIMIT ?
	`, serviceID, limit)
}

// ListAll returns the most recent entries across all services, newest first.
func (r *LogRepo) ListAll(limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return r.query(`
		SELECT id, service_id, status, message, time, duration
		FROM logs ORDER BY id DESC LIMIT ?
	`, limit)
}

func (r *LogRepo) query(q string, args ...any) ([]model.LogEntry, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var out []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var message sql.NullString
		var ts string
		if err := rows.Scan(&e.ID, &e.ServiceID, &e.Status, &message, &ts, &e.Duration); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		e.Message = message.String
		if e.Time, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Incidents aggregates non-Up log entries grouped by (service, status, date),
// newest date first. Messages are deduplicated and joined by "; ".
func (r *LogRepo) Incidents(limit int) ([]model.Incident, error) {
	if limit <= 0 {
		limit = DefaultIncidentLimit
	}
	if cached, ok := r.incidents.Get(limit); ok {
		return cached, nil
	}

	rows, err := r.db.Query(`
		SELECT s.name, s.url, l.service_id, l.status,
		       DATE(l.time) AS date,
		       COUNT(*) AS count,
		       COALESCE(GROUP_CONCAT(l.message, '; '), '') AS messages,
		       MIN(l.time) AS start,
		       MAX(l.time) AS end
		FROM logs l
		JOIN services s ON l.service_id = s.id
		WHERE l.status > 1
		GROUP BY l.service_id, l.status, date
		ORDER BY date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	var out []model.Incident
	for rows.Next() {
		var inc model.Incident
		var start, end string
		if err := rows.Scan(&inc.ServiceName, &inc.ServiceURL, &inc.ServiceID, &inc.Status,
			&inc.Date, &inc.Count, &inc.Messages, &start, &end); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		inc.Messages = dedupMessages(inc.Messages)
		if inc.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if inc.End, err = parseTime(end); err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.incidents.Set(limit, out)
	return out, nil
}

// dedupMessages removes repeated "; "-joined fragments, preserving first-seen order.
func dedupMessages(joined string) string {
	if joined == "" {
		return ""
	}
	seen := make(map[string]struct{})
	var out []string
	for _, m := range strings.Split(joined, "; ") {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return strings.Join(out, "; ")
}

func nullableMessage(m string) any {
	if m == "" {
		return nil
	}
	return m
}
