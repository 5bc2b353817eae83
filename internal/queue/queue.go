// Package queue implements a durable FIFO task queue on SQLite with
// worker leases. Tasks survive restarts; a crashed worker's lease expires
// and the task becomes leasable again.
package queue

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

// Task kinds routed through the queue.
const (
	KindProbe        = "probe"
	KindNotification = "notification"
)

var (
	// ErrEmpty is returned by Lease when no task is available.
	ErrEmpty = errors.New("queue: no task available")
	// ErrDuplicate is returned by Push when an identical dedup key is
	// already enqueued or in flight.
	ErrDuplicate = errors.New("queue: duplicate task")
	// ErrLeaseLost is returned by Ack/Nack when the caller no longer
	// holds the lease.
	ErrLeaseLost = errors.New("queue: lease lost")
)

// Task is one leased unit of work.
type Task struct {
	ID         int64
	Kind       string
	Payload    []byte
	Attempt    int
	EnqueuedAt time.Time
}

// Queue is safe for concurrent use. All writes are serialized by an
// internal mutex; SQLite does the rest.
type Queue struct {
	db *sql.DB
	mu sync.Mutex

	now func() time.Time // test hook
}

// New creates a Queue on the shared database handle.
func New(db *sql.DB) *Queue {
	return &Queue{db: db, now: time.Now}
}

// DedupKey hashes the given parts into a stable dedup key.
func DedupKey(parts ...string) string {
	h := xxh3.New()
	for _, p := range parts {
		h.WriteString(p)
		h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// Push enqueues a task. An empty dedupKey disables deduplication;
// otherwise at most one task per (kind, dedupKey) may be pending or in
// flight at a time, and a second Push returns ErrDuplicate.
func (q *Queue) Push(kind string, payload []byte, dedupKey string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := formatQueueTime(q.now())
	res, err := q.db.Exec(`
		INSERT INTO queue_tasks (kind, payload, dedup_hash, available_at, enqueued_at)
		VALUES (?, ?, ?, ?, ?)
	`, kind, payload, dedupKey, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("push %s task: %w", kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("push %s task id: %w", kind, err)
	}
	return id, nil
}

// PushDelayed enqueues a task that becomes leasable only after delay.
// Used for retry backoff between probe attempts.
func (q *Queue) PushDelayed(kind string, payload []byte, dedupKey string, delay time.Duration) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	res, err := q.db.Exec(`
		INSERT INTO queue_tasks (kind, payload, dedup_hash, available_at, enqueued_at)
		VALUES (?, ?, ?, ?, ?)
	`, kind, payload, dedupKey, formatQueueTime(now.Add(delay)), formatQueueTime(now))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("push delayed %s task: %w", kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("push delayed %s task id: %w", kind, err)
	}
	return id, nil
}

// Lease atomically claims the oldest available task of the given kind for
// workerID, holding it for leaseTTL. ErrEmpty when nothing is leasable.
// Stealing a task whose previous lease expired counts as a redelivery and
// bumps its attempt counter.
func (q *Queue) Lease(kind, workerID string, leaseTTL time.Duration) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	nowStr := formatQueueTime(now)

	tx, err := q.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin lease tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	err = tx.QueryRow(`
		SELECT id FROM queue_tasks
		WHERE kind = ? AND available_at <= ?
		  AND (lease_expires_at IS NULL OR lease_expires_at < ?)
		ORDER BY id LIMIT 1
	`, kind, nowStr, nowStr).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("select leasable %s task: %w", kind, err)
	}

	res, err := tx.Exec(`
		UPDATE queue_tasks SET
			attempt = attempt + (lease_worker IS NOT NULL),
			lease_worker = ?, lease_expires_at = ?
		WHERE id = ? AND (lease_expires_at IS NULL OR lease_expires_at < ?)
	`, workerID, formatQueueTime(now.Add(leaseTTL)), id, nowStr)
	if err != nil {
		return nil, fmt.Errorf("claim %s task %d: %w", kind, id, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, ErrEmpty
	}

	var task Task
	var enqueued string
	err = tx.QueryRow(`
		SELECT id, kind, payload, attempt, enqueued_at FROM queue_tasks WHERE id = ?
	`, id).Scan(&task.ID, &task.Kind, &task.Payload, &task.Attempt, &enqueued)
	if err != nil {
		return nil, fmt.Errorf("load %s task %d: %w", kind, id, err)
	}
	if task.EnqueuedAt, err = parseQueueTime(enqueued); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lease: %w", err)
	}
	return &task, nil
}

// Ack removes a completed task. ErrLeaseLost if workerID no longer holds it.
func (q *Queue) Ack(id int64, workerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	res, err := q.db.Exec(
		"DELETE FROM queue_tasks WHERE id = ? AND lease_worker = ?", id, workerID)
	if err != nil {
		return fmt.Errorf("ack task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrLeaseLost
	}
	return nil
}

// Nack releases a task back to the queue after retryAfter, bumping its
// attempt counter. ErrLeaseLost if workerID no longer holds it.
func (q *Queue) Nack(id int64, workerID string, retryAfter time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	res, err := q.db.Exec(`
		UPDATE queue_tasks SET
			attempt = attempt + 1,
			lease_worker = NULL, lease_expires_at = NULL,
			available_at = ?
		WHERE id = ? AND lease_worker = ?
	`, formatQueueTime(q.now().Add(retryAfter)), id, workerID)
	if err != nil {
		return fmt.Errorf("nack task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrLeaseLost
	}
	return nil
}

// Depth returns the number of tasks of the given kind, leased or not.
// The scheduler sheds new probes when this exceeds its backlog limit.
func (q *Queue) Depth(kind string) (int, error) {
	var n int
	if err := q.db.QueryRow(
		"SELECT COUNT(*) FROM queue_tasks WHERE kind = ?", kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue depth for %s: %w", kind, err)
	}
	return n, nil
}

// ReapExpired clears leases whose expiry has passed, making their tasks
// leasable again. Each reclaim is a redelivery and bumps the attempt
// counter; Lease skips the bump for tasks the reaper already released.
// Returns the number of reclaimed tasks.
func (q *Queue) ReapExpired() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	res, err := q.db.Exec(`
		UPDATE queue_tasks SET
			attempt = attempt + 1,
			lease_worker = NULL, lease_expires_at = NULL
		WHERE lease_expires_at IS NOT NULL AND lease_expires_at < ?
	`, formatQueueTime(q.now()))
	if err != nil {
		return 0, fmt.Errorf("reap expired leases: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const queueTimeFormat = "2006-01-02T15:04:05.000Z"

func formatQueueTime(t time.Time) string {
	return t.UTC().Format(queueTimeFormat)
}

func parseQueueTime(s string) (time.Time, error) {
	t, err := time.Parse(queueTimeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse queue time %q: %w", s, err)
	}
	return t.UTC(), nil
}
