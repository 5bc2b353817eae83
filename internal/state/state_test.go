package state

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Bootstrap(t.TempDir())
	if err != nil {
		t.Fatalf("bootstrap test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBootstrapCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	db, err := Bootstrap(dir)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM services").Scan(&n); err != nil {
		t.Fatalf("query migrated schema: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty services table, got %d rows", n)
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db1, err := Bootstrap(dir)
	if err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	db1.Close()

	db2, err := Bootstrap(dir)
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	db2.Close()
}

func TestTimeRoundTrip(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.Exec("INSERT INTO users (username, password) VALUES ('a', 'x')"); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO services (user_id, active, name, interval, url, timeout)
		VALUES (1, 1, 'svc', 5, 'https://example.com', 5)
	`); err != nil {
		t.Fatalf("insert service: %v", err)
	}
	// Default time column value must parse with our layout.
	if _, err := db.Exec("INSERT INTO logs (service_id, status) VALUES (1, 1)"); err != nil {
		t.Fatalf("insert log: %v", err)
	}

	var ts string
	if err := db.QueryRow("SELECT time FROM logs WHERE id = 1").Scan(&ts); err != nil {
		t.Fatalf("select time: %v", err)
	}
	if _, err := parseTime(ts); err != nil {
		t.Fatalf("parse sqlite default time %q: %v", ts, err)
	}
}
