package state

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stamon-dev/stamon/internal/model"
)

// ConfigRepo stores key-value settings, optionally grouped by category.
type ConfigRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewConfigRepo creates a ConfigRepo on the shared database handle.
func NewConfigRepo(db *sql.DB) *ConfigRepo {
	return &ConfigRepo{db: db}
}

// Set inserts or updates a setting by name.
func (r *ConfigRepo) Set(name, value, category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO config (name, value, category, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value        = excluded.value,
			category     = excluded.category,
			last_updated = excluded.last_updated
	`, name, value, nullableStr(tzPtr(category)), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set config %q: %w", name, err)
	}
	return nil
}

// Get returns the setting with the given name, or ErrNotFound.
func (r *ConfigRepo) Get(name string) (model.ConfigEntry, error) {
	var e model.ConfigEntry
	var category sql.NullString
	var updated string
	err := r.db.QueryRow(
		"SELECT id, name, value, category, last_updated FROM config WHERE name = ?", name,
	).Scan(&e.ID, &e.Name, &e.Value, &category, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ConfigEntry{}, ErrNotFound
	}
	if err != nil {
		return model.ConfigEntry{}, fmt.Errorf("get config %q: %w", name, err)
	}
	e.Category = category.String
	if e.LastUpdated, err = parseTime(updated); err != nil {
		return model.ConfigEntry{}, err
	}
	return e, nil
}

// ListByCategory returns all settings in a category, ordered by name.
func (r *ConfigRepo) ListByCategory(category string) ([]model.ConfigEntry, error) {
	rows, err := r.db.Query(
		"SELECT id, name, value, category, last_updated FROM config WHERE category = ? ORDER BY name",
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("list config by category %q: %w", category, err)
	}
	defer rows.Close()

	var out []model.ConfigEntry
	for rows.Next() {
		var e model.ConfigEntry
		var cat sql.NullString
		var updated string
		if err := rows.Scan(&e.ID, &e.Name, &e.Value, &cat, &updated); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		e.Category = cat.String
		if e.LastUpdated, err = parseTime(updated); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
