package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// DBFileName is the SQLite file created under DATA_PATH.
const DBFileName = "stamon.db"

// Bootstrap creates the data directory if absent, opens the database with the
// startup pragmas, and applies migrations. The returned handle is shared by
// every repo and the job queue.
func Bootstrap(dataPath string) (*sql.DB, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataPath, err)
	}

	db, err := OpenDB(filepath.Join(dataPath, DBFileName))
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
