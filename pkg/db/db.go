package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sqlx connection.
type DB struct {
	*sqlx.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=30000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	// Single connection avoids SQLITE_BUSY on concurrent writes
	conn.SetMaxOpenConns(1)

	d := &DB{conn}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// PruneCache removes cache entries older than the specified duration.
// It returns the number of rows removed.
func (d *DB) PruneCache(ctx context.Context, olderThan time.Duration) (int64, error) {
	// Same layout as SQLite CURRENT_TIMESTAMP
	deadline := time.Now().Add(-olderThan).UTC().Format("2006-01-02 15:04:05")
	res, err := d.ExecContext(ctx, "DELETE FROM cache WHERE created_at < ?", deadline)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS routes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			start_lat REAL NOT NULL,
			start_lon REAL NOT NULL,
			end_lat REAL,
			end_lon REAL,
			distance_km REAL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS waypoints (
			id TEXT PRIMARY KEY,
			route_id TEXT NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			text_note TEXT,
			voice_blob_url TEXT,
			image_url TEXT,
			transcription TEXT,
			stored_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_waypoints_route ON waypoints(route_id, stored_at);`,
		`CREATE TABLE IF NOT EXISTS travelogues (
			route_id TEXT PRIMARY KEY REFERENCES routes(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			model TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS evaluations (
			id TEXT PRIMARY KEY,
			route_id TEXT NOT NULL,
			f1 REAL NOT NULL,
			precision REAL NOT NULL,
			recall REAL NOT NULL,
			is_equivalent BOOLEAN NOT NULL DEFAULT 0,
			human_sentiment REAL,
			ai_sentiment REAL,
			score_failed BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_route ON evaluations(route_id);`,
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	// Older databases predate these columns
	added := []struct{ table, column, def string }{
		{"waypoints", "transcription", "TEXT"},
		{"evaluations", "score_failed", "BOOLEAN NOT NULL DEFAULT 0"},
	}
	for _, c := range added {
		var colCount int
		err := d.QueryRow("SELECT count(*) FROM pragma_table_info(?) WHERE name = ?", c.table, c.column).Scan(&colCount)
		if err == nil && colCount == 0 {
			if _, err := d.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.column, c.def)); err != nil {
				return fmt.Errorf("failed to add %s column: %w", c.column, err)
			}
		}
	}

	return nil
}
