// Package store is the SQL implementation of the work item, snapshot, settings and configuration
// collaborators. It runs on SQLite (modernc.org/sqlite) or Postgres (lib/pq) with one schema.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout is fixed width and always UTC so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store reads and writes the flow data of every organisation.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates the schema when missing. For SQLite dsn is a file path.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = DriverSQLite
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn is required")
	}
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverPostgres {
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return newStore(ctx, db, driver)
}

// OpenInMemory opens a private in-memory SQLite database.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open(DriverSQLite, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Every connection to ":memory:" is a new database.
	db.SetMaxOpenConns(1)
	return newStore(context.Background(), db, DriverSQLite)
}

func newStore(ctx context.Context, db *sql.DB, driver string) (*Store, error) {
	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug().Str("driver", driver).Msg("Store opened")
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS work_items (
			org_id TEXT NOT NULL,
			id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			work_item_type_id TEXT NOT NULL DEFAULT '',
			work_item_type TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			state_category TEXT NOT NULL,
			state_type TEXT NOT NULL DEFAULT '',
			class_of_service TEXT NOT NULL DEFAULT '',
			context_id TEXT NOT NULL DEFAULT '',
			assigned_to TEXT NOT NULL DEFAULT '',
			arrival_at TEXT,
			commitment_at TEXT,
			departure_at TEXT,
			last_changed_at TEXT,
			delayed INTEGER NOT NULL DEFAULT 0,
			discarded INTEGER NOT NULL DEFAULT 0,
			flagged INTEGER NOT NULL DEFAULT 0,
			custom_fields_json TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (org_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			org_id TEXT NOT NULL,
			work_item_id TEXT NOT NULL,
			snapshot_at TEXT NOT NULL,
			state TEXT NOT NULL,
			state_category TEXT NOT NULL,
			state_type TEXT NOT NULL DEFAULT '',
			flagged INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (org_id, work_item_id, snapshot_at)
		);`,
		`CREATE TABLE IF NOT EXISTS org_settings (
			org_id TEXT PRIMARY KEY,
			settings_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS contexts (
			org_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			rolling_window_days INTEGER,
			PRIMARY KEY (org_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS work_item_types (
			org_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			level TEXT NOT NULL DEFAULT '',
			sle_days INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (org_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS custom_field_configs (
			org_id TEXT NOT NULL,
			datasource_field_name TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			tags_json TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (org_id, datasource_field_name)
		);`,
		`CREATE TABLE IF NOT EXISTS normalisation (
			org_id TEXT NOT NULL,
			tag TEXT NOT NULL,
			work_item_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			PRIMARY KEY (org_id, tag, work_item_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_item ON snapshots(org_id, work_item_id, snapshot_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.driver, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func formatTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil, fmt.Errorf("parse stored time %q: %w", ns.String, err)
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
