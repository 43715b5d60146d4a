package usage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Supported SQL dialects, named after their database/sql driver
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// SQLConfig configures a SQLStore connection
type SQLConfig struct {
	Driver      string
	DSN         string
	MaxConns    int
	MaxLifetime time.Duration
	Timeout     time.Duration
}

// SQLStore keeps counters in a plugin_usage table
type SQLStore struct {
	db      *sql.DB
	dialect string
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

const (
	recordQuery = `INSERT INTO plugin_usage (name, usage_count, last_used)
VALUES ($1, 1, $2)
ON CONFLICT (name) DO UPDATE SET
	usage_count = plugin_usage.usage_count + 1,
	last_used = CASE
		WHEN plugin_usage.last_used IS NULL OR excluded.last_used > plugin_usage.last_used
		THEN excluded.last_used
		ELSE plugin_usage.last_used
	END`

	snapshotQuery = `SELECT name, usage_count, last_used FROM plugin_usage`
)

var migrations = map[string]string{
	DialectPostgres: `CREATE TABLE IF NOT EXISTS plugin_usage (
	name TEXT PRIMARY KEY,
	usage_count BIGINT NOT NULL DEFAULT 0,
	last_used TIMESTAMPTZ
)`,
	DialectSQLite: `CREATE TABLE IF NOT EXISTS plugin_usage (
	name TEXT PRIMARY KEY,
	usage_count INTEGER NOT NULL DEFAULT 0,
	last_used TIMESTAMP
)`,
}

// OpenSQLStore opens a database, verifies the connection and applies the schema
func OpenSQLStore(ctx context.Context, cfg SQLConfig) (*SQLStore, error) {
	if _, ok := migrations[cfg.Driver]; !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewSQLStore(db, cfg.Driver)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open database. dialect is DialectPostgres or DialectSQLite.
func NewSQLStore(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// DB returns the underlying database for health checks
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Migrate creates the plugin_usage table if it does not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	ddl, ok := migrations[s.dialect]
	if !ok {
		return fmt.Errorf("unsupported sql dialect %q", s.dialect)
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to migrate plugin_usage: %w", err)
	}
	return nil
}

// rebind converts $N placeholders for drivers that expect ?
func (s *SQLStore) rebind(query string) string {
	if s.dialect == DialectPostgres {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?")
}

// Record implements Store
func (s *SQLStore) Record(ctx context.Context, name string, at time.Time) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(recordQuery), name, at.UTC()); err != nil {
		return fmt.Errorf("failed to record usage for %s: %w", name, err)
	}
	return nil
}

// Snapshot implements Store
func (s *SQLStore) Snapshot(ctx context.Context) (map[string]Stat, error) {
	rows, err := s.db.QueryContext(ctx, snapshotQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Stat)
	for rows.Next() {
		var (
			stat     Stat
			lastUsed sql.NullTime
		)
		if err := rows.Scan(&stat.Name, &stat.Count, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		if lastUsed.Valid {
			t := lastUsed.Time.UTC()
			stat.LastUsed = &t
		}
		out[stat.Name] = stat
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage rows: %w", err)
	}
	return out, nil
}

// Close implements Store
func (s *SQLStore) Close() error {
	return s.db.Close()
}
