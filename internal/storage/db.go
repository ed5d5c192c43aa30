// ABOUTME: SQLite database connection and lifecycle management.
// ABOUTME: Uses modernc.org/sqlite (pure Go, no CGO required) over a single connection.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/harperreed/lift/internal/models"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection.
type DB struct {
	db      *sql.DB
	dbPath  string
	now     func() time.Time
	queries atomic.Int64 // read queries issued by the pull paths
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens or creates a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	// foreign_keys is also set in the DSN so a reconnected pool member enforces it.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Pragmas are per connection; a single connection keeps foreign keys enforced
	// and serializes writers the way the app expects.
	db.SetMaxOpenConns(1)

	// Set file permissions
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	d := &DB{db: db, dbPath: dbPath, now: time.Now}

	if err := d.configurePragmas(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure pragmas: %w", err)
	}

	if err := d.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return d, nil
}

// DataDir returns the default data directory following XDG spec.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "lift")
}

// DefaultDBPath returns the default database path following XDG spec.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "lift.db")
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.dbPath
}

// SetClock replaces the wall clock used for local timestamps.
func (d *DB) SetClock(now func() time.Time) {
	d.now = now
}

// Now returns the current time at persisted precision.
func (d *DB) Now() time.Time {
	return models.Truncate(d.now())
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// configurePragmas sets up SQLite for optimal performance.
func (d *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := d.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling back otherwise.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// queryRows runs a counted read query.
func (d *DB) queryRows(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	d.queries.Add(1)
	return q.QueryContext(ctx, query, args...)
}

// Filter restricts a bulk pull. Clause is a trusted SQL fragment written against
// the entity's own table columns, with '?' placeholders bound to Args.
type Filter struct {
	Clause string
	Args   []any
}

// All matches every row.
var All = Filter{}

// Dirty matches rows changed locally since the last acknowledged push.
var Dirty = Filter{Clause: "dirty = 1"}

// Where builds a filter from a clause and its arguments.
func Where(clause string, args ...any) Filter {
	return Filter{Clause: clause, Args: args}
}

// IDs matches rows whose id is in ids.
func IDs(ids ...string) Filter {
	return Filter{Clause: "id IN (" + placeholders(len(ids)) + ")", Args: stringArgs(ids)}
}

// restrict renders the filter as an id subquery on table for joined selects.
func (f Filter) restrict(alias, table string) (string, []any) {
	if f.Clause == "" {
		return "", nil
	}
	return fmt.Sprintf(" WHERE %s.id IN (SELECT id FROM %s WHERE %s)", alias, table, f.Clause), f.Args
}

func placeholders(n int) string {
	if n <= 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
