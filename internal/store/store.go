// Package store provides the offline backend: durable, family-scoped
// storage of domain entities in an embedded SQLite database.
//
// The store mints temporary local identifiers for every row it inserts and
// is the source of truth for an offline family until the sync engine
// migrates it to the remote backend. After migration the rows remain as a
// non-authoritative cache mirroring the remote dataset.
//
// All reads and writes are scoped by family id; the store never returns or
// mutates another family's rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ident"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection for the local store.
// The database runs embedded with WAL mode for concurrent reads.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// If the database doesn't exist it is created; call InitSchema before use.
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open(filepath.Join(dataDir, "budget.db"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection. The sync queue shares
// this connection so queued mutations are durable in the same file as the
// data they describe.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection after checkpointing the WAL.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the domain tables if they don't exist. Idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS families (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_offline INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS family_members (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS category_limits (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		category_key TEXT NOT NULL,
		percentage TEXT NOT NULL,
		UNIQUE (family_id, category_key)
	);

	CREATE TABLE IF NOT EXISTS months (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		income TEXT NOT NULL DEFAULT '0',
		UNIQUE (family_id, year, month)
	);

	CREATE TABLE IF NOT EXISTS income_sources (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		month_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subcategories (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		category_key TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recurring_expenses (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		title TEXT NOT NULL,
		category_key TEXT NOT NULL,
		value TEXT NOT NULL,
		subcategory_id TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		month_id TEXT NOT NULL,
		title TEXT NOT NULL,
		category_key TEXT NOT NULL,
		value TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		subcategory_id TEXT,
		recurring_expense_id TEXT,
		installment_number INTEGER NOT NULL DEFAULT 0,
		installment_total INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name TEXT NOT NULL,
		target_value TEXT NOT NULL,
		deadline TEXT
	);

	CREATE TABLE IF NOT EXISTS goal_entries (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		goal_id TEXT NOT NULL,
		value TEXT NOT NULL,
		date TEXT NOT NULL,
		note TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_members_family ON family_members(family_id);
	CREATE INDEX IF NOT EXISTS idx_limits_family ON category_limits(family_id);
	CREATE INDEX IF NOT EXISTS idx_months_family ON months(family_id);
	CREATE INDEX IF NOT EXISTS idx_income_family ON income_sources(family_id);
	CREATE INDEX IF NOT EXISTS idx_income_month ON income_sources(month_id);
	CREATE INDEX IF NOT EXISTS idx_subcats_family ON subcategories(family_id);
	CREATE INDEX IF NOT EXISTS idx_recurring_family ON recurring_expenses(family_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_family ON expenses(family_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_month ON expenses(month_id);
	CREATE INDEX IF NOT EXISTS idx_goals_family ON goals(family_id);
	CREATE INDEX IF NOT EXISTS idx_entries_family ON goal_entries(family_id);
	CREATE INDEX IF NOT EXISTS idx_entries_goal ON goal_entries(goal_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// mintID generates a fresh offline identifier for table, retrying on the
// (vanishingly unlikely) collision with an existing row.
func (db *DB) mintID(ctx context.Context, table, prefix string) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		id := ident.Mint(prefix)

		var count int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table)
		if err := db.conn.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
			return "", fmt.Errorf("failed to check id collision: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to mint unique id for %s after retries", table)
}

// decFromText parses a stored decimal column, treating garbage as zero
// rather than failing the whole scan.
func decFromText(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// timeToNullString converts an optional time to a nullable SQL string.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// nullStringToTime converts a nullable SQL string to an optional time.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
