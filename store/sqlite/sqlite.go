/*
Package sqlite provides a SQLite-backed inventory.TxStore.

PURPOSE:
  Single-node persistence for the stockroom ledger. Queries live in
  store/sqlstore; this package owns the connection, the schema and the
  transaction boundary.

KEY TABLES:
  employees, authorizers, facilities: reference data
  materials:        stock_quantity CHECK (>= 0), opening_stock
  access_sessions:  one row per visit
  movements:        one row per withdrawal/return, FK to session + material

INDEXES:
  - idx_one_open_session: UNIQUE (employee_id) WHERE status = 'open'.
    The last line of defence for one open session per employee.
  - idx_movements_session: close-time counts, per-session balances
  - idx_sessions_opened_at: monthly report range scans

CONCURRENCY:
  The pool is limited to one connection, so a WithTx callback has the
  database to itself and LockMaterial/LockSession/LockMovement are plain
  reads. Multi-instance deployments use store/postgres.

WAL MODE:
  File databases are opened with WAL journaling and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/stockroom.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - inventory/store.go: Interface definitions
  - store/sqlstore: shared queries
  - store/postgres: row-locking backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/stockroom/inventory"
	"github.com/warp/stockroom/store/sqlstore"
)

// Dialect is the SQLite flavour of the shared queries.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite3",
	IsUniqueViolation: isUniqueConstraintError,
}

// Store implements inventory.TxStore using SQLite.
type Store struct {
	*sqlstore.Queries
	db *sql.DB
}

var _ inventory.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps a ":memory:" database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{Queries: sqlstore.New(db, Dialect), db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS authorizers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS facilities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS materials (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
		opening_stock INTEGER NOT NULL CHECK (opening_stock >= 0)
	);

	CREATE TABLE IF NOT EXISTS access_sessions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		authorizer_id TEXT NOT NULL REFERENCES authorizers(id) ON DELETE CASCADE,
		facility_id TEXT NOT NULL REFERENCES facilities(id) ON DELETE CASCADE,
		kind TEXT NOT NULL CHECK (kind IN ('entry', 'exit')),
		justification TEXT NOT NULL,
		note TEXT,
		opened_at TEXT NOT NULL,
		closed_at TEXT,
		closed_by TEXT,
		status TEXT NOT NULL CHECK (status IN ('open', 'closed')),
		active INTEGER NOT NULL
	);

	-- At most one open session per employee
	CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_session
		ON access_sessions(employee_id) WHERE status = 'open';
	CREATE INDEX IF NOT EXISTS idx_sessions_opened_at
		ON access_sessions(opened_at);

	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES access_sessions(id) ON DELETE CASCADE,
		material_id TEXT NOT NULL REFERENCES materials(id) ON DELETE CASCADE,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		kind TEXT NOT NULL CHECK (kind IN ('withdrawal', 'return')),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_session ON movements(session_id);
	CREATE INDEX IF NOT EXISTS idx_movements_material ON movements(material_id);
	`

	_, err := db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store inventory.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlstore.New(sqlTx, Dialect)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
