// Package postgres implements inventory.TxStore backed by PostgreSQL.
//
// Lock* reads use SELECT ... FOR UPDATE, so inside WithTx a material,
// session or movement row stays locked until commit or rollback. This is
// the backend for several server instances sharing one database.
//
// Reports read through ReadSnapshot (REPEATABLE READ, READ ONLY) so the
// materials and movements they join come from the same snapshot.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/warp/stockroom/inventory"
	"github.com/warp/stockroom/store/sqlstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Dialect is the PostgreSQL flavour of the shared queries.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Numbered:          true,
	ForUpdate:         " FOR UPDATE",
	IsUniqueViolation: isUniqueViolation,
}

// Store implements inventory.TxStore backed by a PostgreSQL database.
type Store struct {
	*sqlstore.Queries
	db *sql.DB
}

// Compile-time checks that Store implements the inventory store interfaces.
var (
	_ inventory.TxStore       = (*Store)(nil)
	_ inventory.SnapshotStore = (*Store)(nil)
)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newStore(db), nil
}

func newStore(db *sql.DB) *Store {
	return &Store{Queries: sqlstore.New(db, Dialect), db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx begins a database transaction, hands fn a Store bound to it, and
// commits on success or rolls back on error.
func (s *Store) WithTx(ctx context.Context, fn func(tx inventory.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(sqlstore.New(tx, Dialect)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// snapshotTx is issued first in ReadSnapshot. WithTx runs at READ
// COMMITTED, where each statement sees a different snapshot.
const snapshotTx = `SET TRANSACTION ISOLATION LEVEL REPEATABLE READ, READ ONLY`

// ReadSnapshot runs fn in a read-only REPEATABLE READ transaction, so every
// query fn makes sees the database as of the first one.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(tx inventory.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, snapshotTx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set snapshot isolation: %w", err)
	}

	if err := fn(sqlstore.New(tx, Dialect)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
