/*
store.go - Persistence contracts for the inventory core

PURPOSE:
  Defines the interface between the core and the database. Different
  implementations use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   Reads and writes for reference data, materials, sessions, movements
  TxStore: Store plus WithTx for atomic multi-step operations
  SnapshotStore: optional read-only snapshot for multi-query reports

LOCKING CONTRACT:
  LockMaterial, LockMovement and LockSession read a row and hold it
  exclusively until the surrounding transaction ends (SELECT ... FOR UPDATE
  on PostgreSQL). Stores that serialize all writers (SQLite, memory) may
  implement them as plain reads. Outside WithTx they are plain reads.

STOCK WRITES:
  UpdateStock is the only way stock changes after a material is created,
  and StockLedger.Apply is its only caller. Nothing else may use it.

UNIQUENESS:
  CreateSession must reject a second open session for the same employee
  with ErrDuplicateOpenSession (unique partial index or equivalent), even
  when the caller already checked FindOpenSession.

SEE ALSO:
  - inventory/store/memory.go: In-memory implementation
  - store/sqlite/sqlite.go: SQLite implementation
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package inventory

import "context"

// Store handles persistence for the inventory core.
// Get*/Lock* return the matching Err*NotFound when the row does not exist.
type Store interface {
	// Reference data
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	SaveAuthorizer(ctx context.Context, a Authorizer) error
	GetAuthorizer(ctx context.Context, id AuthorizerID) (*Authorizer, error)
	ListAuthorizers(ctx context.Context) ([]Authorizer, error)
	SaveFacility(ctx context.Context, f Facility) error
	GetFacility(ctx context.Context, id FacilityID) (*Facility, error)
	ListFacilities(ctx context.Context) ([]Facility, error)

	// Materials
	CreateMaterial(ctx context.Context, m Material) error
	GetMaterial(ctx context.Context, id MaterialID) (*Material, error)
	ListMaterials(ctx context.Context) ([]Material, error)
	LockMaterial(ctx context.Context, id MaterialID) (*Material, error)
	UpdateStock(ctx context.Context, id MaterialID, quantity int64) error

	// Sessions
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	LockSession(ctx context.Context, id SessionID) (*Session, error)
	// FindOpenSession returns (nil, nil) when the employee has no open session.
	FindOpenSession(ctx context.Context, employeeID EmployeeID) (*Session, error)
	UpdateSession(ctx context.Context, s Session) error
	// ListSessions returns matches ordered by OpenedAt, newest first.
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)

	// Movements
	InsertMovement(ctx context.Context, m Movement) error
	GetMovement(ctx context.Context, id MovementID) (*Movement, error)
	LockMovement(ctx context.Context, id MovementID) (*Movement, error)
	UpdateMovement(ctx context.Context, m Movement) error
	CountMovements(ctx context.Context, sessionID SessionID) (int, error)
	ListMovementRecords(ctx context.Context, filter MovementFilter) ([]MovementRecord, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// SnapshotStore is implemented by stores whose WithTx does not give every
// statement the same view of the data. ReadSnapshot runs fn read-only
// against one snapshot.
type SnapshotStore interface {
	ReadSnapshot(ctx context.Context, fn func(Store) error) error
}
