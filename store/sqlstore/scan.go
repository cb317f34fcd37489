package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/stockroom/inventory"
)

// timeLayout is fixed width so text comparison matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timeValue scans TEXT (SQLite) or TIMESTAMPTZ (PostgreSQL) columns.
type timeValue struct {
	Time  time.Time
	Valid bool
}

func (v *timeValue) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		v.Time, v.Valid = time.Time{}, false
		return nil
	case time.Time:
		v.Time, v.Valid = x.UTC(), true
		return nil
	case string:
		return v.parse(x)
	case []byte:
		return v.parse(string(x))
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
}

func (v *timeValue) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse time %q: %w", s, err)
	}
	v.Time, v.Valid = t.UTC(), true
	return nil
}

func (v timeValue) ptr() *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// =============================================================================
// ROW SCANNERS
// =============================================================================

const materialColumns = `id, name, stock_quantity, opening_stock`

func scanMaterial(row scannable) (*inventory.Material, error) {
	var m inventory.Material
	if err := row.Scan(&m.ID, &m.Name, &m.StockQuantity, &m.OpeningStock); err != nil {
		return nil, err
	}
	return &m, nil
}

const sessionColumns = `id, employee_id, authorizer_id, facility_id, kind, justification, note, opened_at, closed_at, closed_by, status, active`

func scanSession(row scannable, extra ...any) (*inventory.Session, error) {
	var (
		s        inventory.Session
		note     sql.NullString
		openedAt timeValue
		closedAt timeValue
		closedBy sql.NullString
	)
	dest := []any{
		&s.ID, &s.EmployeeID, &s.AuthorizerID, &s.FacilityID, &s.Kind, &s.Justification,
		&note, &openedAt, &closedAt, &closedBy, &s.Status, &s.Active,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	s.Note = note.String
	s.OpenedAt = openedAt.Time
	s.ClosedAt = closedAt.ptr()
	s.ClosedBy = closedBy.String
	return &s, nil
}

const movementColumns = `id, session_id, material_id, quantity, kind, created_at, updated_at`

func scanMovement(row scannable) (*inventory.Movement, error) {
	var (
		m         inventory.Movement
		createdAt timeValue
		updatedAt timeValue
	)
	if err := row.Scan(&m.ID, &m.SessionID, &m.MaterialID, &m.Quantity, &m.Kind, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	m.CreatedAt = createdAt.Time
	m.UpdatedAt = updatedAt.Time
	return &m, nil
}

func scanMovementRecord(row scannable) (inventory.MovementRecord, error) {
	var (
		r        inventory.MovementRecord
		openedAt timeValue
	)
	err := row.Scan(
		&r.MovementID, &r.SessionID, &r.MaterialID, &r.MaterialName, &r.CurrentStock,
		&r.Quantity, &r.Kind, &r.EmployeeID, &r.EmployeeName, &r.FacilityID,
		&r.SessionKind, &r.SessionStatus, &openedAt,
	)
	if err != nil {
		return r, err
	}
	r.OpenedAt = openedAt.Time
	return r, nil
}
