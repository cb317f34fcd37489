package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/warp/stockroom/inventory"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries implements inventory.Store over an executor. Lock* queries take
// row locks only when db is a transaction.
type Queries struct {
	db executor
	d  Dialect
}

func New(db executor, d Dialect) *Queries {
	return &Queries{db: db, d: d}
}

var _ inventory.Store = (*Queries)(nil)

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.d.Rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.d.Rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.d.Rebind(query), args...)
}

// notFound maps sql.ErrNoRows to the inventory sentinel for the record.
func notFound(err error, sentinel error, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", sentinel, id)
	}
	return err
}

// mustAffect turns a zero-row UPDATE into the record's not-found error.
func mustAffect(res sql.Result, sentinel error, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %v", sentinel, id)
	}
	return nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (q *Queries) SaveEmployee(ctx context.Context, e inventory.Employee) error {
	_, err := q.exec(ctx, `
		INSERT INTO employees (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		e.ID, e.Name)
	if err != nil {
		return fmt.Errorf("save employee: %w", err)
	}
	return nil
}

func (q *Queries) GetEmployee(ctx context.Context, id inventory.EmployeeID) (*inventory.Employee, error) {
	var e inventory.Employee
	err := q.queryRow(ctx, `SELECT id, name FROM employees WHERE id = ?`, id).Scan(&e.ID, &e.Name)
	if err != nil {
		return nil, notFound(err, inventory.ErrEmployeeNotFound, id)
	}
	return &e, nil
}

func (q *Queries) ListEmployees(ctx context.Context) ([]inventory.Employee, error) {
	rows, err := q.query(ctx, `SELECT id, name FROM employees ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.Employee
	for rows.Next() {
		var e inventory.Employee
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) SaveAuthorizer(ctx context.Context, a inventory.Authorizer) error {
	_, err := q.exec(ctx, `
		INSERT INTO authorizers (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		a.ID, a.Name)
	if err != nil {
		return fmt.Errorf("save authorizer: %w", err)
	}
	return nil
}

func (q *Queries) GetAuthorizer(ctx context.Context, id inventory.AuthorizerID) (*inventory.Authorizer, error) {
	var a inventory.Authorizer
	err := q.queryRow(ctx, `SELECT id, name FROM authorizers WHERE id = ?`, id).Scan(&a.ID, &a.Name)
	if err != nil {
		return nil, notFound(err, inventory.ErrAuthorizerNotFound, id)
	}
	return &a, nil
}

func (q *Queries) ListAuthorizers(ctx context.Context) ([]inventory.Authorizer, error) {
	rows, err := q.query(ctx, `SELECT id, name FROM authorizers ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.Authorizer
	for rows.Next() {
		var a inventory.Authorizer
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) SaveFacility(ctx context.Context, f inventory.Facility) error {
	_, err := q.exec(ctx, `
		INSERT INTO facilities (id, name, location) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, location = excluded.location`,
		f.ID, f.Name, f.Location)
	if err != nil {
		return fmt.Errorf("save facility: %w", err)
	}
	return nil
}

func (q *Queries) GetFacility(ctx context.Context, id inventory.FacilityID) (*inventory.Facility, error) {
	var f inventory.Facility
	err := q.queryRow(ctx, `SELECT id, name, location FROM facilities WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &f.Location)
	if err != nil {
		return nil, notFound(err, inventory.ErrFacilityNotFound, id)
	}
	return &f, nil
}

func (q *Queries) ListFacilities(ctx context.Context) ([]inventory.Facility, error) {
	rows, err := q.query(ctx, `SELECT id, name, location FROM facilities ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.Facility
	for rows.Next() {
		var f inventory.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.Location); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// =============================================================================
// MATERIALS
// =============================================================================

func (q *Queries) CreateMaterial(ctx context.Context, m inventory.Material) error {
	_, err := q.exec(ctx, `
		INSERT INTO materials (id, name, stock_quantity, opening_stock) VALUES (?, ?, ?, ?)`,
		m.ID, m.Name, m.StockQuantity, m.OpeningStock)
	if err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

func (q *Queries) GetMaterial(ctx context.Context, id inventory.MaterialID) (*inventory.Material, error) {
	m, err := scanMaterial(q.queryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, inventory.ErrMaterialNotFound, id)
	}
	return m, nil
}

func (q *Queries) ListMaterials(ctx context.Context) ([]inventory.Material, error) {
	rows, err := q.query(ctx, `SELECT `+materialColumns+` FROM materials ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (q *Queries) LockMaterial(ctx context.Context, id inventory.MaterialID) (*inventory.Material, error) {
	m, err := scanMaterial(q.queryRow(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE id = ?`+q.d.ForUpdate, id))
	if err != nil {
		return nil, notFound(err, inventory.ErrMaterialNotFound, id)
	}
	return m, nil
}

func (q *Queries) UpdateStock(ctx context.Context, id inventory.MaterialID, quantity int64) error {
	res, err := q.exec(ctx, `UPDATE materials SET stock_quantity = ? WHERE id = ?`, quantity, id)
	if err != nil {
		return err
	}
	return mustAffect(res, inventory.ErrMaterialNotFound, id)
}

// =============================================================================
// SESSIONS
// =============================================================================

func (q *Queries) CreateSession(ctx context.Context, s inventory.Session) error {
	_, err := q.exec(ctx, `
		INSERT INTO access_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.EmployeeID, s.AuthorizerID, s.FacilityID, s.Kind, s.Justification,
		nullString(s.Note), encodeTime(s.OpenedAt), nullTimePtr(s.ClosedAt), nullString(s.ClosedBy),
		s.Status, s.Active)
	if err != nil {
		if q.d.uniqueViolation(err) {
			return &inventory.DuplicateOpenSessionError{EmployeeID: s.EmployeeID}
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (q *Queries) GetSession(ctx context.Context, id inventory.SessionID) (*inventory.Session, error) {
	s, err := scanSession(q.queryRow(ctx, `SELECT `+sessionColumns+` FROM access_sessions WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, inventory.ErrSessionNotFound, id)
	}
	return s, nil
}

func (q *Queries) LockSession(ctx context.Context, id inventory.SessionID) (*inventory.Session, error) {
	s, err := scanSession(q.queryRow(ctx,
		`SELECT `+sessionColumns+` FROM access_sessions WHERE id = ?`+q.d.ForUpdate, id))
	if err != nil {
		return nil, notFound(err, inventory.ErrSessionNotFound, id)
	}
	return s, nil
}

func (q *Queries) FindOpenSession(ctx context.Context, employeeID inventory.EmployeeID) (*inventory.Session, error) {
	s, err := scanSession(q.queryRow(ctx,
		`SELECT `+sessionColumns+` FROM access_sessions WHERE employee_id = ? AND status = ?`,
		employeeID, inventory.StatusOpen))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (q *Queries) UpdateSession(ctx context.Context, s inventory.Session) error {
	res, err := q.exec(ctx, `
		UPDATE access_sessions
		SET note = ?, closed_at = ?, closed_by = ?, status = ?, active = ?
		WHERE id = ?`,
		nullString(s.Note), nullTimePtr(s.ClosedAt), nullString(s.ClosedBy), s.Status, s.Active, s.ID)
	if err != nil {
		return err
	}
	return mustAffect(res, inventory.ErrSessionNotFound, s.ID)
}

// ListSessions filters by status in SQL and by employee name and dates
// with SessionFilter.Matches.
func (q *Queries) ListSessions(ctx context.Context, filter inventory.SessionFilter) ([]inventory.Session, error) {
	query := `
		SELECT s.` + strings.ReplaceAll(sessionColumns, ", ", ", s.") + `, e.name
		FROM access_sessions s
		JOIN employees e ON e.id = s.employee_id`
	var args []any
	if filter.Status != "" {
		query += ` WHERE s.status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY s.opened_at DESC, s.id DESC`

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.Session
	for rows.Next() {
		var name string
		s, err := scanSession(rows, &name)
		if err != nil {
			return nil, err
		}
		if filter.Matches(*s, name) {
			out = append(out, *s)
		}
	}
	return out, rows.Err()
}

// =============================================================================
// MOVEMENTS
// =============================================================================

func (q *Queries) InsertMovement(ctx context.Context, m inventory.Movement) error {
	_, err := q.exec(ctx, `
		INSERT INTO movements (`+movementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.MaterialID, m.Quantity, m.Kind,
		encodeTime(m.CreatedAt), encodeTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (q *Queries) GetMovement(ctx context.Context, id inventory.MovementID) (*inventory.Movement, error) {
	m, err := scanMovement(q.queryRow(ctx, `SELECT `+movementColumns+` FROM movements WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, inventory.ErrMovementNotFound, id)
	}
	return m, nil
}

func (q *Queries) LockMovement(ctx context.Context, id inventory.MovementID) (*inventory.Movement, error) {
	m, err := scanMovement(q.queryRow(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE id = ?`+q.d.ForUpdate, id))
	if err != nil {
		return nil, notFound(err, inventory.ErrMovementNotFound, id)
	}
	return m, nil
}

func (q *Queries) UpdateMovement(ctx context.Context, m inventory.Movement) error {
	res, err := q.exec(ctx, `
		UPDATE movements
		SET material_id = ?, quantity = ?, kind = ?, updated_at = ?
		WHERE id = ?`,
		m.MaterialID, m.Quantity, m.Kind, encodeTime(m.UpdatedAt), m.ID)
	if err != nil {
		return err
	}
	return mustAffect(res, inventory.ErrMovementNotFound, m.ID)
}

func (q *Queries) CountMovements(ctx context.Context, sessionID inventory.SessionID) (int, error) {
	var n int
	err := q.queryRow(ctx, `SELECT COUNT(*) FROM movements WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// maxSessionIDs bounds the IN list of one query. SQLite builds before
// 3.32 accept at most 999 bound parameters.
var maxSessionIDs = 500

// ListMovementRecords splits long SessionIDs filters into several queries
// and merges the results back into opened-at order.
func (q *Queries) ListMovementRecords(ctx context.Context, filter inventory.MovementFilter) ([]inventory.MovementRecord, error) {
	if len(filter.SessionIDs) <= maxSessionIDs {
		return q.listMovementRecords(ctx, filter)
	}

	var out []inventory.MovementRecord
	for ids := filter.SessionIDs; len(ids) > 0; {
		n := min(len(ids), maxSessionIDs)
		part := filter
		part.SessionIDs = ids[:n]
		ids = ids[n:]

		records, err := q.listMovementRecords(ctx, part)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out, nil
}

func (q *Queries) listMovementRecords(ctx context.Context, filter inventory.MovementFilter) ([]inventory.MovementRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.FacilityID != "" {
		where = append(where, "s.facility_id = ?")
		args = append(args, filter.FacilityID)
	}
	if filter.EmployeeID != "" {
		where = append(where, "s.employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.OpenedFrom != nil {
		where = append(where, "s.opened_at >= ?")
		args = append(args, encodeTime(*filter.OpenedFrom))
	}
	if filter.OpenedTo != nil {
		where = append(where, "s.opened_at < ?")
		args = append(args, encodeTime(*filter.OpenedTo))
	}
	if len(filter.SessionIDs) > 0 {
		marks := make([]string, len(filter.SessionIDs))
		for i, id := range filter.SessionIDs {
			marks[i] = "?"
			args = append(args, id)
		}
		where = append(where, "m.session_id IN ("+strings.Join(marks, ", ")+")")
	}

	query := `
		SELECT m.id, m.session_id, m.material_id, mat.name, mat.stock_quantity,
			m.quantity, m.kind, s.employee_id, e.name, s.facility_id,
			s.kind, s.status, s.opened_at
		FROM movements m
		JOIN access_sessions s ON s.id = m.session_id
		JOIN materials mat ON mat.id = m.material_id
		JOIN employees e ON e.id = s.employee_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY s.opened_at, m.created_at, m.id`

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.MovementRecord
	for rows.Next() {
		r, err := scanMovementRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
