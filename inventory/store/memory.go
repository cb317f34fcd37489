// Package store provides an in-memory inventory.TxStore.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/stockroom/inventory"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps guarded by one RWMutex. WithTx holds
// the write lock for the whole callback, so transactions are serial and
// LockMaterial/LockSession/LockMovement are plain reads.
type Memory struct {
	mu sync.RWMutex
	d  *data
}

type data struct {
	employees   map[inventory.EmployeeID]inventory.Employee
	authorizers map[inventory.AuthorizerID]inventory.Authorizer
	facilities  map[inventory.FacilityID]inventory.Facility
	materials   map[inventory.MaterialID]inventory.Material
	sessions    map[inventory.SessionID]inventory.Session
	movements   map[inventory.MovementID]inventory.Movement
}

func newData() *data {
	return &data{
		employees:   make(map[inventory.EmployeeID]inventory.Employee),
		authorizers: make(map[inventory.AuthorizerID]inventory.Authorizer),
		facilities:  make(map[inventory.FacilityID]inventory.Facility),
		materials:   make(map[inventory.MaterialID]inventory.Material),
		sessions:    make(map[inventory.SessionID]inventory.Session),
		movements:   make(map[inventory.MovementID]inventory.Movement),
	}
}

func NewMemory() *Memory {
	return &Memory{d: newData()}
}

var _ inventory.TxStore = (*Memory)(nil)

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(&view{d: m.d}); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.employees {
		c.employees[k] = v
	}
	for k, v := range d.authorizers {
		c.authorizers[k] = v
	}
	for k, v := range d.facilities {
		c.facilities[k] = v
	}
	for k, v := range d.materials {
		c.materials[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	for k, v := range d.movements {
		c.movements[k] = v
	}
	return c
}

func (m *Memory) read() (*view, func()) {
	m.mu.RLock()
	return &view{d: m.d}, m.mu.RUnlock
}

func (m *Memory) write() (*view, func()) {
	m.mu.Lock()
	return &view{d: m.d}, m.mu.Unlock
}

// -----------------------------------------------------------------------------
// Locked entry points
// -----------------------------------------------------------------------------

func (m *Memory) SaveEmployee(ctx context.Context, e inventory.Employee) error {
	v, done := m.write()
	defer done()
	return v.SaveEmployee(ctx, e)
}

func (m *Memory) GetEmployee(ctx context.Context, id inventory.EmployeeID) (*inventory.Employee, error) {
	v, done := m.read()
	defer done()
	return v.GetEmployee(ctx, id)
}

func (m *Memory) ListEmployees(ctx context.Context) ([]inventory.Employee, error) {
	v, done := m.read()
	defer done()
	return v.ListEmployees(ctx)
}

func (m *Memory) SaveAuthorizer(ctx context.Context, a inventory.Authorizer) error {
	v, done := m.write()
	defer done()
	return v.SaveAuthorizer(ctx, a)
}

func (m *Memory) GetAuthorizer(ctx context.Context, id inventory.AuthorizerID) (*inventory.Authorizer, error) {
	v, done := m.read()
	defer done()
	return v.GetAuthorizer(ctx, id)
}

func (m *Memory) ListAuthorizers(ctx context.Context) ([]inventory.Authorizer, error) {
	v, done := m.read()
	defer done()
	return v.ListAuthorizers(ctx)
}

func (m *Memory) SaveFacility(ctx context.Context, f inventory.Facility) error {
	v, done := m.write()
	defer done()
	return v.SaveFacility(ctx, f)
}

func (m *Memory) GetFacility(ctx context.Context, id inventory.FacilityID) (*inventory.Facility, error) {
	v, done := m.read()
	defer done()
	return v.GetFacility(ctx, id)
}

func (m *Memory) ListFacilities(ctx context.Context) ([]inventory.Facility, error) {
	v, done := m.read()
	defer done()
	return v.ListFacilities(ctx)
}

func (m *Memory) CreateMaterial(ctx context.Context, mat inventory.Material) error {
	v, done := m.write()
	defer done()
	return v.CreateMaterial(ctx, mat)
}

func (m *Memory) GetMaterial(ctx context.Context, id inventory.MaterialID) (*inventory.Material, error) {
	v, done := m.read()
	defer done()
	return v.GetMaterial(ctx, id)
}

func (m *Memory) ListMaterials(ctx context.Context) ([]inventory.Material, error) {
	v, done := m.read()
	defer done()
	return v.ListMaterials(ctx)
}

func (m *Memory) LockMaterial(ctx context.Context, id inventory.MaterialID) (*inventory.Material, error) {
	return m.GetMaterial(ctx, id)
}

func (m *Memory) UpdateStock(ctx context.Context, id inventory.MaterialID, quantity int64) error {
	v, done := m.write()
	defer done()
	return v.UpdateStock(ctx, id, quantity)
}

func (m *Memory) CreateSession(ctx context.Context, s inventory.Session) error {
	v, done := m.write()
	defer done()
	return v.CreateSession(ctx, s)
}

func (m *Memory) GetSession(ctx context.Context, id inventory.SessionID) (*inventory.Session, error) {
	v, done := m.read()
	defer done()
	return v.GetSession(ctx, id)
}

func (m *Memory) LockSession(ctx context.Context, id inventory.SessionID) (*inventory.Session, error) {
	return m.GetSession(ctx, id)
}

func (m *Memory) FindOpenSession(ctx context.Context, employeeID inventory.EmployeeID) (*inventory.Session, error) {
	v, done := m.read()
	defer done()
	return v.FindOpenSession(ctx, employeeID)
}

func (m *Memory) UpdateSession(ctx context.Context, s inventory.Session) error {
	v, done := m.write()
	defer done()
	return v.UpdateSession(ctx, s)
}

func (m *Memory) ListSessions(ctx context.Context, filter inventory.SessionFilter) ([]inventory.Session, error) {
	v, done := m.read()
	defer done()
	return v.ListSessions(ctx, filter)
}

func (m *Memory) InsertMovement(ctx context.Context, mv inventory.Movement) error {
	v, done := m.write()
	defer done()
	return v.InsertMovement(ctx, mv)
}

func (m *Memory) GetMovement(ctx context.Context, id inventory.MovementID) (*inventory.Movement, error) {
	v, done := m.read()
	defer done()
	return v.GetMovement(ctx, id)
}

func (m *Memory) LockMovement(ctx context.Context, id inventory.MovementID) (*inventory.Movement, error) {
	return m.GetMovement(ctx, id)
}

func (m *Memory) UpdateMovement(ctx context.Context, mv inventory.Movement) error {
	v, done := m.write()
	defer done()
	return v.UpdateMovement(ctx, mv)
}

func (m *Memory) CountMovements(ctx context.Context, sessionID inventory.SessionID) (int, error) {
	v, done := m.read()
	defer done()
	return v.CountMovements(ctx, sessionID)
}

func (m *Memory) ListMovementRecords(ctx context.Context, filter inventory.MovementFilter) ([]inventory.MovementRecord, error) {
	v, done := m.read()
	defer done()
	return v.ListMovementRecords(ctx, filter)
}

// =============================================================================
// VIEW - unlocked operations; callers hold Memory.mu
// =============================================================================

type view struct {
	d *data
}

func (v *view) SaveEmployee(_ context.Context, e inventory.Employee) error {
	v.d.employees[e.ID] = e
	return nil
}

func (v *view) GetEmployee(_ context.Context, id inventory.EmployeeID) (*inventory.Employee, error) {
	e, ok := v.d.employees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", inventory.ErrEmployeeNotFound, id)
	}
	return &e, nil
}

func (v *view) ListEmployees(_ context.Context) ([]inventory.Employee, error) {
	out := make([]inventory.Employee, 0, len(v.d.employees))
	for _, e := range v.d.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) SaveAuthorizer(_ context.Context, a inventory.Authorizer) error {
	v.d.authorizers[a.ID] = a
	return nil
}

func (v *view) GetAuthorizer(_ context.Context, id inventory.AuthorizerID) (*inventory.Authorizer, error) {
	a, ok := v.d.authorizers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", inventory.ErrAuthorizerNotFound, id)
	}
	return &a, nil
}

func (v *view) ListAuthorizers(_ context.Context) ([]inventory.Authorizer, error) {
	out := make([]inventory.Authorizer, 0, len(v.d.authorizers))
	for _, a := range v.d.authorizers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) SaveFacility(_ context.Context, f inventory.Facility) error {
	v.d.facilities[f.ID] = f
	return nil
}

func (v *view) GetFacility(_ context.Context, id inventory.FacilityID) (*inventory.Facility, error) {
	f, ok := v.d.facilities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", inventory.ErrFacilityNotFound, id)
	}
	return &f, nil
}

func (v *view) ListFacilities(_ context.Context) ([]inventory.Facility, error) {
	out := make([]inventory.Facility, 0, len(v.d.facilities))
	for _, f := range v.d.facilities {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) CreateMaterial(_ context.Context, m inventory.Material) error {
	if _, exists := v.d.materials[m.ID]; exists {
		return fmt.Errorf("material %s already exists", m.ID)
	}
	v.d.materials[m.ID] = m
	return nil
}

func (v *view) GetMaterial(_ context.Context, id inventory.MaterialID) (*inventory.Material, error) {
	m, ok := v.d.materials[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", inventory.ErrMaterialNotFound, id)
	}
	return &m, nil
}

func (v *view) ListMaterials(_ context.Context) ([]inventory.Material, error) {
	out := make([]inventory.Material, 0, len(v.d.materials))
	for _, m := range v.d.materials {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) LockMaterial(ctx context.Context, id inventory.MaterialID) (*inventory.Material, error) {
	return v.GetMaterial(ctx, id)
}

func (v *view) UpdateStock(_ context.Context, id inventory.MaterialID, quantity int64) error {
	m, ok := v.d.materials[id]
	if !ok {
		return fmt.Errorf("%w: %s", inventory.ErrMaterialNotFound, id)
	}
	if quantity < 0 {
		return fmt.Errorf("stock for %s would be negative: %d", id, quantity)
	}
	m.StockQuantity = quantity
	v.d.materials[id] = m
	return nil
}

func (v *view) CreateSession(_ context.Context, s inventory.Session) error {
	if s.Status == inventory.StatusOpen {
		for _, other := range v.d.sessions {
			if other.EmployeeID == s.EmployeeID && other.Status == inventory.StatusOpen {
				return &inventory.DuplicateOpenSessionError{EmployeeID: s.EmployeeID, ExistingSessionID: other.ID}
			}
		}
	}
	v.d.sessions[s.ID] = s
	return nil
}

func (v *view) GetSession(_ context.Context, id inventory.SessionID) (*inventory.Session, error) {
	s, ok := v.d.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", inventory.ErrSessionNotFound, id)
	}
	return &s, nil
}

func (v *view) LockSession(ctx context.Context, id inventory.SessionID) (*inventory.Session, error) {
	return v.GetSession(ctx, id)
}

func (v *view) FindOpenSession(_ context.Context, employeeID inventory.EmployeeID) (*inventory.Session, error) {
	for _, s := range v.d.sessions {
		if s.EmployeeID == employeeID && s.Status == inventory.StatusOpen {
			return &s, nil
		}
	}
	return nil, nil
}

func (v *view) UpdateSession(_ context.Context, s inventory.Session) error {
	if _, ok := v.d.sessions[s.ID]; !ok {
		return fmt.Errorf("%w: %s", inventory.ErrSessionNotFound, s.ID)
	}
	v.d.sessions[s.ID] = s
	return nil
}

func (v *view) ListSessions(_ context.Context, filter inventory.SessionFilter) ([]inventory.Session, error) {
	var out []inventory.Session
	for _, s := range v.d.sessions {
		if filter.Matches(s, v.d.employees[s.EmployeeID].Name) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].OpenedAt.After(out[j].OpenedAt)
	})
	return out, nil
}

func (v *view) InsertMovement(_ context.Context, mv inventory.Movement) error {
	if _, ok := v.d.sessions[mv.SessionID]; !ok {
		return fmt.Errorf("%w: %s", inventory.ErrSessionNotFound, mv.SessionID)
	}
	if _, ok := v.d.materials[mv.MaterialID]; !ok {
		return fmt.Errorf("%w: %s", inventory.ErrMaterialNotFound, mv.MaterialID)
	}
	if _, exists := v.d.movements[mv.ID]; exists {
		return fmt.Errorf("movement %s already exists", mv.ID)
	}
	v.d.movements[mv.ID] = mv
	return nil
}

func (v *view) GetMovement(_ context.Context, id inventory.MovementID) (*inventory.Movement, error) {
	mv, ok := v.d.movements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", inventory.ErrMovementNotFound, id)
	}
	return &mv, nil
}

func (v *view) LockMovement(ctx context.Context, id inventory.MovementID) (*inventory.Movement, error) {
	return v.GetMovement(ctx, id)
}

func (v *view) UpdateMovement(_ context.Context, mv inventory.Movement) error {
	if _, ok := v.d.movements[mv.ID]; !ok {
		return fmt.Errorf("%w: %s", inventory.ErrMovementNotFound, mv.ID)
	}
	if _, ok := v.d.materials[mv.MaterialID]; !ok {
		return fmt.Errorf("%w: %s", inventory.ErrMaterialNotFound, mv.MaterialID)
	}
	v.d.movements[mv.ID] = mv
	return nil
}

func (v *view) CountMovements(_ context.Context, sessionID inventory.SessionID) (int, error) {
	n := 0
	for _, mv := range v.d.movements {
		if mv.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

// ListMovementRecords joins each movement with its session, employee and
// material, ordered by session opened-at then movement creation.
func (v *view) ListMovementRecords(_ context.Context, filter inventory.MovementFilter) ([]inventory.MovementRecord, error) {
	var out []inventory.MovementRecord
	created := make(map[inventory.MovementID]inventory.Movement)
	for _, mv := range v.d.movements {
		s := v.d.sessions[mv.SessionID]
		mat := v.d.materials[mv.MaterialID]
		r := inventory.MovementRecord{
			MovementID:    mv.ID,
			SessionID:     mv.SessionID,
			MaterialID:    mv.MaterialID,
			MaterialName:  mat.Name,
			CurrentStock:  mat.StockQuantity,
			Quantity:      mv.Quantity,
			Kind:          mv.Kind,
			EmployeeID:    s.EmployeeID,
			EmployeeName:  v.d.employees[s.EmployeeID].Name,
			FacilityID:    s.FacilityID,
			SessionKind:   s.Kind,
			SessionStatus: s.Status,
			OpenedAt:      s.OpenedAt,
		}
		if filter.Matches(r) {
			out = append(out, r)
			created[mv.ID] = mv
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.OpenedAt.Equal(b.OpenedAt) {
			return a.OpenedAt.Before(b.OpenedAt)
		}
		ca, cb := created[a.MovementID].CreatedAt, created[b.MovementID].CreatedAt
		if !ca.Equal(cb) {
			return ca.Before(cb)
		}
		return a.MovementID < b.MovementID
	})
	return out, nil
}
