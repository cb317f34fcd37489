package inventory_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/stockroom/inventory"
	"github.com/warp/stockroom/inventory/store"
	"github.com/warp/stockroom/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var backends = map[string]func(t *testing.T) inventory.TxStore{
	"memory": func(t *testing.T) inventory.TxStore {
		return store.NewMemory()
	},
	"sqlite": func(t *testing.T) inventory.TxStore {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	},
}

// stepClock advances one second per reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type published struct {
	topic string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic, event})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.topic
	}
	return out
}

type fixture struct {
	ctx   context.Context
	store inventory.TxStore
	svc   *inventory.Service
	pub   *recordingPublisher
	clock *stepClock

	employee   inventory.EmployeeID
	authorizer inventory.AuthorizerID
	facility   inventory.FacilityID
}

func newFixture(t *testing.T, newStore func(t *testing.T) inventory.TxStore) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: newStore(t),
		pub:   &recordingPublisher{},
		clock: &stepClock{now: time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)},
	}
	f.svc = inventory.NewService(inventory.Deps{
		Store:     f.store,
		Clock:     f.clock,
		Publisher: f.pub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	e, err := f.svc.Catalog.AddEmployee(f.ctx, "Ana Souza")
	require.NoError(t, err)
	a, err := f.svc.Catalog.AddAuthorizer(f.ctx, "Shift Supervisor")
	require.NoError(t, err)
	fac, err := f.svc.Catalog.AddFacility(f.ctx, "North Depot", "Dock 3")
	require.NoError(t, err)
	f.employee, f.authorizer, f.facility = e.ID, a.ID, fac.ID
	return f
}

// eachStore runs fn once per backend as a subtest.
func eachStore(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, newFixture(t, newStore))
		})
	}
}

func (f *fixture) material(t *testing.T, name string, stock int64) inventory.MaterialID {
	t.Helper()
	m, err := f.svc.Catalog.AddMaterial(f.ctx, name, stock)
	require.NoError(t, err)
	return m.ID
}

func (f *fixture) open(t *testing.T) *inventory.Session {
	t.Helper()
	return f.openFor(t, f.employee)
}

func (f *fixture) openFor(t *testing.T, employee inventory.EmployeeID) *inventory.Session {
	t.Helper()
	s, err := f.svc.Sessions.Open(f.ctx, inventory.OpenSession{
		EmployeeID:    employee,
		AuthorizerID:  f.authorizer,
		FacilityID:    f.facility,
		Justification: inventory.JustificationFieldWithdrawal,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) record(session inventory.SessionID, material inventory.MaterialID, qty int64, kind inventory.MovementKind) (*inventory.MovementResult, error) {
	return f.svc.Movements.Record(f.ctx, inventory.RecordMovement{
		SessionID:  session,
		MaterialID: material,
		Quantity:   qty,
		Kind:       kind,
	})
}

func (f *fixture) stock(t *testing.T, id inventory.MaterialID) int64 {
	t.Helper()
	m, err := f.store.GetMaterial(f.ctx, id)
	require.NoError(t, err)
	return m.StockQuantity
}

// replayed recomputes a material's stock from its opening quantity and
// every stored movement.
func (f *fixture) replayed(t *testing.T, id inventory.MaterialID) int64 {
	t.Helper()
	m, err := f.store.GetMaterial(f.ctx, id)
	require.NoError(t, err)
	records, err := f.store.ListMovementRecords(f.ctx, inventory.MovementFilter{})
	require.NoError(t, err)

	total := m.OpeningStock
	for _, r := range records {
		if r.MaterialID == id {
			total += r.Kind.Delta(r.Quantity)
		}
	}
	return total
}
