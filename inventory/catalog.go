package inventory

import (
	"context"
	"strings"

	"github.com/warp/stockroom/idgen"
)

// Catalog registers reference data and materials.
type Catalog struct {
	deps Deps
}

func NewCatalog(deps Deps) *Catalog {
	return &Catalog{deps: deps.withDefaults()}
}

func newID(prefix string) (string, error) {
	return idgen.New(prefix)
}

func requireName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "is required")
	}
	return name, nil
}

func (c *Catalog) AddEmployee(ctx context.Context, name string) (*Employee, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}
	id, err := newID(idgen.PrefixEmployee)
	if err != nil {
		return nil, err
	}
	e := Employee{ID: EmployeeID(id), Name: name}
	if err := c.deps.Store.SaveEmployee(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Catalog) AddAuthorizer(ctx context.Context, name string) (*Authorizer, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}
	id, err := newID(idgen.PrefixAuthorizer)
	if err != nil {
		return nil, err
	}
	a := Authorizer{ID: AuthorizerID(id), Name: name}
	if err := c.deps.Store.SaveAuthorizer(ctx, a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Catalog) AddFacility(ctx context.Context, name, location string) (*Facility, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}
	id, err := newID(idgen.PrefixFacility)
	if err != nil {
		return nil, err
	}
	f := Facility{ID: FacilityID(id), Name: name, Location: strings.TrimSpace(location)}
	if err := c.deps.Store.SaveFacility(ctx, f); err != nil {
		return nil, err
	}
	return &f, nil
}

// AddMaterial registers a material with its opening stock. This is the
// only place a stock quantity is set without going through the ledger.
func (c *Catalog) AddMaterial(ctx context.Context, name string, openingStock int64) (*Material, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}
	if openingStock < 0 {
		return nil, invalid("opening_stock", "must not be negative, got %d", openingStock)
	}
	id, err := newID(idgen.PrefixMaterial)
	if err != nil {
		return nil, err
	}
	m := Material{ID: MaterialID(id), Name: name, StockQuantity: openingStock, OpeningStock: openingStock}
	if err := c.deps.Store.CreateMaterial(ctx, m); err != nil {
		return nil, err
	}
	c.deps.Logger.Info("material registered", "material", m.ID, "name", m.Name, "stock", m.StockQuantity)
	return &m, nil
}

// Service bundles the core components over one set of collaborators so
// they share a Locker and Clock.
type Service struct {
	Catalog   *Catalog
	Sessions  *Sessions
	Movements *Recorder
	Store     TxStore
}

func NewService(deps Deps) *Service {
	deps = deps.withDefaults()
	return &Service{
		Catalog:   NewCatalog(deps),
		Sessions:  NewSessions(deps),
		Movements: NewRecorder(deps),
		Store:     deps.Store,
	}
}
