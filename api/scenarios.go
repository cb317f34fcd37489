/*
scenarios.go - Demo data loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the store with realistic
	warehouse data. Every scenario goes through the same operations the
	API exposes, so stock and sessions stay consistent with the ledger.

AVAILABLE SCENARIOS:
	starter-stockroom:  one facility, staff and a handful of materials
	month-of-activity:  starter data plus closed and open sessions, an edit
	                    and a material driven below the low-stock threshold

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "month-of-activity"}

NOTE:
	Scenarios add data; they never reset the store. Each load creates fresh
	records, so loading twice does not collide with earlier open sessions.
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/stockroom/inventory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "starter-stockroom",
		Name:        "Starter Stockroom",
		Description: "One facility, two technicians, a supervisor and four materials",
	},
	{
		ID:          "month-of-activity",
		Name:        "Month of Activity",
		Description: "Closed and open visits with withdrawals, returns, an edit and a low-stock material",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "starter-stockroom":
		_, err = h.loadStarterScenario(ctx)
	case "month-of-activity":
		err = h.loadMonthOfActivityScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		h.fail(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type starterData struct {
	facility    inventory.FacilityID
	supervisor  inventory.AuthorizerID
	technicians []inventory.EmployeeID
	materials   map[string]inventory.MaterialID
}

func (h *Handler) loadStarterScenario(ctx context.Context) (*starterData, error) {
	catalog := h.Service.Catalog
	data := &starterData{materials: make(map[string]inventory.MaterialID)}

	f, err := catalog.AddFacility(ctx, "Central Depot", "Building C, ground floor")
	if err != nil {
		return nil, err
	}
	data.facility = f.ID

	a, err := catalog.AddAuthorizer(ctx, "Marta Supervisor")
	if err != nil {
		return nil, err
	}
	data.supervisor = a.ID

	for _, name := range []string{"Ana Technician", "Bruno Technician"} {
		e, err := catalog.AddEmployee(ctx, name)
		if err != nil {
			return nil, err
		}
		data.technicians = append(data.technicians, e.ID)
	}

	for _, m := range []struct {
		name  string
		stock int64
	}{
		{"Copper cable 2.5mm (m)", 200},
		{"Wall anchor 8mm", 500},
		{"Circuit breaker 16A", 12},
		{"Safety gloves (pair)", 8},
	} {
		mat, err := catalog.AddMaterial(ctx, m.name, m.stock)
		if err != nil {
			return nil, err
		}
		data.materials[m.name] = mat.ID
	}
	return data, nil
}

func (h *Handler) loadMonthOfActivityScenario(ctx context.Context) error {
	data, err := h.loadStarterScenario(ctx)
	if err != nil {
		return err
	}
	sessions, movements := h.Service.Sessions, h.Service.Movements
	cable := data.materials["Copper cable 2.5mm (m)"]
	anchors := data.materials["Wall anchor 8mm"]
	breakers := data.materials["Circuit breaker 16A"]
	gloves := data.materials["Safety gloves (pair)"]

	// Ana: a field job, closed, with a corrected quantity.
	ana, err := sessions.Open(ctx, inventory.OpenSession{
		EmployeeID:    data.technicians[0],
		AuthorizerID:  data.supervisor,
		FacilityID:    data.facility,
		Justification: inventory.JustificationFieldWithdrawal,
	})
	if err != nil {
		return err
	}
	var cableMove inventory.MovementID
	for _, m := range []inventory.RecordMovement{
		{MaterialID: cable, Quantity: 40, Kind: inventory.KindWithdrawal},
		{MaterialID: anchors, Quantity: 60, Kind: inventory.KindWithdrawal},
		{MaterialID: breakers, Quantity: 2, Kind: inventory.KindWithdrawal},
	} {
		m.SessionID = ana.ID
		res, err := movements.Record(ctx, m)
		if err != nil {
			return err
		}
		if m.MaterialID == cable {
			cableMove = res.Movement.ID
		}
	}
	if _, err := movements.Edit(ctx, cableMove, inventory.EditMovement{
		Quantity: 35,
		Kind:     inventory.KindWithdrawal,
	}); err != nil {
		return err
	}
	if _, err := sessions.Close(ctx, ana.ID, "scenario", nil); err != nil {
		return err
	}

	// Bruno: returns leftovers, then takes gloves; still inside.
	bruno, err := sessions.Open(ctx, inventory.OpenSession{
		EmployeeID:    data.technicians[1],
		AuthorizerID:  data.supervisor,
		FacilityID:    data.facility,
		Justification: inventory.JustificationOther,
		Note:          "Returning surplus from the north site job",
	})
	if err != nil {
		return err
	}
	for _, m := range []inventory.RecordMovement{
		{MaterialID: anchors, Quantity: 15, Kind: inventory.KindReturn},
		{MaterialID: gloves, Quantity: 5, Kind: inventory.KindWithdrawal},
	} {
		m.SessionID = bruno.ID
		if _, err := movements.Record(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
