/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the inventory domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Reference data:
    EmployeeDTO, AuthorizerDTO, FacilityDTO, MaterialDTO, CreateNamedRequest,
    CreateFacilityRequest, CreateMaterialRequest

  Sessions:
    SessionDTO, SessionDetailDTO, SessionOverviewDTO, OpenSessionRequest,
    CloseSessionRequest

  Movements:
    MovementDTO, MovementLineDTO, MovementResultDTO, RecordMovementRequest,
    EditMovementRequest

VALIDATION:
  Validation is done by the inventory package, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/stockroom/inventory"
	"github.com/warp/stockroom/reporting"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

type EmployeeDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AuthorizerDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type FacilityDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

type MaterialDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	StockQuantity int64  `json:"stock_quantity"`
	OpeningStock  int64  `json:"opening_stock"`
}

// CreateNamedRequest creates an employee or an authorizer.
type CreateNamedRequest struct {
	Name string `json:"name"`
}

type CreateFacilityRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type CreateMaterialRequest struct {
	Name         string `json:"name"`
	OpeningStock int64  `json:"opening_stock"`
}

// =============================================================================
// SESSIONS
// =============================================================================

type SessionDTO struct {
	ID            string     `json:"id"`
	EmployeeID    string     `json:"employee_id"`
	AuthorizerID  string     `json:"authorizer_id"`
	FacilityID    string     `json:"facility_id"`
	Kind          string     `json:"kind"`
	Justification string     `json:"justification"`
	Note          string     `json:"note,omitempty"`
	OpenedAt      time.Time  `json:"opened_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	ClosedBy      string     `json:"closed_by,omitempty"`
	Status        string     `json:"status"`
	Active        bool       `json:"active"`
}

type OpenSessionRequest struct {
	EmployeeID    string `json:"employee_id"`
	AuthorizerID  string `json:"authorizer_id"`
	FacilityID    string `json:"facility_id"`
	Kind          string `json:"kind"`
	Justification string `json:"justification"`
	Note          string `json:"note"`
}

// CloseSessionRequest is optional; an empty body closes at the current time.
type CloseSessionRequest struct {
	ClosedAt *time.Time `json:"closed_at"`
}

// SessionDetailDTO is one session with its movements and material balances.
type SessionDetailDTO struct {
	Session   SessionDTO                  `json:"session"`
	Movements []MovementLineDTO           `json:"movements"`
	Materials []reporting.MaterialBalance `json:"materials"`
}

// SessionOverviewDTO is one row of GET /api/sessions.
type SessionOverviewDTO struct {
	Session          SessionDTO                  `json:"session"`
	EmployeeName     string                      `json:"employee_name,omitempty"`
	TotalWithdrawals int64                       `json:"total_withdrawals"`
	TotalReturns     int64                       `json:"total_returns"`
	Balance          int64                       `json:"balance"`
	Materials        []reporting.MaterialBalance `json:"materials"`
}

// =============================================================================
// MOVEMENTS
// =============================================================================

type MovementDTO struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	MaterialID string    `json:"material_id"`
	Quantity   int64     `json:"quantity"`
	Kind       string    `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MovementLineDTO is a movement as listed inside a session.
type MovementLineDTO struct {
	ID           string `json:"id"`
	MaterialID   string `json:"material_id"`
	MaterialName string `json:"material_name"`
	Quantity     int64  `json:"quantity"`
	Kind         string `json:"kind"`
}

type RecordMovementRequest struct {
	MaterialID string `json:"material_id"`
	Quantity   int64  `json:"quantity"`
	Kind       string `json:"kind"`
}

// EditMovementRequest replaces a movement's values. An empty material_id
// keeps the current material.
type EditMovementRequest struct {
	MaterialID string `json:"material_id"`
	Quantity   int64  `json:"quantity"`
	Kind       string `json:"kind"`
}

type MovementResultDTO struct {
	Movement MovementDTO  `json:"movement"`
	Previous *MovementDTO `json:"previous,omitempty"`
	Stock    int64        `json:"stock"`
	LowStock bool         `json:"low_stock"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toSessionDTO(s inventory.Session) SessionDTO {
	return SessionDTO{
		ID:            string(s.ID),
		EmployeeID:    string(s.EmployeeID),
		AuthorizerID:  string(s.AuthorizerID),
		FacilityID:    string(s.FacilityID),
		Kind:          string(s.Kind),
		Justification: string(s.Justification),
		Note:          s.Note,
		OpenedAt:      s.OpenedAt,
		ClosedAt:      s.ClosedAt,
		ClosedBy:      s.ClosedBy,
		Status:        string(s.Status),
		Active:        s.Active,
	}
}

func toMovementDTO(m inventory.Movement) MovementDTO {
	return MovementDTO{
		ID:         string(m.ID),
		SessionID:  string(m.SessionID),
		MaterialID: string(m.MaterialID),
		Quantity:   m.Quantity,
		Kind:       string(m.Kind),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toMaterialDTO(m inventory.Material) MaterialDTO {
	return MaterialDTO{
		ID:            string(m.ID),
		Name:          m.Name,
		StockQuantity: m.StockQuantity,
		OpeningStock:  m.OpeningStock,
	}
}

func toMovementResultDTO(res *inventory.MovementResult) MovementResultDTO {
	out := MovementResultDTO{
		Movement: toMovementDTO(res.Movement),
		Stock:    res.Stock,
		LowStock: res.LowStock,
	}
	if res.Previous != nil {
		prev := toMovementDTO(*res.Previous)
		out.Previous = &prev
	}
	return out
}

func toOverviewDTOs(rows []reporting.SessionSummary) []SessionOverviewDTO {
	out := make([]SessionOverviewDTO, len(rows))
	for i, row := range rows {
		out[i] = SessionOverviewDTO{
			Session:          toSessionDTO(row.Session),
			EmployeeName:     row.EmployeeName,
			TotalWithdrawals: row.Withdrawals,
			TotalReturns:     row.Returns,
			Balance:          row.Balance,
			Materials:        row.Materials,
		}
	}
	return out
}
