/*
handlers.go - HTTP API handlers for the stockroom ledger

PURPOSE:
  Exposes the inventory core via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to inventory and reporting.

ENDPOINTS:
  Reference data:
    GET/POST /api/employees, /api/authorizers, /api/facilities, /api/materials
    GET      /api/materials/{id}

  Sessions:
    GET    /api/sessions                 History with balances (?status=&employee=&from=&to=)
    POST   /api/sessions                 Open an entry session
    GET    /api/sessions/{id}            Session with movements
    POST   /api/sessions/{id}/close      Close (closer from X-Actor-ID)
    POST   /api/sessions/{id}/movements  Record a withdrawal or return

  Movements:
    PUT    /api/movements/{id}           Edit quantity, kind or material

  Reports:
    GET    /api/reports/monthly          Monthly totals (?year=&month=&facility=&employee=)
    GET    /api/audit                    Stock vs replayed history
    GET    /api/audit/last               Last scheduled audit

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, malformed input
  - 404: Referenced record not found
  - 409: Insufficient stock, duplicate open session, illegal close,
         movement on a closed session
  - 500: Internal errors

SECURITY NOTE:
  No authentication. X-Actor-ID is trusted as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/stockroom/inventory"
	"github.com/warp/stockroom/reporting"
)

// ActorHeader carries the opaque identity of the acting user.
const ActorHeader = "X-Actor-ID"

const dateLayout = "2006-01-02"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *inventory.Service
	Reports   *reporting.Reporter
	Logger    *slog.Logger
	Scheduler *AuditScheduler // optional; serves /api/audit/last

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over svc. Reports read from the same store.
func NewHandler(svc *inventory.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service: svc,
		Reports: reporting.NewReporter(svc.Store),
		Logger:  logger,
	}
}

// =============================================================================
// REFERENCE DATA HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.Store.ListEmployees(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{ID: string(e.ID), Name: e.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateNamedRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.Service.Catalog.AddEmployee(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, EmployeeDTO{ID: string(e.ID), Name: e.Name})
}

func (h *Handler) ListAuthorizers(w http.ResponseWriter, r *http.Request) {
	authorizers, err := h.Service.Store.ListAuthorizers(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list authorizers", err)
		return
	}
	dtos := make([]AuthorizerDTO, len(authorizers))
	for i, a := range authorizers {
		dtos[i] = AuthorizerDTO{ID: string(a.ID), Name: a.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateAuthorizer(w http.ResponseWriter, r *http.Request) {
	var req CreateNamedRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.Service.Catalog.AddAuthorizer(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, "Failed to create authorizer", err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthorizerDTO{ID: string(a.ID), Name: a.Name})
}

func (h *Handler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.Service.Store.ListFacilities(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list facilities", err)
		return
	}
	dtos := make([]FacilityDTO, len(facilities))
	for i, f := range facilities {
		dtos[i] = FacilityDTO{ID: string(f.ID), Name: f.Name, Location: f.Location}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateFacility(w http.ResponseWriter, r *http.Request) {
	var req CreateFacilityRequest
	if !decode(w, r, &req) {
		return
	}
	f, err := h.Service.Catalog.AddFacility(r.Context(), req.Name, req.Location)
	if err != nil {
		h.fail(w, r, "Failed to create facility", err)
		return
	}
	writeJSON(w, http.StatusCreated, FacilityDTO{ID: string(f.ID), Name: f.Name, Location: f.Location})
}

func (h *Handler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.Service.Store.ListMaterials(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list materials", err)
		return
	}
	dtos := make([]MaterialDTO, len(materials))
	for i, m := range materials {
		dtos[i] = toMaterialDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetMaterial(w http.ResponseWriter, r *http.Request) {
	m, err := h.Service.Store.GetMaterial(r.Context(), inventory.MaterialID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get material", err)
		return
	}
	writeJSON(w, http.StatusOK, toMaterialDTO(*m))
}

func (h *Handler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req CreateMaterialRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.Service.Catalog.AddMaterial(r.Context(), req.Name, req.OpeningStock)
	if err != nil {
		h.fail(w, r, "Failed to create material", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMaterialDTO(*m))
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// ListSessions returns the session history with per-material balances.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSessionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query", err)
		return
	}
	if err := filter.Validate(); err != nil {
		h.fail(w, r, "Invalid query", err)
		return
	}
	rows, err := h.Reports.Overview(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "Failed to list sessions", err)
		return
	}

	// Sessions without movements carry no employee name in the records.
	if len(rows) > 0 {
		employees, err := h.Service.Store.ListEmployees(r.Context())
		if err != nil {
			h.fail(w, r, "Failed to list sessions", err)
			return
		}
		names := make(map[inventory.EmployeeID]string, len(employees))
		for _, e := range employees {
			names[e.ID] = e.Name
		}
		for i := range rows {
			if rows[i].EmployeeName == "" {
				rows[i].EmployeeName = names[rows[i].Session.EmployeeID]
			}
		}
	}
	writeJSON(w, http.StatusOK, toOverviewDTOs(rows))
}

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := h.Service.Sessions.Open(r.Context(), inventory.OpenSession{
		EmployeeID:    inventory.EmployeeID(req.EmployeeID),
		AuthorizerID:  inventory.AuthorizerID(req.AuthorizerID),
		FacilityID:    inventory.FacilityID(req.FacilityID),
		Kind:          inventory.SessionKind(req.Kind),
		Justification: inventory.Justification(req.Justification),
		Note:          req.Note,
	})
	if err != nil {
		h.fail(w, r, "Failed to open session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(*s))
}

// GetSession returns one session with its movements and material balances.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := inventory.SessionID(chi.URLParam(r, "id"))

	s, err := h.Service.Sessions.Get(ctx, id)
	if err != nil {
		h.fail(w, r, "Failed to get session", err)
		return
	}
	records, err := h.Service.Store.ListMovementRecords(ctx, inventory.MovementFilter{SessionIDs: []inventory.SessionID{id}})
	if err != nil {
		h.fail(w, r, "Failed to get session movements", err)
		return
	}

	lines := make([]MovementLineDTO, len(records))
	for i, rec := range records {
		lines[i] = MovementLineDTO{
			ID:           string(rec.MovementID),
			MaterialID:   string(rec.MaterialID),
			MaterialName: rec.MaterialName,
			Quantity:     rec.Quantity,
			Kind:         string(rec.Kind),
		}
	}
	materials := reporting.SessionBalances(records)[id]
	if materials == nil {
		materials = []reporting.MaterialBalance{}
	}
	writeJSON(w, http.StatusOK, SessionDetailDTO{
		Session:   toSessionDTO(*s),
		Movements: lines,
		Materials: materials,
	})
}

// CloseSession closes a session. The closer is taken from X-Actor-ID.
// The body is optional; an empty one, chunked or not, means close now.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	var req CloseSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, err := h.Service.Sessions.Close(r.Context(),
		inventory.SessionID(chi.URLParam(r, "id")),
		r.Header.Get(ActorHeader),
		req.ClosedAt,
	)
	if err != nil {
		h.fail(w, r, "Failed to close session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*s))
}

// =============================================================================
// MOVEMENT HANDLERS
// =============================================================================

func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req RecordMovementRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Service.Movements.Record(r.Context(), inventory.RecordMovement{
		SessionID:  inventory.SessionID(chi.URLParam(r, "id")),
		MaterialID: inventory.MaterialID(req.MaterialID),
		Quantity:   req.Quantity,
		Kind:       inventory.MovementKind(req.Kind),
	})
	if err != nil {
		h.fail(w, r, "Failed to record movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementResultDTO(res))
}

func (h *Handler) EditMovement(w http.ResponseWriter, r *http.Request) {
	var req EditMovementRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Service.Movements.Edit(r.Context(),
		inventory.MovementID(chi.URLParam(r, "id")),
		inventory.EditMovement{
			MaterialID: inventory.MaterialID(req.MaterialID),
			Quantity:   req.Quantity,
			Kind:       inventory.MovementKind(req.Kind),
		})
	if err != nil {
		h.fail(w, r, "Failed to edit movement", err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementResultDTO(res))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())
	var err error
	if v := q.Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
	}
	if v := q.Get("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
	}

	report, err := h.Reports.Monthly(r.Context(), reporting.MonthlyQuery{
		Year:       year,
		Month:      time.Month(month),
		FacilityID: inventory.FacilityID(q.Get("facility")),
		EmployeeID: inventory.EmployeeID(q.Get("employee")),
	})
	if err != nil {
		h.fail(w, r, "Failed to build monthly report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reports.Audit(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to audit stock", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// LastAudit returns the most recent scheduled audit.
func (h *Handler) LastAudit(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusNotFound, "Audit scheduler is not running", nil)
		return
	}
	ranAt, report := h.Scheduler.Last()
	if report == nil {
		writeError(w, http.StatusNotFound, "No audit has completed yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ran_at": ranAt, "report": report})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseSessionFilter(r *http.Request) (inventory.SessionFilter, error) {
	q := r.URL.Query()
	filter := inventory.SessionFilter{
		Status:       inventory.SessionStatus(q.Get("status")),
		EmployeeName: q.Get("employee"),
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return filter, fmt.Errorf("%s: use YYYY-MM-DD", p.key)
		}
		*p.dst = &t
	}
	return filter, nil
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// fail maps a domain error to its HTTP status. Structured errors are
// returned as details so clients can act on them.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	var (
		verr  *inventory.ValidationError
		stock *inventory.InsufficientStockError
		dup   *inventory.DuplicateOpenSessionError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   message,
			Details: map[string]string{"field": verr.Field, "message": verr.Message},
		})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: message,
			Details: map[string]any{
				"reason":      inventory.ErrInsufficientStock.Error(),
				"material_id": stock.MaterialID,
				"available":   stock.Available,
				"requested":   stock.Requested,
			},
		})
	case errors.As(err, &dup):
		details := map[string]any{"reason": inventory.ErrDuplicateOpenSession.Error()}
		if dup.ExistingSessionID != "" {
			details["existing_session_id"] = dup.ExistingSessionID
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: message, Details: details})
	case inventory.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case inventory.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case inventory.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Logger.Error(message, "error", err, "request_id", middleware.GetReqID(r.Context()))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
