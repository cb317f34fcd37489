/*
handlers_test.go - HTTP tests for the stockroom API

Tests for:
- Reference data registration
- Session lifecycle and error status mapping
- Movement record and edit, including edits after close
- Session history, monthly report and audit endpoints
*/
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stockroom/reporting"
)

func TestReferenceData_CreateAndList(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(20)

	employees := decodeAs[[]EmployeeDTO](t, s.do(http.MethodGet, "/api/employees", nil))
	require.Len(t, employees, 1)
	assert.Equal(t, d.employee, employees[0].ID)

	rec := s.do(http.MethodGet, "/api/materials/"+d.material, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeAs[MaterialDTO](t, rec)
	assert.Equal(t, int64(20), m.StockQuantity)
	assert.Equal(t, int64(20), m.OpeningStock)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/materials/mat-missing", nil).Code)
}

func TestCreateMaterial_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/materials", CreateMaterialRequest{Name: "Cable", OpeningStock: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "opening_stock", errorDetails(t, rec)["field"])

	rec = s.do(http.MethodPost, "/api/employees", CreateNamedRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := s.do(http.MethodPost, "/api/sessions", "not an object")
	assert.Equal(t, http.StatusBadRequest, req.Code)
}

func TestSessionLifecycle(t *testing.T) {
	// GIVEN: stock 10 and an open session
	s := newTestServer(t)
	d := s.seed(10)
	session := s.open(d)
	assert.Equal(t, "open", session.Status)
	assert.True(t, session.Active)
	assert.Equal(t, "entry", session.Kind)

	// WHEN: a second session is opened for the same employee
	dup := s.do(http.MethodPost, "/api/sessions", OpenSessionRequest{
		EmployeeID: d.employee, AuthorizerID: d.authorizer, FacilityID: d.facility,
		Justification: "stock_check",
	})
	// THEN: 409 names the existing session
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, session.ID, errorDetails(t, dup)["existing_session_id"])

	// WHEN: withdrawing more than is in stock
	over := s.record(session.ID, d.material, 20, "withdrawal")
	// THEN: 409 with what is available
	assert.Equal(t, http.StatusConflict, over.Code)
	details := errorDetails(t, over)
	assert.EqualValues(t, 10, details["available"])
	assert.EqualValues(t, 20, details["requested"])

	// WHEN: withdrawing 3
	ok := s.record(session.ID, d.material, 3, "withdrawal")
	require.Equal(t, http.StatusCreated, ok.Code, ok.Body.String())
	res := decodeAs[MovementResultDTO](t, ok)
	assert.Equal(t, int64(7), res.Stock)
	assert.False(t, res.LowStock)

	// WHEN: closing with an actor
	closed := s.do(http.MethodPost, "/api/sessions/"+session.ID+"/close", nil, ActorHeader, "guard-7")
	require.Equal(t, http.StatusOK, closed.Code, closed.Body.String())
	got := decodeAs[SessionDTO](t, closed)
	assert.Equal(t, "closed", got.Status)
	assert.False(t, got.Active)
	assert.Equal(t, "guard-7", got.ClosedBy)
	require.NotNil(t, got.ClosedAt)

	// THEN: a second close and further movements conflict
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/sessions/"+session.ID+"/close", nil).Code)
	assert.Equal(t, http.StatusConflict, s.record(session.ID, d.material, 1, "return").Code)

	// AND: the movement can still be corrected
	edit := s.do(http.MethodPut, "/api/movements/"+res.Movement.ID, EditMovementRequest{Quantity: 6, Kind: "withdrawal"})
	require.Equal(t, http.StatusOK, edit.Code, edit.Body.String())
	edited := decodeAs[MovementResultDTO](t, edit)
	assert.Equal(t, int64(4), edited.Stock)
	assert.True(t, edited.LowStock)
	require.NotNil(t, edited.Previous)
	assert.Equal(t, int64(3), edited.Previous.Quantity)

	// AND: the session detail reflects the edit
	detail := decodeAs[SessionDetailDTO](t, s.do(http.MethodGet, "/api/sessions/"+session.ID, nil))
	require.Len(t, detail.Movements, 1)
	assert.Equal(t, int64(6), detail.Movements[0].Quantity)
	require.Len(t, detail.Materials, 1)
	assert.Equal(t, int64(-6), detail.Materials[0].Balance)
	assert.Equal(t, int64(4), detail.Materials[0].CurrentStock)
}

func TestCloseSession_WithoutMovements(t *testing.T) {
	s := newTestServer(t)
	session := s.open(s.seed(10))

	rec := s.do(http.MethodPost, "/api/sessions/"+session.ID+"/close", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/sessions/ses-missing/close", nil).Code)
}

func TestCloseSession_BodyIsOptional(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(10)

	t.Run("chunked empty body", func(t *testing.T) {
		// GIVEN: an open session with a movement
		session := s.open(d)
		require.Equal(t, http.StatusCreated, s.record(session.ID, d.material, 1, "withdrawal").Code)

		// WHEN: closing with an empty body of unknown length
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.ID+"/close", strings.NewReader(""))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)

		// THEN: the session is closed now
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "closed", decodeAs[SessionDTO](t, rec).Status)
	})

	t.Run("malformed body", func(t *testing.T) {
		session := s.open(d)
		require.Equal(t, http.StatusCreated, s.record(session.ID, d.material, 1, "withdrawal").Code)

		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.ID+"/close", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestOpenSession_Errors(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(10)

	for _, tc := range []struct {
		name   string
		req    OpenSessionRequest
		status int
		field  string
	}{
		{
			name:   "other without note",
			req:    OpenSessionRequest{EmployeeID: d.employee, AuthorizerID: d.authorizer, FacilityID: d.facility, Justification: "other"},
			status: http.StatusBadRequest,
			field:  "note",
		},
		{
			name:   "exit kind",
			req:    OpenSessionRequest{EmployeeID: d.employee, AuthorizerID: d.authorizer, FacilityID: d.facility, Kind: "exit", Justification: "inspection"},
			status: http.StatusBadRequest,
			field:  "kind",
		},
		{
			name:   "unknown employee",
			req:    OpenSessionRequest{EmployeeID: "emp-missing", AuthorizerID: d.authorizer, FacilityID: d.facility, Justification: "inspection"},
			status: http.StatusNotFound,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/sessions", tc.req)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.field != "" {
				assert.Equal(t, tc.field, errorDetails(t, rec)["field"])
			}
		})
	}
}

func TestEditMovement_Errors(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(10)
	session := s.open(d)
	res := decodeAs[MovementResultDTO](t, s.record(session.ID, d.material, 4, "return"))

	assert.Equal(t, http.StatusNotFound,
		s.do(http.MethodPut, "/api/movements/mov-missing", EditMovementRequest{Quantity: 1, Kind: "return"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		s.do(http.MethodPut, "/api/movements/"+res.Movement.ID, EditMovementRequest{Quantity: 0, Kind: "return"}).Code)

	// Stock is 14; turning the return of 4 into a withdrawal of 11 needs 10 after reversal.
	rec := s.do(http.MethodPut, "/api/movements/"+res.Movement.ID, EditMovementRequest{Quantity: 11, Kind: "withdrawal"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	m := decodeAs[MaterialDTO](t, s.do(http.MethodGet, "/api/materials/"+d.material, nil))
	assert.Equal(t, int64(14), m.StockQuantity)
}

func TestListSessions_Overview(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(50)
	first := s.open(d)
	require.Equal(t, http.StatusCreated, s.record(first.ID, d.material, 5, "withdrawal").Code)
	require.Equal(t, http.StatusCreated, s.record(first.ID, d.material, 2, "return").Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/sessions/"+first.ID+"/close", nil).Code)
	second := s.open(d)

	rows := decodeAs[[]SessionOverviewDTO](t, s.do(http.MethodGet, "/api/sessions", nil))
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].Session.ID)
	assert.Equal(t, "Ana", rows[0].EmployeeName)
	assert.Empty(t, rows[0].Materials)
	assert.Equal(t, int64(-3), rows[1].Balance)
	assert.Equal(t, int64(5), rows[1].TotalWithdrawals)

	closedOnly := decodeAs[[]SessionOverviewDTO](t, s.do(http.MethodGet, "/api/sessions?status=closed", nil))
	require.Len(t, closedOnly, 1)
	assert.Equal(t, first.ID, closedOnly[0].Session.ID)

	byName := decodeAs[[]SessionOverviewDTO](t, s.do(http.MethodGet, "/api/sessions?employee=an", nil))
	assert.Len(t, byName, 2)

	none := decodeAs[[]SessionOverviewDTO](t, s.do(http.MethodGet, "/api/sessions?from=2025-04-01", nil))
	assert.Empty(t, none)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/sessions?status=pending", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/sessions?from=03/01/2025", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/sessions?from=2025-03-02&to=2025-03-01", nil).Code)
}

func TestMonthlyReport_ExcludesOpenSessions(t *testing.T) {
	// GIVEN: a closed session withdrawing 4 and an open one withdrawing 2
	s := newTestServer(t)
	d := s.seed(20)
	closed := s.open(d)
	require.Equal(t, http.StatusCreated, s.record(closed.ID, d.material, 4, "withdrawal").Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/sessions/"+closed.ID+"/close", nil).Code)
	pending := s.open(d)
	require.Equal(t, http.StatusCreated, s.record(pending.ID, d.material, 2, "withdrawal").Code)

	// WHEN: the March report is requested
	rec := s.do(http.MethodGet, "/api/reports/monthly?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeAs[reporting.MonthlyReport](t, rec)

	// THEN: only the closed session counts
	assert.Equal(t, int64(4), report.Totals.Withdrawals)
	assert.Equal(t, int64(0), report.Totals.Returns)
	assert.Equal(t, int64(-4), report.Totals.Balance)

	other := decodeAs[reporting.MonthlyReport](t, s.do(http.MethodGet, "/api/reports/monthly?year=2025&month=3&facility=fac-other", nil))
	assert.Zero(t, other.Totals.Movements)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/reports/monthly?year=2025&month=13", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/reports/monthly?year=abc", nil).Code)
}

func TestAudit(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(20)
	session := s.open(d)
	require.Equal(t, http.StatusCreated, s.record(session.ID, d.material, 7, "withdrawal").Code)

	report := decodeAs[reporting.AuditReport](t, s.do(http.MethodGet, "/api/audit", nil))
	assert.True(t, report.OK())
	require.Len(t, report.Lines, 1)
	assert.Equal(t, int64(13), report.Lines[0].Actual)
}

func TestLastAudit(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/audit/last", nil).Code)

	s.handler.Scheduler = NewAuditScheduler(s.handler.Reports, s.handler.Logger)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/audit/last", nil).Code)

	_, err := s.handler.Scheduler.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/audit/last", nil).Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", nil).Code)
}
