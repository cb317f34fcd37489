package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/warp/stockroom/inventory"
	"github.com/warp/stockroom/inventory/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var march = time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type testServer struct {
	t       *testing.T
	router  *chi.Mux
	handler *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := inventory.NewService(inventory.Deps{
		Store:  store.NewMemory(),
		Clock:  &testClock{now: march},
		Logger: logger,
	})
	h := NewHandler(svc, logger)
	return &testServer{t: t, router: NewRouter(h), handler: h}
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seed holds the reference data most tests need.
type seed struct {
	employee   string
	authorizer string
	facility   string
	material   string
}

func (s *testServer) seed(stock int64) seed {
	s.t.Helper()
	emp := s.do(http.MethodPost, "/api/employees", CreateNamedRequest{Name: "Ana"})
	require.Equal(s.t, http.StatusCreated, emp.Code, emp.Body.String())
	aut := s.do(http.MethodPost, "/api/authorizers", CreateNamedRequest{Name: "Marta"})
	require.Equal(s.t, http.StatusCreated, aut.Code)
	fac := s.do(http.MethodPost, "/api/facilities", CreateFacilityRequest{Name: "Depot"})
	require.Equal(s.t, http.StatusCreated, fac.Code)
	mat := s.do(http.MethodPost, "/api/materials", CreateMaterialRequest{Name: "Cable", OpeningStock: stock})
	require.Equal(s.t, http.StatusCreated, mat.Code)

	return seed{
		employee:   decodeAs[EmployeeDTO](s.t, emp).ID,
		authorizer: decodeAs[AuthorizerDTO](s.t, aut).ID,
		facility:   decodeAs[FacilityDTO](s.t, fac).ID,
		material:   decodeAs[MaterialDTO](s.t, mat).ID,
	}
}

func (s *testServer) open(d seed) SessionDTO {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/sessions", OpenSessionRequest{
		EmployeeID:    d.employee,
		AuthorizerID:  d.authorizer,
		FacilityID:    d.facility,
		Justification: "field_withdrawal",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeAs[SessionDTO](s.t, rec)
}

func (s *testServer) record(sessionID, materialID string, qty int64, kind string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.do(http.MethodPost, "/api/sessions/"+sessionID+"/movements", RecordMovementRequest{
		MaterialID: materialID,
		Quantity:   qty,
		Kind:       kind,
	})
}

func errorDetails(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Details
}
