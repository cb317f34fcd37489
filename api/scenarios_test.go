package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stockroom/reporting"
)

func TestLoadScenario_MonthOfActivity(t *testing.T) {
	// GIVEN: an empty store
	s := newTestServer(t)

	// WHEN: the activity scenario is loaded
	rec := s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "month-of-activity"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: it is the current scenario
	current := decodeAs[ScenarioDTO](t, s.do(http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "month-of-activity", current.ID)

	// AND: stock reflects the edit, the return and the withdrawals
	stock := map[string]int64{}
	for _, m := range decodeAs[[]MaterialDTO](t, s.do(http.MethodGet, "/api/materials", nil)) {
		stock[m.Name] = m.StockQuantity
	}
	assert.Equal(t, int64(165), stock["Copper cable 2.5mm (m)"])
	assert.Equal(t, int64(455), stock["Wall anchor 8mm"])
	assert.Equal(t, int64(10), stock["Circuit breaker 16A"])
	assert.Equal(t, int64(3), stock["Safety gloves (pair)"])

	// AND: one open and one closed session
	sessions := decodeAs[[]SessionOverviewDTO](t, s.do(http.MethodGet, "/api/sessions", nil))
	require.Len(t, sessions, 2)
	assert.Equal(t, "open", sessions[0].Session.Status)
	assert.Equal(t, "closed", sessions[1].Session.Status)

	// AND: the ledger reconciles
	audit := decodeAs[reporting.AuditReport](t, s.do(http.MethodGet, "/api/audit", nil))
	assert.True(t, audit.OK())
}

func TestLoadScenario_TwiceDoesNotCollide(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "month-of-activity"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	materials := decodeAs[[]MaterialDTO](t, s.do(http.MethodGet, "/api/materials", nil))
	assert.Len(t, materials, 8)
}

func TestLoadScenario_Unknown(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	scenarios := decodeAs[[]ScenarioDTO](t, s.do(http.MethodGet, "/api/scenarios", nil))
	assert.Len(t, scenarios, 2)
	assert.Equal(t, "null\n", s.do(http.MethodGet, "/api/scenarios/current", nil).Body.String())
}

func TestAuditScheduler_RunsOnStart(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK,
		s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "starter-stockroom"}).Code)

	sched := NewAuditScheduler(s.handler.Reports, s.handler.Logger)
	sched.Interval = 10 * time.Millisecond
	sched.Start()
	defer sched.Stop()

	assert.Eventually(t, func() bool {
		_, report := sched.Last()
		return report != nil && len(report.Lines) == 4
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAuditScheduler_Disabled(t *testing.T) {
	s := newTestServer(t)
	sched := NewAuditScheduler(s.handler.Reports, s.handler.Logger)
	sched.Enabled = false
	sched.Start()
	sched.Stop()

	ran, report := sched.Last()
	assert.True(t, ran.IsZero())
	assert.Nil(t, report)
}
