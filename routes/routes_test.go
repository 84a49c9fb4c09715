package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civinigrani/civigate/app"
	"github.com/civinigrani/civigate/config"
	"github.com/civinigrani/civigate/internal/observability"
	"github.com/civinigrani/civigate/internal/scan"
	appmw "github.com/civinigrani/civigate/middleware"
	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/services/agent"
	"github.com/civinigrani/civigate/services/audit"
	"github.com/civinigrani/civigate/services/policy"
	"github.com/civinigrani/civigate/services/tools"
)

func testDependencies(t *testing.T) *app.Dependencies {
	t.Helper()
	logger := zap.NewNop()

	registry, err := policy.NewRegistry(tools.Catalog(), policy.DefaultRules())
	require.NoError(t, err)
	engine, err := policy.NewEngine(registry, policy.NewTokenStore(), []byte("test-secret"), time.Minute, logger)
	require.NoError(t, err)
	server := tools.NewServer(tools.NewSeededDistrictStore(), registry, engine, logger)
	metrics := observability.NewMetrics(nil)

	sink, err := audit.NewJSONLSink(t.TempDir() + "/audit.jsonl")
	require.NoError(t, err)
	trail := audit.NewService(sink, metrics, logger, audit.DefaultConfig())
	require.NoError(t, trail.Start())
	t.Cleanup(func() { _ = trail.Stop(time.Second) })

	orchestrator := agent.NewOrchestrator(
		agent.NewKeywordProposer(), engine, server, scan.NewDefaultScanner(),
		trail, metrics, agent.DefaultDisposition(), 2, logger)

	return &app.Dependencies{
		Config:             &config.Config{Environment: "test"},
		Logger:             logger,
		Metrics:            metrics,
		PolicyRegistry:     registry,
		Engine:             engine,
		ToolServer:         server,
		Orchestrator:       orchestrator,
		AuditService:       trail,
		TrailReader:        sink,
		IdentityMiddleware: appmw.NewIdentityMiddleware(logger),
	}
}

func TestSetupRoutes_Health(t *testing.T) {
	router := SetupRoutes(testDependencies(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSetupRoutes_AgentQuery(t *testing.T) {
	router := SetupRoutes(testDependencies(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent/query",
		strings.NewReader(`{"query":"show top 3 districts by prgi","role":"analyst"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), string(models.BadgeVerified))
}

func TestSetupRoutes_ToolsCatalog(t *testing.T) {
	router := SetupRoutes(testDependencies(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), tools.OpTopDistricts)
}

func TestSetupRoutes_AuditRequiresReviewRole(t *testing.T) {
	router := SetupRoutes(testDependencies(t))

	// No role header: forbidden.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/audit/records", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Analyst: forbidden.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/records", nil)
	req.Header.Set("X-Role", "analyst")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Auditor: allowed.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/audit/records", nil)
	req.Header.Set("X-Role", "auditor")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSetupRoutes_NotFound(t *testing.T) {
	router := SetupRoutes(testDependencies(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "endpoint not found")
}
