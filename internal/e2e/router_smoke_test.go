package e2e

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/payroll"
	"github.com/meridian-erp/meridian-erp/internal/project"
	"github.com/meridian-erp/meridian-erp/internal/reconcile"
	_ "github.com/meridian-erp/meridian-erp/internal/testing/guard"
)

func newSmokeRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	return app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           &app.Config{},
		PayrollHandler:   payroll.NewHandler(logger, nil),
		ProjectHandler:   project.NewHandler(logger, nil),
		LedgerHandler:    ledger.NewHandler(logger, nil),
		ReconcileHandler: reconcile.NewHandler(logger, nil),
		Metrics:          observability.NewMetrics(),
	})
}

func TestHealthzRespondsWithoutDatabase(t *testing.T) {
	router := newSmokeRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestMetricsExposeRequestCounters(t *testing.T) {
	router := newSmokeRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "meridian_http_requests_total")
}

func TestSecurityHeadersApplied(t *testing.T) {
	router := newSmokeRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	router := newSmokeRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}
