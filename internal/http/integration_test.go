//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/kjstillabower/station-conditions-service/internal/health"
	"github.com/kjstillabower/station-conditions-service/internal/observability"
	testhelpers "github.com/kjstillabower/station-conditions-service/internal/testhelpers"
)

// setupIntegrationRouter builds the full router over live upstreams.
func setupIntegrationRouter(t *testing.T, limiter *rate.Limiter) http.Handler {
	logger, err := observability.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	cfg := testhelpers.GetIntegrationConfig(t)
	svc, transport := testhelpers.SetupIntegrationService(t, cfg, logger)
	monitor := health.NewMonitor(health.Config{}, nil, transport, logger)
	return NewRouter(NewHandler(svc, monitor, logger), RouterOptions{
		Limiter:        limiter,
		Tracker:        monitor.Tracker(),
		RequestTimeout: 20 * time.Second,
	})
}

func TestIntegration_GetConditions_PlaceName(t *testing.T) {
	router := setupIntegrationRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conditions/Seattle", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
	var body conditionsResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body.Label, "Seattle") {
		t.Errorf("Label = %q, want it to mention Seattle", body.Label)
	}
	if body.Available && (body.StationID == nil || !body.Observation.Usable()) {
		t.Errorf("available result without station or usable observation: %+v", body)
	}
}

func TestIntegration_GetConditions_Coordinate(t *testing.T) {
	router := setupIntegrationRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conditions/34.05,-118.25", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
}

func TestIntegration_GetConditions_OutsideCoverage(t *testing.T) {
	router := setupIntegrationRouter(t, nil)

	// London is outside weather.gov coverage; the points call fails.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conditions/51.5074,-0.1278", nil))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502; body=%s", w.Code, w.Body.String())
	}
}

func TestIntegration_GetConditions_UnknownPlace(t *testing.T) {
	router := setupIntegrationRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conditions/Qwxzzyplk", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404; body=%s", w.Code, w.Body.String())
	}
}

func TestIntegration_GetHealth_FullStack(t *testing.T) {
	router := setupIntegrationRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestIntegration_RateLimiting_Enforcement(t *testing.T) {
	router := setupIntegrationRouter(t, rate.NewLimiter(rate.Limit(0.01), 1))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conditions/47.6062,-122.3321", nil))
		codes = append(codes, w.Code)
	}
	if codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want second and third request rate limited", codes)
	}
}
