//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/station-conditions-service/internal/client"
	"github.com/kjstillabower/station-conditions-service/internal/service"
)

// IntegrationTestConfig holds upstream endpoints for integration tests.
type IntegrationTestConfig struct {
	UserAgent   string
	GeocoderURL string
	NWSURL      string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if NWS_USER_AGENT is not set; weather.gov rejects anonymous clients.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	ua := os.Getenv("NWS_USER_AGENT")
	if ua == "" {
		t.Skip("NWS_USER_AGENT not set, skipping integration test")
	}
	cfg := IntegrationTestConfig{
		UserAgent:   ua,
		GeocoderURL: os.Getenv("GEOCODER_URL"),
		NWSURL:      os.Getenv("NWS_API_URL"),
	}
	if cfg.GeocoderURL == "" {
		cfg.GeocoderURL = "https://geocoding-api.open-meteo.com/v1"
	}
	if cfg.NWSURL == "" {
		cfg.NWSURL = "https://api.weather.gov"
	}
	return cfg
}

// SetupIntegrationService builds the real clients and ConditionsService against live upstreams.
// The returned Transport exposes breaker state for health wiring.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig, logger *zap.Logger) (*service.ConditionsService, *client.Transport) {
	t.Helper()
	transport := client.NewTransport(5*time.Second, cfg.UserAgent, client.BreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		HalfOpenRequests: 1,
	}, logger)

	geocoder, err := client.NewOpenMeteoGeocoder(transport, cfg.GeocoderURL)
	if err != nil {
		t.Fatalf("NewOpenMeteoGeocoder() error = %v", err)
	}
	nws, err := client.NewNWSClient(transport, cfg.NWSURL)
	if err != nil {
		t.Fatalf("NewNWSClient() error = %v", err)
	}
	return service.NewConditionsService(geocoder, nws, service.Options{Timeout: 20 * time.Second}, logger), transport
}
