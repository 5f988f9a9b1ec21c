package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/station-conditions-service/internal/client"
	"github.com/kjstillabower/station-conditions-service/internal/health"
	"github.com/kjstillabower/station-conditions-service/internal/models"
	"github.com/kjstillabower/station-conditions-service/internal/observability"
	"github.com/kjstillabower/station-conditions-service/internal/service"
	"github.com/kjstillabower/station-conditions-service/internal/validation"
)

// ConditionsResolver runs the location-to-observation pipeline.
type ConditionsResolver interface {
	Resolve(ctx context.Context, query string) (models.ResolutionResult, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	conditions ConditionsResolver
	monitor    *health.Monitor
	logger     *zap.Logger
}

// NewHandler returns a new Handler. monitor may be nil, in which case /health always reports healthy.
func NewHandler(conditions ConditionsResolver, monitor *health.Monitor, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		conditions: conditions,
		monitor:    monitor,
		logger:     logger,
	}
}

// conditionsResponse is the 200 body for /conditions/{location}.
type conditionsResponse struct {
	Label       string              `json:"label"`
	StationID   *models.StationID   `json:"stationId"`
	Available   bool                `json:"available"`
	Observation *models.Observation `json:"observation"`
}

// GetConditions handles GET /conditions/{location}.
func (h *Handler) GetConditions(w http.ResponseWriter, r *http.Request) {
	location, err := validation.ValidateLocation(mux.Vars(r)["location"], 1, validation.DefaultMaxLocationLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	observability.RecordConditionsQuery(location)
	result, err := h.conditions.Resolve(r.Context(), location)
	h.recordOutcome(service.Outcome(result, err))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, conditionsResponse{
		Label:       result.Label,
		StationID:   result.StationID,
		Available:   result.Available(),
		Observation: result.Observation,
	})
}

// recordOutcome feeds the health tracker. Only upstream failures and timeouts count as
// errors; caller mistakes and places without data are served requests.
func (h *Handler) recordOutcome(outcome string) {
	if h.monitor == nil {
		return
	}
	switch outcome {
	case service.OutcomeOK:
		h.monitor.Tracker().Record(health.OutcomeSuccess)
	case service.OutcomeUpstreamError, service.OutcomeTimeout:
		h.monitor.Tracker().Record(health.OutcomeError)
	default:
		h.monitor.Tracker().Record(health.OutcomeNoData)
	}
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := health.Report{Status: health.StatusHealthy}
	if h.monitor != nil {
		report = h.monitor.Evaluate()
	}

	open := make(map[string]bool, len(report.OpenBreakers))
	for _, name := range report.OpenBreakers {
		open[name] = true
	}
	checks := make(map[string]string, len(client.Upstreams))
	for _, u := range client.Upstreams {
		if open[string(u)] {
			checks[string(u)] = "unhealthy"
		} else {
			checks[string(u)] = "healthy"
		}
	}

	resp := map[string]interface{}{
		"status":    string(report.Status),
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if report.Reason != "" {
		resp["reason"] = report.Reason
	}
	writeJSON(w, report.HTTPStatus(), resp)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID, _ := r.Context().Value("correlation_id").(string)
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError maps pipeline errors to status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classifyServiceError(err)
	writeError(w, r, status, code, message)
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("conditions request failed",
			zap.Int("status", status),
			zap.String("code", code),
			zap.Error(err))
	}
}

func classifyServiceError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, service.ErrEmptyQuery), errors.Is(err, service.ErrInvalidCoordinate):
		return http.StatusBadRequest, "INVALID_LOCATION", err.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "PLACE_NOT_FOUND", "No place matches the requested location"
	case errors.Is(err, service.ErrNoStations):
		return http.StatusNotFound, "NO_STATIONS", "No observation stations serve the requested location"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "TIMEOUT", "Timed out resolving current conditions"
	default:
		return http.StatusBadGateway, "UPSTREAM_ERROR", "Unable to fetch current conditions"
	}
}
