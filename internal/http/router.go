package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/station-conditions-service/internal/health"
	"github.com/kjstillabower/station-conditions-service/internal/observability"
)

// RouterOptions configures the /conditions subrouter.
type RouterOptions struct {
	// Limiter guards /conditions; nil disables rate limiting.
	Limiter *rate.Limiter
	// Tracker receives rate-limit denials; usually the health monitor's tracker.
	Tracker *health.Tracker
	// RequestTimeout bounds each /conditions request.
	RequestTimeout time.Duration
}

// NewRouter wires the handlers and middleware chain:
// correlation ID and metrics on every route, rate limit and timeout on /conditions.
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	logger := h.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	conditions := router.PathPrefix("/conditions").Subrouter()
	conditions.Use(RateLimitMiddleware(opts.Limiter, opts.Tracker))
	if opts.RequestTimeout > 0 {
		conditions.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	conditions.HandleFunc("/{location}", h.GetConditions).Methods(http.MethodGet)
	return router
}
