package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/station-conditions-service/internal/observability"
)

// Upstream names an external call site. Used as the error stage, metric label and breaker name.
type Upstream string

const (
	UpstreamGeocoder     Upstream = "geocoder"
	UpstreamPoints       Upstream = "points"
	UpstreamStations     Upstream = "stations"
	UpstreamObservations Upstream = "observations"
)

// Upstreams lists every call site, in pipeline order.
var Upstreams = []Upstream{UpstreamGeocoder, UpstreamPoints, UpstreamStations, UpstreamObservations}

var (
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrCircuitOpen     = errors.New("circuit breaker open")
)

// ServiceError reports a non-success HTTP status from an upstream.
type ServiceError struct {
	Stage      Upstream
	StatusCode int
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Stage, e.StatusCode)
}

// Unwrap lets callers match with errors.Is(err, ErrUpstreamFailure) or ErrRateLimited.
func (e *ServiceError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return ErrUpstreamFailure
}

// BreakerConfig configures the per-upstream circuit breakers.
type BreakerConfig struct {
	Enabled bool
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	// Timeout is how long the breaker stays open before allowing probe requests.
	Timeout time.Duration
	// HalfOpenRequests is the number of probe requests allowed while half-open.
	HalfOpenRequests int
}

// Transport performs GET requests that decode JSON, with a per-call timeout,
// one circuit breaker per upstream, and call metrics.
type Transport struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	breakers  map[Upstream]*gobreaker.CircuitBreaker
}

// NewTransport returns a Transport. timeout bounds every single call; the caller's
// context still applies on top of it.
func NewTransport(timeout time.Duration, userAgent string, breaker BreakerConfig, logger *zap.Logger) *Transport {
	t := &Transport{
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
		userAgent: userAgent,
	}
	if breaker.Enabled {
		t.breakers = make(map[Upstream]*gobreaker.CircuitBreaker, len(Upstreams))
		for _, u := range Upstreams {
			t.breakers[u] = newBreaker(u, breaker, logger)
			observability.CircuitBreakerState.WithLabelValues(string(u)).Set(0)
		}
	}
	return t
}

func newBreaker(u Upstream, cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	halfOpen := cfg.HalfOpenRequests
	if halfOpen <= 0 {
		halfOpen = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(u),
		MaxRequests: uint32(halfOpen),
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.RecordCircuitBreakerTransition(name, from.String(), to.String())
			if logger != nil {
				logger.Warn("circuit breaker state changed",
					zap.String("upstream", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			}
		},
	})
}

// OpenBreakers returns the upstreams whose breaker is currently open.
func (t *Transport) OpenBreakers() []Upstream {
	var open []Upstream
	for _, u := range Upstreams {
		if cb, ok := t.breakers[u]; ok && cb.State() == gobreaker.StateOpen {
			open = append(open, u)
		}
	}
	return open
}

// callResult carries the outcome of one request through the breaker. Errors that say
// nothing about upstream health (4xx, caller cancellation) travel here instead of as
// the breaker's error so they do not count as failures.
type callResult struct {
	body []byte
	err  error
}

// getJSON issues a GET to rawURL and decodes a 2xx body into out.
// Non-2xx responses return *ServiceError.
func (t *Transport) getJSON(ctx context.Context, upstream Upstream, rawURL, accept string, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(string(upstream), "error").Inc()
		return fmt.Errorf("build %s request: %w", upstream, err)
	}
	req.Header.Set("Accept", accept)
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	res, err := t.execute(upstream, func() (interface{}, error) {
		return t.do(ctx, upstream, req, start)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.UpstreamCallsTotal.WithLabelValues(string(upstream), "circuit_open").Inc()
			return fmt.Errorf("%s: %w: %w", upstream, ErrCircuitOpen, ErrUpstreamFailure)
		}
		return err
	}
	result := res.(callResult)
	if result.err != nil {
		return result.err
	}

	if err := json.Unmarshal(result.body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", upstream, err)
	}
	return nil
}

// do runs the request and classifies the outcome. The returned error is non-nil only for
// failures that should count against the upstream's breaker.
func (t *Transport) do(ctx context.Context, upstream Upstream, req *http.Request, start time.Time) (callResult, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(string(upstream), "error").Inc()
		observability.UpstreamDuration.WithLabelValues(string(upstream), "error").Observe(duration)

		if ctx.Err() != nil {
			// The caller gave up; not the upstream's fault.
			return callResult{err: fmt.Errorf("%s request: %w", upstream, ctx.Err())}, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return callResult{}, fmt.Errorf("%s request timeout: %w: %w", upstream, ErrUpstreamFailure, err)
		}
		return callResult{}, fmt.Errorf("%s http request failed: %w: %w", upstream, ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(string(upstream), status).Inc()
	observability.UpstreamDuration.WithLabelValues(string(upstream), status).Observe(duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		svcErr := &ServiceError{Stage: upstream, StatusCode: resp.StatusCode}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return callResult{}, svcErr
		}
		return callResult{err: svcErr}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return callResult{}, fmt.Errorf("read %s response body: %w: %w", upstream, ErrUpstreamFailure, err)
	}
	return callResult{body: body}, nil
}

func (t *Transport) execute(upstream Upstream, fn func() (interface{}, error)) (interface{}, error) {
	if cb, ok := t.breakers[upstream]; ok {
		return cb.Execute(fn)
	}
	return fn()
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
