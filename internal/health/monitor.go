package health

import (
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/station-conditions-service/internal/client"
)

// Status is the service health reported on /health.
type Status string

const (
	StatusHealthy      Status = "healthy"
	StatusIdle         Status = "idle"
	StatusDegraded     Status = "degraded"
	StatusOverloaded   Status = "overloaded"
	StatusShuttingDown Status = "shutting-down"
)

// Config holds lifecycle thresholds. Zero windows disable the corresponding check.
type Config struct {
	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	RateLimitRPS           int
	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration
	DegradedWindow         time.Duration
	DegradedErrorPct       int
}

// BreakerSource reports which upstream breakers are currently open.
type BreakerSource interface {
	OpenBreakers() []client.Upstream
}

// Report is one health evaluation.
type Report struct {
	Status       Status
	Reason       string
	OpenBreakers []string
}

// HTTPStatus is 200 for healthy and idle, 503 otherwise.
func (r Report) HTTPStatus() int {
	switch r.Status {
	case StatusHealthy, StatusIdle:
		return http.StatusOK
	default:
		return http.StatusServiceUnavailable
	}
}

// Monitor evaluates health from tracked outcomes, breaker state and the shutdown flag.
type Monitor struct {
	cfg          Config
	tracker      *Tracker
	breakers     BreakerSource
	startTime    time.Time
	shuttingDown atomic.Bool
	logger       *zap.Logger

	mu   sync.Mutex
	prev Status
}

// NewMonitor returns a Monitor. breakers may be nil when no breakers are configured.
func NewMonitor(cfg Config, tracker *Tracker, breakers BreakerSource, logger *zap.Logger) *Monitor {
	if tracker == nil {
		tracker = NewTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cfg:       cfg,
		tracker:   tracker,
		breakers:  breakers,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Tracker returns the outcome tracker the monitor reads from.
func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}

// SetShuttingDown sets the drain flag. Call when SIGTERM/SIGINT is received.
func (m *Monitor) SetShuttingDown(v bool) {
	m.shuttingDown.Store(v)
}

// IsShuttingDown returns true while the process is draining.
func (m *Monitor) IsShuttingDown() bool {
	return m.shuttingDown.Load()
}

// Evaluate computes the current status. Decision order:
// shutting-down > open breaker > overloaded > idle > error-rate breach > healthy.
// Status transitions are logged at Info.
func (m *Monitor) Evaluate() Report {
	r := m.evaluate()

	m.mu.Lock()
	prev := m.prev
	m.prev = r.Status
	m.mu.Unlock()
	if prev != "" && prev != r.Status {
		m.logger.Info("health status transition",
			zap.String("previous_status", string(prev)),
			zap.String("current_status", string(r.Status)),
			zap.String("reason", r.Reason))
	}
	return r
}

func (m *Monitor) evaluate() Report {
	if m.IsShuttingDown() {
		return Report{Status: StatusShuttingDown, Reason: "signal"}
	}

	if m.breakers != nil {
		if open := m.breakers.OpenBreakers(); len(open) > 0 {
			names := make([]string, 0, len(open))
			for _, u := range open {
				names = append(names, string(u))
			}
			sort.Strings(names)
			return Report{Status: StatusDegraded, Reason: "circuit_open", OpenBreakers: names}
		}
	}

	if m.cfg.OverloadWindow > 0 && m.cfg.RateLimitRPS > 0 && m.cfg.OverloadThresholdPct > 0 {
		threshold := float64(m.cfg.RateLimitRPS) * m.cfg.OverloadWindow.Seconds() * float64(m.cfg.OverloadThresholdPct) / 100
		if float64(m.tracker.RequestCount(m.cfg.OverloadWindow)) > threshold {
			return Report{Status: StatusOverloaded, Reason: "overload_threshold"}
		}
	}

	if m.cfg.IdleWindow > 0 && m.cfg.MinimumLifespan > 0 && time.Since(m.startTime) >= m.cfg.MinimumLifespan {
		if m.tracker.QueryCount(m.cfg.IdleWindow) < m.cfg.IdleThresholdReqPerMin {
			return Report{Status: StatusIdle, Reason: "low_traffic"}
		}
	}

	if m.cfg.DegradedWindow > 0 && m.cfg.DegradedErrorPct > 0 {
		errs, total := m.tracker.ErrorRate(m.cfg.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(m.cfg.DegradedErrorPct) {
			return Report{Status: StatusDegraded, Reason: "error_rate_breach"}
		}
	}

	return Report{Status: StatusHealthy}
}
