package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/station-conditions-service/internal/models"
	"github.com/kjstillabower/station-conditions-service/internal/observability"
	"github.com/kjstillabower/station-conditions-service/internal/service"
)

// Resolver is implemented by service.ConditionsService.
type Resolver interface {
	Resolve(ctx context.Context, query string) (models.ResolutionResult, error)
}

// Result is the outcome of probing one location.
type Result struct {
	Location string
	Outcome  string
	Station  models.StationID
	Err      error
}

// Prober resolves a fixed list of locations and records the outcomes. Nothing is stored;
// the point is an early signal when an upstream or a tracked area stops producing data.
type Prober struct {
	resolver  Resolver
	locations []string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewProber returns a Prober. timeout bounds each location; zero leaves it to the resolver.
func NewProber(resolver Resolver, locations []string, timeout time.Duration, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{resolver: resolver, locations: locations, timeout: timeout, logger: logger}
}

// Run probes every location concurrently. Results come back in location order. The error
// joins upstream failures and timeouts only; not-found and no-data are outcomes, not failures.
func (p *Prober) Run(ctx context.Context) ([]Result, error) {
	start := time.Now()
	p.logger.Info("probing locations", zap.Int("locations", len(p.locations)))

	results := make([]Result, len(p.locations))
	var wg sync.WaitGroup
	for i, loc := range p.locations {
		wg.Add(1)
		go func(i int, loc string) {
			defer wg.Done()
			results[i] = p.probeOne(ctx, loc)
		}(i, loc)
	}
	wg.Wait()

	var errs []error
	for _, r := range results {
		observability.ProbeResultsTotal.WithLabelValues(observability.MetricLocationLabel(r.Location), r.Outcome).Inc()
		if r.Outcome == service.OutcomeUpstreamError || r.Outcome == service.OutcomeTimeout {
			errs = append(errs, fmt.Errorf("probe %s: %w", r.Location, r.Err))
		}
	}

	duration := time.Since(start)
	observability.ProbeDurationSeconds.Observe(duration.Seconds())
	p.logger.Info("probe complete",
		zap.Int("locations", len(p.locations)),
		zap.Int("failures", len(errs)),
		zap.Duration("duration", duration))
	return results, errors.Join(errs...)
}

func (p *Prober) probeOne(ctx context.Context, loc string) Result {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	res, err := p.resolver.Resolve(ctx, loc)
	r := Result{Location: loc, Outcome: service.Outcome(res, err), Err: err}
	if res.StationID != nil {
		r.Station = *res.StationID
	}
	if r.Outcome != service.OutcomeOK {
		p.logger.Warn("probe location without data",
			zap.String("location", loc),
			zap.String("outcome", r.Outcome),
			zap.Error(err))
	}
	return r
}
