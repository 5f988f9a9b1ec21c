package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/station-conditions-service/internal/client"
	"github.com/kjstillabower/station-conditions-service/internal/models"
	"github.com/kjstillabower/station-conditions-service/internal/observability"
)

// Options configures a ConditionsService.
type Options struct {
	// StationLimit bounds the nearby stations tried per request.
	StationLimit int
	// RecentLimit is the number of recent observations scanned per station.
	RecentLimit int
	// Timeout bounds a whole resolution when the caller's context has no deadline.
	Timeout time.Duration
}

// ConditionsService resolves a location string to current conditions:
// resolve the location, locate nearby stations, then fetch the best observation.
// It holds no per-request state and is safe for concurrent use.
type ConditionsService struct {
	resolver     *Resolver
	locator      *Locator
	fetcher      *Fetcher
	stationLimit int
	timeout      time.Duration
	logger       *zap.Logger
}

// NewConditionsService wires the pipeline stages over the given upstream clients.
func NewConditionsService(geocoder client.Geocoder, nws client.NWS, opts Options, logger *zap.Logger) *ConditionsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StationLimit <= 0 {
		opts.StationLimit = DefaultStationLimit
	}
	return &ConditionsService{
		resolver:     NewResolver(geocoder),
		locator:      NewLocator(nws),
		fetcher:      NewFetcher(nws, opts.RecentLimit, logger),
		stationLimit: opts.StationLimit,
		timeout:      opts.Timeout,
		logger:       logger,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present,
// otherwise returns fallback.
func loggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return fallback
}

// Resolve runs the full pipeline for query. Errors from resolving or locating are fatal and
// returned as-is (ErrNotFound, ErrNoStations, ErrInvalidCoordinate, *client.ServiceError).
// When every station lacks usable data the result has a nil Observation and a nil error.
func (s *ConditionsService) Resolve(ctx context.Context, query string) (models.ResolutionResult, error) {
	if _, ok := ctx.Deadline(); !ok && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	logger := loggerFromContext(ctx, s.logger)

	result, err := s.resolve(ctx, query)

	outcome := Outcome(result, err)
	observability.ResolutionsTotal.WithLabelValues(outcome).Inc()
	fields := []zap.Field{
		zap.String("query", query),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)),
	}
	switch {
	case outcome == OutcomeUpstreamError || outcome == OutcomeTimeout:
		logger.Warn("resolution failed", append(fields, zap.Error(err))...)
	case err != nil:
		logger.Debug("resolution rejected", append(fields, zap.Error(err))...)
	case !result.Available():
		logger.Info("no usable observation near location", append(fields, zap.String("label", result.Label))...)
	default:
		logger.Debug("resolution served", append(fields, zap.String("station", string(*result.StationID)))...)
	}
	return result, err
}

func (s *ConditionsService) resolve(ctx context.Context, query string) (models.ResolutionResult, error) {
	place, err := s.resolver.Resolve(ctx, query)
	if err != nil {
		return models.ResolutionResult{}, err
	}

	point, err := s.locator.Locate(ctx, place.Coordinate)
	if err != nil {
		return models.ResolutionResult{}, err
	}

	stations, err := s.locator.ListStations(ctx, point.StationsURL, s.stationLimit)
	if err != nil {
		return models.ResolutionResult{}, err
	}

	obs, station, err := s.fetcher.FetchBest(ctx, stations)
	if err != nil {
		return models.ResolutionResult{}, err
	}

	result := models.ResolutionResult{Label: resolveDisplayLabel(point, place)}
	if obs != nil {
		result.Observation = obs
		result.StationID = &station
	}
	return result, nil
}

// resolveDisplayLabel picks the label shown to the user: the point's administrative label,
// then the geocoder's label, then the coordinate label.
func resolveDisplayLabel(point models.StationPoint, place models.PlaceMatch) string {
	if point.Administrative && point.DisplayLabel != "" {
		return point.DisplayLabel
	}
	if place.DisplayLabel != "" {
		return place.DisplayLabel
	}
	if point.DisplayLabel != "" {
		return point.DisplayLabel
	}
	return place.Coordinate.Label()
}
