package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/station-conditions-service/internal/client"
	"github.com/kjstillabower/station-conditions-service/internal/models"
	"github.com/kjstillabower/station-conditions-service/internal/observability"
)

// DefaultRecentLimit is how many recent observations the second tier scans.
const DefaultRecentLimit = 8

// attemptTier is one way of getting observations for a station. Tiers run in order
// for each station; the first usable observation from any tier wins.
type attemptTier struct {
	name  string
	fetch func(ctx context.Context, station models.StationID) ([]*models.Observation, error)
}

// Fetcher walks a station list and returns the first usable observation.
type Fetcher struct {
	tiers  []attemptTier
	logger *zap.Logger
}

// NewFetcher returns a Fetcher that tries the latest observation, then up to
// recentLimit recent observations, for each station.
func NewFetcher(nws client.NWS, recentLimit int, logger *zap.Logger) *Fetcher {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		tiers: []attemptTier{
			{
				name: "latest",
				fetch: func(ctx context.Context, station models.StationID) ([]*models.Observation, error) {
					obs, err := nws.LatestObservation(ctx, station)
					if err != nil {
						return nil, err
					}
					return []*models.Observation{obs}, nil
				},
			},
			{
				name: "recent",
				fetch: func(ctx context.Context, station models.StationID) ([]*models.Observation, error) {
					return nws.RecentObservations(ctx, station, recentLimit)
				},
			},
		},
		logger: logger,
	}
}

// FetchBest tries stations strictly in order and stops at the first usable observation;
// later stations are never contacted. Upstream failures for a single station are logged and
// skipped. Returns (nil, "", nil) when no station had usable data, and an error only when ctx ends.
func (f *Fetcher) FetchBest(ctx context.Context, stations []models.StationID) (*models.Observation, models.StationID, error) {
	logger := loggerFromContext(ctx, f.logger)
	contacted := 0
	defer func() { observability.StationsContacted.Observe(float64(contacted)) }()

	for _, station := range stations {
		contacted++
		for _, tier := range f.tiers {
			if err := ctx.Err(); err != nil {
				return nil, "", fmt.Errorf("fetch observations: %w", err)
			}

			observations, err := tier.fetch(ctx, station)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, "", fmt.Errorf("fetch observations: %w", ctxErr)
				}
				observability.StationAttemptsTotal.WithLabelValues(tier.name, "failed").Inc()
				logger.Debug("station attempt failed",
					zap.String("station", string(station)),
					zap.String("tier", tier.name),
					zap.String("category", string(client.CategorizeError(err))),
					zap.Error(err))
				continue
			}

			if obs := firstUsable(observations); obs != nil {
				observability.StationAttemptsTotal.WithLabelValues(tier.name, "usable").Inc()
				logger.Debug("usable observation found",
					zap.String("station", string(station)),
					zap.String("tier", tier.name),
					zap.String("timestamp", obs.Timestamp))
				return obs, station, nil
			}
			observability.StationAttemptsTotal.WithLabelValues(tier.name, "unusable").Inc()
			logger.Debug("station attempt had no usable data",
				zap.String("station", string(station)),
				zap.String("tier", tier.name),
				zap.Int("observations", len(observations)))
		}
	}
	return nil, "", nil
}

func firstUsable(observations []*models.Observation) *models.Observation {
	for _, obs := range observations {
		if obs.Usable() {
			return obs
		}
	}
	return nil
}
