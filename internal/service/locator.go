package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kjstillabower/station-conditions-service/internal/client"
	"github.com/kjstillabower/station-conditions-service/internal/models"
)

// DefaultStationLimit bounds how many nearby stations are considered.
const DefaultStationLimit = 8

// Locator finds the point metadata and nearby stations for a coordinate.
type Locator struct {
	nws client.NWS
}

// NewLocator returns a Locator backed by nws.
func NewLocator(nws client.NWS) *Locator {
	return &Locator{nws: nws}
}

// Locate returns the stations listing URL and display label for coord.
// A point without a stations listing fails with ErrNoStations.
func (l *Locator) Locate(ctx context.Context, coord models.Coordinate) (models.StationPoint, error) {
	resp, err := l.nws.Point(ctx, coord)
	if err != nil {
		return models.StationPoint{}, fmt.Errorf("locate point %s: %w", coord.Label(), err)
	}

	stationsURL := strings.TrimSpace(resp.Properties.ObservationStations)
	if stationsURL == "" {
		return models.StationPoint{}, fmt.Errorf("%w: %s", ErrNoStations, coord.Label())
	}

	point := models.StationPoint{StationsURL: stationsURL, DisplayLabel: coord.Label()}
	if rel := resp.Properties.RelativeLocation; rel != nil {
		if label := joinPresent(rel.Properties.City, rel.Properties.State); label != "" {
			point.DisplayLabel = label
			point.Administrative = true
		}
	}
	return point, nil
}

// ListStations returns up to limit station identifiers from stationsURL in the order the
// service returned them. Features without an identifier are skipped before truncating.
// An empty result is not an error.
func (l *Locator) ListStations(ctx context.Context, stationsURL string, limit int) ([]models.StationID, error) {
	if limit <= 0 {
		limit = DefaultStationLimit
	}

	coll, err := l.nws.Stations(ctx, stationsURL)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}

	ids := make([]models.StationID, 0, limit)
	for _, f := range coll.Features {
		id := strings.TrimSpace(f.Properties.StationIdentifier)
		if id == "" {
			continue
		}
		ids = append(ids, models.StationID(id))
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}
