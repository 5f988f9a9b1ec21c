package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kjstillabower/station-conditions-service/internal/client"
	"github.com/kjstillabower/station-conditions-service/internal/models"
)

// coordinatePattern matches "lat,lon" with optional minus signs and decimals.
var coordinatePattern = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)$`)

// Resolver turns a free-text location into a coordinate and a display label.
type Resolver struct {
	geocoder client.Geocoder
}

// NewResolver returns a Resolver backed by geocoder.
func NewResolver(geocoder client.Geocoder) *Resolver {
	return &Resolver{geocoder: geocoder}
}

// Resolve parses a literal "lat,lon" without touching the network, and otherwise asks the
// geocoder for its single best match. Coordinate syntax always wins over place names.
func (r *Resolver) Resolve(ctx context.Context, query string) (models.PlaceMatch, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return models.PlaceMatch{}, ErrEmptyQuery
	}

	if coord, ok := parseCoordinate(q); ok {
		if !coord.Valid() {
			return models.PlaceMatch{}, fmt.Errorf("%w: %s", ErrInvalidCoordinate, q)
		}
		return models.PlaceMatch{Coordinate: coord, DisplayLabel: coord.Label()}, nil
	}

	results, err := r.geocoder.Search(ctx, q, 1)
	if err != nil {
		return models.PlaceMatch{}, fmt.Errorf("geocode %q: %w", q, err)
	}
	if len(results) == 0 {
		return models.PlaceMatch{}, fmt.Errorf("%w: %q", ErrNotFound, q)
	}

	top := results[0]
	return models.PlaceMatch{
		Coordinate:   models.Coordinate{Latitude: top.Latitude, Longitude: top.Longitude},
		DisplayLabel: joinPresent(top.Name, top.Admin1, top.CountryCode),
	}, nil
}

// parseCoordinate returns the coordinate and true when s is a literal "lat,lon".
func parseCoordinate(s string) (models.Coordinate, bool) {
	m := coordinatePattern.FindStringSubmatch(s)
	if m == nil {
		return models.Coordinate{}, false
	}
	// The pattern guarantees both groups are decimal numbers; ParseFloat only
	// fails on overflow, which yields ±Inf and is caught by Valid.
	lat, _ := strconv.ParseFloat(m[1], 64)
	lon, _ := strconv.ParseFloat(m[2], 64)
	return models.Coordinate{Latitude: lat, Longitude: lon}, true
}

// joinPresent joins the non-empty parts with ", ".
func joinPresent(parts ...string) string {
	present := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			present = append(present, p)
		}
	}
	return strings.Join(present, ", ")
}
