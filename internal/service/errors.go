package service

import (
	"context"
	"errors"

	"github.com/kjstillabower/station-conditions-service/internal/models"
)

var (
	// ErrEmptyQuery is returned when the query is empty after trimming.
	ErrEmptyQuery = errors.New("location is required")
	// ErrNotFound is returned when the geocoder has no match for the query.
	ErrNotFound = errors.New("place not found")
	// ErrNoStations is returned when the point has no observation stations listing. Not retryable.
	ErrNoStations = errors.New("no observation stations for location")
	// ErrInvalidCoordinate is returned for a literal coordinate outside [-90,90] x [-180,180].
	ErrInvalidCoordinate = errors.New("coordinate out of range")
)

// Outcome labels for metrics and logs.
const (
	OutcomeOK            = "ok"
	OutcomeNoData        = "no_data"
	OutcomeNotFound      = "not_found"
	OutcomeNoStations    = "no_stations"
	OutcomeInvalid       = "invalid"
	OutcomeUpstreamError = "upstream_error"
	OutcomeTimeout       = "timeout"
)

// Outcome classifies a resolution result. A nil error with no observation is no_data, not a failure.
func Outcome(result models.ResolutionResult, err error) string {
	switch {
	case err == nil && result.Available():
		return OutcomeOK
	case err == nil:
		return OutcomeNoData
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrNoStations):
		return OutcomeNoStations
	case errors.Is(err, ErrInvalidCoordinate), errors.Is(err, ErrEmptyQuery):
		return OutcomeInvalid
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return OutcomeTimeout
	default:
		return OutcomeUpstreamError
	}
}
