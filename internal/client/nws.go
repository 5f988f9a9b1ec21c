package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kjstillabower/station-conditions-service/internal/models"
)

const geoJSON = "application/geo+json"

// PointResponse is the subset of the points endpoint the locator needs.
type PointResponse struct {
	Properties struct {
		ObservationStations string `json:"observationStations"`
		RelativeLocation    *struct {
			Properties struct {
				City  string `json:"city"`
				State string `json:"state"`
			} `json:"properties"`
		} `json:"relativeLocation"`
	} `json:"properties"`
}

// StationCollection is the stations listing, in the service's proximity order.
type StationCollection struct {
	Features []struct {
		Properties struct {
			StationIdentifier string `json:"stationIdentifier"`
		} `json:"properties"`
	} `json:"features"`
}

type observationFeature struct {
	Properties *models.Observation `json:"properties"`
}

type observationCollection struct {
	Features []observationFeature `json:"features"`
}

// NWS is the weather-point and observation API.
type NWS interface {
	Point(ctx context.Context, coord models.Coordinate) (PointResponse, error)
	Stations(ctx context.Context, stationsURL string) (StationCollection, error)
	LatestObservation(ctx context.Context, station models.StationID) (*models.Observation, error)
	RecentObservations(ctx context.Context, station models.StationID, limit int) ([]*models.Observation, error)
}

// NWSClient talks to api.weather.gov (or a compatible server at baseURL).
type NWSClient struct {
	transport *Transport
	baseURL   *url.URL
}

// NewNWSClient returns a client rooted at baseURL (e.g. https://api.weather.gov).
func NewNWSClient(transport *Transport, baseURL string) (*NWSClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid weather API URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid weather API URL: %q is not absolute", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return &NWSClient{transport: transport, baseURL: u}, nil
}

// Point fetches point metadata for coord. Coordinates are sent with 4 decimal places,
// the precision the points endpoint accepts without redirecting.
func (c *NWSClient) Point(ctx context.Context, coord models.Coordinate) (PointResponse, error) {
	path := "/points/" + formatDegrees(coord.Latitude) + "," + formatDegrees(coord.Longitude)
	var resp PointResponse
	if err := c.transport.getJSON(ctx, UpstreamPoints, c.endpoint(path, nil), geoJSON, &resp); err != nil {
		return PointResponse{}, err
	}
	return resp, nil
}

// Stations fetches the stations listing at stationsURL. Relative URLs resolve against the base URL.
func (c *NWSClient) Stations(ctx context.Context, stationsURL string) (StationCollection, error) {
	ref, err := url.Parse(stationsURL)
	if err != nil {
		return StationCollection{}, fmt.Errorf("invalid stations URL: %w", err)
	}
	target := c.baseURL.ResolveReference(ref)
	if target.Scheme != "http" && target.Scheme != "https" {
		return StationCollection{}, fmt.Errorf("invalid stations URL scheme %q", target.Scheme)
	}

	var resp StationCollection
	if err := c.transport.getJSON(ctx, UpstreamStations, target.String(), geoJSON, &resp); err != nil {
		return StationCollection{}, err
	}
	return resp, nil
}

// LatestObservation fetches the station's latest observation.
func (c *NWSClient) LatestObservation(ctx context.Context, station models.StationID) (*models.Observation, error) {
	path := "/stations/" + url.PathEscape(string(station)) + "/observations/latest"
	var resp observationFeature
	if err := c.transport.getJSON(ctx, UpstreamObservations, c.endpoint(path, nil), geoJSON, &resp); err != nil {
		return nil, err
	}
	return resp.Properties, nil
}

// RecentObservations fetches up to limit recent observations, newest first as returned.
// Entries without properties are dropped.
func (c *NWSClient) RecentObservations(ctx context.Context, station models.StationID, limit int) ([]*models.Observation, error) {
	path := "/stations/" + url.PathEscape(string(station)) + "/observations"
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	var resp observationCollection
	if err := c.transport.getJSON(ctx, UpstreamObservations, c.endpoint(path, q), geoJSON, &resp); err != nil {
		return nil, err
	}
	out := make([]*models.Observation, 0, len(resp.Features))
	for _, f := range resp.Features {
		if f.Properties != nil {
			out = append(out, f.Properties)
		}
	}
	return out, nil
}

func (c *NWSClient) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func formatDegrees(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
