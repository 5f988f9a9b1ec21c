package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// GeocodeResult is one place match from the geocoding API.
type GeocodeResult struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Admin1      string  `json:"admin1"`
	CountryCode string  `json:"country_code"`
}

type geocodeResponse struct {
	Results []GeocodeResult `json:"results"`
}

// Geocoder looks up places by free-text name. Results are in relevance order.
type Geocoder interface {
	Search(ctx context.Context, name string, count int) ([]GeocodeResult, error)
}

// OpenMeteoGeocoder queries the Open-Meteo geocoding API.
type OpenMeteoGeocoder struct {
	transport *Transport
	searchURL *url.URL
}

// NewOpenMeteoGeocoder returns a geocoder rooted at baseURL (e.g. https://geocoding-api.open-meteo.com/v1).
func NewOpenMeteoGeocoder(transport *Transport, baseURL string) (*OpenMeteoGeocoder, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid geocoder URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid geocoder URL: %q is not absolute", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/search"
	return &OpenMeteoGeocoder{transport: transport, searchURL: u}, nil
}

// Search returns up to count matches for name. An empty slice means no match.
func (g *OpenMeteoGeocoder) Search(ctx context.Context, name string, count int) ([]GeocodeResult, error) {
	u := *g.searchURL
	params := url.Values{}
	params.Set("name", name)
	params.Set("count", strconv.Itoa(count))
	u.RawQuery = params.Encode()

	var resp geocodeResponse
	if err := g.transport.getJSON(ctx, UpstreamGeocoder, u.String(), "application/json", &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}
