package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kjstillabower/station-conditions-service/internal/client"
	"github.com/kjstillabower/station-conditions-service/internal/models"
)

type mockGeocoder struct {
	results   []client.GeocodeResult
	err       error
	calls     int
	lastName  string
	lastCount int
}

func (m *mockGeocoder) Search(ctx context.Context, name string, count int) ([]client.GeocodeResult, error) {
	m.calls++
	m.lastName = name
	m.lastCount = count
	return m.results, m.err
}

// mockNWS records every call so tests can assert which stations were contacted and in what order.
type mockNWS struct {
	point       client.PointResponse
	pointErr    error
	pointCalls  int
	lastCoord   models.Coordinate
	stations    client.StationCollection
	stationsErr error
	stationsURL string

	latest    map[models.StationID]*models.Observation
	latestErr map[models.StationID]error
	recent    map[models.StationID][]*models.Observation
	recentErr map[models.StationID]error
	lastLimit int

	// calls is "latest:ID" / "recent:ID" in call order.
	calls []string
	// block, when set, makes observation calls wait for ctx to end.
	block bool
}

func (m *mockNWS) Point(ctx context.Context, coord models.Coordinate) (client.PointResponse, error) {
	m.pointCalls++
	m.lastCoord = coord
	return m.point, m.pointErr
}

func (m *mockNWS) Stations(ctx context.Context, stationsURL string) (client.StationCollection, error) {
	m.stationsURL = stationsURL
	return m.stations, m.stationsErr
}

func (m *mockNWS) LatestObservation(ctx context.Context, station models.StationID) (*models.Observation, error) {
	m.calls = append(m.calls, "latest:"+string(station))
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := m.latestErr[station]; err != nil {
		return nil, err
	}
	return m.latest[station], nil
}

func (m *mockNWS) RecentObservations(ctx context.Context, station models.StationID, limit int) ([]*models.Observation, error) {
	m.calls = append(m.calls, "recent:"+string(station))
	m.lastLimit = limit
	if err := m.recentErr[station]; err != nil {
		return nil, err
	}
	return m.recent[station], nil
}

// contacted returns the distinct stations in first-contact order.
func (m *mockNWS) contacted() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range m.calls {
		id := c[len("latest:"):]
		if c[:6] == "recent" {
			id = c[len("recent:"):]
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func pointResponse(t *testing.T, body string) client.PointResponse {
	t.Helper()
	var p client.PointResponse
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("bad point fixture: %v", err)
	}
	return p
}

func stationCollection(t *testing.T, ids ...string) client.StationCollection {
	t.Helper()
	features := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		features = append(features, map[string]interface{}{
			"properties": map[string]interface{}{"stationIdentifier": id},
		})
	}
	raw, _ := json.Marshal(map[string]interface{}{"features": features})
	var c client.StationCollection
	if err := json.Unmarshal(raw, &c); err != nil {
		t.Fatalf("bad stations fixture: %v", err)
	}
	return c
}

func value(v float64) *models.Measurement {
	return &models.Measurement{Value: &v}
}

func usableObs(ts string) *models.Observation {
	return &models.Observation{Timestamp: ts, TextDescription: "Clear", Temperature: value(14.4)}
}

func emptyObs(ts string) *models.Observation {
	return &models.Observation{
		Timestamp:        ts,
		Temperature:      &models.Measurement{},
		WindSpeed:        &models.Measurement{},
		RelativeHumidity: &models.Measurement{},
	}
}
