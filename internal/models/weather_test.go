package models

import (
	"encoding/json"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

// TestObservation_Usable verifies the usability rule: any one of temperature,
// wind speed or relative humidity with a numeric value makes the observation usable.
func TestObservation_Usable(t *testing.T) {
	tests := []struct {
		name string
		obs  *Observation
		want bool
	}{
		{"nil observation", nil, false},
		{"empty shell", &Observation{}, false},
		{
			name: "all three null",
			obs: &Observation{
				Temperature:      &Measurement{UnitCode: "wmoUnit:degC"},
				WindSpeed:        &Measurement{UnitCode: "wmoUnit:km_h-1"},
				RelativeHumidity: &Measurement{UnitCode: "wmoUnit:percent"},
			},
			want: false,
		},
		{
			name: "humidity only",
			obs: &Observation{
				Temperature:      &Measurement{},
				WindSpeed:        &Measurement{},
				RelativeHumidity: &Measurement{Value: floatPtr(42.0)},
			},
			want: true,
		},
		{"temperature only", &Observation{Temperature: &Measurement{Value: floatPtr(-3.5)}}, true},
		{"wind speed zero counts", &Observation{WindSpeed: &Measurement{Value: floatPtr(0)}}, true},
		{
			name: "other fields do not count",
			obs: &Observation{
				Dewpoint:           &Measurement{Value: floatPtr(5)},
				BarometricPressure: &Measurement{Value: floatPtr(101325)},
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.obs.Usable(); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestMeasurement_UnmarshalJSON verifies that only numeric values are treated as measured.
func TestMeasurement_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantPresent bool
		wantValue   float64
	}{
		{"number", `{"unitCode":"wmoUnit:degC","value":12.5}`, true, 12.5},
		{"zero", `{"value":0}`, true, 0},
		{"null", `{"unitCode":"wmoUnit:degC","value":null}`, false, 0},
		{"missing value", `{"unitCode":"wmoUnit:degC"}`, false, 0},
		{"string value", `{"value":"12.5"}`, false, 0},
		{"bool value", `{"value":true}`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Measurement
			if err := json.Unmarshal([]byte(tt.body), &m); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if m.Present() != tt.wantPresent {
				t.Fatalf("Present() = %v, want %v", m.Present(), tt.wantPresent)
			}
			if tt.wantPresent && *m.Value != tt.wantValue {
				t.Errorf("Value = %v, want %v", *m.Value, tt.wantValue)
			}
		})
	}
}

// TestObservation_DecodeNullShell verifies that a station outage record with null
// measurements decodes cleanly and is not usable.
func TestObservation_DecodeNullShell(t *testing.T) {
	body := `{
		"timestamp": "2026-10-15T17:53:00+00:00",
		"textDescription": "",
		"temperature": {"unitCode": "wmoUnit:degC", "value": null},
		"windSpeed": {"unitCode": "wmoUnit:km_h-1", "value": null},
		"relativeHumidity": null
	}`
	var obs Observation
	if err := json.Unmarshal([]byte(body), &obs); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if obs.Usable() {
		t.Error("Usable() = true, want false for null shell")
	}
	if obs.Timestamp != "2026-10-15T17:53:00+00:00" {
		t.Errorf("Timestamp = %q, want raw ISO string", obs.Timestamp)
	}
}

func TestCoordinate_LabelAndValid(t *testing.T) {
	c := Coordinate{Latitude: 34.05, Longitude: -118.25}
	if got := c.Label(); got != "Lat 34.050, Lon -118.250" {
		t.Errorf("Label() = %q", got)
	}
	if !c.Valid() {
		t.Error("Valid() = false, want true")
	}
	if (Coordinate{Latitude: 91, Longitude: 0}).Valid() {
		t.Error("Valid() = true for latitude 91")
	}
	if (Coordinate{Latitude: 0, Longitude: -180.5}).Valid() {
		t.Error("Valid() = true for longitude -180.5")
	}
}

func TestResolutionResult_Available(t *testing.T) {
	if (ResolutionResult{Label: "x"}).Available() {
		t.Error("Available() = true without observation")
	}
	id := StationID("KSEA")
	r := ResolutionResult{Label: "x", StationID: &id, Observation: &Observation{}}
	if !r.Available() {
		t.Error("Available() = false with observation")
	}
}
