package models

import (
	"bytes"
	"encoding/json"
)

// Measurement is a single observed quantity as reported by the observation service.
// Value is nil when the station did not measure it.
type Measurement struct {
	UnitCode string   `json:"unitCode,omitempty"`
	Value    *float64 `json:"value"`
}

// Present reports whether the measurement carries a numeric value.
func (m *Measurement) Present() bool {
	return m != nil && m.Value != nil
}

// UnmarshalJSON accepts any JSON value for "value". Only numbers count as measured;
// null, strings and booleans decode to an absent value instead of failing the whole observation.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	var raw struct {
		UnitCode string          `json:"unitCode"`
		Value    json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		// A measurement that is not an object (e.g. bare null) is simply not measured.
		*m = Measurement{}
		return nil
	}
	m.UnitCode = raw.UnitCode
	m.Value = nil
	v := bytes.TrimSpace(raw.Value)
	// null decodes into a float64 without error, so it has to be caught first.
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return nil
	}
	m.Value = &f
	return nil
}

// Observation is one station reading. Timestamp is kept as the raw ISO 8601 string
// the service returned; display formatting is left to the consumer.
type Observation struct {
	StationURL         string       `json:"station,omitempty"`
	Timestamp          string       `json:"timestamp"`
	TextDescription    string       `json:"textDescription"`
	Icon               string       `json:"icon,omitempty"`
	Temperature        *Measurement `json:"temperature,omitempty"`
	Dewpoint           *Measurement `json:"dewpoint,omitempty"`
	WindDirection      *Measurement `json:"windDirection,omitempty"`
	WindSpeed          *Measurement `json:"windSpeed,omitempty"`
	WindGust           *Measurement `json:"windGust,omitempty"`
	BarometricPressure *Measurement `json:"barometricPressure,omitempty"`
	SeaLevelPressure   *Measurement `json:"seaLevelPressure,omitempty"`
	Visibility         *Measurement `json:"visibility,omitempty"`
	RelativeHumidity   *Measurement `json:"relativeHumidity,omitempty"`
	WindChill          *Measurement `json:"windChill,omitempty"`
	HeatIndex          *Measurement `json:"heatIndex,omitempty"`
}

// Usable reports whether at least one of temperature, wind speed or relative humidity
// is present. Stations in a transient outage often return a record with every field null.
func (o *Observation) Usable() bool {
	if o == nil {
		return false
	}
	return o.Temperature.Present() || o.WindSpeed.Present() || o.RelativeHumidity.Present()
}

// ResolutionResult is the outcome of resolving a location to current conditions.
// Observation and StationID are nil when no nearby station had usable data.
type ResolutionResult struct {
	Label       string       `json:"label"`
	StationID   *StationID   `json:"stationId"`
	Observation *Observation `json:"observation"`
}

// Available reports whether an observation was found.
func (r ResolutionResult) Available() bool {
	return r.Observation != nil
}
