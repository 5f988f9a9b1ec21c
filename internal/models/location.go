package models

import "fmt"

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether latitude is within [-90, 90] and longitude within [-180, 180].
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Label formats the coordinate as "Lat 34.050, Lon -118.250".
func (c Coordinate) Label() string {
	return fmt.Sprintf("Lat %.3f, Lon %.3f", c.Latitude, c.Longitude)
}

// PlaceMatch is the top-ranked match for a location query.
type PlaceMatch struct {
	Coordinate   Coordinate
	DisplayLabel string
}

// StationPoint is the point metadata for a coordinate.
// Administrative is true when DisplayLabel came from the point's relative location
// rather than the coordinate fallback.
type StationPoint struct {
	StationsURL    string
	DisplayLabel   string
	Administrative bool
}

// StationID identifies an observation station (e.g. "KSEA").
type StationID string
