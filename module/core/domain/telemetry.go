package domain

import "time"

type Position struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// TelemetryPoint is one merged sample of a session. Speed shares units with
// the stop detector's slow-speed threshold.
type TelemetryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"latitude"`
	Lon       float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
	BeaconOn  bool      `json:"beacon_on"`
}

func (p TelemetryPoint) Position() Position {
	return Position{Lat: p.Lat, Lon: p.Lon}
}
