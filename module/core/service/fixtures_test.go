package service

import (
	"time"

	"github.com/nandanugg/opstate/module/core/domain"
)

var t0 = time.Unix(1715000000, 0).UTC()

const (
	parkLat, parkLon         = -6.2088, 106.8456
	workshopLat, workshopLon = -6.3000, 106.9000
	sceneLat, sceneLon       = -6.2500, 106.8500
)

func square(id, name string, kind domain.GeofenceKind, lat, lon, half float64) domain.Geofence {
	return domain.Geofence{
		ID:   id,
		Name: name,
		Kind: kind,
		Polygon: []domain.Vertex{
			{Lon: lon - half, Lat: lat - half},
			{Lon: lon + half, Lat: lat - half},
			{Lon: lon + half, Lat: lat + half},
			{Lon: lon - half, Lat: lat + half},
		},
	}
}

func testZones() *LocalGeofence {
	return NewLocalGeofence([]domain.Geofence{
		square("P1", "Base Norte", domain.GeofencePark, parkLat, parkLon, 0.001),
		square("W1", "Taller Central", domain.GeofenceWorkshop, workshopLat, workshopLon, 0.001),
	})
}

func testClassifier() *StateClassifier {
	return NewStateClassifier(NewGeofenceIndex(nil, testZones(), GeofenceIndexConfig{}), DefaultStopWindowConfig())
}

func pt(sec int, lat, lon, speed float64, beacon bool) domain.TelemetryPoint {
	return domain.TelemetryPoint{
		Timestamp: t0.Add(time.Duration(sec) * time.Second),
		Lat:       lat,
		Lon:       lon,
		Speed:     speed,
		BeaconOn:  beacon,
	}
}

// responseUntilOnScene parks for 90s, departs with the beacon on and dwells at
// the scene from t=150s until the detector fires at t=450s.
func responseUntilOnScene() []domain.TelemetryPoint {
	pts := []domain.TelemetryPoint{
		pt(0, parkLat, parkLon, 0, false),
		pt(30, parkLat, parkLon, 0, false),
		pt(60, parkLat, parkLon, 0, false),
		pt(90, -6.2200, 106.8500, 60, true),
		pt(120, -6.2400, 106.8500, 60, true),
	}
	for sec := 150; sec <= 450; sec += 30 {
		pts = append(pts, pt(sec, sceneLat, sceneLon, 0, true))
	}
	return pts
}

func kinds(segs []domain.StateSegment) []domain.StateKind {
	out := make([]domain.StateKind, len(segs))
	for i, s := range segs {
		out[i] = s.StateKind
	}
	return out
}
