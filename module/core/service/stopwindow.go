package service

import (
	"time"

	"github.com/nandanugg/opstate/module/core/domain"
)

const (
	DefaultSlowSpeed   = 5.0
	DefaultMinDwell    = 300 * time.Second
	DefaultMaxRadiusKm = 0.05
)

type StopWindowConfig struct {
	SlowSpeed   float64
	MinDwell    time.Duration
	MaxRadiusKm float64
}

func DefaultStopWindowConfig() StopWindowConfig {
	return StopWindowConfig{
		SlowSpeed:   DefaultSlowSpeed,
		MinDwell:    DefaultMinDwell,
		MaxRadiusKm: DefaultMaxRadiusKm,
	}
}

// StopSignal is anchored at the first slow point of the qualifying window.
type StopSignal struct {
	Timestamp time.Time
	Position  domain.Position
}

// StopWindowDetector tracks the current run of consecutive slow points.
// Only the first and last points of a run are read; once the ring is full it
// overwrites the middle of the run.
type StopWindowDetector struct {
	cfg   StopWindowConfig
	ring  []domain.TelemetryPoint
	first domain.TelemetryPoint
	head  int
	size  int
}

const stopWindowCapacity = 64

func NewStopWindowDetector(cfg StopWindowConfig) *StopWindowDetector {
	return &StopWindowDetector{
		cfg:  cfg,
		ring: make([]domain.TelemetryPoint, stopWindowCapacity),
	}
}

// Feed consumes one point and reports whether a dwell was detected.
func (d *StopWindowDetector) Feed(p domain.TelemetryPoint) (StopSignal, bool) {
	if p.Speed >= d.cfg.SlowSpeed {
		d.Reset()
		return StopSignal{}, false
	}

	d.push(p)
	if d.size < 2 {
		return StopSignal{}, false
	}

	last := d.last()
	elapsed := last.Timestamp.Sub(d.first.Timestamp)
	dist := haversineKm(d.first.Lat, d.first.Lon, last.Lat, last.Lon)
	if elapsed >= d.cfg.MinDwell && dist <= d.cfg.MaxRadiusKm {
		sig := StopSignal{Timestamp: d.first.Timestamp, Position: d.first.Position()}
		d.Reset()
		return sig, true
	}
	return StopSignal{}, false
}

func (d *StopWindowDetector) Reset() {
	d.head = 0
	d.size = 0
}

func (d *StopWindowDetector) Len() int {
	return d.size
}

func (d *StopWindowDetector) push(p domain.TelemetryPoint) {
	if d.size == 0 {
		d.first = p
	}
	d.ring[d.head] = p
	d.head = (d.head + 1) % len(d.ring)
	d.size++
}

func (d *StopWindowDetector) last() domain.TelemetryPoint {
	return d.ring[(d.head-1+len(d.ring))%len(d.ring)]
}
