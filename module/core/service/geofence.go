package service

import (
	"context"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/nandanugg/opstate/module/core/domain"
)

// GeofenceLookup answers zone membership for a single coordinate.
type GeofenceLookup interface {
	Contains(ctx context.Context, lat, lon float64, kind domain.GeofenceKind) (domain.GeofenceMatch, error)
}

var _ GeofenceLookup = (*LocalGeofence)(nil)

type zone struct {
	fence                          domain.Geofence
	minLat, maxLat, minLon, maxLon float64
}

// LocalGeofence is an immutable polygon index. It is built once per run and
// read concurrently by every session worker.
type LocalGeofence struct {
	zones map[domain.GeofenceKind][]zone
}

func NewLocalGeofence(fences []domain.Geofence) *LocalGeofence {
	l := &LocalGeofence{zones: make(map[domain.GeofenceKind][]zone)}
	for _, f := range fences {
		z, ok := buildZone(f)
		if !ok {
			log.Printf("geofence %s (%s): malformed polygon, ignored", f.ID, f.Name)
			continue
		}
		l.zones[f.Kind] = append(l.zones[f.Kind], z)
	}
	return l
}

func (l *LocalGeofence) Len(kind domain.GeofenceKind) int {
	return len(l.zones[kind])
}

func (l *LocalGeofence) Contains(_ context.Context, lat, lon float64, kind domain.GeofenceKind) (domain.GeofenceMatch, error) {
	return l.match(lat, lon, kind), nil
}

func (l *LocalGeofence) match(lat, lon float64, kind domain.GeofenceKind) domain.GeofenceMatch {
	if !finite(lat) || !finite(lon) {
		return domain.GeofenceMatch{}
	}
	for _, z := range l.zones[kind] {
		if lat < z.minLat || lat > z.maxLat || lon < z.minLon || lon > z.maxLon {
			continue
		}
		if pointInRing(lat, lon, z.fence.Polygon) {
			return domain.GeofenceMatch{Inside: true, Geofence: z.fence.Ref()}
		}
	}
	return domain.GeofenceMatch{}
}

func buildZone(f domain.Geofence) (zone, bool) {
	if len(f.Polygon) < 3 {
		return zone{}, false
	}
	z := zone{
		fence:  f,
		minLat: math.Inf(1), maxLat: math.Inf(-1),
		minLon: math.Inf(1), maxLon: math.Inf(-1),
	}
	for _, v := range f.Polygon {
		if !finite(v.Lat) || !finite(v.Lon) {
			return zone{}, false
		}
		z.minLat = math.Min(z.minLat, v.Lat)
		z.maxLat = math.Max(z.maxLat, v.Lat)
		z.minLon = math.Min(z.minLon, v.Lon)
		z.maxLon = math.Max(z.maxLon, v.Lon)
	}
	if z.minLat == z.maxLat || z.minLon == z.maxLon {
		return zone{}, false
	}
	return z, true
}

// pointInRing is an even-odd ray cast along +lon. A repeated closing vertex
// is a zero-length edge and never toggles.
func pointInRing(lat, lon float64, ring []domain.Vertex) bool {
	inside := false
	j := len(ring) - 1
	for i := range ring {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		if (yi > lat) != (yj > lat) && lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

const (
	DefaultRemoteTimeout  = 2 * time.Second
	DefaultRemoteCooldown = 30 * time.Second
)

type GeofenceIndexConfig struct {
	RemoteTimeout  time.Duration
	RemoteCooldown time.Duration
}

// GeofenceIndex prefers the remote geofencing service and falls back to the
// local polygons whenever a call fails or exceeds RemoteTimeout. After a
// failure the remote is skipped for RemoteCooldown.
type GeofenceIndex struct {
	remote    GeofenceLookup
	local     *LocalGeofence
	cfg       GeofenceIndexConfig
	skipUntil atomic.Int64
	now       func() time.Time
}

// NewGeofenceIndex accepts a nil remote, in which case only local polygons are used.
func NewGeofenceIndex(remote GeofenceLookup, local *LocalGeofence, cfg GeofenceIndexConfig) *GeofenceIndex {
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}
	if cfg.RemoteCooldown <= 0 {
		cfg.RemoteCooldown = DefaultRemoteCooldown
	}
	if local == nil {
		local = NewLocalGeofence(nil)
	}
	return &GeofenceIndex{
		remote: remote,
		local:  local,
		cfg:    cfg,
		now:    time.Now,
	}
}

type lookupResult struct {
	match domain.GeofenceMatch
	err   error
}

func (g *GeofenceIndex) Contains(ctx context.Context, lat, lon float64, kind domain.GeofenceKind) domain.GeofenceMatch {
	if g.remote == nil || ctx.Err() != nil || g.now().UnixNano() < g.skipUntil.Load() {
		return g.local.match(lat, lon, kind)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.RemoteTimeout)
	defer cancel()

	// Buffered so a lookup that ignores its context can still finish and exit.
	done := make(chan lookupResult, 1)
	go func() {
		m, err := g.remote.Contains(callCtx, lat, lon, kind)
		done <- lookupResult{match: m, err: err}
	}()

	var err error
	select {
	case r := <-done:
		if r.err == nil {
			return r.match
		}
		err = r.err
	case <-callCtx.Done():
		err = callCtx.Err()
	}

	// A caller that gave up says nothing about the service.
	if ctx.Err() != nil {
		return g.local.match(lat, lon, kind)
	}
	g.skipUntil.Store(g.now().Add(g.cfg.RemoteCooldown).UnixNano())
	log.Printf("geofence service unavailable, using local polygons: %v", err)
	return g.local.match(lat, lon, kind)
}
