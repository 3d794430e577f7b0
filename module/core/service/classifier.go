package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nandanugg/opstate/module/core/domain"
)

var ErrUnorderedPoints = errors.New("telemetry points are not ordered by timestamp")

// ZoneIndex is satisfied by *GeofenceIndex. Lookups never fail; fallback is
// the index's concern.
type ZoneIndex interface {
	Contains(ctx context.Context, lat, lon float64, kind domain.GeofenceKind) domain.GeofenceMatch
}

// SegmentSink receives each segment as soon as it closes. An error aborts the run.
type SegmentSink func(seg domain.StateSegment) error

type StateClassifier struct {
	zones ZoneIndex
	stop  StopWindowConfig
}

func NewStateClassifier(zones ZoneIndex, stop StopWindowConfig) *StateClassifier {
	return &StateClassifier{zones: zones, stop: stop}
}

// openSegment is the classifier state: which segment is open and what it
// recorded when it opened. kind == StateNone before the first point.
type openSegment struct {
	kind       domain.StateKind
	startTime  time.Time
	startPos   domain.Position
	beacon     bool
	ref        *domain.GeofenceRef
	transition string
}

func (o openSegment) close(sessionID string, end time.Time, endPos domain.Position) domain.StateSegment {
	dur := end.Sub(o.startTime).Seconds()
	if dur < 0 {
		dur = 0
	}
	beacon := o.beacon
	return domain.StateSegment{
		SessionID:       sessionID,
		StateKind:       o.kind,
		StartTime:       o.startTime,
		EndTime:         end,
		DurationSeconds: dur,
		StartPos:        o.startPos,
		EndPos:          endPos,
		BeaconState:     &beacon,
		GeofenceRef:     o.ref,
		Transition:      o.transition,
	}
}

type observation struct {
	point    domain.TelemetryPoint
	workshop domain.GeofenceMatch
	park     domain.GeofenceMatch
}

// boundary describes a state change: the open segment closes at (at, pos)
// and next opens there.
type boundary struct {
	at         time.Time
	pos        domain.Position
	next       openSegment
	unexpected bool
}

// transition applies the state rules to one observation. The detector is only
// fed while EmergencyDeparture is open; the caller resets it on every change.
func transition(cur domain.StateKind, obs observation, det *StopWindowDetector) (boundary, bool) {
	p := obs.point
	at := func(kind domain.StateKind, ref *domain.GeofenceRef, unexpected bool) (boundary, bool) {
		return boundary{
			at:  p.Timestamp,
			pos: p.Position(),
			next: openSegment{
				kind:       kind,
				startTime:  p.Timestamp,
				startPos:   p.Position(),
				beacon:     p.BeaconOn,
				ref:        ref,
				transition: domain.TransitionTag(cur, kind, unexpected),
			},
			unexpected: unexpected,
		}, true
	}

	// Workshop membership dominates every other rule.
	if obs.workshop.Inside {
		if cur == domain.StateWorkshop {
			return boundary{}, false
		}
		return at(domain.StateWorkshop, obs.workshop.Geofence, false)
	}

	if obs.park.Inside && !p.BeaconOn && cur != domain.StateParkedOperational {
		switch cur {
		case domain.StateNone, domain.StateReturning:
			return at(domain.StateParkedOperational, obs.park.Geofence, false)
		default:
			return at(domain.StateParkedOperational, obs.park.Geofence, true)
		}
	}

	switch cur {
	case domain.StateNone:
		if p.BeaconOn {
			return at(domain.StateEmergencyDeparture, nil, false)
		}
		return at(domain.StateReturning, nil, false)

	case domain.StateParkedOperational:
		if !obs.park.Inside && p.BeaconOn {
			return at(domain.StateEmergencyDeparture, nil, false)
		}

	case domain.StateEmergencyDeparture:
		if sig, ok := det.Feed(p); ok {
			return boundary{
				at:  sig.Timestamp,
				pos: sig.Position,
				next: openSegment{
					kind:       domain.StateOnScene,
					startTime:  sig.Timestamp,
					startPos:   sig.Position,
					beacon:     p.BeaconOn,
					transition: domain.TransitionTag(cur, domain.StateOnScene, false),
				},
			}, true
		}

	case domain.StateOnScene:
		if !p.BeaconOn {
			return at(domain.StateReturning, nil, false)
		}
	}

	return boundary{}, false
}

func (c *StateClassifier) observe(ctx context.Context, p domain.TelemetryPoint) observation {
	obs := observation{point: p}
	obs.workshop = c.zones.Contains(ctx, p.Lat, p.Lon, domain.GeofenceWorkshop)
	if !obs.workshop.Inside {
		obs.park = c.zones.Contains(ctx, p.Lat, p.Lon, domain.GeofencePark)
	}
	return obs
}

// Run classifies one session in a single pass, handing each closed segment to
// sink in start-time order. Recovered invalid transitions are returned even
// when the run fails part way.
func (c *StateClassifier) Run(ctx context.Context, sessionID string, points []domain.TelemetryPoint, sink SegmentSink) ([]domain.InvalidTransition, error) {
	var diags []domain.InvalidTransition
	if len(points) == 0 {
		return diags, nil
	}

	det := NewStopWindowDetector(c.stop)
	cur := openSegment{kind: domain.StateNone}

	for i, p := range points {
		if i > 0 && p.Timestamp.Before(points[i-1].Timestamp) {
			return diags, fmt.Errorf("point %d: %w", i, ErrUnorderedPoints)
		}

		b, changed := transition(cur.kind, c.observe(ctx, p), det)
		if !changed {
			continue
		}

		if cur.kind != domain.StateNone {
			if err := sink(cur.close(sessionID, b.at, b.pos)); err != nil {
				return diags, err
			}
		}

		if b.unexpected {
			log.Printf("session %s: invalid transition %s at %s", sessionID, b.next.transition, p.Timestamp.Format(time.RFC3339))
			diags = append(diags, domain.InvalidTransition{
				SessionID:  sessionID,
				OldState:   cur.kind,
				NewState:   b.next.kind,
				Point:      p,
				Transition: b.next.transition,
			})
		}

		cur = b.next
		det.Reset()
	}

	last := points[len(points)-1]
	if err := sink(cur.close(sessionID, last.Timestamp, last.Position())); err != nil {
		return diags, err
	}
	return diags, nil
}

// Classify runs the classifier and collects every segment in memory.
func (c *StateClassifier) Classify(ctx context.Context, sessionID string, points []domain.TelemetryPoint) (*domain.ClassificationResult, error) {
	res := &domain.ClassificationResult{
		SessionID:          sessionID,
		Segments:           []domain.StateSegment{},
		InvalidTransitions: []domain.InvalidTransition{},
	}
	diags, err := c.Run(ctx, sessionID, points, func(seg domain.StateSegment) error {
		res.Segments = append(res.Segments, seg)
		return nil
	})
	res.InvalidTransitions = append(res.InvalidTransitions, diags...)
	if err != nil {
		return nil, err
	}
	return res, nil
}
