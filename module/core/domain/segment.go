package domain

import (
	"fmt"
	"time"
)

type StateKind int

// Codes are persisted and appear in transition tags, so they must not be renumbered.
const (
	StateNone               StateKind = -1
	StateWorkshop           StateKind = 0
	StateParkedOperational  StateKind = 1
	StateEmergencyDeparture StateKind = 2
	StateOnScene            StateKind = 3
	// StateEndOfResponse is reported downstream but nothing in the classifier
	// enters or leaves it.
	StateEndOfResponse StateKind = 4
	StateReturning     StateKind = 5
)

func (k StateKind) String() string {
	switch k {
	case StateNone:
		return "none"
	case StateWorkshop:
		return "workshop"
	case StateParkedOperational:
		return "parked_operational"
	case StateEmergencyDeparture:
		return "emergency_departure"
	case StateOnScene:
		return "on_scene"
	case StateEndOfResponse:
		return "end_of_response"
	case StateReturning:
		return "returning"
	default:
		return fmt.Sprintf("state(%d)", int(k))
	}
}

// TransitionTag renders the audit tag stored with each segment, e.g. "2 → 3".
func TransitionTag(from, to StateKind, unexpected bool) string {
	if unexpected {
		return fmt.Sprintf("%d → %d (unexpected)", from, to)
	}
	return fmt.Sprintf("%d → %d", from, to)
}

type StateSegment struct {
	ID              string       `json:"id,omitempty"`
	SessionID       string       `json:"session_id"`
	StateKind       StateKind    `json:"state_kind"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
	DurationSeconds float64      `json:"duration_seconds"`
	StartPos        Position     `json:"start_pos"`
	EndPos          Position     `json:"end_pos"`
	BeaconState     *bool        `json:"beacon_state,omitempty"`
	GeofenceRef     *GeofenceRef `json:"geofence,omitempty"`
	Transition      string       `json:"transition"`
}

// InvalidTransition records a forced recovery into ParkedOperational.
type InvalidTransition struct {
	SessionID  string         `json:"session_id"`
	OldState   StateKind      `json:"old_state"`
	NewState   StateKind      `json:"new_state"`
	Point      TelemetryPoint `json:"point"`
	Transition string         `json:"transition"`
}

type ClassificationResult struct {
	SessionID          string              `json:"session_id"`
	Segments           []StateSegment      `json:"segments"`
	InvalidTransitions []InvalidTransition `json:"invalid_transitions"`
}

type BatchReport struct {
	Total      int               `json:"total"`
	Classified int               `json:"classified"`
	Failed     map[string]string `json:"failed"`
}
