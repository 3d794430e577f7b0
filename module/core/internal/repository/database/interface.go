package database

import (
	"context"

	"github.com/nandanugg/opstate/module/core/domain"
)

type TelemetryRepository interface {
	GetSessionPoints(ctx context.Context, sessionID string) ([]domain.TelemetryPoint, error)
	ListSessionsWithoutSegments(ctx context.Context) ([]string, error)
}

// SegmentRepository is the persistence port for finalized segments. Persist
// returns an opaque identifier and performs no deduplication; callers run the
// check-then-persist sequence of a session inside WithSessionLock.
type SegmentRepository interface {
	WithSessionLock(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error
	Persist(ctx context.Context, seg domain.StateSegment) (string, error)
	HasSegments(ctx context.Context, sessionID string) (bool, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.StateSegment, error)
}

type GeofenceRepository interface {
	ListGeofences(ctx context.Context, kind domain.GeofenceKind) ([]domain.Geofence, error)
}
