package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/nandanugg/opstate/module/core/domain"
	"github.com/nandanugg/opstate/module/core/internal/repository/database"
)

var _ database.SegmentRepository = (*SegmentRepo)(nil)

type SegmentRepo struct {
	db    *sql.DB
	newID func() string
}

func NewSegmentRepo(db *sql.DB) *SegmentRepo {
	return &SegmentRepo{db: db, newID: uuid.NewString}
}

// WithSessionLock holds a session-level advisory lock on a dedicated
// connection while fn runs, so classification runs for the same session in
// other processes wait for each other. fn uses the pool for its own queries.
func (r *SegmentRepo) WithSessionLock(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("lock connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtext($1))`, sessionID); err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	defer func() {
		_, err := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock(hashtext($1))`, sessionID)
		if err != nil {
			log.Printf("unlock session %s: %v", sessionID, err)
			// Discard the connection; closing it server side releases the lock.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	return fn(ctx)
}

func (r *SegmentRepo) Persist(ctx context.Context, seg domain.StateSegment) (string, error) {
	id := r.newID()

	var beacon sql.NullBool
	if seg.BeaconState != nil {
		beacon = sql.NullBool{Bool: *seg.BeaconState, Valid: true}
	}
	var fenceID, fenceName sql.NullString
	if seg.GeofenceRef != nil {
		fenceID = sql.NullString{String: seg.GeofenceRef.ID, Valid: true}
		fenceName = sql.NullString{String: seg.GeofenceRef.Name, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO state_segments (id, session_id, state_kind, start_time, end_time, duration_seconds, start_lat, start_lon, end_lat, end_lon, beacon_state, geofence_id, geofence_name, transition) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, seg.SessionID, int(seg.StateKind), seg.StartTime, seg.EndTime, seg.DurationSeconds,
		seg.StartPos.Lat, seg.StartPos.Lon, seg.EndPos.Lat, seg.EndPos.Lon,
		beacon, fenceID, fenceName, seg.Transition,
	)
	if err != nil {
		return "", fmt.Errorf("insert segment: %w", err)
	}
	return id, nil
}

func (r *SegmentRepo) HasSegments(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM state_segments WHERE session_id = $1)`,
		sessionID,
	).Scan(&exists)
	return exists, err
}

func (r *SegmentRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.StateSegment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, state_kind, start_time, end_time, duration_seconds, start_lat, start_lon, end_lat, end_lon, beacon_state, geofence_id, geofence_name, transition FROM state_segments WHERE session_id = $1 ORDER BY start_time ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.StateSegment
	for rows.Next() {
		var (
			seg       domain.StateSegment
			kind      int
			beacon    sql.NullBool
			fenceID   sql.NullString
			fenceName sql.NullString
		)
		if err := rows.Scan(&seg.ID, &seg.SessionID, &kind, &seg.StartTime, &seg.EndTime, &seg.DurationSeconds,
			&seg.StartPos.Lat, &seg.StartPos.Lon, &seg.EndPos.Lat, &seg.EndPos.Lon,
			&beacon, &fenceID, &fenceName, &seg.Transition); err != nil {
			return nil, err
		}
		seg.StateKind = domain.StateKind(kind)
		if beacon.Valid {
			b := beacon.Bool
			seg.BeaconState = &b
		}
		if fenceID.Valid {
			seg.GeofenceRef = &domain.GeofenceRef{ID: fenceID.String, Name: fenceName.String}
		}
		results = append(results, seg)
	}
	return results, rows.Err()
}
