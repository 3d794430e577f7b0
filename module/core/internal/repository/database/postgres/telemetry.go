package postgres

import (
	"context"
	"database/sql"

	"github.com/nandanugg/opstate/module/core/domain"
	"github.com/nandanugg/opstate/module/core/internal/repository/database"
)

var _ database.TelemetryRepository = (*TelemetryRepo)(nil)

type TelemetryRepo struct {
	db *sql.DB
}

func NewTelemetryRepo(db *sql.DB) *TelemetryRepo {
	return &TelemetryRepo{db: db}
}

func (r *TelemetryRepo) GetSessionPoints(ctx context.Context, sessionID string) ([]domain.TelemetryPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ts, latitude, longitude, speed, beacon_on FROM telemetry_points WHERE session_id = $1 ORDER BY ts ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.TelemetryPoint
	for rows.Next() {
		var p domain.TelemetryPoint
		if err := rows.Scan(&p.Timestamp, &p.Lat, &p.Lon, &p.Speed, &p.BeaconOn); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (r *TelemetryRepo) ListSessionsWithoutSegments(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT t.session_id FROM telemetry_points t WHERE NOT EXISTS (SELECT 1 FROM state_segments s WHERE s.session_id = t.session_id) ORDER BY t.session_id`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		results = append(results, id)
	}
	return results, rows.Err()
}
