package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"

	"github.com/nandanugg/opstate/module/core/domain"
	"github.com/nandanugg/opstate/module/core/internal/repository/database"
)

var _ database.GeofenceRepository = (*GeofenceRepo)(nil)

type GeofenceRepo struct {
	db *sql.DB
}

func NewGeofenceRepo(db *sql.DB) *GeofenceRepo {
	return &GeofenceRepo{db: db}
}

// ListGeofences loads every zone of kind. Polygons are stored as a JSON ring
// of [lon, lat] pairs; a ring that fails to decode is kept empty so the zone
// simply never matches.
func (r *GeofenceRepo) ListGeofences(ctx context.Context, kind domain.GeofenceKind) ([]domain.Geofence, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, kind, polygon FROM geofences WHERE kind = $1 ORDER BY id`,
		string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.Geofence
	for rows.Next() {
		var (
			g    domain.Geofence
			k    string
			ring []byte
		)
		if err := rows.Scan(&g.ID, &g.Name, &k, &ring); err != nil {
			return nil, err
		}
		g.Kind = domain.GeofenceKind(k)
		g.Polygon = decodeRing(ring)
		if g.Polygon == nil {
			log.Printf("geofence %s: undecodable polygon", g.ID)
		}
		results = append(results, g)
	}
	return results, rows.Err()
}

func decodeRing(raw []byte) []domain.Vertex {
	var pairs [][]float64
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil
	}
	ring := make([]domain.Vertex, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			return nil
		}
		ring = append(ring, domain.Vertex{Lon: p[0], Lat: p[1]})
	}
	return ring
}
