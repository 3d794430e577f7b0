package config

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nandanugg/opstate/module/core/domain"
)

type geofenceEntry struct {
	ID      string          `yaml:"id" validate:"required"`
	Name    string          `yaml:"name" validate:"required"`
	Kind    string          `yaml:"kind" validate:"required,oneof=park workshop"`
	Polygon []domain.Vertex `yaml:"polygon" validate:"min=3"`
}

type geofenceFile struct {
	Geofences []geofenceEntry `yaml:"geofences" validate:"dive"`
}

// GeofenceCatalog serves zones from a YAML file instead of the geofences table.
type GeofenceCatalog struct {
	byKind map[domain.GeofenceKind][]domain.Geofence
}

func LoadGeofenceCatalog(path string) (*GeofenceCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geofences: %w", err)
	}

	var f geofenceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse geofences: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("validate geofences: %w", err)
	}

	c := &GeofenceCatalog{byKind: make(map[domain.GeofenceKind][]domain.Geofence)}
	for _, e := range f.Geofences {
		kind := domain.GeofenceKind(e.Kind)
		c.byKind[kind] = append(c.byKind[kind], domain.Geofence{
			ID:      e.ID,
			Name:    e.Name,
			Kind:    kind,
			Polygon: e.Polygon,
		})
	}
	return c, nil
}

func (c *GeofenceCatalog) ListGeofences(_ context.Context, kind domain.GeofenceKind) ([]domain.Geofence, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown geofence kind %q", kind)
	}
	return c.byKind[kind], nil
}
