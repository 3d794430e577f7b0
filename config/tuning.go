package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nandanugg/opstate/module/core/service"
)

// Tuning holds the stop detector parameters. Omitted fields keep their defaults.
type Tuning struct {
	SlowSpeed       float64 `yaml:"slow_speed" validate:"gt=0"`
	MinDwellSeconds int     `yaml:"min_dwell_seconds" validate:"gt=0"`
	MaxRadiusKm     float64 `yaml:"max_radius_km" validate:"gt=0"`
}

func DefaultTuning() Tuning {
	return Tuning{
		SlowSpeed:       service.DefaultSlowSpeed,
		MinDwellSeconds: int(service.DefaultMinDwell / time.Second),
		MaxRadiusKm:     service.DefaultMaxRadiusKm,
	}
}

// LoadTuning reads a YAML tuning file. An empty path returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning: %w", err)
	}
	if err := validator.New().Struct(t); err != nil {
		return Tuning{}, fmt.Errorf("validate tuning: %w", err)
	}
	return t, nil
}

func (t Tuning) StopWindow() service.StopWindowConfig {
	return service.StopWindowConfig{
		SlowSpeed:   t.SlowSpeed,
		MinDwell:    time.Duration(t.MinDwellSeconds) * time.Second,
		MaxRadiusKm: t.MaxRadiusKm,
	}
}

// SessionConfig combines tuning with the environment settings of the run.
func (c *Config) SessionConfig(t Tuning) service.SessionConfig {
	return service.SessionConfig{
		Stop: t.StopWindow(),
		Index: service.GeofenceIndexConfig{
			RemoteTimeout:  c.GeofenceTimeout,
			RemoteCooldown: c.GeofenceCooldown,
		},
		Workers: c.ClassifierWorkers,
	}
}
