package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/opstate/config"
	"github.com/nandanugg/opstate/module/core"
)

func main() {
	cfg := config.Load()

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		log.Fatalf("tuning: %v", err)
	}

	db, err := config.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := config.MigrateUp(db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	amqpConn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer func() { _ = amqpConn.Close() }()

	mqttClient, err := config.NewMQTT(cfg)
	if err != nil {
		log.Fatalf("mqtt: %v", err)
	}
	defer mqttClient.Disconnect(250)

	opts := core.Options{
		GeofenceServiceURL: cfg.GeofenceServiceURL,
		Session:            cfg.SessionConfig(tuning),
	}
	if cfg.GeofenceFile != "" {
		catalog, err := config.LoadGeofenceCatalog(cfg.GeofenceFile)
		if err != nil {
			log.Fatalf("geofence catalog: %v", err)
		}
		opts.Catalog = catalog
	}

	coreModule, err := core.Build(db, amqpConn, mqttClient, opts)
	if err != nil {
		log.Fatalf("core module: %v", err)
	}

	if err := coreModule.StartSubscribers(); err != nil {
		log.Fatalf("start subscribers: %v", err)
	}

	r := gin.Default()

	health := config.NewHealthChecker(db, amqpConn, mqttClient, cfg.GeofenceServiceURL)
	health.Register(r)

	coreModule.RegisterRoutes(&r.RouterGroup)

	log.Printf("listening on :%s", cfg.HTTPPort)
	if err := r.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatalf("server: %v", err)
	}
}
