package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nandanugg/opstate/config"
	"github.com/nandanugg/opstate/module/core"
)

func main() {
	cfg := config.Load()

	workers := flag.Int("workers", cfg.ClassifierWorkers, "number of sessions classified concurrently")
	flag.Parse()
	cfg.ClassifierWorkers = *workers

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

	coreModule, err := core.Build(db, amqpConn, nil, opts)
	if err != nil {
		log.Fatalf("core module: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := coreModule.SessionSvc.ClassifyPending(ctx)
	if err != nil {
		log.Fatalf("backfill: %v", err)
	}

	for id, reason := range report.Failed {
		log.Printf("session %s failed: %s", id, reason)
	}
	log.Printf("backfill done: %d total, %d classified, %d failed", report.Total, report.Classified, len(report.Failed))

	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}
