package core

import (
	"database/sql"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"

	handler "github.com/nandanugg/opstate/module/core/internal/handler/http"
	"github.com/nandanugg/opstate/module/core/internal/handler/subscriber"
	"github.com/nandanugg/opstate/module/core/internal/repository/database"
	"github.com/nandanugg/opstate/module/core/internal/repository/database/postgres"
	"github.com/nandanugg/opstate/module/core/internal/repository/geoservice"
	"github.com/nandanugg/opstate/module/core/internal/repository/publisher/rabbitmq"
	"github.com/nandanugg/opstate/module/core/service"
)

type Options struct {
	// GeofenceServiceURL enables the remote geofencing lookup when set.
	GeofenceServiceURL string
	// Catalog overrides the Postgres geofence table, e.g. with a file catalog.
	Catalog database.GeofenceRepository
	Session service.SessionConfig
}

type Module struct {
	SessionSvc *service.SessionService
	handler    *handler.SessionHandler
	subscriber *subscriber.ClassifySubscriber
}

// Build wires the module. mqttClient may be nil for batch binaries that do
// not listen for classify commands.
func Build(db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client, opts Options) (*Module, error) {
	telemetryRepo := postgres.NewTelemetryRepo(db)
	segmentRepo := postgres.NewSegmentRepo(db)

	var catalog database.GeofenceRepository = postgres.NewGeofenceRepo(db)
	if opts.Catalog != nil {
		catalog = opts.Catalog
	}

	diagPub, err := rabbitmq.NewDiagnosticPublisher(amqpConn)
	if err != nil {
		return nil, fmt.Errorf("diagnostic publisher: %w", err)
	}

	var remote service.GeofenceLookup
	if opts.GeofenceServiceURL != "" {
		remote = geoservice.NewClient(opts.GeofenceServiceURL, nil)
	}

	sessionSvc := service.NewSessionService(telemetryRepo, segmentRepo, catalog, diagPub, remote, opts.Session)

	m := &Module{
		SessionSvc: sessionSvc,
		handler:    handler.NewSessionHandler(sessionSvc),
	}
	if mqttClient != nil {
		m.subscriber = subscriber.NewClassifySubscriber(mqttClient, sessionSvc)
	}
	return m, nil
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.handler.Register(r)
}

func (m *Module) StartSubscribers() error {
	if m.subscriber == nil {
		return nil
	}
	return m.subscriber.Start()
}
