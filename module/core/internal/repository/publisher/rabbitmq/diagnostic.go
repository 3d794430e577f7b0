package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nandanugg/opstate/module/core/domain"
	"github.com/nandanugg/opstate/module/core/internal/repository/publisher"
)

var _ publisher.DiagnosticPublisher = (*DiagnosticPublisher)(nil)

const (
	ExchangeName = "fleet.events"
	QueueName    = "state_transition_warnings"
)

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type DiagnosticPublisher struct {
	ch channel
}

func NewDiagnosticPublisher(conn *amqp.Connection) (*DiagnosticPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(QueueName, "", ExchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &DiagnosticPublisher{ch: ch}, nil
}

type diagnosticMessage struct {
	Event      string        `json:"event"`
	SessionID  string        `json:"session_id"`
	OldState   int           `json:"old_state"`
	NewState   int           `json:"new_state"`
	Transition string        `json:"transition"`
	Point      pointLocation `json:"point"`
	Timestamp  int64         `json:"timestamp"`
}

type pointLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	BeaconOn  bool    `json:"beacon_on"`
}

const invalidTransitionEvent = "invalid_transition"

func (p *DiagnosticPublisher) PublishInvalidTransition(ctx context.Context, d *domain.InvalidTransition) error {
	msg := diagnosticMessage{
		Event:      invalidTransitionEvent,
		SessionID:  d.SessionID,
		OldState:   int(d.OldState),
		NewState:   int(d.NewState),
		Transition: d.Transition,
		Point: pointLocation{
			Latitude:  d.Point.Lat,
			Longitude: d.Point.Lon,
			Speed:     d.Point.Speed,
			BeaconOn:  d.Point.BeaconOn,
		},
		Timestamp: d.Point.Timestamp.Unix(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal diagnostic: %w", err)
	}

	return p.ch.PublishWithContext(ctx, ExchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
