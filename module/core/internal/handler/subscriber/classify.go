package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nandanugg/opstate/module/core/domain"
	"github.com/nandanugg/opstate/module/core/service"
)

const topicPattern = "/fleet/session/+/classify"

type sessionService interface {
	ClassifySession(ctx context.Context, sessionID string) (*domain.ClassificationResult, error)
}

type classifyMessage struct {
	SessionID string `json:"session_id"`
}

// ClassifySubscriber turns classify commands published by the correlation
// collaborator into single-session classification runs.
type ClassifySubscriber struct {
	client     mqtt.Client
	sessionSvc sessionService
}

func NewClassifySubscriber(client mqtt.Client, sessionSvc sessionService) *ClassifySubscriber {
	return &ClassifySubscriber{
		client:     client,
		sessionSvc: sessionSvc,
	}
}

func (s *ClassifySubscriber) Start() error {
	token := s.client.Subscribe(topicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *ClassifySubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw classifyMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Printf("invalid classify message: %v", err)
		return
	}

	if err := validateClassifyMessage(&raw, msg.Topic()); err != nil {
		log.Printf("validation error: %v", err)
		return
	}

	res, err := s.sessionSvc.ClassifySession(context.Background(), raw.SessionID)
	if errors.Is(err, service.ErrAlreadyClassified) {
		log.Printf("session %s already classified, skipping", raw.SessionID)
		return
	}
	if err != nil {
		log.Printf("classify session error: %v", err)
		return
	}

	log.Printf("session %s: %d segments, %d invalid transitions", res.SessionID, len(res.Segments), len(res.InvalidTransitions))
}

// validateClassifyMessage also checks that the payload matches the session
// named in the topic.
func validateClassifyMessage(msg *classifyMessage, topic string) error {
	if msg.SessionID == "" {
		return fmt.Errorf("session_id: required")
	}
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) == 4 && parts[2] != msg.SessionID {
		return fmt.Errorf("session_id: %q does not match topic %q", msg.SessionID, topic)
	}
	return nil
}
