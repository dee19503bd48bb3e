package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"app/internal/config"

	"cloud.google.com/go/pubsub"
)

// Publisher defines an interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}

// Event is the lifecycle notification emitted after terminal generation
// and billing states. Downstream consumers (notification senders,
// analytics) subscribe to these; the API never depends on them.
type Event struct {
	Type       string    `json:"type"` // generation.completed | generation.failed | credits.purchased
	UserID     string    `json:"user_id"`
	RequestID  string    `json:"request_id,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Credits    int       `json:"credits,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Marshal renders the event as its wire payload.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPublisher creates a new PubSubPublisher using the GCP project from config.
func NewPublisher(ctx context.Context, cfg *config.Config) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish sends the payload to the given Pub/Sub topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	t := p.client.Topic(topic)
	result := t.Publish(ctx, &pubsub.Message{Data: payload})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}
