package pubsub

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"app/internal/config"

	ps "cloud.google.com/go/pubsub"
)

func TestNewPublisherInvalidProject(t *testing.T) {
	cfg := &config.Config{GCPProjectID: ""}
	if _, err := NewPublisher(context.Background(), cfg); err == nil {
		t.Fatal("expected error when project ID is empty")
	}
}

func TestEventMarshal(t *testing.T) {
	e := Event{
		Type:       "generation.completed",
		UserID:     "user-1",
		RequestID:  "req-1",
		Kind:       "image",
		Credits:    1,
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	payload, err := e.Marshal()
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshaling payload: %v", err)
	}
	if decoded != e {
		t.Fatalf("round-trip mismatch: %+v vs %+v", decoded, e)
	}
}

func TestPublishWithEmulator(t *testing.T) {
	emulator := os.Getenv("PUBSUB_EMULATOR_HOST")
	if emulator == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	cfg := &config.Config{GCPProjectID: "test-project"}
	pub, err := NewPublisher(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create PubSubPublisher: %v", err)
	}

	topicName := "generation-events-test"
	topic, err := pub.client.CreateTopic(ctx, topicName)
	if err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}
	sub, err := pub.client.CreateSubscription(ctx, "generation-events-test-sub", ps.SubscriptionConfig{Topic: topic})
	if err != nil {
		t.Fatalf("failed to create subscription: %v", err)
	}

	event := Event{Type: "generation.completed", UserID: "user-1", OccurredAt: time.Now().UTC()}
	payload, _ := event.Marshal()
	msgID, err := pub.Publish(ctx, topicName, payload)
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if msgID == "" {
		t.Fatal("expected non-empty message ID")
	}

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c := make(chan []byte, 1)
	go func() {
		sub.Receive(recvCtx, func(ctx context.Context, m *ps.Message) {
			c <- m.Data
			m.Ack()
			cancel()
		})
	}()

	select {
	case data := <-c:
		var got Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshaling received event: %v", err)
		}
		if got.Type != "generation.completed" || got.UserID != "user-1" {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message from emulator subscription")
	}
}
