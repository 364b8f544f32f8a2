package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/services"
)

func newTestTopic(t *testing.T) (*pubsub.Topic, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	t.Cleanup(topic.Stop)
	return topic, srv
}

func TestPubSubOrderEventPublisherPublishesMessage(t *testing.T) {
	topic, srv := newTestTopic(t)

	publisher, err := NewPubSubOrderEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventPublisher: %v", err)
	}

	occurredAt := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	event := services.OrderEvent{
		Type:           "order.status.changed",
		OrderID:        "ord_test",
		UserID:         "user-1",
		PreviousStatus: domain.OrderStatusConfirmed,
		CurrentStatus:  domain.OrderStatusShipped,
		Total:          649,
		ActorID:        "ops",
		OccurredAt:     occurredAt,
		Metadata:       map[string]any{"reason": "packed"},
	}

	if err := publisher.PublishOrderEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload OrderEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != "ord_test" || payload.CurrentStatus != "shipped" || payload.PreviousStatus != "confirmed" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.Total != 649 || !payload.OccurredAt.Equal(occurredAt) || payload.Metadata["reason"] != "packed" {
		t.Fatalf("unexpected payload %#v", payload)
	}

	attrs := messages[0].Attributes
	if attrs["type"] != "order.status.changed" || attrs["orderId"] != "ord_test" || attrs["status"] != "shipped" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
	if attrs["occurredAt"] != "1746522000000" {
		t.Fatalf("unexpected occurredAt attribute %q", attrs["occurredAt"])
	}
}

func TestNewPubSubOrderEventPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubOrderEventPublisher(nil); err == nil {
		t.Fatalf("expected error without topic")
	}
}
