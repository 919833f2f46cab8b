package broadcast

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/AtharvaShastrakar/orangeChat/domain/chat"
	"github.com/AtharvaShastrakar/orangeChat/events"
)

// BroadcastModule is an EventConsumerModule that turns message events from
// the bus into per-room push events on the hub.
type BroadcastModule struct {
	hub       *Hub
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.EventConsumerModule = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule(bufferSize int) *BroadcastModule {
	return &BroadcastModule{
		hub: NewHub(bufferSize),
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start initializes the module and starts the hub.
func (m *BroadcastModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	log.Println("[broadcast] Module started - push hub running")
	return nil
}

// Stop shuts down the module.
func (m *BroadcastModule) Stop(_ context.Context) error {
	count := m.hub.SubscriptionCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	log.Printf("[broadcast] Module stopped - %d subscriptions were open", count)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"subscriptions": m.hub.SubscriptionCount(),
			"rooms":         m.hub.RoomCount(),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageCreatedV1, m.handleMessageCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageDeletedV1, m.handleMessageDeleted, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageDeleted consumer: %w", err)
	}

	log.Println("[broadcast] Registered event consumers: MessageCreated, MessageDeleted")
	return nil
}

func (m *BroadcastModule) handleMessageCreated(_ context.Context, event events.MessageCreatedEvent, _ *mono.Msg) error {
	m.hub.Publish(event.RoomID, CreatedEvent(event))
	return nil
}

func (m *BroadcastModule) handleMessageDeleted(_ context.Context, event events.MessageDeletedEvent, _ *mono.Msg) error {
	m.hub.Publish(event.RoomID, DeletedEvent(event))
	return nil
}

// CreatedEvent converts a bus event into a push event.
func CreatedEvent(event events.MessageCreatedEvent) chat.RowEvent {
	return chat.RowEvent{
		Kind: chat.EventCreated,
		Message: chat.Message{
			ID:        event.MessageID,
			RoomID:    event.RoomID,
			UserID:    event.UserID,
			Content:   event.Content,
			CreatedAt: event.CreatedAt,
		},
	}
}

// DeletedEvent converts a bus event into a push event.
func DeletedEvent(event events.MessageDeletedEvent) chat.RowEvent {
	return chat.RowEvent{
		Kind: chat.EventDeleted,
		Message: chat.Message{
			ID:     event.MessageID,
			RoomID: event.RoomID,
			UserID: event.UserID,
		},
	}
}

// GetHub returns the hub for the API module to subscribe through.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
