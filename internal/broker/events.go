package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func requestKey(requestID int64) string {
	return fmt.Sprintf("quotation-request-%d", requestID)
}

// PublishQuotationRequestCreated publishes QuotationRequestCreated event
func (ep *EventPublisher) PublishQuotationRequestCreated(ctx context.Context, event *models.QuotationRequestCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.QuotationRequestID), event)
}

// PublishQuotationResponse publishes a submitted or updated response event
func (ep *EventPublisher) PublishQuotationResponse(ctx context.Context, event *models.QuotationResponseEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.QuotationRequestID), event)
}

// PublishQuotationAccepted publishes QuotationAccepted event
func (ep *EventPublisher) PublishQuotationAccepted(ctx context.Context, event *models.QuotationAcceptedEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.QuotationRequestID), event)
}

// PublishQuotationCancelled publishes QuotationCancelled event
func (ep *EventPublisher) PublishQuotationCancelled(ctx context.Context, event *models.QuotationCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.QuotationRequestID), event)
}

// EventHandler routes incoming events to registered handlers
type EventHandler struct {
	onRequestCreated func(context.Context, *models.QuotationRequestCreatedEvent) error
	onResponse       func(context.Context, *models.QuotationResponseEvent) error
	onAccepted       func(context.Context, *models.QuotationAcceptedEvent) error
	onCancelled      func(context.Context, *models.QuotationCancelledEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

func (eh *EventHandler) OnRequestCreated(handler func(context.Context, *models.QuotationRequestCreatedEvent) error) {
	eh.onRequestCreated = handler
}

// OnResponse receives both submitted and updated responses
func (eh *EventHandler) OnResponse(handler func(context.Context, *models.QuotationResponseEvent) error) {
	eh.onResponse = handler
}

func (eh *EventHandler) OnAccepted(handler func(context.Context, *models.QuotationAcceptedEvent) error) {
	eh.onAccepted = handler
}

func (eh *EventHandler) OnCancelled(handler func(context.Context, *models.QuotationCancelledEvent) error) {
	eh.onCancelled = handler
}

func decodeAndHandle[T any](ctx context.Context, raw []byte, handler func(context.Context, *T) error) error {
	if handler == nil {
		return nil
	}
	var event T
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", event, err)
	}
	return handler(ctx, &event)
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeQuotationRequestCreated:
		return decodeAndHandle(ctx, msg.Value, eh.onRequestCreated)
	case models.EventTypeQuotationResponseSubmitted, models.EventTypeQuotationResponseUpdated:
		return decodeAndHandle(ctx, msg.Value, eh.onResponse)
	case models.EventTypeQuotationAccepted:
		return decodeAndHandle(ctx, msg.Value, eh.onAccepted)
	case models.EventTypeQuotationCancelled:
		return decodeAndHandle(ctx, msg.Value, eh.onCancelled)
	default:
		logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
