package worker

import (
	"context"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/service"
	"marketplace-service/internal/util"

	"github.com/segmentio/kafka-go"
)

// MessageSource delivers messages to a handler until ctx ends.
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// NotificationWorker consumes quotation events and fills party inboxes
type NotificationWorker struct {
	source       MessageSource
	eventHandler *broker.EventHandler
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(source MessageSource, notifications *service.NotificationService) *NotificationWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnRequestCreated(notifications.HandleRequestCreated)
	eventHandler.OnResponse(notifications.HandleResponse)
	eventHandler.OnAccepted(notifications.HandleAccepted)
	eventHandler.OnCancelled(notifications.HandleCancelled)

	return &NotificationWorker{
		source:       source,
		eventHandler: eventHandler,
	}
}

// Handle processes one message; exposed for replay tooling and tests
func (w *NotificationWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	util.GetLogger().Info("Starting notification worker")
	return w.source.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	util.GetLogger().Info("Stopping notification worker")
	return w.source.Close()
}
