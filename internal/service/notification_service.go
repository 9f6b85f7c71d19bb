package service

import (
	"context"
	"errors"
	"fmt"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/identity"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// NotificationService turns quotation events into inbox entries. Each event
// is applied at most once, keyed by its event id.
type NotificationService struct {
	repo   store.Repository
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo store.Repository) *NotificationService {
	return &NotificationService{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

func notify(role identity.Role, recipientID int64, kind string, requestID int64, format string, args ...interface{}) models.Notification {
	return models.Notification{
		RecipientRole:      string(role),
		RecipientID:        recipientID,
		Kind:               kind,
		QuotationRequestID: requestID,
		Message:            fmt.Sprintf(format, args...),
	}
}

// deliver claims the event and writes the notifications produced by build in
// the same transaction. A failed build releases the claim with the rollback.
func (ns *NotificationService) deliver(ctx context.Context, event models.BaseEvent, build func(ctx context.Context, repo store.Repository) ([]models.Notification, error)) error {
	ctx, span := util.StartSpan(ctx, "NotificationService."+event.EventType)
	var err error
	defer func() { util.EndSpan(span, err) }()

	var written []models.Notification
	err = ns.repo.WithTx(ctx, func(ctx context.Context, repo store.Repository) error {
		claimed, err := repo.ClaimEvent(ctx, event.EventID, event.EventType)
		if err != nil {
			return fmt.Errorf("failed to claim event: %w", err)
		}
		if !claimed {
			ns.logger.Info("Event already processed", zap.String("event_id", event.EventID))
			return nil
		}

		notifications, err := build(ctx, repo)
		if err != nil {
			return err
		}
		for i := range notifications {
			if err := repo.CreateNotification(ctx, &notifications[i]); err != nil {
				return fmt.Errorf("failed to create notification: %w", err)
			}
		}
		written = notifications
		return nil
	})
	if err != nil {
		return err
	}

	for _, n := range written {
		util.NotificationsWrittenTotal.WithLabelValues(n.Kind).Inc()
	}
	if len(written) > 0 {
		ns.logger.Info("Notifications written",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
			zap.Int("count", len(written)))
	}
	return nil
}

// HandleRequestCreated tells every active distributor about a new request
func (ns *NotificationService) HandleRequestCreated(ctx context.Context, event *models.QuotationRequestCreatedEvent) error {
	return ns.deliver(ctx, event.BaseEvent, func(ctx context.Context, repo store.Repository) ([]models.Notification, error) {
		ids, err := repo.ListActiveDistributorIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list distributors: %w", err)
		}
		out := make([]models.Notification, 0, len(ids))
		for _, id := range ids {
			out = append(out, notify(identity.RoleDistributor, id, models.NotificationNewRequest, event.QuotationRequestID,
				"New quotation request #%d with %d item(s) is open for offers", event.QuotationRequestID, event.ItemCount))
		}
		return out, nil
	})
}

// HandleResponse tells the customer that an offer arrived or changed
func (ns *NotificationService) HandleResponse(ctx context.Context, event *models.QuotationResponseEvent) error {
	return ns.deliver(ctx, event.BaseEvent, func(ctx context.Context, repo store.Repository) ([]models.Notification, error) {
		kind, verb := models.NotificationResponseReceived, "submitted"
		if event.EventType == models.EventTypeQuotationResponseUpdated {
			kind, verb = models.NotificationResponseUpdated, "revised"
		}
		name := fmt.Sprintf("Distributor #%d", event.DistributorID)
		if d, err := repo.GetDistributorByID(ctx, event.DistributorID); err == nil {
			name = d.Name
		}
		return []models.Notification{
			notify(identity.RoleCustomer, event.CustomerID, kind, event.QuotationRequestID,
				"%s %s an offer of %s for quotation request #%d", name, verb, event.TotalPrice.StringFixed(2), event.QuotationRequestID),
		}, nil
	})
}

// HandleAccepted tells the winning distributor and closes out everyone else
func (ns *NotificationService) HandleAccepted(ctx context.Context, event *models.QuotationAcceptedEvent) error {
	return ns.deliver(ctx, event.BaseEvent, func(context.Context, store.Repository) ([]models.Notification, error) {
		out := []models.Notification{
			notify(identity.RoleDistributor, event.DistributorID, models.NotificationQuoteAccepted, event.QuotationRequestID,
				"Your offer on quotation request #%d was accepted, order #%d (%s)", event.QuotationRequestID, event.OrderID, event.TotalAmount.StringFixed(2)),
		}
		for _, id := range event.OtherDistributorIDs {
			out = append(out, notify(identity.RoleDistributor, id, models.NotificationRequestClosed, event.QuotationRequestID,
				"Quotation request #%d was awarded to another distributor", event.QuotationRequestID))
		}
		return out, nil
	})
}

// HandleCancelled tells every responder the request was withdrawn
func (ns *NotificationService) HandleCancelled(ctx context.Context, event *models.QuotationCancelledEvent) error {
	return ns.deliver(ctx, event.BaseEvent, func(context.Context, store.Repository) ([]models.Notification, error) {
		out := make([]models.Notification, 0, len(event.DistributorIDs))
		for _, id := range event.DistributorIDs {
			out = append(out, notify(identity.RoleDistributor, id, models.NotificationRequestCancelled, event.QuotationRequestID,
				"Quotation request #%d was cancelled by the customer", event.QuotationRequestID))
		}
		return out, nil
	})
}

// ListNotifications returns the caller's inbox, newest first
func (ns *NotificationService) ListNotifications(ctx context.Context, caller identity.Caller) ([]models.Notification, error) {
	notifications, err := ns.repo.ListNotifications(ctx, string(caller.Role), caller.ID)
	if err != nil {
		ns.logger.Error("Failed to list notifications", zap.Int64("caller_id", caller.ID), zap.Error(err))
		return nil, apperr.Internal("list notifications", err)
	}
	return notifications, nil
}

// MarkNotificationRead marks one of the caller's notifications as read
func (ns *NotificationService) MarkNotificationRead(ctx context.Context, id int64, caller identity.Caller) error {
	err := ns.repo.MarkNotificationRead(ctx, id, string(caller.Role), caller.ID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("notification", id)
	}
	if err != nil {
		ns.logger.Error("Failed to mark notification read", zap.Int64("notification_id", id), zap.Error(err))
		return apperr.Internal("mark notification read", err)
	}
	return nil
}
