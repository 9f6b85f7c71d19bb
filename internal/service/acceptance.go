package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func acceptLockKey(requestID int64) string {
	return fmt.Sprintf("quotation-accept:%d", requestID)
}

// AcceptQuotation turns responseID into an order for customerID and completes
// the request. Order lines copy the quoted prices.
func (s *QuotationService) AcceptQuotation(ctx context.Context, responseID, customerID int64) (_ *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.AcceptQuotation",
		attribute.Int64("quotation_response_id", responseID),
		attribute.Int64("customer_id", customerID))
	defer func() { util.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		util.QuotationAcceptLatency.Observe(time.Since(start).Seconds())
	}()

	resp, err := s.repo.GetQuotationResponseByID(ctx, responseID)
	if err != nil {
		return nil, s.fail("accept", notFound(err, "quotation response", responseID))
	}
	req, err := s.repo.GetQuotationRequestByID(ctx, resp.QuotationRequestID)
	if err != nil {
		return nil, s.fail("accept", notFound(err, "quotation request", resp.QuotationRequestID))
	}
	if req.CustomerID != customerID {
		return nil, s.fail("accept", apperr.Forbidden("quotation request belongs to another customer"))
	}

	if s.locker != nil {
		key := acceptLockKey(req.ID)
		token, acquired, lockErr := s.locker.AcquireLock(ctx, key, s.cfg.AcceptLockTTL)
		switch {
		case lockErr != nil:
			// the transaction below still serializes acceptance
			s.logger.Warn("Accept lock unavailable", zap.Int64("quotation_request_id", req.ID), zap.Error(lockErr))
		case !acquired:
			return nil, s.fail("accept", apperr.InvalidOperation("quotation request is already being accepted"))
		default:
			defer func() {
				if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
					s.logger.Warn("Failed to release accept lock", zap.Int64("quotation_request_id", req.ID), zap.Error(err))
				}
			}()
		}
	}

	var (
		order  *models.Order
		others []int64
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo store.Repository) error {
		locked, err := repo.LockQuotationRequest(ctx, req.ID)
		if err != nil {
			return notFound(err, "quotation request", req.ID)
		}
		if locked.CustomerID != customerID {
			return apperr.Forbidden("quotation request belongs to another customer")
		}
		if locked.Status != models.QuotationStatusPending {
			return apperr.InvalidOperation(msgNotPending)
		}

		accepted, err := repo.GetQuotationResponseByID(ctx, responseID)
		if err != nil {
			return notFound(err, "quotation response", responseID)
		}
		items, err := repo.GetQuotationResponseItems(ctx, accepted.ID)
		if err != nil {
			return fmt.Errorf("failed to load response items: %w", err)
		}

		order = &models.Order{
			CustomerID:          customerID,
			DistributorID:       accepted.DistributorID,
			QuotationRequestID:  locked.ID,
			QuotationResponseID: accepted.ID,
			TotalAmount:         accepted.TotalPrice,
			Status:              models.OrderStatusPending,
			OrderDate:           s.now(),
			Notes:               locked.Notes,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.InvalidOperation(msgNotPending)
			}
			return fmt.Errorf("failed to create order: %w", err)
		}
		order.Items = make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			line := models.OrderItem{
				OrderID:    order.ID,
				ProductID:  item.ProductID,
				UnitPrice:  item.UnitPrice,
				Quantity:   item.Quantity,
				TotalPrice: item.TotalPrice,
			}
			if err := repo.CreateOrderItem(ctx, &line); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			order.Items = append(order.Items, line)
		}

		if err := repo.UpdateQuotationRequestStatus(ctx, locked.ID, locked.Version, models.QuotationStatusCompleted); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.InvalidOperation(msgNotPending)
			}
			return fmt.Errorf("failed to complete quotation request: %w", err)
		}

		siblings, err := repo.ListQuotationResponsesByRequest(ctx, locked.ID)
		if err != nil {
			return fmt.Errorf("failed to list responses: %w", err)
		}
		for _, sib := range siblings {
			if sib.ID != accepted.ID {
				others = append(others, sib.DistributorID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("accept", err)
	}

	util.QuotationsAcceptedTotal.Inc()
	s.logger.Info("Quotation accepted",
		zap.Int64("quotation_request_id", order.QuotationRequestID),
		zap.Int64("quotation_response_id", order.QuotationResponseID),
		zap.Int64("order_id", order.ID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))

	s.invalidateComparison(ctx, order.QuotationRequestID)
	if s.publisher != nil {
		event := &models.QuotationAcceptedEvent{
			BaseEvent:           s.newBaseEvent(models.EventTypeQuotationAccepted),
			QuotationRequestID:  order.QuotationRequestID,
			QuotationResponseID: order.QuotationResponseID,
			OrderID:             order.ID,
			CustomerID:          customerID,
			DistributorID:       order.DistributorID,
			TotalAmount:         order.TotalAmount,
			OtherDistributorIDs: others,
		}
		if err := s.publisher.PublishQuotationAccepted(ctx, event); err != nil {
			s.logger.Error("Failed to publish QuotationAccepted event", zap.Error(err))
		}
	}
	return order, nil
}
