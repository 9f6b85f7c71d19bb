package service

import (
	"context"
	"errors"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/identity"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService gives parties read access to orders materialized from accepted quotations
type OrderService struct {
	repo   store.Repository
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(repo store.Repository) *OrderService {
	return &OrderService{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

func canSeeOrder(caller identity.Caller, order *models.Order) bool {
	switch caller.Role {
	case identity.RoleAdmin:
		return true
	case identity.RoleCustomer:
		return order.CustomerID == caller.ID
	case identity.RoleDistributor:
		return order.DistributorID == caller.ID
	}
	return false
}

// GetOrder retrieves an order with its items
func (s *OrderService) GetOrder(ctx context.Context, orderID int64, caller identity.Caller) (_ *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", attribute.Int64("order_id", orderID))
	defer func() { util.EndSpan(span, err) }()

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("order", orderID)
		}
		s.logger.Error("Failed to load order", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, apperr.Internal("get order", err)
	}
	if !canSeeOrder(caller, order) {
		return nil, apperr.Forbidden("order belongs to another party")
	}

	order.Items, err = s.repo.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to load order items", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, apperr.Internal("get order items", err)
	}
	return order, nil
}

// ListOrders returns the caller's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, caller identity.Caller) (_ []models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders", attribute.String("role", string(caller.Role)))
	defer func() { util.EndSpan(span, err) }()

	var orders []models.Order
	switch caller.Role {
	case identity.RoleCustomer:
		orders, err = s.repo.ListOrdersByCustomer(ctx, caller.ID)
	case identity.RoleDistributor:
		orders, err = s.repo.ListOrdersByDistributor(ctx, caller.ID)
	default:
		return nil, apperr.Forbidden("only customers and distributors have orders")
	}
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Int64("caller_id", caller.ID), zap.Error(err))
		return nil, apperr.Internal("list orders", err)
	}
	return orders, nil
}
