package store

import (
	"context"

	"marketplace-service/internal/models"
)

const orderColumns = `
	id, customer_id, distributor_id, quotation_request_id, quotation_response_id,
	total_amount, status, order_date, notes, created_at, updated_at`

// CreateOrder creates a new order. orders.quotation_request_id is unique, so a
// second order for the same request surfaces as ErrDuplicate.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders
			(customer_id, distributor_id, quotation_request_id, quotation_response_id,
			 total_amount, status, order_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return translateError(s.q.GetContext(ctx, order, query,
		order.CustomerID, order.DistributorID, order.QuotationRequestID, order.QuotationResponseID,
		order.TotalAmount, order.Status, order.OrderDate, order.Notes))
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.q.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, translateError(err)
	}
	return &order, nil
}

// ListOrdersByCustomer retrieves orders placed by a customer
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.q.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = $1 ORDER BY order_date DESC, id DESC", customerID)
	return orders, translateError(err)
}

// ListOrdersByDistributor retrieves orders supplied by a distributor
func (s *Store) ListOrdersByDistributor(ctx context.Context, distributorID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.q.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE distributor_id = $1 ORDER BY order_date DESC, id DESC", distributorID)
	return orders, translateError(err)
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, unit_price, quantity, total_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return translateError(s.q.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.UnitPrice, item.Quantity, item.TotalPrice))
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.q.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, unit_price, quantity, total_price
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	return items, translateError(err)
}
