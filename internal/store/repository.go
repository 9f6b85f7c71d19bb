package store

import (
	"context"

	"marketplace-service/internal/models"
)

// Repository is the persistence collaborator used by the service layer.
// Lookups return ErrNotFound for missing rows; writes return ErrDuplicate
// on unique violations and ErrConflict when an optimistic guard fails.
type Repository interface {
	// WithTx runs fn inside one transaction. The Repository handed to fn is
	// bound to that transaction; nested WithTx calls reuse it.
	WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error

	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetDistributorByID(ctx context.Context, id int64) (*models.Distributor, error)
	ListActiveDistributorIDs(ctx context.Context) ([]int64, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)

	CreateQuotationRequest(ctx context.Context, req *models.QuotationRequest) error
	CreateQuotationRequestItem(ctx context.Context, item *models.QuotationRequestItem) error
	GetQuotationRequestByID(ctx context.Context, id int64) (*models.QuotationRequest, error)
	// LockQuotationRequest reads the request row and holds a write lock on it
	// until the surrounding transaction ends.
	LockQuotationRequest(ctx context.Context, id int64) (*models.QuotationRequest, error)
	GetQuotationRequestItems(ctx context.Context, requestID int64) ([]models.QuotationRequestItem, error)
	ListQuotationRequestsByCustomer(ctx context.Context, customerID int64) ([]models.QuotationRequest, error)
	ListQuotationRequestsForDistributor(ctx context.Context, distributorID int64) ([]models.DistributorQuotationRequest, error)
	// UpdateQuotationRequestStatus moves a Pending request to status if its
	// version still equals version, otherwise it returns ErrConflict.
	UpdateQuotationRequestStatus(ctx context.Context, id, version int64, status string) error

	CreateQuotationResponse(ctx context.Context, resp *models.QuotationResponse) error
	UpdateQuotationResponse(ctx context.Context, resp *models.QuotationResponse) error
	GetQuotationResponseByID(ctx context.Context, id int64) (*models.QuotationResponse, error)
	GetQuotationResponseByDistributor(ctx context.Context, requestID, distributorID int64) (*models.QuotationResponse, error)
	ListQuotationResponsesByRequest(ctx context.Context, requestID int64) ([]models.QuotationResponse, error)
	CreateQuotationResponseItem(ctx context.Context, item *models.QuotationResponseItem) error
	DeleteQuotationResponseItems(ctx context.Context, responseID int64) error
	GetQuotationResponseItems(ctx context.Context, responseID int64) ([]models.QuotationResponseItem, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error)
	ListOrdersByDistributor(ctx context.Context, distributorID int64) ([]models.Order, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, role string, recipientID int64) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64, role string, recipientID int64) error
	ClaimEvent(ctx context.Context, eventID, eventType string) (bool, error)
}
