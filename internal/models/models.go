package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a buyer account. Only the fields the quotation workflow reads are mapped.
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Distributor is a seller account that answers quotation requests.
type Distributor struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product represents a product in the catalog
type Product struct {
	ID        int64           `db:"id" json:"id"`
	SKU       string          `db:"sku" json:"sku"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// QuotationRequest is a customer's ask for priced offers on a set of products.
type QuotationRequest struct {
	ID              int64                  `db:"id" json:"id"`
	CustomerID      int64                  `db:"customer_id" json:"customer_id"`
	Status          string                 `db:"status" json:"status"`
	RequestDate     time.Time              `db:"request_date" json:"request_date"`
	RequiredDate    *time.Time             `db:"required_date" json:"required_date,omitempty"`
	DeliveryAddress string                 `db:"delivery_address" json:"delivery_address"`
	ContactPhone    string                 `db:"contact_phone" json:"contact_phone"`
	Notes           string                 `db:"notes" json:"notes"`
	Version         int64                  `db:"version" json:"-"`
	CreatedAt       time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time              `db:"updated_at" json:"updated_at"`
	Items           []QuotationRequestItem `db:"-" json:"items,omitempty"`
}

// QuotationRequestItem is one requested product line.
type QuotationRequestItem struct {
	ID                 int64  `db:"id" json:"id"`
	QuotationRequestID int64  `db:"quotation_request_id" json:"quotation_request_id"`
	ProductID          int64  `db:"product_id" json:"product_id"`
	Quantity           int    `db:"quantity" json:"quantity"`
	Specifications     string `db:"specifications" json:"specifications"`
}

// DistributorQuotationRequest is a request as seen by one distributor.
type DistributorQuotationRequest struct {
	QuotationRequest
	ResponseID sql.NullInt64 `db:"response_id"`
}

// QuotationResponse is one distributor's priced offer against a request.
type QuotationResponse struct {
	ID                 int64                   `db:"id" json:"id"`
	QuotationRequestID int64                   `db:"quotation_request_id" json:"quotation_request_id"`
	DistributorID      int64                   `db:"distributor_id" json:"distributor_id"`
	DistributorName    string                  `db:"distributor_name" json:"distributor_name,omitempty"`
	TotalPrice         decimal.Decimal         `db:"total_price" json:"total_price"`
	SubmissionDate     time.Time               `db:"submission_date" json:"submission_date"`
	Notes              string                  `db:"notes" json:"notes"`
	CreatedAt          time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time               `db:"updated_at" json:"updated_at"`
	Items              []QuotationResponseItem `db:"-" json:"items,omitempty"`
}

// QuotationResponseItem is one priced line within a response.
type QuotationResponseItem struct {
	ID                  int64           `db:"id" json:"id"`
	QuotationResponseID int64           `db:"quotation_response_id" json:"quotation_response_id"`
	ProductID           int64           `db:"product_id" json:"product_id"`
	UnitPrice           decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity            int             `db:"quantity" json:"quantity"`
	Stock               int             `db:"stock" json:"stock"`
	DeliveryDays        int             `db:"delivery_days" json:"delivery_days"`
	TotalPrice          decimal.Decimal `db:"total_price" json:"total_price"`
}

// Order is the commercial commitment materialized from an accepted response.
type Order struct {
	ID                  int64           `db:"id" json:"id"`
	CustomerID          int64           `db:"customer_id" json:"customer_id"`
	DistributorID       int64           `db:"distributor_id" json:"distributor_id"`
	QuotationRequestID  int64           `db:"quotation_request_id" json:"quotation_request_id"`
	QuotationResponseID int64           `db:"quotation_response_id" json:"quotation_response_id"`
	TotalAmount         decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status              string          `db:"status" json:"status"`
	OrderDate           time.Time       `db:"order_date" json:"order_date"`
	Notes               string          `db:"notes" json:"notes"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
	Items               []OrderItem     `db:"-" json:"items,omitempty"`
}

// OrderItem is an immutable price-locked copy of a QuotationResponseItem.
type OrderItem struct {
	ID         int64           `db:"id" json:"id"`
	OrderID    int64           `db:"order_id" json:"order_id"`
	ProductID  int64           `db:"product_id" json:"product_id"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity   int             `db:"quantity" json:"quantity"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
}

// Notification is an inbox entry for a customer or distributor.
type Notification struct {
	ID                 int64      `db:"id" json:"id"`
	RecipientRole      string     `db:"recipient_role" json:"recipient_role"`
	RecipientID        int64      `db:"recipient_id" json:"recipient_id"`
	Kind               string     `db:"kind" json:"kind"`
	QuotationRequestID int64      `db:"quotation_request_id" json:"quotation_request_id"`
	Message            string     `db:"message" json:"message"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	ReadAt             *time.Time `db:"read_at" json:"read_at,omitempty"`
}

// Quotation request statuses
const (
	QuotationStatusPending   = "Pending"
	QuotationStatusCompleted = "Completed"
	QuotationStatusCancelled = "Cancelled"
)

// Order statuses
const (
	OrderStatusPending = "Pending"
)

// Notification kinds
const (
	NotificationNewRequest       = "NEW_REQUEST"
	NotificationResponseReceived = "RESPONSE_RECEIVED"
	NotificationResponseUpdated  = "RESPONSE_UPDATED"
	NotificationQuoteAccepted    = "QUOTE_ACCEPTED"
	NotificationRequestClosed    = "REQUEST_CLOSED"
	NotificationRequestCancelled = "REQUEST_CANCELLED"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
