package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeQuotationRequestCreated    = "QUOTATION_REQUEST_CREATED"
	EventTypeQuotationResponseSubmitted = "QUOTATION_RESPONSE_SUBMITTED"
	EventTypeQuotationResponseUpdated   = "QUOTATION_RESPONSE_UPDATED"
	EventTypeQuotationAccepted          = "QUOTATION_ACCEPTED"
	EventTypeQuotationCancelled         = "QUOTATION_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// QuotationRequestCreatedEvent published when a customer opens a request
type QuotationRequestCreatedEvent struct {
	BaseEvent
	QuotationRequestID int64 `json:"quotation_request_id"`
	CustomerID         int64 `json:"customer_id"`
	ItemCount          int   `json:"item_count"`
}

// QuotationResponseEvent published when a distributor submits or revises a response
type QuotationResponseEvent struct {
	BaseEvent
	QuotationRequestID  int64           `json:"quotation_request_id"`
	QuotationResponseID int64           `json:"quotation_response_id"`
	CustomerID          int64           `json:"customer_id"`
	DistributorID       int64           `json:"distributor_id"`
	TotalPrice          decimal.Decimal `json:"total_price"`
}

// QuotationAcceptedEvent published when a response is accepted and an order exists
type QuotationAcceptedEvent struct {
	BaseEvent
	QuotationRequestID  int64           `json:"quotation_request_id"`
	QuotationResponseID int64           `json:"quotation_response_id"`
	OrderID             int64           `json:"order_id"`
	CustomerID          int64           `json:"customer_id"`
	DistributorID       int64           `json:"distributor_id"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	OtherDistributorIDs []int64         `json:"other_distributor_ids"`
}

// QuotationCancelledEvent published when a customer withdraws a request
type QuotationCancelledEvent struct {
	BaseEvent
	QuotationRequestID int64   `json:"quotation_request_id"`
	CustomerID         int64   `json:"customer_id"`
	DistributorIDs     []int64 `json:"distributor_ids"`
}
