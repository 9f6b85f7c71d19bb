package service

import (
	"fmt"
	"math"
	"time"

	"marketplace-service/internal/apperr"

	"github.com/shopspring/decimal"
)

// RequestItemInput is one product line of a new quotation request.
type RequestItemInput struct {
	ProductID      int64  `json:"product_id" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required"`
	Specifications string `json:"specifications" binding:"max=1000"`
}

// CreateQuotationRequestInput carries a customer's request payload.
type CreateQuotationRequestInput struct {
	Items           []RequestItemInput `json:"items" binding:"required,dive"`
	RequiredDate    *time.Time         `json:"required_date"`
	DeliveryAddress string             `json:"delivery_address" binding:"max=500"`
	ContactPhone    string             `json:"contact_phone" binding:"max=50"`
	Notes           string             `json:"notes" binding:"max=2000"`
}

// ResponseItemInput is one priced line of a distributor response. Any total
// sent by the caller is ignored.
type ResponseItemInput struct {
	ProductID    int64           `json:"product_id" binding:"required"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	Stock        int             `json:"stock"`
	DeliveryDays int             `json:"delivery_days"`
}

// SubmitQuotationResponseInput carries a distributor's first offer.
type SubmitQuotationResponseInput struct {
	QuotationRequestID int64               `json:"quotation_request_id" binding:"required"`
	Items              []ResponseItemInput `json:"items" binding:"required,dive"`
	Notes              string              `json:"notes" binding:"max=2000"`
}

// UpdateQuotationResponseInput replaces a response's items and notes.
type UpdateQuotationResponseInput struct {
	Items []ResponseItemInput `json:"items" binding:"required,dive"`
	Notes string              `json:"notes" binding:"max=2000"`
}

// AcceptQuotationInput selects the response to turn into an order.
type AcceptQuotationInput struct {
	QuotationResponseID int64 `json:"quotation_response_id" binding:"required"`
}

// Storage limits: money is NUMERIC(18,2), counts are INT.
var maxMoney = decimal.New(1, 16)

const maxCount = math.MaxInt32

func itemField(i int, name string) string {
	return fmt.Sprintf("items[%d].%s", i, name)
}

func validateRequestItems(items []RequestItemInput, requiredDate *time.Time, today time.Time) *apperr.Error {
	fields := map[string]string{}
	if len(items) == 0 {
		fields["items"] = "at least one item is required"
	}
	seen := make(map[int64]int, len(items))
	for i, item := range items {
		if item.ProductID <= 0 {
			fields[itemField(i, "product_id")] = "must be a positive id"
		} else if first, dup := seen[item.ProductID]; dup {
			fields[itemField(i, "product_id")] = fmt.Sprintf("duplicates items[%d]", first)
		} else {
			seen[item.ProductID] = i
		}
		switch {
		case item.Quantity <= 0:
			fields[itemField(i, "quantity")] = "must be greater than zero"
		case item.Quantity > maxCount:
			fields[itemField(i, "quantity")] = fmt.Sprintf("must not exceed %d", maxCount)
		}
	}
	if requiredDate != nil && requiredDate.Before(today) {
		fields["required_date"] = "must not be in the past"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid quotation request", fields)
	}
	return nil
}

func validateResponseItems(items []ResponseItemInput) *apperr.Error {
	fields := map[string]string{}
	if len(items) == 0 {
		fields["items"] = "at least one item is required"
	}
	seen := make(map[int64]int, len(items))
	for i, item := range items {
		if item.ProductID <= 0 {
			fields[itemField(i, "product_id")] = "must be a positive id"
		} else if first, dup := seen[item.ProductID]; dup {
			fields[itemField(i, "product_id")] = fmt.Sprintf("duplicates items[%d]", first)
		} else {
			seen[item.ProductID] = i
		}
		switch {
		case item.UnitPrice.IsNegative():
			fields[itemField(i, "unit_price")] = "must not be negative"
		case !item.UnitPrice.Equal(item.UnitPrice.Round(2)):
			fields[itemField(i, "unit_price")] = "must have at most two decimal places"
		case item.UnitPrice.GreaterThanOrEqual(maxMoney):
			fields[itemField(i, "unit_price")] = "must be less than " + maxMoney.String()
		}
		switch {
		case item.Quantity <= 0:
			fields[itemField(i, "quantity")] = "must be greater than zero"
		case item.Quantity > maxCount:
			fields[itemField(i, "quantity")] = fmt.Sprintf("must not exceed %d", maxCount)
		}
		if _, priced := fields[itemField(i, "unit_price")]; !priced && item.Quantity > 0 &&
			lineTotal(item.UnitPrice, item.Quantity).GreaterThanOrEqual(maxMoney) {
			fields[itemField(i, "total_price")] = "line total must be less than " + maxMoney.String()
		}
		switch {
		case item.Stock < 0:
			fields[itemField(i, "stock")] = "must not be negative"
		case item.Stock > maxCount:
			fields[itemField(i, "stock")] = fmt.Sprintf("must not exceed %d", maxCount)
		}
		switch {
		case item.DeliveryDays < 0:
			fields[itemField(i, "delivery_days")] = "must not be negative"
		case item.DeliveryDays > maxCount:
			fields[itemField(i, "delivery_days")] = fmt.Sprintf("must not exceed %d", maxCount)
		}
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid quotation response", fields)
	}
	return nil
}

// lineTotal is unit price times quantity at currency precision.
func lineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}
