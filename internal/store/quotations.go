package store

import (
	"context"

	"marketplace-service/internal/models"
)

const quotationRequestColumns = `
	r.id, r.customer_id, r.status, r.request_date, r.required_date, r.delivery_address,
	r.contact_phone, r.notes, r.version, r.created_at, r.updated_at`

const quotationResponseColumns = `
	resp.id, resp.quotation_request_id, resp.distributor_id, COALESCE(d.name, '') AS distributor_name,
	resp.total_price, resp.submission_date, resp.notes, resp.created_at, resp.updated_at`

// CreateQuotationRequest inserts a request header
func (s *Store) CreateQuotationRequest(ctx context.Context, req *models.QuotationRequest) error {
	query := `
		INSERT INTO quotation_requests
			(customer_id, status, request_date, required_date, delivery_address, contact_phone, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, version, created_at, updated_at`

	return translateError(s.q.GetContext(ctx, req, query,
		req.CustomerID, req.Status, req.RequestDate, req.RequiredDate,
		req.DeliveryAddress, req.ContactPhone, req.Notes))
}

// CreateQuotationRequestItem inserts one requested product line
func (s *Store) CreateQuotationRequestItem(ctx context.Context, item *models.QuotationRequestItem) error {
	query := `
		INSERT INTO quotation_request_items (quotation_request_id, product_id, quantity, specifications)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return translateError(s.q.GetContext(ctx, &item.ID, query,
		item.QuotationRequestID, item.ProductID, item.Quantity, item.Specifications))
}

// GetQuotationRequestByID retrieves a request header by ID
func (s *Store) GetQuotationRequestByID(ctx context.Context, id int64) (*models.QuotationRequest, error) {
	var req models.QuotationRequest
	err := s.q.GetContext(ctx, &req,
		"SELECT "+quotationRequestColumns+" FROM quotation_requests r WHERE r.id = $1", id)
	if err != nil {
		return nil, translateError(err)
	}
	return &req, nil
}

// LockQuotationRequest retrieves a request header with a row lock (FOR UPDATE)
func (s *Store) LockQuotationRequest(ctx context.Context, id int64) (*models.QuotationRequest, error) {
	var req models.QuotationRequest
	err := s.q.GetContext(ctx, &req,
		"SELECT "+quotationRequestColumns+" FROM quotation_requests r WHERE r.id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, translateError(err)
	}
	return &req, nil
}

// GetQuotationRequestItems retrieves all items of a request
func (s *Store) GetQuotationRequestItems(ctx context.Context, requestID int64) ([]models.QuotationRequestItem, error) {
	items := []models.QuotationRequestItem{}
	err := s.q.SelectContext(ctx, &items, `
		SELECT id, quotation_request_id, product_id, quantity, specifications
		FROM quotation_request_items WHERE quotation_request_id = $1 ORDER BY id`, requestID)
	return items, translateError(err)
}

// ListQuotationRequestsByCustomer retrieves a customer's requests, newest first
func (s *Store) ListQuotationRequestsByCustomer(ctx context.Context, customerID int64) ([]models.QuotationRequest, error) {
	reqs := []models.QuotationRequest{}
	err := s.q.SelectContext(ctx, &reqs,
		"SELECT "+quotationRequestColumns+" FROM quotation_requests r WHERE r.customer_id = $1 ORDER BY r.request_date DESC, r.id DESC",
		customerID)
	return reqs, translateError(err)
}

// ListQuotationRequestsForDistributor retrieves open requests plus any request
// the distributor already answered, newest first
func (s *Store) ListQuotationRequestsForDistributor(ctx context.Context, distributorID int64) ([]models.DistributorQuotationRequest, error) {
	reqs := []models.DistributorQuotationRequest{}
	err := s.q.SelectContext(ctx, &reqs, `
		SELECT `+quotationRequestColumns+`, resp.id AS response_id
		FROM quotation_requests r
		LEFT JOIN quotation_responses resp
			ON resp.quotation_request_id = r.id AND resp.distributor_id = $1
		WHERE r.status = $2 OR resp.id IS NOT NULL
		ORDER BY r.request_date DESC, r.id DESC`,
		distributorID, models.QuotationStatusPending)
	return reqs, translateError(err)
}

// UpdateQuotationRequestStatus transitions a Pending request guarded by its version
func (s *Store) UpdateQuotationRequestStatus(ctx context.Context, id, version int64, status string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE quotation_requests
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3 AND status = $4`,
		status, id, version, models.QuotationStatusPending)
	if err != nil {
		return translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// CreateQuotationResponse inserts a response header. The unique index on
// (quotation_request_id, distributor_id) surfaces as ErrDuplicate.
func (s *Store) CreateQuotationResponse(ctx context.Context, resp *models.QuotationResponse) error {
	query := `
		INSERT INTO quotation_responses
			(quotation_request_id, distributor_id, total_price, submission_date, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return translateError(s.q.GetContext(ctx, resp, query,
		resp.QuotationRequestID, resp.DistributorID, resp.TotalPrice, resp.SubmissionDate, resp.Notes))
}

// UpdateQuotationResponse overwrites total, submission date and notes
func (s *Store) UpdateQuotationResponse(ctx context.Context, resp *models.QuotationResponse) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE quotation_responses
		SET total_price = $1, submission_date = $2, notes = $3, updated_at = NOW()
		WHERE id = $4`,
		resp.TotalPrice, resp.SubmissionDate, resp.Notes, resp.ID)
	if err != nil {
		return translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetQuotationResponseByID retrieves a response header by ID
func (s *Store) GetQuotationResponseByID(ctx context.Context, id int64) (*models.QuotationResponse, error) {
	var resp models.QuotationResponse
	err := s.q.GetContext(ctx, &resp, `
		SELECT `+quotationResponseColumns+`
		FROM quotation_responses resp
		LEFT JOIN distributors d ON d.id = resp.distributor_id
		WHERE resp.id = $1`, id)
	if err != nil {
		return nil, translateError(err)
	}
	return &resp, nil
}

// GetQuotationResponseByDistributor retrieves the response of one distributor to one request
func (s *Store) GetQuotationResponseByDistributor(ctx context.Context, requestID, distributorID int64) (*models.QuotationResponse, error) {
	var resp models.QuotationResponse
	err := s.q.GetContext(ctx, &resp, `
		SELECT `+quotationResponseColumns+`
		FROM quotation_responses resp
		LEFT JOIN distributors d ON d.id = resp.distributor_id
		WHERE resp.quotation_request_id = $1 AND resp.distributor_id = $2`, requestID, distributorID)
	if err != nil {
		return nil, translateError(err)
	}
	return &resp, nil
}

// ListQuotationResponsesByRequest retrieves every response to a request
func (s *Store) ListQuotationResponsesByRequest(ctx context.Context, requestID int64) ([]models.QuotationResponse, error) {
	resps := []models.QuotationResponse{}
	err := s.q.SelectContext(ctx, &resps, `
		SELECT `+quotationResponseColumns+`
		FROM quotation_responses resp
		LEFT JOIN distributors d ON d.id = resp.distributor_id
		WHERE resp.quotation_request_id = $1
		ORDER BY resp.submission_date, resp.id`, requestID)
	return resps, translateError(err)
}

// CreateQuotationResponseItem inserts one priced line
func (s *Store) CreateQuotationResponseItem(ctx context.Context, item *models.QuotationResponseItem) error {
	query := `
		INSERT INTO quotation_response_items
			(quotation_response_id, product_id, unit_price, quantity, stock, delivery_days, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return translateError(s.q.GetContext(ctx, &item.ID, query,
		item.QuotationResponseID, item.ProductID, item.UnitPrice, item.Quantity,
		item.Stock, item.DeliveryDays, item.TotalPrice))
}

// DeleteQuotationResponseItems removes every priced line of a response
func (s *Store) DeleteQuotationResponseItems(ctx context.Context, responseID int64) error {
	_, err := s.q.ExecContext(ctx,
		"DELETE FROM quotation_response_items WHERE quotation_response_id = $1", responseID)
	return translateError(err)
}

// GetQuotationResponseItems retrieves every priced line of a response
func (s *Store) GetQuotationResponseItems(ctx context.Context, responseID int64) ([]models.QuotationResponseItem, error) {
	items := []models.QuotationResponseItem{}
	err := s.q.SelectContext(ctx, &items, `
		SELECT id, quotation_response_id, product_id, unit_price, quantity, stock, delivery_days, total_price
		FROM quotation_response_items WHERE quotation_response_id = $1 ORDER BY id`, responseID)
	return items, translateError(err)
}
