package service

import (
	"context"
	"errors"
	"fmt"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
)

// DistributorRequestView is a quotation request as listed for one distributor.
type DistributorRequestView struct {
	models.QuotationRequest
	HasResponded bool   `json:"has_responded"`
	ResponseID   *int64 `json:"response_id,omitempty"`
}

// GetQuotationRequest returns a request with its items.
func (s *QuotationService) GetQuotationRequest(ctx context.Context, requestID int64) (_ *models.QuotationRequest, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.GetQuotationRequest", attribute.Int64("quotation_request_id", requestID))
	defer func() { util.EndSpan(span, err) }()

	req, err := s.loadRequest(ctx, s.repo, requestID)
	if err != nil {
		return nil, s.fail("get_request", err)
	}
	return req, nil
}

func (s *QuotationService) loadRequest(ctx context.Context, repo store.Repository, requestID int64) (*models.QuotationRequest, error) {
	req, err := repo.GetQuotationRequestByID(ctx, requestID)
	if err != nil {
		return nil, notFound(err, "quotation request", requestID)
	}
	req.Items, err = repo.GetQuotationRequestItems(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request items: %w", err)
	}
	return req, nil
}

// GetQuotationRequestItems returns the requested product lines.
func (s *QuotationService) GetQuotationRequestItems(ctx context.Context, requestID int64) (_ []models.QuotationRequestItem, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.GetQuotationRequestItems", attribute.Int64("quotation_request_id", requestID))
	defer func() { util.EndSpan(span, err) }()

	req, err := s.loadRequest(ctx, s.repo, requestID)
	if err != nil {
		return nil, s.fail("get_request_items", err)
	}
	return req.Items, nil
}

// ListCustomerRequests returns a customer's requests, newest first.
func (s *QuotationService) ListCustomerRequests(ctx context.Context, customerID int64) (_ []models.QuotationRequest, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.ListCustomerRequests", attribute.Int64("customer_id", customerID))
	defer func() { util.EndSpan(span, err) }()

	reqs, err := s.repo.ListQuotationRequestsByCustomer(ctx, customerID)
	if err != nil {
		return nil, s.fail("list_customer_requests", err)
	}
	return reqs, nil
}

// ListDistributorRequests returns every Pending request plus any request the
// distributor has already answered.
func (s *QuotationService) ListDistributorRequests(ctx context.Context, distributorID int64) (_ []DistributorRequestView, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.ListDistributorRequests", attribute.Int64("distributor_id", distributorID))
	defer func() { util.EndSpan(span, err) }()

	rows, err := s.repo.ListQuotationRequestsForDistributor(ctx, distributorID)
	if err != nil {
		return nil, s.fail("list_distributor_requests", err)
	}
	views := make([]DistributorRequestView, 0, len(rows))
	for _, row := range rows {
		view := DistributorRequestView{QuotationRequest: row.QuotationRequest}
		if row.ResponseID.Valid {
			id := row.ResponseID.Int64
			view.HasResponded = true
			view.ResponseID = &id
		}
		views = append(views, view)
	}
	return views, nil
}

// GetQuotationResponse returns a response with its items.
func (s *QuotationService) GetQuotationResponse(ctx context.Context, responseID int64) (_ *models.QuotationResponse, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.GetQuotationResponse", attribute.Int64("quotation_response_id", responseID))
	defer func() { util.EndSpan(span, err) }()

	resp, err := s.repo.GetQuotationResponseByID(ctx, responseID)
	if err != nil {
		return nil, s.fail("get_response", notFound(err, "quotation response", responseID))
	}
	if resp.Items, err = s.repo.GetQuotationResponseItems(ctx, resp.ID); err != nil {
		return nil, s.fail("get_response", err)
	}
	return resp, nil
}

// HasDistributorResponded reports whether the pair already has its single response row.
func (s *QuotationService) HasDistributorResponded(ctx context.Context, requestID, distributorID int64) (_ bool, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.HasDistributorResponded",
		attribute.Int64("quotation_request_id", requestID),
		attribute.Int64("distributor_id", distributorID))
	defer func() { util.EndSpan(span, err) }()

	if _, err := s.repo.GetQuotationRequestByID(ctx, requestID); err != nil {
		return false, s.fail("has_responded", notFound(err, "quotation request", requestID))
	}
	_, err = s.repo.GetQuotationResponseByDistributor(ctx, requestID, distributorID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, s.fail("has_responded", err)
	}
}

// GetDistributorResponse returns the distributor's response to a request.
func (s *QuotationService) GetDistributorResponse(ctx context.Context, requestID, distributorID int64) (_ *models.QuotationResponse, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.GetDistributorResponse",
		attribute.Int64("quotation_request_id", requestID),
		attribute.Int64("distributor_id", distributorID))
	defer func() { util.EndSpan(span, err) }()

	resp, err := s.repo.GetQuotationResponseByDistributor(ctx, requestID, distributorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.fail("get_distributor_response",
			&apperr.Error{Kind: apperr.KindNotFound, Message: fmt.Sprintf("no response from distributor %d for quotation request %d", distributorID, requestID)})
	}
	if err != nil {
		return nil, s.fail("get_distributor_response", err)
	}
	if resp.Items, err = s.repo.GetQuotationResponseItems(ctx, resp.ID); err != nil {
		return nil, s.fail("get_distributor_response", err)
	}
	return resp, nil
}
