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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EventPublisher emits quotation lifecycle events after a successful commit.
type EventPublisher interface {
	PublishQuotationRequestCreated(ctx context.Context, event *models.QuotationRequestCreatedEvent) error
	PublishQuotationResponse(ctx context.Context, event *models.QuotationResponseEvent) error
	PublishQuotationAccepted(ctx context.Context, event *models.QuotationAcceptedEvent) error
	PublishQuotationCancelled(ctx context.Context, event *models.QuotationCancelledEvent) error
}

// ComparisonCache stores assembled comparison views. Every invalidation bumps
// a per-request generation; SetComparison only writes if the generation read
// by GetComparison is still current.
type ComparisonCache interface {
	GetComparison(ctx context.Context, requestID int64, dest interface{}) (generation int64, found bool, err error)
	SetComparison(ctx context.Context, requestID, generation int64, value interface{}, ttl time.Duration) (bool, error)
	InvalidateComparison(ctx context.Context, requestID int64) error
}

// Locker hands out short-lived exclusive locks.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// QuotationConfig tunes the optional collaborators.
type QuotationConfig struct {
	ComparisonCacheTTL time.Duration
	AcceptLockTTL      time.Duration
}

const (
	msgAlreadyResponded = "distributor has already responded to this quotation request, use update instead"
	msgNotPending       = "quotation request is no longer pending"
)

// QuotationService runs the request, response and acceptance workflow.
// cache, locker and publisher may be nil.
type QuotationService struct {
	repo      store.Repository
	cache     ComparisonCache
	locker    Locker
	publisher EventPublisher
	cfg       QuotationConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewQuotationService creates a new quotation service
func NewQuotationService(
	repo store.Repository,
	cache ComparisonCache,
	locker Locker,
	publisher EventPublisher,
	cfg QuotationConfig,
) *QuotationService {
	if cfg.ComparisonCacheTTL <= 0 {
		cfg.ComparisonCacheTTL = time.Minute
	}
	if cfg.AcceptLockTTL <= 0 {
		cfg.AcceptLockTTL = 10 * time.Second
	}
	return &QuotationService{
		repo:      repo,
		cache:     cache,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		logger:    util.GetLogger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// fail converts err into an *apperr.Error and counts it against op. A foreign
// key failure means a row vanished after it was checked.
func (s *QuotationService) fail(op string, err error) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		switch {
		case errors.Is(err, store.ErrReference):
			appErr = apperr.Validation("a referenced record no longer exists", nil)
		case errors.Is(err, store.ErrOutOfRange):
			appErr = apperr.Validation("a value exceeds the storable range", nil)
		default:
			appErr = apperr.Internal(op, err)
		}
		err = appErr
	}
	util.QuotationOperationsFailedTotal.WithLabelValues(op, string(appErr.Kind)).Inc()
	if appErr.Kind == apperr.KindInternal {
		s.logger.Error("Quotation operation failed", zap.String("operation", op), zap.Error(err))
	} else {
		s.logger.Debug("Quotation operation rejected",
			zap.String("operation", op),
			zap.String("kind", string(appErr.Kind)),
			zap.String("reason", appErr.Message))
	}
	return err
}

func notFound(err error, entity string, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(entity, id)
	}
	return err
}

func (s *QuotationService) newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: s.now(),
	}
}

func (s *QuotationService) invalidateComparison(ctx context.Context, requestID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateComparison(ctx, requestID); err != nil {
		s.logger.Warn("Failed to invalidate comparison cache",
			zap.Int64("quotation_request_id", requestID),
			zap.Error(err))
	}
}

// CreateQuotationRequest opens a Pending request for customerID.
func (s *QuotationService) CreateQuotationRequest(ctx context.Context, customerID int64, in *CreateQuotationRequestInput) (_ *models.QuotationRequest, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.CreateQuotationRequest", attribute.Int64("customer_id", customerID))
	defer func() { util.EndSpan(span, err) }()

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if vErr := validateRequestItems(in.Items, in.RequiredDate, today); vErr != nil {
		return nil, s.fail("create_request", vErr)
	}

	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return nil, s.fail("create_request", notFound(err, "customer", customerID))
	}
	if !customer.IsActive {
		return nil, s.fail("create_request", apperr.Forbidden("customer account is inactive"))
	}

	productIDs := make([]int64, len(in.Items))
	for i, item := range in.Items {
		productIDs[i] = item.ProductID
	}
	products, err := s.repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, s.fail("create_request", err)
	}
	known := make(map[int64]bool, len(products))
	for _, p := range products {
		known[p.ID] = true
	}
	missing := map[string]string{}
	for i, item := range in.Items {
		if !known[item.ProductID] {
			missing[itemField(i, "product_id")] = fmt.Sprintf("product %d does not exist", item.ProductID)
		}
	}
	if len(missing) > 0 {
		return nil, s.fail("create_request", apperr.Validation("invalid quotation request", missing))
	}

	req := &models.QuotationRequest{
		CustomerID:      customerID,
		Status:          models.QuotationStatusPending,
		RequestDate:     now,
		RequiredDate:    in.RequiredDate,
		DeliveryAddress: in.DeliveryAddress,
		ContactPhone:    in.ContactPhone,
		Notes:           in.Notes,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo store.Repository) error {
		if err := repo.CreateQuotationRequest(ctx, req); err != nil {
			return fmt.Errorf("failed to create quotation request: %w", err)
		}
		req.Items = make([]models.QuotationRequestItem, 0, len(in.Items))
		for _, item := range in.Items {
			row := models.QuotationRequestItem{
				QuotationRequestID: req.ID,
				ProductID:          item.ProductID,
				Quantity:           item.Quantity,
				Specifications:     item.Specifications,
			}
			if err := repo.CreateQuotationRequestItem(ctx, &row); err != nil {
				return fmt.Errorf("failed to create quotation request item: %w", err)
			}
			req.Items = append(req.Items, row)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("create_request", err)
	}

	util.QuotationRequestsCreatedTotal.Inc()
	s.logger.Info("Quotation request created",
		zap.Int64("quotation_request_id", req.ID),
		zap.Int64("customer_id", customerID),
		zap.Int("items", len(req.Items)))

	if s.publisher != nil {
		event := &models.QuotationRequestCreatedEvent{
			BaseEvent:          s.newBaseEvent(models.EventTypeQuotationRequestCreated),
			QuotationRequestID: req.ID,
			CustomerID:         customerID,
			ItemCount:          len(req.Items),
		}
		if err := s.publisher.PublishQuotationRequestCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish QuotationRequestCreated event", zap.Error(err))
		}
	}
	return req, nil
}

// buildResponseItems checks that every line prices a requested product and
// computes line totals and the response total.
func buildResponseItems(in []ResponseItemInput, requested []models.QuotationRequestItem) ([]models.QuotationResponseItem, decimal.Decimal, error) {
	inRequest := make(map[int64]bool, len(requested))
	for _, ri := range requested {
		inRequest[ri.ProductID] = true
	}

	fields := map[string]string{}
	items := make([]models.QuotationResponseItem, 0, len(in))
	total := decimal.Zero
	for i, item := range in {
		if !inRequest[item.ProductID] {
			fields[itemField(i, "product_id")] = fmt.Sprintf("product %d is not part of the quotation request", item.ProductID)
			continue
		}
		line := lineTotal(item.UnitPrice, item.Quantity)
		total = total.Add(line)
		items = append(items, models.QuotationResponseItem{
			ProductID:    item.ProductID,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
			Stock:        item.Stock,
			DeliveryDays: item.DeliveryDays,
			TotalPrice:   line,
		})
	}
	if len(fields) == 0 && total.GreaterThanOrEqual(maxMoney) {
		fields["total_price"] = "response total must be less than " + maxMoney.String()
	}
	if len(fields) > 0 {
		return nil, decimal.Zero, apperr.Validation("invalid quotation response", fields)
	}
	return items, total, nil
}

func writeResponseItems(ctx context.Context, repo store.Repository, responseID int64, items []models.QuotationResponseItem) error {
	for i := range items {
		items[i].QuotationResponseID = responseID
		if err := repo.CreateQuotationResponseItem(ctx, &items[i]); err != nil {
			return fmt.Errorf("failed to create quotation response item: %w", err)
		}
	}
	return nil
}

func (s *QuotationService) activeDistributor(ctx context.Context, distributorID int64) (*models.Distributor, error) {
	distributor, err := s.repo.GetDistributorByID(ctx, distributorID)
	if err != nil {
		return nil, notFound(err, "distributor", distributorID)
	}
	if !distributor.IsActive {
		return nil, apperr.Forbidden("distributor account is inactive")
	}
	return distributor, nil
}

// SubmitQuotationResponse records distributorID's first offer on a Pending request.
func (s *QuotationService) SubmitQuotationResponse(ctx context.Context, distributorID int64, in *SubmitQuotationResponseInput) (_ *models.QuotationResponse, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.SubmitQuotationResponse",
		attribute.Int64("quotation_request_id", in.QuotationRequestID),
		attribute.Int64("distributor_id", distributorID))
	defer func() { util.EndSpan(span, err) }()

	if vErr := validateResponseItems(in.Items); vErr != nil {
		return nil, s.fail("submit_response", vErr)
	}
	distributor, err := s.activeDistributor(ctx, distributorID)
	if err != nil {
		return nil, s.fail("submit_response", err)
	}

	var (
		resp       *models.QuotationResponse
		customerID int64
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo store.Repository) error {
		req, err := repo.LockQuotationRequest(ctx, in.QuotationRequestID)
		if err != nil {
			return notFound(err, "quotation request", in.QuotationRequestID)
		}
		if req.Status != models.QuotationStatusPending {
			return apperr.InvalidOperation(msgNotPending)
		}
		customerID = req.CustomerID

		if _, err := repo.GetQuotationResponseByDistributor(ctx, req.ID, distributorID); err == nil {
			return apperr.InvalidOperation(msgAlreadyResponded)
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to check existing response: %w", err)
		}

		requested, err := repo.GetQuotationRequestItems(ctx, req.ID)
		if err != nil {
			return fmt.Errorf("failed to load request items: %w", err)
		}
		items, total, err := buildResponseItems(in.Items, requested)
		if err != nil {
			return err
		}

		resp = &models.QuotationResponse{
			QuotationRequestID: req.ID,
			DistributorID:      distributorID,
			TotalPrice:         total,
			SubmissionDate:     s.now(),
			Notes:              in.Notes,
		}
		if err := repo.CreateQuotationResponse(ctx, resp); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.InvalidOperation(msgAlreadyResponded)
			}
			return fmt.Errorf("failed to create quotation response: %w", err)
		}
		if err := writeResponseItems(ctx, repo, resp.ID, items); err != nil {
			return err
		}
		resp.Items = items
		return nil
	})
	if err != nil {
		return nil, s.fail("submit_response", err)
	}
	resp.DistributorName = distributor.Name

	util.QuotationResponsesSubmittedTotal.Inc()
	s.logger.Info("Quotation response submitted",
		zap.Int64("quotation_request_id", resp.QuotationRequestID),
		zap.Int64("quotation_response_id", resp.ID),
		zap.Int64("distributor_id", distributorID),
		zap.String("total_price", resp.TotalPrice.StringFixed(2)))

	s.invalidateComparison(ctx, resp.QuotationRequestID)
	s.publishResponse(ctx, models.EventTypeQuotationResponseSubmitted, resp, customerID)
	return resp, nil
}

// UpdateQuotationResponse overwrites a response's items and notes. Only the
// owning distributor may do so, and only while the request is Pending.
func (s *QuotationService) UpdateQuotationResponse(ctx context.Context, responseID, distributorID int64, in *UpdateQuotationResponseInput) (_ *models.QuotationResponse, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.UpdateQuotationResponse",
		attribute.Int64("quotation_response_id", responseID),
		attribute.Int64("distributor_id", distributorID))
	defer func() { util.EndSpan(span, err) }()

	if vErr := validateResponseItems(in.Items); vErr != nil {
		return nil, s.fail("update_response", vErr)
	}

	var (
		resp       *models.QuotationResponse
		customerID int64
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo store.Repository) error {
		existing, err := repo.GetQuotationResponseByID(ctx, responseID)
		if err != nil {
			return notFound(err, "quotation response", responseID)
		}
		if existing.DistributorID != distributorID {
			return apperr.Forbidden("quotation response belongs to another distributor")
		}
		req, err := repo.LockQuotationRequest(ctx, existing.QuotationRequestID)
		if err != nil {
			return notFound(err, "quotation request", existing.QuotationRequestID)
		}
		if req.Status != models.QuotationStatusPending {
			return apperr.InvalidOperation(msgNotPending)
		}
		customerID = req.CustomerID

		requested, err := repo.GetQuotationRequestItems(ctx, req.ID)
		if err != nil {
			return fmt.Errorf("failed to load request items: %w", err)
		}
		items, total, err := buildResponseItems(in.Items, requested)
		if err != nil {
			return err
		}

		if err := repo.DeleteQuotationResponseItems(ctx, existing.ID); err != nil {
			return fmt.Errorf("failed to clear response items: %w", err)
		}
		if err := writeResponseItems(ctx, repo, existing.ID, items); err != nil {
			return err
		}
		existing.TotalPrice = total
		existing.SubmissionDate = s.now()
		existing.Notes = in.Notes
		if err := repo.UpdateQuotationResponse(ctx, existing); err != nil {
			return notFound(err, "quotation response", responseID)
		}
		existing.Items = items
		resp = existing
		return nil
	})
	if err != nil {
		return nil, s.fail("update_response", err)
	}

	util.QuotationResponsesUpdatedTotal.Inc()
	s.logger.Info("Quotation response updated",
		zap.Int64("quotation_request_id", resp.QuotationRequestID),
		zap.Int64("quotation_response_id", resp.ID),
		zap.String("total_price", resp.TotalPrice.StringFixed(2)))

	s.invalidateComparison(ctx, resp.QuotationRequestID)
	s.publishResponse(ctx, models.EventTypeQuotationResponseUpdated, resp, customerID)
	return resp, nil
}

func (s *QuotationService) publishResponse(ctx context.Context, eventType string, resp *models.QuotationResponse, customerID int64) {
	if s.publisher == nil {
		return
	}
	event := &models.QuotationResponseEvent{
		BaseEvent:           s.newBaseEvent(eventType),
		QuotationRequestID:  resp.QuotationRequestID,
		QuotationResponseID: resp.ID,
		CustomerID:          customerID,
		DistributorID:       resp.DistributorID,
		TotalPrice:          resp.TotalPrice,
	}
	if err := s.publisher.PublishQuotationResponse(ctx, event); err != nil {
		s.logger.Error("Failed to publish QuotationResponse event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// CancelQuotationRequest withdraws a Pending request owned by customerID.
// Existing responses are kept for history.
func (s *QuotationService) CancelQuotationRequest(ctx context.Context, requestID, customerID int64) (err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.CancelQuotationRequest",
		attribute.Int64("quotation_request_id", requestID),
		attribute.Int64("customer_id", customerID))
	defer func() { util.EndSpan(span, err) }()

	var responders []int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo store.Repository) error {
		req, err := repo.LockQuotationRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "quotation request", requestID)
		}
		if req.CustomerID != customerID {
			return apperr.Forbidden("quotation request belongs to another customer")
		}
		if req.Status != models.QuotationStatusPending {
			return apperr.InvalidOperation(msgNotPending)
		}
		if err := repo.UpdateQuotationRequestStatus(ctx, req.ID, req.Version, models.QuotationStatusCancelled); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.InvalidOperation(msgNotPending)
			}
			return fmt.Errorf("failed to cancel quotation request: %w", err)
		}

		responses, err := repo.ListQuotationResponsesByRequest(ctx, req.ID)
		if err != nil {
			return fmt.Errorf("failed to list responses: %w", err)
		}
		for _, r := range responses {
			responders = append(responders, r.DistributorID)
		}
		return nil
	})
	if err != nil {
		return s.fail("cancel_request", err)
	}

	util.QuotationRequestsCancelledTotal.Inc()
	s.logger.Info("Quotation request cancelled",
		zap.Int64("quotation_request_id", requestID),
		zap.Int("responses", len(responders)))

	s.invalidateComparison(ctx, requestID)
	if s.publisher != nil {
		event := &models.QuotationCancelledEvent{
			BaseEvent:          s.newBaseEvent(models.EventTypeQuotationCancelled),
			QuotationRequestID: requestID,
			CustomerID:         customerID,
			DistributorIDs:     responders,
		}
		if err := s.publisher.PublishQuotationCancelled(ctx, event); err != nil {
			s.logger.Error("Failed to publish QuotationCancelled event", zap.Error(err))
		}
	}
	return nil
}
