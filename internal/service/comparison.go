package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// QuotationComparison is the side-by-side view of every response to a request.
type QuotationComparison struct {
	Request   *models.QuotationRequest `json:"request"`
	Items     []ComparisonItem         `json:"items"`
	Responses []RankedResponse         `json:"responses"`
}

// ComparisonItem is a requested line with the cheapest offer made for it.
type ComparisonItem struct {
	RequestItemID     int64            `json:"request_item_id"`
	ProductID         int64            `json:"product_id"`
	Quantity          int              `json:"quantity"`
	Specifications    string           `json:"specifications"`
	OfferCount        int              `json:"offer_count"`
	BestUnitPrice     *decimal.Decimal `json:"best_unit_price,omitempty"`
	BestDistributorID *int64           `json:"best_distributor_id,omitempty"`
}

// RankedResponse is one response with its position in the comparison.
type RankedResponse struct {
	Rank            int                            `json:"rank"`
	ResponseID      int64                          `json:"response_id"`
	DistributorID   int64                          `json:"distributor_id"`
	DistributorName string                         `json:"distributor_name"`
	TotalPrice      decimal.Decimal                `json:"total_price"`
	SubmissionDate  time.Time                      `json:"submission_date"`
	Notes           string                         `json:"notes"`
	MaxDeliveryDays int                            `json:"max_delivery_days"`
	CoveredItems    int                            `json:"covered_items"`
	RequestedItems  int                            `json:"requested_items"`
	Complete        bool                           `json:"complete"`
	Items           []models.QuotationResponseItem `json:"items"`
}

// rankResponses orders by total ascending, then earliest submission, then id.
func rankResponses(responses []models.QuotationResponse) {
	sort.SliceStable(responses, func(i, j int) bool {
		a, b := responses[i], responses[j]
		if c := a.TotalPrice.Cmp(b.TotalPrice); c != 0 {
			return c < 0
		}
		if !a.SubmissionDate.Equal(b.SubmissionDate) {
			return a.SubmissionDate.Before(b.SubmissionDate)
		}
		return a.ID < b.ID
	})
}

func buildComparison(req *models.QuotationRequest, responses []models.QuotationResponse) *QuotationComparison {
	rankResponses(responses)

	requested := make(map[int64]bool, len(req.Items))
	for _, it := range req.Items {
		requested[it.ProductID] = true
	}

	type offer struct {
		price         decimal.Decimal
		distributorID int64
		count         int
	}
	best := map[int64]*offer{}

	ranked := make([]RankedResponse, 0, len(responses))
	for i, resp := range responses {
		view := RankedResponse{
			Rank:            i + 1,
			ResponseID:      resp.ID,
			DistributorID:   resp.DistributorID,
			DistributorName: resp.DistributorName,
			TotalPrice:      resp.TotalPrice,
			SubmissionDate:  resp.SubmissionDate,
			Notes:           resp.Notes,
			RequestedItems:  len(req.Items),
			Items:           resp.Items,
		}
		for _, item := range resp.Items {
			if item.DeliveryDays > view.MaxDeliveryDays {
				view.MaxDeliveryDays = item.DeliveryDays
			}
			if !requested[item.ProductID] {
				continue
			}
			view.CoveredItems++
			o, ok := best[item.ProductID]
			if !ok {
				best[item.ProductID] = &offer{price: item.UnitPrice, distributorID: resp.DistributorID, count: 1}
				continue
			}
			o.count++
			// responses are already ranked, so the first strictly lower price wins ties
			if item.UnitPrice.LessThan(o.price) {
				o.price = item.UnitPrice
				o.distributorID = resp.DistributorID
			}
		}
		view.Complete = view.CoveredItems == view.RequestedItems
		ranked = append(ranked, view)
	}

	items := make([]ComparisonItem, 0, len(req.Items))
	for _, it := range req.Items {
		ci := ComparisonItem{
			RequestItemID:  it.ID,
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			Specifications: it.Specifications,
		}
		if o, ok := best[it.ProductID]; ok {
			price, distributorID := o.price, o.distributorID
			ci.OfferCount = o.count
			ci.BestUnitPrice = &price
			ci.BestDistributorID = &distributorID
		}
		items = append(items, ci)
	}

	return &QuotationComparison{Request: req, Items: items, Responses: ranked}
}

// GetQuotationComparison returns the request with every response ranked by
// total price. A request without responses yields an empty list.
func (s *QuotationService) GetQuotationComparison(ctx context.Context, requestID int64) (_ *QuotationComparison, err error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.GetQuotationComparison", attribute.Int64("quotation_request_id", requestID))
	defer func() { util.EndSpan(span, err) }()

	var (
		generation int64
		cacheable  bool
	)
	if s.cache != nil {
		var cached QuotationComparison
		gen, found, err := s.cache.GetComparison(ctx, requestID, &cached)
		switch {
		case err != nil:
			util.ComparisonCacheLookupsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Comparison cache lookup failed", zap.Int64("quotation_request_id", requestID), zap.Error(err))
		case found:
			util.ComparisonCacheLookupsTotal.WithLabelValues("hit").Inc()
			return &cached, nil
		default:
			util.ComparisonCacheLookupsTotal.WithLabelValues("miss").Inc()
			generation, cacheable = gen, true
		}
	}

	req, err := s.loadRequest(ctx, s.repo, requestID)
	if err != nil {
		return nil, s.fail("comparison", err)
	}
	responses, err := s.repo.ListQuotationResponsesByRequest(ctx, requestID)
	if err != nil {
		return nil, s.fail("comparison", fmt.Errorf("failed to list responses: %w", err))
	}
	for i := range responses {
		items, err := s.repo.GetQuotationResponseItems(ctx, responses[i].ID)
		if err != nil {
			return nil, s.fail("comparison", fmt.Errorf("failed to load response items: %w", err))
		}
		responses[i].Items = items
	}

	comparison := buildComparison(req, responses)

	if cacheable {
		stored, err := s.cache.SetComparison(ctx, requestID, generation, comparison, s.cfg.ComparisonCacheTTL)
		switch {
		case err != nil:
			s.logger.Warn("Failed to cache comparison", zap.Int64("quotation_request_id", requestID), zap.Error(err))
		case !stored:
			s.logger.Debug("Comparison changed while loading, not cached", zap.Int64("quotation_request_id", requestID))
		}
	}
	return comparison, nil
}
