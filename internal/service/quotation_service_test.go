package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateQuotationRequestRequiresItems(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateQuotationRequest(context.Background(), f.customer.ID, &CreateQuotationRequestInput{})

	assertKind(t, apperr.KindValidation, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "items")
}

func TestCreateQuotationRequestCreatesPendingRequest(t *testing.T) {
	f := newFixture(t)

	req := f.createRequest(t,
		RequestItemInput{ProductID: 5, Quantity: 2, Specifications: "2.5mm"},
		RequestItemInput{ProductID: 6, Quantity: 100},
	)

	assert.Equal(t, models.QuotationStatusPending, req.Status)
	assert.Len(t, req.Items, 2)

	stored, err := f.svc.GetQuotationRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, "2.5mm", stored.Items[0].Specifications)

	require.Len(t, f.publisher.created, 1)
	assert.Equal(t, req.ID, f.publisher.created[0].QuotationRequestID)
	assert.Equal(t, 2, f.publisher.created[0].ItemCount)
}

func TestCreateQuotationRequestValidation(t *testing.T) {
	f := newFixture(t)
	yesterday := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input CreateQuotationRequestInput
		field string
	}{
		{
			name:  "non-positive quantity",
			input: CreateQuotationRequestInput{Items: []RequestItemInput{{ProductID: 5, Quantity: 0}}},
			field: "items[0].quantity",
		},
		{
			name:  "unknown product",
			input: CreateQuotationRequestInput{Items: []RequestItemInput{{ProductID: 5, Quantity: 1}, {ProductID: 99, Quantity: 1}}},
			field: "items[1].product_id",
		},
		{
			name:  "duplicate product",
			input: CreateQuotationRequestInput{Items: []RequestItemInput{{ProductID: 5, Quantity: 1}, {ProductID: 5, Quantity: 3}}},
			field: "items[1].product_id",
		},
		{
			name:  "required date in the past",
			input: CreateQuotationRequestInput{Items: []RequestItemInput{{ProductID: 5, Quantity: 1}}, RequiredDate: &yesterday},
			field: "required_date",
		},
		{
			name:  "quantity beyond storage range",
			input: CreateQuotationRequestInput{Items: []RequestItemInput{{ProductID: 5, Quantity: 3000000000}}},
			field: "items[0].quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateQuotationRequest(context.Background(), f.customer.ID, &tt.input)

			assertKind(t, apperr.KindValidation, err)
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}

	reqs, err := f.svc.ListCustomerRequests(context.Background(), f.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestCreateQuotationRequestCustomerChecks(t *testing.T) {
	f := newFixture(t)
	inactive := f.mem.AddCustomer("Dormant Ltd", false)
	input := &CreateQuotationRequestInput{Items: []RequestItemInput{{ProductID: 5, Quantity: 1}}}

	_, err := f.svc.CreateQuotationRequest(context.Background(), 404, input)
	assertKind(t, apperr.KindNotFound, err)

	_, err = f.svc.CreateQuotationRequest(context.Background(), inactive.ID, input)
	assertKind(t, apperr.KindForbidden, err)
}

func TestSubmitComputesTotalServerSide(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t,
		RequestItemInput{ProductID: 5, Quantity: 2},
		RequestItemInput{ProductID: 6, Quantity: 3},
	)

	resp := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3), priced(6, "4.35", 3, 1))

	assert.True(t, money("213.05").Equal(resp.TotalPrice), "got %s", resp.TotalPrice)
	assert.Equal(t, "North Supply", resp.DistributorName)
	require.Len(t, resp.Items, 2)
	assert.True(t, money("13.05").Equal(resp.Items[1].TotalPrice))

	require.Len(t, f.publisher.responses, 1)
	assert.Equal(t, models.EventTypeQuotationResponseSubmitted, f.publisher.responses[0].EventType)
	assert.Equal(t, f.customer.ID, f.publisher.responses[0].CustomerID)
}

func TestSubmitRejectsMalformedItems(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	tests := []struct {
		name  string
		items []ResponseItemInput
		field string
	}{
		{"no items", nil, "items"},
		{"negative price", []ResponseItemInput{priced(5, "-1.00", 2, 1)}, "items[0].unit_price"},
		{"sub-cent price", []ResponseItemInput{priced(5, "10.005", 2, 1)}, "items[0].unit_price"},
		{"zero quantity", []ResponseItemInput{priced(5, "10.00", 0, 1)}, "items[0].quantity"},
		{"negative delivery days", []ResponseItemInput{priced(5, "10.00", 2, -1)}, "items[0].delivery_days"},
		{"product outside request", []ResponseItemInput{priced(6, "10.00", 2, 1)}, "items[0].product_id"},
		{"price beyond storage range", []ResponseItemInput{priced(5, "10000000000000000.00", 2, 1)}, "items[0].unit_price"},
		{"seventeen digit price", []ResponseItemInput{priced(5, "99999999999999999.99", 2, 1)}, "items[0].unit_price"},
		{"line total overflow", []ResponseItemInput{priced(5, "9999999999999999.99", 2, 1)}, "items[0].total_price"},
		{"quantity beyond storage range", []ResponseItemInput{priced(5, "1.00", 3000000000, 1)}, "items[0].quantity"},
		{"delivery days beyond storage range", []ResponseItemInput{priced(5, "1.00", 2, 3000000000)}, "items[0].delivery_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitQuotationResponse(context.Background(), f.d1.ID, &SubmitQuotationResponseInput{
				QuotationRequestID: req.ID,
				Items:              tt.items,
			})

			assertKind(t, apperr.KindValidation, err)
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
	assert.Equal(t, 0, f.mem.CountResponses(req.ID, f.d1.ID))
}

func TestSubmitNegativeStockRejected(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	item := priced(5, "10.00", 2, 1)
	item.Stock = -3

	_, err := f.svc.SubmitQuotationResponse(context.Background(), f.d1.ID, &SubmitQuotationResponseInput{
		QuotationRequestID: req.ID,
		Items:              []ResponseItemInput{item},
	})

	assertKind(t, apperr.KindValidation, err)
}

func TestSubmitMissingRequestOrDistributor(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	_, err := f.svc.SubmitQuotationResponse(context.Background(), f.d1.ID, &SubmitQuotationResponseInput{
		QuotationRequestID: 999,
		Items:              []ResponseItemInput{priced(5, "10.00", 2, 1)},
	})
	assertKind(t, apperr.KindNotFound, err)

	_, err = f.svc.SubmitQuotationResponse(context.Background(), 999, &SubmitQuotationResponseInput{
		QuotationRequestID: req.ID,
		Items:              []ResponseItemInput{priced(5, "10.00", 2, 1)},
	})
	assertKind(t, apperr.KindNotFound, err)
}

func TestSubmitSecondResponseRejectedUpdateAllowed(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	first := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))

	_, err := f.svc.SubmitQuotationResponse(context.Background(), f.d1.ID, &SubmitQuotationResponseInput{
		QuotationRequestID: req.ID,
		Items:              []ResponseItemInput{priced(5, "80.00", 2, 3)},
	})
	assertKind(t, apperr.KindInvalidOperation, err)
	assert.ErrorIs(t, err, apperr.InvalidOperation(msgAlreadyResponded))

	updated, err := f.svc.UpdateQuotationResponse(context.Background(), first.ID, f.d1.ID, &UpdateQuotationResponseInput{
		Items: []ResponseItemInput{priced(5, "80.00", 2, 3)},
		Notes: "volume discount",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, 1, f.mem.CountResponses(req.ID, f.d1.ID))
}

func TestSubmitUniqueConstraintMapsToInvalidOperation(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))

	f.mem.HideExistingResponses = true
	_, err := f.svc.SubmitQuotationResponse(context.Background(), f.d1.ID, &SubmitQuotationResponseInput{
		QuotationRequestID: req.ID,
		Items:              []ResponseItemInput{priced(5, "90.00", 2, 3)},
	})

	assertKind(t, apperr.KindInvalidOperation, err)
	assert.ErrorIs(t, err, apperr.InvalidOperation(msgAlreadyResponded))
	assert.Equal(t, 1, f.mem.CountResponses(req.ID, f.d1.ID))
}

func TestConcurrentSubmitsLeaveOneResponse(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitQuotationResponse(context.Background(), f.d1.ID, &SubmitQuotationResponseInput{
				QuotationRequestID: req.ID,
				Items:              []ResponseItemInput{priced(5, "100.00", 2, 3)},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperr.KindOf(err) == apperr.KindInvalidOperation {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
	assert.Equal(t, 1, f.mem.CountResponses(req.ID, f.d1.ID))
}

func TestSubmitAgainstClosedRequest(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	require.NoError(t, f.svc.CancelQuotationRequest(context.Background(), req.ID, f.customer.ID))

	_, err := f.svc.SubmitQuotationResponse(context.Background(), f.d1.ID, &SubmitQuotationResponseInput{
		QuotationRequestID: req.ID,
		Items:              []ResponseItemInput{priced(5, "100.00", 2, 3)},
	})

	assertKind(t, apperr.KindInvalidOperation, err)
}

func TestUpdateRecomputesTotalAndReplacesItems(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t,
		RequestItemInput{ProductID: 5, Quantity: 2},
		RequestItemInput{ProductID: 6, Quantity: 10},
	)
	first := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))

	updated, err := f.svc.UpdateQuotationResponse(context.Background(), first.ID, f.d1.ID, &UpdateQuotationResponseInput{
		Items: []ResponseItemInput{priced(5, "97.50", 2, 2), priced(6, "4.10", 10, 1)},
	})
	require.NoError(t, err)

	assert.True(t, money("236.00").Equal(updated.TotalPrice), "got %s", updated.TotalPrice)
	assert.True(t, updated.SubmissionDate.After(first.SubmissionDate))

	stored, err := f.svc.GetQuotationResponse(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	sum := stored.Items[0].TotalPrice.Add(stored.Items[1].TotalPrice)
	assert.True(t, sum.Equal(stored.TotalPrice))

	require.Len(t, f.publisher.responses, 2)
	assert.Equal(t, models.EventTypeQuotationResponseUpdated, f.publisher.responses[1].EventType)
}

func TestUpdateErrorOrdering(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	resp := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))
	input := &UpdateQuotationResponseInput{Items: []ResponseItemInput{priced(5, "90.00", 2, 3)}}

	_, err := f.svc.UpdateQuotationResponse(context.Background(), 999, f.d1.ID, input)
	assertKind(t, apperr.KindNotFound, err)

	_, err = f.svc.UpdateQuotationResponse(context.Background(), resp.ID, f.d2.ID, input)
	assertKind(t, apperr.KindForbidden, err)

	_, err = f.svc.AcceptQuotation(context.Background(), resp.ID, f.customer.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateQuotationResponse(context.Background(), resp.ID, f.d2.ID, input)
	assertKind(t, apperr.KindForbidden, err)

	_, err = f.svc.UpdateQuotationResponse(context.Background(), resp.ID, f.d1.ID, input)
	assertKind(t, apperr.KindInvalidOperation, err)

	stored, err := f.svc.GetQuotationResponse(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.True(t, money("200.00").Equal(stored.TotalPrice))
}

func TestCancelQuotationRequest(t *testing.T) {
	f := newFixture(t)
	other := f.mem.AddCustomer("Other Co", true)
	req := f.createRequest(t)
	f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))

	assertKind(t, apperr.KindNotFound, f.svc.CancelQuotationRequest(context.Background(), 999, f.customer.ID))
	assertKind(t, apperr.KindForbidden, f.svc.CancelQuotationRequest(context.Background(), req.ID, other.ID))

	require.NoError(t, f.svc.CancelQuotationRequest(context.Background(), req.ID, f.customer.ID))

	stored, err := f.svc.GetQuotationRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuotationStatusCancelled, stored.Status)

	require.Len(t, f.publisher.cancelled, 1)
	assert.Equal(t, []int64{f.d1.ID}, f.publisher.cancelled[0].DistributorIDs)

	err = f.svc.CancelQuotationRequest(context.Background(), req.ID, f.customer.ID)
	assertKind(t, apperr.KindInvalidOperation, err)
	stored, err = f.svc.GetQuotationRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuotationStatusCancelled, stored.Status)
}

func TestCancelCompletedRequestFails(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	resp := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))
	_, err := f.svc.AcceptQuotation(context.Background(), resp.ID, f.customer.ID)
	require.NoError(t, err)

	err = f.svc.CancelQuotationRequest(context.Background(), req.ID, f.customer.ID)

	assertKind(t, apperr.KindInvalidOperation, err)
	stored, err := f.svc.GetQuotationRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuotationStatusCompleted, stored.Status)
	assert.Empty(t, f.publisher.cancelled)
}

func TestHasRespondedAndDistributorResponse(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	ctx := context.Background()

	responded, err := f.svc.HasDistributorResponded(ctx, req.ID, f.d1.ID)
	require.NoError(t, err)
	assert.False(t, responded)

	_, err = f.svc.GetDistributorResponse(ctx, req.ID, f.d1.ID)
	assertKind(t, apperr.KindNotFound, err)

	resp := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))

	responded, err = f.svc.HasDistributorResponded(ctx, req.ID, f.d1.ID)
	require.NoError(t, err)
	assert.True(t, responded)

	mine, err := f.svc.GetDistributorResponse(ctx, req.ID, f.d1.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, mine.ID)
	assert.Len(t, mine.Items, 1)

	responded, err = f.svc.HasDistributorResponded(ctx, req.ID, f.d2.ID)
	require.NoError(t, err)
	assert.False(t, responded)

	_, err = f.svc.HasDistributorResponded(ctx, 999, f.d1.ID)
	assertKind(t, apperr.KindNotFound, err)
}

func TestListDistributorRequests(t *testing.T) {
	f := newFixture(t)
	open := f.createRequest(t)
	answered := f.createRequest(t)
	cancelled := f.createRequest(t)
	resp := f.submit(t, answered.ID, f.d1.ID, priced(5, "100.00", 2, 3))
	require.NoError(t, f.svc.CancelQuotationRequest(context.Background(), cancelled.ID, f.customer.ID))
	_, err := f.svc.AcceptQuotation(context.Background(), resp.ID, f.customer.ID)
	require.NoError(t, err)

	views, err := f.svc.ListDistributorRequests(context.Background(), f.d1.ID)
	require.NoError(t, err)

	byID := map[int64]DistributorRequestView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	require.Len(t, byID, 2)
	assert.False(t, byID[open.ID].HasResponded)
	assert.True(t, byID[answered.ID].HasResponded)
	require.NotNil(t, byID[answered.ID].ResponseID)
	assert.Equal(t, resp.ID, *byID[answered.ID].ResponseID)
	assert.Equal(t, models.QuotationStatusCompleted, byID[answered.ID].Status)

	views, err = f.svc.ListDistributorRequests(context.Background(), f.d2.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, open.ID, views[0].ID)
}

func TestGetQuotationRequestItemsMissingRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetQuotationRequestItems(context.Background(), 42)

	assertKind(t, apperr.KindNotFound, err)
}

func TestSubmitRejectsOverflowingResponseTotal(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t, RequestItemInput{ProductID: 5, Quantity: 1}, RequestItemInput{ProductID: 6, Quantity: 1})

	_, err := f.svc.SubmitQuotationResponse(context.Background(), f.d1.ID, &SubmitQuotationResponseInput{
		QuotationRequestID: req.ID,
		Items: []ResponseItemInput{
			priced(5, "6000000000000000.00", 1, 1),
			priced(6, "6000000000000000.00", 1, 1),
		},
	})

	assertKind(t, apperr.KindValidation, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "total_price")
	assert.Equal(t, 0, f.mem.CountResponses(req.ID, f.d1.ID))
}

func TestUpdateRejectsOverflowingPrice(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	resp := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))

	_, err := f.svc.UpdateQuotationResponse(context.Background(), resp.ID, f.d1.ID, &UpdateQuotationResponseInput{
		Items: []ResponseItemInput{priced(5, "99999999999999999.99", 2, 1)},
	})

	assertKind(t, apperr.KindValidation, err)
	stored, err := f.svc.GetQuotationResponse(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.True(t, money("200.00").Equal(stored.TotalPrice))
}

// staleCatalog reports every product as present, as if one was deleted
// between the catalog check and the insert.
type staleCatalog struct {
	*storetest.Memory
}

func (staleCatalog) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	products := make([]models.Product, len(ids))
	for i, id := range ids {
		products[i] = models.Product{ID: id}
	}
	return products, nil
}

func TestCreateRequestForVanishedProduct(t *testing.T) {
	f := newFixture(t)
	svc := NewQuotationService(staleCatalog{f.mem}, nil, nil, nil, QuotationConfig{})

	_, err := svc.CreateQuotationRequest(context.Background(), f.customer.ID, &CreateQuotationRequestInput{
		Items: []RequestItemInput{{ProductID: 99, Quantity: 1}},
	})

	assertKind(t, apperr.KindValidation, err)
}
