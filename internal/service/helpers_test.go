package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/store/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	created   []*models.QuotationRequestCreatedEvent
	responses []*models.QuotationResponseEvent
	accepted  []*models.QuotationAcceptedEvent
	cancelled []*models.QuotationCancelledEvent
}

func (p *recordingPublisher) PublishQuotationRequestCreated(_ context.Context, e *models.QuotationRequestCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *recordingPublisher) PublishQuotationResponse(_ context.Context, e *models.QuotationResponseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, e)
	return nil
}

func (p *recordingPublisher) PublishQuotationAccepted(_ context.Context, e *models.QuotationAcceptedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accepted = append(p.accepted, e)
	return nil
}

func (p *recordingPublisher) PublishQuotationCancelled(_ context.Context, e *models.QuotationCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, e)
	return nil
}

// steppingClock returns a time one second later on every call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

type fixture struct {
	mem       *storetest.Memory
	svc       *QuotationService
	publisher *recordingPublisher
	customer  models.Customer
	d1, d2    models.Distributor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := storetest.NewMemory()
	f := &fixture{
		mem:       mem,
		publisher: &recordingPublisher{},
		customer:  mem.AddCustomer("Acme Retail", true),
		d1:        mem.AddDistributor("North Supply", true),
		d2:        mem.AddDistributor("South Wholesale", true),
	}
	mem.AddProduct(5, "Copper wire", "95.00")
	mem.AddProduct(6, "Cable ties", "4.50")

	f.svc = NewQuotationService(mem, nil, nil, f.publisher, QuotationConfig{})
	f.svc.now = steppingClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return f
}

// withRedis backs the comparison cache and accept lock with miniredis.
func (f *fixture) withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisclient.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	f.svc.cache = client
	f.svc.locker = client
	return mr
}

func (f *fixture) createRequest(t *testing.T, items ...RequestItemInput) *models.QuotationRequest {
	t.Helper()
	if len(items) == 0 {
		items = []RequestItemInput{{ProductID: 5, Quantity: 2}}
	}
	req, err := f.svc.CreateQuotationRequest(context.Background(), f.customer.ID, &CreateQuotationRequestInput{
		Items:           items,
		DeliveryAddress: "1 Harbour Road",
		ContactPhone:    "+62 811 000 000",
	})
	require.NoError(t, err)
	return req
}

func priced(productID int64, unitPrice string, qty, deliveryDays int) ResponseItemInput {
	return ResponseItemInput{
		ProductID:    productID,
		UnitPrice:    decimal.RequireFromString(unitPrice),
		Quantity:     qty,
		Stock:        100,
		DeliveryDays: deliveryDays,
	}
}

func (f *fixture) submit(t *testing.T, requestID, distributorID int64, items ...ResponseItemInput) *models.QuotationResponse {
	t.Helper()
	resp, err := f.svc.SubmitQuotationResponse(context.Background(), distributorID, &SubmitQuotationResponseInput{
		QuotationRequestID: requestID,
		Items:              items,
	})
	require.NoError(t, err)
	return resp
}

func assertKind(t *testing.T, want apperr.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, apperr.KindOf(err), "unexpected error: %v", err)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
