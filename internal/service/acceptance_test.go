package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/identity"
	"marketplace-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The worked example: two offers, the cheaper one wins and is locked into an order.
func TestQuotationScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.createRequest(t, RequestItemInput{ProductID: 5, Quantity: 2})
	r1 := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))
	r2 := f.submit(t, req.ID, f.d2.ID, priced(5, "90.00", 2, 5))
	assert.True(t, money("200.00").Equal(r1.TotalPrice))
	assert.True(t, money("180.00").Equal(r2.TotalPrice))

	comparison, err := f.svc.GetQuotationComparison(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, comparison.Responses, 2)
	assert.Equal(t, r2.ID, comparison.Responses[0].ResponseID)
	assert.Equal(t, 1, comparison.Responses[0].Rank)
	assert.Equal(t, r1.ID, comparison.Responses[1].ResponseID)

	order, err := f.svc.AcceptQuotation(ctx, r2.ID, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, f.customer.ID, order.CustomerID)
	assert.Equal(t, f.d2.ID, order.DistributorID)
	assert.True(t, money("180.00").Equal(order.TotalAmount))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(5), order.Items[0].ProductID)
	assert.True(t, money("90.00").Equal(order.Items[0].UnitPrice))
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, money("180.00").Equal(order.Items[0].TotalPrice))

	stored, err := f.svc.GetQuotationRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuotationStatusCompleted, stored.Status)

	_, err = f.svc.AcceptQuotation(ctx, r1.ID, f.customer.ID)
	assertKind(t, apperr.KindInvalidOperation, err)
	assert.Equal(t, 1, f.mem.CountOrdersForRequest(req.ID))

	require.Len(t, f.publisher.accepted, 1)
	assert.Equal(t, order.ID, f.publisher.accepted[0].OrderID)
	assert.Equal(t, []int64{f.d1.ID}, f.publisher.accepted[0].OtherDistributorIDs)
}

func TestAcceptRejectsOtherCustomer(t *testing.T) {
	f := newFixture(t)
	intruder := f.mem.AddCustomer("Intruder", true)
	req := f.createRequest(t)
	resp := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))

	for _, customerID := range []int64{intruder.ID, 777} {
		_, err := f.svc.AcceptQuotation(context.Background(), resp.ID, customerID)
		assertKind(t, apperr.KindForbidden, err)
	}
	assert.Equal(t, 0, f.mem.CountOrdersForRequest(req.ID))
}

func TestAcceptMissingResponse(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AcceptQuotation(context.Background(), 31337, f.customer.ID)

	assertKind(t, apperr.KindNotFound, err)
}

func TestAcceptCancelledRequest(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	resp := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))
	require.NoError(t, f.svc.CancelQuotationRequest(context.Background(), req.ID, f.customer.ID))

	_, err := f.svc.AcceptQuotation(context.Background(), resp.ID, f.customer.ID)

	assertKind(t, apperr.KindInvalidOperation, err)
	assert.Equal(t, 0, f.mem.CountOrdersForRequest(req.ID))
}

func TestOrderKeepsQuotedPrices(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	resp := f.submit(t, req.ID, f.d1.ID, priced(5, "88.40", 2, 3))
	order, err := f.svc.AcceptQuotation(context.Background(), resp.ID, f.customer.ID)
	require.NoError(t, err)

	f.mem.SetProductPrice(5, "250.00")

	orders := NewOrderService(f.mem)
	stored, err := orders.GetOrder(context.Background(), order.ID, identity.Caller{Role: identity.RoleCustomer, ID: f.customer.ID})
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.True(t, money("88.40").Equal(stored.Items[0].UnitPrice))
	assert.True(t, money("176.80").Equal(stored.TotalAmount))
}

func runConcurrentAccepts(t *testing.T, f *fixture, responseIDs []int64) (winners, losers int) {
	t.Helper()
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, id := range responseIDs {
		wg.Add(1)
		go func(responseID int64) {
			defer wg.Done()
			_, err := f.svc.AcceptQuotation(context.Background(), responseID, f.customer.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				return
			}
			assert.Equal(t, apperr.KindInvalidOperation, apperr.KindOf(err), "unexpected error: %v", err)
			losers++
		}(id)
	}
	wg.Wait()
	return winners, losers
}

func TestConcurrentAcceptsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	r1 := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))
	r2 := f.submit(t, req.ID, f.d2.ID, priced(5, "90.00", 2, 5))

	winners, losers := runConcurrentAccepts(t, f, []int64{r1.ID, r2.ID, r1.ID, r2.ID, r2.ID})

	assert.Equal(t, 1, winners)
	assert.Equal(t, 4, losers)
	assert.Equal(t, 1, f.mem.CountOrdersForRequest(req.ID))
}

func TestConcurrentAcceptsWithRedisLock(t *testing.T) {
	f := newFixture(t)
	mr := f.withRedis(t)
	req := f.createRequest(t)
	r1 := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))
	r2 := f.submit(t, req.ID, f.d2.ID, priced(5, "90.00", 2, 5))

	winners, losers := runConcurrentAccepts(t, f, []int64{r1.ID, r2.ID, r1.ID, r2.ID})

	assert.Equal(t, 1, winners)
	assert.Equal(t, 3, losers)
	assert.Equal(t, 1, f.mem.CountOrdersForRequest(req.ID))
	assert.False(t, mr.Exists("lock:"+acceptLockKey(req.ID)), "accept lock must be released")
}

func TestAcceptBlockedWhileLockHeld(t *testing.T) {
	f := newFixture(t)
	mr := f.withRedis(t)
	req := f.createRequest(t)
	resp := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))
	require.NoError(t, mr.Set("lock:"+acceptLockKey(req.ID), "someone-else"))

	_, err := f.svc.AcceptQuotation(context.Background(), resp.ID, f.customer.ID)

	assertKind(t, apperr.KindInvalidOperation, err)
	assert.Equal(t, 0, f.mem.CountOrdersForRequest(req.ID))
}

type unavailableLocker struct{}

func (unavailableLocker) AcquireLock(context.Context, string, time.Duration) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (unavailableLocker) ReleaseLock(context.Context, string, string) error {
	return errors.New("connection refused")
}

func TestAcceptProceedsWhenLockBackendDown(t *testing.T) {
	f := newFixture(t)
	f.svc.locker = unavailableLocker{}
	req := f.createRequest(t)
	resp := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))

	order, err := f.svc.AcceptQuotation(context.Background(), resp.ID, f.customer.ID)

	require.NoError(t, err)
	assert.Equal(t, resp.ID, order.QuotationResponseID)
}
