package service

import (
	"context"
	"testing"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderVisibility(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	resp := f.submit(t, req.ID, f.d1.ID, priced(5, "100.00", 2, 3))
	f.submit(t, req.ID, f.d2.ID, priced(5, "120.00", 2, 3))
	order, err := f.svc.AcceptQuotation(context.Background(), resp.ID, f.customer.ID)
	require.NoError(t, err)
	orders := NewOrderService(f.mem)

	tests := []struct {
		name   string
		caller identity.Caller
		kind   apperr.Kind
	}{
		{"owning customer", identity.Caller{Role: identity.RoleCustomer, ID: f.customer.ID}, ""},
		{"supplying distributor", identity.Caller{Role: identity.RoleDistributor, ID: f.d1.ID}, ""},
		{"admin", identity.Caller{Role: identity.RoleAdmin, ID: 1}, ""},
		{"losing distributor", identity.Caller{Role: identity.RoleDistributor, ID: f.d2.ID}, apperr.KindForbidden},
		{"other customer", identity.Caller{Role: identity.RoleCustomer, ID: f.customer.ID + 100}, apperr.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := orders.GetOrder(context.Background(), order.ID, tt.caller)
			if tt.kind == "" {
				require.NoError(t, err)
				assert.Equal(t, order.ID, got.ID)
				assert.Len(t, got.Items, 1)
				return
			}
			assertKind(t, tt.kind, err)
		})
	}

	_, err = orders.GetOrder(context.Background(), 999, identity.Caller{Role: identity.RoleAdmin, ID: 1})
	assertKind(t, apperr.KindNotFound, err)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	resp := f.submit(t, req.ID, f.d2.ID, priced(5, "100.00", 2, 3))
	_, err := f.svc.AcceptQuotation(context.Background(), resp.ID, f.customer.ID)
	require.NoError(t, err)
	orders := NewOrderService(f.mem)

	mine, err := orders.ListOrders(context.Background(), identity.Caller{Role: identity.RoleCustomer, ID: f.customer.ID})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	supplied, err := orders.ListOrders(context.Background(), identity.Caller{Role: identity.RoleDistributor, ID: f.d2.ID})
	require.NoError(t, err)
	assert.Len(t, supplied, 1)

	none, err := orders.ListOrders(context.Background(), identity.Caller{Role: identity.RoleDistributor, ID: f.d1.ID})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = orders.ListOrders(context.Background(), identity.Caller{Role: identity.RoleAdmin, ID: 1})
	assertKind(t, apperr.KindForbidden, err)
}
