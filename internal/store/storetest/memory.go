// Package storetest provides an in-memory store.Repository for tests.
// Transactions are serialized behind one mutex and rolled back by restoring
// a snapshot, which gives the serializable behaviour the service relies on.
package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/shopspring/decimal"
)

type state struct {
	customers     map[int64]models.Customer
	distributors  map[int64]models.Distributor
	products      map[int64]models.Product
	requests      map[int64]models.QuotationRequest
	requestItems  map[int64]models.QuotationRequestItem
	responses     map[int64]models.QuotationResponse
	responseItems map[int64]models.QuotationResponseItem
	orders        map[int64]models.Order
	orderItems    map[int64]models.OrderItem
	notifications map[int64]models.Notification
	processed     map[string]string
	seq           map[string]int64
}

func newState() *state {
	return &state{
		customers:     map[int64]models.Customer{},
		distributors:  map[int64]models.Distributor{},
		products:      map[int64]models.Product{},
		requests:      map[int64]models.QuotationRequest{},
		requestItems:  map[int64]models.QuotationRequestItem{},
		responses:     map[int64]models.QuotationResponse{},
		responseItems: map[int64]models.QuotationResponseItem{},
		orders:        map[int64]models.Order{},
		orderItems:    map[int64]models.OrderItem{},
		notifications: map[int64]models.Notification{},
		processed:     map[string]string{},
		seq:           map[string]int64{},
	}
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *state) clone() *state {
	return &state{
		customers:     copyMap(s.customers),
		distributors:  copyMap(s.distributors),
		products:      copyMap(s.products),
		requests:      copyMap(s.requests),
		requestItems:  copyMap(s.requestItems),
		responses:     copyMap(s.responses),
		responseItems: copyMap(s.responseItems),
		orders:        copyMap(s.orders),
		orderItems:    copyMap(s.orderItems),
		notifications: copyMap(s.notifications),
		processed:     copyMap(s.processed),
		seq:           copyMap(s.seq),
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// Memory is an in-memory store.Repository.
type Memory struct {
	mu   *sync.Mutex
	st   **state
	inTx bool

	// HideExistingResponses makes GetQuotationResponseByDistributor report
	// ErrNotFound, so writers fall through to the unique constraint.
	HideExistingResponses bool
}

var _ store.Repository = (*Memory)(nil)

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	st := newState()
	return &Memory{mu: &sync.Mutex{}, st: &st}
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) s() *state {
	return *m.st
}

// WithTx runs fn while holding the repository lock; fn's writes are discarded if it fails.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context, repo store.Repository) error) error {
	if m.inTx {
		return fn(ctx, m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.s().clone()
	tx := &Memory{mu: m.mu, st: m.st, inTx: true, HideExistingResponses: m.HideExistingResponses}
	if err := fn(ctx, tx); err != nil {
		*m.st = snapshot
		return err
	}
	return nil
}

// Seeding helpers

func (m *Memory) AddCustomer(name string, active bool) models.Customer {
	defer m.lock()()
	c := models.Customer{ID: m.s().next("customers"), Name: name, IsActive: active, CreatedAt: time.Now()}
	m.s().customers[c.ID] = c
	return c
}

func (m *Memory) AddDistributor(name string, active bool) models.Distributor {
	defer m.lock()()
	d := models.Distributor{ID: m.s().next("distributors"), Name: name, IsActive: active, CreatedAt: time.Now()}
	m.s().distributors[d.ID] = d
	return d
}

// AddProduct stores a product under an explicit id.
func (m *Memory) AddProduct(id int64, name string, price string) models.Product {
	defer m.lock()()
	p := models.Product{ID: id, SKU: fmt.Sprintf("SKU-%03d", id), Name: name, Price: decimal.RequireFromString(price), CreatedAt: time.Now()}
	m.s().products[id] = p
	return p
}

// SetProductPrice changes a catalog price.
func (m *Memory) SetProductPrice(id int64, price string) {
	defer m.lock()()
	p := m.s().products[id]
	p.Price = decimal.RequireFromString(price)
	m.s().products[id] = p
}

// CountOrdersForRequest returns how many orders reference a request.
func (m *Memory) CountOrdersForRequest(requestID int64) int {
	defer m.lock()()
	n := 0
	for _, o := range m.s().orders {
		if o.QuotationRequestID == requestID {
			n++
		}
	}
	return n
}

// CountResponses returns how many responses a distributor has for a request.
func (m *Memory) CountResponses(requestID, distributorID int64) int {
	defer m.lock()()
	n := 0
	for _, r := range m.s().responses {
		if r.QuotationRequestID == requestID && r.DistributorID == distributorID {
			n++
		}
	}
	return n
}

// Catalog

func (m *Memory) GetCustomerByID(_ context.Context, id int64) (*models.Customer, error) {
	defer m.lock()()
	c, ok := m.s().customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (m *Memory) GetDistributorByID(_ context.Context, id int64) (*models.Distributor, error) {
	defer m.lock()()
	d, ok := m.s().distributors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (m *Memory) ListActiveDistributorIDs(_ context.Context) ([]int64, error) {
	defer m.lock()()
	var ids []int64
	for id, d := range m.s().distributors {
		if d.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	defer m.lock()()
	seen := map[int64]bool{}
	products := []models.Product{}
	for _, id := range ids {
		if p, ok := m.s().products[id]; ok && !seen[id] {
			seen[id] = true
			products = append(products, p)
		}
	}
	return products, nil
}

// Quotation requests

func (m *Memory) CreateQuotationRequest(_ context.Context, req *models.QuotationRequest) error {
	defer m.lock()()
	if _, ok := m.s().customers[req.CustomerID]; !ok {
		return fmt.Errorf("%w: quotation_requests_customer_id_fkey", store.ErrReference)
	}
	now := time.Now()
	req.ID = m.s().next("quotation_requests")
	req.Version = 1
	req.CreatedAt = now
	req.UpdatedAt = now
	stored := *req
	stored.Items = nil
	m.s().requests[req.ID] = stored
	return nil
}

func (m *Memory) CreateQuotationRequestItem(_ context.Context, item *models.QuotationRequestItem) error {
	defer m.lock()()
	if _, ok := m.s().requests[item.QuotationRequestID]; !ok {
		return fmt.Errorf("%w: quotation_request_items_quotation_request_id_fkey", store.ErrReference)
	}
	if _, ok := m.s().products[item.ProductID]; !ok {
		return fmt.Errorf("%w: quotation_request_items_product_id_fkey", store.ErrReference)
	}
	item.ID = m.s().next("quotation_request_items")
	m.s().requestItems[item.ID] = *item
	return nil
}

func (m *Memory) GetQuotationRequestByID(_ context.Context, id int64) (*models.QuotationRequest, error) {
	defer m.lock()()
	r, ok := m.s().requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (m *Memory) LockQuotationRequest(ctx context.Context, id int64) (*models.QuotationRequest, error) {
	return m.GetQuotationRequestByID(ctx, id)
}

func (m *Memory) GetQuotationRequestItems(_ context.Context, requestID int64) ([]models.QuotationRequestItem, error) {
	defer m.lock()()
	items := []models.QuotationRequestItem{}
	for _, it := range m.s().requestItems {
		if it.QuotationRequestID == requestID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func sortRequestsNewestFirst(reqs []models.QuotationRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].RequestDate.Equal(reqs[j].RequestDate) {
			return reqs[i].RequestDate.After(reqs[j].RequestDate)
		}
		return reqs[i].ID > reqs[j].ID
	})
}

func (m *Memory) ListQuotationRequestsByCustomer(_ context.Context, customerID int64) ([]models.QuotationRequest, error) {
	defer m.lock()()
	reqs := []models.QuotationRequest{}
	for _, r := range m.s().requests {
		if r.CustomerID == customerID {
			reqs = append(reqs, r)
		}
	}
	sortRequestsNewestFirst(reqs)
	return reqs, nil
}

func (m *Memory) ListQuotationRequestsForDistributor(_ context.Context, distributorID int64) ([]models.DistributorQuotationRequest, error) {
	defer m.lock()()
	responded := map[int64]int64{}
	for _, resp := range m.s().responses {
		if resp.DistributorID == distributorID {
			responded[resp.QuotationRequestID] = resp.ID
		}
	}
	reqs := []models.QuotationRequest{}
	for _, r := range m.s().requests {
		if _, ok := responded[r.ID]; ok || r.Status == models.QuotationStatusPending {
			reqs = append(reqs, r)
		}
	}
	sortRequestsNewestFirst(reqs)

	out := make([]models.DistributorQuotationRequest, 0, len(reqs))
	for _, r := range reqs {
		view := models.DistributorQuotationRequest{QuotationRequest: r}
		if id, ok := responded[r.ID]; ok {
			view.ResponseID = sql.NullInt64{Int64: id, Valid: true}
		}
		out = append(out, view)
	}
	return out, nil
}

func (m *Memory) UpdateQuotationRequestStatus(_ context.Context, id, version int64, status string) error {
	defer m.lock()()
	r, ok := m.s().requests[id]
	if !ok || r.Version != version || r.Status != models.QuotationStatusPending {
		return store.ErrConflict
	}
	r.Status = status
	r.Version++
	r.UpdatedAt = time.Now()
	m.s().requests[id] = r
	return nil
}

// Quotation responses

func (m *Memory) withDistributorName(r models.QuotationResponse) models.QuotationResponse {
	r.DistributorName = m.s().distributors[r.DistributorID].Name
	return r
}

func (m *Memory) CreateQuotationResponse(_ context.Context, resp *models.QuotationResponse) error {
	defer m.lock()()
	if _, ok := m.s().requests[resp.QuotationRequestID]; !ok {
		return fmt.Errorf("%w: quotation_responses_quotation_request_id_fkey", store.ErrReference)
	}
	if _, ok := m.s().distributors[resp.DistributorID]; !ok {
		return fmt.Errorf("%w: quotation_responses_distributor_id_fkey", store.ErrReference)
	}
	for _, existing := range m.s().responses {
		if existing.QuotationRequestID == resp.QuotationRequestID && existing.DistributorID == resp.DistributorID {
			return fmt.Errorf("%w: uq_quotation_responses_request_distributor", store.ErrDuplicate)
		}
	}
	now := time.Now()
	resp.ID = m.s().next("quotation_responses")
	resp.CreatedAt = now
	resp.UpdatedAt = now
	stored := *resp
	stored.Items = nil
	m.s().responses[resp.ID] = stored
	return nil
}

func (m *Memory) UpdateQuotationResponse(_ context.Context, resp *models.QuotationResponse) error {
	defer m.lock()()
	existing, ok := m.s().responses[resp.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.TotalPrice = resp.TotalPrice
	existing.SubmissionDate = resp.SubmissionDate
	existing.Notes = resp.Notes
	existing.UpdatedAt = time.Now()
	m.s().responses[resp.ID] = existing
	return nil
}

func (m *Memory) GetQuotationResponseByID(_ context.Context, id int64) (*models.QuotationResponse, error) {
	defer m.lock()()
	r, ok := m.s().responses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r = m.withDistributorName(r)
	return &r, nil
}

func (m *Memory) GetQuotationResponseByDistributor(_ context.Context, requestID, distributorID int64) (*models.QuotationResponse, error) {
	defer m.lock()()
	if m.HideExistingResponses {
		return nil, store.ErrNotFound
	}
	for _, r := range m.s().responses {
		if r.QuotationRequestID == requestID && r.DistributorID == distributorID {
			r = m.withDistributorName(r)
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) ListQuotationResponsesByRequest(_ context.Context, requestID int64) ([]models.QuotationResponse, error) {
	defer m.lock()()
	resps := []models.QuotationResponse{}
	for _, r := range m.s().responses {
		if r.QuotationRequestID == requestID {
			resps = append(resps, m.withDistributorName(r))
		}
	}
	sort.Slice(resps, func(i, j int) bool { return resps[i].ID < resps[j].ID })
	return resps, nil
}

func (m *Memory) CreateQuotationResponseItem(_ context.Context, item *models.QuotationResponseItem) error {
	defer m.lock()()
	if _, ok := m.s().responses[item.QuotationResponseID]; !ok {
		return fmt.Errorf("%w: quotation_response_items_quotation_response_id_fkey", store.ErrReference)
	}
	item.ID = m.s().next("quotation_response_items")
	m.s().responseItems[item.ID] = *item
	return nil
}

func (m *Memory) DeleteQuotationResponseItems(_ context.Context, responseID int64) error {
	defer m.lock()()
	for id, it := range m.s().responseItems {
		if it.QuotationResponseID == responseID {
			delete(m.s().responseItems, id)
		}
	}
	return nil
}

func (m *Memory) GetQuotationResponseItems(_ context.Context, responseID int64) ([]models.QuotationResponseItem, error) {
	defer m.lock()()
	items := []models.QuotationResponseItem{}
	for _, it := range m.s().responseItems {
		if it.QuotationResponseID == responseID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// Orders

func (m *Memory) CreateOrder(_ context.Context, order *models.Order) error {
	defer m.lock()()
	for _, o := range m.s().orders {
		if o.QuotationRequestID == order.QuotationRequestID {
			return fmt.Errorf("%w: uq_orders_quotation_request", store.ErrDuplicate)
		}
	}
	now := time.Now()
	order.ID = m.s().next("orders")
	order.CreatedAt = now
	order.UpdatedAt = now
	stored := *order
	stored.Items = nil
	m.s().orders[order.ID] = stored
	return nil
}

func (m *Memory) CreateOrderItem(_ context.Context, item *models.OrderItem) error {
	defer m.lock()()
	if _, ok := m.s().orders[item.OrderID]; !ok {
		return fmt.Errorf("%w: order_items_order_id_fkey", store.ErrReference)
	}
	item.ID = m.s().next("order_items")
	m.s().orderItems[item.ID] = *item
	return nil
}

func (m *Memory) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	defer m.lock()()
	o, ok := m.s().orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (m *Memory) GetOrderItemsByOrderID(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	defer m.lock()()
	items := []models.OrderItem{}
	for _, it := range m.s().orderItems {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *Memory) listOrders(match func(models.Order) bool) []models.Order {
	orders := []models.Order{}
	for _, o := range m.s().orders {
		if match(o) {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders
}

func (m *Memory) ListOrdersByCustomer(_ context.Context, customerID int64) ([]models.Order, error) {
	defer m.lock()()
	return m.listOrders(func(o models.Order) bool { return o.CustomerID == customerID }), nil
}

func (m *Memory) ListOrdersByDistributor(_ context.Context, distributorID int64) ([]models.Order, error) {
	defer m.lock()()
	return m.listOrders(func(o models.Order) bool { return o.DistributorID == distributorID }), nil
}

// Notifications

func (m *Memory) CreateNotification(_ context.Context, n *models.Notification) error {
	defer m.lock()()
	n.ID = m.s().next("notifications")
	n.CreatedAt = time.Now()
	m.s().notifications[n.ID] = *n
	return nil
}

func (m *Memory) ListNotifications(_ context.Context, role string, recipientID int64) ([]models.Notification, error) {
	defer m.lock()()
	out := []models.Notification{}
	for _, n := range m.s().notifications {
		if n.RecipientRole == role && n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) MarkNotificationRead(_ context.Context, id int64, role string, recipientID int64) error {
	defer m.lock()()
	n, ok := m.s().notifications[id]
	if !ok || n.RecipientRole != role || n.RecipientID != recipientID {
		return store.ErrNotFound
	}
	if n.ReadAt == nil {
		now := time.Now()
		n.ReadAt = &now
	}
	m.s().notifications[id] = n
	return nil
}

func (m *Memory) ClaimEvent(_ context.Context, eventID, eventType string) (bool, error) {
	defer m.lock()()
	if _, ok := m.s().processed[eventID]; ok {
		return false, nil
	}
	m.s().processed[eventID] = eventType
	return true, nil
}
