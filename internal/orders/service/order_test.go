package service

import (
	"context"
	"errors"
	"testing"
	"time"

	orderserrors "teamup/internal/orders/errors"
	productserrors "teamup/internal/products/errors"
	usererrors "teamup/internal/users/errors"
	"teamup/pkg/auth"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	apperrors "teamup/pkg/errors"
	"teamup/pkg/events"
	"teamup/pkg/logger"
	"teamup/pkg/model"
	"teamup/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	batID    = "64b7f0c2e4b0a1a2b3c4d0a1"
	ballID   = "64b7f0c2e4b0a1a2b3c4d0a2"
	gloveID  = "64b7f0c2e4b0a1a2b3c4d0a3"
	orderID  = "64b7f0c2e4b0a1a2b3c4d0f1"
	sellerID = "64b7f0c2e4b0a1a2b3c4d555"
	riderID  = "64b7f0c2e4b0a1a2b3c4d666"
)

var (
	buyer    = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d111", Role: model.RolePlayer}
	stranger = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d222", Role: model.RoleUser}
	admin    = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d333", Role: model.RoleAdmin}
	seller   = &auth.Principal{UserID: sellerID, Role: model.RoleSeller}
	rider    = &auth.Principal{UserID: riderID, Role: model.RoleDelivery}
)

// fakeProducts is an in-memory catalogue whose stock the fake transaction
// snapshots and restores on failure.
type fakeProducts struct {
	items       map[string]*model.Product
	reserveErrs map[string]error
	restored    map[string]int
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{
		items: map[string]*model.Product{
			batID:   {ID: batID, Name: "Cricket Bat", Price: model.MoneyFromFloat(49.99), Stock: 5, SellerID: sellerID},
			ballID:  {ID: ballID, Name: "Cricket Ball", Price: model.MoneyFromFloat(7.5), Stock: 20, SellerID: sellerID},
			gloveID: {ID: gloveID, Name: "Batting Gloves", Price: model.MoneyFromFloat(25), Stock: 1, SellerID: "someone-else"},
		},
		reserveErrs: map[string]error{},
		restored:    map[string]int{},
	}
}

func (f *fakeProducts) FindByID(ctx context.Context, id string) (*model.Product, error) {
	p, ok := f.items[id]
	if !ok {
		return nil, productserrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) ReserveStock(ctx context.Context, id string, qty int) error {
	if err := f.reserveErrs[id]; err != nil {
		return err
	}
	p, ok := f.items[id]
	if !ok {
		return productserrors.ErrNotFound
	}
	if p.Stock < qty {
		return productserrors.ErrInsufficientStock
	}
	p.Stock -= qty
	return nil
}

func (f *fakeProducts) RestoreStock(ctx context.Context, id string, qty int) error {
	p, ok := f.items[id]
	if !ok {
		return productserrors.ErrNotFound
	}
	p.Stock += qty
	f.restored[id] += qty
	return nil
}

func (f *fakeProducts) FindIDsBySeller(ctx context.Context, sellerID string) ([]string, error) {
	var ids []string
	for id, p := range f.items {
		if p.SellerID == sellerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeProducts) stock() map[string]int {
	s := map[string]int{}
	for id, p := range f.items {
		s[id] = p.Stock
	}
	return s
}

type fakeTx struct {
	products *fakeProducts
	repo     *memoryOrderRepo
}

func (t *fakeTx) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	stock := t.products.stock()
	orders := t.repo.snapshot()
	if err := fn(ctx); err != nil {
		for id, s := range stock {
			t.products.items[id].Stock = s
		}
		t.repo.orders = orders
		return err
	}
	return nil
}

// retryingTx commits nothing from the first run of the callback and runs it
// again, as the driver does after a transient commit error.
type retryingTx struct {
	products *fakeProducts
	repo     *memoryOrderRepo
}

func (t *retryingTx) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	stock := t.products.stock()
	orders := t.repo.snapshot()
	if err := fn(ctx); err != nil {
		return err
	}
	for id, s := range stock {
		t.products.items[id].Stock = s
	}
	t.repo.orders = orders
	return fn(ctx)
}

type memoryOrderRepo struct {
	orders map[string]model.Order
	// createdWith records the ID each Create call was handed.
	createdWith []string
}

func (m *memoryOrderRepo) snapshot() map[string]model.Order {
	cp := make(map[string]model.Order, len(m.orders))
	for k, v := range m.orders {
		cp[k] = v
	}
	return cp
}

func (m *memoryOrderRepo) Create(ctx context.Context, order *model.Order) error {
	m.createdWith = append(m.createdWith, order.ID)
	if order.ID != "" {
		return errors.New("duplicate key: order already has an ID")
	}
	order.ID = orderID
	m.orders[order.ID] = *order
	return nil
}

func (m *memoryOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, orderserrors.ErrNotFound
	}
	return &o, nil
}

func (m *memoryOrderRepo) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Order, error) {
	var out []*model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			o := o
			out = append(out, &o)
		}
	}
	return out, nil
}

func (m *memoryOrderRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	orders, _ := m.FindByUser(ctx, userID, 0, 0)
	return int64(len(orders)), nil
}

func (m *memoryOrderRepo) filter(keep func(model.Order) bool) []*model.Order {
	out := []*model.Order{}
	for _, o := range m.orders {
		if keep(o) {
			o := o
			out = append(out, &o)
		}
	}
	return out
}

func (m *memoryOrderRepo) FindByProducts(ctx context.Context, productIDs []string, limit int, offset int64) ([]*model.Order, error) {
	return m.filter(func(o model.Order) bool {
		for _, item := range o.Items {
			for _, id := range productIDs {
				if item.ProductID == id {
					return true
				}
			}
		}
		return false
	}), nil
}

func (m *memoryOrderRepo) CountByProducts(ctx context.Context, productIDs []string) (int64, error) {
	orders, _ := m.FindByProducts(ctx, productIDs, 0, 0)
	return int64(len(orders)), nil
}

func (m *memoryOrderRepo) FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Order, error) {
	return m.filter(func(o model.Order) bool { return status == "" || o.Status == status }), nil
}

func (m *memoryOrderRepo) CountAll(ctx context.Context, status string) (int64, error) {
	orders, _ := m.FindAll(ctx, status, 0, 0)
	return int64(len(orders)), nil
}

func (m *memoryOrderRepo) Update(ctx context.Context, id, fromStatus string, set bson.M) (*model.Order, error) {
	o, ok := m.orders[id]
	if !ok || o.Status != fromStatus {
		return nil, orderserrors.ErrStaleStatus
	}
	for k, v := range set {
		switch k {
		case "status":
			o.Status = v.(string)
		case "cancel_reason":
			o.CancelReason = v.(string)
		case "cancelled_at":
			at := v.(time.Time)
			o.CancelledAt = &at
		case "delivery_assigned":
			o.DeliveryAssigned = v.(string)
		case "delivery_info":
			info := v.(model.DeliveryInfo)
			o.DeliveryInfo = &info
		case "shipping_address":
			o.ShippingAddress = v.(model.ShippingAddress)
		case "shipping_price":
			o.ShippingPrice = v.(model.Money)
		case "tax_price":
			o.TaxPrice = v.(model.Money)
		case "items_price":
			o.ItemsPrice = v.(model.Money)
		case "total_price":
			o.TotalPrice = v.(model.Money)
		}
	}
	m.orders[id] = o
	return &o, nil
}

type stubUsers map[string]*model.User

func (s stubUsers) FindByID(ctx context.Context, id string) (*model.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, usererrors.ErrNotFound
}

type fixture struct {
	products *fakeProducts
	repo     *memoryOrderRepo
	bus      *events.Bus
	service  OrderService
}

func newFixture() *fixture {
	log := logger.Discard()
	f := &fixture{
		products: newFakeProducts(),
		repo:     &memoryOrderRepo{orders: map[string]model.Order{}},
		bus:      events.NewBus(log, nil),
	}
	users := stubUsers{
		riderID:                    {ID: riderID, Role: model.RoleDelivery, IsActive: true},
		"64b7f0c2e4b0a1a2b3c4d777": {ID: "64b7f0c2e4b0a1a2b3c4d777", Role: model.RoleDelivery, IsActive: false},
		buyer.UserID:               {ID: buyer.UserID, Role: model.RolePlayer, IsActive: true},
	}
	f.service = NewOrderService(
		f.repo,
		f.products,
		users,
		&fakeTx{products: f.products, repo: f.repo},
		f.bus,
		validation.New(log),
		&config.Config{Log: log},
	)
	return f
}

func newRetryingFixture() *fixture {
	f := newFixture()
	log := logger.Discard()
	f.service = NewOrderService(
		f.repo,
		f.products,
		stubUsers{},
		&retryingTx{products: f.products, repo: f.repo},
		f.bus,
		validation.New(log),
		&config.Config{Log: log},
	)
	return f
}

func address() model.ShippingAddress {
	return model.ShippingAddress{Street: "12 MG Road", City: "Pune", State: "MH", Country: "India", PostalCode: "411001"}
}

func orderRequest(items ...model.OrderItemRequest) *model.OrderRequest {
	return &model.OrderRequest{
		Items:           items,
		ShippingAddress: address(),
		PaymentMethod:   "upi",
		ShippingPrice:   model.MoneyFromFloat(5),
		TaxPrice:        model.MoneyFromFloat(2.51),
	}
}

func (f *fixture) placeOrder(t *testing.T) *model.Order {
	t.Helper()
	order, err := f.service.Create(context.Background(), buyer, orderRequest(
		model.OrderItemRequest{ProductID: batID, Quantity: 2},
		model.OrderItemRequest{ProductID: ballID, Quantity: 3},
	))
	require.NoError(t, err)
	return order
}

func (f *fixture) setStatus(id, status string) {
	o := f.repo.orders[id]
	o.Status = status
	f.repo.orders[id] = o
}

func TestCreate_PricesAndReservesStock(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)

	assert.Equal(t, model.OrderPending, order.Status)
	assert.Equal(t, "122.48", order.ItemsPrice.StringFixed(2))
	assert.Equal(t, "129.99", order.TotalPrice.StringFixed(2))
	assert.Equal(t, "Cricket Bat", order.Items[0].Name)
	assert.Equal(t, 3, f.products.items[batID].Stock)
	assert.Equal(t, 17, f.products.items[ballID].Stock)
}

func TestCreate_SumsRepeatedLines(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), buyer, orderRequest(
		model.OrderItemRequest{ProductID: batID, Quantity: 3},
		model.OrderItemRequest{ProductID: batID, Quantity: 3},
	))
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.ReasonInsufficientStock, appErr.Reason)
	assert.Equal(t, 6, appErr.Details["requested"])
	assert.Equal(t, 5, f.products.items[batID].Stock)
}

func TestCreate_InsufficientStockNamesProduct(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), buyer, orderRequest(
		model.OrderItemRequest{ProductID: ballID, Quantity: 1},
		model.OrderItemRequest{ProductID: gloveID, Quantity: 2},
	))
	require.Error(t, err)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonInsufficientStock))
	assert.Equal(t, "Batting Gloves", apperrors.AsAppError(err).Details["product"])
	assert.Equal(t, 20, f.products.items[ballID].Stock, "nothing is reserved when pre-validation fails")
}

func TestCreate_LateShortageRollsBack(t *testing.T) {
	f := newFixture()
	// Stock disappears between the pre-check and the conditional decrement.
	f.products.reserveErrs[ballID] = productserrors.ErrInsufficientStock

	_, err := f.service.Create(context.Background(), buyer, orderRequest(
		model.OrderItemRequest{ProductID: batID, Quantity: 2},
		model.OrderItemRequest{ProductID: ballID, Quantity: 1},
	))
	require.Error(t, err)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonInsufficientStock))
	assert.Equal(t, 5, f.products.items[batID].Stock)
	assert.Empty(t, f.repo.orders)
}

func TestCreate_RetriedTransactionInsertsFreshID(t *testing.T) {
	f := newRetryingFixture()

	order := f.placeOrder(t)
	assert.Equal(t, []string{"", ""}, f.repo.createdWith, "every attempt inserts without an ID")
	assert.Equal(t, orderID, order.ID)
	assert.Len(t, f.repo.orders, 1)
	assert.Equal(t, 3, f.products.items[batID].Stock, "stock is reserved once")
}

func TestCreate_ProductRemovedDuringCheckout(t *testing.T) {
	f := newFixture()
	// The product is found by the pre-check and deleted before the decrement.
	f.products.reserveErrs[ballID] = productserrors.ErrNotFound

	_, err := f.service.Create(context.Background(), buyer, orderRequest(
		model.OrderItemRequest{ProductID: batID, Quantity: 2},
		model.OrderItemRequest{ProductID: ballID, Quantity: 1},
	))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
	assert.False(t, apperrors.HasReason(err, apperrors.ReasonInsufficientStock))
	assert.Equal(t, 5, f.products.items[batID].Stock)
	assert.Empty(t, f.repo.orders)
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		req      *model.OrderRequest
		wantCode string
	}{
		{name: "no items", req: orderRequest(), wantCode: apperrors.CodeValidation},
		{name: "zero quantity", req: orderRequest(model.OrderItemRequest{ProductID: batID, Quantity: 0}), wantCode: apperrors.CodeValidation},
		{name: "unknown product", req: orderRequest(model.OrderItemRequest{ProductID: "64b7f0c2e4b0a1a2b3c4d0ff", Quantity: 1}), wantCode: apperrors.CodeNotFound},
		{
			name: "negative tax",
			req: func() *model.OrderRequest {
				r := orderRequest(model.OrderItemRequest{ProductID: batID, Quantity: 1})
				r.TaxPrice = model.MoneyFromFloat(-1)
				return r
			}(),
			wantCode: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.service.Create(context.Background(), buyer, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.AsAppError(err).Code)
		})
	}
}

func TestCancel_RestoresStockOnce(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)

	cancelled, err := f.service.Cancel(context.Background(), buyer, order.ID, &model.OrderCancelRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.Equal(t, model.CancelCustomerRequest, cancelled.CancelReason)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 5, f.products.items[batID].Stock)
	assert.Equal(t, 20, f.products.items[ballID].Stock)

	_, err = f.service.Cancel(context.Background(), buyer, order.ID, &model.OrderCancelRequest{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
	assert.Equal(t, 5, f.products.items[batID].Stock, "stock is not restored twice")
}

func TestCancel_Rejections(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)

	_, err := f.service.Cancel(context.Background(), stranger, order.ID, &model.OrderCancelRequest{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.service.Cancel(context.Background(), buyer, order.ID, &model.OrderCancelRequest{Reason: "changed_mind"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	f.setStatus(order.ID, model.OrderDelivered)
	_, err = f.service.Cancel(context.Background(), admin, order.ID, &model.OrderCancelRequest{Reason: model.CancelOther})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
}

func TestUpdateStatus_ForwardOnly(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)
	ctx := context.Background()

	updated, err := f.service.UpdateStatus(ctx, seller, order.ID, &model.OrderStatusUpdate{Status: model.OrderConfirmed})
	require.NoError(t, err)
	assert.Equal(t, model.OrderConfirmed, updated.Status)

	_, err = f.service.UpdateStatus(ctx, seller, order.ID, &model.OrderStatusUpdate{Status: model.OrderPending})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	updated, err = f.service.UpdateStatus(ctx, admin, order.ID, &model.OrderStatusUpdate{Status: model.OrderDelivered})
	require.NoError(t, err)
	assert.Equal(t, model.OrderDelivered, updated.Status)
}

func TestUpdateStatus_SellerMustOwnAProduct(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)

	other := &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d888", Role: model.RoleSeller}
	_, err := f.service.UpdateStatus(context.Background(), other, order.ID, &model.OrderStatusUpdate{Status: model.OrderConfirmed})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.service.UpdateStatus(context.Background(), buyer, order.ID, &model.OrderStatusUpdate{Status: model.OrderConfirmed})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestUpdateStatus_CancelledRoutesThroughCancel(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)

	cancelled, err := f.service.UpdateStatus(context.Background(), seller, order.ID, &model.OrderStatusUpdate{Status: model.OrderCancelled})
	require.NoError(t, err)
	assert.Equal(t, model.CancelOther, cancelled.CancelReason)
	assert.Equal(t, 2, f.products.restored[batID])
}

func TestAssignDelivery(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)
	ctx := context.Background()
	req := &model.AssignDeliveryRequest{DeliveryUserID: riderID}

	_, err := f.service.AssignDelivery(ctx, admin, order.ID, req)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), "pending orders cannot be assigned")

	f.setStatus(order.ID, model.OrderConfirmed)

	_, err = f.service.AssignDelivery(ctx, admin, order.ID, &model.AssignDeliveryRequest{DeliveryUserID: buyer.UserID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput), "assignee must have the delivery role")

	_, err = f.service.AssignDelivery(ctx, admin, order.ID, &model.AssignDeliveryRequest{DeliveryUserID: "64b7f0c2e4b0a1a2b3c4d777"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput), "assignee must be active")

	assigned, err := f.service.AssignDelivery(ctx, admin, order.ID, req)
	require.NoError(t, err)
	assert.Equal(t, riderID, assigned.DeliveryAssigned)
	assert.Equal(t, model.DeliveryInfoPending, assigned.DeliveryInfo.Status)
}

func TestAssignDelivery_ShipmentUnderWayKeepsCourier(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)
	ctx := context.Background()
	f.setStatus(order.ID, model.OrderShipped)

	_, err := f.service.AssignDelivery(ctx, admin, order.ID, &model.AssignDeliveryRequest{DeliveryUserID: riderID})
	require.NoError(t, err)
	_, err = f.service.UpdateDeliveryStatus(ctx, rider, order.ID, &model.DeliveryStatusUpdate{Status: model.DeliveryInfoInTransit})
	require.NoError(t, err)

	_, err = f.service.AssignDelivery(ctx, admin, order.ID, &model.AssignDeliveryRequest{DeliveryUserID: riderID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), "got %v", err)

	stored := f.repo.orders[order.ID]
	assert.Equal(t, model.DeliveryInfoInTransit, stored.DeliveryInfo.Status)
}

func TestAssignDelivery_ReassignAfterFailureKeepsHistory(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)
	ctx := context.Background()
	f.setStatus(order.ID, model.OrderShipped)

	_, err := f.service.AssignDelivery(ctx, admin, order.ID, &model.AssignDeliveryRequest{DeliveryUserID: riderID})
	require.NoError(t, err)
	_, err = f.service.UpdateDeliveryStatus(ctx, rider, order.ID, &model.DeliveryStatusUpdate{Status: model.DeliveryInfoPickedUp})
	require.NoError(t, err)
	_, err = f.service.UpdateDeliveryStatus(ctx, rider, order.ID, &model.DeliveryStatusUpdate{Status: model.DeliveryInfoFailed, Notes: "gate locked"})
	require.NoError(t, err)

	reassigned, err := f.service.AssignDelivery(ctx, admin, order.ID, &model.AssignDeliveryRequest{DeliveryUserID: riderID})
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryInfoPending, reassigned.DeliveryInfo.Status)
	assert.NotNil(t, reassigned.DeliveryInfo.PickedUpAt)
	assert.Equal(t, "gate locked", reassigned.DeliveryInfo.Notes)
}

func TestUpdateDeliveryStatus(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)
	ctx := context.Background()
	f.setStatus(order.ID, model.OrderShipped)
	_, err := f.service.AssignDelivery(ctx, admin, order.ID, &model.AssignDeliveryRequest{DeliveryUserID: riderID})
	require.NoError(t, err)

	other := &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d999", Role: model.RoleDelivery}
	_, err = f.service.UpdateDeliveryStatus(ctx, other, order.ID, &model.DeliveryStatusUpdate{Status: model.DeliveryInfoPickedUp})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	picked, err := f.service.UpdateDeliveryStatus(ctx, rider, order.ID, &model.DeliveryStatusUpdate{Status: model.DeliveryInfoPickedUp})
	require.NoError(t, err)
	assert.NotNil(t, picked.DeliveryInfo.PickedUpAt)

	_, err = f.service.UpdateDeliveryStatus(ctx, rider, order.ID, &model.DeliveryStatusUpdate{Status: model.DeliveryInfoPending})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), "no going backwards")

	delivered, err := f.service.UpdateDeliveryStatus(ctx, rider, order.ID, &model.DeliveryStatusUpdate{
		Status:   model.DeliveryInfoDelivered,
		Location: &model.GeoPoint{Type: "Point", Coordinates: []float64{73.85, 18.52}},
		Notes:    "left with guard",
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveryInfo.DeliveredAt)
	assert.NotNil(t, delivered.DeliveryInfo.PickedUpAt)
	assert.Equal(t, "left with guard", delivered.DeliveryInfo.Notes)

	_, err = f.service.UpdateDeliveryStatus(ctx, rider, order.ID, &model.DeliveryStatusUpdate{Status: model.DeliveryInfoFailed})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), "delivered is terminal")
}

func TestCanAdvanceDelivery(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{model.DeliveryInfoPending, model.DeliveryInfoPickedUp, true},
		{model.DeliveryInfoPending, model.DeliveryInfoInTransit, true},
		{model.DeliveryInfoInTransit, model.DeliveryInfoPickedUp, false},
		{model.DeliveryInfoPending, model.DeliveryInfoFailed, true},
		{model.DeliveryInfoInTransit, model.DeliveryInfoFailed, true},
		{model.DeliveryInfoFailed, model.DeliveryInfoPickedUp, false},
		{model.DeliveryInfoDelivered, model.DeliveryInfoFailed, false},
		{model.DeliveryInfoPickedUp, model.DeliveryInfoPickedUp, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAdvanceDelivery(tt.from, tt.to))
		})
	}
}

func TestEdit_RecomputesTotals(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)
	shipping := model.MoneyFromFloat(0)
	tax := model.MoneyFromFloat(10)

	edited, err := f.service.Edit(context.Background(), admin, order.ID, &model.OrderEdit{ShippingPrice: &shipping, TaxPrice: &tax})
	require.NoError(t, err)
	assert.Equal(t, "122.48", edited.ItemsPrice.StringFixed(2))
	assert.Equal(t, "132.48", edited.TotalPrice.StringFixed(2))

	_, err = f.service.Edit(context.Background(), buyer, order.ID, &model.OrderEdit{TaxPrice: &tax})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	f.setStatus(order.ID, model.OrderCancelled)
	_, err = f.service.Edit(context.Background(), admin, order.ID, &model.OrderEdit{TaxPrice: &tax})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
}

func deliveredEvent(t *testing.T, orderID string) events.Event {
	t.Helper()
	evt, err := events.New(events.DeliveryMarkedDelivered, "d1", admin.UserID, events.DeliveryPayload{
		DeliveryID:     "d1",
		OrderID:        orderID,
		TrackingNumber: "TRK-1",
		DeliveredAt:    time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return evt
}

func TestOnDeliveryMarkedDelivered(t *testing.T) {
	f := newFixture()
	Subscribe(f.bus, f.service)
	order := f.placeOrder(t)
	f.setStatus(order.ID, model.OrderConfirmed)

	require.NoError(t, f.bus.Dispatch(context.Background(), deliveredEvent(t, order.ID)))

	stored := f.repo.orders[order.ID]
	assert.Equal(t, model.OrderDelivered, stored.Status)
	require.NotNil(t, stored.DeliveryInfo)
	assert.Equal(t, model.DeliveryInfoDelivered, stored.DeliveryInfo.Status)
	assert.Equal(t, 5, stored.DeliveryInfo.DeliveredAt.Day())
}

func TestOnDeliveryMarkedDelivered_RejectsCancelledOrder(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)
	f.setStatus(order.ID, model.OrderCancelled)

	err := f.service.OnDeliveryMarkedDelivered(context.Background(), deliveredEvent(t, order.ID))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
}

func TestGetByID_Visibility(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)
	ctx := context.Background()

	for _, p := range []*auth.Principal{buyer, admin, seller} {
		_, err := f.service.GetByID(ctx, p, order.ID)
		assert.NoError(t, err, p.Role)
	}

	_, err := f.service.GetByID(ctx, stranger, order.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.service.GetByID(ctx, rider, order.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "unassigned delivery users cannot read")
}

func TestListMine(t *testing.T) {
	f := newFixture()
	f.placeOrder(t)

	orders, total, err := f.service.ListMine(context.Background(), buyer, 10, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, int64(1), total)
}

func TestListForSeller(t *testing.T) {
	f := newFixture()
	f.placeOrder(t)
	ctx := context.Background()

	orders, total, err := f.service.ListForSeller(ctx, seller, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, int64(1), total)

	other := &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d888", Role: model.RoleSeller}
	orders, total, err = f.service.ListForSeller(ctx, other, sellerID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, orders, "sellers cannot list another seller's orders")
	assert.Zero(t, total)

	orders, _, err = f.service.ListForSeller(ctx, admin, sellerID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, _, err = f.service.ListForSeller(ctx, buyer, "", 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestListAll(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)
	ctx := context.Background()

	orders, total, err := f.service.ListAll(ctx, admin, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, int64(1), total)

	f.setStatus(order.ID, model.OrderShipped)
	orders, _, err = f.service.ListAll(ctx, admin, model.OrderPending, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, _, err = f.service.ListAll(ctx, admin, "lost", 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, _, err = f.service.ListAll(ctx, seller, "", 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}
