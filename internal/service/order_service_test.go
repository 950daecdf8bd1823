package service

import (
	"context"
	"errors"
	"testing"

	"grocer/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderDeps struct {
	orders   *MockOrderRepository
	products *MockProductRepository
	users    *MockUserRepository
	ledger   *MockLedger
	couriers *MockCourierSelector
	notifier *recordingNotifier
	tx       *MockTx
}

func newOrderServiceUnderTest() (OrderService, *orderDeps) {
	d := &orderDeps{
		orders:   new(MockOrderRepository),
		products: new(MockProductRepository),
		users:    new(MockUserRepository),
		ledger:   new(MockLedger),
		couriers: new(MockCourierSelector),
		notifier: &recordingNotifier{},
		tx:       new(MockTx),
	}
	svc := NewOrderService(d.orders, d.products, d.users, d.ledger, d.couriers, d.notifier, nil, zerolog.Nop())
	return svc, d
}

func strPtr(s string) *string { return &s }

func TestInitialState(t *testing.T) {
	tests := []struct {
		name     string
		role     model.Role
		method   model.PaymentMethod
		delivery model.DeliveryType
		want     model.OrderState
	}{
		{"cashier cash", model.RoleCashier, model.PaymentCash, model.DeliveryInStore, model.OrderStateCompleted},
		{"cashier transfer", model.RoleCashier, model.PaymentTransfer, model.DeliveryHome, model.OrderStateCompleted},
		{"cashier card", model.RoleCashier, model.PaymentCard, model.DeliveryInStore, model.OrderStatePaid},
		{"customer home delivery", model.RoleCustomer, model.PaymentCash, model.DeliveryHome, model.OrderStatePending},
		{"customer in store", model.RoleCustomer, model.PaymentCard, model.DeliveryInStore, model.OrderStatePendingPickup},
		{"admin home delivery", model.RoleAdmin, model.PaymentTransfer, model.DeliveryHome, model.OrderStatePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InitialState(tt.role, tt.method, tt.delivery))
		})
	}
}

func TestResolveInitialState(t *testing.T) {
	paid := model.OrderStatePaid
	bogus := model.OrderState("shipped")

	state, err := resolveInitialState(model.RoleCashier, &model.OrderRequest{State: &paid, PaymentMethod: model.PaymentCash})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatePaid, state)

	_, err = resolveInitialState(model.RoleCustomer, &model.OrderRequest{State: &paid})
	assert.ErrorIs(t, err, model.ErrStaffOnly)

	_, err = resolveInitialState(model.RoleAdmin, &model.OrderRequest{State: &bogus})
	assert.ErrorIs(t, err, model.ErrInvalidOrderState)
}

func TestOrderService_CreateOrder_HomeDelivery(t *testing.T) {
	ctx := context.Background()
	svc, d := newOrderServiceUnderTest()

	customer := model.Actor{ID: uuid.New(), Role: model.RoleCustomer}
	courier := &model.User{ID: uuid.New(), Name: "Rosa", Email: "rosa@example.com", Role: model.RoleCourier}
	p1, p2 := uuid.New(), uuid.New()

	req := &model.OrderRequest{
		Items: []model.OrderItemRequest{
			{ProductID: p1, Quantity: 3},
			{ProductID: p2, Quantity: 1},
		},
		DeliveryType:  model.DeliveryHome,
		Address:       strPtr("Calle 5 #12"),
		PaymentMethod: model.PaymentCash,
	}

	d.products.On("GetByIDs", ctx, []uuid.UUID{p1, p2}).Return([]model.Product{
		{ID: p1, Name: "Arroz", Price: decimal.NewFromInt(10)},
		{ID: p2, Name: "Frijol", Price: decimal.NewFromInt(5)},
	}, nil)
	d.couriers.On("Select", ctx).Return(courier, nil)
	d.orders.On("BeginTx", ctx).Return(d.tx, nil)
	d.orders.On("CreateOrder", ctx, d.tx, mock.AnythingOfType("*model.Order")).Return(nil)
	d.ledger.On("Apply", ctx, d.tx, model.StockDecrease, []model.StockDelta{
		{ProductID: p1, Quantity: 3},
		{ProductID: p2, Quantity: 1},
	}).Return(nil)
	d.tx.On("Commit", ctx).Return(nil)

	order, err := svc.CreateOrder(ctx, customer, req)

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(35).Equal(order.Total))
	assert.Equal(t, model.OrderStatePending, order.State)
	require.NotNil(t, order.CourierID)
	assert.Equal(t, courier.ID, *order.CourierID)
	assert.Equal(t, customer.ID, order.CustomerID)
	assert.Nil(t, order.CashierID)

	sent := d.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, courier.Email, sent[0].To)
	assert.Contains(t, sent[0].Body, "Arroz x3")

	d.orders.AssertExpectations(t)
	d.ledger.AssertExpectations(t)
	d.tx.AssertExpectations(t)
	assert.False(t, d.tx.rolledBack)
}

func TestOrderService_CreateOrder_CashierSale(t *testing.T) {
	ctx := context.Background()
	svc, d := newOrderServiceUnderTest()

	cashier := model.Actor{ID: uuid.New(), Role: model.RoleCashier}
	p1 := uuid.New()

	d.products.On("GetByIDs", ctx, []uuid.UUID{p1}).Return([]model.Product{
		{ID: p1, Name: "Leche", Price: decimal.RequireFromString("26.50")},
	}, nil)
	d.orders.On("BeginTx", ctx).Return(d.tx, nil)
	d.orders.On("CreateOrder", ctx, d.tx, mock.AnythingOfType("*model.Order")).Return(nil)
	d.ledger.On("Apply", ctx, d.tx, model.StockDecrease, mock.Anything).Return(nil)
	d.tx.On("Commit", ctx).Return(nil)

	order, err := svc.CreateOrder(ctx, cashier, &model.OrderRequest{
		Items:         []model.OrderItemRequest{{ProductID: p1, Quantity: 2}},
		DeliveryType:  model.DeliveryInStore,
		Address:       strPtr("ignored for in-store"),
		PaymentMethod: model.PaymentCash,
	})

	require.NoError(t, err)
	assert.Equal(t, model.OrderStateCompleted, order.State)
	require.NotNil(t, order.CashierID)
	assert.Equal(t, cashier.ID, *order.CashierID)
	assert.Nil(t, order.Address)
	assert.True(t, decimal.RequireFromString("53").Equal(order.Total))
	d.couriers.AssertNotCalled(t, "Select", mock.Anything)
	assert.Empty(t, d.notifier.sent())
}

func TestOrderService_CreateOrder_ValidationErrors(t *testing.T) {
	ctx := context.Background()
	customer := model.Actor{ID: uuid.New(), Role: model.RoleCustomer}
	paid := model.OrderStatePaid

	tests := []struct {
		name    string
		req     *model.OrderRequest
		wantErr error
	}{
		{
			name:    "no items",
			req:     &model.OrderRequest{DeliveryType: model.DeliveryInStore, PaymentMethod: model.PaymentCash},
			wantErr: nil,
		},
		{
			name: "zero quantity",
			req: &model.OrderRequest{
				Items:         []model.OrderItemRequest{{ProductID: uuid.New(), Quantity: 0}},
				DeliveryType:  model.DeliveryInStore,
				PaymentMethod: model.PaymentCash,
			},
			wantErr: model.ErrInvalidQuantity,
		},
		{
			name: "quantity above the line limit",
			req: &model.OrderRequest{
				Items:         []model.OrderItemRequest{{ProductID: uuid.New(), Quantity: model.MaxItemQuantity + 1}},
				DeliveryType:  model.DeliveryInStore,
				PaymentMethod: model.PaymentCash,
			},
			wantErr: model.ErrInvalidQuantity,
		},
		{
			name: "home delivery without address",
			req: &model.OrderRequest{
				Items:         []model.OrderItemRequest{{ProductID: uuid.New(), Quantity: 1}},
				DeliveryType:  model.DeliveryHome,
				PaymentMethod: model.PaymentCash,
			},
			wantErr: model.ErrAddressRequired,
		},
		{
			name: "customer supplying state",
			req: &model.OrderRequest{
				Items:         []model.OrderItemRequest{{ProductID: uuid.New(), Quantity: 1}},
				DeliveryType:  model.DeliveryInStore,
				PaymentMethod: model.PaymentCash,
				State:         &paid,
			},
			wantErr: model.ErrStaffOnly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newOrderServiceUnderTest()

			_, err := svc.CreateOrder(ctx, customer, tt.req)

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			de, ok := model.AsDomainError(err)
			require.True(t, ok)
			assert.NotEqual(t, model.ErrCodeInternalError, de.Code)
			d.orders.AssertNotCalled(t, "BeginTx", mock.Anything)
		})
	}
}

func TestOrderService_CreateOrder_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	svc, d := newOrderServiceUnderTest()

	p1, p2 := uuid.New(), uuid.New()
	d.products.On("GetByIDs", ctx, []uuid.UUID{p1, p2}).Return([]model.Product{
		{ID: p1, Name: "Arroz", Price: decimal.NewFromInt(10)},
	}, nil)

	_, err := svc.CreateOrder(ctx, model.Actor{ID: uuid.New(), Role: model.RoleCustomer}, &model.OrderRequest{
		Items:         []model.OrderItemRequest{{ProductID: p1, Quantity: 1}, {ProductID: p2, Quantity: 1}},
		DeliveryType:  model.DeliveryInStore,
		PaymentMethod: model.PaymentCard,
	})

	assert.ErrorIs(t, err, model.ErrProductNotFound)
	d.orders.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestOrderService_CreateOrder_RollsBackOnInsufficientStock(t *testing.T) {
	ctx := context.Background()
	svc, d := newOrderServiceUnderTest()

	p1 := uuid.New()
	d.products.On("GetByIDs", ctx, []uuid.UUID{p1}).Return([]model.Product{{ID: p1, Price: decimal.NewFromInt(10)}}, nil)
	d.orders.On("BeginTx", ctx).Return(d.tx, nil)
	d.orders.On("CreateOrder", ctx, d.tx, mock.AnythingOfType("*model.Order")).Return(nil)
	d.ledger.On("Apply", ctx, d.tx, model.StockDecrease, mock.Anything).Return(model.ErrInsufficientStock)
	d.tx.On("Rollback", ctx).Return(nil)

	_, err := svc.CreateOrder(ctx, model.Actor{ID: uuid.New(), Role: model.RoleCustomer}, &model.OrderRequest{
		Items:         []model.OrderItemRequest{{ProductID: p1, Quantity: 50}},
		DeliveryType:  model.DeliveryInStore,
		PaymentMethod: model.PaymentCash,
	})

	assert.ErrorIs(t, err, model.ErrInsufficientStock)
	assert.True(t, d.tx.rolledBack)
	assert.False(t, d.tx.committed)
}

func TestOrderService_CreateOrder_BeginTxError(t *testing.T) {
	ctx := context.Background()
	svc, d := newOrderServiceUnderTest()

	p1 := uuid.New()
	d.products.On("GetByIDs", ctx, []uuid.UUID{p1}).Return([]model.Product{{ID: p1, Price: decimal.NewFromInt(10)}}, nil)
	d.orders.On("BeginTx", ctx).Return(nil, errors.New("connection refused"))

	_, err := svc.CreateOrder(ctx, model.Actor{ID: uuid.New(), Role: model.RoleCustomer}, &model.OrderRequest{
		Items:         []model.OrderItemRequest{{ProductID: p1, Quantity: 1}},
		DeliveryType:  model.DeliveryInStore,
		PaymentMethod: model.PaymentCash,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create order")
}

func TestOrderService_MarkDelivered(t *testing.T) {
	ctx := context.Background()
	courierID := uuid.New()
	orderID := uuid.New()

	newOrder := func() *model.Order {
		return &model.Order{ID: orderID, CourierID: &courierID, State: model.OrderStatePaid}
	}

	t.Run("assigned courier completes the order", func(t *testing.T) {
		svc, d := newOrderServiceUnderTest()
		d.orders.On("GetByID", ctx, orderID).Return(newOrder(), nil)
		d.orders.On("UpdateState", ctx, orderID, model.OrderStateCompleted).Return(true, nil)

		order, err := svc.MarkDelivered(ctx, model.Actor{ID: courierID, Role: model.RoleCourier}, orderID)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStateCompleted, order.State)
	})

	t.Run("another courier is refused", func(t *testing.T) {
		svc, d := newOrderServiceUnderTest()
		d.orders.On("GetByID", ctx, orderID).Return(newOrder(), nil)

		_, err := svc.MarkDelivered(ctx, model.Actor{ID: uuid.New(), Role: model.RoleCourier}, orderID)
		assert.ErrorIs(t, err, model.ErrNotAssignedCourier)
		d.orders.AssertNotCalled(t, "UpdateState", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("matching id without courier role is refused", func(t *testing.T) {
		svc, d := newOrderServiceUnderTest()
		d.orders.On("GetByID", ctx, orderID).Return(newOrder(), nil)

		_, err := svc.MarkDelivered(ctx, model.Actor{ID: courierID, Role: model.RoleAdmin}, orderID)
		de, ok := model.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, model.ErrCodeForbidden, de.Code)
	})

	t.Run("missing order", func(t *testing.T) {
		svc, d := newOrderServiceUnderTest()
		d.orders.On("GetByID", ctx, orderID).Return(nil, nil)

		_, err := svc.MarkDelivered(ctx, model.Actor{ID: courierID, Role: model.RoleCourier}, orderID)
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})
}

func TestOrderService_UpdateState(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()

	t.Run("staff sets a valid state", func(t *testing.T) {
		svc, d := newOrderServiceUnderTest()
		d.orders.On("GetByID", ctx, orderID).Return(&model.Order{ID: orderID, State: model.OrderStatePending}, nil)
		d.orders.On("UpdateState", ctx, orderID, model.OrderStateEnRoute).Return(true, nil)

		order, err := svc.UpdateState(ctx, model.Actor{ID: uuid.New(), Role: model.RoleCashier}, orderID, model.OrderStateEnRoute)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStateEnRoute, order.State)
	})

	t.Run("customer is refused", func(t *testing.T) {
		svc, _ := newOrderServiceUnderTest()
		_, err := svc.UpdateState(ctx, model.Actor{ID: uuid.New(), Role: model.RoleCustomer}, orderID, model.OrderStateCompleted)
		assert.ErrorIs(t, err, model.ErrStaffOnly)
	})

	t.Run("unknown state", func(t *testing.T) {
		svc, _ := newOrderServiceUnderTest()
		_, err := svc.UpdateState(ctx, model.Actor{ID: uuid.New(), Role: model.RoleAdmin}, orderID, model.OrderState("lost"))
		assert.ErrorIs(t, err, model.ErrInvalidOrderState)
	})

	t.Run("missing order", func(t *testing.T) {
		svc, d := newOrderServiceUnderTest()
		d.orders.On("GetByID", ctx, orderID).Return(nil, nil)
		_, err := svc.UpdateState(ctx, model.Actor{ID: uuid.New(), Role: model.RoleAdmin}, orderID, model.OrderStateCompleted)
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})
}

func TestOrderService_CashOut(t *testing.T) {
	ctx := context.Background()
	cashier := model.Actor{ID: uuid.New(), Role: model.RoleCashier}

	svc, d := newOrderServiceUnderTest()
	d.orders.On("MarkCashedOut", ctx, cashier.ID).Return(int64(7), nil)

	n, err := svc.CashOut(ctx, cashier)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = svc.CashOut(ctx, model.Actor{ID: uuid.New(), Role: model.RoleAdmin})
	assert.ErrorIs(t, err, model.ErrCashierOnly)
}

func TestOrderService_AssignCourier(t *testing.T) {
	ctx := context.Background()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	orderID := uuid.New()
	productID := uuid.New()
	courier := &model.User{ID: uuid.New(), Email: "courier@example.com", Role: model.RoleCourier}

	t.Run("assigns and notifies", func(t *testing.T) {
		svc, d := newOrderServiceUnderTest()
		d.orders.On("GetByID", ctx, orderID).Return(&model.Order{
			ID:    orderID,
			Items: []model.OrderItem{{ProductID: productID, Quantity: 1}},
		}, nil)
		d.users.On("GetByID", ctx, courier.ID).Return(courier, nil)
		d.orders.On("AssignCourier", ctx, orderID, courier.ID).Return(true, nil)
		d.products.On("GetByIDs", ctx, []uuid.UUID{productID}).Return([]model.Product{{ID: productID, Name: "Huevo"}}, nil)

		order, err := svc.AssignCourier(ctx, admin, orderID, courier.ID)
		require.NoError(t, err)
		assert.Equal(t, courier.ID, *order.CourierID)
		require.Len(t, d.notifier.sent(), 1)
		assert.Contains(t, d.notifier.sent()[0].Body, "Huevo x1")
	})

	t.Run("target is not a courier", func(t *testing.T) {
		svc, d := newOrderServiceUnderTest()
		d.orders.On("GetByID", ctx, orderID).Return(&model.Order{ID: orderID}, nil)
		d.users.On("GetByID", ctx, courier.ID).Return(&model.User{ID: courier.ID, Role: model.RoleCustomer}, nil)

		_, err := svc.AssignCourier(ctx, admin, orderID, courier.ID)
		assert.ErrorIs(t, err, model.ErrCourierNotFound)
	})

	t.Run("non-admin", func(t *testing.T) {
		svc, _ := newOrderServiceUnderTest()
		_, err := svc.AssignCourier(ctx, model.Actor{ID: uuid.New(), Role: model.RoleCashier}, orderID, courier.ID)
		assert.ErrorIs(t, err, model.ErrForbidden)
	})
}

func TestOrderService_GetByID_Visibility(t *testing.T) {
	ctx := context.Background()
	customerID := uuid.New()
	courierID := uuid.New()
	orderID := uuid.New()
	order := &model.Order{ID: orderID, CustomerID: customerID, CourierID: &courierID}

	tests := []struct {
		name    string
		actor   model.Actor
		allowed bool
	}{
		{"owner", model.Actor{ID: customerID, Role: model.RoleCustomer}, true},
		{"admin", model.Actor{ID: uuid.New(), Role: model.RoleAdmin}, true},
		{"cashier", model.Actor{ID: uuid.New(), Role: model.RoleCashier}, true},
		{"assigned courier", model.Actor{ID: courierID, Role: model.RoleCourier}, true},
		{"other customer", model.Actor{ID: uuid.New(), Role: model.RoleCustomer}, false},
		{"other courier", model.Actor{ID: uuid.New(), Role: model.RoleCourier}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newOrderServiceUnderTest()
			d.orders.On("GetByID", ctx, orderID).Return(order, nil)

			got, err := svc.GetByID(ctx, tt.actor, orderID)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, orderID, got.ID)
			} else {
				assert.ErrorIs(t, err, model.ErrForbidden)
			}
		})
	}
}

func TestOrderService_Lists(t *testing.T) {
	ctx := context.Background()

	t.Run("courier sees open deliveries", func(t *testing.T) {
		svc, d := newOrderServiceUnderTest()
		courier := model.Actor{ID: uuid.New(), Role: model.RoleCourier}
		d.orders.On("List", ctx, model.OrderFilter{
			CourierID:     &courier.ID,
			ExcludeStates: []model.OrderState{model.OrderStateCompleted, model.OrderStateCancelled},
		}).Return([]model.Order{{ID: uuid.New()}}, nil)

		orders, err := svc.ListForCourier(ctx, courier)
		require.NoError(t, err)
		assert.Len(t, orders, 1)
	})

	t.Run("cashier sees unreconciled sales", func(t *testing.T) {
		svc, d := newOrderServiceUnderTest()
		cashier := model.Actor{ID: uuid.New(), Role: model.RoleCashier}
		cashedOut := false
		d.orders.On("List", ctx, model.OrderFilter{CashierID: &cashier.ID, CashedOut: &cashedOut}).
			Return([]model.Order{}, nil)

		orders, err := svc.ListUnreconciledSales(ctx, cashier)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("role checks", func(t *testing.T) {
		svc, _ := newOrderServiceUnderTest()
		_, err := svc.ListForCourier(ctx, model.Actor{ID: uuid.New(), Role: model.RoleCustomer})
		assert.ErrorIs(t, err, model.ErrForbidden)
		_, err = svc.ListUnreconciledSales(ctx, model.Actor{ID: uuid.New(), Role: model.RoleCourier})
		assert.ErrorIs(t, err, model.ErrCashierOnly)
	})
}

func TestOrderService_Delete(t *testing.T) {
	ctx := context.Background()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	orderID := uuid.New()

	svc, d := newOrderServiceUnderTest()
	d.orders.On("Delete", ctx, orderID).Return(false, nil).Once()

	err := svc.Delete(ctx, admin, orderID)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	err = svc.Delete(ctx, model.Actor{ID: uuid.New(), Role: model.RoleCustomer}, orderID)
	assert.ErrorIs(t, err, model.ErrForbidden)
}
