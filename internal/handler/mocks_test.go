package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"grocer/internal/middleware"
	"grocer/internal/model"
	"grocer/internal/payment"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, actor model.Actor, req *model.OrderRequest) (*model.Order, error) {
	args := m.Called(ctx, actor, req)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, actor, id)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockOrderService) ListForCustomer(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	args := m.Called(ctx, actor)
	return ordersOrNil(args.Get(0)), args.Error(1)
}

func (m *MockOrderService) ListForCourier(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	args := m.Called(ctx, actor)
	return ordersOrNil(args.Get(0)), args.Error(1)
}

func (m *MockOrderService) ListUnreconciledSales(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	args := m.Called(ctx, actor)
	return ordersOrNil(args.Get(0)), args.Error(1)
}

func (m *MockOrderService) MarkDelivered(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, actor, id)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockOrderService) UpdateState(ctx context.Context, actor model.Actor, id uuid.UUID, state model.OrderState) (*model.Order, error) {
	args := m.Called(ctx, actor, id, state)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockOrderService) AssignCourier(ctx context.Context, actor model.Actor, id, courierID uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, actor, id, courierID)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockOrderService) CashOut(ctx context.Context, actor model.Actor) (int64, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderService) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

func orderOrNil(v any) *model.Order {
	if v == nil {
		return nil
	}
	return v.(*model.Order)
}

func ordersOrNil(v any) []model.Order {
	if v == nil {
		return nil
	}
	return v.([]model.Order)
}

// MockPaymentService is a mock implementation of PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreateCheckout(ctx context.Context, actor model.Actor, req *model.CheckoutRequest) (*model.CheckoutResponse, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckoutResponse), args.Error(1)
}

func (m *MockPaymentService) HandleEvent(ctx context.Context, event *model.PaymentEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockGateway is a mock implementation of payment.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}

func (m *MockGateway) ParseEvent(payload []byte, signature string) (*model.PaymentEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentEvent), args.Error(1)
}

// MockCartService is a mock implementation of CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) Get(ctx context.Context, actor model.Actor) (*model.Cart, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) Replace(ctx context.Context, actor model.Actor, req *model.CartRequest) (*model.Cart, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) Clear(ctx context.Context, actor model.Actor) error {
	args := m.Called(ctx, actor)
	return args.Error(0)
}

// MockRestockService is a mock implementation of RestockService.
type MockRestockService struct {
	mock.Mock
}

func (m *MockRestockService) Create(ctx context.Context, actor model.Actor, req *model.SupplierOrderRequest) (*model.SupplierOrder, error) {
	args := m.Called(ctx, actor, req)
	return supplierOrderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRestockService) ListMine(ctx context.Context, actor model.Actor) ([]model.SupplierOrder, error) {
	args := m.Called(ctx, actor)
	return supplierOrdersOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRestockService) Quote(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.QuoteRequest) (*model.SupplierOrder, error) {
	args := m.Called(ctx, actor, id, req)
	return supplierOrderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRestockService) ConfirmPayment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.SupplierOrder, error) {
	args := m.Called(ctx, actor, id)
	return supplierOrderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRestockService) ListAwaitingReview(ctx context.Context, actor model.Actor) ([]model.SupplierOrder, error) {
	args := m.Called(ctx, actor)
	return supplierOrdersOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRestockService) Review(ctx context.Context, actor model.Actor, id uuid.UUID, action model.ReviewAction) (*model.SupplierOrder, error) {
	args := m.Called(ctx, actor, id, action)
	return supplierOrderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRestockService) LowStock(ctx context.Context, actor model.Actor, threshold *int) ([]model.LowStockGroup, error) {
	args := m.Called(ctx, actor, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LowStockGroup), args.Error(1)
}

func supplierOrderOrNil(v any) *model.SupplierOrder {
	if v == nil {
		return nil
	}
	return v.(*model.SupplierOrder)
}

func supplierOrdersOrNil(v any) []model.SupplierOrder {
	if v == nil {
		return nil
	}
	return v.([]model.SupplierOrder)
}

// route serves one request through a chi router registered at pattern, with
// actor (when non-nil) already authenticated.
func route(t *testing.T, method, pattern, path string, h http.HandlerFunc, actor *model.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf []byte
	switch b := body.(type) {
	case nil:
	case string:
		buf = []byte(b)
	default:
		var err error
		buf, err = json.Marshal(b)
		require.NoError(t, err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if actor != nil {
		a := *actor
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithActor(req.Context(), a)))
			})
		})
	}
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}
