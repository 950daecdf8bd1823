package service

import (
	"context"

	"grocer/internal/model"
	"grocer/internal/notify"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StockLedger applies inventory batches inside a caller-owned transaction.
type StockLedger interface {
	// Apply adds or removes the batch quantities. Products that do not exist
	// are skipped.
	Apply(ctx context.Context, tx pgx.Tx, direction model.StockDirection, deltas []model.StockDelta) error
}

// CourierSelector picks the courier for a home delivery.
type CourierSelector interface {
	// Select returns the least-loaded courier, or nil when there are none.
	Select(ctx context.Context) (*model.User, error)
}

// Notifier queues outbound emails. Delivery failures never reach the caller.
type Notifier interface {
	Dispatch(msg notify.Message)
}

// EventGuard remembers processed payment event ids.
type EventGuard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// OrderService defines operations for customer orders.
type OrderService interface {
	// CreateOrder validates and prices the request, picks the initial state
	// and courier, and stores the order while decrementing stock.
	CreateOrder(ctx context.Context, actor model.Actor, req *model.OrderRequest) (*model.Order, error)

	// GetByID returns an order visible to its customer, staff or its courier.
	GetByID(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error)

	// ListForCustomer returns the actor's own orders.
	ListForCustomer(ctx context.Context, actor model.Actor) ([]model.Order, error)

	// ListForCourier returns open deliveries assigned to the courier.
	ListForCourier(ctx context.Context, actor model.Actor) ([]model.Order, error)

	// ListUnreconciledSales returns the cashier's sales not yet cashed out.
	ListUnreconciledSales(ctx context.Context, actor model.Actor) ([]model.Order, error)

	// MarkDelivered completes an order on behalf of its assigned courier.
	MarkDelivered(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error)

	// UpdateState sets any valid state; staff only.
	UpdateState(ctx context.Context, actor model.Actor, id uuid.UUID, state model.OrderState) (*model.Order, error)

	// AssignCourier manually assigns a courier; admin only.
	AssignCourier(ctx context.Context, actor model.Actor, id, courierID uuid.UUID) (*model.Order, error)

	// CashOut marks every unreconciled sale of the cashier as cashed out.
	CashOut(ctx context.Context, actor model.Actor) (int64, error)

	// Delete removes an order; admin only.
	Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error
}

// PaymentService reconciles card payments with orders.
type PaymentService interface {
	// CreateCheckout stores a pending-payment order and opens a hosted session for it.
	CreateCheckout(ctx context.Context, actor model.Actor, req *model.CheckoutRequest) (*model.CheckoutResponse, error)

	// HandleEvent applies a verified provider event at most once.
	HandleEvent(ctx context.Context, event *model.PaymentEvent) error
}

// RestockService runs the supplier restock workflow.
type RestockService interface {
	Create(ctx context.Context, actor model.Actor, req *model.SupplierOrderRequest) (*model.SupplierOrder, error)
	ListMine(ctx context.Context, actor model.Actor) ([]model.SupplierOrder, error)
	Quote(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.QuoteRequest) (*model.SupplierOrder, error)
	ConfirmPayment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.SupplierOrder, error)
	ListAwaitingReview(ctx context.Context, actor model.Actor) ([]model.SupplierOrder, error)
	Review(ctx context.Context, actor model.Actor, id uuid.UUID, action model.ReviewAction) (*model.SupplierOrder, error)

	// LowStock groups supplier products at or below threshold. A nil
	// threshold uses the configured default.
	LowStock(ctx context.Context, actor model.Actor, threshold *int) ([]model.LowStockGroup, error)
}

// CartService manages the caller's cart.
type CartService interface {
	Get(ctx context.Context, actor model.Actor) (*model.Cart, error)
	Replace(ctx context.Context, actor model.Actor, req *model.CartRequest) (*model.Cart, error)
	Clear(ctx context.Context, actor model.Actor) error
}
