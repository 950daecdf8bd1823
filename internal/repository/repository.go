package repository

import (
	"context"

	"grocer/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines the interface for product data access operations.
type ProductRepository interface {
	// GetByID retrieves a single product by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)

	// GetByIDs retrieves the products that exist among ids.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)

	// LockStock row-locks the given products inside tx and returns their
	// current stock. Missing products are absent from the map.
	LockStock(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]int, error)

	// SetStock writes absolute stock levels inside tx.
	SetStock(ctx context.Context, tx pgx.Tx, levels map[uuid.UUID]int) error

	// ListLowStock returns supplier-linked products at or below threshold,
	// grouped by supplier.
	ListLowStock(ctx context.Context, threshold int) ([]model.LowStockGroup, error)
}

// UserRepository defines read access to user accounts.
type UserRepository interface {
	// GetByID retrieves a user. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	// ListByRole returns users with the role ordered by id.
	ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts the order and its items within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// GetByID retrieves an order by its ID along with its items. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetByIDForUpdate is GetByID with a row lock held by tx.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// UpdateFulfilment writes state, courier and total within tx.
	UpdateFulfilment(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// UpdateState sets the state. Returns false when the order does not exist.
	UpdateState(ctx context.Context, id uuid.UUID, state model.OrderState) (bool, error)

	// TransitionState sets the state only when the current state equals from.
	// Returns false when no row matched.
	TransitionState(ctx context.Context, id uuid.UUID, from, to model.OrderState) (bool, error)

	// AssignCourier sets the courier. Returns false when the order does not exist.
	AssignCourier(ctx context.Context, id, courierID uuid.UUID) (bool, error)

	// CountPendingByCourier counts pending orders per courier in one query.
	// Couriers without pending orders are absent from the map.
	CountPendingByCourier(ctx context.Context, courierIDs []uuid.UUID) (map[uuid.UUID]int, error)

	// MarkCashedOut flags every unreconciled sale of the cashier and returns
	// the number of orders updated.
	MarkCashedOut(ctx context.Context, cashierID uuid.UUID) (int64, error)

	// List returns orders matching the filter, newest first.
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)

	// Delete removes an order. Returns false when it did not exist.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// SupplierOrderRepository defines data access for restock orders.
type SupplierOrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// Create inserts the supplier order and its items.
	Create(ctx context.Context, order *model.SupplierOrder) error

	// GetByID retrieves a supplier order with items. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.SupplierOrder, error)

	// GetByIDForUpdate is GetByID with a row lock held by tx.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.SupplierOrder, error)

	// Update writes payment state, flags and item unit prices within tx.
	Update(ctx context.Context, tx pgx.Tx, order *model.SupplierOrder) error

	// ListBySupplier returns the supplier's orders, newest first.
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]model.SupplierOrder, error)

	// ListAwaitingReview returns orders whose quotation awaits an admin decision.
	ListAwaitingReview(ctx context.Context) ([]model.SupplierOrder, error)
}

// CartRepository stores one cart per user.
type CartRepository interface {
	// Get returns the user's cart; an empty cart when none is stored.
	Get(ctx context.Context, userID uuid.UUID) (*model.Cart, error)

	// Replace atomically swaps the cart contents.
	Replace(ctx context.Context, userID uuid.UUID, items []model.CartItem) (*model.Cart, error)

	// Clear empties the cart.
	Clear(ctx context.Context, userID uuid.UUID) error
}
