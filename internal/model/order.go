package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderState is the fulfilment state of a customer order.
type OrderState string

const (
	OrderStatePending        OrderState = "pending"
	OrderStatePendingPayment OrderState = "pending-payment"
	OrderStatePendingPickup  OrderState = "pending-pickup"
	OrderStatePaid           OrderState = "paid"
	OrderStateCompleted      OrderState = "completed"
	OrderStateEnRoute        OrderState = "en-route"
	OrderStateCancelled      OrderState = "cancelled"
)

// IsValid reports whether s belongs to the order state set.
func (s OrderState) IsValid() bool {
	switch s {
	case OrderStatePending, OrderStatePendingPayment, OrderStatePendingPickup,
		OrderStatePaid, OrderStateCompleted, OrderStateEnRoute, OrderStateCancelled:
		return true
	}
	return false
}

// DeliveryType is how the customer receives the order.
type DeliveryType string

const (
	DeliveryInStore DeliveryType = "in-store"
	DeliveryHome    DeliveryType = "home-delivery"
)

func (d DeliveryType) IsValid() bool {
	return d == DeliveryInStore || d == DeliveryHome
}

// PaymentMethod is how an order is paid.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

func (p PaymentMethod) IsValid() bool {
	return p == PaymentCash || p == PaymentCard || p == PaymentTransfer
}

// Order represents a customer order.
type Order struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	CustomerID    uuid.UUID       `json:"customerId" db:"customer_id"`
	Items         []OrderItem     `json:"items"`
	Total         decimal.Decimal `json:"total" db:"total_cents"`
	DeliveryType  DeliveryType    `json:"deliveryType" db:"delivery_type"`
	Address       *string         `json:"address,omitempty" db:"address"`
	References    *string         `json:"references,omitempty" db:"address_references"`
	Phone         string          `json:"phone,omitempty" db:"phone"`
	PaymentMethod PaymentMethod   `json:"paymentMethod" db:"payment_method"`
	State         OrderState      `json:"state" db:"state"`
	CourierID     *uuid.UUID      `json:"courierId,omitempty" db:"courier_id"`
	CashierID     *uuid.UUID      `json:"cashierId,omitempty" db:"cashier_id"`
	CashedOut     bool            `json:"cashedOut" db:"cashed_out"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// OrderItem represents a line item in an order. UnitPrice is the catalogue
// price captured when the order was placed.
type OrderItem struct {
	ID        uuid.UUID       `json:"-" db:"id"`
	OrderID   uuid.UUID       `json:"-" db:"order_id"`
	ProductID uuid.UUID       `json:"productId" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice" db:"unit_price_cents"`
}

// Subtotal returns quantity times unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CalculateTotal sums the line item subtotals.
func CalculateTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// StockDeltas converts the order lines into an inventory batch.
func (o *Order) StockDeltas() []StockDelta {
	deltas := make([]StockDelta, len(o.Items))
	for i, item := range o.Items {
		deltas[i] = StockDelta{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return deltas
}

// OrderRequest represents the request payload for creating an order.
type OrderRequest struct {
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryType  DeliveryType       `json:"deliveryType" validate:"required,oneof=in-store home-delivery"`
	Address       *string            `json:"address,omitempty" validate:"omitempty,max=500"`
	References    *string            `json:"references,omitempty" validate:"omitempty,max=500"`
	Phone         string             `json:"phone,omitempty" validate:"omitempty,max=32"`
	PaymentMethod PaymentMethod      `json:"paymentMethod" validate:"required,oneof=cash card transfer"`
	State         *OrderState        `json:"state,omitempty"`
}

// OrderItemRequest represents a single item in an order request.
type OrderItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0,lte=100000"`
}

// UpdateStateRequest is the body of a manual state change.
type UpdateStateRequest struct {
	State OrderState `json:"state" validate:"required"`
}

// AssignCourierRequest is the body of a manual courier assignment.
type AssignCourierRequest struct {
	CourierID uuid.UUID `json:"courierId" validate:"required"`
}

// CashOutResponse reports how many sales were reconciled.
type CashOutResponse struct {
	Reconciled int64 `json:"reconciled"`
}

// OrderFilter scopes order listings to a single participant.
type OrderFilter struct {
	CustomerID    *uuid.UUID
	CourierID     *uuid.UUID
	CashierID     *uuid.UUID
	CashedOut     *bool
	ExcludeStates []OrderState
}
