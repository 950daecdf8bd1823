package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the per-user shopping cart.
type Cart struct {
	UserID    uuid.UUID  `json:"userId" db:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// CartItem is a product in the cart with the price seen when it was added.
type CartItem struct {
	ProductID uuid.UUID       `json:"productId" db:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" db:"quantity" validate:"gt=0,lte=100000"`
	Price     decimal.Decimal `json:"price" db:"price_cents"`
}

// CartRequest replaces the cart contents.
type CartRequest struct {
	Items []CartItem `json:"items" validate:"dive"`
}

// CheckoutRequest starts a card checkout for the listed items.
type CheckoutRequest struct {
	Items        []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryType DeliveryType       `json:"deliveryType" validate:"required,oneof=in-store home-delivery"`
	Address      *string            `json:"address,omitempty" validate:"omitempty,max=500"`
	References   *string            `json:"references,omitempty" validate:"omitempty,max=500"`
	Phone        string             `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// CheckoutResponse points the client at the hosted payment page.
type CheckoutResponse struct {
	OrderID   uuid.UUID `json:"orderId"`
	SessionID string    `json:"sessionId"`
	URL       string    `json:"url"`
}

// PaymentEventType is a provider-neutral payment outcome.
type PaymentEventType string

const (
	PaymentEventCompleted PaymentEventType = "completed"
	PaymentEventExpired   PaymentEventType = "expired"
	PaymentEventIgnored   PaymentEventType = "ignored"
)

// PaymentEvent is a verified webhook notification.
type PaymentEvent struct {
	ID          string
	Type        PaymentEventType
	OrderID     string
	AmountTotal int64 // minor currency units
}
