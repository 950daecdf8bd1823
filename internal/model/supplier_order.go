package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SupplierPaymentState tracks payment of a restock order.
type SupplierPaymentState string

const (
	SupplierPaymentPending   SupplierPaymentState = "pending"
	SupplierPaymentPaid      SupplierPaymentState = "paid"
	SupplierPaymentConfirmed SupplierPaymentState = "confirmed"
	SupplierPaymentRejected  SupplierPaymentState = "rejected"
)

// ReviewAction is the admin decision on a supplier quotation.
type ReviewAction string

const (
	ReviewAccept ReviewAction = "accept"
	ReviewReject ReviewAction = "reject"
)

// SupplierOrder is a restock request sent to a supplier.
type SupplierOrder struct {
	ID                  uuid.UUID            `json:"id" db:"id"`
	SupplierID          uuid.UUID            `json:"supplierId" db:"supplier_id"`
	Items               []SupplierOrderItem  `json:"items"`
	PaymentMethod       PaymentMethod        `json:"paymentMethod" db:"payment_method"`
	PaymentState        SupplierPaymentState `json:"paymentState" db:"payment_state"`
	AwaitingAdminReview bool                 `json:"awaitingAdminReview" db:"awaiting_admin_review"`
	SupplierConfirmed   bool                 `json:"supplierConfirmed" db:"supplier_confirmed"`
	CreatedAt           time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time            `json:"updatedAt" db:"updated_at"`
}

// SupplierOrderItem is one requested product. UnitPrice stays nil until quoted.
type SupplierOrderItem struct {
	ID                uuid.UUID        `json:"-" db:"id"`
	SupplierOrderID   uuid.UUID        `json:"-" db:"supplier_order_id"`
	ProductID         uuid.UUID        `json:"productId" db:"product_id"`
	RequestedQuantity int              `json:"requestedQuantity" db:"requested_quantity"`
	UnitPrice         *decimal.Decimal `json:"unitPrice,omitempty" db:"unit_price_cents"`
}

// StockDeltas converts the requested quantities into an inventory batch.
func (o *SupplierOrder) StockDeltas() []StockDelta {
	deltas := make([]StockDelta, len(o.Items))
	for i, item := range o.Items {
		deltas[i] = StockDelta{ProductID: item.ProductID, Quantity: item.RequestedQuantity}
	}
	return deltas
}

// SupplierOrderRequest creates a restock order.
type SupplierOrderRequest struct {
	SupplierID    uuid.UUID                  `json:"supplierId" validate:"required"`
	Items         []SupplierOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod PaymentMethod              `json:"paymentMethod" validate:"required,oneof=cash transfer"`
}

// SupplierOrderItemRequest is one requested product.
type SupplierOrderItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0,lte=100000"`
}

// QuoteRequest carries the supplier's unit prices.
type QuoteRequest struct {
	Prices []QuotePrice `json:"prices" validate:"required,min=1,dive"`
}

// QuotePrice is the quoted unit price for one product.
type QuotePrice struct {
	ProductID uuid.UUID       `json:"productId" validate:"required"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// ReviewRequest is the admin decision payload.
type ReviewRequest struct {
	Action ReviewAction `json:"action" validate:"required"`
}
