package model

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a grocery product in the catalogue.
type Product struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	Price      decimal.Decimal `json:"price" db:"price_cents"`
	Stock      int             `json:"stock" db:"stock"`
	SupplierID *uuid.UUID      `json:"supplierId,omitempty" db:"supplier_id"`
	CategoryID *uuid.UUID      `json:"categoryId,omitempty" db:"category_id"`
	ImageURL   string          `json:"imageUrl,omitempty" db:"image_url"`
	Visible    bool            `json:"visible" db:"visible"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}

// StockDirection selects whether a ledger batch adds or removes units.
type StockDirection string

const (
	StockIncrease StockDirection = "increase"
	StockDecrease StockDirection = "decrease"
)

const (
	// MaxItemQuantity caps a single requested line.
	MaxItemQuantity = 100000
	// MaxStock is the largest level the stock column can hold.
	MaxStock = math.MaxInt32
)

// ValidQuantity reports whether q is an acceptable line quantity.
func ValidQuantity(q int) bool {
	return q > 0 && q <= MaxItemQuantity
}

// StockDelta is one line of an inventory batch.
type StockDelta struct {
	ProductID uuid.UUID
	Quantity  int
}

// LowStockProduct is a product that has fallen to or below the restock threshold.
type LowStockProduct struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Stock int       `json:"stock"`
}

// LowStockGroup lists low-stock products for one supplier.
type LowStockGroup struct {
	SupplierID    uuid.UUID         `json:"supplierId"`
	SupplierName  string            `json:"supplierName"`
	SupplierEmail string            `json:"supplierEmail"`
	Products      []LowStockProduct `json:"products"`
}
