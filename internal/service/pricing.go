package service

import (
	"context"
	"fmt"

	"grocer/internal/model"
	"grocer/internal/notify"
	"grocer/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// priceItems snapshots the current catalogue price onto each requested line.
// Every referenced product must exist.
func priceItems(
	ctx context.Context,
	productRepo repository.ProductRepository,
	orderID uuid.UUID,
	reqItems []model.OrderItemRequest,
) ([]model.OrderItem, notify.ProductNames, error) {
	ids := uniqueProductIDs(reqItems)
	products, err := productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load products: %w", err)
	}

	byID := make(map[uuid.UUID]model.Product, len(products))
	names := make(notify.ProductNames, len(products))
	for _, p := range products {
		byID[p.ID] = p
		names[p.ID] = p.Name
	}

	items := make([]model.OrderItem, len(reqItems))
	for i, req := range reqItems {
		p, ok := byID[req.ProductID]
		if !ok {
			return nil, nil, model.WrapDomainError(
				model.ErrProductNotFound.Code,
				model.ErrProductNotFound.Message,
				fmt.Errorf("product %s", req.ProductID),
			)
		}
		items[i] = model.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			ProductID: p.ID,
			Quantity:  req.Quantity,
			UnitPrice: p.Price,
		}
	}
	return items, names, nil
}

func uniqueProductIDs(items []model.OrderItemRequest) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// validateItems checks the line items shared by orders and checkouts.
func validateItems(items []model.OrderItemRequest) error {
	if len(items) == 0 {
		return model.NewValidationError("Order must contain at least one item")
	}
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			return model.NewValidationError(fmt.Sprintf("Item %d: product ID is required", i))
		}
		if !model.ValidQuantity(item.Quantity) {
			return model.ErrInvalidQuantity
		}
	}
	return nil
}

// validateDelivery requires an address for home delivery.
func validateDelivery(delivery model.DeliveryType, address *string) error {
	if !delivery.IsValid() {
		return model.NewValidationError(fmt.Sprintf("Invalid delivery type %q", delivery))
	}
	if delivery == model.DeliveryHome && (address == nil || *address == "") {
		return model.ErrAddressRequired
	}
	return nil
}

// deliveryAddress drops address fields that only apply to home delivery.
func deliveryAddress(delivery model.DeliveryType, address, references *string) (*string, *string) {
	if delivery != model.DeliveryHome {
		return nil, nil
	}
	return address, references
}

// lookupProductNames resolves display names for notifications; lookup
// failures degrade to ids.
func lookupProductNames(ctx context.Context, productRepo repository.ProductRepository, ids []uuid.UUID, logger zerolog.Logger) notify.ProductNames {
	products, err := productRepo.GetByIDs(ctx, ids)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load product names")
		return nil
	}
	names := make(notify.ProductNames, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names
}

func itemProductIDs(items []model.OrderItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	return ids
}
