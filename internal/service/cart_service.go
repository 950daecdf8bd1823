package service

import (
	"context"
	"fmt"

	"grocer/internal/model"
	"grocer/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// cartService implements CartService.
type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	logger      zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, logger zerolog.Logger) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		logger:      logger.With().Str("service", "cart").Logger(),
	}
}

func (s *cartService) Get(ctx context.Context, actor model.Actor) (*model.Cart, error) {
	cart, err := s.cartRepo.Get(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return cart, nil
}

// Replace swaps the cart contents. Lines for the same product are merged and
// prices are taken from the catalogue.
func (s *cartService) Replace(ctx context.Context, actor model.Actor, req *model.CartRequest) (*model.Cart, error) {
	if req == nil {
		return nil, model.NewValidationError("Cart request is required")
	}

	merged := make([]model.CartItem, 0, len(req.Items))
	index := make(map[uuid.UUID]int, len(req.Items))
	for _, item := range req.Items {
		if !model.ValidQuantity(item.Quantity) {
			return nil, model.ErrInvalidQuantity
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			if merged[i].Quantity > model.MaxItemQuantity {
				return nil, model.ErrInvalidQuantity
			}
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, model.CartItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	if len(merged) > 0 {
		ids := make([]uuid.UUID, len(merged))
		for i, item := range merged {
			ids[i] = item.ProductID
		}
		products, err := s.productRepo.GetByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load products: %w", err)
		}
		if len(products) != len(ids) {
			return nil, model.ErrProductNotFound
		}
		for _, p := range products {
			merged[index[p.ID]].Price = p.Price
		}
	}

	cart, err := s.cartRepo.Replace(ctx, actor.ID, merged)
	if err != nil {
		return nil, fmt.Errorf("failed to replace cart: %w", err)
	}

	s.logger.Debug().Str("user_id", actor.ID.String()).Int("item_count", len(merged)).Msg("cart replaced")
	return cart, nil
}

func (s *cartService) Clear(ctx context.Context, actor model.Actor) error {
	if err := s.cartRepo.Clear(ctx, actor.ID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
