package service

import (
	"bytes"
	"context"
	"fmt"

	"grocer/internal/model"
	"grocer/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// courierBalancer implements CourierSelector.
type courierBalancer struct {
	userRepo  repository.UserRepository
	orderRepo repository.OrderRepository
	logger    zerolog.Logger
}

// NewCourierBalancer creates a selector that balances on pending deliveries.
func NewCourierBalancer(
	userRepo repository.UserRepository,
	orderRepo repository.OrderRepository,
	logger zerolog.Logger,
) CourierSelector {
	return &courierBalancer{
		userRepo:  userRepo,
		orderRepo: orderRepo,
		logger:    logger.With().Str("service", "courier").Logger(),
	}
}

// Select returns the courier with the fewest pending orders.
func (b *courierBalancer) Select(ctx context.Context) (*model.User, error) {
	couriers, err := b.userRepo.ListByRole(ctx, model.RoleCourier)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to list couriers")
		return nil, fmt.Errorf("failed to list couriers: %w", err)
	}
	if len(couriers) == 0 {
		b.logger.Warn().Msg("no couriers available")
		return nil, nil
	}

	ids := make([]uuid.UUID, len(couriers))
	for i, c := range couriers {
		ids[i] = c.ID
	}

	loads, err := b.orderRepo.CountPendingByCourier(ctx, ids)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to count courier load")
		return nil, fmt.Errorf("failed to count courier load: %w", err)
	}

	chosen := pickLeastLoaded(ids, loads)
	for i := range couriers {
		if couriers[i].ID == chosen {
			b.logger.Debug().
				Str("courier_id", chosen.String()).
				Int("pending", loads[chosen]).
				Msg("courier selected")
			return &couriers[i], nil
		}
	}
	return nil, nil
}

// pickLeastLoaded returns the id with the lowest load; ties go to the
// lowest id in byte order. ids must be non-empty.
func pickLeastLoaded(ids []uuid.UUID, loads map[uuid.UUID]int) uuid.UUID {
	best := ids[0]
	for _, id := range ids[1:] {
		switch {
		case loads[id] < loads[best]:
			best = id
		case loads[id] == loads[best] && bytes.Compare(id[:], best[:]) < 0:
			best = id
		}
	}
	return best
}
