package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"grocer/internal/config"
	"grocer/internal/metrics"
	"grocer/internal/model"
	"grocer/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// inventoryLedger implements StockLedger.
type inventoryLedger struct {
	productRepo repository.ProductRepository
	policy      string
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewInventoryLedger creates a ledger. policy is config.StockPolicyClamp or
// config.StockPolicyReject.
func NewInventoryLedger(
	productRepo repository.ProductRepository,
	policy string,
	m *metrics.Metrics,
	logger zerolog.Logger,
) StockLedger {
	return &inventoryLedger{
		productRepo: productRepo,
		policy:      policy,
		metrics:     m,
		logger:      logger.With().Str("service", "inventory").Logger(),
	}
}

// Apply locks the affected rows in id order, computes the new levels and
// writes them, all within tx.
func (l *inventoryLedger) Apply(ctx context.Context, tx pgx.Tx, direction model.StockDirection, deltas []model.StockDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	if direction != model.StockIncrease && direction != model.StockDecrease {
		return model.NewValidationError(fmt.Sprintf("unknown stock direction %q", direction))
	}

	totals, err := sumDeltas(deltas)
	if err != nil {
		l.metrics.StockBatch(string(direction), "rejected")
		return err
	}

	ids := sortedIDs(totals)
	current, err := l.productRepo.LockStock(ctx, tx, ids)
	if err != nil {
		l.metrics.StockBatch(string(direction), "failed")
		return fmt.Errorf("failed to lock stock: %w", err)
	}

	levels, clamped, err := computeStockLevels(current, totals, direction, l.policy == config.StockPolicyReject)
	if err != nil {
		l.logger.Warn().
			Int("product_count", len(ids)).
			Err(err).
			Msg("stock batch rejected")
		l.metrics.StockBatch(string(direction), "rejected")
		return err
	}

	for _, id := range clamped {
		l.logger.Warn().
			Str("product_id", id.String()).
			Int("requested", totals[id]).
			Int("available", current[id]).
			Msg("stock decrement clamped at zero")
	}
	if skipped := len(ids) - len(levels); skipped > 0 {
		l.logger.Debug().Int("skipped", skipped).Msg("stock batch referenced missing products")
	}

	if err := l.productRepo.SetStock(ctx, tx, levels); err != nil {
		l.metrics.StockBatch(string(direction), "failed")
		return fmt.Errorf("failed to write stock: %w", err)
	}

	l.metrics.StockBatch(string(direction), "applied")
	return nil
}

// sumDeltas merges duplicate products and rejects non-positive quantities.
func sumDeltas(deltas []model.StockDelta) (map[uuid.UUID]int, error) {
	totals := make(map[uuid.UUID]int, len(deltas))
	for _, d := range deltas {
		if !model.ValidQuantity(d.Quantity) {
			return nil, model.ErrInvalidQuantity
		}
		totals[d.ProductID] += d.Quantity
	}
	return totals, nil
}

func sortedIDs(totals map[uuid.UUID]int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}

// computeStockLevels returns the new absolute stock for every product present
// in current, plus the products whose decrement was clamped. With reject set,
// any decrement below zero fails the whole batch instead. An increase past
// model.MaxStock always fails.
func computeStockLevels(
	current map[uuid.UUID]int,
	totals map[uuid.UUID]int,
	direction model.StockDirection,
	reject bool,
) (map[uuid.UUID]int, []uuid.UUID, error) {
	levels := make(map[uuid.UUID]int, len(current))
	var clamped []uuid.UUID

	for _, id := range sortedIDs(totals) {
		stock, ok := current[id]
		if !ok {
			continue
		}
		qty := totals[id]

		if direction == model.StockIncrease {
			if stock+qty > model.MaxStock {
				return nil, nil, model.WrapDomainError(
					model.ErrStockOverflow.Code,
					model.ErrStockOverflow.Message,
					fmt.Errorf("product %s has %d, adding %d", id, stock, qty),
				)
			}
			levels[id] = stock + qty
			continue
		}

		next := stock - qty
		if next < 0 {
			if reject {
				return nil, nil, model.WrapDomainError(
					model.ErrInsufficientStock.Code,
					model.ErrInsufficientStock.Message,
					fmt.Errorf("product %s has %d, requested %d", id, stock, qty),
				)
			}
			clamped = append(clamped, id)
			next = 0
		}
		levels[id] = next
	}

	return levels, clamped, nil
}
