package repository

import (
	"context"
	"fmt"
	"time"

	"grocer/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

func (r *cartRepository) Get(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	query := `
		SELECT product_id, quantity, price_cents, updated_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	defer rows.Close()

	cart := &model.Cart{UserID: userID, Items: []model.CartItem{}}
	for rows.Next() {
		var (
			item    model.CartItem
			cents   int64
			updated time.Time
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity, &cents, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		item.Price = fromCents(cents)
		cart.Items = append(cart.Items, item)
		if updated.After(cart.UpdatedAt) {
			cart.UpdatedAt = updated
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) Replace(ctx context.Context, userID uuid.UUID, items []model.CartItem) (*model.Cart, error) {
	now := time.Now().UTC()

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		if len(items) == 0 {
			return nil
		}

		query := `
			INSERT INTO cart_items (user_id, product_id, quantity, price_cents, position, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		batch := &pgx.Batch{}
		for i, item := range items {
			batch.Queue(query, userID, item.ProductID, item.Quantity, toCents(item.Price), i, now)
		}
		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for range items {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to insert cart item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to replace cart")
		return nil, err
	}

	if items == nil {
		items = []model.CartItem{}
	}
	return &model.Cart{UserID: userID, Items: items, UpdatedAt: now}, nil
}

func (r *cartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to clear cart")
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
