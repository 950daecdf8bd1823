package repository

import (
	"context"
	"errors"
	"fmt"

	"grocer/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

const productColumns = `id, name, price_cents, stock, supplier_id, category_id, image_url, visible, created_at, updated_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p     model.Product
		cents int64
	)
	err := row.Scan(&p.ID, &p.Name, &cents, &p.Stock, &p.SupplierID, &p.CategoryID,
		&p.ImageURL, &p.Visible, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Price = fromCents(cents)
	return &p, nil
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("product_id", id.String()).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return p, nil
}

// GetByIDs retrieves multiple products by their IDs.
func (r *productRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY name`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query products by IDs")
		return nil, fmt.Errorf("failed to query products by IDs: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// LockStock row-locks the products in id order so concurrent batches cannot deadlock.
func (r *productRepository) LockStock(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	levels := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return levels, nil
	}

	query := `
		SELECT id, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to lock product stock")
		return nil, fmt.Errorf("failed to lock product stock: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    uuid.UUID
			stock int
		)
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, fmt.Errorf("failed to scan product stock: %w", err)
		}
		levels[id] = stock
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product stock: %w", err)
	}

	return levels, nil
}

// SetStock writes absolute stock levels inside tx.
func (r *productRepository) SetStock(ctx context.Context, tx pgx.Tx, levels map[uuid.UUID]int) error {
	if len(levels) == 0 {
		return nil
	}

	query := `UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`

	ids := make([]uuid.UUID, 0, len(levels))
	batch := &pgx.Batch{}
	for id, stock := range levels {
		ids = append(ids, id)
		batch.Queue(query, id, stock)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for _, id := range ids {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to update stock")
			return fmt.Errorf("failed to update stock: %w", err)
		}
	}

	r.logger.Debug().Int("count", len(levels)).Msg("stock levels updated")

	return nil
}

// ListLowStock returns supplier-linked products at or below threshold grouped by supplier.
func (r *productRepository) ListLowStock(ctx context.Context, threshold int) ([]model.LowStockGroup, error) {
	query := `
		SELECT u.id, u.name, u.email, p.id, p.name, p.stock
		FROM products p
		JOIN users u ON u.id = p.supplier_id
		WHERE p.stock <= $1
		ORDER BY u.name, u.id, p.stock, p.name
	`

	rows, err := r.pool.Query(ctx, query, threshold)
	if err != nil {
		r.logger.Error().Err(err).Int("threshold", threshold).Msg("failed to query low stock products")
		return nil, fmt.Errorf("failed to query low stock products: %w", err)
	}
	defer rows.Close()

	groups := []model.LowStockGroup{}
	for rows.Next() {
		var (
			supplier model.LowStockGroup
			product  model.LowStockProduct
		)
		if err := rows.Scan(&supplier.SupplierID, &supplier.SupplierName, &supplier.SupplierEmail,
			&product.ID, &product.Name, &product.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan low stock row: %w", err)
		}

		if n := len(groups); n > 0 && groups[n-1].SupplierID == supplier.SupplierID {
			groups[n-1].Products = append(groups[n-1].Products, product)
			continue
		}
		supplier.Products = []model.LowStockProduct{product}
		groups = append(groups, supplier)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating low stock rows: %w", err)
	}

	return groups, nil
}
