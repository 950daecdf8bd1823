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

type supplierOrderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewSupplierOrderRepository creates a new PostgreSQL-backed restock order repository.
func NewSupplierOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) SupplierOrderRepository {
	return &supplierOrderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "supplier_order").Logger(),
	}
}

const supplierOrderSelect = `
	SELECT id, supplier_id, payment_method, payment_state, awaiting_admin_review,
	       supplier_confirmed, created_at, updated_at
	FROM supplier_orders
`

func scanSupplierOrder(row pgx.Row) (*model.SupplierOrder, error) {
	var o model.SupplierOrder
	err := row.Scan(&o.ID, &o.SupplierID, &o.PaymentMethod, &o.PaymentState,
		&o.AwaitingAdminReview, &o.SupplierConfirmed, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *supplierOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func (r *supplierOrderRepository) Create(ctx context.Context, order *model.SupplierOrder) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO supplier_orders (id, supplier_id, payment_method, payment_state,
			                             awaiting_admin_review, supplier_confirmed, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := tx.Exec(ctx, query, order.ID, order.SupplierID, string(order.PaymentMethod),
			string(order.PaymentState), order.AwaitingAdminReview, order.SupplierConfirmed,
			order.CreatedAt, order.UpdatedAt)
		if err != nil {
			r.logger.Error().Err(err).Str("supplier_order_id", order.ID.String()).Msg("failed to create supplier order")
			return fmt.Errorf("failed to create supplier order: %w", err)
		}

		itemQuery := `
			INSERT INTO supplier_order_items (id, supplier_order_id, product_id, requested_quantity, unit_price_cents, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		batch := &pgx.Batch{}
		for i, item := range order.Items {
			batch.Queue(itemQuery, item.ID, order.ID, item.ProductID, item.RequestedQuantity, nullableCents(item.UnitPrice), i)
		}
		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for range order.Items {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to create supplier order item: %w", err)
			}
		}
		return nil
	})
}

func (r *supplierOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SupplierOrder, error) {
	return r.getByID(ctx, r.pool, supplierOrderSelect+` WHERE id = $1`, id)
}

func (r *supplierOrderRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.SupplierOrder, error) {
	return r.getByID(ctx, tx, supplierOrderSelect+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *supplierOrderRepository) getByID(ctx context.Context, db DBTX, query string, id uuid.UUID) (*model.SupplierOrder, error) {
	order, err := scanSupplierOrder(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("supplier_order_id", id.String()).Msg("failed to query supplier order")
		return nil, fmt.Errorf("failed to query supplier order: %w", err)
	}

	items, err := r.loadItems(ctx, db, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	return order, nil
}

func (r *supplierOrderRepository) loadItems(ctx context.Context, db DBTX, ids []uuid.UUID) (map[uuid.UUID][]model.SupplierOrderItem, error) {
	query := `
		SELECT id, supplier_order_id, product_id, requested_quantity, unit_price_cents
		FROM supplier_order_items
		WHERE supplier_order_id = ANY($1)
		ORDER BY supplier_order_id, position
	`

	rows, err := db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query supplier order items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]model.SupplierOrderItem, len(ids))
	for rows.Next() {
		var (
			item  model.SupplierOrderItem
			cents *int64
		)
		if err := rows.Scan(&item.ID, &item.SupplierOrderID, &item.ProductID, &item.RequestedQuantity, &cents); err != nil {
			return nil, fmt.Errorf("failed to scan supplier order item: %w", err)
		}
		item.UnitPrice = nullableFromCents(cents)
		items[item.SupplierOrderID] = append(items[item.SupplierOrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating supplier order items: %w", err)
	}
	return items, nil
}

func (r *supplierOrderRepository) Update(ctx context.Context, tx pgx.Tx, order *model.SupplierOrder) error {
	query := `
		UPDATE supplier_orders
		SET payment_state = $2, awaiting_admin_review = $3, supplier_confirmed = $4, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query, order.ID, string(order.PaymentState), order.AwaitingAdminReview, order.SupplierConfirmed); err != nil {
		r.logger.Error().Err(err).Str("supplier_order_id", order.ID.String()).Msg("failed to update supplier order")
		return fmt.Errorf("failed to update supplier order: %w", err)
	}

	if len(order.Items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, item := range order.Items {
		batch.Queue(`UPDATE supplier_order_items SET unit_price_cents = $2 WHERE id = $1`, item.ID, nullableCents(item.UnitPrice))
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range order.Items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to update supplier order item: %w", err)
		}
	}
	return nil
}

func (r *supplierOrderRepository) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]model.SupplierOrder, error) {
	return r.list(ctx, supplierOrderSelect+` WHERE supplier_id = $1 ORDER BY created_at DESC, id`, supplierID)
}

func (r *supplierOrderRepository) ListAwaitingReview(ctx context.Context) ([]model.SupplierOrder, error) {
	return r.list(ctx, supplierOrderSelect+` WHERE awaiting_admin_review ORDER BY created_at, id`)
}

func (r *supplierOrderRepository) list(ctx context.Context, query string, args ...any) ([]model.SupplierOrder, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list supplier orders")
		return nil, fmt.Errorf("failed to list supplier orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.SupplierOrder, error) {
		o, err := scanSupplierOrder(row)
		if err != nil {
			return model.SupplierOrder{}, err
		}
		return *o, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan supplier orders: %w", err)
	}
	if len(orders) == 0 {
		return []model.SupplierOrder{}, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := r.loadItems(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}
