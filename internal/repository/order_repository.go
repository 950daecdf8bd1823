package repository

import (
	"context"
	"errors"
	"fmt"

	"grocer/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

var orderColumns = []string{
	"id", "customer_id", "total_cents", "delivery_type", "address", "address_references",
	"phone", "payment_method", "state", "courier_id", "cashier_id", "cashed_out",
	"created_at", "updated_at",
}

const orderSelect = `
	SELECT id, customer_id, total_cents, delivery_type, address, address_references,
	       phone, payment_method, state, courier_id, cashier_id, cashed_out,
	       created_at, updated_at
	FROM orders
`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o     model.Order
		cents int64
	)
	err := row.Scan(&o.ID, &o.CustomerID, &cents, &o.DeliveryType, &o.Address, &o.References,
		&o.Phone, &o.PaymentMethod, &o.State, &o.CourierID, &o.CashierID, &o.CashedOut,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Total = fromCents(cents)
	return &o, nil
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CreateOrder inserts a new order and its items within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (id, customer_id, total_cents, delivery_type, address, address_references,
		                    phone, payment_method, state, courier_id, cashier_id, cashed_out,
		                    created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := tx.Exec(ctx, query,
		order.ID, order.CustomerID, toCents(order.Total), string(order.DeliveryType), order.Address,
		order.References, order.Phone, string(order.PaymentMethod), string(order.State),
		order.CourierID, order.CashierID, order.CashedOut, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	if len(order.Items) == 0 {
		return nil
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price_cents, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for i, item := range order.Items {
		batch.Queue(itemQuery, item.ID, order.ID, item.ProductID, item.Quantity, toCents(item.UnitPrice), i)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for _, item := range order.Items {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", order.ID.String()).
				Str("product_id", item.ProductID.String()).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Int("item_count", len(order.Items)).
		Msg("order created successfully")

	return nil
}

// GetByID retrieves an order by its ID along with its items.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getByID(ctx, r.pool, orderSelect+` WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves an order and holds its row lock until tx ends.
func (r *orderRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	return r.getByID(ctx, tx, orderSelect+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *orderRepository) getByID(ctx context.Context, db DBTX, query string, id uuid.UUID) (*model.Order, error) {
	order, err := scanOrder(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := r.loadItems(ctx, db, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]

	return order, nil
}

// loadItems fetches the line items of several orders keyed by order id.
func (r *orderRepository) loadItems(ctx context.Context, db DBTX, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	itemsQuery := `
		SELECT id, order_id, product_id, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`

	rows, err := db.Query(ctx, itemsQuery, orderIDs)
	if err != nil {
		r.logger.Error().Err(err).Int("order_count", len(orderIDs)).Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			item  model.OrderItem
			cents int64
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &cents); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.UnitPrice = fromCents(cents)
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// UpdateFulfilment writes state, courier and total within tx.
func (r *orderRepository) UpdateFulfilment(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		UPDATE orders
		SET state = $2, courier_id = $3, total_cents = $4, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, query, order.ID, string(order.State), order.CourierID, toCents(order.Total)); err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to update order")
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// UpdateState sets the order state.
func (r *orderRepository) UpdateState(ctx context.Context, id uuid.UUID, state model.OrderState) (bool, error) {
	query := `UPDATE orders SET state = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, string(state))
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Str("state", string(state)).Msg("failed to update order state")
		return false, fmt.Errorf("failed to update order state: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TransitionState is a compare-and-set on the state column.
func (r *orderRepository) TransitionState(ctx context.Context, id uuid.UUID, from, to model.OrderState) (bool, error) {
	query := `UPDATE orders SET state = $3, updated_at = NOW() WHERE id = $1 AND state = $2`

	tag, err := r.pool.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to transition order state")
		return false, fmt.Errorf("failed to transition order state: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AssignCourier sets the courier of an order.
func (r *orderRepository) AssignCourier(ctx context.Context, id, courierID uuid.UUID) (bool, error) {
	query := `UPDATE orders SET courier_id = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, courierID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to assign courier")
		return false, fmt.Errorf("failed to assign courier: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountPendingByCourier counts pending orders per courier.
func (r *orderRepository) CountPendingByCourier(ctx context.Context, courierIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(courierIDs))
	if len(courierIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT courier_id, COUNT(*)
		FROM orders
		WHERE courier_id = ANY($1) AND state = $2
		GROUP BY courier_id
	`

	rows, err := r.pool.Query(ctx, query, courierIDs, string(model.OrderStatePending))
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to count pending orders by courier")
		return nil, fmt.Errorf("failed to count pending orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    uuid.UUID
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan courier load: %w", err)
		}
		counts[id] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating courier load: %w", err)
	}

	return counts, nil
}

// MarkCashedOut reconciles every open sale of the cashier in one statement.
func (r *orderRepository) MarkCashedOut(ctx context.Context, cashierID uuid.UUID) (int64, error) {
	query := `
		UPDATE orders
		SET cashed_out = TRUE, updated_at = NOW()
		WHERE cashier_id = $1 AND cashed_out = FALSE
	`

	tag, err := r.pool.Exec(ctx, query, cashierID)
	if err != nil {
		r.logger.Error().Err(err).Str("cashier_id", cashierID.String()).Msg("failed to cash out")
		return 0, fmt.Errorf("failed to cash out: %w", err)
	}

	return tag.RowsAffected(), nil
}

// List returns orders matching the filter, newest first.
func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	builder := psql.Select(orderColumns...).From("orders").OrderBy("created_at DESC", "id")

	if filter.CustomerID != nil {
		// uuid.UUID is an array, which sq.Eq would expand into an IN list.
		builder = builder.Where(sq.Expr("customer_id = ?", *filter.CustomerID))
	}
	if filter.CourierID != nil {
		builder = builder.Where(sq.Expr("courier_id = ?", *filter.CourierID))
	}
	if filter.CashierID != nil {
		builder = builder.Where(sq.Expr("cashier_id = ?", *filter.CashierID))
	}
	if filter.CashedOut != nil {
		builder = builder.Where(sq.Eq{"cashed_out": *filter.CashedOut})
	}
	if len(filter.ExcludeStates) > 0 {
		states := make([]string, len(filter.ExcludeStates))
		for i, s := range filter.ExcludeStates {
			states[i] = string(s)
		}
		builder = builder.Where(sq.NotEq{"state": states})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	var ids []uuid.UUID
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return orders, nil
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

// Delete removes an order and, by cascade, its items.
func (r *orderRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to delete order")
		return false, fmt.Errorf("failed to delete order: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
