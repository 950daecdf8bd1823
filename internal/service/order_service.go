package service

import (
	"context"
	"fmt"
	"time"

	"grocer/internal/metrics"
	"grocer/internal/model"
	"grocer/internal/notify"
	"grocer/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	ledger      StockLedger
	couriers    CourierSelector
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	ledger StockLedger,
	couriers CourierSelector,
	notifier Notifier,
	m *metrics.Metrics,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		ledger:      ledger,
		couriers:    couriers,
		notifier:    notifier,
		metrics:     m,
		logger:      logger.With().Str("service", "order").Logger(),
	}
}

// CreateOrder creates a new order and decrements stock in one transaction.
func (s *orderService) CreateOrder(ctx context.Context, actor model.Actor, req *model.OrderRequest) (*model.Order, error) {
	if err := s.validateOrderRequest(req); err != nil {
		return nil, err
	}

	state, err := resolveInitialState(actor.Role, req)
	if err != nil {
		s.logger.Warn().
			Str("actor_id", actor.ID.String()).
			Str("role", string(actor.Role)).
			Err(err).
			Msg("explicit order state refused")
		return nil, err
	}

	orderID := uuid.New()
	items, names, err := priceItems(ctx, s.productRepo, orderID, req.Items)
	if err != nil {
		s.logger.Warn().Int("item_count", len(req.Items)).Err(err).Msg("product validation failed")
		return nil, err
	}

	now := time.Now()
	address, references := deliveryAddress(req.DeliveryType, req.Address, req.References)
	order := &model.Order{
		ID:            orderID,
		CustomerID:    actor.ID,
		Items:         items,
		Total:         model.CalculateTotal(items),
		DeliveryType:  req.DeliveryType,
		Address:       address,
		References:    references,
		Phone:         req.Phone,
		PaymentMethod: req.PaymentMethod,
		State:         state,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if actor.Role == model.RoleCashier {
		cashierID := actor.ID
		order.CashierID = &cashierID
	}

	var courier *model.User
	if order.DeliveryType == model.DeliveryHome {
		courier, err = s.couriers.Select(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to select courier: %w", err)
		}
		if courier != nil {
			order.CourierID = &courier.ID
		}
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// Ensure transaction is rolled back on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err = s.ledger.Apply(ctx, tx, model.StockDecrease, order.StockDeltas()); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to apply stock decrease")
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.metrics.OrderCreated(string(order.State))
	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("state", string(order.State)).
		Int("item_count", len(order.Items)).
		Msg("order created successfully")

	if courier != nil {
		s.notifier.Dispatch(notify.CourierAssigned(courier, order, names))
	}

	return order, nil
}

// GetByID returns the order if the actor may see it.
func (s *orderService) GetByID(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.CustomerID != actor.ID && !actor.Role.IsStaff() && !isAssignedCourier(actor, order) {
		return nil, model.ErrForbidden
	}
	return order, nil
}

func (s *orderService) ListForCustomer(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	customerID := actor.ID
	return s.list(ctx, model.OrderFilter{CustomerID: &customerID})
}

func (s *orderService) ListForCourier(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	if actor.Role != model.RoleCourier {
		return nil, model.ErrForbidden
	}
	courierID := actor.ID
	return s.list(ctx, model.OrderFilter{
		CourierID:     &courierID,
		ExcludeStates: []model.OrderState{model.OrderStateCompleted, model.OrderStateCancelled},
	})
}

func (s *orderService) ListUnreconciledSales(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	if actor.Role != model.RoleCashier {
		return nil, model.ErrCashierOnly
	}
	cashierID := actor.ID
	cashedOut := false
	return s.list(ctx, model.OrderFilter{CashierID: &cashierID, CashedOut: &cashedOut})
}

// MarkDelivered completes the order; only its assigned courier may do so.
func (s *orderService) MarkDelivered(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !isAssignedCourier(actor, order) {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("actor_id", actor.ID.String()).
			Msg("delivery confirmation by non-assigned user")
		return nil, model.ErrNotAssignedCourier
	}

	return s.setState(ctx, order, model.OrderStateCompleted)
}

// UpdateState sets an arbitrary valid state; staff only.
func (s *orderService) UpdateState(ctx context.Context, actor model.Actor, id uuid.UUID, state model.OrderState) (*model.Order, error) {
	if !actor.Role.IsStaff() {
		return nil, model.ErrStaffOnly
	}
	if !state.IsValid() {
		return nil, model.ErrInvalidOrderState
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.setState(ctx, order, state)
}

// AssignCourier overrides the courier of an order and notifies them.
func (s *orderService) AssignCourier(ctx context.Context, actor model.Actor, id, courierID uuid.UUID) (*model.Order, error) {
	if actor.Role != model.RoleAdmin {
		return nil, model.ErrForbidden
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	courier, err := s.userRepo.GetByID(ctx, courierID)
	if err != nil {
		return nil, fmt.Errorf("failed to get courier: %w", err)
	}
	if courier == nil || courier.Role != model.RoleCourier {
		return nil, model.ErrCourierNotFound
	}

	found, err := s.orderRepo.AssignCourier(ctx, id, courierID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to assign courier")
		return nil, fmt.Errorf("failed to assign courier: %w", err)
	}
	if !found {
		return nil, model.ErrOrderNotFound
	}
	order.CourierID = &courier.ID

	s.logger.Info().
		Str("order_id", id.String()).
		Str("courier_id", courierID.String()).
		Msg("courier assigned manually")

	s.notifier.Dispatch(notify.CourierAssigned(courier, order, lookupProductNames(ctx, s.productRepo, itemProductIDs(order.Items), s.logger)))
	return order, nil
}

// CashOut reconciles the cashier's till in a single update.
func (s *orderService) CashOut(ctx context.Context, actor model.Actor) (int64, error) {
	if actor.Role != model.RoleCashier {
		return 0, model.ErrCashierOnly
	}

	n, err := s.orderRepo.MarkCashedOut(ctx, actor.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("cashier_id", actor.ID.String()).Msg("failed to cash out")
		return 0, fmt.Errorf("failed to cash out: %w", err)
	}

	s.logger.Info().Str("cashier_id", actor.ID.String()).Int64("orders", n).Msg("cash out completed")
	return n, nil
}

func (s *orderService) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if actor.Role != model.RoleAdmin {
		return model.ErrForbidden
	}

	found, err := s.orderRepo.Delete(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to delete order")
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if !found {
		return model.ErrOrderNotFound
	}

	s.logger.Info().Str("order_id", id.String()).Msg("order deleted")
	return nil
}

func (s *orderService) load(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) setState(ctx context.Context, order *model.Order, state model.OrderState) (*model.Order, error) {
	found, err := s.orderRepo.UpdateState(ctx, order.ID, state)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to update order state")
		return nil, fmt.Errorf("failed to update order state: %w", err)
	}
	if !found {
		return nil, model.ErrOrderNotFound
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("from", string(order.State)).
		Str("to", string(state)).
		Msg("order state updated")

	order.State = state
	return order, nil
}

func (s *orderService) list(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	orders, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// validateOrderRequest validates the order request.
func (s *orderService) validateOrderRequest(req *model.OrderRequest) error {
	if req == nil {
		return model.NewValidationError("Order request is required")
	}
	if err := validateItems(req.Items); err != nil {
		s.logger.Warn().Int("item_count", len(req.Items)).Err(err).Msg("invalid order items")
		return err
	}
	if !req.PaymentMethod.IsValid() {
		return model.NewValidationError(fmt.Sprintf("Invalid payment method %q", req.PaymentMethod))
	}
	return validateDelivery(req.DeliveryType, req.Address)
}

func isAssignedCourier(actor model.Actor, order *model.Order) bool {
	return actor.Role == model.RoleCourier && order.CourierID != nil && *order.CourierID == actor.ID
}
