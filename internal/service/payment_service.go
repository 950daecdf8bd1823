package service

import (
	"context"
	"fmt"
	"time"

	"grocer/internal/metrics"
	"grocer/internal/model"
	"grocer/internal/notify"
	"grocer/internal/payment"
	"grocer/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// paymentService implements PaymentService.
type paymentService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	ledger      StockLedger
	couriers    CourierSelector
	gateway     payment.Gateway
	guard       EventGuard
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewPaymentService creates the card payment reconciler.
func NewPaymentService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	ledger StockLedger,
	couriers CourierSelector,
	gateway payment.Gateway,
	guard EventGuard,
	notifier Notifier,
	m *metrics.Metrics,
	logger zerolog.Logger,
) PaymentService {
	return &paymentService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		ledger:      ledger,
		couriers:    couriers,
		gateway:     gateway,
		guard:       guard,
		notifier:    notifier,
		metrics:     m,
		logger:      logger.With().Str("service", "payment").Logger(),
	}
}

// CreateCheckout stores the order as pending-payment without touching stock,
// then opens the hosted session. If the provider fails the order is cancelled.
func (s *paymentService) CreateCheckout(ctx context.Context, actor model.Actor, req *model.CheckoutRequest) (*model.CheckoutResponse, error) {
	if req == nil {
		return nil, model.NewValidationError("Checkout request is required")
	}
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	if err := validateDelivery(req.DeliveryType, req.Address); err != nil {
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
		PaymentMethod: model.PaymentCard,
		State:         model.OrderStatePendingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.storeOrder(ctx, order); err != nil {
		return nil, err
	}
	s.metrics.OrderCreated(string(order.State))

	lineItems := make([]payment.LineItem, len(items))
	for i, item := range items {
		lineItems[i] = payment.LineItem{
			Name:       names.Name(item.ProductID),
			UnitAmount: toMinorUnits(item.UnitPrice),
			Quantity:   int64(item.Quantity),
		}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutParams{OrderID: order.ID, Items: lineItems})
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create checkout session")
		if _, cancelErr := s.orderRepo.TransitionState(ctx, order.ID, model.OrderStatePendingPayment, model.OrderStateCancelled); cancelErr != nil {
			s.logger.Error().Err(cancelErr).Str("order_id", order.ID.String()).Msg("failed to cancel unpaid order")
		}
		return nil, model.WrapDomainError(model.ErrPaymentSessionFailed.Code, model.ErrPaymentSessionFailed.Message, err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("session_id", session.ID).
		Msg("checkout session created")

	return &model.CheckoutResponse{OrderID: order.ID, SessionID: session.ID, URL: session.URL}, nil
}

func (s *paymentService) storeOrder(ctx context.Context, order *model.Order) (err error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to create order: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// HandleEvent applies a provider event once. A failed event is released so
// a later redelivery is processed again.
func (s *paymentService) HandleEvent(ctx context.Context, event *model.PaymentEvent) error {
	if event == nil || event.Type == model.PaymentEventIgnored {
		s.metrics.PaymentEvent(string(model.PaymentEventIgnored), "ignored")
		return nil
	}

	log := s.logger.With().Str("event_id", event.ID).Str("type", string(event.Type)).Str("order_id", event.OrderID).Logger()

	seen, err := s.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		// The order state guard still prevents double application.
		log.Warn().Err(err).Msg("idempotency store unavailable, processing without it")
	}
	if seen {
		log.Info().Msg("duplicate payment event skipped")
		s.metrics.PaymentEvent(string(event.Type), "duplicate")
		return nil
	}

	var outcome string
	switch event.Type {
	case model.PaymentEventCompleted:
		outcome, err = s.handleCompleted(ctx, event)
	case model.PaymentEventExpired:
		outcome, err = s.handleExpired(ctx, event)
	default:
		outcome, err = "ignored", nil
	}

	if err != nil {
		log.Error().Err(err).Msg("failed to process payment event")
		s.metrics.PaymentEvent(string(event.Type), "failed")
		if relErr := s.guard.Release(ctx, event.ID); relErr != nil {
			log.Error().Err(relErr).Msg("failed to release idempotency mark")
		}
		return err
	}

	log.Info().Str("outcome", outcome).Msg("payment event processed")
	s.metrics.PaymentEvent(string(event.Type), outcome)
	return nil
}

func (s *paymentService) handleCompleted(ctx context.Context, event *model.PaymentEvent) (outcome string, err error) {
	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		return "", model.WrapDomainError(model.ErrCodeValidation, "Payment event carries no valid order id", err)
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	order, err := s.orderRepo.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return "", model.ErrOrderNotFound
	}
	if order.State != model.OrderStatePendingPayment {
		return "skipped", nil
	}

	var courier *model.User
	if order.DeliveryType == model.DeliveryHome {
		courier, err = s.couriers.Select(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to select courier: %w", err)
		}
		if courier != nil {
			order.CourierID = &courier.ID
		}
		order.State = model.OrderStatePaid
	} else {
		order.State = model.OrderStatePendingPickup
	}
	if event.AmountTotal > 0 {
		order.Total = decimal.New(event.AmountTotal, -2)
	}

	if err = s.ledger.Apply(ctx, tx, model.StockDecrease, order.StockDeltas()); err != nil {
		return "", err
	}
	if err = s.orderRepo.UpdateFulfilment(ctx, tx, order); err != nil {
		return "", fmt.Errorf("failed to update order: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	if courier != nil {
		names := lookupProductNames(ctx, s.productRepo, itemProductIDs(order.Items), s.logger)
		s.notifier.Dispatch(notify.CourierAssigned(courier, order, names))
	}
	return "applied", nil
}

func (s *paymentService) handleExpired(ctx context.Context, event *model.PaymentEvent) (string, error) {
	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		return "", model.WrapDomainError(model.ErrCodeValidation, "Payment event carries no valid order id", err)
	}

	changed, err := s.orderRepo.TransitionState(ctx, orderID, model.OrderStatePendingPayment, model.OrderStateCancelled)
	if err != nil {
		return "", fmt.Errorf("failed to cancel order: %w", err)
	}
	if !changed {
		return "skipped", nil
	}
	return "applied", nil
}

// toMinorUnits converts a price to cents, rounding half away from zero.
func toMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
