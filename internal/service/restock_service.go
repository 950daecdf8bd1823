package service

import (
	"context"
	"fmt"
	"time"

	"grocer/internal/model"
	"grocer/internal/notify"
	"grocer/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// restockService implements RestockService.
type restockService struct {
	supplierOrderRepo repository.SupplierOrderRepository
	userRepo          repository.UserRepository
	productRepo       repository.ProductRepository
	ledger            StockLedger
	notifier          Notifier
	lowStockThreshold int
	logger            zerolog.Logger
}

// NewRestockService creates the supplier restock workflow.
func NewRestockService(
	supplierOrderRepo repository.SupplierOrderRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	ledger StockLedger,
	notifier Notifier,
	lowStockThreshold int,
	logger zerolog.Logger,
) RestockService {
	return &restockService{
		supplierOrderRepo: supplierOrderRepo,
		userRepo:          userRepo,
		productRepo:       productRepo,
		ledger:            ledger,
		notifier:          notifier,
		lowStockThreshold: lowStockThreshold,
		logger:            logger.With().Str("service", "restock").Logger(),
	}
}

// Create opens a restock order for a supplier and asks them for a quote.
func (s *restockService) Create(ctx context.Context, actor model.Actor, req *model.SupplierOrderRequest) (*model.SupplierOrder, error) {
	if actor.Role != model.RoleAdmin {
		return nil, model.ErrForbidden
	}
	if err := validateSupplierOrderRequest(req); err != nil {
		return nil, err
	}

	supplier, err := s.loadSupplier(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(req.Items))
	seen := make(map[uuid.UUID]struct{}, len(req.Items))
	for _, item := range req.Items {
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	if len(products) != len(ids) {
		s.logger.Warn().Int("requested", len(ids)).Int("found", len(products)).Msg("restock references unknown products")
		return nil, model.ErrProductNotFound
	}
	names := make(notify.ProductNames, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}

	now := time.Now()
	order := &model.SupplierOrder{
		ID:            uuid.New(),
		SupplierID:    supplier.ID,
		PaymentMethod: req.PaymentMethod,
		PaymentState:  model.SupplierPaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.Items = make([]model.SupplierOrderItem, len(req.Items))
	for i, item := range req.Items {
		order.Items[i] = model.SupplierOrderItem{
			ID:                uuid.New(),
			SupplierOrderID:   order.ID,
			ProductID:         item.ProductID,
			RequestedQuantity: item.Quantity,
		}
	}

	if err := s.supplierOrderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create supplier order: %w", err)
	}

	s.logger.Info().
		Str("supplier_order_id", order.ID.String()).
		Str("supplier_id", supplier.ID.String()).
		Int("item_count", len(order.Items)).
		Msg("supplier order created")

	s.notifier.Dispatch(notify.RestockRequested(supplier, order, names))
	return order, nil
}

func (s *restockService) ListMine(ctx context.Context, actor model.Actor) ([]model.SupplierOrder, error) {
	if actor.Role != model.RoleSupplier {
		return nil, model.ErrForbidden
	}
	orders, err := s.supplierOrderRepo.ListBySupplier(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier orders: %w", err)
	}
	return orders, nil
}

// Quote records the owning supplier's unit prices and queues the order for admin review.
func (s *restockService) Quote(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.QuoteRequest) (*model.SupplierOrder, error) {
	if req == nil || len(req.Prices) == 0 {
		return nil, model.NewValidationError("At least one price is required")
	}
	for _, p := range req.Prices {
		if p.UnitPrice.IsNegative() {
			return nil, model.NewValidationError("Unit prices cannot be negative")
		}
	}

	order, err := s.inTx(ctx, id, func(tx pgx.Tx, order *model.SupplierOrder) error {
		if order.SupplierID != actor.ID {
			return model.ErrNotOrderOwner
		}
		if order.PaymentState != model.SupplierPaymentPending {
			return model.ErrPaymentNotPending
		}

		prices := make(map[uuid.UUID]model.QuotePrice, len(req.Prices))
		for _, p := range req.Prices {
			prices[p.ProductID] = p
		}
		for i := range order.Items {
			if p, ok := prices[order.Items[i].ProductID]; ok {
				price := p.UnitPrice
				order.Items[i].UnitPrice = &price
			}
		}
		order.AwaitingAdminReview = true
		order.SupplierConfirmed = true

		return s.supplierOrderRepo.Update(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("supplier_order_id", id.String()).Msg("supplier quotation submitted")

	admins, err := s.userRepo.ListByRole(ctx, model.RoleAdmin)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list admins for quote notification")
		return order, nil
	}
	names := lookupProductNames(ctx, s.productRepo, supplierItemProductIDs(order.Items), s.logger)
	for i := range admins {
		s.notifier.Dispatch(notify.QuoteSubmitted(&admins[i], order, names))
	}
	return order, nil
}

// ConfirmPayment marks the order paid and adds the requested quantities to
// stock in one transaction. Cash payments are confirmed by the supplier who
// received them; transfers may also be confirmed by staff.
func (s *restockService) ConfirmPayment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.SupplierOrder, error) {
	order, err := s.inTx(ctx, id, func(tx pgx.Tx, order *model.SupplierOrder) error {
		if !canConfirmPayment(actor, order) {
			return model.ErrForbidden
		}
		if order.PaymentState != model.SupplierPaymentPending {
			return model.ErrPaymentNotPending
		}

		order.PaymentState = model.SupplierPaymentPaid
		if err := s.supplierOrderRepo.Update(ctx, tx, order); err != nil {
			return err
		}
		return s.ledger.Apply(ctx, tx, model.StockIncrease, order.StockDeltas())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("supplier_order_id", id.String()).
		Str("payment_method", string(order.PaymentMethod)).
		Msg("supplier payment confirmed")

	if supplier, err := s.userRepo.GetByID(ctx, order.SupplierID); err == nil && supplier != nil {
		s.notifier.Dispatch(notify.RestockPaid(supplier, order))
	}
	return order, nil
}

func (s *restockService) ListAwaitingReview(ctx context.Context, actor model.Actor) ([]model.SupplierOrder, error) {
	if actor.Role != model.RoleAdmin {
		return nil, model.ErrForbidden
	}
	orders, err := s.supplierOrderRepo.ListAwaitingReview(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier orders: %w", err)
	}
	return orders, nil
}

// Review records the admin decision on a quotation. The order must already be
// paid, so a reviewed order has had its stock applied exactly once.
func (s *restockService) Review(ctx context.Context, actor model.Actor, id uuid.UUID, action model.ReviewAction) (*model.SupplierOrder, error) {
	if actor.Role != model.RoleAdmin {
		return nil, model.ErrForbidden
	}
	if action != model.ReviewAccept && action != model.ReviewReject {
		return nil, model.NewValidationError(fmt.Sprintf("Unknown review action %q", action))
	}

	order, err := s.inTx(ctx, id, func(tx pgx.Tx, order *model.SupplierOrder) error {
		if !order.AwaitingAdminReview {
			return model.ErrNotAwaitingReview
		}
		if order.PaymentState != model.SupplierPaymentPaid {
			return model.ErrReviewBeforePayment
		}
		if action == model.ReviewAccept {
			order.PaymentState = model.SupplierPaymentConfirmed
		} else {
			order.PaymentState = model.SupplierPaymentRejected
		}
		order.AwaitingAdminReview = false
		return s.supplierOrderRepo.Update(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("supplier_order_id", id.String()).
		Str("action", string(action)).
		Msg("supplier quotation reviewed")

	if supplier, err := s.userRepo.GetByID(ctx, order.SupplierID); err == nil && supplier != nil {
		s.notifier.Dispatch(notify.QuoteReviewed(supplier, order))
	}
	return order, nil
}

func (s *restockService) LowStock(ctx context.Context, actor model.Actor, threshold *int) ([]model.LowStockGroup, error) {
	if actor.Role != model.RoleAdmin {
		return nil, model.ErrForbidden
	}
	limit := s.lowStockThreshold
	if threshold != nil {
		if *threshold < 0 {
			return nil, model.NewValidationError("Threshold cannot be negative")
		}
		limit = *threshold
	}

	groups, err := s.productRepo.ListLowStock(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock: %w", err)
	}
	return groups, nil
}

// inTx loads the order under a row lock, runs fn and commits.
func (s *restockService) inTx(
	ctx context.Context,
	id uuid.UUID,
	fn func(tx pgx.Tx, order *model.SupplierOrder) error,
) (order *model.SupplierOrder, err error) {
	tx, err := s.supplierOrderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	order, err = s.supplierOrderRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier order: %w", err)
	}
	if order == nil {
		err = model.ErrSupplierOrderNotFound
		return nil, err
	}

	if err = fn(tx, order); err != nil {
		s.logger.Warn().Err(err).Str("supplier_order_id", id.String()).Msg("supplier order change refused")
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("supplier_order_id", id.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return order, nil
}

func (s *restockService) loadSupplier(ctx context.Context, id uuid.UUID) (*model.User, error) {
	supplier, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	if supplier == nil || supplier.Role != model.RoleSupplier {
		return nil, model.ErrSupplierNotFound
	}
	return supplier, nil
}

func canConfirmPayment(actor model.Actor, order *model.SupplierOrder) bool {
	if actor.ID == order.SupplierID && actor.Role == model.RoleSupplier {
		return true
	}
	return order.PaymentMethod == model.PaymentTransfer && actor.Role.IsStaff()
}

func validateSupplierOrderRequest(req *model.SupplierOrderRequest) error {
	if req == nil {
		return model.NewValidationError("Supplier order request is required")
	}
	if req.SupplierID == uuid.Nil {
		return model.NewValidationError("Supplier is required")
	}
	if req.PaymentMethod != model.PaymentCash && req.PaymentMethod != model.PaymentTransfer {
		return model.NewValidationError(fmt.Sprintf("Invalid payment method %q", req.PaymentMethod))
	}
	if len(req.Items) == 0 {
		return model.NewValidationError("Supplier order must contain at least one item")
	}
	for _, item := range req.Items {
		if item.ProductID == uuid.Nil {
			return model.NewValidationError("Product is required")
		}
		if !model.ValidQuantity(item.Quantity) {
			return model.ErrInvalidQuantity
		}
	}
	return nil
}

func supplierItemProductIDs(items []model.SupplierOrderItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	return ids
}
