package handler

import (
	"context"
	"net/http"

	"grocer/internal/model"
	"grocer/internal/service"

	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders requests.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), actor, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order, h.logger)
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger)
	if !ok {
		return
	}

	order, err := h.service.GetByID(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order, h.logger)
}

// ListMine handles GET /api/orders/mine requests.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListForCustomer)
}

// ListAssigned handles GET /api/orders/assigned requests.
func (h *OrderHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListForCourier)
}

// ListSales handles GET /api/orders/sales requests.
func (h *OrderHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListUnreconciledSales)
}

// CashOut handles PUT /api/orders/cash-out requests.
func (h *OrderHandler) CashOut(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	n, err := h.service.CashOut(r.Context(), actor)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.CashOutResponse{Reconciled: n}, h.logger)
}

// MarkDelivered handles PUT /api/orders/{id}/delivered requests.
func (h *OrderHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger)
	if !ok {
		return
	}

	order, err := h.service.MarkDelivered(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order, h.logger)
}

// UpdateState handles PUT /api/orders/{id}/state requests.
func (h *OrderHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger)
	if !ok {
		return
	}

	var req model.UpdateStateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.UpdateState(r.Context(), actor, id, req.State)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order, h.logger)
}

// AssignCourier handles PUT /api/orders/{id}/courier requests.
func (h *OrderHandler) AssignCourier(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger)
	if !ok {
		return
	}

	var req model.AssignCourierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.AssignCourier(r.Context(), actor, id, req.CourierID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order, h.logger)
}

// Delete handles DELETE /api/orders/{id} requests.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, actor model.Actor) ([]model.Order, error)) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	orders, err := fetch(r.Context(), actor)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}

	writeJSON(w, http.StatusOK, orders, h.logger)
}
