package handler

import (
	"context"
	"net/http"
	"strconv"

	"grocer/internal/model"
	"grocer/internal/service"

	"github.com/rs/zerolog"
)

// RestockHandler serves the supplier restock workflow and the low-stock report.
type RestockHandler struct {
	service service.RestockService
	logger  zerolog.Logger
}

// NewRestockHandler creates a new restock handler.
func NewRestockHandler(service service.RestockService, logger zerolog.Logger) *RestockHandler {
	return &RestockHandler{
		service: service,
		logger:  logger.With().Str("handler", "restock").Logger(),
	}
}

// Create handles POST /api/supplier-orders requests.
func (h *RestockHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.SupplierOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.Create(r.Context(), actor, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order, h.logger)
}

// ListMine handles GET /api/supplier-orders/mine requests.
func (h *RestockHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListMine)
}

// ListAwaitingReview handles GET /api/supplier-orders/pending-review requests.
func (h *RestockHandler) ListAwaitingReview(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListAwaitingReview)
}

// Quote handles PUT /api/supplier-orders/{id}/prices requests.
func (h *RestockHandler) Quote(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger)
	if !ok {
		return
	}

	var req model.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.Quote(r.Context(), actor, id, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order, h.logger)
}

// ConfirmPayment handles PUT /api/supplier-orders/{id}/payment requests.
func (h *RestockHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger)
	if !ok {
		return
	}

	order, err := h.service.ConfirmPayment(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order, h.logger)
}

// Review handles PUT /api/supplier-orders/{id}/review requests.
func (h *RestockHandler) Review(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger)
	if !ok {
		return
	}

	var req model.ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.Review(r.Context(), actor, id, req.Action)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order, h.logger)
}

// LowStock handles GET /api/stock/low requests. The optional threshold query
// parameter overrides the configured default.
func (h *RestockHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var threshold *int
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, model.WrapDomainError(model.ErrCodeValidation, "Threshold must be an integer", err), h.logger)
			return
		}
		threshold = &n
	}

	groups, err := h.service.LowStock(r.Context(), actor, threshold)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if groups == nil {
		groups = []model.LowStockGroup{}
	}

	writeJSON(w, http.StatusOK, groups, h.logger)
}

func (h *RestockHandler) list(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, actor model.Actor) ([]model.SupplierOrder, error)) {
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
		orders = []model.SupplierOrder{}
	}

	writeJSON(w, http.StatusOK, orders, h.logger)
}
