package handler

import (
	"errors"
	"io"
	"net/http"

	"grocer/internal/model"
	"grocer/internal/payment"
	"grocer/internal/service"

	"github.com/rs/zerolog"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 65536

// PaymentHandler serves card checkout and the provider webhook.
type PaymentHandler struct {
	service service.PaymentService
	gateway payment.Gateway
	logger  zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(service service.PaymentService, gateway payment.Gateway, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		gateway: gateway,
		logger:  logger.With().Str("handler", "payment").Logger(),
	}
}

// Checkout handles POST /api/payments/checkout requests.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	resp, err := h.service.CreateCheckout(r.Context(), actor, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, resp, h.logger)
}

// Webhook handles POST /api/webhooks/stripe. Once the signature verifies the
// event is acknowledged even if applying it fails; the failure is logged and
// the event id released so a resend is processed.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, r, model.WrapDomainError(model.ErrCodeValidation, "Unreadable webhook body", err), h.logger)
		return
	}

	event, err := h.gateway.ParseEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			writeError(w, r, model.WrapDomainError(model.ErrCodeValidation, "Invalid webhook signature", err), h.logger)
			return
		}
		writeError(w, r, model.WrapDomainError(model.ErrCodeValidation, "Invalid webhook payload", err), h.logger)
		return
	}

	if err := h.service.HandleEvent(r.Context(), event); err != nil {
		h.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("order_id", event.OrderID).
			Msg("payment event not applied")
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true}, h.logger)
}
