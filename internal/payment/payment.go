// Package payment talks to the card payment provider: it opens hosted
// checkout sessions and verifies webhook notifications.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"grocer/internal/config"
	"grocer/internal/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"
)

// MetadataOrderID is the session metadata key carrying the order id.
const MetadataOrderID = "orderId"

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// LineItem is one priced entry on the hosted payment page.
type LineItem struct {
	Name       string
	UnitAmount int64 // minor currency units
	Quantity   int64
}

// CheckoutParams describes a checkout session for one order.
type CheckoutParams struct {
	OrderID uuid.UUID
	Items   []LineItem
}

// CheckoutSession is the provider's hosted session.
type CheckoutSession struct {
	ID  string
	URL string
}

// Gateway is the card payment provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	ParseEvent(payload []byte, signature string) (*model.PaymentEvent, error)
}

type sessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeGateway implements Gateway on Stripe Checkout.
type StripeGateway struct {
	cfg        config.StripeConfig
	newSession sessionCreator
	newBackOff func() backoff.BackOff
	logger     zerolog.Logger
}

// NewStripeGateway configures the Stripe client from cfg.
func NewStripeGateway(cfg config.StripeConfig, logger zerolog.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	stripe.Key = cfg.SecretKey
	if cfg.Timeout > 0 {
		stripe.SetHTTPClient(&http.Client{Timeout: cfg.Timeout})
	}
	return &StripeGateway{
		cfg:        cfg,
		newSession: session.New,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     logger.With().Str("component", "stripe").Logger(),
	}, nil
}

// CreateCheckoutSession opens a card-only payment session. Transient
// provider failures are retried; client errors are not.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	if len(p.Items) == 0 {
		return nil, errors.New("checkout requires at least one line item")
	}

	params := g.sessionParams(p)
	params.Context = ctx

	var created *stripe.CheckoutSession
	operation := func() error {
		s, err := g.newSession(params)
		if err != nil {
			var stripeErr *stripe.Error
			if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode > 0 && stripeErr.HTTPStatusCode < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}
		created = s
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(g.newBackOff(), uint64(g.cfg.MaxRetries)), ctx)
	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		g.logger.Warn().Err(err).Dur("retry_in", wait).Str("order_id", p.OrderID.String()).Msg("Checkout session creation failed, retrying")
	})
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}

	return &CheckoutSession{ID: created.ID, URL: created.URL}, nil
}

func (g *StripeGateway) sessionParams(p CheckoutParams) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(p.Items))
	for _, item := range p.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.cfg.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(g.cfg.SuccessURL),
		CancelURL:          stripe.String(g.cfg.CancelURL),
		ClientReferenceID:  stripe.String(p.OrderID.String()),
	}
	params.AddMetadata(MetadataOrderID, p.OrderID.String())
	return params
}

// ParseEvent verifies the signature and maps checkout session events.
// Event types other than completed and expired come back as ignored.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*model.PaymentEvent, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEvent(payload, signature, g.cfg.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &model.PaymentEvent{ID: event.ID, Type: model.PaymentEventIgnored}
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		out.Type = model.PaymentEventCompleted
	case stripe.EventTypeCheckoutSessionExpired:
		out.Type = model.PaymentEventExpired
	default:
		return out, nil
	}

	if event.Data == nil {
		return nil, errors.New("event carries no data")
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decoding checkout session: %w", err)
	}
	out.OrderID = cs.Metadata[MetadataOrderID]
	if out.OrderID == "" {
		out.OrderID = cs.ClientReferenceID
	}
	out.AmountTotal = cs.AmountTotal
	return out, nil
}
