// Package payment adapts the hosted checkout provider.
package payment

import (
	"context"
	"encoding/json"
	"strings"

	"showup/config"
	"showup/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

type stripeProvider struct {
	api *client.API
}

// NewStripeProvider builds the provider from payment.secretKey. A missing key
// still yields a provider; calls then fail with the provider's auth error.
func NewStripeProvider(cfg *config.Config) service.PaymentProvider {
	key := ""
	if cfg.Payment != nil {
		key = cfg.Payment.SecretKey
	}

	return &stripeProvider{api: client.New(key, nil)}
}

func (p *stripeProvider) CreateCheckoutSession(ctx context.Context, req *service.CheckoutRequest) (*service.CheckoutSession, error) {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ProductName),
	}
	if req.Description != "" {
		product.Description = stripe.String(req.Description)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(strings.ToLower(req.Currency)),
					ProductData: product,
					UnitAmount:  stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		// Copy the metadata onto the intent so payment_intent events carry it too.
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}

	return &service.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (p *stripeProvider) RetrieveSession(ctx context.Context, sessionID string) (*service.PaymentSessionDetails, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieve checkout session %s", sessionID)
	}

	return toSessionDetails(session), nil
}

// ParseWebhook verifies the Stripe-Signature header when a secret is given.
func (p *stripeProvider) ParseWebhook(payload []byte, signature, secret string) (*service.WebhookEvent, error) {
	var (
		event stripe.Event
		err   error
	)

	if secret != "" {
		event, err = webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "verify webhook signature")
		}
	} else if err = json.Unmarshal(payload, &event); err != nil {
		return nil, errors.Wrap(err, "decode webhook payload")
	}

	out := &service.WebhookEvent{ID: event.ID, Type: string(event.Type)}

	if strings.HasPrefix(out.Type, "checkout.session.") && event.Data != nil {
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, errors.Wrap(err, "decode checkout session")
		}
		out.Session = toSessionDetails(&session)
	}

	return out, nil
}

func toSessionDetails(session *stripe.CheckoutSession) *service.PaymentSessionDetails {
	details := &service.PaymentSessionDetails{
		ID:            session.ID,
		AmountTotal:   session.AmountTotal,
		Metadata:      session.Metadata,
		PaymentStatus: string(session.PaymentStatus),
		CustomerEmail: session.CustomerEmail,
	}
	if details.Metadata == nil {
		details.Metadata = map[string]string{}
	}
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		details.CustomerEmail = session.CustomerDetails.Email
	}
	if session.PaymentIntent != nil {
		details.PaymentIntentID = session.PaymentIntent.ID
	}

	return details
}
