// Package checkout creates Stripe hosted checkout sessions and verifies the
// webhooks Stripe sends back about them.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type LineItem struct {
	Name        string
	AmountMinor int64
	Quantity    int64
}

type Request struct {
	PaymentID     string
	CustomerEmail string
	Currency      string
	Items         []LineItem
}

type Session struct {
	ID  string
	URL string
}

type Client struct {
	successURL    string
	cancelURL     string
	webhookSecret string
}

// NewClient expects stripe.Key to be set by the caller.
func NewClient(successURL, cancelURL, webhookSecret string) *Client {
	return &Client{
		successURL:    successURL,
		cancelURL:     cancelURL,
		webhookSecret: webhookSecret,
	}
}

func (c *Client) CreateSession(ctx context.Context, req Request) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.successURL + "?payment=" + req.PaymentID),
		CancelURL:         stripe.String(c.cancelURL + "?payment=" + req.PaymentID),
		ClientReferenceID: stripe.String(req.PaymentID),
		Metadata: map[string]string{
			"payment_id": req.PaymentID,
		},
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, item := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.AmountMinor),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	s, err := session.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}

type EventKind int

const (
	EventIgnored EventKind = iota
	EventSessionCompleted
	EventSessionExpired
)

// Event is the part of a Stripe webhook this service acts on.
type Event struct {
	Kind      EventKind
	SessionID string
}

// ParseWebhook verifies the Stripe-Signature header and extracts the session event.
func (c *Client) ParseWebhook(payload []byte, signature string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var kind EventKind
	switch ev.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		kind = EventSessionCompleted
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		kind = EventSessionExpired
	default:
		return Event{Kind: EventIgnored}, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return Event{}, fmt.Errorf("decode checkout session: %w", err)
	}
	return Event{Kind: kind, SessionID: s.ID}, nil
}
