package stripe

import (
	"context"
	"math"

	"github.com/plan-it/planit/internal/config"
	"github.com/plan-it/planit/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const currency = "cad"

type Payments struct {
	client        *stripe.Client
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewPayments(cfg *config.Config) *Payments {
	return &Payments{
		client:        stripe.NewClient(cfg.StripeSecretKey),
		webhookSecret: cfg.StripeWebhookSecret,
		successURL:    cfg.CheckoutSuccessURL,
		cancelURL:     cfg.CheckoutCancelURL,
	}
}

// CreateCheckoutSession opens a hosted payment page for the cart. Nothing is
// persisted on our side by Stripe session creation itself.
func (p *Payments) CreateCheckoutSession(ctx context.Context, cart domain.Cart) (string, string, error) {
	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, len(cart.Lines))
	for i, line := range cart.Lines {
		name := line.Name
		if name == "" {
			name = "Event ticket"
		}
		lineItems[i] = &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
				UnitAmount: stripe.Int64(toCents(line.Price)),
			},
			Quantity: stripe.Int64(int64(line.Quantity)),
		}
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(p.successURL),
		CancelURL:          stripe.String(p.cancelURL),
		Metadata: map[string]string{
			"userId": cart.UserID,
		},
	}

	sess, err := p.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return "", "", &domain.PaymentProviderError{Err: err}
	}
	return sess.ID, sess.URL, nil
}

func (p *Payments) CreateSponsorshipSession(ctx context.Context, eventTitle string, s domain.Sponsorship) (string, string, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String("Sponsorship: " + eventTitle),
					},
					UnitAmount: stripe.Int64(toCents(s.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.successURL),
		CancelURL:  stripe.String(p.cancelURL),
		Metadata: map[string]string{
			"sponsorshipId": s.ID.String(),
			"sponsorId":     s.SponsorID,
		},
	}

	sess, err := p.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return "", "", &domain.PaymentProviderError{Err: err}
	}
	return sess.ID, sess.URL, nil
}

// VerifyWebhook checks the Stripe-Signature header and parses the event.
func (p *Payments) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, p.webhookSecret)
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
