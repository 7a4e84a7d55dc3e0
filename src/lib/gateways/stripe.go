package gateways

import (
	"context"
	"errors"
	"strings"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/stripe/stripe-go/v82"
)

type StripeGateway struct {
	cfg StripeConfig
	sc  *stripe.Client
}

func NewStripeGateway(cfg StripeConfig, sc *stripe.Client) *StripeGateway {
	if sc == nil {
		sc = stripe.NewClient(cfg.SecretKey)
	}
	return &StripeGateway{cfg: cfg, sc: sc}
}

func (g *StripeGateway) Name() types.PaymentMethod {
	return types.METHOD_STRIPE
}

func (g *StripeGateway) checkoutParams(req InitiationRequest) *stripe.CheckoutSessionCreateParams {
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "usd"
	}
	name := req.Description
	if name == "" {
		name = "Donation"
	}
	metadata := map[string]string{
		"donationId": req.DonationID,
		"reference":  req.Reference,
	}
	piParams := &stripe.CheckoutSessionCreatePaymentIntentDataParams{}
	for k, v := range metadata {
		piParams.AddMetadata(k, v)
	}
	params := &stripe.CheckoutSessionCreateParams{
		SuccessURL:        stripe.String(g.cfg.SuccessURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.DonationID),
		PaymentIntentData: piParams,
		Metadata:          metadata,
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(req.AmountMinor),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.PayerEmail != "" {
		params.CustomerEmail = stripe.String(req.PayerEmail)
	}
	return params
}

func (g *StripeGateway) Validate(req InitiationRequest) error {
	if req.AmountMinor <= 0 {
		return types.NewValidationError("amount", "must be greater than zero")
	}
	return nil
}

func (g *StripeGateway) Initiate(ctx context.Context, req InitiationRequest) (*InitiationResult, error) {
	if err := g.Validate(req); err != nil {
		return nil, err
	}
	cs, err := g.sc.V1CheckoutSessions.Create(ctx, g.checkoutParams(req))
	if err != nil {
		msg := err.Error()
		code := ""
		var se *stripe.Error
		if errors.As(err, &se) {
			msg = se.Msg
			code = string(se.Code)
		}
		return nil, &types.GatewayError{Gateway: "stripe", Code: code, Message: msg, Err: err}
	}
	return &InitiationResult{
		Kind:          RESULT_APPROVAL_URL,
		ApprovalURL:   cs.URL,
		ProvisionalID: cs.ID,
		Correlation:   types.CORRELATION_STRIPE_SESSION,
		Raw: types.JSONB{
			"checkoutSessionId": cs.ID,
		},
	}, nil
}
