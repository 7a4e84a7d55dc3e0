package common

import (
	"context"
	"encoding/json"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/stripe/stripe-go/v82"
)

func stripeLookups(sessionID, clientReference string, md map[string]string) []Lookup {
	return []Lookup{
		{Correlation: types.CORRELATION_STRIPE_SESSION, Value: sessionID},
		{Correlation: types.CORRELATION_DONATION_ID, Value: clientReference},
		{Correlation: types.CORRELATION_DONATION_ID, Value: md["donationId"]},
	}
}

func checkoutSessionOutcome(eventType string, cs *stripe.CheckoutSession) (Outcome, bool) {
	out := Outcome{
		Gateway:     "stripe",
		EventType:   eventType,
		Method:      types.METHOD_STRIPE,
		Lookups:     stripeLookups(cs.ID, cs.ClientReferenceID, cs.Metadata),
		AmountMinor: cs.AmountTotal,
		Currency:    string(cs.Currency),
		Metadata: types.JSONB{
			"checkoutSessionId": cs.ID,
			"paymentStatus":     string(cs.PaymentStatus),
		},
	}
	if cs.CustomerDetails != nil {
		out.PayerEmail = cs.CustomerDetails.Email
		out.PayerName = cs.CustomerDetails.Name
	}
	if cs.PaymentIntent != nil {
		out.Metadata["paymentIntentId"] = cs.PaymentIntent.ID
	}
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return out, false
		}
		out.Success = true
		out.Handles = map[types.Correlation]string{types.CORRELATION_STRIPE_SESSION: cs.ID}
		return out, true
	case "checkout.session.expired":
		out.Reason = "checkout session expired"
		return out, true
	case "checkout.session.async_payment_failed":
		out.Reason = "asynchronous payment failed"
		return out, true
	}
	return out, false
}

// HandleStripeEvent applies a verified Stripe event to the ledger.
func (l *Ledger) HandleStripeEvent(ctx context.Context, event stripe.Event, body []byte) (*models.Donation, error) {
	eventType := string(event.Type)
	var out Outcome
	var handled bool
	externalID := ""
	switch eventType {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			verr := types.NewValidationError("data.object", err.Error())
			l.logGatewayEvent(ctx, "stripe", eventType, event.ID, body, nil, verr)
			return nil, verr
		}
		externalID = cs.ID
		out, handled = checkoutSessionOutcome(eventType, &cs)
	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			verr := types.NewValidationError("data.object", err.Error())
			l.logGatewayEvent(ctx, "stripe", eventType, event.ID, body, nil, verr)
			return nil, verr
		}
		externalID = pi.ID
		reason := "payment failed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			reason = pi.LastPaymentError.Msg
		}
		out = Outcome{
			Gateway:   "stripe",
			EventType: eventType,
			Method:    types.METHOD_STRIPE,
			Lookups:   stripeLookups("", "", pi.Metadata),
			Reason:    reason,
			Metadata:  types.JSONB{"paymentIntentId": pi.ID},
		}
		handled = true
	}
	if !handled {
		l.logGatewayEvent(ctx, "stripe", eventType, externalID, body, nil, errIgnoredEvent)
		return nil, nil
	}
	donation, err := l.Reconcile(ctx, out)
	l.logGatewayEvent(ctx, "stripe", eventType, externalID, body, donation, err)
	return donation, err
}
