package common

import (
	"context"
	"errors"
	"strings"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/tidwall/gjson"
)

const (
	PAYPAL_CAPTURE_COMPLETED = "PAYMENT.CAPTURE.COMPLETED"
	PAYPAL_CAPTURE_DENIED    = "PAYMENT.CAPTURE.DENIED"
	PAYPAL_CAPTURE_DECLINED  = "PAYMENT.CAPTURE.DECLINED"
	PAYPAL_EVENT_CAPTURE     = "order.capture"
)

type PaypalEvent struct {
	ID          string
	EventType   string
	ResourceID  string
	OrderID     string
	CustomID    string
	Status      string
	AmountMinor int64
	Currency    string
	PayerEmail  string
	Reason      string
}

func ParsePaypalEvent(body []byte) (*PaypalEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, types.NewValidationError("body", "invalid json")
	}
	eventType := gjson.GetBytes(body, "event_type")
	if eventType.Type != gjson.String || eventType.String() == "" {
		return nil, types.NewValidationError("event_type", "is required")
	}
	resource := gjson.GetBytes(body, "resource")
	if !resource.IsObject() {
		return nil, types.NewValidationError("resource", "is required")
	}
	ev := &PaypalEvent{
		ID:         gjson.GetBytes(body, "id").String(),
		EventType:  eventType.String(),
		ResourceID: resource.Get("id").String(),
		OrderID:    resource.Get("supplementary_data.related_ids.order_id").String(),
		CustomID:   resource.Get("custom_id").String(),
		Status:     resource.Get("status").String(),
		Currency:   resource.Get("amount.currency_code").String(),
		PayerEmail: resource.Get("payer.email_address").String(),
		Reason:     resource.Get("status_details.reason").String(),
	}
	if v := resource.Get("amount.value"); v.Exists() {
		minor, err := gateways.ParseMinorUnits(v.String())
		if err != nil {
			return nil, types.NewValidationError("resource.amount.value", err.Error())
		}
		ev.AmountMinor = minor
	}
	return ev, nil
}

func (ev *PaypalEvent) outcome() (Outcome, bool) {
	out := Outcome{
		Gateway:   "paypal",
		EventType: ev.EventType,
		Method:    types.METHOD_PAYPAL,
		Lookups: []Lookup{
			{Correlation: types.CORRELATION_PAYPAL_CAPTURE, Value: ev.ResourceID},
			{Correlation: types.CORRELATION_PAYPAL_ORDER, Value: ev.OrderID},
			{Correlation: types.CORRELATION_DONATION_ID, Value: ev.CustomID},
		},
		AmountMinor: ev.AmountMinor,
		Currency:    ev.Currency,
		PayerEmail:  ev.PayerEmail,
		Metadata: types.JSONB{
			"eventId":   ev.ID,
			"captureId": ev.ResourceID,
			"orderId":   ev.OrderID,
			"status":    ev.Status,
			"currency":  ev.Currency,
		},
	}
	switch ev.EventType {
	case PAYPAL_CAPTURE_COMPLETED:
		out.Success = true
		out.Handles = map[types.Correlation]string{types.CORRELATION_PAYPAL_CAPTURE: ev.ResourceID}
		return out, true
	case PAYPAL_CAPTURE_DENIED, PAYPAL_CAPTURE_DECLINED:
		out.Reason = ev.Reason
		if out.Reason == "" {
			out.Reason = ev.EventType
		}
		return out, true
	}
	return out, false
}

// HandlePaypalEvent applies capture events. Other event types are logged and ignored.
func (l *Ledger) HandlePaypalEvent(ctx context.Context, body []byte) (*models.Donation, error) {
	ev, err := ParsePaypalEvent(body)
	if err != nil {
		l.logGatewayEvent(ctx, "paypal", "", "", body, nil, err)
		return nil, err
	}
	out, handled := ev.outcome()
	if !handled {
		l.logGatewayEvent(ctx, "paypal", ev.EventType, ev.ResourceID, body, nil, errIgnoredEvent)
		return nil, nil
	}
	donation, err := l.Reconcile(ctx, out)
	l.logGatewayEvent(ctx, "paypal", ev.EventType, ev.ResourceID, body, donation, err)
	return donation, err
}

type PaypalCapturer interface {
	CaptureOrder(ctx context.Context, orderID string) (*gateways.PaypalOrder, error)
}

// CapturePaypal captures the approved order of a donation once the donor returns from PayPal.
// The capture webhook and this call race; whichever lands second is a duplicate.
func (l *Ledger) CapturePaypal(ctx context.Context, c PaypalCapturer, donationID string) (*models.Donation, error) {
	d, err := l.Get(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if d.Method != types.METHOD_PAYPAL || d.PaypalOrderID == nil {
		return nil, types.NewValidationError("id", "donation has no PayPal order")
	}
	if d.Status != types.DONATION_PROCESSING {
		return d, nil
	}
	order, err := c.CaptureOrder(ctx, *d.PaypalOrderID)
	if err != nil {
		var ge *types.GatewayError
		if errors.As(err, &ge) && strings.Contains(ge.Code+ge.Message, "ORDER_ALREADY_CAPTURED") {
			return d, nil
		}
		return nil, err
	}
	out := Outcome{
		Gateway:   "paypal",
		EventType: PAYPAL_EVENT_CAPTURE,
		Method:    types.METHOD_PAYPAL,
		Lookups:   []Lookup{{Correlation: types.CORRELATION_PAYPAL_ORDER, Value: order.ID}},
		Metadata:  types.JSONB{"orderId": order.ID, "status": order.Status},
	}
	if order.Payer.EmailAddress != "" {
		out.PayerEmail = order.Payer.EmailAddress
	}
	var capture *gateways.PaypalCapture
	for _, unit := range order.PurchaseUnits {
		for i := range unit.Payments.Captures {
			capture = &unit.Payments.Captures[i]
		}
	}
	switch {
	case capture != nil && capture.Status == "COMPLETED":
		out.Success = true
		out.Handles = map[types.Correlation]string{types.CORRELATION_PAYPAL_CAPTURE: capture.ID}
		out.Metadata["captureId"] = capture.ID
		if minor, err := gateways.ParseMinorUnits(capture.Amount.Value); err == nil {
			out.AmountMinor = minor
		}
	case capture != nil && (capture.Status == "PENDING" || order.Status == "PENDING"):
		return d, nil
	default:
		out.Reason = "PayPal order " + order.Status
		if capture != nil {
			out.Reason = "PayPal capture " + capture.Status
		}
	}
	settled, err := l.Reconcile(ctx, out)
	if errors.Is(err, types.ErrDuplicateWebhook) {
		return settled, nil
	}
	return settled, err
}
