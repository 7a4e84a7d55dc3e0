// Package gateways holds one adapter per payment rail. Adapters only talk to providers;
// recording the returned handles on a donation is the caller's job.
package gateways

import (
	"context"
	"errors"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

var ErrNotConfigured = errors.New("payment gateway is not configured")

type ResultKind string

const (
	RESULT_APPROVAL_URL      ResultKind = "approval_url"
	RESULT_PUSH_ACKNOWLEDGED ResultKind = "push_acknowledged"
	RESULT_RECORDED          ResultKind = "recorded"
)

type InitiationRequest struct {
	DonationID  string
	AmountMinor int64
	Currency    string
	PayerHandle string
	PayerEmail  string
	Reference   string
	Description string
}

type InitiationResult struct {
	Kind ResultKind `json:"kind"`

	// redirect rails
	ApprovalURL   string `json:"approval_url,omitempty"`
	ProvisionalID string `json:"provisional_id,omitempty"`

	// push rail
	MerchantRequestID string `json:"merchant_request_id,omitempty"`
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	CustomerMessage   string `json:"customer_message,omitempty"`

	// manual rail
	InstrumentNumber string `json:"instrument_number,omitempty"`

	Correlation types.Correlation `json:"-"`
	Raw         types.JSONB       `json:"-"`
}

// Handles returns the correlation columns this result should be stored under.
func (r *InitiationResult) Handles() map[types.Correlation]string {
	handles := map[types.Correlation]string{}
	switch r.Kind {
	case RESULT_PUSH_ACKNOWLEDGED:
		handles[types.CORRELATION_MPESA_CHECKOUT] = r.CheckoutRequestID
		if r.MerchantRequestID != "" {
			handles[types.CORRELATION_MPESA_MERCHANT] = r.MerchantRequestID
		}
	case RESULT_APPROVAL_URL:
		if r.Correlation != "" && r.ProvisionalID != "" {
			handles[r.Correlation] = r.ProvisionalID
		}
	case RESULT_RECORDED:
		if r.InstrumentNumber != "" {
			handles[types.CORRELATION_CHECK_NUMBER] = r.InstrumentNumber
		}
	}
	return handles
}

// Gateway is one payment rail. Validate only inspects the request, so callers run it
// before anything is written; Initiate talks to the provider.
type Gateway interface {
	Name() types.PaymentMethod
	Validate(req InitiationRequest) error
	Initiate(ctx context.Context, req InitiationRequest) (*InitiationResult, error)
}
