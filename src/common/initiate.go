package common

import (
	"context"
	"errors"
	"log"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

type Initiation struct {
	Donation *models.Donation          `json:"donation"`
	Result   *gateways.InitiationResult `json:"result,omitempty"`
}

func initiationRequest(d *models.Donation, in DonationInput) gateways.InitiationRequest {
	reference := d.Reference
	if reference == "" {
		reference = d.Category
	}
	handle := in.PayerPhone
	if in.Method != types.METHOD_MPESA {
		handle = in.PayerEmail
	}
	return gateways.InitiationRequest{
		DonationID:  d.ID.String(),
		AmountMinor: d.AmountMinor,
		Currency:    d.Currency,
		PayerHandle: handle,
		PayerEmail:  in.PayerEmail,
		Reference:   reference,
		Description: d.Description,
	}
}

// Initiate creates the donation, asks the gateway to start the payment and records the
// returned handles. Requests the gateway would refuse are rejected before anything is
// written. A provider failure leaves the donation failed with the provider's words.
func (l *Ledger) Initiate(ctx context.Context, gw gateways.Gateway, in DonationInput) (*Initiation, error) {
	in.Method = gw.Name()
	if in.Method == types.METHOD_MPESA {
		phone, err := gateways.ValidatePhone(in.PayerPhone)
		if err != nil {
			return nil, err
		}
		in.PayerPhone = phone
	}
	donation, err := l.create(ctx, in, func(d *models.Donation) error {
		return gw.Validate(initiationRequest(d, in))
	})
	if err != nil {
		return nil, err
	}
	result, err := gw.Initiate(ctx, initiationRequest(donation, in))
	if err != nil {
		var gatewayErr *types.GatewayError
		if !errors.As(err, &gatewayErr) {
			gatewayErr = &types.GatewayError{Gateway: string(in.Method), Err: err}
		}
		log.Printf("[%s] Error initiating donation [%s]: %s\n", in.Method, donation.ID.String(), gatewayErr.Error())
		if failed, ferr := l.MarkFailed(ctx, donation.ID, gatewayErr.Error()); ferr != nil {
			log.Printf("[%s] Error marking donation [%s] failed: %s\n", in.Method, donation.ID.String(), ferr.Error())
		} else {
			donation = failed
		}
		return &Initiation{Donation: donation}, gatewayErr
	}
	attached, err := l.AttachGatewayHandle(ctx, donation.ID, result.Handles(), result.Raw)
	if err != nil {
		return nil, err
	}
	return &Initiation{Donation: attached, Result: result}, nil
}
