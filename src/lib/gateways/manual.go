package gateways

import (
	"context"
	"strings"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

// ManualGateway records paper instruments. There is no provider and no async confirmation.
type ManualGateway struct{}

func (ManualGateway) Name() types.PaymentMethod {
	return types.METHOD_CHECK
}

func (ManualGateway) Validate(req InitiationRequest) error {
	if strings.TrimSpace(req.Reference) == "" {
		return types.NewValidationError("check_number", "is required")
	}
	return nil
}

func (g ManualGateway) Initiate(ctx context.Context, req InitiationRequest) (*InitiationResult, error) {
	if err := g.Validate(req); err != nil {
		return nil, err
	}
	number := strings.TrimSpace(req.Reference)
	return &InitiationResult{
		Kind:             RESULT_RECORDED,
		InstrumentNumber: number,
		Correlation:      types.CORRELATION_CHECK_NUMBER,
	}, nil
}
