package gateways

import (
	"fmt"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

type Deps struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Stripe *stripe.Client
}

// ForMethod builds the adapter for a payment method from the stored configuration.
func ForMethod(deps Deps, method types.PaymentMethod) (Gateway, error) {
	switch method {
	case types.METHOD_MPESA:
		cfg, err := LoadMpesaConfig(deps.DB)
		if err != nil {
			return nil, err
		}
		return NewMpesaGateway(*cfg, deps.Redis), nil
	case types.METHOD_PAYPAL:
		cfg, err := LoadPaypalConfig(deps.DB)
		if err != nil {
			return nil, err
		}
		return NewPaypalGateway(*cfg, deps.Redis), nil
	case types.METHOD_STRIPE:
		cfg, err := LoadStripeConfig(deps.DB)
		if err != nil {
			return nil, err
		}
		sc := deps.Stripe
		if sc == nil {
			sc = lib.StripeClientFor(cfg.SecretKey)
		}
		return NewStripeGateway(*cfg, sc), nil
	case types.METHOD_CHECK:
		return ManualGateway{}, nil
	}
	return nil, types.NewValidationError("method", fmt.Sprintf("unsupported payment method %q", method))
}
