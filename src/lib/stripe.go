package lib

import (
	"os"

	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

// StripeClientFor reuses the shared client unless a tenant stores its own secret key.
func StripeClientFor(key string) *stripe.Client {
	if key == "" || key == os.Getenv("STRIPE_SECRET_KEY") {
		return GetStripeClient()
	}
	return stripe.NewClient(key)
}
