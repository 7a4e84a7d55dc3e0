package controllers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/common"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/stripe/stripe-go/v82/webhook"
)

// webhookResult acknowledges replays as successes so the provider stops redelivering.
func webhookResult(tag string, d *models.Donation, err error) (*models.Donation, int, error) {
	if errors.Is(err, types.ErrDuplicateWebhook) {
		log.Printf("[%s] Duplicate delivery acknowledged\n", tag)
		return d, http.StatusOK, nil
	}
	if err != nil {
		log.Printf("[%s] Error processing webhook: %s\n", tag, err.Error())
		return nil, StatusFor(err), err
	}
	return d, http.StatusOK, nil
}

func readBody(ctx *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		log.Printf("Error reading request body: %s\n", err.Error())
		return nil, types.NewValidationError("body", "could not be read")
	}
	return body, nil
}

func WebhookMpesaStk(ctx *gin.Context) (*models.Donation, int, error) {
	body, err := readBody(ctx)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	d, err := GetLedger().HandleStkCallback(ctx.Request.Context(), body)
	return webhookResult("MpesaStk", d, err)
}

// WebhookMpesaC2BValidation never rejects a payment. Unroutable references are settled as
// unallocated when the confirmation arrives.
func WebhookMpesaC2BValidation(ctx *gin.Context) {
	body, err := readBody(ctx)
	if err != nil {
		return
	}
	c, err := common.ParseC2BConfirmation(body)
	if err != nil {
		log.Printf("[MpesaC2B] Validation payload unreadable: %s\n", err.Error())
		return
	}
	res := GetLedger().ValidateAccount(ctx.Request.Context(), c.BillRefNumber)
	if !res.IsValid {
		log.Printf("[MpesaC2B] Accepting [%s] with unroutable reference %q: %s\n", c.TransID, c.BillRefNumber, res.Error)
	}
}

func WebhookMpesaC2BConfirmation(ctx *gin.Context) (*models.Donation, int, error) {
	body, err := readBody(ctx)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	d, err := GetLedger().HandleC2BConfirmation(ctx.Request.Context(), body)
	return webhookResult("MpesaC2B", d, err)
}

// WebhookPaypal verifies the transmission with PayPal before applying the event.
func WebhookPaypal(ctx *gin.Context) (*models.Donation, int, error) {
	body, err := readBody(ctx)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	gw, err := paypalGateway()
	if err != nil {
		return nil, StatusFor(err), err
	}
	ok, err := gw.VerifyWebhook(ctx.Request.Context(), ctx.Request.Header, body)
	if err != nil {
		log.Printf("[Paypal] Error verifying webhook: %s\n", err.Error())
		return nil, StatusFor(err), err
	}
	if !ok {
		return nil, http.StatusBadRequest, types.NewValidationError("signature", "webhook verification failed")
	}
	d, err := GetLedger().HandlePaypalEvent(ctx.Request.Context(), body)
	return webhookResult("Paypal", d, err)
}

func WebhookStripe(ctx *gin.Context) (*models.Donation, int, error) {
	payload, err := readBody(ctx)
	if err != nil {
		return nil, http.StatusServiceUnavailable, err
	}
	cfg, err := gateways.LoadStripeConfig(GatewayDeps().DB)
	if err != nil {
		return nil, StatusFor(err), err
	}
	event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), cfg.WebhookSecret)
	if err != nil {
		log.Printf("Error verifying webhook signature: %s\n", err.Error())
		return nil, http.StatusBadRequest, err
	}
	log.Printf("[StripeEvent] %s\n", event.Type)
	d, err := GetLedger().HandleStripeEvent(ctx.Request.Context(), event, payload)
	return webhookResult("Stripe", d, err)
}
