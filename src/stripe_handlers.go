package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/controllers"
)

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		donation, status, err := controllers.WebhookStripe(ctx)
		if err != nil {
			log.Printf("[Stripe] Webhook rejected: %s\n", err.Error())
			ctx.Status(status)
			return
		}
		if donation != nil {
			log.Printf("[Stripe] Donation [%s] is %s\n", donation.ID.String(), donation.Status)
		}
		ctx.Status(http.StatusNoContent)
	})
	return apiv1
}
