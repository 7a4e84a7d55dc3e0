package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/controllers"
)

// mpesaAck is the body Daraja expects back. Anything else makes it retry.
func mpesaAck(ctx *gin.Context, status int, err error) {
	if err != nil {
		ctx.JSON(status, gin.H{"ResultCode": 1, "ResultDesc": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

func webhookHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/webhook/mpesa/stk", func(ctx *gin.Context) {
			_, status, err := controllers.WebhookMpesaStk(ctx)
			mpesaAck(ctx, status, err)
		}).
		POST("/webhook/mpesa/c2b/validation", func(ctx *gin.Context) {
			controllers.WebhookMpesaC2BValidation(ctx)
			mpesaAck(ctx, http.StatusOK, nil)
		}).
		POST("/webhook/mpesa/c2b/confirmation", func(ctx *gin.Context) {
			_, status, err := controllers.WebhookMpesaC2BConfirmation(ctx)
			mpesaAck(ctx, status, err)
		}).
		POST("/webhook/paypal", func(ctx *gin.Context) {
			donation, status, err := controllers.WebhookPaypal(ctx)
			if err != nil {
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			if donation == nil {
				ctx.Status(http.StatusOK)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"id": donation.ID, "status": donation.Status}})
		})
	return g
}
