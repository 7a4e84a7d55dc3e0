package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/controllers"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/middlewares"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

// donorHandlers are the routes a donor reaches without an account.
func donorHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/donations", func(ctx *gin.Context) {
			initiation, status, err := controllers.DonationsCreate(ctx)
			if err != nil {
				log.Printf("[DonationsCreate] error: %s\n", err.Error())
				if initiation != nil {
					ctx.JSON(status, gin.H{"error": err.Error(), "data": initiation})
					return
				}
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": initiation})
		}).
		POST("/donations/:id/paypal/capture", func(ctx *gin.Context) {
			donation, status, err := controllers.DonationsCapturePaypal(ctx)
			respond(ctx, donation, status, err)
		}).
		GET("/qr/:id", func(ctx *gin.Context) {
			qr, status, err := controllers.QRCodeContext(ctx)
			respond(ctx, qr, status, err)
		}).
		GET("/paybill/validate", func(ctx *gin.Context) {
			res, status, err := controllers.PaybillValidate(ctx)
			respond(ctx, res, status, err)
		})
	return g
}

func donationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	operators := middlewares.RequireRoles(types.ROLE_ADMIN, types.ROLE_PASTOR)
	g.
		GET("/donations/unallocated", middlewares.RequireRoles(types.ROLE_ADMIN, types.ROLE_PASTOR, types.ROLE_TREASURER), func(ctx *gin.Context) {
			donations, status, err := controllers.DonationsUnallocated(ctx)
			respond(ctx, donations, status, err)
		}).
		GET("/donations/:id", func(ctx *gin.Context) {
			donation, status, err := controllers.DonationsGet(ctx)
			respond(ctx, donation, status, err)
		}).
		GET("/donations/:id/status", func(ctx *gin.Context) {
			donation, status, err := controllers.DonationsStatus(ctx)
			if err != nil {
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"id":             donation.ID,
				"status":         donation.Status,
				"failure_reason": donation.FailureReason,
				"transaction_id": donation.TransactionID,
			}})
		}).
		POST("/donations/:id/allocate", operators, func(ctx *gin.Context) {
			donation, status, err := controllers.DonationsAllocate(ctx)
			respond(ctx, donation, status, err)
		}).
		POST("/donations/:id/reject", operators, func(ctx *gin.Context) {
			donation, status, err := controllers.DonationsReject(ctx)
			respond(ctx, donation, status, err)
		})
	return g
}
