package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/controllers"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/middlewares"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

func checkHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	treasury := middlewares.RequireRoles(types.ROLE_ADMIN, types.ROLE_PASTOR, types.ROLE_TREASURER)
	g.
		POST("/checks", treasury, func(ctx *gin.Context) {
			check, status, err := controllers.ChecksCreate(ctx)
			respond(ctx, check, status, err)
		}).
		GET("/checks", func(ctx *gin.Context) {
			checks, status, err := controllers.ChecksList(ctx)
			respond(ctx, checks, status, err)
		}).
		GET("/checks/:id", func(ctx *gin.Context) {
			check, status, err := controllers.ChecksGet(ctx)
			respond(ctx, check, status, err)
		}).
		PATCH("/checks/:id/status", treasury, func(ctx *gin.Context) {
			check, status, err := controllers.ChecksUpdateStatus(ctx)
			respond(ctx, check, status, err)
		}).
		DELETE("/checks/:id", treasury, func(ctx *gin.Context) {
			status, err := controllers.ChecksDelete(ctx)
			if err != nil {
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
