package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/controllers"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/middlewares"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

func paybillHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	managers := middlewares.RequireRoles(types.ROLE_ADMIN, types.ROLE_PASTOR)
	g.
		POST("/paybill/account-number", func(ctx *gin.Context) {
			account, status, err := controllers.PaybillAccountNumber(ctx)
			if err != nil {
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"account_number": account}})
		}).
		GET("/groups", func(ctx *gin.Context) {
			groups, status, err := controllers.GroupsList(ctx)
			respond(ctx, groups, status, err)
		}).
		POST("/groups", managers, func(ctx *gin.Context) {
			group, status, err := controllers.GroupsCreate(ctx)
			respond(ctx, group, status, err)
		}).
		PUT("/groups/:id/code", managers, func(ctx *gin.Context) {
			group, status, err := controllers.GroupsSetCode(ctx)
			respond(ctx, group, status, err)
		}).
		GET("/groups/:id/code/suggest", func(ctx *gin.Context) {
			code, status, err := controllers.GroupsSuggestCode(ctx)
			if err != nil {
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"group_code": code}})
		}).
		GET("/fund-categories", func(ctx *gin.Context) {
			funds, status, err := controllers.FundCategoriesList(ctx)
			respond(ctx, funds, status, err)
		}).
		POST("/fund-categories", managers, func(ctx *gin.Context) {
			fund, status, err := controllers.FundCategoriesCreate(ctx)
			respond(ctx, fund, status, err)
		}).
		PUT("/fund-categories/:id", managers, func(ctx *gin.Context) {
			fund, status, err := controllers.FundCategoriesUpdate(ctx)
			respond(ctx, fund, status, err)
		})
	return g
}

func adminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.Use(middlewares.RequireRoles(types.ROLE_ADMIN))
	g.
		POST("/mpesa/register-urls", func(ctx *gin.Context) {
			out, status, err := controllers.MpesaRegisterURLs(ctx)
			respond(ctx, out, status, err)
		}).
		POST("/settings", func(ctx *gin.Context) {
			setting, status, err := controllers.SettingsSave(ctx)
			respond(ctx, setting, status, err)
		}).
		GET("/settings", func(ctx *gin.Context) {
			settings, status, err := controllers.SettingsList(ctx)
			respond(ctx, settings, status, err)
		})
	return g
}
