package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/controllers"
)

func sessionHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/sessions", func(ctx *gin.Context) {
			session, status, err := controllers.SessionsCreate(ctx)
			respond(ctx, session, status, err)
		}).
		GET("/sessions", func(ctx *gin.Context) {
			sessions, status, err := controllers.SessionsList(ctx)
			respond(ctx, sessions, status, err)
		}).
		GET("/sessions/:id", func(ctx *gin.Context) {
			session, status, err := controllers.SessionsGet(ctx)
			respond(ctx, session, status, err)
		})
	return g
}
