package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"regexp"
	"strconv"
	"syscall"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/boot"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/config"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/controllers"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/paybill"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/middlewares"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/utils"
)

const (
	apiPrefix string = "/api/v1"
)

var groupCodeValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	code, ok := fl.Field().Interface().(string)
	return ok && paybill.ValidateGroupCode(code) == nil
}

var fundCodeValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	code, ok := fl.Field().Interface().(string)
	return ok && paybill.ValidateFundCode(code) == nil
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("groupcode", groupCodeValidatorFunc)
		v.RegisterValidation("fundcode", fundCodeValidatorFunc)
	}
}

func respond(ctx *gin.Context, data any, status int, err error) {
	if err != nil {
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(status, gin.H{"data": data})
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm := os.Getenv("MAINTENANCE_MODE")
		on, err := strconv.ParseBool(mm)
		if err == nil && on {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func corsMiddleware(g *gin.Engine) *gin.Engine {
	if utils.IsLocal() {
		g.Use(cors.Default())
		return g
	}
	appHost := os.Getenv("APP_HOST")
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
	cc.AllowOriginFunc = func(origin string) bool {
		match, _ := regexp.MatchString(appHost, origin)
		return appHost != "" && match
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	g.Use(cors.New(cc))
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

// publicRoutes serves donors and payment providers. Providers are authenticated by
// signature where they offer one.
func publicRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	donorHandlers(apiv1)
	webhookHandlers(apiv1)
	return apiv1
}

func authorizedRoutes(g *gin.Engine) *gin.RouterGroup {
	authorized := g.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	{
		donationHandlers(authorized)
		checkHandlers(authorized)
		sessionHandlers(authorized)
		paybillHandlers(authorized)
		adminHandlers(authorized.Group(""))
	}
	return authorized
}

// buildRouter wires every route. Tests use it without the background workers.
func buildRouter() *gin.Engine {
	router := setupRouter()
	router = corsMiddleware(router)
	router = maintenanceModeMiddleware(router)
	registerValidators()

	publicRoutes(router)
	stripeWebhookRoute(router)
	authorizedRoutes(router)
	return router
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	os.MkdirAll(path.Join(cwd, "logs"), 0o755)
	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	if config.APIEnv() == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb := boot.InitDb()
	boot.InitBroker(ctx)
	boot.InitWorkers(ctx, gdb, controllers.GetStkPoller())
	defer boot.StopScheduler()

	router := buildRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}
	if os.Getenv("TLS_ENABLE") == "true" {
		cwd, _ := os.Getwd()
		certpath := path.Join(cwd, "certificates", "localhost.pem")
		keypath := path.Join(cwd, "certificates", "localhost-key.pem")
		if err := router.RunTLS(":"+port, certpath, keypath); err != nil {
			log.Fatalf("Failed to start server: %s", err)
		}
	}
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %s", err)
	}
}
