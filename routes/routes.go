package routes

import (
	"os"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/controllers"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// SetupRouter initializes and returns the Gin router with all routes
func SetupRouter() *gin.Engine {
	router := gin.Default()

	// Session middleware backs the OTP registration flow
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "dev-session-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		MaxAge:   60 * 60 * 24, // 1 day
		Path:     "/",
		Secure:   false, // Set to true in production with HTTPS
		HttpOnly: true,
	})
	router.Use(sessions.Sessions("gamersarena", store))

	router.GET("/health", func(c *gin.Context) {
		if err := utils.CheckSessionStore(c); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "session_store": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Auth routes (for OAuth)
	auth := router.Group("/auth")
	{
		auth.GET("/google/login", controllers.GoogleLogin)
		auth.GET("/google/callback", controllers.GoogleCallback)
	}

	// API version group
	api := router.Group("/v1")
	{
		api.GET("/status/maintenance", controllers.MaintenanceStatus)

		initUserRoutes(api)
		initAdminRoutes(api)
		initWebhookRoutes(api)
	}

	if config.App != nil && config.App.Sandbox {
		initSandboxRoutes(api)
	}

	return router
}

// initWebhookRoutes mounts the unauthenticated provider callbacks. These are
// authenticated by signature, not by session or token.
func initWebhookRoutes(router *gin.RouterGroup) {
	payments := router.Group("/payments")
	{
		payments.POST("/easypaisa/callback", controllers.EasypaisaCallback)
		payments.POST("/jazzcash/callback", controllers.JazzCashCallback)
	}
}

// initSandboxRoutes mounts payment simulation endpoints, sandbox only
func initSandboxRoutes(router *gin.RouterGroup) {
	sandbox := router.Group("/sandbox")
	{
		sandbox.GET("/payments/simulate", controllers.SimulatePayment)
		sandbox.GET("/payments/razorpay-signature", controllers.SimulateRazorpaySignature)
	}
}
