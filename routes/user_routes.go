package routes

import (
	"time"

	"github.com/gamersarena/GamersArena/controllers"
	"github.com/gamersarena/GamersArena/middleware"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
)

// initUserRoutes initializes all player-facing routes
func initUserRoutes(router *gin.RouterGroup) {
	// Public routes. Credential endpoints are rate limited per IP.
	authLimit := utils.RateLimitMiddleware(10, time.Minute)
	router.POST("/register", authLimit, controllers.RegisterUser)
	router.POST("/login", authLimit, controllers.LoginUser)
	router.POST("/verify-otp", authLimit, controllers.VerifyOTP)
	router.POST("/forgot-password", authLimit, controllers.ForgotPassword)
	router.POST("/reset-password", authLimit, controllers.ResetPassword)

	// Token bundle catalog is public so the store page works before login
	router.GET("/payments/bundles", controllers.GetTokenBundles)

	// Tournaments are browsable without an account
	router.GET("/tournaments", controllers.ListTournaments)
	router.GET("/tournaments/:id", controllers.GetTournament)

	// Authenticated routes
	user := router.Group("")
	user.Use(middleware.AuthMiddleware())
	{
		user.POST("/logout", controllers.LogoutUser)

		// Profile
		user.GET("/profile", controllers.GetProfile)
		user.PUT("/profile", controllers.UpdateProfile)
		user.PUT("/profile/email", controllers.UpdateEmail)
		user.POST("/profile/email/verify", controllers.VerifyEmailUpdate)
		user.PUT("/profile/password", controllers.ChangePassword)

		// Wallet
		user.GET("/wallet", controllers.GetWalletBalance)
		user.GET("/wallet/transactions", controllers.GetWalletTransactions)
		user.POST("/wallet/transfer", controllers.TransferTokens)

		// Purchases
		user.POST("/payments/initiate", controllers.InitiatePayment)
		user.GET("/payments/status/:id", controllers.CheckPaymentStatus)
		user.GET("/payments/receipt/:id", controllers.GetReceipt)
		user.POST("/payments/razorpay/verify", controllers.VerifyRazorpayPayment)

		// Tournament participation
		user.POST("/tournaments/:id/register", controllers.RegisterForTournament)
		user.DELETE("/tournaments/:id/register", controllers.CancelRegistration)
		user.POST("/tournaments/:id/check-in", controllers.CheckInForTournament)
		user.GET("/tournaments/:id/room", controllers.GetTournamentRoom)
		user.GET("/registrations", controllers.MyRegistrations)
	}
}
