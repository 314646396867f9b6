package routes

import (
	"github.com/gamersarena/GamersArena/controllers"
	"github.com/gamersarena/GamersArena/middleware"
	"github.com/gin-gonic/gin"
)

// initAdminRoutes initializes all admin-related routes
func initAdminRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin")
	{
		// Public admin routes
		admin.POST("/login", controllers.AdminLogin)

		// Protected admin routes
		admin.Use(middleware.AdminAuthMiddleware())
		{
			admin.GET("/dashboard", controllers.AdminDashboard)

			// Bundle catalog
			admin.GET("/bundles", controllers.ListBundles)
			admin.POST("/bundles", controllers.CreateBundle)
			admin.PUT("/bundles/:id", controllers.UpdateBundle)
			admin.DELETE("/bundles/:id", controllers.DeleteBundle)

			// Tournaments
			admin.POST("/tournaments", controllers.CreateTournament)
			admin.PUT("/tournaments/:id", controllers.UpdateTournament)
			admin.PATCH("/tournaments/:id/status", controllers.UpdateTournamentStatus)
			admin.GET("/tournaments/:id/participants", controllers.ListParticipants)
			admin.POST("/tournaments/:id/complete", controllers.CompleteTournament)

			// Wallets and transactions
			admin.POST("/wallets/:id/adjust", controllers.AdjustWallet)
			admin.GET("/transactions", controllers.ListAllTransactions)
			admin.POST("/transactions/:id/refund", controllers.RefundTransaction)

			// Payments maintenance
			admin.POST("/payments/sweep", controllers.SweepStalePayments)

			// Site maintenance mode
			admin.GET("/maintenance", controllers.GetMaintenanceSettings)
			admin.PUT("/maintenance", controllers.UpdateMaintenanceSettings)

			// Reports
			admin.GET("/reports/sales", controllers.SalesReport)
			admin.GET("/reports/sales/export", controllers.DownloadSalesReportExcel)
		}
	}
}
