package handlers

import (
	"go-visa-office/internal/cache"
	"go-visa-office/internal/config"
	"go-visa-office/internal/middleware"

	"github.com/gin-gonic/gin"
)

var (
	cfg            config.Config
	dashboardCache *cache.TTL
)

// RegisterRoutes wires every endpoint onto the engine. All /api routes
// sit behind JWT auth; exports and user administration are admin-only.
func RegisterRoutes(r *gin.Engine, c config.Config) {
	cfg = c
	dashboardCache = cache.New(c.DashboardCacheTTL)

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "online"}) })
	r.POST("/login", Login)
	if cfg.AllowRegistration {
		r.POST("/register", Register)
	}
	r.Static("/uploads", cfg.UploadDir)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware())
	{
		visas := api.Group("/visas")
		{
			visas.GET("", ListVisas)
			visas.POST("", CreateVisa)
			visas.GET("/pending-arrival-verification", PendingArrivalVerification)
			visas.POST("/check-overdue", CheckOverdueVisas)
			visas.GET("/:id", GetVisa)
			visas.PUT("/:id/stage-a", CompleteStageA)
			visas.PUT("/:id/complete-stage-b", CompleteStageB)
			visas.PUT("/:id/complete-stage-c", CompleteStageC)
			visas.PUT("/:id/complete-stage-d", CompleteStageD)
			visas.POST("/:id/expenses", AddVisaExpense)
			visas.PUT("/:id/sell", SellVisa)
			visas.PUT("/:id/cancel", CancelVisa)
			visas.POST("/:id/replace", ReplaceVisa)
			visas.GET("/:id/replacement-eligibility", GetReplacementEligibility)
			visas.POST("/:id/verify-arrival", VerifyArrival)
			visas.GET("/:id/arrival-status", GetArrivalStatus)
		}

		secretaries := api.Group("/secretaries")
		{
			secretaries.GET("", ListSecretaries)
			secretaries.POST("", CreateSecretary)
			secretaries.GET("/:id", GetSecretary)
			secretaries.PUT("/:id", UpdateSecretary)
			secretaries.DELETE("/:id", DeleteSecretary)
			secretaries.GET("/:id/statistics", GetSecretaryStatistics)
		}

		accounts := api.Group("/accounts")
		{
			accounts.GET("/company", GetCompanyDashboard)
			accounts.GET("/summary", GetDashboardSummary)
		}

		exports := api.Group("/exports")
		exports.Use(middleware.RequireRole("admin"))
		{
			exports.GET("/visas", ExportVisas)
			exports.GET("/secretaries", ExportSecretaries)
		}
	}
}
