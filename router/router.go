package router

import (
	"time"

	"prfmonitor/api"
	"prfmonitor/config"
	_ "prfmonitor/docs"
	"prfmonitor/logger"
	"prfmonitor/middleware"
	"prfmonitor/models"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter builds the HTTP engine.
func SetupRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger.L))
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Swagger
	if !config.IsRelease() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	adminOnly := middleware.RequireRole(models.RoleAdmin)
	writers := middleware.RequireRole(models.RoleAdmin, models.RoleApprover, models.RoleRequester)

	apiGroup := r.Group("/api")
	{
		authHandler := api.NewAuthHandler(cfg)
		apiGroup.POST("/auth/login", middleware.LoginRateLimit(10, time.Minute), authHandler.Login)

		authorized := apiGroup.Group("")
		authorized.Use(middleware.JWTAuth(), middleware.ActiveUser())
		{
			authorized.GET("/auth/profile", authHandler.GetProfile)
			authorized.PUT("/auth/password", authHandler.ChangePassword)

			// chart of accounts
			coaHandler := api.NewCOAHandler()
			coa := authorized.Group("/coa")
			{
				coa.GET("", coaHandler.List)
				coa.GET("/categories", coaHandler.Categories)
				coa.GET("/:id", coaHandler.Get)
				coa.POST("", adminOnly, coaHandler.Create)
				coa.PUT("/bulk", adminOnly, coaHandler.BulkUpdate)
				coa.PUT("/:id", adminOnly, coaHandler.Update)
				coa.DELETE("/:id", adminOnly, coaHandler.Delete)
			}

			// budgets
			budgetHandler := api.NewBudgetHandler(cfg)
			budgets := authorized.Group("/budgets")
			{
				budgets.GET("", budgetHandler.List)
				budgets.GET("/cost-codes", budgetHandler.CostCodes)
				budgets.GET("/summary", budgetHandler.Summary)
				budgets.POST("/sync-utilization", adminOnly, budgetHandler.SyncUtilization)
				budgets.GET("/:id", budgetHandler.Get)
				budgets.POST("", adminOnly, budgetHandler.Create)
				budgets.PUT("/:id", adminOnly, budgetHandler.Update)
				budgets.DELETE("/:id", adminOnly, budgetHandler.Delete)
			}

			// purchase requests; approval role is checked per transition
			prfHandler := api.NewPRFHandler(cfg)
			prfs := authorized.Group("/prfs")
			{
				prfs.GET("", prfHandler.List)
				prfs.GET("/:id", prfHandler.Get)
				prfs.POST("", writers, prfHandler.Create)
				prfs.PUT("/:id", writers, prfHandler.Update)
				prfs.PATCH("/:id/status", writers, prfHandler.UpdateStatus)
				prfs.DELETE("/:id", writers, prfHandler.Delete)
			}
			authorized.POST("/import/prf/bulk", writers, prfHandler.BulkImport)

			reconcileHandler := api.NewReconcileHandler(cfg)
			recon := authorized.Group("/reconciliation")
			{
				recon.GET("/orphans", reconcileHandler.Orphans)
				recon.GET("/mismatches", reconcileHandler.Mismatches)
				recon.GET("/duplicate-budgets", reconcileHandler.DuplicateBudgets)
				recon.POST("/duplicate-budgets/cleanup", adminOnly, reconcileHandler.CleanupDuplicates)
				recon.GET("/missing-budgets", reconcileHandler.MissingBudgets)
				recon.GET("/report", reconcileHandler.Report)
			}

			authorized.GET("/dashboard/stats", api.NewDashboardHandler(cfg).Stats)

			userHandler := api.NewUserHandler()
			users := authorized.Group("/users", adminOnly)
			{
				users.GET("", userHandler.List)
				users.POST("", userHandler.Create)
				users.PUT("/:id", userHandler.Update)
				users.PUT("/:id/password", userHandler.ResetPassword)
				users.DELETE("/:id", userHandler.Delete)
			}
		}
	}

	return r
}
