package routes

import (
	shared "safelink/internal/handlers/shared"
	"safelink/internal/middleware"
	"safelink/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires the HTTP surface of the escalation engine.
func SetupRoutes(router *gin.Engine, alertHandler *shared.AlertHandler, staffHandler *shared.StaffHandler, log *logger.Logger) {
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		alerts := v1.Group("/alerts")
		{
			alerts.POST("", alertHandler.CreateAlert)
			alerts.GET("", alertHandler.ListAlerts)
			alerts.GET("/pending", alertHandler.ListPendingAlerts)
			alerts.GET("/:id", alertHandler.GetAlert)
			alerts.POST("/:id/accept", alertHandler.AcceptAlert)
			alerts.POST("/:id/reject", alertHandler.RejectAlert)
			alerts.POST("/:id/forward", alertHandler.ForwardAlert)
			alerts.GET("/:id/deliveries", alertHandler.GetDeliveryLogs)
		}

		// Scheduler callbacks. The delayed stage tasks normally run in
		// process, but the stages are also exposed for external schedulers
		// and manual re-drives; both paths are idempotent.
		webhooks := v1.Group("/webhooks/scheduler")
		{
			webhooks.POST("/stage1/:id", alertHandler.ExecuteStage1)
			webhooks.POST("/stage2/:id", alertHandler.ExecuteStage2)
		}

		v1.GET("/staff", staffHandler.ListStaff)
	}
}
