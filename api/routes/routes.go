package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/docuvault/docscan/api/handlers"
	"github.com/docuvault/docscan/api/middleware"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	// 全局中间件
	r.Use(middleware.CORS())

	// API 版本组
	v1 := r.Group("/api/v1")

	// 扫描控制路由组
	scans := v1.Group("/scan")
	{
		scans.POST("/start", h.Scan.StartScan)
		scans.POST("/stop", h.Scan.StopScan)
		scans.POST("/retry-failed", h.Scan.RetryFailed)
		scans.POST("/reset", h.Scan.Reset)
		scans.GET("/state", h.Scan.GetState)
		scans.GET("/progress", h.Scan.GetProgress)
		scans.GET("/events", h.Scan.Events)
		scans.GET("/history", h.Scan.GetHistory)
		scans.GET("/stats", h.Scan.GetStats)
		scans.GET("/task/:taskId", h.Scan.GetTaskStatus)
	}

	// 文档路由组
	docs := v1.Group("/documents")
	{
		docs.GET("", h.Document.ListDocuments)
		docs.GET("/:id", h.Document.GetDocument)
		docs.PATCH("/:id", h.Document.UpdateDocument)
		docs.DELETE("/:id", h.Document.DeleteDocument)
	}
}
