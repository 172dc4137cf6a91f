package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/clipforge/clipforge-backend/internal/handlers"
	"github.com/clipforge/clipforge-backend/internal/middleware"
	"github.com/clipforge/clipforge-backend/internal/pkg/envutil"
)

type RouterConfig struct {
	AuthMiddleware  *middleware.AuthMiddleware
	CronSecret      string
	ContentHandler  *handlers.ContentHandler
	ClipHandler     *handlers.ClipHandler
	GenerateHandler *handlers.GenerateHandler
	ScheduleHandler *handlers.ScheduleHandler
	CronHandler     *handlers.CronHandler
	UsageHandler    *handlers.UsageHandler
	JobHandler      *handlers.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Cron      ||
	// ===============
	cron := router.Group("/api/cron")
	cron.Use(middleware.RequireCron(cfg.CronSecret))
	cron.GET("/publish-scheduled", cfg.CronHandler.PublishScheduled)
	cron.GET("/reset-usage", cfg.CronHandler.ResetUsage)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	// Contents
	api.POST("/contents", cfg.ContentHandler.Create)
	api.POST("/contents/import", cfg.ContentHandler.Import)
	api.GET("/contents", cfg.ContentHandler.List)
	api.GET("/contents/:id", cfg.ContentHandler.Get)
	api.GET("/contents/:id/status", cfg.ContentHandler.Status)
	api.DELETE("/contents/:id", cfg.ContentHandler.Delete)
	api.POST("/contents/:id/uploaded", cfg.ContentHandler.MarkUploaded)
	api.POST("/contents/:id/process", cfg.ContentHandler.Process)
	api.POST("/contents/:id/reprocess", cfg.ContentHandler.Reprocess)
	api.POST("/contents/:id/generate", cfg.GenerateHandler.Generate)
	// Clips
	api.POST("/clips", cfg.ClipHandler.Create)
	api.GET("/clips", cfg.ClipHandler.List)
	api.GET("/clips/:id", cfg.ClipHandler.Get)
	api.DELETE("/clips/:id", cfg.ClipHandler.Delete)
	api.POST("/clips/:id/render", cfg.ClipHandler.Render)
	// Schedule
	api.POST("/schedule", cfg.ScheduleHandler.Create)
	api.GET("/schedule", cfg.ScheduleHandler.List)
	api.DELETE("/schedule/:id", cfg.ScheduleHandler.Cancel)
	api.PATCH("/schedule/:id", cfg.ScheduleHandler.Reschedule)
	// Usage
	api.GET("/usage", cfg.UsageHandler.GetUsage)
	// Jobs
	api.GET("/jobs/:id", cfg.JobHandler.GetJob)

	return router
}

func allowedOrigins() []string {
	raw := envutil.Str("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
