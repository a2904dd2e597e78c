package router

import (
	"net/http"

	"jobtrail/internal/handler"
	"jobtrail/internal/middleware"
	"jobtrail/internal/redis"
	"jobtrail/internal/repository"
	"jobtrail/internal/services"
	"jobtrail/internal/storage"
	"jobtrail/pkg/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Config holds router configuration
type Config struct {
	Logger      *logger.Logger
	Production  bool
	DB          *gorm.DB
	Attachments repository.AttachmentStore
	Jobs        repository.JobStore
	Gateway     *storage.Gateway
	RateLimiter *redis.RateLimiter
}

// Setup wires middleware, services and routes into a gin engine.
func Setup(cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.ErrorHandler(cfg.Logger))

	r.GET("/metrics", middleware.MetricsHandler())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "jobtrail"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if cfg.DB != nil {
			sqlDB, err := cfg.DB.DB()
			if err != nil || sqlDB.Ping() != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "service": "jobtrail"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "service": "jobtrail"})
	})

	uploadService := services.NewUploadService(cfg.Attachments, cfg.Jobs, cfg.Gateway, cfg.Logger)
	uploadHandler := handler.NewUploadHandler(uploadService, cfg.Logger, cfg.Production)

	uploads := r.Group("/uploads")
	uploads.Use(middleware.UploadRateLimitMiddleware(cfg.RateLimiter))
	{
		uploads.POST("/create", uploadHandler.CreateSignedUpload)
		uploads.POST("", uploadHandler.Save)
		uploads.GET("/:id", uploadHandler.Get)
		uploads.DELETE("/:id", uploadHandler.Delete)
	}

	jobs := r.Group("/jobs")
	{
		jobs.GET("/:id/uploads", uploadHandler.ListJobUploads)
		jobs.DELETE("/:id/uploads", uploadHandler.DeleteJobUploads)
	}

	r.GET("/blob-proxy", uploadHandler.BlobProxy)

	return r
}
