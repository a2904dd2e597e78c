package main

import (
	"fmt"
	"log"

	"jobtrail/internal/config"
	"jobtrail/internal/redis"
	"jobtrail/internal/repository"
	"jobtrail/internal/router"
	"jobtrail/internal/storage"
	"jobtrail/pkg/database"
	"jobtrail/pkg/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == "production" {
		mode = logger.ProductionMode
		gin.SetMode(gin.ReleaseMode)
	}
	l := logger.New(mode)
	defer l.Logger.Sync()

	var db *gorm.DB
	var attachments repository.AttachmentStore
	var jobs repository.JobStore
	if cfg.DBDisable {
		l.Infof("database disabled, using in-memory stores")
		attachments = repository.NewMemoryAttachmentStore()
		jobs = repository.NewMemoryJobStore()
	} else {
		var err error
		db, err = database.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		attachments = repository.NewAttachmentStore(db)
		jobs = repository.NewJobStore(db)
	}

	var limiter *redis.RateLimiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		limitCfg := redis.DefaultRateLimitConfig()
		if cfg.UploadLimit > 0 {
			limitCfg.UploadLimit = cfg.UploadLimit
		}
		limiter = redis.NewRateLimiter(client, limitCfg)
	}

	gateway := storage.NewGateway(config.LoadBlob, l)

	r := router.Setup(router.Config{
		Logger:      l,
		Production:  cfg.AppMode == "production",
		DB:          db,
		Attachments: attachments,
		Jobs:        jobs,
		Gateway:     gateway,
		RateLimiter: limiter,
	})

	l.Infof("Starting server on port %s", cfg.AppPort)
	if err := r.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
