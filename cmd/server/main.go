package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/excellencepro/dossier-api/api/swagger"
	"github.com/excellencepro/dossier-api/internal/handler"
	"github.com/excellencepro/dossier-api/internal/middleware"
	"github.com/excellencepro/dossier-api/internal/models"
	"github.com/excellencepro/dossier-api/internal/repository"
	"github.com/excellencepro/dossier-api/internal/service"
	"github.com/excellencepro/dossier-api/pkg/cache"
	"github.com/excellencepro/dossier-api/pkg/config"
	"github.com/excellencepro/dossier-api/pkg/database"
	"github.com/excellencepro/dossier-api/pkg/jobs"
	"github.com/excellencepro/dossier-api/pkg/logger"
	corsmiddleware "github.com/excellencepro/dossier-api/pkg/middleware/cors"
	reqidmiddleware "github.com/excellencepro/dossier-api/pkg/middleware/requestid"
	"github.com/excellencepro/dossier-api/pkg/refgen"
	"github.com/excellencepro/dossier-api/pkg/storage"

	"go.uber.org/zap"
)

// @title Dossier Platform API
// @version 1.0.0
// @description Request, status and payment workflow API for academic writing, travel assistance and VAP/VAE certification services.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, tracking cache and shared sequences disabled", zap.Error(err))
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare attachment storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)

	validate := validator.New()
	refs := refgen.New(redisClient, logr)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)

	serviceRepos := make(map[models.DomainCode]service.RequestRepo, 3)
	checkers := make(map[models.DomainCode]service.RequestLookup, 3)
	for _, domain := range models.Domains() {
		repo := repository.NewRequestRepository(db, domain)
		serviceRepos[domain.Code] = repo
		checkers[domain.Code] = repo
	}

	metricsSvc := service.NewMetricsService()
	notificationSvc := service.NewNotificationService(notificationRepo, validate, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		Logger:     logr,
	})
	metricsSvc.RegisterQueueDepth("notifications", notificationSvc.QueueDepth)
	requestSvc := service.NewRequestService(serviceRepos, refs, cacheRepo, userRepo, notificationSvc, validate, logr, cfg.Tracking.CacheTTL)
	requestSvc.SetMetrics(metricsSvc)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "dossier-api",
	})
	attachmentSvc := service.NewAttachmentService(attachmentRepo, checkers, store, signer, userRepo, service.AttachmentLimits{
		MaxFileSizeBytes: cfg.Attachments.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Attachments.AllowedMIMEs,
	}, logr)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notificationSvc.StartQueue(rootCtx)
	defer notificationSvc.StopQueue()

	requestHandler := handler.NewRequestHandler(requestSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	attachmentHandler := handler.NewAttachmentHandler(attachmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/domains", requestHandler.Domains)

		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
			auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
			auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
		}

		notifications := api.Group("/notifications", middleware.JWT(authSvc))
		{
			notifications.POST("", middleware.RequireStaff(), notificationHandler.Create)
			notifications.GET("", notificationHandler.List)
			notifications.GET("/unread-count", notificationHandler.UnreadCount)
			notifications.PATCH("/:id/read", notificationHandler.MarkRead)
			notifications.POST("/read-all", notificationHandler.MarkAllRead)
		}

		attachments := api.Group("/attachments")
		{
			attachments.GET("/download", attachmentHandler.Download)
			attachments.POST("/:attachmentID/link", middleware.JWT(authSvc), middleware.RequireStaff(), attachmentHandler.SignedLink)
			attachments.DELETE("/:attachmentID", middleware.JWT(authSvc), middleware.RequireStaff(), attachmentHandler.Delete)
		}

		domain := api.Group("/:domain")
		{
			domain.POST("/requests", middleware.OptionalJWT(authSvc), requestHandler.Submit)
			domain.GET("/requests/track/:reference", requestHandler.Track)

			// Owners (CLIENT) may manage documents on their own requests;
			// the service enforces the ownership check.
			owned := domain.Group("/requests", middleware.JWT(authSvc))
			{
				owned.POST("/:id/attachments", attachmentHandler.Upload)
				owned.GET("/:id/attachments", attachmentHandler.List)
			}

			staff := domain.Group("/requests", middleware.JWT(authSvc), middleware.RequireStaff())
			{
				staff.GET("", requestHandler.List)
				staff.GET("/export", requestHandler.Export)
				staff.GET("/:id", requestHandler.Get)
				staff.POST("/:id/status", requestHandler.Transition)
				staff.GET("/:id/payments", requestHandler.Payments)
				staff.POST("/:id/payments", requestHandler.RecordPayment)
				staff.GET("/:id/payments/:paymentID/receipt", requestHandler.Receipt)
			}
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("forced shutdown", zap.Error(err))
	}
}
