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

	_ "github.com/e-projects/platform-api/api/swagger"
	"github.com/e-projects/platform-api/internal/handler"
	"github.com/e-projects/platform-api/internal/middleware"
	"github.com/e-projects/platform-api/internal/repository"
	"github.com/e-projects/platform-api/internal/service"
	"github.com/e-projects/platform-api/internal/ws"
	"github.com/e-projects/platform-api/pkg/cache"
	"github.com/e-projects/platform-api/pkg/config"
	"github.com/e-projects/platform-api/pkg/database"
	"github.com/e-projects/platform-api/pkg/logger"
	"github.com/e-projects/platform-api/pkg/mailer"
	corsmiddleware "github.com/e-projects/platform-api/pkg/middleware/cors"
	reqidmiddleware "github.com/e-projects/platform-api/pkg/middleware/requestid"
	"github.com/e-projects/platform-api/pkg/storage"
)

// @title E-Projects Platform API
// @version 0.1.0
// @description Tiered access platform: tools, courses, promo codes, support chat
// @BasePath /api
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, tool catalog cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	if err := service.RegisterValidations(validate); err != nil {
		logr.Sugar().Fatalw("failed to register validations", "error", err)
	}

	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	toolRepo := repository.NewToolRepository(db)
	promoRepo := repository.NewPromoRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	chatRepo := repository.NewChatRepository(db)
	planRepo := repository.NewPlanRepository(db)
	reportRepo := repository.NewReportRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Tools.CacheTTL, logr)
	}

	hub := ws.NewHub(logr)

	var resetMailer service.ResetMailer
	if cfg.Mail.Host != "" {
		resetMailer = mailer.New(mailer.Config{
			Host:        cfg.Mail.Host,
			Port:        cfg.Mail.Port,
			Username:    cfg.Mail.Username,
			Password:    cfg.Mail.Password,
			FromAddress: cfg.Mail.FromAddress,
			ResetURL:    cfg.Mail.ResetURL,
		}, logr)
	} else {
		logr.Warn("smtp host not configured, password reset mail disabled")
	}

	authSvc := service.NewAuthService(userRepo, sessionRepo, hub, resetMailer, metricsSvc, validate, logr, service.AuthConfig{
		TokenSecret:   cfg.Auth.TokenSecret,
		TokenExpiry:   cfg.Auth.TokenExpiry,
		ResetTokenTTL: cfg.Auth.ResetTokenTTL,
		Issuer:        "e-projects",
	})
	toolSvc := service.NewToolService(toolRepo, cacheSvc, cfg.Tools.CacheTTL, validate, logr)
	promoSvc := service.NewPromoService(promoRepo, userRepo, metricsSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, validate, logr)
	chatSvc := service.NewChatService(chatRepo, hub, validate, logr)
	planSvc := service.NewPlanService(planRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reportSvc *service.ReportService
	var reportStore *storage.LocalStorage
	if cfg.Reports.Enabled {
		reportStore, err = storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportSvc = service.NewReportService(reportRepo, promoRepo, reportStore, signer,
			cfg.Reports.WorkerConcurrency, cfg.Reports.WorkerRetries, logr)
		reportSvc.Start(ctx)
		defer reportSvc.Stop()
	}

	if cfg.Maintenance.Enabled {
		var files *storage.LocalStorage
		if reportStore != nil {
			files = reportStore
		} else {
			files, err = storage.NewLocalStorage(cfg.Reports.StorageDir)
			if err != nil {
				logr.Sugar().Fatalw("failed to init maintenance storage", "error", err)
			}
		}
		maintenance := service.NewMaintenanceService(sessionRepo, promoRepo, courseRepo, files,
			cfg.Maintenance.Interval, cfg.Auth.SessionIdleTTL, 7*24*time.Hour, logr)
		go maintenance.Run(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	toolHandler := handler.NewToolHandler(toolSvc)
	promoHandler := handler.NewPromoHandler(promoSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	chatHandler := handler.NewChatHandler(chatSvc)
	planHandler := handler.NewPlanHandler(planSvc)
	userHandler := handler.NewUserHandler(userSvc)
	wsHandler := ws.NewHandler(hub, authSvc, cfg.CORS.AllowedOrigins, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
	}

	// Plan prices back the public pricing page.
	api.GET("/plans", planHandler.List)

	authed := api.Group("")
	authed.Use(middleware.Auth(authSvc))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.GET("/auth/session", authHandler.Session)
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/tools", toolHandler.List)
		authed.GET("/tools/:id", toolHandler.Get)
		authed.POST("/tools/:id/ratings", toolHandler.Rate)
		authed.GET("/tools/:id/ratings", toolHandler.ListRatings)

		authed.POST("/promos/redeem", promoHandler.Redeem)

		authed.GET("/courses", courseHandler.List)
		authed.GET("/courses/purchases", courseHandler.MyPurchases)
		authed.GET("/courses/:id", courseHandler.Get)
		authed.GET("/courses/:id/content", courseHandler.Content)

		authed.GET("/notifications", notificationHandler.List)
		authed.POST("/notifications/:id/read", notificationHandler.MarkRead)

		authed.GET("/chat", chatHandler.MyThread)
		authed.POST("/chat/messages", chatHandler.Send)

		authed.GET("/ws", wsHandler.Serve)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.Auth(authSvc), middleware.RequireAdmin())
	{
		admin.GET("/users", userHandler.List)
		admin.GET("/users/:id", userHandler.Get)
		admin.PUT("/users/:id", userHandler.Update)

		admin.POST("/tools", toolHandler.Create)
		admin.PUT("/tools/:id", toolHandler.Update)
		admin.DELETE("/tools/:id", toolHandler.Delete)

		admin.GET("/promos", promoHandler.List)
		admin.POST("/promos", promoHandler.Create)
		admin.PUT("/promos/:id", promoHandler.Update)
		admin.DELETE("/promos/:id", promoHandler.Delete)
		admin.GET("/promos/:id/usages", promoHandler.Usages)

		admin.POST("/courses", courseHandler.Create)
		admin.PUT("/courses/:id", courseHandler.Update)
		admin.DELETE("/courses/:id", courseHandler.Delete)
		admin.POST("/courses/:id/lessons", courseHandler.CreateLesson)
		admin.PUT("/courses/:id/lessons/:lessonId", courseHandler.UpdateLesson)
		admin.DELETE("/courses/:id/lessons/:lessonId", courseHandler.DeleteLesson)
		admin.POST("/courses/:id/materials", courseHandler.CreateMaterial)
		admin.PUT("/courses/:id/materials/:materialId", courseHandler.UpdateMaterial)
		admin.DELETE("/courses/:id/materials/:materialId", courseHandler.DeleteMaterial)
		admin.POST("/courses/:id/purchases", courseHandler.GrantPurchase)

		admin.POST("/notifications", notificationHandler.Create)
		admin.DELETE("/notifications/:id", notificationHandler.Delete)

		admin.GET("/chat/threads", chatHandler.ListThreads)
		admin.GET("/chat/threads/:id", chatHandler.ThreadMessages)
		admin.POST("/chat/threads/:id/messages", chatHandler.Reply)
		admin.PUT("/chat/threads/:id/status", chatHandler.SetStatus)

		admin.GET("/plans", planHandler.ListAll)
		admin.PUT("/plans", planHandler.Upsert)

		if reportSvc != nil {
			reportHandler := handler.NewReportHandler(reportSvc)
			admin.POST("/reports", reportHandler.Request)
			admin.GET("/reports/download", reportHandler.Download)
			admin.GET("/reports/:id", reportHandler.Status)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}
