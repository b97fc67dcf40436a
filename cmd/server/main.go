package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorefer/internal/config"
	handlers "gorefer/internal/handlers/shared"
	"gorefer/internal/middleware"
	"gorefer/internal/repositories/mongodb"
	"gorefer/internal/services"
	"gorefer/pkg/cache"
	"gorefer/pkg/database"
	"gorefer/pkg/logger"
	"gorefer/routes"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Database
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer db.Close()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx); err != nil {
		cancelIndexes()
		log.WithError(err).Fatal("Failed to ensure indexes")
	}
	cancelIndexes()

	// Cache
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	// Repositories
	codeRepo := mongodb.NewAffiliateCodeRepository(db.Database)
	clickRepo := mongodb.NewClickRepository(db.Database)
	referralRepo := mongodb.NewReferralRepository(db.Database)
	settingRepo := mongodb.NewSettingRepository(db.Database)
	userRepo := mongodb.NewUserRepository(db.Database)
	ledgerRepo := mongodb.NewLedgerRepository(db.Database)

	// Services
	cacheService := services.NewCacheService(redisCache, log)
	settingsService := services.NewSettingsService(settingRepo, cacheService, log)
	commissionService := services.NewCommissionService(referralRepo, log)
	multiplierService := services.NewMultiplierService(userRepo, referralRepo, settingsService, log)
	tierService := services.NewTierService(referralRepo)
	ledgerService := services.NewLedgerService(ledgerRepo, log)
	notifier := services.NewLogNotifier(log)
	attributionService := services.NewAttributionService(codeRepo, clickRepo, cacheService, cfg.Engine.StrictClicks, log)
	codeService := services.NewAffiliateCodeService(codeRepo, userRepo, log)
	referralService := services.NewReferralService(
		referralRepo,
		codeRepo,
		attributionService,
		settingsService,
		commissionService,
		tierService,
		ledgerService,
		notifier,
		cacheService,
		log,
	)

	// Handlers
	affiliateHandler := handlers.NewAffiliateHandler(
		codeService,
		attributionService,
		referralService,
		commissionService,
		multiplierService,
		tierService,
		ledgerService,
		settingsService,
	)
	adminHandler := handlers.NewAdminHandler(
		settingsService,
		referralService,
		multiplierService,
		codeService,
	)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))

	v1 := router.Group("/api/v1")
	{
		routes.SetupAffiliateRoutes(v1, cfg.Security.JWTSecret, affiliateHandler, adminHandler)
	}

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if err := db.Ping(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"version": cfg.App.Version,
		})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.App.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Forced shutdown")
	}
}
