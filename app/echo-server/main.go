package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusCanteen/app/echo-server/router"
	"campusCanteen/business/events"
	"campusCanteen/business/experiment"
	"campusCanteen/business/recallmetrics"
	"campusCanteen/business/recommend"
	"campusCanteen/business/session"
	"campusCanteen/internal/middleware"
	psqlRepo "campusCanteen/internal/repository/postgres"
	redisRepo "campusCanteen/internal/repository/redis"
	"campusCanteen/internal/rest"
	"campusCanteen/pkg/config"
	"campusCanteen/pkg/database"
	redisdb "campusCanteen/pkg/database/redis"
	"campusCanteen/pkg/logger"
	"campusCanteen/pkg/metrics"
	"campusCanteen/pkg/utils"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting Campus Canteen Recommendation API", "version", cfg.App.Version)

	utils.Init(cfg.JWT.SecretKey)
	metrics.Init()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	logger.Info("Database connected successfully")

	redisClient, err := redisdb.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to redis", "error", err)
	}

	// Init repo
	dishRepo := psqlRepo.NewDishRepository(db)
	experimentRepo := psqlRepo.NewExperimentRepository(db)
	interactionRepo := psqlRepo.NewInteractionRepository(db)
	eventRepo := psqlRepo.NewEventRepository(db)
	recoCache := redisRepo.NewRecommendationCache(
		redisClient,
		time.Duration(cfg.Recommend.CandidateCacheTTL)*time.Minute,
	)

	// Experiment registry holds the serving snapshot; load it before
	// the first request comes in.
	registry := experiment.NewRegistry(experimentRepo, recoCache)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := registry.Refresh(ctx); err != nil {
			logger.Warn("Initial experiment refresh failed", "error", err)
		}
		cancel()
	}

	sessions := session.NewCache(
		time.Duration(cfg.Session.TTLMinutes)*time.Minute,
		time.Duration(cfg.Session.SweepMinutes)*time.Minute,
	)

	// Init service
	experimentService := experiment.NewService(experimentRepo, registry)
	eventService := events.NewService(eventRepo, recoCache)
	recommendService := recommend.NewService(dishRepo, sessions, registry, eventService, recoCache, recommend.ServiceConfig{
		Weights: recommend.Weights{
			Base:      cfg.Recommend.BaseWeight,
			Diversity: cfg.Recommend.DiversityWeight,
			Urgency:   cfg.Recommend.UrgencyWeight,
		},
		MinCandidates:       cfg.Recommend.MinCandidates,
		CandidateMultiplier: cfg.Recommend.CandidateMultiplier,
		FetchTimeout:        time.Duration(cfg.Recommend.FetchTimeoutSeconds) * time.Second,
	})
	recallEvaluator := recallmetrics.NewEvaluator(recommendService, interactionRepo, dishRepo, recallmetrics.Thresholds{
		RecallGood:    cfg.Recall.RecallGood,
		RecallFair:    cfg.Recall.RecallFair,
		CoverageGood:  cfg.Recall.CoverageGood,
		CoverageFair:  cfg.Recall.CoverageFair,
		DiversityGood: cfg.Recall.DiversityGood,
		DiversityFair: cfg.Recall.DiversityFair,
	}, cfg.Recall.SweepWorkers)

	// Init handler
	recommendHandler := rest.NewRecommendHandler(recommendService)
	healthHandler := rest.NewHealthHandler(
		func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		func() int {
			return len(registry.Active())
		},
	)
	eventHandler := rest.NewEventHandler(eventService)
	experimentAdminHandler := rest.NewExperimentAdminHandler(experimentService)
	recallAdminHandler := rest.NewRecallAdminHandler(recallEvaluator)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Setup routes
	api := e.Group("/api/v1")
	router.SetRecommendRoutes(api, recommendHandler, healthHandler)
	router.SetEventRoutes(api, eventHandler)
	router.SetExperimentAdminRoutes(api, experimentAdminHandler)
	router.SetRecallAdminRoutes(api, recallAdminHandler)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Periodic registry refresh keeps serving in sync with admin
	// changes made on other instances.
	refreshDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-refreshDone:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := registry.Refresh(ctx); err != nil {
					logger.Warn("Experiment refresh failed", "error", err)
				}
				cancel()
			}
		}
	}()

	// Daily retention sweep over the event chain
	retentionDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-retentionDone:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if _, err := eventService.CleanupOldEvents(ctx, cfg.Recall.EventRetention); err != nil {
					logger.Warn("Event retention sweep failed", "error", err)
				}
				cancel()
			}
		}
	}()

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	close(refreshDone)
	close(retentionDone)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	sessions.Stop()

	if err := redisdb.CloseRedisClient(redisClient); err != nil {
		logger.Error("Redis close error", "error", err)
	}
	if err := database.ClosePostgres(db); err != nil {
		logger.Error("Database close error", "error", err)
	}

	logger.Info("Server stopped")
}
