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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ticket-report-export/api/swagger"
	"github.com/noah-isme/ticket-report-export/internal/handler"
	internalmiddleware "github.com/noah-isme/ticket-report-export/internal/middleware"
	"github.com/noah-isme/ticket-report-export/internal/models"
	"github.com/noah-isme/ticket-report-export/internal/repository"
	"github.com/noah-isme/ticket-report-export/internal/service"
	"github.com/noah-isme/ticket-report-export/pkg/cache"
	"github.com/noah-isme/ticket-report-export/pkg/config"
	"github.com/noah-isme/ticket-report-export/pkg/database"
	"github.com/noah-isme/ticket-report-export/pkg/export"
	"github.com/noah-isme/ticket-report-export/pkg/logger"
	corsmiddleware "github.com/noah-isme/ticket-report-export/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ticket-report-export/pkg/middleware/requestid"
	"github.com/noah-isme/ticket-report-export/pkg/raster"
	"github.com/noah-isme/ticket-report-export/pkg/storage"
)

// @title Ticket Report Export API
// @version 1.0.0
// @description Exports helpdesk ticket statistics as CSV, PNG charts and paginated PDF reports.
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, "report-export", logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Statistics.CacheTTL, logr, cfg.Statistics.CacheEnabled && redisClient != nil)
	statsRepo := repository.NewStatisticsRepository(db)
	statsSvc := service.NewStatisticsService(statsRepo, cacheSvc, cfg.Statistics.CacheTTL, logr)
	identity := service.NewIdentityService(cfg.JWT.Secret)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	delivery := service.NewDeliveryService(store, signer, service.DeliveryConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.ResultTTL,
	}, logr)

	background, err := raster.ParseHexColor(cfg.Raster.Background)
	if err != nil {
		logr.Fatal("invalid raster background", zap.Error(err))
	}
	rasterizer := raster.NewRasterizer(raster.Options{
		Scale:            cfg.Raster.Scale,
		Background:       background,
		AllowCrossOrigin: cfg.Raster.AllowCrossOrigin,
	})
	surfaces := service.NewSurfaceRegistry(service.SurfaceLimits{
		MaxBytes:        cfg.Raster.MaxSnapshotBytes,
		MaxPixels:       cfg.Raster.MaxSnapshotPixels,
		MaxOutputPixels: cfg.Raster.MaxOutputPixels,
	}, logr)
	fetcher := service.NewTicketFetcher(service.TicketFetcherConfig{
		BaseURL: cfg.Statistics.BaseURL,
		Timeout: cfg.Statistics.Timeout,
	}, nil, logr)
	builder := export.NewDocumentBuilder(export.PageGeometry{
		Width:  cfg.Document.PageWidth,
		Height: cfg.Document.PageHeight,
		Margin: cfg.Document.Margin,
	}, export.DefaultLayout())

	orchestrator := service.NewExportOrchestrator(
		fetcher,
		surfaces,
		rasterizer,
		builder,
		export.NewPDFExporter(),
		export.NewDelimitedExporter(';'),
		delivery,
		metrics,
		service.ExportOrchestratorConfig{
			DocumentTitle:       cfg.Document.Title,
			SurfaceOrder:        cfg.Document.SurfaceOrder,
			DegradeOnFetchError: cfg.Statistics.DegradeOnFetchError,
			Locale:              service.NewDateLocale(cfg.Locale.DateLayout, cfg.Locale.Timezone),
		},
		logr,
	)

	scheduler := service.NewCleanupScheduler(delivery, cfg.Exports.CleanupSchedule, cfg.Exports.ResultTTL, logr)
	if err := scheduler.Start(ctx); err != nil {
		logr.Fatal("failed to start export cleanup", zap.Error(err))
	}

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
		"database": statsRepo,
		"cache":    cacheRepo,
	})
	statisticsHandler := handler.NewStatisticsHandler(statsSvc)
	surfaceHandler := handler.NewSurfaceHandler(surfaces)
	exportHandler := handler.NewExportHandler(orchestrator, delivery)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET(service.FullExportPath, statisticsHandler.FullExport)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/exports/download/:token", exportHandler.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.Identity(identity, cfg.JWT.TrustEmailHeader))

	dashboard := secured.Group("/dashboard")
	dashboard.GET("/surfaces", surfaceHandler.List)
	dashboard.PUT("/surfaces/:id", surfaceHandler.Mount)
	dashboard.DELETE("/surfaces/:id", surfaceHandler.Unmount)

	exports := secured.Group("/exports")
	exports.POST("/tabular", exportHandler.Tabular)
	exports.POST("/raster", exportHandler.Raster)
	exports.POST("/document", exportHandler.Document)
	exports.GET("/status", exportHandler.Status)
	exports.POST("/acknowledge", exportHandler.Acknowledge)

	secured.POST("/statistics/cache/invalidate",
		internalmiddleware.RequireRoles(models.RoleAdmin),
		statisticsHandler.InvalidateCache,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	scheduler.Stop()
}
