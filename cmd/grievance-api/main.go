package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campus-desk/grievance-api/api/swagger"
	"github.com/campus-desk/grievance-api/internal/handler"
	"github.com/campus-desk/grievance-api/internal/middleware"
	"github.com/campus-desk/grievance-api/internal/models"
	"github.com/campus-desk/grievance-api/internal/repository"
	"github.com/campus-desk/grievance-api/internal/service"
	"github.com/campus-desk/grievance-api/pkg/cache"
	"github.com/campus-desk/grievance-api/pkg/config"
	"github.com/campus-desk/grievance-api/pkg/database"
	"github.com/campus-desk/grievance-api/pkg/logger"
	corsmiddleware "github.com/campus-desk/grievance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campus-desk/grievance-api/pkg/middleware/requestid"
)

// @title Campus Grievance API
// @version 1.0.0
// @description College grievance submission and tracking service
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	grievanceRepo := repository.NewGrievanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.Enabled && redisClient != nil)

	authSvc := service.NewAuthService(userRepo, roleRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	notifier := service.NewMetricsNotifier(metricsSvc, service.NewLogNotifier(logr))
	grievanceSvc := service.NewGrievanceService(grievanceRepo, userRepo, notifier, validate, logr)
	analyticsSvc := service.NewAnalyticsService(grievanceRepo, cacheSvc, metricsSvc, cfg.Analytics.CacheTTL, logr)
	exportSvc := service.NewExportService(grievanceRepo, service.ExportConfig{
		Enabled: cfg.Exports.Enabled,
		MaxRows: cfg.Exports.MaxRows,
	}, logr, nil, nil)

	authHandler := handler.NewAuthHandler(authSvc)
	grievanceHandler := handler.NewGrievanceHandler(grievanceSvc, exportSvc, analyticsSvc, metricsSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

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
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	grievances := api.Group("/grievances", middleware.JWT(authSvc))
	{
		grievances.GET("/taxonomy", grievanceHandler.Taxonomy)
		grievances.POST("", middleware.RequireAnyRole(), grievanceHandler.Submit)
		grievances.GET("", middleware.RequireAnyRole(), grievanceHandler.List)
		grievances.GET("/export",
			middleware.RequireRoles(models.RoleAdmin),
			middleware.Audit(userRepo, models.AuditActionRegisterExport, "grievances"),
			grievanceHandler.Export)
		grievances.GET("/:id", middleware.RequireAnyRole(), grievanceHandler.Get)
		grievances.PATCH("/:id/status", middleware.RequireRoles(models.RoleAdmin), grievanceHandler.UpdateStatus)
	}

	analytics := api.Group("/analytics", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		analytics.GET("/summary", analyticsHandler.Summary)
		analytics.GET("/system", analyticsHandler.SystemMetrics)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
