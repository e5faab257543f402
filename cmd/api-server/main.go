package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/mediconnect/telemed-api/api/swagger"
	"github.com/mediconnect/telemed-api/internal/handler"
	"github.com/mediconnect/telemed-api/internal/middleware"
	"github.com/mediconnect/telemed-api/internal/models"
	"github.com/mediconnect/telemed-api/internal/repository"
	"github.com/mediconnect/telemed-api/internal/service"
	"github.com/mediconnect/telemed-api/pkg/cache"
	"github.com/mediconnect/telemed-api/pkg/config"
	"github.com/mediconnect/telemed-api/pkg/database"
	"github.com/mediconnect/telemed-api/pkg/lock"
	"github.com/mediconnect/telemed-api/pkg/logger"
	"github.com/mediconnect/telemed-api/pkg/mailer"
	corsmiddleware "github.com/mediconnect/telemed-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mediconnect/telemed-api/pkg/middleware/requestid"
)

// @title MediConnect Telemed API
// @version 0.1.0
// @description Telemedicine appointment scheduling and optimization service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	locker := lock.Noop()
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, calendar locking disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		locker = lock.NewRedisCalendarLocker(redisClient, cfg.Scheduler.LockTTL)
	}

	appointmentRepo := repository.NewAppointmentRepository(db)
	doctorRepo := repository.NewDoctorRepository(db)
	userRepo := repository.NewUserRepository(db)

	metricsSvc := service.NewMetricsService()
	smtpMailer := mailer.NewSMTPMailer(cfg.SMTP)
	notifier := service.NewRescheduleNotifier(appointmentRepo, smtpMailer, metricsSvc, logr)

	schedulerSvc := service.NewSchedulerService(appointmentRepo, notifier, locker, metricsSvc, logr, cfg.Scheduler)
	appointmentSvc := service.NewAppointmentService(appointmentRepo, doctorRepo, nil, logr, cfg.Scheduler)
	doctorSvc := service.NewDoctorService(doctorRepo, nil, logr)
	exportSvc := service.NewDayPlanExportService(appointmentRepo, doctorRepo, logr)
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})

	schedulerHandler := handler.NewSchedulerHandler(schedulerSvc, exportSvc)
	appointmentHandler := handler.NewAppointmentHandler(appointmentSvc)
	doctorHandler := handler.NewDoctorHandler(doctorSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

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

	api := r.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("", middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/doctors", doctorHandler.List)
	authed.GET("/doctors/:id", doctorHandler.Get)
	authed.POST("/doctors", middleware.RequireRoles(models.RoleAdmin), doctorHandler.Create)
	authed.PUT("/doctors/:id", middleware.RequireRoles(models.RoleAdmin), doctorHandler.Update)
	authed.DELETE("/doctors/:id", middleware.RequireRoles(models.RoleAdmin), doctorHandler.Delete)

	authed.GET("/appointments", appointmentHandler.List)
	authed.GET("/appointments/:id", appointmentHandler.Get)
	authed.POST("/appointments", appointmentHandler.Create)
	authed.DELETE("/appointments/:id", appointmentHandler.Cancel)

	authed.GET("/doctors/:id/schedule", appointmentHandler.DaySchedule)
	authed.POST("/doctors/:id/schedule/optimize", middleware.RequireRoles(models.RoleAdmin, models.RoleStaff, models.RoleDoctor), schedulerHandler.Optimize)
	authed.POST("/doctors/:id/schedule/enforce-breaks", middleware.RequireRoles(models.RoleAdmin, models.RoleStaff, models.RoleDoctor), schedulerHandler.EnforceBreaks)
	if cfg.Exports.Enabled {
		authed.GET("/doctors/:id/schedule/export", schedulerHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
