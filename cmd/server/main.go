// Package main runs the multi-tenant event registration HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mapease/backend/config"
	"github.com/mapease/backend/internal/admin"
	"github.com/mapease/backend/internal/auth"
	"github.com/mapease/backend/internal/authz"
	"github.com/mapease/backend/internal/credential"
	"github.com/mapease/backend/internal/events"
	"github.com/mapease/backend/internal/middleware"
	"github.com/mapease/backend/internal/models"
	"github.com/mapease/backend/internal/registrations"
	"github.com/mapease/backend/internal/tenants"
	"github.com/mapease/backend/internal/users"
	"github.com/mapease/backend/internal/worker"
	"github.com/mapease/backend/pkg/database"
	"github.com/mapease/backend/pkg/queue"
	"github.com/mapease/backend/pkg/redis"
	"github.com/mapease/backend/pkg/response"
	"github.com/mapease/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.QRBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			QRBucket:        cfg.AWS.QRBucket,
			PublicURL:       cfg.AWS.PublicURL,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	ssoClient := auth.NewSSOClient(cfg.SSO.ServiceURL, time.Duration(cfg.SSO.TimeoutSec)*time.Second)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, ssoClient, cfg.Platform.BaseDomain, cfg.Platform.AdminEmails, logger)

	// Tenants (redis-cached slug resolution)
	tenantRepo := tenants.NewRepository(pool)
	tenantCache := tenants.NewCache(tenantRepo, rdb.Client, logger)
	gate := authz.NewGate(tenantRepo)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)

	// Registrations (lifecycle engine + credential issuance)
	regRepo := registrations.NewRepository(pool)
	issuer := credential.NewGenerator()
	var images *credential.ImageStore
	if s3Client != nil {
		images = credential.NewImageStore(s3Client)
	}
	jobQueue := queue.NewQueue(rdb.Client, logger)
	regService := registrations.NewService(regRepo, issuer, images, jobQueue, logger)
	regHandler := registrations.NewHandler(regService, regRepo, authRepo, logger)

	tenantHandler := tenants.NewHandler(tenantRepo, eventRepo, regRepo, logger)
	adminHandler := admin.NewHandler(tenantRepo, tenantCache, authRepo, eventRepo, logger)
	userHandler := users.NewHandler(authRepo, tenantRepo, regRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins, cfg.Platform.BaseDomain))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public; identity comes from the SSO authority)
	authGroup := router.Group("/auth")
	{
		authGroup.GET("/sso/login", authHandler.SSOLogin)
		authGroup.POST("/sso/callback", authHandler.SSOCallback)
		authGroup.GET("/verify", authHandler.Verify)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Share links resolve events without tenant context.
	router.GET("/share/:shareLink", eventHandler.GetByShareLink)

	// Tenant-scoped routes. The resolver prefers the request host
	// (<slug>.<base-domain>) and falls back to the :slug path segment.
	tenant := router.Group("/tenant/:slug")
	tenant.Use(tenants.Resolver(tenantCache, cfg.Platform.BaseDomain))
	tenant.Use(tenants.RequireTenant())
	{
		tenant.GET("", tenantHandler.Info)
		tenant.GET("/events", eventHandler.List)
		tenant.GET("/event/:eventId", eventHandler.Get)
		tenant.POST("/event/:eventId/register", regHandler.Register)
		tenant.GET("/event/:eventId/map/:registrationId", regHandler.VenueMap)

		// Administration of this tenant (JWT + membership gate)
		ta := tenant.Group("")
		ta.Use(middleware.Authenticate(jwtService, authRepo, logger))
		ta.Use(authz.RequireTenantAdmin(gate, logger))
		{
			ta.POST("/event", eventHandler.Create)
			ta.PUT("/event/:eventId", eventHandler.Update)
			ta.DELETE("/event/:eventId", eventHandler.Delete)
			ta.GET("/event/:eventId/registrations", regHandler.ListByEvent)
			ta.POST("/event/:eventId/approve-user/:registrationId", regHandler.Approve)
			ta.POST("/event/:eventId/reject-user/:registrationId", regHandler.Reject)
			ta.POST("/event/:eventId/scan", regHandler.Scan)
			ta.GET("/dashboard", tenantHandler.Dashboard)
			ta.GET("/admins", tenantHandler.Admins)
		}
	}

	// Platform administration
	adm := router.Group("/admin")
	adm.Use(middleware.Authenticate(jwtService, authRepo, logger))
	adm.Use(middleware.RequireRole(string(models.RolePlatformAdmin)))
	{
		adm.GET("/tenants", adminHandler.ListTenants)
		adm.POST("/tenants", adminHandler.CreateTenant)
		adm.PUT("/tenants/:tenantId", adminHandler.UpdateTenant)
		adm.DELETE("/tenants/:tenantId", adminHandler.DeleteTenant)
		adm.POST("/tenants/:tenantId/admins", adminHandler.AssignAdmin)
		adm.DELETE("/tenants/:tenantId/admins/:userId", adminHandler.RevokeAdmin)
		adm.GET("/users", adminHandler.ListUsers)
		adm.PUT("/users/:userId/status", adminHandler.SetUserStatus)
		adm.GET("/stats", adminHandler.Stats)
	}

	// Authenticated user's own surface
	user := router.Group("/user")
	user.Use(middleware.Authenticate(jwtService, authRepo, logger))
	{
		user.GET("/profile", userHandler.Profile)
		user.PUT("/profile", userHandler.UpdateProfile)
		user.GET("/registrations", userHandler.Registrations)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process credential image worker; cmd/worker runs the same loop
	// standalone for deployments that scale it separately.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if images != nil {
		processor := worker.NewImageProcessor(regRepo, images, jobQueue, logger)
		go processor.Run(workerCtx)
		logger.Info("credential image worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
