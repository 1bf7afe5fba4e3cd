package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appintegration "github.com/erp/bcsync/internal/application/integration"
	appphoneauth "github.com/erp/bcsync/internal/application/phoneauth"
	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/infrastructure/auth"
	"github.com/erp/bcsync/internal/infrastructure/businesscentral"
	"github.com/erp/bcsync/internal/infrastructure/cache"
	"github.com/erp/bcsync/internal/infrastructure/config"
	"github.com/erp/bcsync/internal/infrastructure/dokobit"
	"github.com/erp/bcsync/internal/infrastructure/event"
	"github.com/erp/bcsync/internal/infrastructure/logger"
	"github.com/erp/bcsync/internal/infrastructure/persistence"
	"github.com/erp/bcsync/internal/infrastructure/scheduler"
	"github.com/erp/bcsync/internal/infrastructure/telemetry"
	"github.com/erp/bcsync/internal/interfaces/http/handler"
	"github.com/erp/bcsync/internal/interfaces/http/middleware"
	"github.com/erp/bcsync/internal/interfaces/http/router"

	_ "github.com/erp/bcsync/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// credentialKey names the single Business Central credential this instance manages
const credentialKey = "business_central"

//	@title			bcsync API
//	@version		1.0
//	@description	Business Central catalog synchronization and phone sign-in

//	@contact.name	API Support
//	@contact.url	https://github.com/erp/bcsync

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Admin token. Format: "Bearer {token}"

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	telemetry.ServiceVersion = handler.Version
	// Providers log through the plain logger; the OTLP log bridge is teed in afterwards
	tel, err := telemetry.Setup(ctx, telemetry.Settings{
		ServiceName:       cfg.Telemetry.ServiceName,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		Traces:            cfg.Telemetry.Enabled,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		Metrics:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		Logs:              cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		Profiling:         cfg.Telemetry.ProfilingEnabled,
		PyroscopeURL:      cfg.Telemetry.PyroscopeURL,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	minLevel, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		minLevel = zapcore.InfoLevel
	}
	if core := tel.LogCore(minLevel); core != nil {
		if log, err = logger.New(logCfg, core); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting bcsync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", handler.Version),
	)

	syncMetrics, err := telemetry.NewSyncMetrics(tel.Meter("github.com/erp/bcsync"))
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.GormConfig{
		Level:         cfg.Log.Level,
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		LogParams:     cfg.Telemetry.DBLogFullSQL,
	})
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		log.Warn("Database tracing disabled", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Redis is optional; without it OAuth state lives in the database and run locks in process
	cacheFactory := cache.NewFactory(cfg.Redis, cache.WithLogger(log))
	redisClient, err := cacheFactory.Client(ctx)
	if err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis", zap.Error(err))
			}
		}()
	}

	// Runtime settings, sealed at rest when an encryption key is configured
	cipher, err := persistence.NewSecretCipher(cfg.ERP.EncryptionKeyBytes())
	if err != nil {
		log.Fatal("Failed to create secret cipher", zap.Error(err))
	}
	settingsStore := persistence.NewGormSettingsStore(db.DB, cipher)
	if err := settingsStore.SeedDefaults(ctx, map[string]string{
		integration.SettingClientID:        cfg.ERP.ClientID,
		integration.SettingClientSecret:    cfg.ERP.ClientSecret,
		integration.SettingTenantID:        cfg.ERP.TenantID,
		integration.SettingAPIURL:          cfg.ERP.APIURL,
		integration.SettingCompanyID:       cfg.ERP.CompanyID,
		integration.SettingDokobitEndpoint: cfg.Dokobit.APIEndpoint,
		integration.SettingDokobitAPIKey:   cfg.Dokobit.APIKey,
	}); err != nil {
		log.Fatal("Failed to seed ERP settings", zap.Error(err))
	}

	// Events
	eventBus := event.NewInMemoryEventBus(log, event.KnownEventTypes()...)
	eventBus.Subscribe(event.NewLoggingHandler(log))

	// OAuth
	bcConfig := businesscentral.NewConfig()
	bcConfig.AuthorityURL = cfg.ERP.AuthorityURL
	bcConfig.Timeout = cfg.ERP.HTTPTimeout
	bcConfig.PageSize = cfg.ERP.PageSize
	oauthClient, err := businesscentral.NewOAuthClient(bcConfig, log)
	if err != nil {
		log.Fatal("Invalid Business Central configuration", zap.Error(err))
	}

	var stateStore integration.StateStore = persistence.NewGormStateStore(db.DB, credentialKey)
	if redisClient != nil {
		stateStore = cache.NewRedisStateStore(redisClient, credentialKey, cfg.ERP.StateTTL)
	}

	tokenManager := appintegration.NewTokenManager(
		settingsStore,
		persistence.NewGormTokenStore(db.DB, cipher, credentialKey),
		stateStore,
		oauthClient,
		appintegration.TokenManagerConfig{
			RedirectURL:            cfg.ERP.RedirectURL,
			Scope:                  cfg.ERP.Scope,
			ServiceScope:           cfg.ERP.ServiceScope,
			RefreshSkew:            cfg.ERP.RefreshSkew,
			StateTTL:               cfg.ERP.StateTTL,
			AllowClientCredentials: cfg.ERP.AllowClientCredentials,
		},
		log.Named("oauth"),
		appintegration.WithTokenInspector(auth.NewJWTInspector()),
		appintegration.WithEventPublisher(eventBus),
		appintegration.WithMetrics(syncMetrics),
	)
	settingsService := appintegration.NewSettingsService(settingsStore, tokenManager, log.Named("settings"))

	// ERP API and sync
	bcClient, err := businesscentral.NewClient(bcConfig, settingsStore, tokenManager, log.Named("businesscentral"))
	if err != nil {
		log.Fatal("Failed to create Business Central client", zap.Error(err))
	}
	catalog, err := businesscentral.NewCatalog(bcClient, bcConfig)
	if err != nil {
		log.Fatal("Failed to create Business Central catalog", zap.Error(err))
	}

	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	syncService := appintegration.NewSyncService(
		catalog,
		appintegration.SyncRepositories{
			Items:          persistence.NewGormItemRepository(db.DB),
			PriceLists:     persistence.NewGormPriceListRepository(db.DB),
			PriceListLines: persistence.NewGormPriceListLineRepository(db.DB),
			Customers:      customerRepo,
			Runs:           persistence.NewGormSyncRunRepository(db.DB),
		},
		cacheFactory.RunLock(redisClient),
		appintegration.SyncServiceConfig{
			MaxErrorEntries: cfg.ERP.MaxErrorEntries,
			RunLockTTL:      cfg.Scheduler.LockTTL,
		},
		log.Named("sync"),
		appintegration.WithSyncEvents(eventBus),
		appintegration.WithSyncMetrics(syncMetrics),
	)

	// Phone sign-in
	dokobitConfig := dokobit.NewConfig()
	dokobitConfig.Timeout = cfg.Dokobit.HTTPTimeout
	dokobitConfig.Message = cfg.Dokobit.Message
	dokobitClient, err := dokobit.NewClient(dokobitConfig, settingsStore, log.Named("dokobit"))
	if err != nil {
		log.Fatal("Invalid phone authentication configuration", zap.Error(err))
	}
	poller := appphoneauth.NewPoller(dokobitClient, appphoneauth.PollerConfig{
		MaxAttempts: cfg.Dokobit.MaxAttempts,
		Interval:    cfg.Dokobit.PollInterval,
	}, log.Named("phoneauth"),
		appphoneauth.WithPollerEvents(eventBus),
		appphoneauth.WithPollerMetrics(syncMetrics),
	)
	phoneService := appphoneauth.NewService(
		dokobitClient,
		poller,
		cacheFactory.ChallengeStore(redisClient),
		customerRepo,
		log.Named("phoneauth"),
		appphoneauth.WithChallengeTTL(cfg.Dokobit.ChallengeTTL),
	)

	// Periodic sync
	if cfg.Scheduler.Enabled {
		families, err := scheduler.ParseFamilies(cfg.Scheduler.Families)
		if err != nil {
			log.Fatal("Invalid scheduler families", zap.Error(err))
		}
		trigger, err := scheduler.NewSyncTrigger(scheduler.SyncTriggerConfig{
			Interval:   cfg.Scheduler.Interval,
			Families:   families,
			JobTimeout: cfg.Scheduler.JobTimeout,
		}, syncService, log.Named("scheduler"))
		if err != nil {
			log.Fatal("Invalid scheduler configuration", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := trigger.Stop(stopCtx); err != nil {
				log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()
	}

	// HTTP handlers
	oauthHandler := handler.NewERPOAuthHandler(tokenManager)
	settingsHandler := handler.NewERPSettingsHandler(settingsService)
	syncHandler := handler.NewERPSyncHandler(syncService, bcClient)
	phoneHandler := handler.NewPhoneAuthHandler(phoneService)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to set up request validation", zap.Error(err))
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Request id first so every later middleware can log and tag it
	engine.Use(middleware.RequestID())
	if tel.TracingEnabled() {
		engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, "/health"))
		engine.Use(middleware.SpanAnnotator())
	}
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log, logger.WithQuietPaths("/health", "/api/v1/system/ping")))
	var httpMeter metric.Meter
	if tel.MetricsEnabled() {
		httpMeter = tel.Meter("github.com/erp/bcsync/http")
	}
	httpMetrics, err := middleware.HTTPMetrics(httpMeter)
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}
	engine.Use(httpMetrics)
	if tel.ProfilingEnabled() {
		engine.Use(middleware.ProfilingLabels("/swagger"))
	}
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		go rateLimiter.RunCleanup(ctx)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}
	phoneLimiter := middleware.NewRateLimiter(cfg.HTTP.PhoneAuthRateLimitRequests, cfg.HTTP.PhoneAuthRateLimitWindow)
	go phoneLimiter.RunCleanup(ctx)

	if cfg.HTTP.AdminToken == "" {
		log.Warn("http.admin_token is empty, ERP routes are unauthenticated")
	}
	adminAuth := middleware.AdminAuth(middleware.AdminAuthConfig{
		Token:     cfg.HTTP.AdminToken,
		SkipPaths: []string{"/api/v1/erp/oauth/callback"},
		Logger:    log,
	})

	r := router.New(engine, "v1")

	// ERP administration. The OAuth callback is reached by the browser redirect and carries no token.
	erpRoutes := r.Group("erp", "/erp", adminAuth)
	erpRoutes.GET("/oauth/authorize", oauthHandler.Authorize)
	erpRoutes.GET("/oauth/callback", oauthHandler.Callback)
	erpRoutes.POST("/oauth/service-account", oauthHandler.ConnectServiceAccount)
	erpRoutes.POST("/oauth/revoke", oauthHandler.Revoke)
	erpRoutes.GET("/oauth/status", oauthHandler.Status)
	erpRoutes.GET("/settings", settingsHandler.GetSettings)
	erpRoutes.PUT("/settings", settingsHandler.UpdateSettings)
	erpRoutes.GET("/companies", syncHandler.ListCompanies)
	erpRoutes.POST("/sync", syncHandler.SyncAll)
	erpRoutes.GET("/sync/runs", syncHandler.ListRuns)
	erpRoutes.POST("/sync/:family", syncHandler.SyncFamily)

	// Customer phone sign-in is public and rate limited per client
	phoneRoutes := r.Group("auth", "/auth/phone", middleware.PhoneAuthRateLimit(phoneLimiter))
	phoneRoutes.POST("/login", phoneHandler.Login)
	phoneRoutes.GET("/status/:token", phoneHandler.Status)
	phoneRoutes.GET("/wait/:token", phoneHandler.Wait)

	systemHandler := handler.NewSystemHandler(cfg.App.Name, r,
		handler.HealthCheck{Name: "database", Check: db.Ping},
		redisHealthCheck(redisClient),
	)
	systemRoutes := r.Group("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	systemRoutes.GET("/routes", adminAuth, systemHandler.ListRoutes)

	// Outside API versioning
	engine.GET("/health", systemHandler.Health)
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, adminAuth),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// redisHealthCheck pings redis, or reports the in-process fallback as healthy
func redisHealthCheck(client *redis.Client) handler.HealthCheck {
	return handler.HealthCheck{
		Name: "cache",
		Check: func(ctx context.Context) error {
			if client == nil {
				return nil
			}
			return client.Ping(ctx).Err()
		},
	}
}
