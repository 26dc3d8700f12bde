package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/GTDGit/smsinterview/internal/cache"
	"github.com/GTDGit/smsinterview/internal/config"
	"github.com/GTDGit/smsinterview/internal/conversation"
	"github.com/GTDGit/smsinterview/internal/database"
	"github.com/GTDGit/smsinterview/internal/gazetteer"
	"github.com/GTDGit/smsinterview/internal/handler"
	"github.com/GTDGit/smsinterview/internal/middleware"
	"github.com/GTDGit/smsinterview/internal/period"
	"github.com/GTDGit/smsinterview/internal/repository"
	"github.com/GTDGit/smsinterview/internal/service"
	"github.com/GTDGit/smsinterview/internal/worker"
	"github.com/GTDGit/smsinterview/pkg/crisismap"
)

const surveyCacheTTL = time.Minute

// main is the application entrypoint for the SMS interview service.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("session_backend", cfg.Session.Backend).Msg("starting sms interview")

	clock, err := period.NewClock(cfg.Reporting.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REPORT_TIMEZONE")
	}

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := database.Migrate(db.DB, database.DefaultMigrationsURL); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	healthChecks := map[string]handler.HealthCheck{"database": db.PingContext}

	// 3b. Connect to Redis when sessions live there
	var redisClient *cache.RedisClient
	if cfg.Session.Backend == config.SessionBackendRedis {
		redisClient, err = cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Error().Err(err).Msg("redis connection failed")
			fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		healthChecks["redis"] = redisClient.Ping
		log.Info().Msg("redis connected successfully")
	}

	// 4. Initialize repositories
	locationRepo := repository.NewLocationRepository(db)
	surveyRepo := repository.NewSurveyRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)

	// 5. Import reference data files, then load the gazetteer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	importSvc := service.NewImportService(locationRepo, surveyRepo)
	if path := cfg.Reporting.LocationsFile; path != "" {
		if _, err := importSvc.ImportLocations(ctx, path); err != nil {
			log.Fatal().Err(err).Msg("failed to import locations")
		}
	}
	if path := cfg.Reporting.SurveysFile; path != "" {
		if _, err := importSvc.ImportSurveys(ctx, path); err != nil {
			log.Fatal().Err(err).Msg("failed to import surveys")
		}
	}

	places := gazetteer.New(nil)
	reloadWorker := worker.NewReloadWorker(locationRepo, places, cfg.Worker.ReloadInterval)
	if _, err := reloadWorker.Reload(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load gazetteer")
	}
	if places.Len() == 0 {
		log.Warn().Msg("gazetteer is empty - registrations will not resolve until locations are imported")
	}
	log.Info().Int("locations", places.Len()).Msg("gazetteer loaded")

	// 6. Initialize services
	surveySvc := service.NewSurveyService(surveyRepo, surveyCacheTTL)
	reportSvc := service.NewReportService(reportRepo, surveySvc, places, cfg.CrisisMap.SourceURL)
	crisisClient := crisismap.NewClient(cfg.CrisisMap.BaseURL, cfg.CrisisMap.Timeout)
	deliverySvc := service.NewDeliveryService(deliveryRepo, surveySvc, crisisClient, cfg.Worker.DeliveryBatch)
	adminAuthSvc := service.NewAdminAuthService(adminRepo, cfg.JWTSecret)

	// 7. Initialize conversation engine
	sessions, locker := sessionBackend(cfg, db, redisClient)
	engine := conversation.NewEngine(conversation.Deps{
		Sessions:      sessions,
		Registrations: registrationRepo,
		Surveys:       surveySvc,
		Places:        places,
		Sink:          reportSvc,
		Locker:        locker,
		Clock:         clock,
	})

	// 8. Initialize handlers
	handlers := &Handlers{
		Health: handler.NewHealthHandler(healthChecks),
		SurveyHook: handler.NewSurveyHookHandler(engine, handler.HookOptions{
			TwilioAuthToken: cfg.Twilio.AuthToken,
			PublicBaseURL:   cfg.Twilio.PublicBaseURL,
			TelerivetSecret: cfg.Telerivet.WebhookSecret,
		}),
		Auth: handler.NewAuthHandler(adminAuthSvc),
		Admin: handler.NewAdminHandler(handler.AdminDeps{
			Surveys:       surveySvc,
			Reports:       reportRepo,
			Registrations: registrationRepo,
			Sessions:      sessions,
			Places:        places,
		}),
	}

	// 9. Initialize middleware
	jwtMw := middleware.NewJWTMiddleware(cfg.JWTSecret)
	inboundLimiter := middleware.NewRateLimiter(cfg.InboundRateLimit, time.Minute)

	// 10. Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, jwtMw, inboundLimiter)

	// 11. Start workers
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.NewDeliveryWorker(deliverySvc, cfg.Worker.DeliveryInterval).Start(gctx)
		return nil
	})
	g.Go(func() error {
		reloadWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		inboundLimiter.Cleanup(gctx, time.Minute)
		return nil
	})

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Shutdown HTTP server with timeout so in-flight turns finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// 15. Cancel context to stop workers
	cancel()
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker exited with error")
	}
	log.Info().Msg("Server exited")
}

// sessionBackend picks the session store and turn lock for the configured
// backend. Redis and Postgres serialize turns across instances; memory only
// within this process.
func sessionBackend(cfg *config.Config, db *sqlx.DB, redisClient *cache.RedisClient) (conversation.SessionStore, conversation.Locker) {
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		return cache.NewSessionCache(redisClient, cfg.Session.TTL), cache.NewSessionLock(redisClient, cfg.Session.LockTTL, cfg.Session.LockWait)
	case config.SessionBackendPostgres:
		repo := repository.NewSessionRepository(db, cfg.Session.LockWait)
		return repo, repo
	default:
		log.Warn().Msg("sessions are kept in memory and lost on restart")
		return conversation.NewMemorySessionStore(), conversation.NewKeyedMutex()
	}
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health     *handler.HealthHandler
	SurveyHook *handler.SurveyHookHandler
	Auth       *handler.AuthHandler
	Admin      *handler.AdminHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware, limiter *middleware.RateLimiter) {
	// SMS gateway webhooks
	surveys := router.Group("/surveys")
	surveys.Use(middleware.InboundRateLimit(limiter))
	{
		surveys.POST("/:id", handlers.SurveyHook.HandleAuto)
		surveys.POST("/:id/telerivet", handlers.SurveyHook.HandleTelerivet)
		surveys.POST("/:id/twilio", handlers.SurveyHook.HandleTwilio)
	}

	router.GET("/v1/health", handlers.Health.GetHealth)

	// Admin routes
	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", handlers.Auth.Login)
	admin.Use(jwtMiddleware.Handle())
	{
		admin.GET("/surveys", handlers.Admin.ListSurveys)
		admin.GET("/surveys/:id/reports", handlers.Admin.ListReports)
		admin.GET("/registrations/:phone", handlers.Admin.GetRegistration)
	}
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
