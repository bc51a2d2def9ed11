package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/absher-demo/portal-server-go/internal/config"
	"github.com/absher-demo/portal-server-go/internal/database"
	"github.com/absher-demo/portal-server-go/internal/gateway"
	"github.com/absher-demo/portal-server-go/internal/handler"
	"github.com/absher-demo/portal-server-go/internal/jobs"
	"github.com/absher-demo/portal-server-go/internal/middleware"
	"github.com/absher-demo/portal-server-go/internal/redis"
	"github.com/absher-demo/portal-server-go/internal/repository"
	"github.com/absher-demo/portal-server-go/internal/service"
	"github.com/absher-demo/portal-server-go/internal/sse"
	"github.com/absher-demo/portal-server-go/internal/voice"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	backend := gateway.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout())

	sessionRepo := repository.NewSessionRepository(db.DB)
	transcriptRepo := repository.NewTranscriptRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	recorders := voice.NewRegistry()
	player := voice.NewPlayer()

	workflow := service.NewActionWorkflow(backend)
	transcriptService := service.NewTranscriptService(transcriptRepo)
	chatService := service.NewChatService(backend, transcriptService, workflow)
	notificationService := service.NewNotificationService(backend, broker)
	speechService := service.NewSpeechService(backend, transcriptService, redisClient, player, cfg.SpeechCacheTTL())
	captureService := service.NewVoiceCaptureService(recorders, backend)
	sessionService := service.NewSessionService(
		sessionRepo, transcriptRepo, db, backend,
		recorders, player, workflow, cfg.SessionSecret, cfg.SessionTTL(),
	)

	sessionMiddleware := middleware.NewSessionMiddleware(sessionService)
	loginLimiter := middleware.NewLoginRateLimiter()
	rateLimiter := service.NewRateLimiter(redisClient.Client)
	proactiveLimit := middleware.NewIPRateLimitMiddleware(rateLimiter, 5, time.Minute, "proactive")
	chatRateLimit := middleware.NewSessionRateLimitMiddleware(rateLimiter, cfg.ChatRateLimitPerMin)

	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxUploadSize)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	authHandler := handler.NewAuthHandler(sessionService, sessionMiddleware, loginLimiter, isProduction)
	chatHandler := handler.NewChatHandler(chatService, transcriptService, chatRateLimit)
	actionHandler := handler.NewActionHandler(workflow)
	notificationsHandler := handler.NewNotificationsHandler(notificationService, proactiveLimit)
	voiceHandler := handler.NewVoiceHandler(captureService, chatService, speechService)
	eventsHandler := handler.NewEventsHandler(broker)
	healthHandler := handler.NewHealthHandler(db, redisClient, backend)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(csrfMiddleware.Handler)

		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware.Handler)

			r.Mount("/chat", chatHandler.Routes())
			r.Mount("/action", actionHandler.Routes())
			r.Mount("/notifications", notificationsHandler.Routes())
			r.Mount("/voice", voiceHandler.Routes())
			r.Get("/events", eventsHandler.ServeHTTP)
		})
	})

	r.Get("/*", handler.StaticFileServer(cfg.StaticDir, "").ServeHTTP)

	cleanupJob := jobs.NewCleanupJob(sessionRepo, transcriptRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
