package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"support-chat/internal/config"
	"support-chat/internal/db"
	"support-chat/internal/handlers"
	"support-chat/internal/identity"
	"support-chat/internal/middleware"
	"support-chat/internal/observability"
	"support-chat/internal/rabbitmq"
	"support-chat/internal/repositories"
	"support-chat/internal/support"
	"support-chat/internal/telemetry"
	"support-chat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		gin.SetMode(gin.ReleaseMode)
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Str("service", cfg.ServiceName).
			Logger()
	}
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup failed")
	}

	var (
		chats    repositories.ChatRepository
		messages repositories.MessageRepository
		users    repositories.UserRepository
		pinger   handlers.Pinger
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := repositories.NewMemoryStore()
		chats, messages, users = store, store, store
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	default:
		database, err := db.Connect(ctx, cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer database.Close()
		chats = repositories.NewChatRepo(database)
		messages = repositories.NewMessageRepo(database)
		users = repositories.NewUserRepo(database)
		pinger = database
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Env)
	logger.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")

	hub := ws.NewHub(logger)
	var limiter middleware.Limiter = middleware.NewLocalLimiter(cfg.VisitorRateLimit, cfg.VisitorRateWindow)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}

		relay := ws.NewRedisRelay(rdb, cfg.ServiceName+":ws", hub, logger)
		hub.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("websocket relay stopped")
			}
		}()
		limiter = middleware.NewRedisLimiter(rdb, cfg.VisitorRateLimit, cfg.VisitorRateWindow)
		logger.Info().Msg("connected to Redis")
	}

	service := support.NewService(chats, messages,
		support.WithNotifier(hub),
		support.WithLogger(logger.With().Str("component", "support").Logger()),
	)

	router, err := newRouter(routerDeps{
		serviceName:    cfg.ServiceName,
		logger:         logger,
		service:        service,
		hub:            hub,
		admins:         identity.NewAdminResolver(cfg.JWTSecret, cfg.JWTIssuer, users, cfg.AdminCacheTTL),
		limiter:        limiter,
		audit:          audit,
		store:          pinger,
		allowedOrigins: cfg.CORSAllowedOrigins,
		trustedProxies: cfg.TrustedProxies,
		debugRoutes:    cfg.DebugRoutes,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("store", cfg.StoreDriver).
			Msg("starting support chat server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
