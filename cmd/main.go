package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"konferans/backend/internal/api/handler"
	"konferans/backend/internal/config"
	"konferans/backend/internal/rooms"
	"konferans/backend/internal/signaling"
	"konferans/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newLogger(cfg config.Config) zerolog.Logger {
	var l zerolog.Logger
	if cfg.LogPretty {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		l = zerolog.New(os.Stdout)
	}
	return l.Level(cfg.LogLevel).With().Timestamp().Logger()
}

// setupStore builds the Room Store: Redis with the in-process store as
// fallback, or the in-process store alone when Redis is not configured or
// unreachable at startup.
func setupStore(ctx context.Context, cfg config.Config, memory *storage.MemoryStore, l zerolog.Logger) (storage.Storage, *redis.Client) {
	if cfg.RedisAddr == "" {
		l.Warn().Msg("REDIS_ADDR not set, rooms are kept in process memory")
		return memory, nil
	}

	rdb, err := storage.OpenRedis(ctx, cfg)
	if err != nil {
		l.Warn().Err(err).Msg("Redis unavailable, rooms are kept in process memory")
		return memory, nil
	}

	l.Info().Str("addr", cfg.RedisAddr).Msg("Redis connection established")
	primary := storage.NewRedisStore(rdb, cfg.RoomKeyPrefix, nil)
	return storage.NewFallbackStore(primary, memory, l), rdb
}

// setupHistory wraps store with Postgres session history when DATABASE_DSN is set.
func setupHistory(cfg config.Config, store storage.Storage, l zerolog.Logger) storage.Storage {
	if cfg.DatabaseDSN == "" {
		return store
	}

	db, err := storage.OpenPostgres(cfg.DatabaseDSN)
	if err != nil {
		l.Warn().Err(err).Msg("Session history disabled")
		return store
	}
	history, err := storage.NewPostgresHistory(db)
	if err != nil {
		l.Warn().Err(err).Msg("Session history disabled")
		return store
	}

	l.Info().Msg("Session history enabled, migrations complete")
	return storage.WithHistory(store, history, nil, l)
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Warn().Err(err).Msg("No .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	l := newLogger(cfg)
	l.Info().Msg("Starting Konferans signaling relay...")
	if cfg.UsesDevSecret() {
		l.Warn().Msg("OWNER_TOKEN_SECRET not set, using the development secret")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 1. Room Store
	memory := storage.NewMemoryStore(nil)
	go memory.RunJanitor(ctx, config.MemorySweepPeriod, l.With().Str("component", "janitor").Logger())

	store, rdb := setupStore(ctx, cfg, memory, l)
	if rdb != nil {
		defer rdb.Close()
	}
	store = setupHistory(cfg, store, l)

	// 2. Relay and connection manager
	relay := signaling.NewRelay(store, signaling.NewGroups(l), nil, l)
	manager := signaling.NewManager(l)
	go manager.Run()

	// 3. HTTP
	if cfg.LogLevel > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	h := handler.NewHandler(rooms.NewService(store, nil), relay, manager, cfg.OwnerTokenSecret, l)
	h.AllowedOrigins = cfg.AllowedOrigins
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		l.Info().Str("addr", cfg.HTTPAddr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	manager.Stop()
	stop()
	l.Info().Msg("Server exited")
}
