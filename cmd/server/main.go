package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ladder-league/internal/config"
	"ladder-league/internal/db"
	"ladder-league/internal/lock"
	"ladder-league/internal/logging"
	"ladder-league/internal/puzzle"
	"ladder-league/internal/server"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	dotenvErr := config.LoadDotEnv(".env")
	cfg := config.Load()
	logger := logging.MustNew(cfg.LogLevel, cfg.LogFormat, "ladder-league")
	defer func() { _ = logger.Sync() }()
	if dotenvErr != nil {
		logger.Warn("failed to load .env", zap.Error(dotenvErr))
	}

	var conn *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		conn, err = db.Open(cfg)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		if err := db.Migrate(conn, logger); err != nil {
			logger.Fatal("database migration failed", zap.Error(err))
		}
	} else {
		logger.Warn("DATABASE_URL is not set; rooms are kept in memory")
	}

	lib, report, err := puzzle.LoadDir(cfg.PuzzleDir, logger.Named("puzzles"))
	if err != nil {
		logger.Fatal("puzzle library failed to load", zap.Error(err))
	}
	if report.Loaded == 0 {
		logger.Warn("puzzle library is empty; rounds cannot start", zap.String("dir", cfg.PuzzleDir))
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithPuzzles(lib),
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := lock.Ping(pingCtx, client)
		cancel()
		if err != nil {
			logger.Fatal("redis unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
		opts = append(opts, server.WithLocker(lock.NewRedis(client, ttl, logger.Named("lock"))))
		logger.Info("using redis room locks", zap.String("addr", cfg.RedisAddr))
	}

	srv := server.New(conn, cfg, opts...)
	defer srv.Close()

	restored, err := srv.RestoreTimers(context.Background())
	if err != nil {
		logger.Error("failed to restore round timers", zap.Error(err))
	} else if restored > 0 {
		logger.Info("round timers restored", zap.Int("rounds", restored))
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("ladder-league server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
