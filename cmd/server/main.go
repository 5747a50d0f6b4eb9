package main

import (
	"ai-chat/internal/api"
	"ai-chat/internal/app"
	"ai-chat/internal/config"
	"ai-chat/internal/conversation"
	"ai-chat/internal/infra/redis"
	"ai-chat/internal/logger"
	"ai-chat/internal/metrics"
	"ai-chat/internal/repository/db"
	"ai-chat/internal/repository/postgres"
	"ai-chat/internal/repository/sqlite"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Log.Debug("No .env file found, using process environment")
	}

	appConfig, err := config.LoadConfig()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load configuration")
	}

	metrics.MustRegister()

	store, err := openStore(appConfig.Database)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	ctx := context.Background()
	if err := db.SeedDemoUser(ctx, store); err != nil {
		logger.Log.WithError(err).Fatal("Failed to seed demo user")
	}

	var guard conversation.StreamGuard
	if appConfig.Redis.URL != "" {
		client, err := redis.NewClient(ctx, &appConfig.Redis)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to redis")
		}
		defer client.Close()
		guard = redis.NewStreamLocker(client, appConfig.Redis.LockTTL)
		logger.Log.WithField("addr", appConfig.Redis.URL).Info("Using redis stream lock")
	}

	cfg := app.NewConfig(store, appConfig, nil, guard)

	srv := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           api.NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		logger.Log.WithFields(logrus.Fields{
			"port":      appConfig.Server.Port,
			"db_driver": appConfig.Database.Driver,
			"models":    len(cfg.Registry.Catalog()),
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("Server failed to start")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server shutdown failed")
	}
	logger.Log.Info("Server stopped")
}

func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	if cfg.Driver == "sqlite" {
		logger.Log.WithField("path", cfg.SQLitePath).Info("Opening SQLite database")
		return sqlite.Open(cfg.SQLitePath)
	}

	pg, err := postgres.NewPostgresDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := pg.RunMigrations(cfg.MigrationsPath); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
