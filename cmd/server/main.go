package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anoa.com/lazylegends/internal/bootstrap"
	"anoa.com/lazylegends/internal/config"
	"anoa.com/lazylegends/internal/server"
	"anoa.com/lazylegends/pkg/database"
	"anoa.com/lazylegends/pkg/logger"
	"anoa.com/lazylegends/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validator.RegisterCustomValidations(); err != nil {
		logger.Fatal("Failed to register validators: ", err)
	}

	db, err := database.Connect(cfg.Database.DSN(), cfg.AppEnv == "development")
	if err != nil {
		logger.Fatal(err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.WithError(err).Error("Failed to close database")
		}
	}()

	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Migration failed: ", err)
	}
	if err := bootstrap.SeedDefaults(db, time.Now()); err != nil {
		logger.Fatal("Failed to seed defaults: ", err)
	}

	redisClient := connectRedis(cfg.RedisURL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	srv, err := server.NewServer(cfg, db, redisClient)
	if err != nil {
		logger.Fatal("Failed to build server: ", err)
	}

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatal("Server failed: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}

	logger.Info("Server stopped")
}

// connectRedis returns nil when REDIS_URL is unset or unreachable.
func connectRedis(url string) *redis.Client {
	if url == "" {
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.WithError(err).Error("Invalid REDIS_URL, continuing without redis")
		return nil
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Error("Redis unreachable, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info("Connected to redis")
	return client
}
