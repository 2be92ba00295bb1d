package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtime-service/internal/api/routes"
	"realtime-service/internal/config"
	"realtime-service/internal/database"
	"realtime-service/internal/gateway"
	"realtime-service/internal/services"
	"realtime-service/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting realtime gateway server")

	opts := gateway.Options{
		JWTSecret: cfg.JWT.Secret,
	}

	// Optional collaborators: the gateway runs without them and echoes
	// placeholder state.
	if cfg.Redis.Enabled {
		redisClient, err := database.NewRedisConnection(&cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		opts.Status = services.NewStatusService(redisClient)
		slog.Info("Online-status mirror enabled")
	}

	if cfg.Mongo.Enabled {
		mongoDB, err := store.NewMongoConnection(cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer mongoDB.Close(context.Background())
		opts.MessageStore = store.NewMongoMessageStore(mongoDB)
		opts.NotificationStore = store.NewMongoNotificationStore(mongoDB)
		slog.Info("Durable store collaborators enabled")
	}

	gw := gateway.New(opts)

	router := routes.NewRouter(gw)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gw.Close()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
