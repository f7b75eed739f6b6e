package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kartis/internal/api"
	"kartis/internal/cache"
	"kartis/internal/config"
	"kartis/internal/database"
	"kartis/internal/logger"
	"kartis/internal/messaging"
	"kartis/internal/repository"
	"kartis/internal/search"
	"kartis/internal/service"
	"kartis/internal/token"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// NATS, Elasticsearch and Redis are optional collaborators: the service
	// registers without notifications, search or rate limiting, just worse.
	nats, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		log.Warn("NATS unavailable, notification events disabled", "error", err)
		nats = nil
	} else {
		defer nats.Close()
	}

	searchClient, err := search.NewClient(cfg.Search)
	if err != nil {
		log.Warn("Elasticsearch unavailable, admin search disabled", "error", err)
		searchClient = nil
	}

	limiter, err := cache.NewRateLimiter(cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, rate limiting disabled", "error", err)
		limiter = nil
	} else {
		defer limiter.Close()
	}

	tokens := token.NewManager(cfg.Token)
	repos := repository.NewRepositories(db)
	services := service.NewServices(service.Deps{
		Repos:         repos,
		Tokens:        tokens,
		NATS:          nats,
		Search:        searchClient,
		LateThreshold: cfg.LateThreshold,
	})

	server := api.NewServer(api.Options{
		Port:     cfg.Port,
		GinMode:  cfg.GinMode,
		Services: services,
		Tokens:   tokens,
		Limiter:  limiter,
		DB:       db,
	})

	go func() {
		log.Info("Starting API server", "port", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
}
