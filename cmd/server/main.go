package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/model-hub/internal/adapters/providers/factory"
	"github.com/nulzo/model-hub/internal/analytics"
	"github.com/nulzo/model-hub/internal/config"
	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/services"
	"github.com/nulzo/model-hub/internal/platform/logger"
	"github.com/nulzo/model-hub/internal/platform/otel"
	"github.com/nulzo/model-hub/internal/server"
	"github.com/nulzo/model-hub/internal/store"
	"github.com/nulzo/model-hub/internal/store/sqlite"

	// Import providers to trigger init() registration
	_ "github.com/nulzo/model-hub/internal/adapters/providers/anthropic"
	_ "github.com/nulzo/model-hub/internal/adapters/providers/google"
	_ "github.com/nulzo/model-hub/internal/adapters/providers/ollama"
	_ "github.com/nulzo/model-hub/internal/adapters/providers/openai"
	_ "github.com/nulzo/model-hub/internal/adapters/providers/xai"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Initialize(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	defer logger.Sync()
	log := logger.Get()

	go checkForUpdates()

	shutdownTracer, err := otel.InitTracer("model-hub", log, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	adapters, err := factory.Defaults(cfg.Providers)
	if err != nil {
		log.Fatal("Failed to build provider adapters", zap.Error(err))
	}
	for p := range adapters {
		log.Info("Registered provider", zap.String("provider", string(p)))
	}

	keyPools := make(map[domain.Provider]*services.KeyPool)
	for _, pc := range cfg.Providers {
		if !pc.Enabled || pc.APIKey == "" {
			continue
		}
		keyPools[pc.ProviderID()] = services.NewKeyPool(pc.ProviderID(), pc.APIKey, pc.APIKeys)
	}

	hub, err := services.NewHub(services.HubConfig{
		Adapters: adapters,
		Factory:  factory.Entitled(cfg.Providers),
		KeyPools: keyPools,
		Registry: services.RegistryOptions{
			ListTTL:    cfg.Registry.ListTTL,
			LearnedTTL: cfg.Registry.LearnedTTL,
			Logger:     log,
		},
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to build hub", zap.Error(err))
	}

	var repo store.Repository
	var ingestor analytics.Ingestor
	if cfg.Database.Enabled {
		repo, err = sqlite.NewSQLiteStorage(cfg.Database.DSN)
		if err != nil {
			log.Fatal("Failed to open database", zap.Error(err))
		}
		defer repo.Close()

		ingestor = analytics.NewIngestor(log, repo)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if ingestor != nil {
		ingestor.Start(ctx)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.New(cfg, log, hub, ingestor, repo).Handler(),
	}

	go func() {
		log.Info("Starting model hub", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
	if ingestor != nil {
		ingestor.Stop()
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("Tracer shutdown failed", zap.Error(err))
	}
}
