package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clearledger/bankrecon-backend/internal/api"
	"github.com/clearledger/bankrecon-backend/internal/application/service"
	"github.com/clearledger/bankrecon-backend/internal/domain/masterdata"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/config"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/logging"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	directory := masterdata.NewCachedDirectory(store, masterdata.CacheConfig{
		MaxEntries: cfg.Matching.CacheMaxEntries,
		TTL:        time.Duration(cfg.Matching.CacheTTLMinutes) * time.Minute,
	})

	services := api.Services{
		Import: service.NewImportService(cfg, store, logger),
		Match:  service.NewMatchService(cfg, store, directory, logger),
		Recon:  service.NewReconService(cfg, store, nil, logger),
	}

	server := api.NewServer(api.Config{
		Port:           cfg.API.Port,
		AllowedOrigins: cfg.API.AllowedOrigins,
	}, store, services, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
