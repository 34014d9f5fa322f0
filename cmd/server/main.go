// Package main starts the AGRI search client runtime.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agri-search-go/internal/command"
	"agri-search-go/internal/config"
	"agri-search-go/internal/handler"
	"agri-search-go/internal/repository"
	"agri-search-go/internal/service"
	"agri-search-go/pkg/catalog"
	"agri-search-go/pkg/converter"
	"agri-search-go/pkg/database"
	"agri-search-go/pkg/download"
	"agri-search-go/pkg/kafka"
	"agri-search-go/pkg/log"
	"agri-search-go/pkg/proxy"
	"agri-search-go/pkg/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. config
	configPath := os.Getenv("AGRI_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. logger
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath, log.Rotation{
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	defer log.Sync()
	log.Info("Logger initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. session store
	sessionRepo, err := newSessionRepository(cfg)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}

	// 4. save sink
	sink, err := newSink(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open download sink: %v", err)
	}

	journal := kafka.NewJournal(cfg.Kafka)
	defer func() {
		if err := journal.Close(); err != nil {
			log.Warnf("Failed to close action journal: %v", err)
		}
	}()

	// 5. services
	sessionService, err := service.NewSessionService(ctx, sessionRepo, proxy.NewClient(cfg.Proxy, nil), cfg.Proxy.Debug)
	if err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}
	catalogService := service.NewCatalogService(catalog.NewClient(cfg.Catalog, nil))
	dispatcher := service.NewDispatcher(
		download.NewFetcher(cfg.Download.AllowedHosts),
		converter.NewClient(cfg.Converter, nil),
		sink,
		journal,
		cfg.Converter.ReportSuffix,
	)

	// the listing is fetched once at start, like a page load
	catalogService.Reload(ctx)

	bus := command.NewBus(sessionService, catalogService, dispatcher)

	// 6. router
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(bus, sessionService, dispatcher)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	// in-flight turns and actions are abandoned, as on a page reload
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown failed: %v", err)
	}
	log.Info("Server stopped")
}

func newSessionRepository(cfg config.Config) (repository.SessionRepository, error) {
	switch cfg.Session.Store {
	case "redis":
		if err := database.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			return nil, err
		}
		return repository.NewRedisSessionRepository(database.RDB, cfg.Session.KeyPrefix), nil
	case "memory":
		log.Warnf("Session store is in memory, session and instruction are lost on exit")
		return repository.NewMemorySessionRepository(), nil
	default:
		log.Infof("Session store file %s", cfg.Session.FilePath)
		return repository.NewFileSessionRepository(cfg.Session.FilePath), nil
	}
}

func newSink(ctx context.Context, cfg config.Config) (storage.Sink, error) {
	if cfg.Download.Sink == "minio" {
		return storage.NewMinIOSink(ctx, cfg.MinIO)
	}
	log.Infof("Saving documents to %s", cfg.Download.Dir)
	return storage.NewLocalSink(cfg.Download.Dir)
}
