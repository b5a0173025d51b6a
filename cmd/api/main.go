package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowcanvas/internal/api/httpserver"
	"flowcanvas/internal/config"
	"flowcanvas/internal/designs"
	"flowcanvas/internal/messaging"
	"flowcanvas/internal/storage/postgres"
	"flowcanvas/pkg/logger"
	"flowcanvas/pkg/metrics"
)

var version = "dev"

func main() {
	log := logger.New("api")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}
	log.SetLevel(cfg.LogLevel)

	metrics.Initialize(&metrics.Config{
		Enabled:   cfg.Metrics.Enabled,
		Path:      cfg.Metrics.Path,
		Host:      cfg.Metrics.Host,
		Port:      cfg.Metrics.Port,
		Namespace: cfg.Metrics.Namespace,
	})

	db, err := postgres.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			log.Fatal("Failed to migrate database", "error", err)
		}
	}

	var events designs.EventPublisher
	var broker httpserver.HealthChecker
	if cfg.Kafka.Enabled {
		producer, err := messaging.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("Failed to create Kafka producer", "error", err)
		}
		defer producer.Close()
		events = producer
		broker = producer
	}

	repo := designs.NewPostgresRepository(db)
	engine := designs.NewDefaultEngine(repo, designs.DefaultRegistry(), cfg.Designer.ExecutionTimeout)
	service := designs.NewService(repo, designs.NewGraphValidator(nil), engine, events, cfg.Designer)

	server := httpserver.New(cfg, service, db, broker, version)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.GetGlobal().Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			log.Info("Metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("API server failed", "error", err)
		}
	case sig := <-stop:
		log.Info("Shutdown signal received", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Error("Metrics server shutdown failed", "error", err)
		}
	}
	log.Info("Shutdown complete")
}
