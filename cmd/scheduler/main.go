package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowcanvas/internal/config"
	"flowcanvas/internal/designs"
	"flowcanvas/internal/storage/postgres"
	"flowcanvas/pkg/logger"
	"flowcanvas/pkg/metrics"

	"github.com/robfig/cron/v3"
)

// The scheduler runs the maintenance jobs: pruning old executions and
// refreshing per-design statistics.
func main() {
	log := logger.New("scheduler")

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

	repo := designs.NewPostgresRepository(db)
	engine := designs.NewDefaultEngine(repo, designs.DefaultRegistry(), cfg.Designer.ExecutionTimeout)
	service := designs.NewService(repo, designs.NewGraphValidator(nil), engine, nil, cfg.Designer)

	c := cron.New()

	_, err = c.AddFunc(cfg.Scheduler.RetentionSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		cutoff := time.Now().Add(-cfg.Scheduler.RetainExecutions)
		deleted, err := repo.DeleteExecutionsBefore(ctx, cutoff)
		if err != nil {
			log.Error("Execution retention sweep failed", "error", err)
			return
		}
		log.Info("Execution retention sweep finished", "deleted", deleted, "cutoff", cutoff)
	})
	if err != nil {
		log.Fatal("Invalid retention schedule", "error", err)
	}

	_, err = c.AddFunc(cfg.Scheduler.StatsRefreshSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		ids, err := repo.ListDesignIDs(ctx)
		if err != nil {
			log.Error("Stats refresh failed to list designs", "error", err)
			return
		}
		refreshed := 0
		for _, id := range ids {
			if err := service.RefreshStatistics(ctx, id); err != nil {
				log.Error("Stats refresh failed", "design_id", id, "error", err)
				continue
			}
			refreshed++
		}
		log.Info("Statistics refreshed", "designs", refreshed)
	})
	if err != nil {
		log.Fatal("Invalid stats refresh schedule", "error", err)
	}

	c.Start()
	log.Info("Scheduler started",
		"retention_schedule", cfg.Scheduler.RetentionSchedule,
		"stats_schedule", cfg.Scheduler.StatsRefreshSchedule,
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info("Shutdown signal received", "signal", sig)

	ctx := c.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Minute):
		log.Warn("Timed out waiting for running jobs")
	}
	log.Info("Scheduler stopped")
}
