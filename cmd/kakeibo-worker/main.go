package main

import (
	"context"
	"os"

	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
	"kakeibo/internal/worker"
)

func main() {
	cfg, logger, err := cli.Bootstrap(log.ComponentWorker)
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting kakeibo-worker",
		"data_backend", cfg.DataBackend,
		"events_backend", cfg.EventsBackend,
		"snapshot_rebuild_interval", cfg.SnapshotRebuildInterval)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	b, err := backend.NewFactory(logger).Worker(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer b.Close()

	procCfg := services.DefaultSnapshotProcessorConfig()
	procCfg.RebuildInterval = cfg.SnapshotRebuildInterval
	proc := services.NewSnapshotProcessor(b.Store, b.Exporter, procCfg, logger)

	w := worker.NewSnapshotWorker(b.Consumer, proc, logger)
	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		b.Close()
		os.Exit(1)
	}

	stats := w.Stats()
	logger.Info("Worker shutdown complete", "processed", stats.Processed, "failed", stats.Failed)
}
