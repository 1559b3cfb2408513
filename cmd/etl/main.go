package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/flood-mesh-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/flood-mesh-etl/internal/adapter/kafka"
	"github.com/couchcryptid/flood-mesh-etl/internal/adapter/model"
	"github.com/couchcryptid/flood-mesh-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/flood-mesh-etl/internal/adapter/store"
	"github.com/couchcryptid/flood-mesh-etl/internal/config"
	"github.com/couchcryptid/flood-mesh-etl/internal/observability"
	"github.com/couchcryptid/flood-mesh-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	db, err := store.Open(cfg.DBDriver, cfg.DSN(), logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	records := store.NewCachedQuerier(db, cfg.QueryCacheSize, cfg.QueryCacheTTL, metrics.QueryCache)
	reader := netcdf.NewReader(netcdf.Layout{
		MapSuffix:            cfg.MapFileSuffix,
		ClassificationSuffix: cfg.ClassificationFileSuffix,
		HistorySuffix:        cfg.HistoryFileSuffix,
	}, logger)

	// Model runs are feature-flagged via MODEL_SCRIPT.
	var runner pipeline.ModelRunner
	if cfg.ModelScript != "" {
		runner = model.NewRunner(cfg.ModelScript, logger)
		logger.Info("model runs enabled", "script", cfg.ModelScript)
	} else {
		logger.Info("model runs disabled")
	}

	ingester := pipeline.NewIngester(db, reader, db, runner, records, pipeline.IngesterConfig{
		OutputDir:     cfg.MeshOutputDir,
		MinWaterDepth: cfg.MinWaterDepth,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ready readinessGroup = []checker{db}
	var kafkaReader *kafkaadapter.Reader
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaReader = kafkaadapter.NewReader(cfg, logger)
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		p := pipeline.New(kafkaReader, ingester, kafkaWriter, logger, metrics)
		ready = append(ready, p, kafkaReader)

		// Start ingest pipeline.
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka trigger disabled")
	}

	api := httpadapter.NewAPI(db, records, ingester, records, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, api, ready, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaReader != nil {
		if err := kafkaReader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("shutdown complete")
}

type checker interface {
	CheckReadiness(ctx context.Context) error
}

// readinessGroup is ready when every member is.
type readinessGroup []checker

func (g readinessGroup) CheckReadiness(ctx context.Context) error {
	for _, c := range g {
		if err := c.CheckReadiness(ctx); err != nil {
			return fmt.Errorf("not ready: %w", err)
		}
	}
	return nil
}
