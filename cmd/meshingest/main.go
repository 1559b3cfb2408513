// Command meshingest runs one ingestion pass over a local model output
// directory and prints the summary as JSON.
//
// Usage:
//
//	go run ./cmd/meshingest \
//	  -project 3 \
//	  -dir storage/output \
//	  -min-depth 0.05 \
//	  -layers grid,stations
//
// Pass -create-name instead of -project to create a new project first.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/couchcryptid/flood-mesh-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/flood-mesh-etl/internal/adapter/store"
	"github.com/couchcryptid/flood-mesh-etl/internal/config"
	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
	"github.com/couchcryptid/flood-mesh-etl/internal/observability"
	"github.com/couchcryptid/flood-mesh-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	projectID := flag.Int64("project", 0, "id of the project to ingest into")
	dir := flag.String("dir", cfg.MeshOutputDir, "model output directory")
	minDepth := flag.Float64("min-depth", cfg.MinWaterDepth, "water depth threshold; faces at or below it are skipped")
	layers := flag.String("layers", "", "comma separated layers to ingest (grid, stations); empty means all")
	driver := flag.String("db-driver", cfg.DBDriver, "database driver (sqlite or postgres)")
	dsn := flag.String("db-dsn", cfg.DSN(), "database DSN or sqlite path")
	createName := flag.String("create-name", "", "create a project with this name and ingest into it")
	createType := flag.Int("create-type", int(domain.ProjectPrecomputed), "type of the created project (0 precomputed, 1 real-time)")
	flag.Parse()

	if *projectID == 0 && *createName == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -project or -create-name")
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	db, err := store.Open(*driver, *dsn, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *createName != "" {
		p, err := db.CreateProject(ctx, domain.Project{Name: *createName, Type: domain.ProjectType(*createType)})
		if err != nil {
			return err
		}
		*projectID = p.ID
		logger.Info("project created", "project_id", p.ID, "name", p.Name)
	}

	req := domain.IngestRequest{
		ProjectID:     *projectID,
		MinWaterDepth: minDepth,
	}
	for _, l := range strings.Split(*layers, ",") {
		if l = strings.TrimSpace(l); l != "" {
			req.Layers = append(req.Layers, l)
		}
	}

	reader := netcdf.NewReader(netcdf.Layout{
		MapSuffix:            cfg.MapFileSuffix,
		ClassificationSuffix: cfg.ClassificationFileSuffix,
		HistorySuffix:        cfg.HistoryFileSuffix,
	}, logger)
	ingester := pipeline.NewIngester(db, reader, db, nil, nil, pipeline.IngesterConfig{
		OutputDir:     *dir,
		MinWaterDepth: cfg.MinWaterDepth,
	}, logger, metrics)

	summary, err := ingester.Ingest(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
