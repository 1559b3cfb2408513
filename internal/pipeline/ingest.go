package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
	"github.com/couchcryptid/flood-mesh-etl/internal/observability"
)

// MeshSource loads model output datasets from a directory.
type MeshSource interface {
	ReadMap(ctx context.Context, dir string) (domain.MapDataset, error)
	ReadHistory(ctx context.Context, dir string) (domain.HistoryDataset, error)
}

// ModelRunner runs the external model that writes the output files.
type ModelRunner interface {
	Run(ctx context.Context, dir string, args []string) error
}

// CacheInvalidator drops cached query results of a project.
type CacheInvalidator interface {
	InvalidateProject(projectID int64)
}

// ProjectGetter resolves a project by id.
type ProjectGetter interface {
	GetProject(ctx context.Context, id int64) (domain.Project, error)
}

// IngesterConfig holds the defaults applied to requests that leave them unset.
type IngesterConfig struct {
	OutputDir     string
	MinWaterDepth float64
}

// Ingester runs one ingestion pass per request.
type Ingester struct {
	projects    ProjectGetter
	source      MeshSource
	runner      ModelRunner
	grid        *GridExtractor
	stations    *StationExtractor
	invalidator CacheInvalidator
	cfg         IngesterConfig
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewIngester wires an Ingester. runner and invalidator may be nil: requests
// asking for a model run are then rejected, and no cache is invalidated.
func NewIngester(
	projects ProjectGetter,
	source MeshSource,
	writer domain.RecordWriter,
	runner ModelRunner,
	invalidator CacheInvalidator,
	cfg IngesterConfig,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Ingester {
	return &Ingester{
		projects:    projects,
		source:      source,
		runner:      runner,
		grid:        NewGridExtractor(writer, logger, metrics),
		stations:    NewStationExtractor(writer, logger, metrics),
		invalidator: invalidator,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
	}
}

// Ingest resolves the project, optionally runs the model, then loads and
// persists the requested layers from the output directory.
func (i *Ingester) Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestSummary, error) {
	if err := req.Validate(); err != nil {
		return domain.IngestSummary{}, err
	}
	dir, err := i.resolveDir(req.Dir)
	if err != nil {
		return domain.IngestSummary{}, err
	}

	summary := domain.IngestSummary{
		RunID:     uuid.NewString(),
		ProjectID: req.ProjectID,
		StartedAt: domain.Now(),
	}
	logger := i.logger.With("run_id", summary.RunID, "project_id", req.ProjectID)
	start := time.Now()

	project, err := i.projects.GetProject(ctx, req.ProjectID)
	if err != nil {
		return summary, err
	}
	first, err := project.Type.FirstPersistedTimestep()
	if err != nil {
		return summary, err
	}

	minDepth := i.cfg.MinWaterDepth
	if req.MinWaterDepth != nil {
		minDepth = *req.MinWaterDepth
	}

	if req.RunModel {
		if i.runner == nil {
			return summary, fmt.Errorf("%w: model runs are not enabled", domain.ErrInvalidRequest)
		}
		if err := i.runner.Run(ctx, dir, req.ModelArgs); err != nil {
			return summary, err
		}
	}

	logger.Info("ingestion started", "dir", dir, "min_water_depth", minDepth, "first_timestep", first)

	// Invalidate even on failure: a pass that fails midway may have written rows.
	defer func() {
		if i.invalidator != nil {
			i.invalidator.InvalidateProject(req.ProjectID)
		}
	}()

	if req.Wants(domain.LayerGrid) {
		ds, err := i.source.ReadMap(ctx, dir)
		if err != nil {
			return summary, fmt.Errorf("load map dataset: %w", err)
		}
		stats, err := i.grid.Extract(ctx, project.ID, first, minDepth, ds)
		if err != nil {
			return summary, fmt.Errorf("extract grid: %w", err)
		}
		summary.GridInserted = stats.Inserted
		summary.GridDuplicates = stats.Duplicates
		summary.FacesBelowThreshold = stats.BelowThreshold
		summary.FacesUnsupported = stats.Unsupported
		summary.TimestepsProcessed = stats.Timesteps
		summary.TimestepsSkipped = stats.Skipped
	}

	if req.Wants(domain.LayerStations) {
		ds, err := i.source.ReadHistory(ctx, dir)
		if err != nil {
			return summary, fmt.Errorf("load history dataset: %w", err)
		}
		stats, err := i.stations.Extract(ctx, project.ID, first, ds)
		if err != nil {
			return summary, fmt.Errorf("extract stations: %w", err)
		}
		summary.StationInserted = stats.Inserted
		summary.StationDuplicates = stats.Duplicates
		if !req.Wants(domain.LayerGrid) {
			summary.TimestepsProcessed = stats.Timesteps
			summary.TimestepsSkipped = stats.Skipped
		}
	}

	summary.FinishedAt = domain.Now()
	i.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	logger.Info("ingestion finished",
		"grid_inserted", summary.GridInserted,
		"grid_duplicates", summary.GridDuplicates,
		"station_inserted", summary.StationInserted,
		"station_duplicates", summary.StationDuplicates,
		"duration", time.Since(start),
	)
	return summary, nil
}

// resolveDir confines a requested output directory to the configured root.
// Relative paths are taken from the root and an empty path is the root itself.
func (i *Ingester) resolveDir(dir string) (string, error) {
	root := filepath.Clean(i.cfg.OutputDir)
	if dir == "" {
		return root, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: directory %q is outside the output root", domain.ErrInvalidRequest, dir)
	}
	return dir, nil
}
