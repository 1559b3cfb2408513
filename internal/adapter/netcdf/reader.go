// Package netcdf reads hydrodynamic model output files: the map file (mesh
// geometry and per-face water depth), the classification file (per-face risk)
// and the history file (per-station series).
package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	cdf "github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

// Variable names in the model output.
const (
	VarNodeX      = "mesh2d_node_x"
	VarNodeY      = "mesh2d_node_y"
	VarFaceNodes  = "mesh2d_face_nodes"
	VarTime       = "time"
	VarWaterDepth = "mesh2d_waterdepth"

	VarStationX        = "station_x_coordinate"
	VarStationY        = "station_y_coordinate"
	VarStationName     = "station_name"
	VarStationDepth    = "waterdepth"
	VarStationLevel    = "waterlevel"
	VarStationVelocity = "velocity_magnitude"
)

// DefaultFaceFill is used when the connectivity variable has no _FillValue.
const DefaultFaceFill = -999

// Layout names the file suffixes that identify each output file in a directory.
type Layout struct {
	MapSuffix            string
	ClassificationSuffix string
	HistorySuffix        string
}

// DefaultLayout matches the file names written by the flood model.
var DefaultLayout = Layout{
	MapSuffix:            "_map.nc",
	ClassificationSuffix: "_clm.nc",
	HistorySuffix:        "_his.nc",
}

// Reader locates and decodes the output files of one model run.
type Reader struct {
	layout Layout
	logger *slog.Logger
}

// NewReader creates a Reader for the given file layout.
func NewReader(layout Layout, logger *slog.Logger) *Reader {
	return &Reader{layout: layout, logger: logger}
}

// FindFile returns the lexically first file in dir whose name ends with suffix.
func FindFile(dir, suffix string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+suffix))
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", suffix, err)
	}
	if len(matches) == 0 {
		return "", &domain.FileNotFoundError{Dir: dir, Pattern: suffix}
	}
	sort.Strings(matches)
	return matches[0], nil
}

// ReadMap opens the map and classification files of dir concurrently and
// joins them into one dataset.
func (r *Reader) ReadMap(ctx context.Context, dir string) (domain.MapDataset, error) {
	mapPath, err := FindFile(dir, r.layout.MapSuffix)
	if err != nil {
		return domain.MapDataset{}, err
	}
	clmPath, err := FindFile(dir, r.layout.ClassificationSuffix)
	if err != nil {
		return domain.MapDataset{}, err
	}

	var (
		mesh mapFile
		risk [][]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return withFile(gctx, mapPath, func(src source) error {
			var err error
			mesh, err = decodeMapFile(src)
			return err
		})
	})
	g.Go(func() error {
		return withFile(gctx, clmPath, func(src source) error {
			var err error
			risk, err = decodeRisk(src)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return domain.MapDataset{}, err
	}

	ds := domain.MapDataset{
		Mesh:       mesh.mesh,
		Time:       mesh.time,
		WaterDepth: mesh.depth,
		Risk:       risk,
	}
	if err := ds.Validate(); err != nil {
		return domain.MapDataset{}, err
	}

	r.logger.Debug("map dataset loaded",
		"map_file", filepath.Base(mapPath),
		"classification_file", filepath.Base(clmPath),
		"nodes", len(ds.Mesh.NodeLon),
		"faces", ds.Mesh.Faces(),
		"timesteps", ds.Time.Len(),
	)
	return ds, nil
}

// ReadHistory decodes the history file of dir.
func (r *Reader) ReadHistory(ctx context.Context, dir string) (domain.HistoryDataset, error) {
	path, err := FindFile(dir, r.layout.HistorySuffix)
	if err != nil {
		return domain.HistoryDataset{}, err
	}

	var ds domain.HistoryDataset
	err = withFile(ctx, path, func(src source) error {
		var err error
		ds, err = decodeHistory(src)
		return err
	})
	if err != nil {
		return domain.HistoryDataset{}, err
	}
	if err := ds.Validate(); err != nil {
		return domain.HistoryDataset{}, err
	}

	r.logger.Debug("history dataset loaded",
		"history_file", filepath.Base(path),
		"stations", ds.Stations(),
		"timesteps", ds.Time.Len(),
	)
	return ds, nil
}

func withFile(ctx context.Context, path string, fn func(source) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nc, err := cdf.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer nc.Close()

	if err := fn(groupSource{group: nc}); err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return nil
}

// attributes is the subset of the decoder's attribute map the reader uses.
type attributes interface {
	Get(key string) (interface{}, bool)
}

// variable is one decoded netCDF variable.
type variable struct {
	values interface{}
	attrs  attributes
}

func (v variable) attr(key string) (interface{}, bool) {
	if v.attrs == nil {
		return nil, false
	}
	return v.attrs.Get(key)
}

// source looks up variables by name. A missing variable is a malformed mesh.
type source interface {
	variable(name string) (variable, error)
}

type groupSource struct {
	group api.Group
}

func (s groupSource) variable(name string) (variable, error) {
	v, err := s.group.GetVariable(name)
	if err != nil || v == nil {
		return variable{}, fmt.Errorf("%w: missing variable %s", domain.ErrMalformedMesh, name)
	}
	out := variable{values: v.Values}
	if v.Attributes != nil {
		out.attrs = v.Attributes
	}
	return out, nil
}
