package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-mesh-etl/internal/adapter/store"
	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
	"github.com/couchcryptid/flood-mesh-etl/internal/observability"
)

const fill = -999

// Three faces over five nodes: a quad listed in crossed order, a triangle and
// a two-node row that compacts to an unsupported face.
//
//	4 --- 3
//	|     | \
//	1 --- 2 - 5
var fixtureMesh = domain.Mesh{
	NodeLon: []float64{0, 1, 1, 0, 2},
	NodeLat: []float64{0, 0, 1, 1, 0},
	FaceNodes: [][]int{
		{1, 3, 2, 4},
		{2, 5, 3, fill},
		{1, 2, fill, fill},
	},
	FaceFill: fill,
}

// mapFixture builds a map dataset with steps hourly timesteps. depth and risk
// give the per-face values repeated at every timestep.
func mapFixture(steps int, depth, risk []float64) domain.MapDataset {
	ds := domain.MapDataset{
		Mesh: fixtureMesh,
		Time: domain.TimeAxis{Units: "hours since 2021-07-31 00:00:00"},
	}
	for t := 0; t < steps; t++ {
		ds.Time.Values = append(ds.Time.Values, float64(t))
		ds.WaterDepth = append(ds.WaterDepth, append([]float64(nil), depth...))
		ds.Risk = append(ds.Risk, append([]float64(nil), risk...))
	}
	return ds
}

// historyFixture builds a history dataset with two stations whose fixed-width
// names carry padding.
func historyFixture(steps int) domain.HistoryDataset {
	ds := domain.HistoryDataset{
		StationLon:   []float64{119.45, 119.52},
		StationLat:   []float64{32.20, 32.31},
		StationNames: []string{"DY 01   ", "DY02\x00\x00\x00"},
		Time:         domain.TimeAxis{Units: "hours since 2021-07-31 00:00:00"},
	}
	for t := 0; t < steps; t++ {
		ds.Time.Values = append(ds.Time.Values, float64(t))
		ds.WaterDepth = append(ds.WaterDepth, []float64{1.2, 0})
		ds.WaterLevel = append(ds.WaterLevel, []float64{3.0 + float64(t)/100, 2.5})
		ds.VelocityMagnitude = append(ds.VelocityMagnitude, []float64{0.3, 0.1})
	}
	return ds
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("sqlite", ":memory:", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createProject(t *testing.T, s *store.Store, typ domain.ProjectType) domain.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), domain.Project{Name: "fixture", ForecastPeriod: 48, Type: typ})
	require.NoError(t, err)
	return p
}
