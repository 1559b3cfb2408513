package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", ":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createProject(t *testing.T, s *Store, name string) domain.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), domain.Project{Name: name, ForecastPeriod: 48})
	require.NoError(t, err)
	return p
}

func gridAt(projectID, ts int64, depth float64) domain.GridRecord {
	return domain.GridRecord{
		ProjectID:  projectID,
		Longitudes: []float64{0, 1, 0.5},
		Latitudes:  []float64{0, 0, 1},
		WaterDepth: depth,
		Risk:       2,
		Timestamp:  ts,
	}
}

func stationAt(projectID int64, name string, ts int64, level float64) domain.StationRecord {
	return domain.StationRecord{
		ProjectID:         projectID,
		StationName:       name,
		Longitude:         119.45,
		Latitude:          32.2,
		WaterDepth:        1.2,
		WaterLevel:        level,
		VelocityMagnitude: 0.3,
		Timestamp:         ts,
	}
}

func TestProjects_CRUD(t *testing.T) {
	fixed := time.Date(2024, 7, 24, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	s := newTestStore(t)
	ctx := context.Background()

	first := createProject(t, s, "first")
	second := createProject(t, s, "second")
	assert.Positive(t, first.ID)
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, fixed, first.CreatedAt)

	got, err := s.GetProject(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)
	assert.Equal(t, 48, got.ForecastPeriod)

	latest, err := s.LatestProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	all, total, err := s.ListProjects(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	paged, _, err := s.ListProjects(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, first.ID, paged[0].ID)

	_, err = s.GetProject(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateProject_Invalid(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateProject(context.Background(), domain.Project{Name: "p", Type: 3})
	assert.ErrorIs(t, err, domain.ErrInvalidProjectType)
}

func TestLatestProject_Empty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LatestProject(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpsertGrid_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	first, err := s.UpsertGrid(ctx, gridAt(p.ID, 100, 0.4))
	require.NoError(t, err)
	assert.Equal(t, domain.Inserted, first.Outcome)
	assert.Positive(t, first.ID)

	again, err := s.UpsertGrid(ctx, gridAt(p.ID, 100, 0.4))
	require.NoError(t, err)
	assert.Equal(t, domain.Duplicate, again.Outcome)

	// Equal after rounding to two decimals.
	rounded, err := s.UpsertGrid(ctx, gridAt(p.ID, 100, 0.4000001))
	require.NoError(t, err)
	assert.Equal(t, domain.Duplicate, rounded.Outcome)

	other, err := s.UpsertGrid(ctx, gridAt(p.ID, 100, 0.5))
	require.NoError(t, err)
	assert.Equal(t, domain.Inserted, other.Outcome)

	records, err := s.GridAt(ctx, p.ID, 100)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestUpsertStation_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	res, err := s.UpsertStation(ctx, stationAt(p.ID, "DY01", 100, 3.5))
	require.NoError(t, err)
	assert.Equal(t, domain.Inserted, res.Outcome)

	res, err = s.UpsertStation(ctx, stationAt(p.ID, "DY01", 100, 3.5))
	require.NoError(t, err)
	assert.Equal(t, domain.Duplicate, res.Outcome)
}

func TestUpsertGridBatch_CountsInsertedOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	batch := []domain.GridRecord{gridAt(p.ID, 100, 0.1), gridAt(p.ID, 100, 0.2), gridAt(p.ID, 200, 0.1)}
	n, err := s.UpsertGridBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	batch = append(batch, gridAt(p.ID, 300, 0.1))
	n, err = s.UpsertGridBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.UpsertGridBatch(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsertStationBatch_CountsInsertedOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	batch := []domain.StationRecord{stationAt(p.ID, "A", 100, 1), stationAt(p.ID, "B", 100, 2)}
	n, err := s.UpsertStationBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.UpsertStationBatch(ctx, batch)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGridQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "p")
	other := createProject(t, s, "other")

	_, err := s.UpsertGridBatch(ctx, []domain.GridRecord{
		gridAt(p.ID, 300, 0.1),
		gridAt(p.ID, 100, 0.1),
		gridAt(p.ID, 200, 0.1),
		gridAt(p.ID, 200, 0.2),
		gridAt(other.ID, 400, 0.1),
	})
	require.NoError(t, err)

	ts, err := s.GridTimestamps(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200, 100}, ts)

	between, err := s.GridBetween(ctx, p.ID, 100, 200)
	require.NoError(t, err)
	require.Len(t, between, 3)
	assert.Equal(t, int64(100), between[0].Timestamp)
	assert.Equal(t, int64(200), between[2].Timestamp)

	at, err := s.GridAt(ctx, p.ID, 200)
	require.NoError(t, err)
	want := []domain.GridRecord{gridAt(p.ID, 200, 0.1), gridAt(p.ID, 200, 0.2)}
	if diff := cmp.Diff(want, at, cmpopts.IgnoreFields(domain.GridRecord{}, "ID")); diff != "" {
		t.Errorf("GridAt mismatch (-want +got):\n%s", diff)
	}

	page, total, err := s.GridPage(ctx, p.ID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page, 3)
	assert.Greater(t, page[0].ID, page[1].ID)

	page, _, err = s.GridPage(ctx, p.ID, 2, 3)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestStationQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	_, err := s.UpsertStationBatch(ctx, []domain.StationRecord{
		stationAt(p.ID, "DY01", 100, 1),
		stationAt(p.ID, "DY01", 200, 2),
		stationAt(p.ID, "DY01", 300, 3),
		stationAt(p.ID, "DY02", 300, 4),
	})
	require.NoError(t, err)

	latest, err := s.LatestStations(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, int64(300), latest[0].Timestamp)

	trend, err := s.StationTrend(ctx, p.ID, "DY01", 150, 300)
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.InDelta(t, 2.0, trend[0].WaterLevel, 1e-9)
	assert.InDelta(t, 3.0, trend[1].WaterLevel, 1e-9)

	between, err := s.StationsBetween(ctx, p.ID, 0, 200)
	require.NoError(t, err)
	assert.Len(t, between, 2)

	empty, err := s.LatestStations(ctx, p.ID+1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDeleteProject_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "p")
	keep := createProject(t, s, "keep")

	_, err := s.UpsertGridBatch(ctx, []domain.GridRecord{gridAt(p.ID, 100, 0.1), gridAt(keep.ID, 100, 0.1)})
	require.NoError(t, err)
	_, err = s.UpsertStationBatch(ctx, []domain.StationRecord{stationAt(p.ID, "A", 100, 1)})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	grid, err := s.GridAt(ctx, p.ID, 100)
	require.NoError(t, err)
	assert.Empty(t, grid)

	kept, err := s.GridAt(ctx, keep.ID, 100)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	err = s.DeleteProject(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckReadiness(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.CheckReadiness(context.Background()))
}

func TestSQLiteDSN(t *testing.T) {
	dir := t.TempDir()
	dsn, err := sqliteDSN(dir + "/nested/flood.db")
	require.NoError(t, err)
	assert.Equal(t, "file:"+dir+"/nested/flood.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dsn)
	assert.DirExists(t, dir+"/nested")

	dsn, err = sqliteDSN("file:custom.db?cache=shared")
	require.NoError(t, err)
	assert.Equal(t, "file:custom.db?cache=shared", dsn)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "x", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
