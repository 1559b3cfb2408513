package domain

import "context"

// ProjectStore manages projects. Lookups that miss return *ProjectNotFoundError.
type ProjectStore interface {
	CreateProject(ctx context.Context, p Project) (Project, error)
	GetProject(ctx context.Context, id int64) (Project, error)
	LatestProject(ctx context.Context) (Project, error)
	ListProjects(ctx context.Context, page, size int) ([]Project, int64, error)
	DeleteProject(ctx context.Context, id int64) error
}

// RecordWriter persists records idempotently. Batch upserts return how many
// rows were new; the rest were already stored.
type RecordWriter interface {
	UpsertGridBatch(ctx context.Context, records []GridRecord) (int, error)
	UpsertStationBatch(ctx context.Context, records []StationRecord) (int, error)
}

// RecordQuerier answers the read-side queries. Time bounds are inclusive
// seconds since the reference epoch.
type RecordQuerier interface {
	GridTimestamps(ctx context.Context, projectID int64) ([]int64, error)
	GridAt(ctx context.Context, projectID, ts int64) ([]GridRecord, error)
	GridBetween(ctx context.Context, projectID, start, end int64) ([]GridRecord, error)
	GridPage(ctx context.Context, projectID int64, page, size int) ([]GridRecord, int64, error)
	StationsAt(ctx context.Context, projectID, ts int64) ([]StationRecord, error)
	StationsBetween(ctx context.Context, projectID, start, end int64) ([]StationRecord, error)
	LatestStations(ctx context.Context, projectID int64) ([]StationRecord, error)
	StationTrend(ctx context.Context, projectID int64, name string, start, end int64) ([]StationRecord, error)
}
