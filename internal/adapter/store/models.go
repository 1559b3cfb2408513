package store

import (
	"time"

	"gorm.io/datatypes"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

type projectRow struct {
	ID             int64      `gorm:"primaryKey;autoIncrement"`
	Name           string     `gorm:"size:100;not null"`
	Description    string     `gorm:"type:text"`
	ForecastPeriod int        `gorm:"not null;default:0"`
	StartTime      *time.Time `gorm:"index"`
	Type           int        `gorm:"not null;default:0"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

func (projectRow) TableName() string { return "projects" }

// gridRow stores one wet face at one timestep. ContentHash covers every
// persisted field, so the unique index makes repeated ingestion a no-op.
type gridRow struct {
	ID          int64                        `gorm:"primaryKey;autoIncrement"`
	ProjectID   int64                        `gorm:"not null;uniqueIndex:idx_grid_content,priority:1;index:idx_grid_project_ts,priority:1"`
	ContentHash string                       `gorm:"size:64;not null;uniqueIndex:idx_grid_content,priority:2"`
	Longitudes  datatypes.JSONSlice[float64] `gorm:"not null"`
	Latitudes   datatypes.JSONSlice[float64] `gorm:"not null"`
	WaterDepth  float64                      `gorm:"type:decimal(5,2);not null"`
	Risk        int                          `gorm:"not null"`
	Timestamp   int64                        `gorm:"column:ts;not null;index:idx_grid_project_ts,priority:2"`
}

func (gridRow) TableName() string { return "grid_records" }

type stationRow struct {
	ID                int64   `gorm:"primaryKey;autoIncrement"`
	ProjectID         int64   `gorm:"not null;uniqueIndex:idx_station_content,priority:1;index:idx_station_project_ts,priority:1"`
	ContentHash       string  `gorm:"size:64;not null;uniqueIndex:idx_station_content,priority:2"`
	StationName       string  `gorm:"size:128;not null;index"`
	Longitude         float64 `gorm:"not null"`
	Latitude          float64 `gorm:"not null"`
	WaterDepth        float64 `gorm:"type:decimal(5,2);not null"`
	WaterLevel        float64 `gorm:"type:decimal(5,2);not null"`
	VelocityMagnitude float64 `gorm:"type:decimal(5,2);not null"`
	Timestamp         int64   `gorm:"column:ts;not null;index:idx_station_project_ts,priority:2"`
}

func (stationRow) TableName() string { return "station_records" }

func projectToRow(p domain.Project) projectRow {
	return projectRow{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		ForecastPeriod: p.ForecastPeriod,
		StartTime:      p.StartTime,
		Type:           int(p.Type),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (r projectRow) toDomain() domain.Project {
	return domain.Project{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		ForecastPeriod: r.ForecastPeriod,
		StartTime:      r.StartTime,
		Type:           domain.ProjectType(r.Type),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

// gridToRow normalizes the record before hashing so the key matches what is stored.
func gridToRow(rec domain.GridRecord) gridRow {
	rec = rec.Normalize()
	return gridRow{
		ProjectID:   rec.ProjectID,
		ContentHash: rec.ContentKey(),
		Longitudes:  datatypes.JSONSlice[float64](rec.Longitudes),
		Latitudes:   datatypes.JSONSlice[float64](rec.Latitudes),
		WaterDepth:  rec.WaterDepth,
		Risk:        rec.Risk,
		Timestamp:   rec.Timestamp,
	}
}

func (r gridRow) toDomain() domain.GridRecord {
	return domain.GridRecord{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		Longitudes: []float64(r.Longitudes),
		Latitudes:  []float64(r.Latitudes),
		WaterDepth: r.WaterDepth,
		Risk:       r.Risk,
		Timestamp:  r.Timestamp,
	}
}

func stationToRow(rec domain.StationRecord) stationRow {
	rec = rec.Normalize()
	return stationRow{
		ProjectID:         rec.ProjectID,
		ContentHash:       rec.ContentKey(),
		StationName:       rec.StationName,
		Longitude:         rec.Longitude,
		Latitude:          rec.Latitude,
		WaterDepth:        rec.WaterDepth,
		WaterLevel:        rec.WaterLevel,
		VelocityMagnitude: rec.VelocityMagnitude,
		Timestamp:         rec.Timestamp,
	}
}

func (r stationRow) toDomain() domain.StationRecord {
	return domain.StationRecord{
		ID:                r.ID,
		ProjectID:         r.ProjectID,
		StationName:       r.StationName,
		Longitude:         r.Longitude,
		Latitude:          r.Latitude,
		WaterDepth:        r.WaterDepth,
		WaterLevel:        r.WaterLevel,
		VelocityMagnitude: r.VelocityMagnitude,
		Timestamp:         r.Timestamp,
	}
}

func gridRowsToDomain(rows []gridRow) []domain.GridRecord {
	out := make([]domain.GridRecord, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}

func stationRowsToDomain(rows []stationRow) []domain.StationRecord {
	out := make([]domain.StationRecord, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}
