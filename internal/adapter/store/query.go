package store

import (
	"context"
	"fmt"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

// GridTimestamps lists the distinct timesteps stored for a project, newest first.
func (s *Store) GridTimestamps(ctx context.Context, projectID int64) ([]int64, error) {
	var out []int64
	err := s.db.WithContext(ctx).Model(&gridRow{}).
		Where("project_id = ?", projectID).
		Distinct("ts").
		Order("ts DESC").
		Pluck("ts", &out).Error
	if err != nil {
		return nil, fmt.Errorf("list grid timestamps: %w", err)
	}
	return out, nil
}

func (s *Store) GridAt(ctx context.Context, projectID, ts int64) ([]domain.GridRecord, error) {
	var rows []gridRow
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND ts = ?", projectID, ts).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query grid at %d: %w", ts, err)
	}
	return gridRowsToDomain(rows), nil
}

func (s *Store) GridBetween(ctx context.Context, projectID, start, end int64) ([]domain.GridRecord, error) {
	var rows []gridRow
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND ts BETWEEN ? AND ?", projectID, start, end).
		Order("ts, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query grid between %d and %d: %w", start, end, err)
	}
	return gridRowsToDomain(rows), nil
}

// GridPage returns page (1-based) of a project's grid records, newest row
// first, with the total row count.
func (s *Store) GridPage(ctx context.Context, projectID int64, page, size int) ([]domain.GridRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}

	q := s.db.WithContext(ctx).Model(&gridRow{}).Where("project_id = ?", projectID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count grid records: %w", err)
	}

	var rows []gridRow
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("page grid records: %w", err)
	}
	return gridRowsToDomain(rows), total, nil
}

func (s *Store) StationsAt(ctx context.Context, projectID, ts int64) ([]domain.StationRecord, error) {
	var rows []stationRow
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND ts = ?", projectID, ts).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query stations at %d: %w", ts, err)
	}
	return stationRowsToDomain(rows), nil
}

func (s *Store) StationsBetween(ctx context.Context, projectID, start, end int64) ([]domain.StationRecord, error) {
	var rows []stationRow
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND ts BETWEEN ? AND ?", projectID, start, end).
		Order("ts, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query stations between %d and %d: %w", start, end, err)
	}
	return stationRowsToDomain(rows), nil
}

// LatestStations returns every station sample at the project's newest station timestep.
func (s *Store) LatestStations(ctx context.Context, projectID int64) ([]domain.StationRecord, error) {
	var latest []int64
	err := s.db.WithContext(ctx).Model(&stationRow{}).
		Where("project_id = ?", projectID).
		Order("ts DESC").
		Limit(1).
		Pluck("ts", &latest).Error
	if err != nil {
		return nil, fmt.Errorf("find latest station timestep: %w", err)
	}
	if len(latest) == 0 {
		return []domain.StationRecord{}, nil
	}
	return s.StationsAt(ctx, projectID, latest[0])
}

// StationTrend returns one station's samples in time order within [start, end].
func (s *Store) StationTrend(ctx context.Context, projectID int64, name string, start, end int64) ([]domain.StationRecord, error) {
	var rows []stationRow
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND station_name = ? AND ts BETWEEN ? AND ?", projectID, name, start, end).
		Order("ts, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query station %q trend: %w", name, err)
	}
	return stationRowsToDomain(rows), nil
}
