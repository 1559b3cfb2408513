package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

// batchSize bounds rows per INSERT so wide meshes stay under driver
// placeholder limits.
const batchSize = 500

// Store is the gorm-backed record and project repository.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the database for driver ("sqlite" or "postgres") and
// migrates the schema. For sqlite, dsn may be a plain file path; its
// directory is created and connection pragmas are appended.
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	memory := false
	switch driver {
	case "sqlite":
		memory = dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
		full, err := sqliteDSN(dsn)
		if err != nil {
			return nil, err
		}
		dialector = sqlite.Open(full)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: domain.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if memory {
		// Every new connection to :memory: is a fresh database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&projectRow{}, &gridRow{}, &stationRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.Info("database ready", "driver", driver)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

func sqliteDSN(dsn string) (string, error) {
	if dsn == ":memory:" || strings.Contains(dsn, "?") {
		return dsn, nil
	}

	path := strings.TrimPrefix(dsn, "file:")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// --- projects ---

func (s *Store) CreateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	if err := p.Validate(); err != nil {
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}
	row := projectToRow(p)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	var row projectRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Project{}, &domain.ProjectNotFoundError{ID: id}
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("get project %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// LatestProject returns the most recently created project.
func (s *Store) LatestProject(ctx context.Context) (domain.Project, error) {
	var row projectRow
	err := s.db.WithContext(ctx).Order("id DESC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Project{}, &domain.ProjectNotFoundError{}
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("get latest project: %w", err)
	}
	return row.toDomain(), nil
}

// ListProjects returns page (1-based) of projects, newest first, with the total count.
func (s *Store) ListProjects(ctx context.Context, page, size int) ([]domain.Project, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&projectRow{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	var rows []projectRow
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	out := make([]domain.Project, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, total, nil
}

// DeleteProject removes the project and every record it owns in one transaction.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&gridRow{}).Error; err != nil {
			return fmt.Errorf("delete grid records: %w", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&stationRow{}).Error; err != nil {
			return fmt.Errorf("delete station records: %w", err)
		}
		res := tx.Delete(&projectRow{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete project %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return &domain.ProjectNotFoundError{ID: id}
		}
		return nil
	})
}

// --- upserts ---

// UpsertGrid inserts rec unless an identical record is already stored.
func (s *Store) UpsertGrid(ctx context.Context, rec domain.GridRecord) (domain.UpsertResult, error) {
	row := gridToRow(rec)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return domain.UpsertResult{}, fmt.Errorf("upsert grid record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.UpsertResult{Outcome: domain.Duplicate}, nil
	}
	return domain.UpsertResult{Outcome: domain.Inserted, ID: row.ID}, nil
}

// UpsertStation inserts rec unless an identical record is already stored.
func (s *Store) UpsertStation(ctx context.Context, rec domain.StationRecord) (domain.UpsertResult, error) {
	row := stationToRow(rec)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return domain.UpsertResult{}, fmt.Errorf("upsert station record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.UpsertResult{Outcome: domain.Duplicate}, nil
	}
	return domain.UpsertResult{Outcome: domain.Inserted, ID: row.ID}, nil
}

func (s *Store) UpsertGridBatch(ctx context.Context, records []domain.GridRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]gridRow, len(records))
	for i, rec := range records {
		rows[i] = gridToRow(rec)
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, batchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert grid batch: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *Store) UpsertStationBatch(ctx context.Context, records []domain.StationRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]stationRow, len(records))
	for i, rec := range records {
		rows[i] = stationToRow(rec)
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, batchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert station batch: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
