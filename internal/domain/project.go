package domain

import (
	"fmt"
	"time"
)

// ProjectType selects which part of a run's timestep range is persisted.
type ProjectType int

const (
	// ProjectPrecomputed is a fixed-horizon single run.
	ProjectPrecomputed ProjectType = 0
	// ProjectRealtime is a rolling real-time forecast run.
	ProjectRealtime ProjectType = 1
)

// FirstPersistedTimestep returns the first timestep index whose records are
// persisted: 23 for precomputed runs, 24 for real-time runs.
func (t ProjectType) FirstPersistedTimestep() (int, error) {
	switch t {
	case ProjectPrecomputed:
		return 23, nil
	case ProjectRealtime:
		return 24, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidProjectType, int(t))
	}
}

// Project groups the records of one forecast scheme.
type Project struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	ForecastPeriod int         `json:"forecastPeriod"`
	StartTime      *time.Time  `json:"-"`
	Type           ProjectType `json:"type"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Validate checks the fields a new project must carry.
func (p Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	if len(p.Name) > 100 {
		return fmt.Errorf("project name exceeds 100 characters")
	}
	if p.ForecastPeriod < 0 {
		return fmt.Errorf("forecast period must not be negative")
	}
	_, err := p.Type.FirstPersistedTimestep()
	return err
}
