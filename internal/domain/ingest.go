package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Layers selectable in an ingest request.
const (
	LayerGrid     = "grid"
	LayerStations = "stations"
)

// IngestRequest asks for one ingestion pass over a model output directory.
type IngestRequest struct {
	ProjectID     int64    `json:"project_id"`
	Dir           string   `json:"dir,omitempty"`
	MinWaterDepth *float64 `json:"min_water_depth,omitempty"`
	Layers        []string `json:"layers,omitempty"`
	RunModel      bool     `json:"run_model,omitempty"`
	ModelArgs     []string `json:"model_args,omitempty"`
}

// Validate rejects unknown layers and negative thresholds.
func (r IngestRequest) Validate() error {
	if r.ProjectID <= 0 {
		return fmt.Errorf("%w: project_id is required", ErrInvalidRequest)
	}
	if r.MinWaterDepth != nil && *r.MinWaterDepth < 0 {
		return fmt.Errorf("%w: min_water_depth must not be negative", ErrInvalidRequest)
	}
	for _, l := range r.Layers {
		if l != LayerGrid && l != LayerStations {
			return fmt.Errorf("%w: unknown layer %q", ErrInvalidRequest, l)
		}
	}
	return nil
}

// Wants reports whether the layer is part of the request. No layers means all.
func (r IngestRequest) Wants(layer string) bool {
	if len(r.Layers) == 0 {
		return true
	}
	for _, l := range r.Layers {
		if l == layer {
			return true
		}
	}
	return false
}

// IngestSummary reports what one ingestion pass persisted.
type IngestSummary struct {
	RunID               string    `json:"run_id"`
	ProjectID           int64     `json:"project_id"`
	GridInserted        int       `json:"grid_inserted"`
	GridDuplicates      int       `json:"grid_duplicates"`
	StationInserted     int       `json:"station_inserted"`
	StationDuplicates   int       `json:"station_duplicates"`
	FacesBelowThreshold int       `json:"faces_below_threshold"`
	FacesUnsupported    int       `json:"faces_unsupported"`
	TimestepsProcessed  int       `json:"timesteps_processed"`
	TimestepsSkipped    int       `json:"timesteps_skipped"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
}

// IngestMessage is an ingest request read from the trigger source.
type IngestMessage struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ParseIngestMessage decodes and validates the JSON request carried by msg.
func ParseIngestMessage(msg IngestMessage) (IngestRequest, error) {
	var req IngestRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return IngestRequest{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := req.Validate(); err != nil {
		return IngestRequest{}, err
	}
	return req, nil
}
