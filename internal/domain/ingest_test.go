package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIngestMessage(t *testing.T) {
	msg := IngestMessage{Value: []byte(`{"project_id":4,"dir":"/data/run7","min_water_depth":0.05,"layers":["grid"]}`)}

	req, err := ParseIngestMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, int64(4), req.ProjectID)
	assert.Equal(t, "/data/run7", req.Dir)
	require.NotNil(t, req.MinWaterDepth)
	assert.InDelta(t, 0.05, *req.MinWaterDepth, 1e-12)
	assert.True(t, req.Wants(LayerGrid))
	assert.False(t, req.Wants(LayerStations))
}

func TestParseIngestMessage_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", `{project`},
		{"missing project", `{"dir":"/x"}`},
		{"negative threshold", `{"project_id":1,"min_water_depth":-0.1}`},
		{"unknown layer", `{"project_id":1,"layers":["raster"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIngestMessage(IngestMessage{Value: []byte(tt.value)})
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestIngestRequest_WantsAllByDefault(t *testing.T) {
	req := IngestRequest{ProjectID: 1}
	assert.True(t, req.Wants(LayerGrid))
	assert.True(t, req.Wants(LayerStations))
}
