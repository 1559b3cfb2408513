package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

func checkMesh() domain.Mesh {
	return domain.Mesh{
		NodeLon:   []float64{0, 1, 0, 1, 2},
		NodeLat:   []float64{0, 0, 1, 1, 0},
		FaceNodes: [][]int{{1, 2, 4, 3}, {2, 5, 4, -999}, {1, 2, -999, -999}},
		FaceFill:  -999,
	}
}

func hours(n int) domain.TimeAxis {
	axis := domain.TimeAxis{Units: "hours since 2021-07-31 00:00:00"}
	for i := 0; i < n; i++ {
		axis.Values = append(axis.Values, float64(i))
	}
	return axis
}

func grid(steps, width int, v float64) [][]float64 {
	out := make([][]float64, steps)
	for t := range out {
		out[t] = make([]float64, width)
		for i := range out[t] {
			out[t][i] = v
		}
	}
	return out
}

func TestCheckFaces_CountsShapes(t *testing.T) {
	p := checkFaces(domain.MapDataset{Mesh: checkMesh()}, nil)
	assert.True(t, p.passed())
	require.Len(t, p.notes, 1)
	assert.Equal(t, "5 nodes, 3 faces: 1 triangles, 1 quads, 1 unsupported", p.notes[0])
}

func TestCheckFaces_OutOfRangeNode(t *testing.T) {
	m := checkMesh()
	m.FaceNodes[1] = []int{2, 9, 4, -999}
	p := checkFaces(domain.MapDataset{Mesh: m}, nil)
	assert.False(t, p.passed())
}

func TestCheckMap(t *testing.T) {
	ds := domain.MapDataset{
		Mesh:       checkMesh(),
		Time:       hours(30),
		WaterDepth: grid(30, 3, 0.5),
		Risk:       grid(30, 3, 2),
	}
	p := checkMap(ds, nil, 23)
	assert.True(t, p.passed(), p.errors)

	ds.Risk[25][1] = 7
	p = checkMap(ds, nil, 23)
	require.False(t, p.passed())
	assert.Contains(t, p.errors[0], "timestep 25 face 1")
}

func TestCheckMap_ShortRun(t *testing.T) {
	ds := domain.MapDataset{
		Mesh:       checkMesh(),
		Time:       hours(10),
		WaterDepth: grid(10, 3, 0.5),
		Risk:       grid(10, 3, 1),
	}
	p := checkMap(ds, nil, 23)
	assert.False(t, p.passed())
}

func TestCheckMap_LoadFailureSkips(t *testing.T) {
	p := checkMap(domain.MapDataset{}, errors.New("boom"), 23)
	assert.True(t, p.passed())
	assert.NotEmpty(t, p.notes)

	files := checkFiles(errors.New("boom"), nil)
	assert.Len(t, files.errors, 1)
}

func TestCheckHistory_Names(t *testing.T) {
	ds := domain.HistoryDataset{
		StationLon:        []float64{119.4, 119.5, 119.6},
		StationLat:        []float64{32.1, 32.2, 32.3},
		StationNames:      []string{"DY 01  ", "DY01\x00", "   "},
		Time:              hours(30),
		WaterDepth:        grid(30, 3, 1),
		WaterLevel:        grid(30, 3, 2),
		VelocityMagnitude: grid(30, 3, 0.1),
	}
	p := checkHistory(ds, nil, 24)
	require.Len(t, p.errors, 2)
	assert.Contains(t, p.errors[0], `share the name "DY01"`)
	assert.Contains(t, p.errors[1], "station 2 has an empty name")
}

func TestCheckTimeAxis_NotIncreasing(t *testing.T) {
	axis := hours(30)
	axis.Values[12] = 3
	p := &phase{name: "t"}
	checkTimeAxis(p, axis, 23)
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "step 12")
}
