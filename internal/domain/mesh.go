package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// FaceShape is the arity class of a compacted face row.
type FaceShape int

const (
	FaceUnsupported FaceShape = iota
	FaceTriangle
	FaceQuad
)

func (s FaceShape) String() string {
	switch s {
	case FaceTriangle:
		return "triangle"
	case FaceQuad:
		return "quad"
	default:
		return "unsupported"
	}
}

// ClassifyFace maps a compacted node list to its shape.
func ClassifyFace(nodes []int) FaceShape {
	switch len(nodes) {
	case 3:
		return FaceTriangle
	case 4:
		return FaceQuad
	default:
		return FaceUnsupported
	}
}

// CompactFace drops fill markers and non-positive entries from a raw
// face-to-node row, keeping the order of the remaining indices.
func CompactFace(row []int, fill int) []int {
	out := make([]int, 0, len(row))
	for _, v := range row {
		if v == fill || v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Mesh is an unstructured 2D mesh. FaceNodes rows are 1-based node indices,
// possibly padded with FaceFill.
type Mesh struct {
	NodeLon   []float64
	NodeLat   []float64
	FaceNodes [][]int
	FaceFill  int
}

// Polygon is an ordered vertex list; Lon and Lat have the same length.
type Polygon struct {
	Lon []float64
	Lat []float64
}

// Faces returns the number of faces.
func (m Mesh) Faces() int { return len(m.FaceNodes) }

// Validate checks the node arrays agree in length.
func (m Mesh) Validate() error {
	if len(m.NodeLon) != len(m.NodeLat) {
		return fmt.Errorf("%w: %d node longitudes but %d node latitudes",
			ErrMalformedMesh, len(m.NodeLon), len(m.NodeLat))
	}
	return nil
}

// FacePolygon builds the vertex list of face i. Triangles keep raw node order;
// quads are ordered with OrderQuad. Unsupported faces return FaceUnsupported
// and no error. A node index outside [1, M] is a malformed mesh.
func (m Mesh) FacePolygon(i int) (Polygon, FaceShape, error) {
	nodes := CompactFace(m.FaceNodes[i], m.FaceFill)
	shape := ClassifyFace(nodes)
	if shape == FaceUnsupported {
		return Polygon{}, shape, nil
	}

	lon := make([]float64, len(nodes))
	lat := make([]float64, len(nodes))
	for k, n := range nodes {
		if n < 1 || n > len(m.NodeLon) {
			return Polygon{}, shape, fmt.Errorf("%w: face %d references node %d of %d",
				ErrMalformedMesh, i, n, len(m.NodeLon))
		}
		lon[k] = m.NodeLon[n-1]
		lat[k] = m.NodeLat[n-1]
	}

	if shape == FaceTriangle {
		return Polygon{Lon: lon, Lat: lat}, shape, nil
	}

	order := OrderQuad([4]float64(lon), [4]float64(lat))
	poly := Polygon{Lon: make([]float64, 4), Lat: make([]float64, 4)}
	for k, idx := range order {
		poly.Lon[k] = lon[idx]
		poly.Lat[k] = lat[idx]
	}
	return poly, shape, nil
}

// MapDataset joins the map file and the classification file of one run.
type MapDataset struct {
	Mesh       Mesh
	Time       TimeAxis
	WaterDepth [][]float64 // [timestep][face]
	Risk       [][]float64 // [timestep][face]
}

// Validate checks every field is co-indexed with the mesh and the time axis.
func (d MapDataset) Validate() error {
	if err := d.Mesh.Validate(); err != nil {
		return err
	}
	if err := checkField("water depth", d.WaterDepth, d.Time.Len(), d.Mesh.Faces()); err != nil {
		return err
	}
	return checkField("risk", d.Risk, d.Time.Len(), d.Mesh.Faces())
}

// HistoryDataset holds per-station series of one run.
type HistoryDataset struct {
	StationLon        []float64
	StationLat        []float64
	StationNames      []string // raw fixed-width buffers
	Time              TimeAxis
	WaterDepth        [][]float64 // [timestep][station]
	WaterLevel        [][]float64
	VelocityMagnitude [][]float64
}

// Stations returns the number of stations.
func (d HistoryDataset) Stations() int { return len(d.StationLon) }

// Validate checks station arrays and series agree in shape.
func (d HistoryDataset) Validate() error {
	n := d.Stations()
	if len(d.StationLat) != n || len(d.StationNames) != n {
		return fmt.Errorf("%w: station arrays disagree: %d lon, %d lat, %d names",
			ErrMalformedMesh, n, len(d.StationLat), len(d.StationNames))
	}
	for name, field := range map[string][][]float64{
		"water depth":        d.WaterDepth,
		"water level":        d.WaterLevel,
		"velocity magnitude": d.VelocityMagnitude,
	} {
		if err := checkField(name, field, d.Time.Len(), n); err != nil {
			return err
		}
	}
	return nil
}

func checkField(name string, field [][]float64, steps, width int) error {
	if len(field) != steps {
		return fmt.Errorf("%w: %s has %d timesteps, time axis has %d",
			ErrMalformedMesh, name, len(field), steps)
	}
	for t, row := range field {
		if len(row) != width {
			return fmt.Errorf("%w: %s timestep %d has %d values, expected %d",
				ErrMalformedMesh, name, t, len(row), width)
		}
	}
	return nil
}

// StationName collapses a fixed-width station name buffer: every whitespace
// and NUL character is dropped, the rest is concatenated in order.
func StationName(raw string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
}
