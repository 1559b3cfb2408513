package netcdf

import (
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

type mapFile struct {
	mesh  domain.Mesh
	time  domain.TimeAxis
	depth [][]float64
}

func decodeMapFile(src source) (mapFile, error) {
	lon, err := floatsVar(src, VarNodeX)
	if err != nil {
		return mapFile{}, err
	}
	lat, err := floatsVar(src, VarNodeY)
	if err != nil {
		return mapFile{}, err
	}
	faces, fill, err := faceNodes(src)
	if err != nil {
		return mapFile{}, err
	}
	axis, err := timeAxis(src)
	if err != nil {
		return mapFile{}, err
	}
	depth, err := gridVar(src, VarWaterDepth)
	if err != nil {
		return mapFile{}, err
	}

	return mapFile{
		mesh:  domain.Mesh{NodeLon: lon, NodeLat: lat, FaceNodes: faces, FaceFill: fill},
		time:  axis,
		depth: depth,
	}, nil
}

// decodeRisk reads the per-face risk class. The classification file stores
// it under the water depth variable name. Cells holding the variable's
// _FillValue come back as NaN.
func decodeRisk(src source) ([][]float64, error) {
	v, err := src.variable(VarWaterDepth)
	if err != nil {
		return nil, err
	}
	risk, err := toFloatGrid(VarWaterDepth, v.values)
	if err != nil {
		return nil, err
	}

	raw, ok := v.attr("_FillValue")
	if !ok {
		return risk, nil
	}
	fill, ok := toFloat(raw)
	if !ok || math.IsNaN(fill) {
		return risk, nil
	}
	for _, row := range risk {
		for i, x := range row {
			if x == fill {
				row[i] = math.NaN()
			}
		}
	}
	return risk, nil
}

func decodeHistory(src source) (domain.HistoryDataset, error) {
	var (
		ds  domain.HistoryDataset
		err error
	)
	if ds.StationLon, err = floatsVar(src, VarStationX); err != nil {
		return ds, err
	}
	if ds.StationLat, err = floatsVar(src, VarStationY); err != nil {
		return ds, err
	}
	names, err := src.variable(VarStationName)
	if err != nil {
		return ds, err
	}
	if ds.StationNames, err = toStrings(VarStationName, names.values); err != nil {
		return ds, err
	}
	if ds.Time, err = timeAxis(src); err != nil {
		return ds, err
	}
	if ds.WaterDepth, err = gridVar(src, VarStationDepth); err != nil {
		return ds, err
	}
	if ds.WaterLevel, err = gridVar(src, VarStationLevel); err != nil {
		return ds, err
	}
	if ds.VelocityMagnitude, err = gridVar(src, VarStationVelocity); err != nil {
		return ds, err
	}
	return ds, nil
}

func floatsVar(src source, name string) ([]float64, error) {
	v, err := src.variable(name)
	if err != nil {
		return nil, err
	}
	return toFloats(name, v.values)
}

func gridVar(src source, name string) ([][]float64, error) {
	v, err := src.variable(name)
	if err != nil {
		return nil, err
	}
	return toFloatGrid(name, v.values)
}

func timeAxis(src source) (domain.TimeAxis, error) {
	v, err := src.variable(VarTime)
	if err != nil {
		return domain.TimeAxis{}, err
	}
	values, err := toFloats(VarTime, v.values)
	if err != nil {
		return domain.TimeAxis{}, err
	}
	axis := domain.TimeAxis{Values: values}
	if units, ok := v.attr("units"); ok {
		s, isString := units.(string)
		if !isString {
			return domain.TimeAxis{}, fmt.Errorf("%w: time units attribute is %T", domain.ErrMalformedMesh, units)
		}
		axis.Units = strings.TrimSpace(s)
	}
	return axis, nil
}

// faceNodes reads the connectivity table and returns it with 1-based indices
// plus the fill marker. Tables declared with start_index 0 are shifted.
func faceNodes(src source) ([][]int, int, error) {
	v, err := src.variable(VarFaceNodes)
	if err != nil {
		return nil, 0, err
	}

	fill := DefaultFaceFill
	if raw, ok := v.attr("_FillValue"); ok {
		if f, ok := toInt(raw); ok {
			fill = f
		}
	}

	faces, err := toIndexGrid(VarFaceNodes, v.values, fill)
	if err != nil {
		return nil, 0, err
	}

	start := 1
	if raw, ok := v.attr("start_index"); ok {
		if s, ok := toInt(raw); ok {
			start = s
		}
	}
	if start == 0 {
		for _, row := range faces {
			for j, n := range row {
				if n != fill && n >= 0 {
					row[j] = n + 1
				}
			}
		}
	}
	return faces, fill, nil
}
