package netcdf

import (
	"fmt"
	"math"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

// The netCDF decoder hands back typed slices whose element type depends on
// how the model wrote the file. These helpers widen them to the types the
// domain works with.

func toFloats(name string, v interface{}) ([]float64, error) {
	switch vals := v.(type) {
	case []float64:
		return vals, nil
	case []float32:
		return widen(vals), nil
	case []int64:
		return widen(vals), nil
	case []int32:
		return widen(vals), nil
	case []int16:
		return widen(vals), nil
	case []int8:
		return widen(vals), nil
	case float64:
		return []float64{vals}, nil
	case float32:
		return []float64{float64(vals)}, nil
	default:
		return nil, fmt.Errorf("%w: variable %s has unsupported type %T", domain.ErrMalformedMesh, name, v)
	}
}

func toFloatGrid(name string, v interface{}) ([][]float64, error) {
	switch vals := v.(type) {
	case [][]float64:
		return vals, nil
	case [][]float32:
		return widenGrid(vals), nil
	case [][]int64:
		return widenGrid(vals), nil
	case [][]int32:
		return widenGrid(vals), nil
	case [][]int16:
		return widenGrid(vals), nil
	case [][]int8:
		return widenGrid(vals), nil
	default:
		return nil, fmt.Errorf("%w: variable %s is not a 2D numeric array (%T)", domain.ErrMalformedMesh, name, v)
	}
}

// toIndexGrid converts face-node connectivity. Floating point storage is
// accepted as long as every value is integral or NaN (treated as fill).
func toIndexGrid(name string, v interface{}, fill int) ([][]int, error) {
	switch vals := v.(type) {
	case [][]int32:
		return intGrid(vals), nil
	case [][]int64:
		return intGrid(vals), nil
	case [][]int16:
		return intGrid(vals), nil
	case [][]float64:
		return floatIndexGrid(name, vals, fill)
	case [][]float32:
		return floatIndexGrid(name, widenGrid(vals), fill)
	default:
		return nil, fmt.Errorf("%w: variable %s is not a 2D index array (%T)", domain.ErrMalformedMesh, name, v)
	}
}

// toStrings decodes a 2D char variable. The decoder may return one string per
// row or the raw byte rows.
func toStrings(name string, v interface{}) ([]string, error) {
	switch vals := v.(type) {
	case []string:
		return vals, nil
	case [][]byte:
		out := make([]string, len(vals))
		for i, row := range vals {
			out[i] = string(row)
		}
		return out, nil
	case string:
		return []string{vals}, nil
	default:
		return nil, fmt.Errorf("%w: variable %s is not a char array (%T)", domain.ErrMalformedMesh, name, v)
	}
}

// toInt reads an integral attribute value such as _FillValue or start_index.
func toInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case int16:
		return int(x), true
	case int8:
		return int(x), true
	case int:
		return x, true
	case float64:
		return int(x), true
	case float32:
		return int(x), true
	case []int32:
		if len(x) == 1 {
			return int(x[0]), true
		}
	case []int64:
		if len(x) == 1 {
			return int(x[0]), true
		}
	case []float64:
		if len(x) == 1 {
			return int(x[0]), true
		}
	}
	return 0, false
}

// toFloat reads a numeric attribute value such as a floating point _FillValue.
func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if vals, err := toFloats("", v); err == nil && len(vals) == 1 {
		return vals[0], true
	}
	return toIntAsFloat(v)
}

func toIntAsFloat(v interface{}) (float64, bool) {
	i, ok := toInt(v)
	return float64(i), ok
}

type number interface {
	~float32 | ~int64 | ~int32 | ~int16 | ~int8
}

func widen[T number](vals []T) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v)
	}
	return out
}

func widenGrid[T number](vals [][]T) [][]float64 {
	out := make([][]float64, len(vals))
	for i, row := range vals {
		out[i] = widen(row)
	}
	return out
}

func intGrid[T ~int64 | ~int32 | ~int16](vals [][]T) [][]int {
	out := make([][]int, len(vals))
	for i, row := range vals {
		out[i] = make([]int, len(row))
		for j, v := range row {
			out[i][j] = int(v)
		}
	}
	return out
}

func floatIndexGrid(name string, vals [][]float64, fill int) ([][]int, error) {
	out := make([][]int, len(vals))
	for i, row := range vals {
		out[i] = make([]int, len(row))
		for j, v := range row {
			switch {
			case math.IsNaN(v):
				out[i][j] = fill
			case v != math.Trunc(v):
				return nil, fmt.Errorf("%w: variable %s has non-integral index %v at [%d][%d]",
					domain.ErrMalformedMesh, name, v, i, j)
			default:
				out[i][j] = int(v)
			}
		}
	}
	return out, nil
}
