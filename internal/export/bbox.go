package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/peterstace/simplefeatures/rtree"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

// BBox is a lon/lat bounding box, edges inclusive.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// ParseBBox reads "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox needs 4 comma separated values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return BBox{}, fmt.Errorf("invalid bbox value %q", p)
		}
		v[i] = f
	}
	b := BBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	if b.MinLon > b.MaxLon || b.MinLat > b.MaxLat {
		return BBox{}, fmt.Errorf("bbox minimum exceeds maximum")
	}
	return b, nil
}

func (b BBox) box() rtree.Box {
	return rtree.Box{MinX: b.MinLon, MinY: b.MinLat, MaxX: b.MaxLon, MaxY: b.MaxLat}
}

func boundsOf(lon, lat []float64) rtree.Box {
	box := rtree.Box{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for k := range lon {
		box.MinX = math.Min(box.MinX, lon[k])
		box.MaxX = math.Max(box.MaxX, lon[k])
		box.MinY = math.Min(box.MinY, lat[k])
		box.MaxY = math.Max(box.MaxY, lat[k])
	}
	return box
}

// FilterGrid keeps the records whose polygon bounds overlap b, in input order.
func FilterGrid(records []domain.GridRecord, b BBox) []domain.GridRecord {
	var tree rtree.RTree
	for i, r := range records {
		if len(r.Longitudes) == 0 {
			continue
		}
		tree.Insert(boundsOf(r.Longitudes, r.Latitudes), i)
	}
	return collect(&tree, b, records)
}

// FilterStations keeps the records whose position lies inside b, in input order.
func FilterStations(records []domain.StationRecord, b BBox) []domain.StationRecord {
	var tree rtree.RTree
	for i, r := range records {
		tree.Insert(rtree.Box{MinX: r.Longitude, MinY: r.Latitude, MaxX: r.Longitude, MaxY: r.Latitude}, i)
	}
	return collect(&tree, b, records)
}

func collect[T any](tree *rtree.RTree, b BBox, records []T) []T {
	hit := make([]bool, len(records))
	_ = tree.RangeSearch(b.box(), func(i int) error {
		hit[i] = true
		return nil
	})
	out := make([]T, 0, len(records))
	for i, r := range records {
		if hit[i] {
			out = append(out, r)
		}
	}
	return out
}
