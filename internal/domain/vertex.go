package domain

import (
	"math"
	"sort"
)

// OrderQuad returns the permutation of a quadrilateral's four vertices that
// walks its boundary: indices sorted by ascending atan2 angle around the
// centroid (mean of the four points). For convex quads this is the boundary
// order; non-convex or degenerate quads get the same heuristic.
func OrderQuad(lon, lat [4]float64) [4]int {
	var cx, cy float64
	for k := 0; k < 4; k++ {
		cx += lon[k]
		cy += lat[k]
	}
	cx /= 4
	cy /= 4

	var angles [4]float64
	for k := 0; k < 4; k++ {
		angles[k] = math.Atan2(lat[k]-cy, lon[k]-cx)
	}

	order := [4]int{0, 1, 2, 3}
	sort.SliceStable(order[:], func(i, j int) bool {
		return angles[order[i]] < angles[order[j]]
	})
	return order
}
