package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

// PolygonWKT renders a closed polygon ring in lon/lat order.
func PolygonWKT(lon, lat []float64) (string, error) {
	if len(lon) < 3 || len(lon) != len(lat) {
		return "", fmt.Errorf("polygon needs at least 3 matching vertices, got %d lon and %d lat", len(lon), len(lat))
	}
	var b strings.Builder
	b.WriteString("POLYGON((")
	for k := range lon {
		writePoint(&b, lon[k], lat[k])
		b.WriteString(", ")
	}
	writePoint(&b, lon[0], lat[0])
	b.WriteString("))")
	return b.String(), nil
}

func writePoint(b *strings.Builder, x, y float64) {
	b.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(y, 'f', -1, 64))
}

// GridFeatures converts grid records into a GeoJSON feature collection.
// Polygons from the angular vertex sort may self-intersect when the source
// quad is non-convex, so geometry validation is disabled.
func GridFeatures(records []domain.GridRecord) (geom.GeoJSONFeatureCollection, error) {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(records))
	for _, r := range records {
		wkt, err := PolygonWKT(r.Longitudes, r.Latitudes)
		if err != nil {
			return nil, fmt.Errorf("grid record %d: %w", r.ID, err)
		}
		g, err := geom.UnmarshalWKT(wkt, geom.DisableAllValidations)
		if err != nil {
			return nil, fmt.Errorf("grid record %d: %w", r.ID, err)
		}
		fc = append(fc, geom.GeoJSONFeature{
			Geometry: g,
			ID:       r.ID,
			Properties: map[string]interface{}{
				"waterDepth": r.WaterDepth,
				"risk":       r.Risk,
				"riskLabel":  domain.RiskLevel(r.Risk).Label(),
				"time":       domain.Decode(r.Timestamp),
			},
		})
	}
	return fc, nil
}

// StationFeatures converts station records into point features.
func StationFeatures(records []domain.StationRecord) (geom.GeoJSONFeatureCollection, error) {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(records))
	for _, r := range records {
		var b strings.Builder
		b.WriteString("POINT(")
		writePoint(&b, r.Longitude, r.Latitude)
		b.WriteByte(')')
		g, err := geom.UnmarshalWKT(b.String())
		if err != nil {
			return nil, fmt.Errorf("station record %d: %w", r.ID, err)
		}
		fc = append(fc, geom.GeoJSONFeature{
			Geometry: g,
			ID:       r.ID,
			Properties: map[string]interface{}{
				"stationName":       r.StationName,
				"waterDepth":        r.WaterDepth,
				"waterLevel":        r.WaterLevel,
				"velocityMagnitude": r.VelocityMagnitude,
				"time":              domain.Decode(r.Timestamp),
			},
		})
	}
	return fc, nil
}
