package export

import "github.com/couchcryptid/flood-mesh-etl/internal/domain"

// GridJSON is the client layout of a grid record. Coordinates are [lat, lon]
// pairs in polygon order.
type GridJSON struct {
	ID          int64        `json:"id"`
	Coordinates [][2]float64 `json:"coordinates"`
	WaterDepth  float64      `json:"waterDepth"`
	Risk        int          `json:"risk"`
	Time        string       `json:"time"`
}

// StationJSON is the client layout of a station record.
type StationJSON struct {
	ID                int64   `json:"id"`
	Lon               float64 `json:"lon"`
	Lat               float64 `json:"lat"`
	WaterDepth        float64 `json:"waterDepth"`
	WaterLevel        float64 `json:"waterLevel"`
	VelocityMagnitude float64 `json:"velocityMagnitude"`
	StationName       string  `json:"stationName"`
	Time              string  `json:"time"`
}

// RiskLevelJSON is one entry of the risk vocabulary.
type RiskLevelJSON struct {
	Level int    `json:"level"`
	Label string `json:"label"`
}

func GridToJSON(records []domain.GridRecord) []GridJSON {
	out := make([]GridJSON, len(records))
	for i, r := range records {
		coords := make([][2]float64, len(r.Longitudes))
		for k := range r.Longitudes {
			coords[k] = [2]float64{r.Latitudes[k], r.Longitudes[k]}
		}
		out[i] = GridJSON{
			ID:          r.ID,
			Coordinates: coords,
			WaterDepth:  r.WaterDepth,
			Risk:        r.Risk,
			Time:        domain.Decode(r.Timestamp),
		}
	}
	return out
}

func StationsToJSON(records []domain.StationRecord) []StationJSON {
	out := make([]StationJSON, len(records))
	for i, r := range records {
		out[i] = StationJSON{
			ID:                r.ID,
			Lon:               r.Longitude,
			Lat:               r.Latitude,
			WaterDepth:        r.WaterDepth,
			WaterLevel:        r.WaterLevel,
			VelocityMagnitude: r.VelocityMagnitude,
			StationName:       r.StationName,
			Time:              domain.Decode(r.Timestamp),
		}
	}
	return out
}

// TimestampsToJSON decodes timestamps into the text form, keeping order.
func TimestampsToJSON(ts []int64) []string {
	out := make([]string, len(ts))
	for i, v := range ts {
		out[i] = domain.Decode(v)
	}
	return out
}

// RiskLevels returns the fixed risk vocabulary.
func RiskLevels() []RiskLevelJSON {
	out := make([]RiskLevelJSON, len(domain.RiskLevels))
	for i, l := range domain.RiskLevels {
		out[i] = RiskLevelJSON{Level: int(l), Label: l.Label()}
	}
	return out
}
