package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// GridRecord is one wet face at one timestep.
type GridRecord struct {
	ID         int64
	ProjectID  int64
	Longitudes []float64
	Latitudes  []float64
	WaterDepth float64
	Risk       int
	Timestamp  int64
}

// StationRecord is one station sample at one timestep.
type StationRecord struct {
	ID                int64
	ProjectID         int64
	StationName       string
	Longitude         float64
	Latitude          float64
	WaterDepth        float64
	WaterLevel        float64
	VelocityMagnitude float64
	Timestamp         int64
}

// RoundDecimal rounds to the two decimal places kept by storage.
func RoundDecimal(v float64) float64 {
	return math.Round(v*100) / 100
}

// Normalize applies the storage rounding. Stores call it before computing the
// content key so that keys depend only on stored values.
func (r GridRecord) Normalize() GridRecord {
	r.WaterDepth = RoundDecimal(r.WaterDepth)
	return r
}

// Normalize applies the storage rounding to every decimal series value.
func (r StationRecord) Normalize() StationRecord {
	r.WaterDepth = RoundDecimal(r.WaterDepth)
	r.WaterLevel = RoundDecimal(r.WaterLevel)
	r.VelocityMagnitude = RoundDecimal(r.VelocityMagnitude)
	return r
}

// ContentKey is a deterministic SHA-256 over every persisted field of the
// record. Two records share a key only when the full tuple is equal, which is
// what lets upserts use ON CONFLICT DO NOTHING.
func (r GridRecord) ContentKey() string {
	var b strings.Builder
	b.WriteString("grid|")
	b.WriteString(strconv.FormatInt(r.ProjectID, 10))
	b.WriteByte('|')
	writeFloats(&b, r.Longitudes)
	b.WriteByte('|')
	writeFloats(&b, r.Latitudes)
	b.WriteByte('|')
	b.WriteString(formatFloat(r.WaterDepth))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(r.Risk))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(r.Timestamp, 10))
	return hashKey(b.String())
}

// ContentKey is a deterministic SHA-256 over every persisted field.
func (r StationRecord) ContentKey() string {
	fields := []string{
		"station",
		strconv.FormatInt(r.ProjectID, 10),
		r.StationName,
		formatFloat(r.Longitude),
		formatFloat(r.Latitude),
		formatFloat(r.WaterDepth),
		formatFloat(r.WaterLevel),
		formatFloat(r.VelocityMagnitude),
		strconv.FormatInt(r.Timestamp, 10),
	}
	return hashKey(strings.Join(fields, "|"))
}

func writeFloats(b *strings.Builder, vs []float64) {
	for i, v := range vs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(formatFloat(v))
	}
}

// formatFloat is the shortest representation that round-trips exactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// UpsertOutcome tells whether an upsert created a row.
type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota + 1
	Duplicate
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// UpsertResult carries the new row id when Outcome is Inserted.
type UpsertResult struct {
	Outcome UpsertOutcome
	ID      int64
}
