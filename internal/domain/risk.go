package domain

import "math"

// RiskLevel is the 1–4 flood severity class of a face at one timestep.
type RiskLevel int

const (
	RiskLow      RiskLevel = 1
	RiskMedium   RiskLevel = 2
	RiskElevated RiskLevel = 3
	RiskHigh     RiskLevel = 4
)

// RiskLevels lists the vocabulary in ascending severity.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskElevated, RiskHigh}

// Label returns the textual warning level, or "unknown" outside 1–4.
func (r RiskLevel) Label() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskElevated:
		return "elevated"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ClassifyRisk truncates a raw classification value to its level. NaN, such
// as a decoded fill marker, and values outside the int32 range give 0, which
// labels as unknown.
func ClassifyRisk(v float64) int {
	if math.IsNaN(v) || v < math.MinInt32 || v > math.MaxInt32 {
		return 0
	}
	return int(v)
}
