package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimeLayout is the external date-time format for every timestamp parameter.
const TimeLayout = "2006-01-02 15:04:05"

// referenceEpoch is the origin of every stored timestamp.
var referenceEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// Encode converts a "YYYY-MM-DD HH:MM:SS" string into whole seconds since the
// reference epoch. The string is read as a naive instant; fractional seconds
// are accepted and truncated toward zero.
func Encode(s string) (int64, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	return sinceEpoch(t), nil
}

// Decode formats seconds since the reference epoch as "YYYY-MM-DD HH:MM:SS".
func Decode(seconds int64) string {
	return time.Unix(referenceEpoch.Unix()+seconds, 0).UTC().Format(TimeLayout)
}

func sinceEpoch(t time.Time) int64 {
	diff := t.Unix() - referenceEpoch.Unix()
	// Unix floors; move sub-second instants before the epoch back toward zero.
	if diff < 0 && t.Nanosecond() > 0 {
		diff++
	}
	return diff
}

// TimeAxis is a netCDF time coordinate: raw values plus their units attribute.
type TimeAxis struct {
	Values []float64
	Units  string
}

// Len returns the number of timesteps.
func (a TimeAxis) Len() int { return len(a.Values) }

// Seconds converts every raw value into seconds since the reference epoch.
func (a TimeAxis) Seconds() ([]int64, error) {
	scale, offset, err := ParseTimeUnits(a.Units)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(a.Values))
	for i, v := range a.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: time value %d is not finite", ErrMalformedMesh, i)
		}
		out[i] = offset + int64(math.Trunc(v*scale))
	}
	return out, nil
}

// ParseTimeUnits decodes a CF time units attribute such as
// "seconds since 2001-01-01 00:00:00" into a scale (seconds per unit) and the
// offset of its origin from the reference epoch. An empty string means the
// values are already seconds since the reference epoch.
func ParseTimeUnits(units string) (scale float64, offset int64, err error) {
	units = strings.TrimSpace(units)
	if units == "" {
		return 1, 0, nil
	}

	unit, origin, ok := strings.Cut(units, " since ")
	if !ok {
		return 0, 0, fmt.Errorf("%w: unsupported time units %q", ErrMalformedMesh, units)
	}

	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "s", "sec", "secs", "second", "seconds":
		scale = 1
	case "min", "mins", "minute", "minutes":
		scale = 60
	case "h", "hr", "hrs", "hour", "hours":
		scale = 3600
	case "d", "day", "days":
		scale = 86400
	default:
		return 0, 0, fmt.Errorf("%w: unsupported time unit %q", ErrMalformedMesh, unit)
	}

	ref, err := parseOrigin(origin)
	if err != nil {
		return 0, 0, err
	}
	return scale, sinceEpoch(ref), nil
}

// parseOrigin accepts the origin forms found in model output: a full
// date-time, an ISO "T" separated date-time, or a bare date. Trailing zone
// designators are ignored.
func parseOrigin(origin string) (time.Time, error) {
	origin = strings.TrimSpace(origin)
	origin = strings.TrimSuffix(origin, "Z")
	origin = strings.TrimSuffix(origin, " UTC")
	origin = strings.TrimSuffix(origin, " +00:00")
	origin = strings.TrimSpace(origin)

	for _, layout := range []string{TimeLayout, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, origin); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unsupported time origin %q", ErrMalformedMesh, origin)
}
