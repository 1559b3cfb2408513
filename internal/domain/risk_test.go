package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRisk(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{2, 2},
		{3.9, 3},
		{4, 4},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
		{1e300, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyRisk(tc.in), "%v", tc.in)
	}
	assert.Equal(t, "unknown", RiskLevel(ClassifyRisk(math.NaN())).Label())
}
