package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	type args struct {
		values []float64
	}
	tests := []struct {
		name string
		args args
		want float64
	}{
		{name: "empty", args: args{values: nil}, want: 0},
		{name: "single", args: args{values: []float64{5}}, want: 5},
		{name: "odd", args: args{values: []float64{3, 1, 2}}, want: 2},
		{name: "even", args: args{values: []float64{4, 1, 3, 2}}, want: 2.5},
		{name: "unsorted input untouched", args: args{values: []float64{9, 1, 5}}, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Median(tt.args.values))
		})
	}
}

func TestRobustStats(t *testing.T) {
	median, mad := RobustStats([]float64{100000, 100100, 99900, 100050, 120000})
	assert.Equal(t, 100050.0, median)
	assert.Equal(t, 100.0, mad)
}

func TestRobustStatsEmpty(t *testing.T) {
	median, mad := RobustStats(nil)
	assert.Equal(t, 0.0, median)
	assert.Equal(t, 0.0, mad)
}

func TestRobustZ(t *testing.T) {
	// the scale factor makes the score comparable to a classic z-score
	assert.InDelta(t, 134.56, RobustZ(120000, 100050, 100), 0.01)
	assert.InDelta(t, 1.01, RobustZ(100200, 100050, 100), 0.01)
}

func TestRobustZConstantData(t *testing.T) {
	assert.Equal(t, 0.0, RobustZ(42, 10, 0))
	assert.Equal(t, 0.0, RobustZ(42, 10, 1e-11))
}
