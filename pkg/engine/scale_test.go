package engine_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskcascade/pkg/engine"
)

func TestScale_Number(t *testing.T) {
	sc, err := engine.NewScale([]float64{1, 10, 100, 1000, 10000})
	gt.NoError(t, err).Required()

	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"zero", 0, 0},
		{"negative", -5, 0},
		{"NaN", math.NaN(), 0},
		{"below first class", 0.5, 0.5},
		{"first bound", 1, 1},
		{"second bound", 10, 2},
		{"geometric midpoint", math.Sqrt(10 * 100), 2.5},
		{"last bound", 10000, 5},
		{"beyond last bound", 1e12, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Bool(t, near(sc.Number(tt.value), tt.want, 1e-12)).True()
		})
	}
}

func TestDefaultScales_DoesNotShareThresholds(t *testing.T) {
	want := engine.DefaultProbabilityThresholds[0]
	wantImpact := engine.DefaultImpactThresholds[0]

	scales := engine.DefaultScales()
	scales.Probability.Thresholds[0] = 42
	scales.Impact.Thresholds[0] = 42

	gt.Value(t, engine.DefaultProbabilityThresholds[0]).Equal(want)
	gt.Value(t, engine.DefaultImpactThresholds[0]).Equal(wantImpact)
	gt.Value(t, engine.DefaultScales().Probability.Thresholds[0]).Equal(want)
}

func TestNewScale(t *testing.T) {
	tests := []struct {
		name       string
		thresholds []float64
		wantErr    bool
	}{
		{"defaults", engine.DefaultImpactThresholds, false},
		{"too few", []float64{1, 2, 3}, true},
		{"descending", []float64{5, 4, 3, 2, 1}, true},
		{"duplicate", []float64{1, 2, 2, 3, 4}, true},
		{"zero", []float64{0, 1, 2, 3, 4}, true},
		{"infinite", []float64{1, 2, 3, 4, math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.NewScale(tt.thresholds)
			if tt.wantErr {
				gt.Value(t, err).NotNil()
			} else {
				gt.NoError(t, err)
			}
		})
	}
}
