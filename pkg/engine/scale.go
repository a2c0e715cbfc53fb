package engine

import (
	"math"
	"slices"
	"sort"

	"github.com/m-mizutani/goerr/v2"
)

// MaxScaleNumber is the upper end of the continuous scales
const MaxScaleNumber = 5

var (
	// DefaultProbabilityThresholds are the lower bounds of probability classes 1..5
	DefaultProbabilityThresholds = []float64{0.0001, 0.001, 0.01, 0.1, 1}

	// DefaultImpactThresholds are the lower bounds of impact classes 1..5, in euros
	DefaultImpactThresholds = []float64{1.6e6, 1.6e7, 1.6e8, 1.6e9, 1.6e10}
)

// Scale maps magnitudes onto the continuous 0..5 scale. Between two class
// bounds the position is interpolated logarithmically; below the first bound
// it is linear from 0.
type Scale struct {
	Thresholds []float64
}

// NewScale creates a scale from ascending, positive class bounds
func NewScale(thresholds []float64) (Scale, error) {
	if len(thresholds) != MaxScaleNumber {
		return Scale{}, goerr.New("scale needs one threshold per class", goerr.V("count", len(thresholds)))
	}
	for i, t := range thresholds {
		if !(t > 0) || math.IsInf(t, 0) {
			return Scale{}, goerr.New("scale threshold must be positive", goerr.V("index", i), goerr.V("value", t))
		}
	}
	if !sort.Float64sAreSorted(thresholds) {
		return Scale{}, goerr.New("scale thresholds must be ascending", goerr.V("thresholds", thresholds))
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] == thresholds[i-1] {
			return Scale{}, goerr.New("scale thresholds must be distinct", goerr.V("index", i))
		}
	}

	t := make([]float64, len(thresholds))
	copy(t, thresholds)
	return Scale{Thresholds: t}, nil
}

// Number returns the position of v on the scale
func (sc Scale) Number(v float64) float64 {
	t := sc.Thresholds
	if len(t) == 0 || !(v > 0) {
		return 0
	}
	if v < t[0] {
		return v / t[0]
	}
	for k := 0; k < len(t)-1; k++ {
		if v < t[k+1] {
			return float64(k+1) + math.Log(v/t[k])/math.Log(t[k+1]/t[k])
		}
	}
	return MaxScaleNumber
}

// Scales groups the probability and impact scales used by the metrics
type Scales struct {
	Probability Scale
	Impact      Scale
}

// DefaultScales returns the scales built from the default thresholds
func DefaultScales() Scales {
	return Scales{
		Probability: Scale{Thresholds: slices.Clone(DefaultProbabilityThresholds)},
		Impact:      Scale{Thresholds: slices.Clone(DefaultImpactThresholds)},
	}
}
