// Package metrics - Ratio threshold accuracy (δ-accuracy) for depth-like grids.
package metrics

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// Conventional thresholds: 1.25, 1.25² and 1.25³.
const (
	Delta1 = 1.25
	Delta2 = 1.25 * 1.25
	Delta3 = 1.25 * 1.25 * 1.25
)

// ThresholdAccuracy is the percentage of valid cells whose symmetric ratio
// max(p/t, t/p) stays below a threshold.
//
// A reference cell is valid when it is strictly greater than zero, so the ignore
// sentinel and zero-depth cells are both excluded. A valid cell whose prediction
// is zero, negative or NaN counts as failing the threshold.
type ThresholdAccuracy struct {
	threshold float32
}

// NewThresholdAccuracy builds the metric.
//
// Arguments:
//   - threshold: The ratio bound, e.g. Delta1. Must be a positive finite number.
//
// Returns:
//   - *ThresholdAccuracy: The metric.
//   - error: A wrapped ErrConfiguration for a non-positive or non-finite threshold.
func NewThresholdAccuracy(threshold float64) (*ThresholdAccuracy, error) {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "threshold must be a positive finite number, got %v", threshold)
	}
	return &ThresholdAccuracy{threshold: float32(threshold)}, nil
}

// Threshold returns the configured ratio bound.
func (a *ThresholdAccuracy) Threshold() float64 {
	return float64(a.threshold)
}

// Evaluate returns 100 × (cells with ratio < threshold) / (valid cells).
//
// Returns:
//   - float64: The accuracy in [0, 100]; 0 when no reference cell is positive.
//   - error: A wrapped ErrShapeMismatch.
func (a *ThresholdAccuracy) Evaluate(prediction, reference Grid) (float64, error) {
	if err := checkShapes(prediction, reference); err != nil {
		return 0, err
	}

	valid, correct := 0, 0
	for i, t := range reference.Data {
		if !(t > 0) {
			continue
		}
		valid++

		p := prediction.Data[i]
		if !(p > 0) {
			continue
		}
		if ratio := math32.Max(p/t, t/p); ratio < a.threshold {
			correct++
		}
	}

	if valid == 0 {
		return 0, nil
	}
	return 100 * float64(correct) / float64(valid), nil
}
