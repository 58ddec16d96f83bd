// Package metrics - Quantized Intersection over Union between two value grids.
package metrics

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// DefaultEpsilon is added to every IoU denominator.
const DefaultEpsilon = 1e-6

// BinScore is the agreement of one bin between a prediction and a reference grid.
type BinScore struct {
	// Bin is the bin index.
	Bin int `json:"bin"`
	// Lower and Upper are the bin edges.
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	// Intersection is the number of valid cells placed in the bin by both grids.
	Intersection int `json:"intersection"`
	// Union is the number of valid cells placed in the bin by either grid.
	Union int `json:"union"`
	// IoU is Intersection / (Union + epsilon), or exactly 1 when Union is 0.
	IoU float64 `json:"iou"`
}

// QuantizedIoU scores how well a predicted grid agrees with a reference grid once
// both are reduced to bin indices.
//
// Reference cells equal to IgnoreValue are excluded, together with the prediction
// cells at the same positions. The partition and epsilon are fixed at
// construction, so a QuantizedIoU is safe for concurrent use.
type QuantizedIoU struct {
	binner  *Binner
	epsilon float64
}

// NewQuantizedIoU builds an engine over the given partition.
//
// Arguments:
//   - spec: The bin partition.
//   - epsilon: Added to every IoU denominator. Must be finite and non-negative.
//
// Returns:
//   - *QuantizedIoU: The engine.
//   - error: A wrapped ErrConfiguration if the partition or epsilon is malformed.
//
// Example:
//
// ```go
//
//	engine, err := NewQuantizedIoU(Explicit(0.0, 0.5, 1.0), DefaultEpsilon)
//	if err != nil {
//	    return err
//	}
//	score, err := engine.Mean(prediction, reference)
//
// ```
func NewQuantizedIoU(spec PartitionSpec, epsilon float64) (*QuantizedIoU, error) {
	if math.IsNaN(epsilon) || math.IsInf(epsilon, 0) || epsilon < 0 {
		return nil, errors.Wrapf(ErrConfiguration, "epsilon must be finite and non-negative, got %v", epsilon)
	}
	binner, err := NewBinner(spec)
	if err != nil {
		return nil, err
	}
	return &QuantizedIoU{binner: binner, epsilon: epsilon}, nil
}

// Binner returns the engine's binner.
func (q *QuantizedIoU) Binner() *Binner {
	return q.binner
}

// Epsilon returns the denominator offset.
func (q *QuantizedIoU) Epsilon() float64 {
	return q.epsilon
}

// Mean returns the mean IoU over all bins.
func (q *QuantizedIoU) Mean(prediction, reference Grid) (float64, error) {
	return q.MeanRange(prediction, reference, q.binner.All())
}

// MeanAtMost returns the mean IoU over the bins up to and including the bin
// containing maxValue.
func (q *QuantizedIoU) MeanAtMost(prediction, reference Grid, maxValue float64) (float64, error) {
	if err := checkShapes(prediction, reference); err != nil {
		return 0, err
	}
	r, err := q.binner.AtMost(maxValue)
	if err != nil {
		return 0, errors.Wrap(err, "max value")
	}
	return q.MeanRange(prediction, reference, r)
}

// MeanGreaterThan returns the mean IoU over the bins strictly after the bin
// containing minValue. When minValue falls into the last bin the range is empty
// and the result is 0.
func (q *QuantizedIoU) MeanGreaterThan(prediction, reference Grid, minValue float64) (float64, error) {
	if err := checkShapes(prediction, reference); err != nil {
		return 0, err
	}
	r, err := q.binner.GreaterThan(minValue)
	if err != nil {
		return 0, errors.Wrap(err, "min value")
	}
	return q.MeanRange(prediction, reference, r)
}

// MeanBetween returns the mean IoU over the bins from the bin containing minValue
// to the bin containing maxValue, inclusive. A reversed pair returns 0.
func (q *QuantizedIoU) MeanBetween(prediction, reference Grid, minValue, maxValue float64) (float64, error) {
	if err := checkShapes(prediction, reference); err != nil {
		return 0, err
	}
	r, err := q.binner.Between(minValue, maxValue)
	if err != nil {
		return 0, errors.Wrap(err, "between")
	}
	return q.MeanRange(prediction, reference, r)
}

// MeanRange returns the unweighted mean IoU over an inclusive range of bin indices.
//
// Arguments:
//   - prediction: The predicted grid.
//   - reference: The reference grid; cells equal to IgnoreValue are excluded.
//   - r: The bins to aggregate. A non-empty range must lie within [0, k-1].
//
// Returns:
//   - float64: The mean IoU. 0 when the range is empty or no reference cell is valid.
//   - error: A wrapped ErrShapeMismatch or ErrRange.
func (q *QuantizedIoU) MeanRange(prediction, reference Grid, r BinRange) (float64, error) {
	if err := checkShapes(prediction, reference); err != nil {
		return 0, err
	}
	if !r.Empty() && (r.Lo < 0 || r.Hi >= q.binner.NumBins()) {
		return 0, errors.Wrapf(ErrRange, "bin range %v outside [0, %d]", r, q.binner.NumBins()-1)
	}

	return RangeMean(q.scores(prediction, reference), r), nil
}

// RangeMean averages the IoU of the bins in r.
//
// Arguments:
//   - scores: Per-bin scores as returned by PerBin.
//   - r: The bins to aggregate; must lie within scores when non-empty.
//
// Returns:
//   - float64: The mean IoU. 0 when scores is nil or r is empty.
//
// Example:
//
//	scores, _ := q.PerBin(pred, ref)
//	low := metrics.RangeMean(scores, lowRange)
func RangeMean(scores []BinScore, r BinRange) float64 {
	if scores == nil || r.Empty() {
		return 0
	}
	selected := make([]float64, 0, r.Len())
	for i := r.Lo; i <= r.Hi; i++ {
		selected = append(selected, scores[i].IoU)
	}
	return stat.Mean(selected, nil)
}

// PerBin returns the score of every bin.
//
// Returns:
//   - []BinScore: One entry per bin, in bin order. Nil when no reference cell is valid.
//   - error: A wrapped ErrShapeMismatch.
func (q *QuantizedIoU) PerBin(prediction, reference Grid) ([]BinScore, error) {
	if err := checkShapes(prediction, reference); err != nil {
		return nil, err
	}
	return q.scores(prediction, reference), nil
}

// scores quantizes both grids over the valid cells and reduces them to per-bin
// intersection and union counts in a single pass. |P ∪ T| = |P| + |T| - |P ∩ T|.
func (q *QuantizedIoU) scores(prediction, reference Grid) []BinScore {
	mask, valid := ValidMask(reference)
	if valid == 0 {
		return nil
	}

	k := q.binner.NumBins()
	predBins := q.binner.Quantize(prediction, mask)
	refBins := q.binner.Quantize(reference, mask)

	predCount := make([]int, k)
	refCount := make([]int, k)
	inter := make([]int, k)
	for i := range predBins {
		p, t := predBins[i], refBins[i]
		if p >= 0 {
			predCount[p]++
		}
		if t >= 0 {
			refCount[t]++
		}
		if p >= 0 && p == t {
			inter[p]++
		}
	}

	scores := make([]BinScore, k)
	for i := 0; i < k; i++ {
		lower, upper := q.binner.Bounds(i)
		union := predCount[i] + refCount[i] - inter[i]
		iou := 1.0
		if union > 0 {
			iou = float64(inter[i]) / (float64(union) + q.epsilon)
		}
		scores[i] = BinScore{
			Bin:          i,
			Lower:        lower,
			Upper:        upper,
			Intersection: inter[i],
			Union:        union,
			IoU:          iou,
		}
	}
	return scores
}
