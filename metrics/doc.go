// Package metrics scores a predicted map against a reference map.
//
// Two metrics are provided:
//
//   - QuantizedIoU partitions [0, 1] into ordered bins, reduces every cell of both
//     maps to a bin index and reports the mean per-bin Intersection over Union,
//     either over all bins or over a contiguous sub-range selected by value
//     thresholds (at most, greater than, between).
//   - ThresholdAccuracy reports the percentage of cells whose prediction/reference
//     ratio stays below a bound (the δ < 1.25ⁿ accuracies used for depth maps).
//
// Reference cells equal to IgnoreValue (-1) carry no ground truth and are excluded
// from QuantizedIoU; ThresholdAccuracy only considers strictly positive reference
// cells. Degenerate inputs resolve to numbers rather than errors: a fully masked
// reference scores 0, a bin empty in both maps scores 1 and an empty bin range
// scores 0.
//
// Engines are immutable after construction and safe for concurrent use.
package metrics
