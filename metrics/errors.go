// Package metrics - Error kinds surfaced by the metric engines.
package metrics

import "github.com/pkg/errors"

var (
	// ErrConfiguration is returned when a bin partition, epsilon or threshold is malformed.
	ErrConfiguration = errors.New("invalid metric configuration")
	// ErrShapeMismatch is returned when prediction and reference grids differ in shape.
	ErrShapeMismatch = errors.New("prediction and reference shapes differ")
	// ErrRange is returned when a value handed to bin-index conversion lies outside [0, 1].
	ErrRange = errors.New("value outside [0, 1]")
)

// checkShapes returns a wrapped ErrShapeMismatch when the two grids cannot be compared cell by cell.
func checkShapes(prediction, reference Grid) error {
	if !prediction.SameShape(reference) {
		return errors.Wrapf(ErrShapeMismatch, "prediction %v, reference %v", prediction.Shape, reference.Shape)
	}
	if len(prediction.Data) != len(reference.Data) {
		return errors.Wrapf(ErrShapeMismatch, "prediction holds %d cells, reference holds %d",
			len(prediction.Data), len(reference.Data))
	}
	return nil
}
