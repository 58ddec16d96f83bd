// Package metrics - Grid definition shared by every metric.
package metrics

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// IgnoreValue marks a reference cell that carries no ground truth.
const IgnoreValue float32 = -1

// Grid is a dense, row-major array of float32 values with an explicit shape.
//
// Grids are owned by the caller and are never modified by the metric engines.
type Grid struct {
	// Shape holds the size of each dimension, e.g. [H, W] or [N, H, W].
	Shape []int `json:"shape" yaml:"shape"`
	// Data holds the cell values in row-major order.
	Data []float32 `json:"data" yaml:"data"`
}

// NewGrid validates that data fits shape exactly and wraps both in a Grid.
//
// Arguments:
//   - shape: The size of each dimension. Every dimension must be positive.
//   - data: The cell values in row-major order.
//
// Returns:
//   - Grid: The wrapped grid. Neither slice is copied.
//   - error: ErrShapeMismatch if the shape is empty, has a non-positive dimension,
//     or its volume differs from len(data).
//
// Example:
//
// ```go
//
//	g, err := NewGrid([]int{2, 2}, []float32{0.1, 0.2, 0.3, -1})
//
// ```
func NewGrid(shape []int, data []float32) (Grid, error) {
	if len(shape) == 0 {
		return Grid{}, errors.Wrap(ErrShapeMismatch, "grid shape is empty")
	}
	volume := 1
	for i, d := range shape {
		if d <= 0 {
			return Grid{}, errors.Wrapf(ErrShapeMismatch, "dimension %d has size %d", i, d)
		}
		volume *= d
	}
	if volume != len(data) {
		return Grid{}, errors.Wrapf(ErrShapeMismatch, "shape %v holds %d cells, got %d values",
			shape, volume, len(data))
	}
	return Grid{Shape: shape, Data: data}, nil
}

// MustGrid is NewGrid that panics on error. Intended for tests and literals.
func MustGrid(shape []int, data []float32) Grid {
	g, err := NewGrid(shape, data)
	if err != nil {
		panic(err)
	}
	return g
}

// Len returns the number of cells in the grid.
func (g Grid) Len() int {
	return len(g.Data)
}

// SameShape reports whether both grids have identical dimensions.
func (g Grid) SameShape(o Grid) bool {
	if len(g.Shape) != len(o.Shape) {
		return false
	}
	for i := range g.Shape {
		if g.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// HasNaN reports whether any cell of the grid is NaN.
func (g Grid) HasNaN() bool {
	for _, v := range g.Data {
		if math32.IsNaN(v) {
			return true
		}
	}
	return false
}

func (g Grid) String() string {
	return fmt.Sprintf("Grid%v(%d cells)", g.Shape, len(g.Data))
}

// ValidMask derives the ignore mask of a reference grid: a cell is valid unless it
// equals IgnoreValue. The mask never depends on a prediction grid.
//
// Returns:
//   - []bool: One entry per cell, true where the cell takes part in IoU computation.
//   - int: The number of valid cells.
func ValidMask(reference Grid) ([]bool, int) {
	mask := make([]bool, len(reference.Data))
	count := 0
	for i, v := range reference.Data {
		if v != IgnoreValue {
			mask[i] = true
			count++
		}
	}
	return mask, count
}

// GridFromDense adapts a gorgonia tensor into a Grid.
//
// Float32 backings are shared, float64 backings are converted into a new slice.
// Any other dtype is rejected.
//
// Arguments:
//   - t: The dense tensor, typically the output of an inference collaborator.
//
// Returns:
//   - Grid: The grid view of the tensor.
//   - error: An error if the tensor is nil, has an unsupported dtype or an invalid shape.
func GridFromDense(t *tensor.Dense) (Grid, error) {
	if t == nil {
		return Grid{}, errors.New("tensor is nil")
	}
	shape := append([]int(nil), t.Shape()...)

	switch backing := t.Data().(type) {
	case []float32:
		return NewGrid(shape, backing)
	case []float64:
		data := make([]float32, len(backing))
		for i, v := range backing {
			data[i] = float32(v)
		}
		return NewGrid(shape, data)
	case float32:
		return NewGrid([]int{1}, []float32{backing})
	case float64:
		return NewGrid([]int{1}, []float32{float32(backing)})
	default:
		return Grid{}, errors.Errorf("unsupported tensor dtype %v", t.Dtype())
	}
}
