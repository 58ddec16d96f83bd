// Package inference - Copying images into and maps out of model tensors.
package inference

import (
	"fmt"

	"github.com/nvr-ai/go-daylight/images"
	"github.com/nvr-ai/go-daylight/metrics"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// PrepareInput copies a preprocessed image into the model input tensor before
// the session runs.
//
// Arguments:
//   - input: The preprocessed image.
//   - dst: The destination tensor to populate.
//
// Returns:
//   - error: An error if the tensor does not hold exactly the image data.
func PrepareInput(input *images.PreprocessingResult, dst *ort.Tensor[float32]) error {
	data := dst.GetData()
	if len(data) != len(input.Data) {
		return fmt.Errorf("destination tensor holds %d floats, image needs %d (shape %v vs %v)",
			len(data), len(input.Data), dst.GetShape(), input.Shape)
	}
	copy(data, input.Data)
	return nil
}

// OutputGrid converts a model output of shape [..., H, W] to an [H, W] grid.
// Leading dimensions must all be 1.
//
// Arguments:
//   - shape: The output tensor shape.
//   - data: The output values. Copied.
//   - scale: Multiplies every value.
//
// Returns:
//   - metrics.Grid: The prediction grid.
//   - error: An error if the shape is not a single-channel map.
func OutputGrid(shape []int64, data []float32, scale float32) (metrics.Grid, error) {
	if len(shape) < 2 {
		return metrics.Grid{}, fmt.Errorf("output shape %v has no spatial dimensions", shape)
	}
	for _, d := range shape[:len(shape)-2] {
		if d != 1 {
			return metrics.Grid{}, fmt.Errorf("output shape %v is not a single map", shape)
		}
	}
	h, w := int(shape[len(shape)-2]), int(shape[len(shape)-1])
	if h <= 0 || w <= 0 || h*w != len(data) {
		return metrics.Grid{}, fmt.Errorf("output shape %v does not match %d values", shape, len(data))
	}

	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	// The view aliases the session's output buffer; MulScalar writes a new backing.
	view := tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data))
	if err := view.Reshape(h, w); err != nil {
		return metrics.Grid{}, errors.Wrapf(err, "output shape %v", shape)
	}
	scaled, err := view.MulScalar(scale, true)
	if err != nil {
		return metrics.Grid{}, errors.Wrap(err, "failed to scale output")
	}
	return metrics.GridFromDense(scaled)
}
