// Package images - Side-by-side comparison of a prediction with its reference.
package images

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-daylight/metrics"
	"github.com/pkg/errors"
)

// Comparison renders four panels of the reference size from left to right: the
// input image, the reference map, the prediction and the absolute difference
// between the two maps. Map values are clamped to [0, 1] and drawn in gray.
// Ignored reference cells and NaN predictions are left transparent.
//
// Arguments:
//   - input: The image the prediction was made from. Scaled to the reference size.
//   - reference: The [height, width] reference map.
//   - prediction: The prediction, already aligned to the reference shape.
//
// Returns:
//   - *image.NRGBA: An image of size 4*width x height.
//   - error: An error if the reference is not a map or the shapes differ.
func Comparison(input image.Image, reference, prediction metrics.Grid) (*image.NRGBA, error) {
	if len(reference.Shape) != 2 {
		return nil, fmt.Errorf("map must be two-dimensional, got shape %v", reference.Shape)
	}
	if !reference.SameShape(prediction) {
		return nil, errors.Wrapf(metrics.ErrShapeMismatch, "reference %v, prediction %v", reference.Shape, prediction.Shape)
	}
	h, w := reference.Shape[0], reference.Shape[1]
	out := image.NewNRGBA(image.Rect(0, 0, 4*w, h))

	panel := resizeSmooth(input, w, h)
	draw.Draw(out, image.Rect(0, 0, w, h), panel, panel.Bounds().Min, draw.Src)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ref := reference.Data[y*w+x]
			pred := prediction.Data[y*w+x]
			refOK := ref != metrics.IgnoreValue && !math32.IsNaN(ref)
			predOK := !math32.IsNaN(pred)

			if refOK {
				out.SetNRGBA(w+x, y, gray(ref))
			}
			if predOK {
				out.SetNRGBA(2*w+x, y, gray(pred))
			}
			if refOK && predOK {
				out.SetNRGBA(3*w+x, y, gray(math32.Abs(clamp01(pred)-clamp01(ref))))
			}
		}
	}
	return out, nil
}

func clamp01(v float32) float32 {
	return math32.Min(math32.Max(v, 0), 1)
}

func gray(v float32) color.NRGBA {
	u := uint8(clamp01(v)*255 + 0.5)
	return color.NRGBA{R: u, G: u, B: u, A: 0xff}
}
