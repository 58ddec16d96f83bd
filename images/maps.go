// Package images - Conversion between encoded value maps and metric grids.
package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-daylight/metrics"
)

// DecodeMap decodes a single-channel value map such as a depth or light map.
//
// Pixel luminance is scaled to [0, 1] at 16-bit precision. Fully transparent
// pixels become metrics.IgnoreValue so they drop out of the metrics.
//
// Arguments:
//   - data: The encoded map in any supported format.
//   - height: The target height, or 0 to keep the source height.
//   - width: The target width, or 0 to keep the source width.
//
// Returns:
//   - metrics.Grid: A grid of shape [height, width].
//   - error: An error if the data cannot be decoded.
//
// Example:
//
//	ref, err := images.DecodeMap(pngBytes, 384, 384)
//	if err != nil {
//	    log.Fatal(err)
//	}
func DecodeMap(data []byte, height, width int) (metrics.Grid, error) {
	img, err := NewImage(data)
	if err != nil {
		return metrics.Grid{}, err
	}
	decoded, err := img.Decode()
	if err != nil {
		return metrics.Grid{}, err
	}
	if height <= 0 {
		height = img.Height
	}
	if width <= 0 {
		width = img.Width
	}
	return ResizeGrid(MapFromImage(decoded), height, width)
}

// ResizeGrid resamples a [height, width] grid with nearest-neighbour index mapping,
// source = floor(dst * src / dst). Every output cell is a copy of one source cell,
// so IgnoreValue cells are never blended with their neighbours.
//
// Arguments:
//   - g: The grid to resize.
//   - height: The target height.
//   - width: The target width.
//
// Returns:
//   - metrics.Grid: The resized grid; g itself when the shape already matches.
//   - error: An error if g is not two-dimensional or the target size is not positive.
func ResizeGrid(g metrics.Grid, height, width int) (metrics.Grid, error) {
	if len(g.Shape) != 2 {
		return metrics.Grid{}, fmt.Errorf("map must be two-dimensional, got shape %v", g.Shape)
	}
	if height <= 0 || width <= 0 {
		return metrics.Grid{}, fmt.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	sh, sw := g.Shape[0], g.Shape[1]
	if sh == height && sw == width {
		return g, nil
	}

	cols := make([]int, width)
	for x := range cols {
		cols[x] = x * sw / width
	}
	data := make([]float32, height*width)
	for y := 0; y < height; y++ {
		row := g.Data[(y*sh/height)*sw:]
		for x, sx := range cols {
			data[y*width+x] = row[sx]
		}
	}
	return metrics.NewGrid([]int{height, width}, data)
}

// MapFromImage converts a decoded image to a grid of shape [height, width].
func MapFromImage(img image.Image) metrics.Grid {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	data := make([]float32, 0, h*w)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			if c.A == 0 {
				data = append(data, metrics.IgnoreValue)
				continue
			}
			c.A = 0xffff
			g := color.Gray16Model.Convert(c).(color.Gray16)
			data = append(data, float32(g.Y)/0xffff)
		}
	}
	return metrics.MustGrid([]int{h, w}, data)
}

// EncodeMap writes a [height, width] grid as a 16-bit PNG.
//
// Values are clamped to [0, 1]. IgnoreValue and NaN cells are written fully
// transparent so DecodeMap restores them as IgnoreValue.
//
// Arguments:
//   - g: The grid to encode.
//
// Returns:
//   - []byte: The PNG data.
//   - error: An error if the grid is not two-dimensional or encoding fails.
func EncodeMap(g metrics.Grid) ([]byte, error) {
	if len(g.Shape) != 2 {
		return nil, fmt.Errorf("map must be two-dimensional, got shape %v", g.Shape)
	}
	h, w := g.Shape[0], g.Shape[1]
	img := image.NewNRGBA64(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := g.Data[y*w+x]
			if v == metrics.IgnoreValue || math32.IsNaN(v) {
				img.SetNRGBA64(x, y, color.NRGBA64{})
				continue
			}
			u := uint16(math32.Min(math32.Max(v, 0), 1)*0xffff + 0.5)
			img.SetNRGBA64(x, y, color.NRGBA64{R: u, G: u, B: u, A: 0xffff})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode map: %w", err)
	}
	return buf.Bytes(), nil
}
