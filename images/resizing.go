// Package images - Resizing helpers.
package images

import (
	"image"

	"github.com/nfnt/resize"
)

// ResizeNearest resizes img to width x height. Every output pixel is a copy of
// the source pixel at floor(dst * src / dst), so no two source pixels are ever
// mixed, whichever way the image is scaled.
// The source is returned unchanged when it already has the requested size.
//
// Arguments:
//   - img: The image to resize.
//   - width: The target width.
//   - height: The target height.
//
// Returns:
//   - image.Image: The resized image, in straight (non-premultiplied) RGBA.
func ResizeNearest(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == width && sh == height {
		return img
	}
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	if sw == 0 || sh == 0 {
		return out
	}
	cols := make([]int, width)
	for x := range cols {
		cols[x] = b.Min.X + x*sw/width
	}
	for y := 0; y < height; y++ {
		sy := b.Min.Y + y*sh/height
		for x, sx := range cols {
			out.Set(x, y, img.At(sx, sy))
		}
	}
	return out
}

// resizeSmooth resizes img with bilinear filtering for display.
func resizeSmooth(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear)
}
