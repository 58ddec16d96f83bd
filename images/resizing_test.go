package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func getTestImage() image.Image {
	// Create a simple 100x100 red image.
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}
	return img
}

// Helper functions to create test data for different formats.
func getJPEGBytes(t testing.TB) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, getTestImage(), nil))
	return buf.Bytes()
}

func getPNGBytes(t testing.TB) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, getTestImage()))
	return buf.Bytes()
}

func getBMPBytes(t testing.TB) []byte {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, getTestImage()))
	return buf.Bytes()
}

// stripes returns a width x 1 gray image alternating 0 and 255.
func stripes(width int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, 1))
	for x := 0; x < width; x++ {
		if x%2 == 1 {
			img.SetGray(x, 0, color.Gray{Y: 255})
		}
	}
	return img
}

func grayRow(t *testing.T, img image.Image) []uint8 {
	t.Helper()
	b := img.Bounds()
	out := make([]uint8, 0, b.Dx())
	for x := b.Min.X; x < b.Max.X; x++ {
		out = append(out, color.GrayModel.Convert(img.At(x, b.Min.Y)).(color.Gray).Y)
	}
	return out
}

func TestResizeNearestKeepsSameSize(t *testing.T) {
	img := getTestImage()
	assert.Same(t, img, ResizeNearest(img, 100, 100))
}

func TestResizeNearest(t *testing.T) {
	tests := []struct {
		name  string
		src   image.Image
		width int
		want  []uint8
	}{
		{"downscale picks floor pixel", stripes(4), 2, []uint8{0, 0}},
		{"downscale odd factor", stripes(6), 2, []uint8{0, 255}},
		{"upscale repeats pixels", stripes(2), 4, []uint8{0, 0, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ResizeNearest(tt.src, tt.width, 1)
			assert.Equal(t, tt.width, out.Bounds().Dx())
			assert.Equal(t, tt.want, grayRow(t, out))
		})
	}
}

func TestResizeNearestOffsetBounds(t *testing.T) {
	src := stripes(4).SubImage(image.Rect(1, 0, 3, 1))
	out := ResizeNearest(src, 4, 1)
	assert.Equal(t, []uint8{255, 255, 0, 0}, grayRow(t, out))
}

func BenchmarkResizeNearest(b *testing.B) {
	img := getTestImage()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ResizeNearest(img, DefaultInputSize, DefaultInputSize)
	}
}
