package images

import (
	"bytes"
	"image"
	"image/color/palette"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	for name, tc := range map[string]struct {
		data []byte
		want ImageFormat
	}{
		"jpeg": {getJPEGBytes(t), FormatJPEG},
		"png":  {getPNGBytes(t), FormatPNG},
		"bmp":  {getBMPBytes(t), FormatBMP},
	} {
		t.Run(name, func(t *testing.T) {
			f, cfg, err := DetectFormat(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, f)
			assert.Equal(t, 100, cfg.Width)
			assert.Equal(t, 100, cfg.Height)
		})
	}

	_, _, err := DetectFormat(nil)
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, image.NewPaletted(image.Rect(0, 0, 2, 2), palette.Plan9), nil))
	_, _, err = DetectFormat(buf.Bytes())
	assert.Error(t, err, "gif is not a supported format")
}

func TestNewImage(t *testing.T) {
	img, err := NewImage(getPNGBytes(t))
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, img.Format)
	assert.Equal(t, 100, img.Width)

	decoded, err := img.Decode()
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dy())
}
