// Package images - Supported image formats.
package images

import (
	"bytes"
	"fmt"
	"image"

	// Registered decoders.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageFormat represents supported image formats.
type ImageFormat string

// ImageFormat constants.
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
)

var supportedFormats = map[ImageFormat]bool{
	FormatJPEG: true,
	FormatPNG:  true,
	FormatWebP: true,
	FormatBMP:  true,
}

// DetectFormat sniffs the format and dimensions of encoded image data.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - ImageFormat: The detected format.
//   - image.Config: The color model and dimensions.
//   - error: An error if the data is not a supported image.
func DetectFormat(data []byte) (ImageFormat, image.Config, error) {
	if len(data) == 0 {
		return "", image.Config{}, fmt.Errorf("empty image data")
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", image.Config{}, fmt.Errorf("failed to detect image format: %w", err)
	}
	f := ImageFormat(name)
	if !supportedFormats[f] {
		return "", image.Config{}, fmt.Errorf("unsupported image format %q", name)
	}
	return f, cfg, nil
}
