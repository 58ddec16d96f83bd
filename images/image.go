// Package images - Image definition for processing utilities.
package images

import (
	"bytes"
	"fmt"
	"image"
)

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// NewImage wraps encoded image data, detecting its format and dimensions.
//
// Arguments:
//   - data: The encoded image. Not copied.
//
// Returns:
//   - *Image: The image.
//   - error: An error if the data is not a supported image.
func NewImage(data []byte) (*Image, error) {
	format, cfg, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}
	return &Image{Format: format, Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// Decode decodes the image data.
func (i *Image) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(i.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", i.Format, err)
	}
	return img, nil
}
