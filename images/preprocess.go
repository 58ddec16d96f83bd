// Package images - Model input preprocessing.
package images

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// NormalizationType defines how pixel values are normalized.
type NormalizationType int

const (
	// NormalizeMinusOneToOne scales pixel values to [-1, 1] as p/127.5 - 1.
	NormalizeMinusOneToOne NormalizationType = iota
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne
	// NormalizeNone keeps pixel values as 0-255.
	NormalizeNone
)

// DefaultInputSize is the square input resolution of the light-map model.
const DefaultInputSize = 384

// ErrEmptyImage is returned when there is no image data to preprocess.
var ErrEmptyImage = errors.New("empty image data")

// PreprocessorConfig defines the model input layout.
type PreprocessorConfig struct {
	// Width is the model input width.
	Width int `json:"width" yaml:"width"`
	// Height is the model input height.
	Height int `json:"height" yaml:"height"`
	// Normalization selects the pixel value mapping.
	Normalization NormalizationType `json:"normalization" yaml:"normalization"`
}

// DefaultPreprocessorConfig returns the 384x384, [-1, 1] layout.
func DefaultPreprocessorConfig() PreprocessorConfig {
	return PreprocessorConfig{
		Width:         DefaultInputSize,
		Height:        DefaultInputSize,
		Normalization: NormalizeMinusOneToOne,
	}
}

// PreprocessingResult contains the preprocessed image data and metadata.
type PreprocessingResult struct {
	// Data is the float32 tensor data in NCHW order.
	Data []float32
	// Shape is the tensor shape [1, 3, H, W].
	Shape []int
	// OriginalWidth is the image width before preprocessing.
	OriginalWidth int
	// OriginalHeight is the image height before preprocessing.
	OriginalHeight int
}

// Preprocessor turns encoded images into model input tensors.
//
// The pipeline drops any alpha channel, keeps RGB channel order, resizes with
// nearest-neighbour sampling, normalizes, and lays the result out as [1, 3, H, W].
// A Preprocessor holds no mutable state and is safe for concurrent use.
type Preprocessor struct {
	config PreprocessorConfig
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
// - config: The model input layout.
//
// Returns:
// - A configured Preprocessor instance.
// - error if the dimensions are not positive.
//
// @example
// preprocessor, err := NewPreprocessor(DefaultPreprocessorConfig())
func NewPreprocessor(config PreprocessorConfig) (*Preprocessor, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, errors.Errorf("invalid input size %dx%d", config.Width, config.Height)
	}
	switch config.Normalization {
	case NormalizeMinusOneToOne, NormalizeZeroToOne, NormalizeNone:
	default:
		return nil, errors.Errorf("unknown normalization %d", config.Normalization)
	}
	return &Preprocessor{config: config}, nil
}

// Config returns the preprocessor configuration.
func (p *Preprocessor) Config() PreprocessorConfig {
	return p.config
}

// Preprocess decodes and preprocesses encoded image data.
//
// Arguments:
// - data: The encoded image in any supported format.
//
// Returns:
// - PreprocessingResult containing the tensor and its shape.
// - error if the data is empty or cannot be decoded.
//
// @example
// result, err := preprocessor.Preprocess(jpegData)
//
//	if err != nil {
//	    log.Fatal(err)
//	}
func (p *Preprocessor) Preprocess(data []byte) (*PreprocessingResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := NewImage(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to preprocess image")
	}
	decoded, err := img.Decode()
	if err != nil {
		return nil, errors.Wrap(err, "failed to preprocess image")
	}
	return p.PreprocessImage(decoded)
}

// PreprocessImage preprocesses an already decoded image.
func (p *Preprocessor) PreprocessImage(img image.Image) (*PreprocessingResult, error) {
	b := img.Bounds()
	resized := dropAlpha(ResizeNearest(img, p.config.Width, p.config.Height))
	data, err := toCHW(imageToHWC(resized), p.config.Height, p.config.Width)
	if err != nil {
		return nil, errors.Wrap(err, "failed to lay out image tensor")
	}
	p.normalize(data)
	return &PreprocessingResult{
		Data:           data,
		Shape:          []int{1, 3, p.config.Height, p.config.Width},
		OriginalWidth:  b.Dx(),
		OriginalHeight: b.Dy(),
	}, nil
}

// dropAlpha returns an opaque copy of img carrying the straight (non-premultiplied)
// color of every pixel.
func dropAlpha(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return out
}

// imageToHWC converts an opaque image to 0-255 float32 values in pixel order,
// three channels per pixel.
func imageToHWC(img *image.RGBA) []float32 {
	out := make([]float32, 0, len(img.Pix)/4*3)
	for i := 0; i < len(img.Pix); i += 4 {
		out = append(out, float32(img.Pix[i]), float32(img.Pix[i+1]), float32(img.Pix[i+2]))
	}
	return out
}

// toCHW transposes [height, width, 3] pixel data to channel planes.
func toCHW(hwc []float32, height, width int) ([]float32, error) {
	t := tensor.New(tensor.WithShape(height, width, 3), tensor.WithBacking(hwc))
	if err := t.T(2, 0, 1); err != nil {
		return nil, err
	}
	if err := t.Transpose(); err != nil {
		return nil, err
	}
	return t.Data().([]float32), nil
}

// normalize applies normalization to the data in place.
func (p *Preprocessor) normalize(data []float32) {
	switch p.config.Normalization {
	case NormalizeZeroToOne:
		for i := range data {
			data[i] /= 255.0
		}
	case NormalizeMinusOneToOne:
		for i := range data {
			data[i] = (data[i] / 127.5) - 1.0
		}
	}
}
