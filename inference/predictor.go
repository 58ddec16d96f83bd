// Package inference - Model boundary producing prediction grids from images.
package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/nvr-ai/go-daylight/images"
	"github.com/nvr-ai/go-daylight/inference/providers"
	"github.com/nvr-ai/go-daylight/metrics"
	"github.com/pkg/errors"
)

// Predictor turns an encoded image into a prediction grid.
type Predictor interface {
	// Predict runs the model on one encoded image.
	Predict(ctx context.Context, image []byte) (metrics.Grid, error)
	// Close releases the model.
	Close() error
}

// Format is a serialized model format.
type Format string

const (
	// FormatONNX is an ONNX model run with ONNX Runtime.
	FormatONNX Format = "onnx"
	// FormatTorchScript is a TorchScript archive. It is recognised but cannot be run.
	FormatTorchScript Format = "torchscript"
)

// ErrUnsupportedFormat is returned for model formats that have no runtime.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// ParseFormat converts a configuration string to a Format. An empty string means FormatONNX.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatONNX, nil
	case FormatONNX, FormatTorchScript:
		return f, nil
	default:
		return "", fmt.Errorf("unknown model format %q", s)
	}
}

// Config describes the model to load.
type Config struct {
	// Path is the model file.
	Path string `json:"path" yaml:"path"`
	// Format is the model format. Defaults to onnx.
	Format Format `json:"format" yaml:"format"`
	// LibraryPath is the ONNX Runtime shared library. Defaults to providers.GetSharedLibPath.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// Providers lists execution providers in order of preference. Defaults to [cuda, cpu].
	Providers []providers.ProviderBackend `json:"providers" yaml:"providers"`
	// ProviderOptions carries per-backend settings.
	ProviderOptions providers.Options `json:"provider_options" yaml:"provider_options"`
	// Input is the model input layout.
	Input images.PreprocessorConfig `json:"input" yaml:"input"`
	// OutputScale multiplies every output value. 0 means 1.
	OutputScale float32 `json:"output_scale" yaml:"output_scale"`
}

// DefaultConfig returns a config for a 384x384 ONNX model at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:      path,
		Format:    FormatONNX,
		Providers: append([]providers.ProviderBackend(nil), providers.DefaultPreference...),
		Input:     images.DefaultPreprocessorConfig(),
	}
}

// NewPredictor builds the predictor for the configured format.
//
// Arguments:
//   - cfg: The model configuration.
//
// Returns:
//   - Predictor: A ready predictor. Callers must Close it.
//   - error: A wrapped ErrUnsupportedFormat, or an error from loading the model.
func NewPredictor(cfg Config) (Predictor, error) {
	format := cfg.Format
	if format == "" {
		format = FormatONNX
	}
	switch format {
	case FormatONNX:
		return NewONNXPredictor(cfg)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", format)
	}
}
