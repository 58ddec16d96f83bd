package inference

import (
	"context"
	"log"
	"sync"

	"github.com/nvr-ai/go-daylight/images"
	"github.com/nvr-ai/go-daylight/inference/providers"
	"github.com/nvr-ai/go-daylight/metrics"
	"github.com/pkg/errors"
)

var _ Predictor = (*ONNXPredictor)(nil)

// ONNXPredictor runs a light-map model with ONNX Runtime.
//
// The session binds one preallocated input and output tensor, so Predict calls
// are serialized.
type ONNXPredictor struct {
	mu           sync.Mutex
	session      *providers.Session
	preprocessor *images.Preprocessor
	scale        float32
}

// NewONNXPredictor loads an ONNX model and resolves the execution provider once.
//
// Arguments:
//   - cfg: The model configuration.
//
// Returns:
//   - *ONNXPredictor: The predictor. Callers must Close it.
//   - error: An error if the model or runtime cannot be loaded.
func NewONNXPredictor(cfg Config) (*ONNXPredictor, error) {
	if cfg.Input.Width == 0 && cfg.Input.Height == 0 {
		cfg.Input = images.DefaultPreprocessorConfig()
	}
	pre, err := images.NewPreprocessor(cfg.Input)
	if err != nil {
		return nil, errors.Wrap(err, "invalid model input")
	}

	session, err := providers.NewSession(providers.NewSessionArgs{
		ModelPath:   cfg.Path,
		LibraryPath: cfg.LibraryPath,
		Height:      cfg.Input.Height,
		Width:       cfg.Input.Width,
		Preference:  cfg.Providers,
		Options:     cfg.ProviderOptions,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load model %s", cfg.Path)
	}

	scale := cfg.OutputScale
	if scale == 0 {
		scale = 1
	}
	log.Printf("✅ Predictor ready: %s on %s", cfg.Path, session.Backend)
	return &ONNXPredictor{session: session, preprocessor: pre, scale: scale}, nil
}

// Backend returns the execution provider in use.
func (p *ONNXPredictor) Backend() providers.ProviderBackend {
	return p.session.Backend
}

// Predict preprocesses an encoded image, runs the model and returns its output map.
//
// Arguments:
//   - ctx: Checked before the run; a run in progress is not interrupted.
//   - image: The encoded input image.
//
// Returns:
//   - metrics.Grid: The [H, W] output map.
//   - error: An error if preprocessing or the run fails.
func (p *ONNXPredictor) Predict(ctx context.Context, image []byte) (metrics.Grid, error) {
	input, err := p.preprocessor.Preprocess(image)
	if err != nil {
		return metrics.Grid{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return metrics.Grid{}, err
	}
	if p.session == nil {
		return metrics.Grid{}, errors.New("predictor is closed")
	}
	if err := PrepareInput(input, p.session.Input); err != nil {
		return metrics.Grid{}, err
	}
	if err := p.session.Session.Run(); err != nil {
		return metrics.Grid{}, errors.Wrap(err, "inference failed")
	}
	return OutputGrid(p.session.Output.GetShape(), p.session.Output.GetData(), p.scale)
}

// Close releases the session and its tensors.
func (p *ONNXPredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	err := p.session.Close()
	p.session = nil
	log.Printf("🛑 Predictor closed")
	return err
}
