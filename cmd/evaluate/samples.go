package main

import (
	"context"
	"image/png"
	"log"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-daylight/config"
	"github.com/nvr-ai/go-daylight/evaluation"
	"github.com/nvr-ai/go-daylight/images"
	"github.com/nvr-ai/go-daylight/inference"
	"github.com/nvr-ai/go-daylight/metrics"
	"github.com/nvr-ai/go-daylight/profiler"
	"github.com/nvr-ai/go-daylight/util"
	"github.com/pkg/errors"
)

// decodeReference decodes a reference map at the configured size, or at its own size.
func decodeReference(cfg config.Config, f util.ImageFile) (metrics.Grid, error) {
	g, err := images.DecodeMap(f.Data, cfg.Maps.Height, cfg.Maps.Width)
	if err != nil {
		return metrics.Grid{}, errors.Wrapf(err, "reference %s", f.Path)
	}
	return g, nil
}

// alignTo resizes a prediction map to the reference shape.
func alignTo(prediction, reference metrics.Grid) (metrics.Grid, error) {
	if len(reference.Shape) != 2 {
		return metrics.Grid{}, errors.Errorf("reference shape %v is not a map", reference.Shape)
	}
	return images.ResizeGrid(prediction, reference.Shape[0], reference.Shape[1])
}

// skipOrFail returns err under fail-fast, otherwise logs it and returns nil.
func skipOrFail(cfg config.Config, name string, err error) error {
	if cfg.Evaluation.FailFast {
		return err
	}
	log.Printf("⚠️ Skipping %q: %v", name, err)
	return nil
}

// loadSamples pairs prediction and reference maps by name and decodes them.
func loadSamples(cfg config.Config, predictionDir, referenceDir string) ([]evaluation.Sample, error) {
	pairs, err := util.LoadPairs(predictionDir, referenceDir)
	if err != nil {
		return nil, err
	}

	samples := make([]evaluation.Sample, 0, len(pairs))
	for _, p := range pairs {
		s, err := decodePair(cfg, p)
		if err != nil {
			if err := skipOrFail(cfg, p.Name, err); err != nil {
				return nil, err
			}
			continue
		}
		samples = append(samples, s)
	}
	log.Printf("📂 Loaded %d samples from %s", len(samples), predictionDir)
	return samples, nil
}

func decodePair(cfg config.Config, p util.Pair) (evaluation.Sample, error) {
	ref, err := decodeReference(cfg, p.Reference)
	if err != nil {
		return evaluation.Sample{}, err
	}
	pred, err := images.DecodeMap(p.Prediction.Data, 0, 0)
	if err != nil {
		return evaluation.Sample{}, errors.Wrapf(err, "prediction %s", p.Prediction.Path)
	}
	if pred, err = alignTo(pred, ref); err != nil {
		return evaluation.Sample{}, err
	}
	return evaluation.Sample{ID: p.Name, Prediction: pred, Reference: ref}, nil
}

// predictSamples runs the predictor over every input that has a reference map.
// When saveDir is set, every prediction is written there as a 16-bit PNG next to
// a comparison image.
func predictSamples(ctx context.Context, predictor inference.Predictor, cfg config.Config, inputDir, referenceDir, saveDir string) ([]evaluation.Sample, error) {
	pairs, err := util.LoadPairs(inputDir, referenceDir)
	if err != nil {
		return nil, err
	}
	if saveDir != "" {
		if err := os.MkdirAll(saveDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create prediction directory")
		}
	}

	prof := profiler.New(len(pairs))
	samples := make([]evaluation.Sample, 0, len(pairs))
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := predictPair(ctx, timedPredictor{predictor, prof}, cfg, p, saveDir)
		if err != nil {
			if err := skipOrFail(cfg, p.Name, err); err != nil {
				return nil, err
			}
			continue
		}
		samples = append(samples, s)
	}
	t := prof.Timings()["predict"]
	log.Printf("🔮 Predicted %d samples from %s (mean %s, p90 %s)", len(samples), inputDir, t.Mean, t.P90)
	return samples, nil
}

// timedPredictor records the duration of every Predict call.
type timedPredictor struct {
	inference.Predictor
	prof *profiler.Profiler
}

func (t timedPredictor) Predict(ctx context.Context, image []byte) (metrics.Grid, error) {
	defer t.prof.StartOperation("predict")()
	return t.Predictor.Predict(ctx, image)
}

func predictPair(ctx context.Context, predictor inference.Predictor, cfg config.Config, p util.Pair, saveDir string) (evaluation.Sample, error) {
	ref, err := decodeReference(cfg, p.Reference)
	if err != nil {
		return evaluation.Sample{}, err
	}
	pred, err := predictor.Predict(ctx, p.Prediction.Data)
	if err != nil {
		return evaluation.Sample{}, errors.Wrapf(err, "input %s", p.Prediction.Path)
	}
	if pred.HasNaN() {
		log.Printf("⚠️ Prediction for %q contains NaN cells", p.Name)
	}
	if saveDir != "" {
		data, err := images.EncodeMap(pred)
		if err != nil {
			return evaluation.Sample{}, err
		}
		if err := os.WriteFile(filepath.Join(saveDir, p.Name+".png"), data, 0o644); err != nil {
			return evaluation.Sample{}, errors.Wrap(err, "failed to save prediction")
		}
	}
	if pred, err = alignTo(pred, ref); err != nil {
		return evaluation.Sample{}, err
	}
	if saveDir != "" {
		if err := saveComparison(filepath.Join(saveDir, p.Name+"_comparison.png"), p.Prediction.Data, ref, pred); err != nil {
			return evaluation.Sample{}, err
		}
	}
	return evaluation.Sample{ID: p.Name, Prediction: pred, Reference: ref}, nil
}

// saveComparison writes the input, reference, prediction and difference panels as PNG.
func saveComparison(path string, input []byte, ref, pred metrics.Grid) error {
	img, err := images.NewImage(input)
	if err != nil {
		return err
	}
	decoded, err := img.Decode()
	if err != nil {
		return err
	}
	panels, err := images.Comparison(decoded, ref, pred)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to save comparison")
	}
	defer f.Close()
	if err := png.Encode(f, panels); err != nil {
		return errors.Wrap(err, "failed to save comparison")
	}
	return nil
}
